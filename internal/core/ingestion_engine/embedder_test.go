package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/markdave123-py/studyvault/internal/core"
	"github.com/markdave123-py/studyvault/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEmbedder(provider core.EmbeddingProvider, mutate func(*IngestConfig)) (*Embedder, *[]time.Duration) {
	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}
	e := NewEmbedder(logger.NewNop(), provider, cfg)
	return e, recordWaits(e)
}

func TestEmbedEmptyMakesNoProviderCall(t *testing.T) {
	p := newScriptedProvider(testDim)
	e, _ := newTestEmbedder(p, nil)

	vectors, err := e.Embed(context.Background(), []string{})
	require.NoError(t, err)
	assert.NotNil(t, vectors)
	assert.Empty(t, vectors)
	assert.Zero(t, p.callCount())
}

func TestEmbedPreservesOrder(t *testing.T) {
	p := newScriptedProvider(testDim)
	e, _ := newTestEmbedder(p, nil)
	chunks := []string{"alpha", "beta", "gamma"}

	vectors, err := e.Embed(context.Background(), chunks)
	require.NoError(t, err)
	require.Len(t, vectors, len(chunks))
	for i, c := range chunks {
		assert.Equal(t, vectorFor(c, testDim), vectors[i])
	}
	assert.Equal(t, 3, p.callCount())
}

func TestEmbedRetriesWithLinearBackoff(t *testing.T) {
	p := newScriptedProvider(testDim)
	p.failures["beta"] = 2
	e, waits := newTestEmbedder(p, nil)

	vectors, err := e.Embed(context.Background(), []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	assert.Len(t, vectors, 3)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, *waits)
	assert.Equal(t, 5, p.callCount())
}

func TestEmbedExhaustedRetriesFailsWholeCall(t *testing.T) {
	p := newScriptedProvider(testDim)
	p.failAlways("beta")
	e, waits := newTestEmbedder(p, nil)

	vectors, err := e.Embed(context.Background(), []string{"alpha", "beta", "gamma"})
	require.Error(t, err)
	assert.Nil(t, vectors)
	assert.ErrorIs(t, err, core.ErrEmbedding)
	assert.ErrorIs(t, err, errProviderDown)

	var embErr *core.EmbeddingError
	require.True(t, errors.As(err, &embErr))
	assert.Equal(t, 1, embErr.ChunkIndex)
	assert.Equal(t, 3, embErr.Attempts)

	// No wait after the final attempt, and "gamma" is never tried.
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, *waits)
	assert.Equal(t, 4, p.callCount())
}

func TestEmbedRejectsWrongDimension(t *testing.T) {
	p := newScriptedProvider(testDim / 2)
	e, _ := newTestEmbedder(p, nil)

	_, err := e.Embed(context.Background(), []string{"alpha"})
	var embErr *core.EmbeddingError
	require.True(t, errors.As(err, &embErr))
	assert.Equal(t, 3, embErr.Attempts)
	assert.Contains(t, err.Error(), "want 8")
}

func TestEmbedStopsOnCancelledContext(t *testing.T) {
	p := newScriptedProvider(testDim)
	p.failAlways("alpha")
	e, waits := newTestEmbedder(p, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Embed(ctx, []string{"alpha"})
	var embErr *core.EmbeddingError
	require.True(t, errors.As(err, &embErr))
	assert.Equal(t, 1, embErr.Attempts)
	assert.Empty(t, *waits)
}

func TestEmbedConcurrentPreservesOrder(t *testing.T) {
	p := newScriptedProvider(testDim)
	e, _ := newTestEmbedder(p, func(c *IngestConfig) { c.EmbedConcurrency = 4 })

	chunks := make([]string, 20)
	for i := range chunks {
		chunks[i] = fmt.Sprintf("chunk-%d", i)
	}
	vectors, err := e.Embed(context.Background(), chunks)
	require.NoError(t, err)
	require.Len(t, vectors, len(chunks))
	for i, c := range chunks {
		assert.Equal(t, vectorFor(c, testDim), vectors[i], "chunk %d", i)
	}
}

func TestEmbedConcurrentFailureReportsChunk(t *testing.T) {
	p := newScriptedProvider(testDim)
	p.failAlways("chunk-7")
	e, _ := newTestEmbedder(p, func(c *IngestConfig) { c.EmbedConcurrency = 4 })

	chunks := make([]string, 12)
	for i := range chunks {
		chunks[i] = fmt.Sprintf("chunk-%d", i)
	}
	vectors, err := e.Embed(context.Background(), chunks)
	assert.Nil(t, vectors)
	var embErr *core.EmbeddingError
	require.True(t, errors.As(err, &embErr))
	assert.Equal(t, 7, embErr.ChunkIndex)
}

func TestSleepCtx(t *testing.T) {
	require.NoError(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
}

func TestEmbedQueryFailureNamesTheQuery(t *testing.T) {
	p := newScriptedProvider(testDim)
	p.failAlways("what is osmosis")
	e, _ := newTestEmbedder(p, nil)

	_, err := e.EmbedQuery(context.Background(), "what is osmosis")
	require.Error(t, err)

	var embErr *core.EmbeddingError
	require.True(t, errors.As(err, &embErr))
	assert.Equal(t, core.QueryChunkIndex, embErr.ChunkIndex)
	assert.Contains(t, err.Error(), "embed search query failed after 3 attempts")
	assert.NotContains(t, err.Error(), "chunk")
}
