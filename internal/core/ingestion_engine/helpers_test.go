package ingestion_engine

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"testing"
	"time"

	"github.com/markdave123-py/studyvault/internal/core"
	"github.com/markdave123-py/studyvault/internal/core/vectorstore/memory"
	"github.com/markdave123-py/studyvault/internal/logger"
	"github.com/markdave123-py/studyvault/internal/models"
	"github.com/stretchr/testify/require"
)

const testDim = 8

var errProviderDown = errors.New("provider unavailable")

func testConfig() *IngestConfig {
	return &IngestConfig{
		ChunkSize:        40,
		ChunkOverlap:     5,
		MaxRetries:       3,
		RetryDelay:       10 * time.Millisecond,
		EmbedDim:         testDim,
		EmbedConcurrency: 1,
		CollectionName:   "test_docs",
	}
}

// vectorFor derives a stable pseudo-random vector from text so identical
// texts always embed identically.
func vectorFor(text string, dim int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()
	v := make([]float32, dim)
	for j := range v {
		seed = seed*6364136223846793005 + 1442695040888963407
		v[j] = float32(seed>>40)/float32(1<<24) + 0.001
	}
	return v
}

// scriptedProvider embeds deterministically. failures maps a text to the
// number of calls that fail before it succeeds; a negative count never
// succeeds.
type scriptedProvider struct {
	mu       sync.Mutex
	dim      int
	calls    int
	failures map[string]int
}

func newScriptedProvider(dim int) *scriptedProvider {
	return &scriptedProvider{dim: dim, failures: map[string]int{}}
}

func (p *scriptedProvider) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if n, ok := p.failures[t]; ok && n != 0 {
			if n > 0 {
				p.failures[t] = n - 1
			}
			return nil, errProviderDown
		}
		out[i] = vectorFor(t, p.dim)
	}
	return out, nil
}

func (p *scriptedProvider) failAlways(text string) { p.failures[text] = -1 }

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// spyStore records calls to a memory store and can inject failures.
type spyStore struct {
	*memory.Store

	mu        sync.Mutex
	lists     int
	creates   int
	upserts   int
	upserted  []models.Point
	lastLimit int

	upsertErr error
	// leaky ignores the search filter, as a misbehaving backend might.
	leaky bool
}

func newSpyStore() *spyStore { return &spyStore{Store: memory.New()} }

func (s *spyStore) ListCollections(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	s.lists++
	s.mu.Unlock()
	return s.Store.ListCollections(ctx)
}

func (s *spyStore) CreateCollection(ctx context.Context, name string, size int, d core.Distance) error {
	s.mu.Lock()
	s.creates++
	s.mu.Unlock()
	return s.Store.CreateCollection(ctx, name, size, d)
}

func (s *spyStore) Upsert(ctx context.Context, name string, points []models.Point, wait bool) error {
	s.mu.Lock()
	s.upserts++
	s.upserted = append(s.upserted, points...)
	err := s.upsertErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Store.Upsert(ctx, name, points, wait)
}

func (s *spyStore) Search(ctx context.Context, name string, vector []float32, filter core.Filter, limit int) ([]models.ScoredPoint, error) {
	s.mu.Lock()
	s.lastLimit = limit
	leaky := s.leaky
	s.mu.Unlock()
	if leaky {
		filter = core.Filter{}
	}
	return s.Store.Search(ctx, name, vector, filter, limit)
}

func (s *spyStore) networkCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lists + s.creates + s.upserts
}

type fakeExtractor struct {
	texts map[string]string
	err   error
	calls int
}

func (f *fakeExtractor) ExtractText(_ context.Context, source string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", &core.ExtractionError{Source: source, Err: f.err}
	}
	return f.texts[source], nil
}

type fakeTranscripts struct {
	text  string
	ok    bool
	calls int
}

func (f *fakeTranscripts) FetchWithFallback(_ context.Context, _ string) (string, bool) {
	f.calls++
	return f.text, f.ok
}

// recordWaits replaces the embedder's backoff sleep and returns the delays it
// was asked for.
func recordWaits(e *Embedder) *[]time.Duration {
	var mu sync.Mutex
	waits := &[]time.Duration{}
	e.wait = func(_ context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		*waits = append(*waits, d)
		return nil
	}
	return waits
}

func newTestIngestor(t *testing.T, provider core.EmbeddingProvider, store core.VectorStore, ext core.TextExtractor, tr TranscriptSource) (*DocumentIngestor, *[]time.Duration) {
	t.Helper()
	ing, err := NewDocumentIngestor(logger.NewNop(), ext, tr, provider, store, testConfig())
	require.NoError(t, err)
	return ing, recordWaits(ing.embedder)
}

func testDocument(id int64, userID int64) models.Document {
	return models.Document{
		LibraryItemID: id,
		UserID:        userID,
		UserName:      "ada",
		Title:         "Lecture notes",
		SourceURL:     "/uploads/notes.pdf",
	}
}
