package ingestion_engine

import (
	"context"
	"fmt"
	"time"

	"github.com/markdave123-py/studyvault/internal/core"
	"github.com/markdave123-py/studyvault/internal/logger"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Embedder turns chunks into vectors through an EmbeddingProvider, one call
// per chunk, with linear backoff between failed attempts.
type Embedder struct {
	log         *logger.Logger
	provider    core.EmbeddingProvider
	maxRetries  int
	retryDelay  time.Duration
	dimension   int
	concurrency int
	limiter     *rate.Limiter

	// wait suspends between attempts. Tests swap it to record delays.
	wait func(ctx context.Context, d time.Duration) error
}

func NewEmbedder(log *logger.Logger, provider core.EmbeddingProvider, cfg *IngestConfig) *Embedder {
	e := &Embedder{
		log:         log.With("service", "embedder"),
		provider:    provider,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
		dimension:   cfg.EmbedDim,
		concurrency: cfg.EmbedConcurrency,
		wait:        sleepCtx,
	}
	if cfg.EmbedRatePerSec > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.EmbedRatePerSec), 1)
	}
	return e
}

// Embed returns one vector per chunk in chunk order. The first chunk that
// exhausts its retries fails the whole call with *core.EmbeddingError and no
// partial result is returned.
func (e *Embedder) Embed(ctx context.Context, chunks []string) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	if len(chunks) == 0 {
		return vectors, nil
	}

	if e.concurrency <= 1 {
		for i, chunk := range chunks {
			vec, err := e.embedOne(ctx, i, chunk)
			if err != nil {
				return nil, err
			}
			vectors[i] = vec
		}
		return vectors, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			vec, err := e.embedOne(gctx, i, chunk)
			if err != nil {
				return err
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// EmbedQuery embeds a search query under the same retry policy.
func (e *Embedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return e.embedOne(ctx, core.QueryChunkIndex, query)
}

func (e *Embedder) embedOne(ctx context.Context, index int, text string) ([]float32, error) {
	var (
		attempts int
		lastErr  error
	)
	for attempts < e.maxRetries {
		attempts++
		vec, err := e.call(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err

		if ctx.Err() != nil || attempts == e.maxRetries {
			break
		}
		delay := e.retryDelay * time.Duration(attempts)
		e.log.Warn("embedding attempt failed, retrying",
			"chunk_index", index, "attempt", attempts, "delay", delay, "error", err)
		if err := e.wait(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	e.log.Error("embedding failed", "chunk_index", index, "attempts", attempts, "error", lastErr)
	return nil, &core.EmbeddingError{ChunkIndex: index, Attempts: attempts, Err: lastErr}
}

func (e *Embedder) call(ctx context.Context, text string) ([]float32, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	out, err := e.provider.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("provider returned %d vectors for 1 input", len(out))
	}
	if e.dimension > 0 && len(out[0]) != e.dimension {
		return nil, fmt.Errorf("provider returned vector of length %d, want %d", len(out[0]), e.dimension)
	}
	return out[0], nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
