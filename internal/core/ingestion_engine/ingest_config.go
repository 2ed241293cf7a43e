package ingestion_engine

import (
	"time"

	"github.com/markdave123-py/studyvault/internal/core"
)

// DefaultSeparators is the split priority used by the chunker: paragraph,
// line, word, then a hard character split.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// IngestConfig tunes the pipeline. It is built once at startup and injected
// into every stage.
//
// ChunkSize:        maximum chunk length in characters (runes).
// ChunkOverlap:     characters shared by consecutive chunks.
// Separators:       split priority for the chunker (DefaultSeparators if nil).
// MaxRetries:       embedding attempts per chunk.
// RetryDelay:       backoff unit; attempt k failing waits RetryDelay*k.
// EmbedDim:         vector length produced by the embedding model.
// EmbedConcurrency: chunks embedded in parallel within one document (1 = sequential).
// EmbedRatePerSec:  provider call rate limit (0 = unlimited).
// CollectionName:   vector store collection holding every user's chunks.
type IngestConfig struct {
	ChunkSize        int
	ChunkOverlap     int
	Separators       []string
	MaxRetries       int
	RetryDelay       time.Duration
	EmbedDim         int
	EmbedConcurrency int
	EmbedRatePerSec  float64
	CollectionName   string
}

// DefaultIngestConfig mirrors the service defaults.
func DefaultIngestConfig() *IngestConfig {
	return &IngestConfig{
		ChunkSize:        400,
		ChunkOverlap:     40,
		Separators:       DefaultSeparators,
		MaxRetries:       3,
		RetryDelay:       time.Second,
		EmbedDim:         1536,
		EmbedConcurrency: 1,
		CollectionName:   "studyvault_documents",
	}
}

func (c *IngestConfig) Validate() error {
	switch {
	case c == nil:
		return &core.ValidationError{Field: "ingest config", Message: "is nil"}
	case c.ChunkSize <= 0:
		return &core.ValidationError{Field: "chunk size", Message: "must be positive"}
	case c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize:
		return &core.ValidationError{Field: "chunk overlap", Message: "must be in [0, chunk size)"}
	case c.MaxRetries < 1:
		return &core.ValidationError{Field: "max retries", Message: "must be at least 1"}
	case c.RetryDelay < 0:
		return &core.ValidationError{Field: "retry delay", Message: "must not be negative"}
	case c.EmbedDim <= 0:
		return &core.ValidationError{Field: "embedding dimension", Message: "must be positive"}
	case c.CollectionName == "":
		return &core.ValidationError{Field: "collection name", Message: "is required"}
	}
	return nil
}

func (c *IngestConfig) separators() []string {
	if len(c.Separators) == 0 {
		return DefaultSeparators
	}
	return c.Separators
}
