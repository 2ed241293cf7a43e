package core

import (
	"errors"
	"fmt"
)

// Sentinels matched by the typed pipeline errors through errors.Is.
var (
	ErrExtraction            = errors.New("extraction failed")
	ErrEmbedding             = errors.New("embedding failed")
	ErrIndexing              = errors.New("indexing failed")
	ErrTranscriptUnavailable = errors.New("transcript unavailable")
	ErrValidation            = errors.New("validation failed")

	// Reported by TranscriptProvider implementations.
	ErrTranscriptsDisabled = errors.New("transcripts are disabled for this video")
	ErrNoTranscriptFound   = errors.New("no transcript found in requested languages")
)

// ExtractionError means a source document could not be read or parsed.
type ExtractionError struct {
	Source string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("extract text from %s", e.Source)
	}
	return fmt.Sprintf("extract text from %s: %v", e.Source, e.Err)
}

func (e *ExtractionError) Unwrap() error        { return e.Err }
func (e *ExtractionError) Is(target error) bool { return target == ErrExtraction }

// EmbeddingError means one chunk could not be embedded within the retry budget.
type EmbeddingError struct {
	ChunkIndex int
	Attempts   int
	Err        error
}

// QueryChunkIndex is the ChunkIndex of an EmbeddingError raised while
// embedding a search query rather than a document chunk.
const QueryChunkIndex = -1

func (e *EmbeddingError) Error() string {
	if e.ChunkIndex == QueryChunkIndex {
		return fmt.Sprintf("embed search query failed after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("embed chunk %d failed after %d attempts: %v", e.ChunkIndex, e.Attempts, e.Err)
}

func (e *EmbeddingError) Unwrap() error        { return e.Err }
func (e *EmbeddingError) Is(target error) bool { return target == ErrEmbedding }

// IndexingError wraps a vector store failure.
type IndexingError struct {
	Op         string
	Collection string
	Err        error
}

func (e *IndexingError) Error() string {
	return fmt.Sprintf("%s on collection %q: %v", e.Op, e.Collection, e.Err)
}

func (e *IndexingError) Unwrap() error        { return e.Err }
func (e *IndexingError) Is(target error) bool { return target == ErrIndexing }

// TranscriptUnavailableError means no transcript could be fetched for a video
// in any attempted language.
type TranscriptUnavailableError struct {
	URL string
}

func (e *TranscriptUnavailableError) Error() string {
	return fmt.Sprintf("failed to fetch YouTube transcript for %s", e.URL)
}

func (e *TranscriptUnavailableError) Is(target error) bool {
	return target == ErrTranscriptUnavailable
}

// ValidationError is a precondition violation detected before any side effect.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
