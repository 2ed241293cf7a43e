package ingestion_engine

import (
	"context"
	"fmt"

	"github.com/markdave123-py/studyvault/internal/models"
)

// Ingestor is the pipeline facade consumed by the HTTP handlers and the CLI.
// Every method reports failure inside its result envelope.
type Ingestor interface {
	ProcessPDF(ctx context.Context, doc models.Document) models.IngestResult
	ProcessYouTube(ctx context.Context, doc models.Document) models.IngestResult
	DeleteDocument(ctx context.Context, libraryItemID, userID int64) models.DeleteResult
	Search(ctx context.Context, query string, userID int64, limit int) models.SearchResult
	FetchTranscript(ctx context.Context, url string) models.TranscriptResult
}

// TranscriptSource yields the transcript text of a video URL, or false when
// none can be obtained.
type TranscriptSource interface {
	FetchWithFallback(ctx context.Context, url string) (string, bool)
}

// Stage is a step of one upload pipeline run.
type Stage string

const (
	StageStart   Stage = "start"
	StageFetch   Stage = "fetch"
	StageExtract Stage = "extract"
	StageChunk   Stage = "chunk"
	StageEmbed   Stage = "embed"
	StageIndex   Stage = "index"
	StageDone    Stage = "done"
	StageFailed  Stage = "failed"
)

// StageError records the stage a pipeline run failed in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }
