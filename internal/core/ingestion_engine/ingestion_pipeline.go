package ingestion_engine

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/markdave123-py/studyvault/internal/core"
	"github.com/markdave123-py/studyvault/internal/logger"
	"github.com/markdave123-py/studyvault/internal/models"
)

const (
	DefaultSearchLimit = 5
	MaxSearchLimit     = 50
)

var _ Ingestor = (*DocumentIngestor)(nil)

// DocumentIngestor composes extraction, chunking, embedding and indexing into
// the PDF and YouTube upload pipelines, plus the delete and search facade.
// Concurrent calls share no mutable state beyond the indexer's collection flag.
type DocumentIngestor struct {
	log         *logger.Logger
	extractor   core.TextExtractor
	transcripts TranscriptSource
	chunker     *Chunker
	embedder    *Embedder
	indexer     *Indexer
}

func NewDocumentIngestor(
	log *logger.Logger,
	extractor core.TextExtractor,
	transcripts TranscriptSource,
	provider core.EmbeddingProvider,
	store core.VectorStore,
	cfg *IngestConfig,
) (*DocumentIngestor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &DocumentIngestor{
		log:         log.With("service", "ingestor"),
		extractor:   extractor,
		transcripts: transcripts,
		chunker:     NewChunker(cfg),
		embedder:    NewEmbedder(log, provider, cfg),
		indexer:     NewIndexer(log, store, cfg),
	}, nil
}

// EnsureCollection prepares the vector collection ahead of the first upload.
func (i *DocumentIngestor) EnsureCollection(ctx context.Context) error {
	return i.indexer.EnsureCollection(ctx)
}

func (i *DocumentIngestor) ProcessPDF(ctx context.Context, doc models.Document) models.IngestResult {
	doc.SourceType = models.SourcePDF
	return i.run(ctx, doc, func(r *pipelineRun) (string, error) {
		r.enter(StageExtract)
		return i.extractor.ExtractText(ctx, doc.SourceURL)
	})
}

func (i *DocumentIngestor) ProcessYouTube(ctx context.Context, doc models.Document) models.IngestResult {
	doc.SourceType = models.SourceYouTube
	return i.run(ctx, doc, func(r *pipelineRun) (string, error) {
		r.enter(StageFetch)
		text, ok := i.transcripts.FetchWithFallback(ctx, doc.SourceURL)
		if !ok {
			return "", &core.TranscriptUnavailableError{URL: doc.SourceURL}
		}
		// The transcript is already the extracted text.
		r.enter(StageExtract)
		return text, nil
	})
}

// run drives one upload through START → [FETCH] → EXTRACT → CHUNK → EMBED →
// INDEX → DONE. Any failure moves straight to FAILED; nothing is retried
// across stages.
func (i *DocumentIngestor) run(ctx context.Context, doc models.Document, source func(r *pipelineRun) (string, error)) models.IngestResult {
	r := &pipelineRun{
		log:   i.log.With("library_item_id", doc.LibraryItemID, "source_type", doc.SourceType),
		stage: StageStart,
	}

	if err := validateDocument(doc); err != nil {
		return r.fail(err)
	}
	claimed, err := i.indexer.ClaimedByOther(ctx, doc.LibraryItemID, doc.UserID)
	if err != nil {
		return r.fail(err)
	}
	if claimed {
		return r.fail(&core.ValidationError{
			Field:   "library item id",
			Message: fmt.Sprintf("%d already belongs to another user", doc.LibraryItemID),
		})
	}

	text, err := source(r)
	if err != nil {
		return r.fail(err)
	}

	r.enter(StageChunk)
	chunks := i.chunker.Chunk(text)
	if len(chunks) == 0 {
		return r.fail(&core.ExtractionError{Source: doc.SourceURL, Err: errNoText})
	}

	r.enter(StageEmbed)
	vectors, err := i.embedder.Embed(ctx, chunks)
	if err != nil {
		return r.fail(err)
	}

	r.enter(StageIndex)
	ids, err := i.indexer.IndexChunks(ctx, chunks, vectors, doc)
	if err != nil {
		return r.fail(err)
	}

	r.enter(StageDone)
	characters := utf8.RuneCountInString(text)
	r.log.Info("document ingested", "chunks", len(chunks), "characters", characters)
	return models.IngestResult{
		Status:         models.StatusSuccess,
		PointIDs:       ids,
		ChunkCount:     len(chunks),
		CharacterCount: characters,
	}
}

// DeleteDocument removes the caller's chunks of one library item.
func (i *DocumentIngestor) DeleteDocument(ctx context.Context, libraryItemID, userID int64) models.DeleteResult {
	invalid := func(err error) models.DeleteResult {
		return models.DeleteResult{Status: models.StatusError, ErrorCode: models.ErrorCodeValidation, Error: err.Error()}
	}
	if libraryItemID <= 0 {
		return invalid(&core.ValidationError{Field: "library item id", Message: "must be positive"})
	}
	if userID <= 0 {
		return invalid(&core.ValidationError{Field: "user id", Message: "must be positive"})
	}

	deleted, err := i.indexer.DeleteByDocument(ctx, libraryItemID, userID)
	if err != nil {
		i.log.Error("delete document failed", "library_item_id", libraryItemID, "user_id", userID, "error", err)
		return models.DeleteResult{Status: models.StatusError, Error: err.Error()}
	}
	return models.DeleteResult{Status: models.StatusSuccess, DeletedCount: deleted}
}

// Search embeds query and returns the user's best matching chunks. A limit
// of zero or less means DefaultSearchLimit; larger limits are capped at
// MaxSearchLimit.
func (i *DocumentIngestor) Search(ctx context.Context, query string, userID int64, limit int) models.SearchResult {
	fail := func(err error) models.SearchResult {
		i.log.Error("search failed", "user_id", userID, "error", err)
		return models.SearchResult{Status: models.StatusError, Results: []models.SearchHit{}, Error: err.Error()}
	}

	if strings.TrimSpace(query) == "" {
		return fail(&core.ValidationError{Field: "query", Message: "must not be empty"})
	}
	switch {
	case limit <= 0:
		limit = DefaultSearchLimit
	case limit > MaxSearchLimit:
		limit = MaxSearchLimit
	}

	vector, err := i.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return fail(err)
	}
	hits, err := i.indexer.Search(ctx, vector, userID, limit)
	if err != nil {
		return fail(err)
	}
	return models.SearchResult{Status: models.StatusSuccess, Results: hits}
}

func (i *DocumentIngestor) FetchTranscript(ctx context.Context, url string) models.TranscriptResult {
	text, ok := i.transcripts.FetchWithFallback(ctx, url)
	if !ok {
		err := &core.TranscriptUnavailableError{URL: url}
		return models.TranscriptResult{Status: models.StatusError, Error: err.Error()}
	}
	return models.TranscriptResult{
		Status:     models.StatusSuccess,
		Transcript: text,
		Length:     utf8.RuneCountInString(text),
	}
}

func validateDocument(doc models.Document) error {
	if doc.LibraryItemID <= 0 {
		return &core.ValidationError{Field: "library item id", Message: "must be positive"}
	}
	if strings.TrimSpace(doc.SourceURL) == "" {
		return &core.ValidationError{Field: "source url", Message: "is required"}
	}
	return nil
}

// pipelineRun tracks the stage reached by one upload.
type pipelineRun struct {
	log   *logger.Logger
	stage Stage
}

func (r *pipelineRun) enter(s Stage) {
	r.log.Debug("pipeline stage", "from", r.stage, "to", s)
	r.stage = s
}

func (r *pipelineRun) fail(err error) models.IngestResult {
	stageErr := &StageError{Stage: r.stage, Err: err}
	r.log.Error("pipeline failed", "stage", r.stage, "error", err)
	r.stage = StageFailed
	return models.IngestResult{
		Status:      models.StatusError,
		FailedStage: string(stageErr.Stage),
		Error:       stageErr.Error(),
	}
}
