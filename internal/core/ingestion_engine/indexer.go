package ingestion_engine

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/markdave123-py/studyvault/internal/core"
	"github.com/markdave123-py/studyvault/internal/logger"
	"github.com/markdave123-py/studyvault/internal/models"
)

// Indexer writes chunk vectors into one vector store collection and answers
// deletion and user-scoped search over it.
type Indexer struct {
	log        *logger.Logger
	store      core.VectorStore
	collection string
	dimension  int

	// ensured is set once the collection is known to exist. No lock is held
	// across the create call; concurrent first callers may both attempt it.
	ensured atomic.Bool

	now   func() time.Time
	newID func() string
}

func NewIndexer(log *logger.Logger, store core.VectorStore, cfg *IngestConfig) *Indexer {
	return &Indexer{
		log:        log.With("service", "indexer", "collection", cfg.CollectionName),
		store:      store,
		collection: cfg.CollectionName,
		dimension:  cfg.EmbedDim,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// EnsureCollection creates the collection with cosine distance if it does not
// exist yet. Safe to call repeatedly and concurrently.
func (ix *Indexer) EnsureCollection(ctx context.Context) error {
	if ix.ensured.Load() {
		return nil
	}

	exists, err := ix.collectionExists(ctx)
	if err != nil {
		return &core.IndexingError{Op: "list collections", Collection: ix.collection, Err: err}
	}
	if !exists {
		if err := ix.store.CreateCollection(ctx, ix.collection, ix.dimension, core.DistanceCosine); err != nil {
			// Another caller may have created it between our list and create.
			if ok, lerr := ix.collectionExists(ctx); lerr != nil || !ok {
				return &core.IndexingError{Op: "create collection", Collection: ix.collection, Err: err}
			}
		} else {
			ix.log.Info("created collection", "dimension", ix.dimension)
		}
	}

	ix.ensured.Store(true)
	return nil
}

func (ix *Indexer) collectionExists(ctx context.Context) (bool, error) {
	names, err := ix.store.ListCollections(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(names, ix.collection), nil
}

// IndexChunks stores one point per chunk in a single blocking upsert and
// returns the generated IDs in chunk order.
func (ix *Indexer) IndexChunks(ctx context.Context, chunks []string, vectors [][]float32, doc models.Document) ([]string, error) {
	if len(chunks) != len(vectors) {
		return nil, &core.ValidationError{
			Field:   "vectors",
			Message: fmt.Sprintf("got %d vectors for %d chunks", len(vectors), len(chunks)),
		}
	}
	for i, v := range vectors {
		if len(v) != ix.dimension {
			return nil, &core.ValidationError{
				Field:   "vectors",
				Message: fmt.Sprintf("vector %d has length %d, want %d", i, len(v), ix.dimension),
			}
		}
	}
	if len(chunks) == 0 {
		return []string{}, nil
	}

	if err := ix.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	indexedAt := ix.now()
	ids := make([]string, len(chunks))
	points := make([]models.Point, len(chunks))
	for i, text := range chunks {
		ids[i] = ix.newID()
		chunk := models.Chunk{Index: i, TotalChunks: len(chunks), Text: text}
		points[i] = models.Point{
			ID:      ids[i],
			Vector:  vectors[i],
			Payload: models.ChunkPayload(doc, chunk, indexedAt),
		}
	}

	if err := ix.store.Upsert(ctx, ix.collection, points, true); err != nil {
		return nil, &core.IndexingError{Op: "upsert", Collection: ix.collection, Err: err}
	}

	ix.log.Debug("indexed chunks", "library_item_id", doc.LibraryItemID, "points", len(points))
	return ids, nil
}

// DeleteByDocument removes every point of one library item owned by userID
// and reports how many were removed. Deleting an unknown item, or one owned
// by another user, removes nothing and succeeds.
func (ix *Indexer) DeleteByDocument(ctx context.Context, libraryItemID, userID int64) (int, error) {
	if err := ix.EnsureCollection(ctx); err != nil {
		return 0, err
	}

	filter := core.NewFilter(core.FieldEquals(models.PayloadLibraryItemID, libraryItemID)).
		And(core.FieldEquals(models.PayloadUserID, userID))

	count, err := ix.store.Count(ctx, ix.collection, filter)
	if err != nil {
		return 0, &core.IndexingError{Op: "count", Collection: ix.collection, Err: err}
	}
	if count == 0 {
		return 0, nil
	}
	if err := ix.store.Delete(ctx, ix.collection, filter, true); err != nil {
		return 0, &core.IndexingError{Op: "delete", Collection: ix.collection, Err: err}
	}

	ix.log.Info("deleted document points", "library_item_id", libraryItemID, "user_id", userID, "deleted", count)
	return count, nil
}

// ClaimedByOther reports whether any point of libraryItemID belongs to a user
// other than userID.
func (ix *Indexer) ClaimedByOther(ctx context.Context, libraryItemID, userID int64) (bool, error) {
	if err := ix.EnsureCollection(ctx); err != nil {
		return false, err
	}

	filter := core.NewFilter(core.FieldEquals(models.PayloadLibraryItemID, libraryItemID)).
		And(core.Condition{Field: models.PayloadUserID, Op: core.OpNe, Value: userID})

	count, err := ix.store.Count(ctx, ix.collection, filter)
	if err != nil {
		return false, &core.IndexingError{Op: "count", Collection: ix.collection, Err: err}
	}
	return count > 0, nil
}

// Search returns at most limit hits owned by userID, best first.
func (ix *Indexer) Search(ctx context.Context, vector []float32, userID int64, limit int) ([]models.SearchHit, error) {
	if limit <= 0 {
		return nil, &core.ValidationError{Field: "limit", Message: "must be positive"}
	}
	if len(vector) != ix.dimension {
		return nil, &core.ValidationError{
			Field:   "query vector",
			Message: fmt.Sprintf("has length %d, want %d", len(vector), ix.dimension),
		}
	}
	if err := ix.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	filter := core.NewFilter(core.FieldEquals(models.PayloadUserID, userID))
	points, err := ix.store.Search(ctx, ix.collection, vector, filter, limit)
	if err != nil {
		return nil, &core.IndexingError{Op: "search", Collection: ix.collection, Err: err}
	}

	hits := make([]models.SearchHit, 0, len(points))
	for _, p := range points {
		// Never trust the backend alone with ownership.
		if !filter.Matches(p.Payload) {
			continue
		}
		hits = append(hits, hitFromPayload(p))
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func hitFromPayload(p models.ScoredPoint) models.SearchHit {
	text, _ := p.Payload[models.PayloadText].(string)
	title, _ := p.Payload[models.PayloadTitle].(string)
	source, _ := p.Payload[models.PayloadSourceType].(string)
	idx, _ := core.ToInt(p.Payload[models.PayloadChunkIndex])
	return models.SearchHit{
		Text:       text,
		Title:      title,
		SourceType: source,
		Score:      p.Score,
		ChunkIndex: idx,
	}
}
