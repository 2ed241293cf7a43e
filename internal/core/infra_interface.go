package core

import (
	"context"
	"io"

	"github.com/markdave123-py/studyvault/internal/models"
)

// Distance is the similarity metric of a vector collection.
type Distance string

const (
	DistanceCosine Distance = "Cosine"
	DistanceDot    Distance = "Dot"
	DistanceEuclid Distance = "Euclid"
)

// VectorStore is the narrow surface the indexer needs from a vector database.
// Collections are keyed by name and hold vectors of one fixed size.
type VectorStore interface {
	ListCollections(ctx context.Context) ([]string, error)
	// CreateCollection errors when the collection already exists; callers
	// that race another creator re-list before giving up.
	CreateCollection(ctx context.Context, name string, vectorSize int, distance Distance) error

	Upsert(ctx context.Context, collection string, points []models.Point, wait bool) error
	Count(ctx context.Context, collection string, filter Filter) (int, error)
	Delete(ctx context.Context, collection string, filter Filter, wait bool) error
	Search(ctx context.Context, collection string, vector []float32, filter Filter, limit int) ([]models.ScoredPoint, error)
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data io.Reader, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
}

// TranscriptProvider fetches timed captions for one video in the first
// available language of the given list. It reports ErrTranscriptsDisabled and
// ErrNoTranscriptFound so callers can tell the two apart.
type TranscriptProvider interface {
	FetchTranscript(ctx context.Context, videoID string, languages []string) ([]models.TranscriptEntry, error)
}
