package models

import (
	"time"
)

// SourceType identifies where a library document came from.
type SourceType string

const (
	SourcePDF     SourceType = "pdf"
	SourceYouTube SourceType = "youtube"
)

// Document describes a user library item. The record itself lives in the
// relational store; the pipeline only carries its identifying fields.
type Document struct {
	LibraryItemID int64      `json:"library_item_id"`
	UserID        int64      `json:"user_id"`
	UserName      string     `json:"user_name"`
	Title         string     `json:"title"`
	SourceType    SourceType `json:"source_type"`
	SourceURL     string     `json:"source_url"`
}

// Chunk is one contiguous slice of a document's extracted text.
type Chunk struct {
	Index       int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	Text        string `json:"text"`
}

// Point is a record in the vector store.
type Point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// ScoredPoint is a similarity search hit as returned by a vector store.
type ScoredPoint struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Payload keys written on every indexed chunk.
const (
	PayloadText          = "text"
	PayloadUserID        = "user_id"
	PayloadUserName      = "user_name"
	PayloadTitle         = "title"
	PayloadSourceType    = "source_type"
	PayloadSourceURL     = "source_url"
	PayloadLibraryItemID = "library_item_id"
	PayloadChunkIndex    = "chunk_index"
	PayloadTotalChunks   = "total_chunks"
	PayloadTimestamp     = "timestamp"
)

// ChunkPayload builds the metadata stored alongside a chunk's vector.
func ChunkPayload(doc Document, chunk Chunk, indexedAt time.Time) map[string]any {
	return map[string]any{
		PayloadText:          chunk.Text,
		PayloadUserID:        doc.UserID,
		PayloadUserName:      doc.UserName,
		PayloadTitle:         doc.Title,
		PayloadSourceType:    string(doc.SourceType),
		PayloadSourceURL:     doc.SourceURL,
		PayloadLibraryItemID: doc.LibraryItemID,
		PayloadChunkIndex:    chunk.Index,
		PayloadTotalChunks:   chunk.TotalChunks,
		PayloadTimestamp:     float64(indexedAt.UnixNano()) / float64(time.Second),
	}
}

// SearchHit is one ranked chunk returned to a user.
type SearchHit struct {
	Text       string  `json:"text"`
	Title      string  `json:"title"`
	SourceType string  `json:"source_type"`
	Score      float64 `json:"score"`
	ChunkIndex int     `json:"chunk_index"`
}

// TranscriptEntry is one timed caption line.
type TranscriptEntry struct {
	Text     string        `json:"text"`
	Start    time.Duration `json:"start"`
	Duration time.Duration `json:"duration"`
}
