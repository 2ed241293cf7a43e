package models

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// IngestResult is returned by both upload pipelines.
type IngestResult struct {
	Status         Status   `json:"status"`
	PointIDs       []string `json:"point_ids,omitempty"`
	ChunkCount     int      `json:"chunk_count,omitempty"`
	CharacterCount int      `json:"character_count,omitempty"`
	FailedStage    string   `json:"failed_stage,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// ErrorCodeValidation marks a request rejected before touching any store.
const ErrorCodeValidation = "validation"

// DeleteResult is returned by document deletion.
type DeleteResult struct {
	Status       Status `json:"status"`
	DeletedCount int    `json:"deleted_count"`
	ErrorCode    string `json:"error_code,omitempty"`
	Error        string `json:"error,omitempty"`
}

// SearchResult is returned by user-scoped search.
type SearchResult struct {
	Status  Status      `json:"status"`
	Results []SearchHit `json:"results"`
	Error   string      `json:"error,omitempty"`
}

// TranscriptResult is returned by a standalone transcript fetch.
type TranscriptResult struct {
	Status     Status `json:"status"`
	Transcript string `json:"transcript,omitempty"`
	Length     int    `json:"length,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (r IngestResult) OK() bool     { return r.Status == StatusSuccess }
func (r DeleteResult) OK() bool     { return r.Status == StatusSuccess }
func (r SearchResult) OK() bool     { return r.Status == StatusSuccess }
func (r TranscriptResult) OK() bool { return r.Status == StatusSuccess }
