package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterMatches(t *testing.T) {
	payload := map[string]any{"user_id": float64(7), "source_type": "pdf"}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty filter", Filter{}, true},
		{"int equals decoded float", NewFilter(FieldEquals("user_id", int64(7))), true},
		{"other user", NewFilter(FieldEquals("user_id", int64(8))), false},
		{"missing field", NewFilter(FieldEquals("title", "x")), false},
		{"not equal", NewFilter(Condition{Field: "source_type", Op: OpNe, Value: "youtube"}), true},
		{"in list", NewFilter(Condition{Field: "source_type", Op: OpIn, Value: []string{"youtube", "pdf"}}), true},
		{"in list miss", NewFilter(Condition{Field: "source_type", Op: OpIn, Value: []any{"youtube"}}), false},
		{"conjunction", NewFilter(FieldEquals("user_id", 7)).And(FieldEquals("source_type", "youtube")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(payload))
		})
	}
}

func TestFilterAndDoesNotAlias(t *testing.T) {
	base := NewFilter(FieldEquals("a", 1))
	left := base.And(FieldEquals("b", 2))
	right := base.And(FieldEquals("c", 3))

	assert.Len(t, base.Must, 1)
	assert.Equal(t, "b", left.Must[1].Field)
	assert.Equal(t, "c", right.Must[1].Field)
}

func TestScalarString(t *testing.T) {
	assert.Equal(t, "42", ScalarString(int64(42)))
	assert.Equal(t, "42", ScalarString(float64(42)))
	assert.Equal(t, "0.5", ScalarString(0.5))
	assert.Equal(t, "7", ScalarString(json.Number("7")))
	assert.Equal(t, "pdf", ScalarString("pdf"))
}

func TestTypedErrorsMatchSentinels(t *testing.T) {
	cause := errors.New("boom")

	errs := map[error]error{
		&ExtractionError{Source: "a.pdf", Err: cause}:           ErrExtraction,
		&EmbeddingError{ChunkIndex: 2, Attempts: 3, Err: cause}: ErrEmbedding,
		&IndexingError{Op: "upsert", Err: cause}:                ErrIndexing,
		&TranscriptUnavailableError{URL: "u"}:                   ErrTranscriptUnavailable,
		&ValidationError{Field: "vectors", Message: "x"}:        ErrValidation,
	}
	for err, sentinel := range errs {
		wrapped := fmt.Errorf("stage: %w", err)
		assert.ErrorIs(t, wrapped, sentinel)
	}

	assert.ErrorIs(t, &EmbeddingError{Err: cause}, cause)
	assert.Contains(t, (&ExtractionError{Source: "/tmp/a.pdf", Err: cause}).Error(), "/tmp/a.pdf")
	assert.Contains(t, (&EmbeddingError{ChunkIndex: 4, Attempts: 3, Err: cause}).Error(), "chunk 4")
}
