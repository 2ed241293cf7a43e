package core

import (
	"context"
)

// TextExtractor converts a stored source document into one normalized text blob.
type TextExtractor interface {
	// ExtractText loads the document at source (a local path or an object
	// storage URL) and returns its text. Failures are *ExtractionError.
	ExtractText(ctx context.Context, source string) (string, error)
}
