package ingestion_engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"code.sajari.com/docconv"
	"github.com/markdave123-py/studyvault/internal/core"
	objectclient "github.com/markdave123-py/studyvault/internal/core/object-client"
	"github.com/markdave123-py/studyvault/internal/core/workerpool"
	"github.com/markdave123-py/studyvault/internal/logger"
)

var _ core.TextExtractor = (*PDFExtractor)(nil)

var errNoText = errors.New("document contains no extractable text")

// PDFExtractor reads a PDF from local disk or object storage and returns its
// pages joined by a blank line. Parsing runs on the worker pool so request
// goroutines only wait on a future.
type PDFExtractor struct {
	log     *logger.Logger
	pool    *workerpool.Pool
	objects core.ObjectClient // nil when object storage is not configured

	convert  func(r io.Reader) (string, error)
	readFile func(name string) ([]byte, error)
}

func NewPDFExtractor(log *logger.Logger, pool *workerpool.Pool, objects core.ObjectClient) *PDFExtractor {
	return &PDFExtractor{
		log:      log.With("service", "pdf_extractor"),
		pool:     pool,
		objects:  objects,
		convert:  convertPDF,
		readFile: os.ReadFile,
	}
}

func (e *PDFExtractor) ExtractText(ctx context.Context, source string) (string, error) {
	text, err := workerpool.Do(ctx, e.pool, func(ctx context.Context) (string, error) {
		data, err := e.load(ctx, source)
		if err != nil {
			return "", err
		}
		raw, err := e.convert(bytes.NewReader(data))
		if err != nil {
			return "", fmt.Errorf("parse pdf: %w", err)
		}
		return JoinPages(raw), nil
	})
	if err != nil {
		var extractErr *core.ExtractionError
		if errors.As(err, &extractErr) {
			return "", err
		}
		return "", &core.ExtractionError{Source: source, Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return "", &core.ExtractionError{Source: source, Err: errNoText}
	}

	e.log.Debug("extracted pdf", "source", source, "characters", len([]rune(text)))
	return text, nil
}

func (e *PDFExtractor) load(ctx context.Context, source string) ([]byte, error) {
	if bucket, key, ok := objectclient.ParseObjectURL(source); ok {
		if e.objects == nil {
			return nil, fmt.Errorf("object storage is not configured")
		}
		return e.objects.GetFile(ctx, bucket, key)
	}
	return e.readFile(source)
}

// JoinPages normalizes form-feed separated page text: each page is trimmed,
// blank pages are dropped, and pages are joined with a blank line in order.
func JoinPages(raw string) string {
	pages := strings.Split(raw, "\f")
	kept := make([]string, 0, len(pages))
	for _, p := range pages {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}

func convertPDF(r io.Reader) (string, error) {
	body, _, err := docconv.ConvertPDF(r)
	return body, err
}
