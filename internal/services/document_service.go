package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/markdave123-py/studyvault/internal/core"
	"github.com/markdave123-py/studyvault/internal/core/ingestion_engine"
	objectclient "github.com/markdave123-py/studyvault/internal/core/object-client"
	"github.com/markdave123-py/studyvault/internal/logger"
	"github.com/markdave123-py/studyvault/internal/models"
)

// SourceFileName is the stored name of every uploaded PDF. A fixed name lets
// deletion find the file from the owner and library item alone.
const SourceFileName = "source.pdf"

// UploadStage is reported as the failed stage when storing the file fails
// before the pipeline starts.
const UploadStage = "upload"

// DocumentService stores uploaded PDFs and hands their location to the
// ingestion pipeline. Files go to object storage when it is configured and to
// a local directory otherwise.
type DocumentService struct {
	log       *logger.Logger
	storage   core.ObjectClient
	bucket    string
	uploadDir string
	ingestor  ingestion_engine.Ingestor
}

func NewDocumentService(log *logger.Logger, storage core.ObjectClient, bucket, uploadDir string, ing ingestion_engine.Ingestor) *DocumentService {
	return &DocumentService{
		log:       log.With("service", "documents"),
		storage:   storage,
		bucket:    bucket,
		uploadDir: uploadDir,
		ingestor:  ing,
	}
}

// UploadPDF persists the file and runs the PDF pipeline on it.
func (s *DocumentService) UploadPDF(ctx context.Context, doc models.Document, filename, contentType string, data io.Reader) models.IngestResult {
	location, err := s.store(ctx, doc, filename, contentType, data)
	if err != nil {
		s.log.Error("store upload failed", "library_item_id", doc.LibraryItemID, "error", err)
		return models.IngestResult{Status: models.StatusError, FailedStage: UploadStage, Error: err.Error()}
	}
	doc.SourceURL = location
	return s.ingestor.ProcessPDF(ctx, doc)
}

func (s *DocumentService) AddYouTube(ctx context.Context, doc models.Document) models.IngestResult {
	return s.ingestor.ProcessYouTube(ctx, doc)
}

// Delete removes the caller's indexed chunks of a library item and then the
// stored PDF, if any. Removing a file that is already gone is not an error.
func (s *DocumentService) Delete(ctx context.Context, libraryItemID, userID int64) models.DeleteResult {
	res := s.ingestor.DeleteDocument(ctx, libraryItemID, userID)
	if !res.OK() {
		return res
	}
	if err := s.removeSource(ctx, libraryItemID, userID); err != nil {
		s.log.Error("remove stored file failed", "library_item_id", libraryItemID, "user_id", userID, "error", err)
		res.Status = models.StatusError
		res.Error = err.Error()
	}
	return res
}

func (s *DocumentService) Search(ctx context.Context, query string, userID int64, limit int) models.SearchResult {
	return s.ingestor.Search(ctx, query, userID, limit)
}

func (s *DocumentService) store(ctx context.Context, doc models.Document, filename, contentType string, data io.Reader) (string, error) {
	key := sourceKey(doc.LibraryItemID, doc.UserID)
	s.log.Debug("storing upload", "library_item_id", doc.LibraryItemID, "filename", filename, "key", key)

	if s.storage != nil {
		uploadCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		return s.storage.UploadFile(uploadCtx, s.bucket, key, data, contentType)
	}

	path := s.localPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close upload file: %w", err)
	}
	return path, nil
}

func (s *DocumentService) Transcript(ctx context.Context, url string) models.TranscriptResult {
	return s.ingestor.FetchTranscript(ctx, url)
}

func (s *DocumentService) removeSource(ctx context.Context, libraryItemID, userID int64) error {
	key := sourceKey(libraryItemID, userID)
	if s.storage != nil {
		return s.storage.DeleteFile(ctx, s.bucket, key)
	}
	if err := os.Remove(s.localPath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove upload file: %w", err)
	}
	return nil
}

func (s *DocumentService) localPath(key string) string {
	return filepath.Join(s.uploadDir, filepath.FromSlash(key))
}

func sourceKey(libraryItemID, userID int64) string {
	return objectclient.ObjectKey(
		strconv.FormatInt(userID, 10),
		strconv.FormatInt(libraryItemID, 10),
		SourceFileName,
	)
}
