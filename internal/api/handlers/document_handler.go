package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	middleware "github.com/markdave123-py/studyvault/internal/api/middlewares"
	"github.com/markdave123-py/studyvault/internal/core/ingestion_engine"
	"github.com/markdave123-py/studyvault/internal/logger"
	"github.com/markdave123-py/studyvault/internal/models"
)

const maxUploadBytes = 52 << 20

// LibraryService is the part of services.DocumentService the handlers use.
type LibraryService interface {
	UploadPDF(ctx context.Context, doc models.Document, filename, contentType string, data io.Reader) models.IngestResult
	AddYouTube(ctx context.Context, doc models.Document) models.IngestResult
	Delete(ctx context.Context, libraryItemID, userID int64) models.DeleteResult
	Search(ctx context.Context, query string, userID int64, limit int) models.SearchResult
	Transcript(ctx context.Context, url string) models.TranscriptResult
}

type DocumentHandler struct {
	log     *logger.Logger
	service LibraryService
}

func NewDocumentHandler(log *logger.Logger, service LibraryService) *DocumentHandler {
	return &DocumentHandler{log: log.With("handler", "library"), service: service}
}

type youtubeRequest struct {
	URL           string `json:"url"`
	Title         string `json:"title"`
	LibraryItemID int64  `json:"library_item_id"`
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// UploadPDF accepts a multipart form with file, title and library_item_id.
func (h *DocumentHandler) UploadPDF(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	itemID, err := strconv.ParseInt(r.FormValue("library_item_id"), 10, 64)
	if err != nil || itemID <= 0 {
		http.Error(w, "library_item_id must be a positive integer", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "invalid file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		title = strings.TrimSuffix(filename, filepath.Ext(filename))
	}

	doc := models.Document{
		LibraryItemID: itemID,
		UserID:        userID,
		UserName:      middleware.UserName(r.Context()),
		Title:         title,
		SourceType:    models.SourcePDF,
	}

	res := h.service.UploadPDF(r.Context(), doc, filename, contentType, file)
	writeJSON(w, ingestStatus(res), res)
}

// AddYouTube ingests the transcript of a video URL.
func (h *DocumentHandler) AddYouTube(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	var req youtubeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	doc := models.Document{
		LibraryItemID: req.LibraryItemID,
		UserID:        userID,
		UserName:      middleware.UserName(r.Context()),
		Title:         strings.TrimSpace(req.Title),
		SourceType:    models.SourceYouTube,
		SourceURL:     strings.TrimSpace(req.URL),
	}

	res := h.service.AddYouTube(r.Context(), doc)
	writeJSON(w, ingestStatus(res), res)
}

// DeleteDocument removes the caller's copy of a library item. An item with no
// chunks owned by the caller is reported as not found.
func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}
	itemID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || itemID <= 0 {
		http.Error(w, "invalid library item id", http.StatusBadRequest)
		return
	}

	res := h.service.Delete(r.Context(), itemID, userID)
	writeJSON(w, deleteStatus(res), res)
}

func (h *DocumentHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	res := h.service.Search(r.Context(), req.Query, userID, req.Limit)
	status := http.StatusOK
	if !res.OK() {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, res)
}

// Transcript returns the joined transcript for ?url= without indexing it.
func (h *DocumentHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	url := strings.TrimSpace(r.URL.Query().Get("url"))
	if url == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	res := h.service.Transcript(r.Context(), url)
	status := http.StatusOK
	if !res.OK() {
		status = http.StatusNotFound
	}
	writeJSON(w, status, res)
}

// ingestStatus maps a failed stage to the HTTP status the client sees.
func ingestStatus(res models.IngestResult) int {
	if res.OK() {
		return http.StatusCreated
	}
	switch res.FailedStage {
	case string(ingestion_engine.StageStart):
		return http.StatusBadRequest
	case string(ingestion_engine.StageFetch), string(ingestion_engine.StageExtract), string(ingestion_engine.StageChunk):
		return http.StatusUnprocessableEntity
	case string(ingestion_engine.StageEmbed), string(ingestion_engine.StageIndex):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func deleteStatus(res models.DeleteResult) int {
	switch {
	case res.OK() && res.DeletedCount == 0:
		return http.StatusNotFound
	case res.OK():
		return http.StatusOK
	case res.ErrorCode == models.ErrorCodeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
