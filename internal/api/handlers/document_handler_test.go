package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	middleware "github.com/markdave123-py/studyvault/internal/api/middlewares"
	"github.com/markdave123-py/studyvault/internal/logger"
	"github.com/markdave123-py/studyvault/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLibrary struct {
	ingest    models.IngestResult
	lastDoc   models.Document
	lastFile  string
	lastBody  string
	lastQuery string
	lastLimit int
	lastUser  int64
	deleted   int64
	deletedBy int64
	delete    models.DeleteResult
}

func (f *fakeLibrary) UploadPDF(_ context.Context, doc models.Document, filename, _ string, data io.Reader) models.IngestResult {
	f.lastDoc = doc
	f.lastFile = filename
	b, _ := io.ReadAll(data)
	f.lastBody = string(b)
	return f.ingest
}

func (f *fakeLibrary) AddYouTube(_ context.Context, doc models.Document) models.IngestResult {
	f.lastDoc = doc
	return f.ingest
}

func (f *fakeLibrary) Delete(_ context.Context, id, userID int64) models.DeleteResult {
	f.deleted, f.deletedBy = id, userID
	if f.delete.Status == "" {
		return models.DeleteResult{Status: models.StatusSuccess, DeletedCount: 3}
	}
	return f.delete
}

func (f *fakeLibrary) Search(_ context.Context, query string, userID int64, limit int) models.SearchResult {
	f.lastQuery, f.lastUser, f.lastLimit = query, userID, limit
	return models.SearchResult{Status: models.StatusSuccess, Results: []models.SearchHit{{Text: "hit", Score: 0.9}}}
}

func (f *fakeLibrary) Transcript(context.Context, string) models.TranscriptResult {
	return models.TranscriptResult{Status: models.StatusError, Error: "no transcript"}
}

func newRouter(svc LibraryService) http.Handler {
	h := NewDocumentHandler(logger.NewNop(), svc)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithUser(r.Context(), 7, "ada")))
		})
	})
	r.Post("/library/pdf", h.UploadPDF)
	r.Post("/library/youtube", h.AddYouTube)
	r.Delete("/library/{id}", h.DeleteDocument)
	r.Post("/search", h.Search)
	r.Get("/transcript", h.Transcript)
	return r
}

func multipartPDF(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", "../../lecture.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadPDF(t *testing.T) {
	svc := &fakeLibrary{ingest: models.IngestResult{Status: models.StatusSuccess, ChunkCount: 2}}
	body, ct := multipartPDF(t, map[string]string{"library_item_id": "42"})

	req := httptest.NewRequest(http.MethodPost, "/library/pdf", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "lecture.pdf", svc.lastFile)
	assert.Equal(t, "%PDF", svc.lastBody)
	assert.Equal(t, int64(42), svc.lastDoc.LibraryItemID)
	assert.Equal(t, int64(7), svc.lastDoc.UserID)
	assert.Equal(t, "ada", svc.lastDoc.UserName)
	assert.Equal(t, "lecture", svc.lastDoc.Title)
	assert.Equal(t, models.SourcePDF, svc.lastDoc.SourceType)
}

func TestUploadPDFRejectsBadItemID(t *testing.T) {
	svc := &fakeLibrary{}
	body, ct := multipartPDF(t, map[string]string{"library_item_id": "zero"})

	req := httptest.NewRequest(http.MethodPost, "/library/pdf", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddYouTubeMapsFailedStage(t *testing.T) {
	cases := map[string]int{
		"start":  http.StatusBadRequest,
		"fetch":  http.StatusUnprocessableEntity,
		"embed":  http.StatusBadGateway,
		"index":  http.StatusBadGateway,
		"upload": http.StatusInternalServerError,
	}
	for stage, want := range cases {
		t.Run(stage, func(t *testing.T) {
			svc := &fakeLibrary{ingest: models.IngestResult{Status: models.StatusError, FailedStage: stage, Error: stage + ": boom"}}
			req := httptest.NewRequest(http.MethodPost, "/library/youtube",
				strings.NewReader(`{"url":" https://youtu.be/dQw4w9WgXcQ ","title":"Talk","library_item_id":9}`))
			rec := httptest.NewRecorder()
			newRouter(svc).ServeHTTP(rec, req)

			assert.Equal(t, want, rec.Code)
			assert.Equal(t, "https://youtu.be/dQw4w9WgXcQ", svc.lastDoc.SourceURL)

			var res models.IngestResult
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			assert.Equal(t, stage, res.FailedStage)
		})
	}
}

func TestDeleteDocument(t *testing.T) {
	svc := &fakeLibrary{}
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/library/42", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), svc.deleted)
	assert.Equal(t, int64(7), svc.deletedBy)
	assert.Contains(t, rec.Body.String(), `"deleted_count":3`)

	rec = httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/library/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchUsesAuthenticatedUser(t *testing.T) {
	svc := &fakeLibrary{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"query":"photosynthesis","limit":3}`))
	newRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "photosynthesis", svc.lastQuery)
	assert.Equal(t, int64(7), svc.lastUser)
	assert.Equal(t, 3, svc.lastLimit)

	rec = httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"query":"  "}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTranscriptNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(&fakeLibrary{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transcript?url=https://youtu.be/x", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	newRouter(&fakeLibrary{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transcript", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteDocumentStatuses(t *testing.T) {
	cases := map[string]struct {
		res  models.DeleteResult
		want int
	}{
		"nothing owned": {models.DeleteResult{Status: models.StatusSuccess}, http.StatusNotFound},
		"invalid":       {models.DeleteResult{Status: models.StatusError, ErrorCode: models.ErrorCodeValidation, Error: "bad"}, http.StatusBadRequest},
		"store down":    {models.DeleteResult{Status: models.StatusError, Error: "count failed"}, http.StatusInternalServerError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &fakeLibrary{delete: tc.res}
			rec := httptest.NewRecorder()
			newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/library/5", nil))
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
