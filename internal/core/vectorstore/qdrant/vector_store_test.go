package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/markdave123-py/studyvault/internal/core"
	"github.com/markdave123-py/studyvault/internal/logger"
	"github.com/markdave123-py/studyvault/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func newTestVectorStore(t *testing.T, roundTrip func(*http.Request) (*http.Response, error)) *VectorStore {
	t.Helper()
	return &VectorStore{
		log:     logger.NewNop(),
		baseURL: "http://qdrant.local",
		apiKey:  "secret-key",
		http:    &http.Client{Transport: roundTripFunc(roundTrip)},
	}
}

func okResponse(t *testing.T, result any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"result": result, "status": "ok", "time": 0.001})
	require.NoError(t, err)
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewReader(raw)),
	}
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func TestListCollections(t *testing.T) {
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/collections", r.URL.Path)
		assert.Equal(t, "secret-key", r.Header.Get("api-key"))
		return okResponse(t, map[string]any{
			"collections": []map[string]any{{"name": "studyvault_documents"}, {"name": "other"}},
		}), nil
	})

	names, err := s.ListCollections(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"studyvault_documents", "other"}, names)
}

func TestCreateCollectionRequestShape(t *testing.T) {
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/collections/docs", r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, map[string]any{"size": float64(1536), "distance": "Cosine"}, body["vectors"])
		return okResponse(t, true), nil
	})
	require.NoError(t, s.CreateCollection(context.Background(), "docs", 1536, core.DistanceCosine))
}

func TestCreateCollectionExistingIsOperationError(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusConflict} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			s := newTestVectorStore(t, func(*http.Request) (*http.Response, error) {
				return &http.Response{
					StatusCode: status,
					Header:     make(http.Header),
					Body:       io.NopCloser(bytes.NewBufferString(`{"status":{"error":"Wrong input: Collection ` + "`docs`" + ` already exists!"}}`)),
				}, nil
			})
			err := s.CreateCollection(context.Background(), "docs", 3, core.DistanceCosine)
			var opErr *OperationError
			require.True(t, errors.As(err, &opErr))
			assert.Equal(t, status, opErr.StatusCode)
			assert.Contains(t, err.Error(), "already exists")
		})
	}
}

func TestUpsertRequestShape(t *testing.T) {
	var captured map[string]any
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/collections/docs/points", r.URL.Path)
		assert.Equal(t, "wait=true", r.URL.RawQuery)
		captured = decodeBody(t, r)
		return okResponse(t, map[string]any{"operation_id": 1, "status": "completed"}), nil
	})

	err := s.Upsert(context.Background(), "docs", []models.Point{
		{ID: "8c4d5a0e-0000-4000-8000-000000000001", Vector: []float32{1, 2, 3}, Payload: map[string]any{"user_id": int64(7)}},
	}, true)
	require.NoError(t, err)

	points, ok := captured["points"].([]any)
	require.True(t, ok)
	require.Len(t, points, 1)
	first := points[0].(map[string]any)
	assert.Equal(t, "8c4d5a0e-0000-4000-8000-000000000001", first["id"])
	assert.Equal(t, []any{float64(1), float64(2), float64(3)}, first["vector"])
	assert.Equal(t, map[string]any{"user_id": float64(7)}, first["payload"])
}

func TestUpsertValidatesPoints(t *testing.T) {
	s := newTestVectorStore(t, func(*http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	})
	err := s.Upsert(context.Background(), "docs", []models.Point{{ID: "", Vector: []float32{1}}}, true)
	var opErr *OperationError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, OperationErrorValidation, opErr.Code)

	require.NoError(t, s.Upsert(context.Background(), "docs", nil, true))
}

func TestCountAndDeleteUseFilter(t *testing.T) {
	var paths []string
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		paths = append(paths, r.URL.Path+"?"+r.URL.RawQuery)
		body := decodeBody(t, r)
		assert.Equal(t, map[string]any{
			"must": []any{map[string]any{"key": "library_item_id", "match": map[string]any{"value": float64(42)}}},
		}, body["filter"])
		if r.URL.Path == "/collections/docs/points/count" {
			assert.Equal(t, true, body["exact"])
			return okResponse(t, map[string]any{"count": 3}), nil
		}
		return okResponse(t, map[string]any{"operation_id": 2, "status": "completed"}), nil
	})

	filter := core.NewFilter(core.FieldEquals("library_item_id", int64(42)))
	n, err := s.Count(context.Background(), "docs", filter)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, s.Delete(context.Background(), "docs", filter, true))

	assert.Equal(t, []string{"/collections/docs/points/count?", "/collections/docs/points/delete?wait=true"}, paths)
}

func TestDeleteRefusesEmptyFilter(t *testing.T) {
	s := newTestVectorStore(t, func(*http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	})
	err := s.Delete(context.Background(), "docs", core.Filter{}, true)
	assert.Error(t, err)
}

func TestSearchDecodesResults(t *testing.T) {
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		assert.Equal(t, "/collections/docs/points/search", r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, float64(5), body["limit"])
		assert.Equal(t, true, body["with_payload"])
		assert.NotNil(t, body["filter"])
		return okResponse(t, []map[string]any{
			{"id": "a", "score": 0.9, "payload": map[string]any{"text": "hello", "user_id": 7}},
			{"id": 12, "score": 0.4, "payload": map[string]any{"text": "bye", "user_id": 7}},
		}), nil
	})

	hits, err := s.Search(context.Background(), "docs", []float32{1, 0, 0},
		core.NewFilter(core.FieldEquals("user_id", int64(7))), 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.Equal(t, "12", hits[1].ID)
	assert.Equal(t, "hello", hits[0].Payload["text"])
	assert.InDelta(t, 0.9, hits[0].Score, 1e-9)
}

func TestHTTPErrorsAreClassified(t *testing.T) {
	s := newTestVectorStore(t, func(*http.Request) (*http.Response, error) {
		return nil, fmt.Errorf("connection refused")
	})
	_, err := s.ListCollections(context.Background())
	var opErr *OperationError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, OperationErrorTransportFailed, opErr.Code)

	s = newTestVectorStore(t, func(*http.Request) (*http.Response, error) {
		return nil, context.DeadlineExceeded
	})
	_, err = s.ListCollections(context.Background())
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, OperationErrorTimeout, opErr.Code)
}

func TestParseEnvelopeStatus(t *testing.T) {
	assert.Empty(t, parseEnvelopeStatus(json.RawMessage(`"ok"`)))
	assert.Empty(t, parseEnvelopeStatus(nil))
	assert.Equal(t, "boom", parseEnvelopeStatus(json.RawMessage(`{"error":"boom"}`)))
	assert.Contains(t, parseEnvelopeStatus(json.RawMessage(`"weird"`)), "weird")
}
