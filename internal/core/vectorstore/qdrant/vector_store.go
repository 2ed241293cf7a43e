// Package qdrant implements core.VectorStore over the Qdrant REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/markdave123-py/studyvault/internal/core"
	"github.com/markdave123-py/studyvault/internal/logger"
	"github.com/markdave123-py/studyvault/internal/models"
)

const maxErrorBodyBytes = 1024

var _ core.VectorStore = (*VectorStore)(nil)

type VectorStore struct {
	log     *logger.Logger
	baseURL string
	apiKey  string
	http    *http.Client
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type searchResultItem struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

func NewVectorStore(log *logger.Logger, cfg Config) (*VectorStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	s := &VectorStore{
		log:     log.With("service", "QdrantVectorStore"),
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}
	s.log.Info("Qdrant vector store selected", "url", s.baseURL, "authenticated", cfg.APIKey != "")
	return s, nil
}

// Ready checks the server's readiness endpoint.
func (s *VectorStore) Ready(ctx context.Context) error {
	const op = "ready"
	req, err := s.newRequest(ctx, op, http.MethodGet, "/readyz", nil)
	if err != nil {
		return err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant ready check failed", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorRequestFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant ready check returned status=%d", resp.StatusCode),
		}
	}
	return nil
}

func (s *VectorStore) ListCollections(ctx context.Context) ([]string, error) {
	var result struct {
		Collections []struct {
			Name string `json:"name"`
		} `json:"collections"`
	}
	if err := s.doJSON(ctx, "list_collections", http.MethodGet, "/collections", nil, &result); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(result.Collections))
	for _, c := range result.Collections {
		names = append(names, c.Name)
	}
	return names, nil
}

// CreateCollection returns an OperationError when the collection already
// exists. Qdrant answers 400 for that on current releases and 409 on some
// older ones, so callers should re-list rather than match a status.
func (s *VectorStore) CreateCollection(ctx context.Context, name string, vectorSize int, distance core.Distance) error {
	const op = "create_collection"
	if vectorSize <= 0 {
		return opErr(op, OperationErrorValidation, "vector size must be positive", nil)
	}
	req := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": string(distance),
		},
	}
	return s.doJSON(ctx, op, http.MethodPut, collectionPath(name, ""), req, nil)
}

func (s *VectorStore) Upsert(ctx context.Context, collection string, points []models.Point, wait bool) error {
	const op = "upsert"
	if len(points) == 0 {
		return nil
	}
	body := make([]map[string]any, 0, len(points))
	for _, p := range points {
		if strings.TrimSpace(p.ID) == "" {
			return opErr(op, OperationErrorValidation, "point id is required", nil)
		}
		if len(p.Vector) == 0 {
			return opErr(op, OperationErrorValidation, fmt.Sprintf("point %q has empty vector", p.ID), nil)
		}
		body = append(body, map[string]any{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": p.Payload,
		})
	}
	path := collectionPath(collection, "/points?wait="+strconv.FormatBool(wait))
	return s.doJSON(ctx, op, http.MethodPut, path, map[string]any{"points": body}, nil)
}

func (s *VectorStore) Count(ctx context.Context, collection string, filter core.Filter) (int, error) {
	const op = "count"
	qf, err := translateFilter(filter)
	if err != nil {
		return 0, err
	}
	req := map[string]any{"exact": true}
	if qf != nil {
		req["filter"] = qf
	}
	var result struct {
		Count int `json:"count"`
	}
	if err := s.doJSON(ctx, op, http.MethodPost, collectionPath(collection, "/points/count"), req, &result); err != nil {
		return 0, err
	}
	return result.Count, nil
}

func (s *VectorStore) Delete(ctx context.Context, collection string, filter core.Filter, wait bool) error {
	const op = "delete"
	qf, err := translateFilter(filter)
	if err != nil {
		return err
	}
	// An empty filter would wipe the whole collection.
	if qf == nil {
		return opErr(op, OperationErrorValidation, "delete requires a filter", nil)
	}
	path := collectionPath(collection, "/points/delete?wait="+strconv.FormatBool(wait))
	return s.doJSON(ctx, op, http.MethodPost, path, map[string]any{"filter": qf}, nil)
}

func (s *VectorStore) Search(ctx context.Context, collection string, vector []float32, filter core.Filter, limit int) ([]models.ScoredPoint, error) {
	const op = "search"
	if len(vector) == 0 {
		return nil, opErr(op, OperationErrorValidation, "query vector required", nil)
	}
	if limit <= 0 {
		limit = 10
	}
	qf, err := translateFilter(filter)
	if err != nil {
		return nil, err
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}
	if qf != nil {
		req["filter"] = qf
	}

	var raw []searchResultItem
	if err := s.doJSON(ctx, op, http.MethodPost, collectionPath(collection, "/points/search"), req, &raw); err != nil {
		return nil, err
	}
	out := make([]models.ScoredPoint, 0, len(raw))
	for _, item := range raw {
		out = append(out, models.ScoredPoint{
			ID:      decodePointID(item.ID),
			Score:   item.Score,
			Payload: item.Payload,
		})
	}
	return out, nil
}

func (s *VectorStore) newRequest(ctx context.Context, op, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return nil, opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	return req, nil
}

func (s *VectorStore) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := s.newRequest(ctx, op, method, path, body)
	if err != nil {
		return err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorRequestFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant envelope failed", err)
	}
	if statusErr := parseEnvelopeStatus(env.Status); statusErr != "" {
		return &OperationError{
			Code:       OperationErrorRequestFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    statusErr,
		}
	}

	if out == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

func classifyHTTPCallError(op, message string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}

	var statusString string
	if err := json.Unmarshal(raw, &statusString); err == nil {
		if strings.EqualFold(statusString, "ok") || strings.EqualFold(statusString, "acknowledged") ||
			strings.EqualFold(statusString, "completed") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", statusString)
	}

	var statusObject struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &statusObject); err == nil && strings.TrimSpace(statusObject.Error) != "" {
		return strings.TrimSpace(statusObject.Error)
	}
	return fmt.Sprintf("qdrant status=%s", status)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

func decodePointID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var idString string
	if err := json.Unmarshal(raw, &idString); err == nil {
		return idString
	}
	var idNumber int64
	if err := json.Unmarshal(raw, &idNumber); err == nil {
		return strconv.FormatInt(idNumber, 10)
	}
	return strings.TrimSpace(string(raw))
}

func collectionPath(name, suffix string) string {
	return "/collections/" + url.PathEscape(name) + suffix
}
