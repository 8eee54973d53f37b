package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/applicant-rag/internal/core/domain"
)

// errCollectionMissing is returned by reads against a collection that was
// never created; callers treat it as "no chunks yet".
var errCollectionMissing = errors.New("qdrant collection missing")

// Client stores application chunks as qdrant points. Every read carries a
// job_id filter so chunks of different jobs never mix.
type Client struct {
	baseURL    string
	collection string
	dimension  int
	httpClient *http.Client

	ensureMu          sync.Mutex
	ensuredCollection bool

	seqMu   sync.Mutex
	lastSeq int64
}

func New(baseURL, collection string, dimension int) *Client {
	if dimension <= 0 {
		dimension = domain.DefaultEmbeddingDimension
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		dimension:  dimension,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

func (c *Client) Insert(ctx context.Context, chunk *domain.ApplicationChunk) error {
	if len(chunk.Embedding) != c.dimension {
		return domain.WrapError(domain.ErrInvalidInput, "qdrant insert",
			fmt.Errorf("embedding has %d dimensions, collection expects %d", len(chunk.Embedding), c.dimension))
	}
	if err := c.ensureCollection(ctx); err != nil {
		return err
	}

	reqBody := map[string]any{"points": []point{{
		ID:     chunk.ID,
		Vector: chunk.Embedding,
		Payload: map[string]any{
			"job_id":          chunk.JobID,
			"applicant_email": chunk.ApplicantEmail,
			"applicant_name":  chunk.ApplicantName,
			"content":         chunk.Content,
			"metadata":        chunk.Metadata,
			"seq":             c.nextSeq(),
			"created_at":      chunk.CreatedAt.Format(time.RFC3339Nano),
		},
	}}}

	path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
	if err := c.doJSON(ctx, http.MethodPut, path, reqBody, nil, "upsert"); err != nil {
		return err
	}
	return nil
}

func (c *Client) ExistsApplicant(ctx context.Context, jobID, email string) (bool, error) {
	reqBody := map[string]any{
		"filter":       mustMatch(map[string]string{"job_id": jobID, "applicant_email": email}),
		"limit":        1,
		"with_payload": false,
		"with_vector":  false,
	}

	var scrollResp struct {
		Result struct {
			Points []json.RawMessage `json:"points"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/scroll", c.collection)
	err := c.doJSON(ctx, http.MethodPost, path, reqBody, &scrollResp, "scroll")
	if errors.Is(err, errCollectionMissing) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(scrollResp.Result.Points) > 0, nil
}

// tieOverfetch is how many points beyond limit a search requests.
const tieOverfetch = 16

func (c *Client) SearchSimilar(ctx context.Context, jobID string, query []float32, limit int) ([]domain.RetrievedChunk, error) {
	if limit <= 0 {
		limit = domain.DefaultRetrievalLimit
	}
	// Qdrant cuts at limit before our seq tiebreak runs, so ask for extra
	// candidates to keep equal scores at the boundary in insertion order.
	reqBody := map[string]any{
		"vector":       query,
		"limit":        limit + tieOverfetch,
		"with_payload": true,
		"filter":       mustMatch(map[string]string{"job_id": jobID}),
	}

	var searchResp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", c.collection)
	err := c.doJSON(ctx, http.MethodPost, path, reqBody, &searchResp, "search")
	if errors.Is(err, errCollectionMissing) {
		return []domain.RetrievedChunk{}, nil
	}
	if err != nil {
		return nil, err
	}

	type ranked struct {
		chunk domain.RetrievedChunk
		seq   float64
	}
	results := make([]ranked, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		metadata, _ := r.Payload["metadata"].(map[string]any)
		seq, _ := r.Payload["seq"].(float64)
		results = append(results, ranked{
			chunk: domain.RetrievedChunk{
				ID:             fmt.Sprintf("%v", r.ID),
				JobID:          getStringPayload(r.Payload, "job_id"),
				ApplicantName:  getStringPayload(r.Payload, "applicant_name"),
				ApplicantEmail: getStringPayload(r.Payload, "applicant_email"),
				Content:        getStringPayload(r.Payload, "content"),
				Metadata:       metadata,
				Score:          r.Score,
			},
			seq: seq,
		})
	}
	// Equal scores fall back to insertion order.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].chunk.Score != results[j].chunk.Score {
			return results[i].chunk.Score > results[j].chunk.Score
		}
		return results[i].seq < results[j].seq
	})

	if len(results) > limit {
		results = results[:limit]
	}
	out := make([]domain.RetrievedChunk, 0, len(results))
	for _, r := range results {
		out = append(out, r.chunk)
	}
	return out, nil
}

func (c *Client) ensureCollection(ctx context.Context) error {
	c.ensureMu.Lock()
	if c.ensuredCollection {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     c.dimension,
			"distance": "Cosine",
		},
	}
	path := fmt.Sprintf("/collections/%s", c.collection)
	err := c.doJSON(ctx, http.MethodPut, path, reqBody, nil, "ensure collection")
	// 409 when the collection already exists (depends on version/config).
	var statusErr *StatusError
	if err != nil && !(errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict) {
		return err
	}

	if err := c.ensureIndex(ctx, "job_id"); err != nil {
		return err
	}
	if err := c.ensureIndex(ctx, "applicant_email"); err != nil {
		return err
	}

	c.ensureMu.Lock()
	c.ensuredCollection = true
	c.ensureMu.Unlock()
	return nil
}

func (c *Client) ensureIndex(ctx context.Context, field string) error {
	reqBody := map[string]any{
		"field_name":   field,
		"field_schema": "keyword",
	}
	path := fmt.Sprintf("/collections/%s/index?wait=true", c.collection)
	return c.doJSON(ctx, http.MethodPut, path, reqBody, nil, "create payload index")
}

// nextSeq hands out strictly increasing microsecond stamps. Microseconds stay
// exact through JSON float decoding.
func (c *Client) nextSeq() int64 {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()
	seq := time.Now().UnixMicro()
	if seq <= c.lastSeq {
		seq = c.lastSeq + 1
	}
	c.lastSeq = seq
	return seq
}

type StatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("qdrant %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("qdrant %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && method == http.MethodPost {
		return fmt.Errorf("qdrant %s: %w", operation, errCollectionMissing)
	}
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &StatusError{Operation: operation, StatusCode: resp.StatusCode, Status: resp.Status, Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func mustMatch(fields map[string]string) map[string]any {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	must := make([]map[string]any, 0, len(keys))
	for _, key := range keys {
		must = append(must, map[string]any{
			"key":   key,
			"match": map[string]any{"value": fields[key]},
		})
	}
	return map[string]any{"must": must}
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
