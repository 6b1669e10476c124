package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/engram-ai/engram/src/memory/model"
)

// QdrantIndex backs the VectorIndex contract with a remote Qdrant
// collection over its HTTP API. Points are keyed by the memory record's
// UUID; owner and type live in the payload and are matched server-side.
type QdrantIndex struct {
	baseURL    string
	apiKey     string
	collection string
	client     *http.Client
}

// qdrantStatus supports both `status: "ok"` and `status: {"error":"..."}`.
type qdrantStatus struct {
	State string
	Error string
}

func (s *qdrantStatus) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		s.State = strings.ToLower(v)
		return nil
	}
	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	if obj.Error != "" {
		s.State = "error"
		s.Error = obj.Error
	}
	return nil
}

type qdrantEnvelope[T any] struct {
	Status qdrantStatus `json:"status"`
	Time   float64      `json:"time"`
	Result T            `json:"result"`
}

type qdrantPoint struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

type qdrantCountResult struct {
	Count int `json:"count"`
}

// NewQdrantIndex creates a Qdrant-backed index. The collection must exist
// and be configured for cosine distance at the embedder's dimensionality.
func NewQdrantIndex(baseURL, collection, apiKey string) *QdrantIndex {
	if baseURL == "" {
		baseURL = "http://localhost:6333"
	}
	return &QdrantIndex{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		collection: collection,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

// EnsureCollection idempotently creates the collection for the given vector
// size with cosine distance.
func (ix *QdrantIndex) EnsureCollection(ctx context.Context, vectorSize int) error {
	if ix.collection == "" {
		return errors.New("qdrant collection is empty")
	}
	req := map[string]any{
		"vectors": map[string]any{"size": vectorSize, "distance": "Cosine"},
	}
	var resp qdrantEnvelope[json.RawMessage]
	err := ix.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", url.PathEscape(ix.collection)), req, &resp)
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return nil
	}
	return err
}

func (ix *QdrantIndex) Upsert(ctx context.Context, entry Entry) error {
	if ix == nil {
		return errors.New("nil qdrant index")
	}
	if entry.ID == "" {
		return errors.New("index entry id is empty")
	}
	if len(entry.Vector) == 0 {
		return errors.New("index entry vector is empty")
	}

	payload := map[string]any{"text": entry.Text}
	for k, v := range entry.Metadata {
		payload[k] = v
	}

	req := map[string]any{
		"points": []map[string]any{{
			"id":      entry.ID,
			"vector":  entry.Vector,
			"payload": payload,
		}},
	}
	var resp qdrantEnvelope[json.RawMessage]
	if err := ix.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points?wait=true", url.PathEscape(ix.collection)), req, &resp); err != nil {
		return err
	}
	if !strings.EqualFold(resp.Status.State, "ok") && resp.Status.Error != "" {
		return errors.New(resp.Status.Error)
	}
	return nil
}

func (ix *QdrantIndex) Delete(ctx context.Context, id string) error {
	if ix == nil || id == "" {
		return nil
	}
	req := map[string]any{"points": []string{id}}
	return ix.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/delete?wait=true", url.PathEscape(ix.collection)), req, nil)
}

func (ix *QdrantIndex) Query(ctx context.Context, vector []float32, k int, filter Filter) ([]Result, error) {
	if ix == nil || k <= 0 || len(vector) == 0 {
		return nil, nil
	}

	reqBody := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	if len(filter) > 0 {
		must := make([]map[string]any, 0, len(filter))
		for key, value := range filter {
			must = append(must, map[string]any{
				"key":   key,
				"match": map[string]any{"value": value},
			})
		}
		// Sort clauses for a stable request shape.
		sort.Slice(must, func(i, j int) bool {
			return must[i]["key"].(string) < must[j]["key"].(string)
		})
		reqBody["filter"] = map[string]any{"must": must}
	}

	var resp qdrantEnvelope[[]qdrantPoint]
	if err := ix.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", url.PathEscape(ix.collection)), reqBody, &resp); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(resp.Result))
	for _, point := range resp.Result {
		id, err := parseQdrantID(point.ID)
		if err != nil {
			continue
		}
		metadata := make(map[string]string, len(point.Payload))
		var text string
		for key, raw := range point.Payload {
			if key == "text" {
				text = model.StringFromAny(raw)
				continue
			}
			metadata[key] = model.StringFromAny(raw)
		}
		results = append(results, Result{
			ID: id,
			// Qdrant reports raw cosine similarity for cosine
			// collections; map onto the [0,1] contract.
			Similarity: normalizeCosine(point.Score),
			Text:       text,
			Metadata:   metadata,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (ix *QdrantIndex) Count(ctx context.Context) (int, error) {
	if ix == nil {
		return 0, nil
	}
	req := map[string]any{"exact": true}
	var resp qdrantEnvelope[qdrantCountResult]
	if err := ix.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/count", url.PathEscape(ix.collection)), req, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (ix *QdrantIndex) do(ctx context.Context, method, path string, body any, out any) error {
	if ix == nil {
		return errors.New("nil qdrant index")
	}
	u := ix.baseURL + path

	var buf io.ReadWriter
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewBuffer(b)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if ix.apiKey != "" {
		req.Header.Set("api-key", ix.apiKey)
	}
	resp, err := ix.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 400 {
		return fmt.Errorf("qdrant %s %s -> http %d: %s",
			method, u, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	if out != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, out); err != nil {
			return err
		}
	}
	return nil
}

func parseQdrantID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", errors.New("empty qdrant id")
	}
	var idStr string
	if err := json.Unmarshal(raw, &idStr); err == nil {
		return idStr, nil
	}
	var idNum json.Number
	if err := json.Unmarshal(raw, &idNum); err == nil {
		return idNum.String(), nil
	}
	return "", errors.New("unrecognised qdrant id")
}

var _ VectorIndex = (*QdrantIndex)(nil)
