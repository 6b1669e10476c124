package index

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestQdrantStatusUnmarshal(t *testing.T) {
	var s qdrantStatus
	if err := json.Unmarshal([]byte(`"ok"`), &s); err != nil {
		t.Fatalf("string status: %v", err)
	}
	if s.State != "ok" || s.Error != "" {
		t.Fatalf("unexpected status %+v", s)
	}

	s = qdrantStatus{}
	if err := json.Unmarshal([]byte(`{"error":"collection not found"}`), &s); err != nil {
		t.Fatalf("object status: %v", err)
	}
	if s.State != "error" || s.Error != "collection not found" {
		t.Fatalf("unexpected status %+v", s)
	}
}

func TestParseQdrantID(t *testing.T) {
	id, err := parseQdrantID(json.RawMessage(`"3f2c8a70-/uuid"`))
	if err != nil || id != "3f2c8a70-/uuid" {
		t.Fatalf("string id: %q, %v", id, err)
	}
	id, err = parseQdrantID(json.RawMessage(`42`))
	if err != nil || id != "42" {
		t.Fatalf("numeric id: %q, %v", id, err)
	}
	if _, err := parseQdrantID(json.RawMessage(`{"weird":true}`)); err == nil {
		t.Fatalf("object id should be rejected")
	}
}

func TestQdrantQueryAgainstStubServer(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/memories/points/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("api-key"); got != "secret" {
			t.Errorf("api key not forwarded, got %q", got)
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"result": []map[string]any{
				{"id": "m2", "score": 0.6, "payload": map[string]any{"text": "further", MetaOwnerID: "alice"}},
				{"id": "m1", "score": 0.9, "payload": map[string]any{"text": "closer", MetaOwnerID: "alice"}},
			},
		})
	}))
	defer server.Close()

	ix := NewQdrantIndex(server.URL, "memories", "secret")
	results, err := ix.Query(context.Background(), []float32{1, 0}, 5, Filter{MetaOwnerID: "alice"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "m1" || results[1].ID != "m2" {
		t.Fatalf("results not sorted by similarity: %v, %v", results[0].ID, results[1].ID)
	}
	// Raw cosine 0.9 maps onto the [0,1] contract as 0.95.
	if results[0].Similarity != 0.95 {
		t.Fatalf("score not normalized: %v", results[0].Similarity)
	}
	if results[0].Text != "closer" || results[0].Metadata[MetaOwnerID] != "alice" {
		t.Fatalf("payload not decoded: %+v", results[0])
	}

	// The owner filter travels as a must/match clause.
	filter, ok := captured["filter"].(map[string]any)
	if !ok {
		t.Fatalf("filter missing from request: %+v", captured)
	}
	must := filter["must"].([]any)
	clause := must[0].(map[string]any)
	if clause["key"] != MetaOwnerID {
		t.Fatalf("unexpected filter clause %+v", clause)
	}
}

func TestQdrantUpsertSurfacesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":{"error":"wrong vector size"}}`))
	}))
	defer server.Close()

	ix := NewQdrantIndex(server.URL, "memories", "")
	err := ix.Upsert(context.Background(), Entry{ID: "m1", Vector: []float32{1}})
	if err == nil {
		t.Fatalf("expected an error from HTTP 400")
	}
}
