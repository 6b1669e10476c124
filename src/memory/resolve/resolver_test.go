package resolve

import (
	"testing"

	"github.com/engram-ai/engram/src/memory/model"
)

func record(id string, importance float64) model.MemoryRecord {
	return model.MemoryRecord{
		ID:         id,
		OwnerID:    "alice",
		Content:    "favorite dish is pasta carbonara",
		Type:       model.TypePreference,
		Importance: importance,
	}
}

func TestResolveCreatesWhenNothingSimilar(t *testing.T) {
	cand := Candidate{Content: "prefers window seats", Importance: 0.5}

	res := Resolve(cand, nil, Options{})
	if res.Decision != DecisionCreate {
		t.Fatalf("expected create with no neighbors, got %s", res.Decision)
	}

	res = Resolve(cand, []Neighbor{{Record: record("m1", 0.9), Similarity: 0.62}}, Options{})
	if res.Decision != DecisionCreate {
		t.Fatalf("expected create below update threshold, got %s (%s)", res.Decision, res.Reason)
	}
	if res.Target != nil {
		t.Fatalf("create resolution should carry no target")
	}
}

func TestResolveSkipsRestatement(t *testing.T) {
	cand := Candidate{Content: "loves carbonara pasta", Importance: 0.9}
	neighbors := []Neighbor{{Record: record("m1", 0.4), Similarity: 0.97}}

	res := Resolve(cand, neighbors, Options{})
	if res.Decision != DecisionSkip {
		t.Fatalf("expected skip for near duplicate, got %s", res.Decision)
	}
	if res.Target == nil || res.Target.ID != "m1" {
		t.Fatalf("skip should name the duplicate record")
	}
}

func TestResolveUpdateRequiresHigherImportance(t *testing.T) {
	neighbors := []Neighbor{{Record: record("m1", 0.5), Similarity: 0.90}}

	res := Resolve(Candidate{Content: "deadline moved to Friday", Importance: 0.8}, neighbors, Options{})
	if res.Decision != DecisionUpdate {
		t.Fatalf("expected update for more important candidate, got %s (%s)", res.Decision, res.Reason)
	}
	if res.Target == nil || res.Target.ID != "m1" {
		t.Fatalf("update should target the conflicting record")
	}

	// Equal importance keeps the existing record.
	res = Resolve(Candidate{Content: "deadline moved to Friday", Importance: 0.5}, neighbors, Options{})
	if res.Decision != DecisionSkip {
		t.Fatalf("expected skip when importance does not exceed target, got %s", res.Decision)
	}
}

func TestResolvePicksClosestNeighbor(t *testing.T) {
	neighbors := []Neighbor{
		{Record: record("m1", 0.2), Similarity: 0.86},
		{Record: record("m2", 0.2), Similarity: 0.93},
		{Record: record("m3", 0.2), Similarity: 0.71},
	}
	res := Resolve(Candidate{Content: "x", Importance: 0.9}, neighbors, Options{})
	if res.Decision != DecisionUpdate || res.Target.ID != "m2" {
		t.Fatalf("expected update against closest neighbor m2, got %s target %+v", res.Decision, res.Target)
	}
}

func TestResolveZeroOptionsUseDefaults(t *testing.T) {
	res := Resolve(Candidate{Importance: 1}, []Neighbor{{Record: record("m1", 0), Similarity: 0.96}}, Options{})
	if res.Decision != DecisionSkip {
		t.Fatalf("zero options should apply the 0.95 duplicate threshold, got %s", res.Decision)
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	neighbors := []Neighbor{
		{Record: record("m2", 0.2), Similarity: 0.9},
		{Record: record("m1", 0.2), Similarity: 0.9},
	}
	first := Resolve(Candidate{Importance: 0.9}, neighbors, Options{})
	for i := 0; i < 10; i++ {
		again := Resolve(Candidate{Importance: 0.9}, neighbors, Options{})
		if again.Decision != first.Decision || again.Target.ID != first.Target.ID {
			t.Fatalf("resolution changed across runs: %+v vs %+v", first, again)
		}
	}
	if first.Target.ID != "m1" {
		t.Fatalf("similarity tie should break by record ID, got %s", first.Target.ID)
	}
}
