package extract

import (
	"testing"

	"github.com/engram-ai/engram/src/memory/model"
)

func TestParseCandidatesPlainArray(t *testing.T) {
	got := ParseCandidates(`[
		{"content": "lives in Lisbon", "type": "personal_info", "category": "location", "importance": 0.8, "confidence": 0.95, "tags": ["Home", "home", " city "]},
		{"content": "wants to learn Go", "type": "goal"}
	]`)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	first := got[0]
	if first.Type != model.TypePersonalInfo || first.Importance != 0.8 {
		t.Fatalf("unexpected first candidate %+v", first)
	}
	if len(first.Tags) != 2 || first.Tags[0] != "city" || first.Tags[1] != "home" {
		t.Fatalf("tags not normalized and deduplicated: %v", first.Tags)
	}
}

func TestParseCandidatesFencedAndProse(t *testing.T) {
	got := ParseCandidates("Sure! Here are the memories I found:\n```json\n[{\"content\": \"is vegetarian\", \"type\": \"preference\"}]\n```\nLet me know if you need more.")
	if len(got) != 1 || got[0].Content != "is vegetarian" {
		t.Fatalf("failed to extract fenced array: %+v", got)
	}
}

func TestParseCandidatesToleratesGarbage(t *testing.T) {
	cases := []string{
		"",
		"no memories here",
		"[{broken json",
		`{"content": "an object, not an array"}`,
		"[]",
	}
	for _, input := range cases {
		if got := ParseCandidates(input); len(got) != 0 {
			t.Fatalf("input %q produced candidates %+v", input, got)
		}
	}
}

func TestParseCandidatesDefaultsAndDrops(t *testing.T) {
	got := ParseCandidates(`[
		{"content": "type falls back", "type": "not_a_type", "importance": 7},
		{"content": ""},
		{"type": "fact"},
		{"content": "  padded  "}
	]`)
	if len(got) != 2 {
		t.Fatalf("expected 2 surviving candidates, got %d", len(got))
	}
	if got[0].Type != model.TypeFact {
		t.Fatalf("invalid type should fall back to fact, got %s", got[0].Type)
	}
	if got[0].Importance != 1 {
		t.Fatalf("out-of-range importance should clamp to 1, got %v", got[0].Importance)
	}
	if got[1].Content != "padded" {
		t.Fatalf("content should be trimmed, got %q", got[1].Content)
	}
}

func TestParseCandidatesBracketsInsideStrings(t *testing.T) {
	got := ParseCandidates(`[{"content": "nickname is [Ace]", "type": "personal_info"}]`)
	if len(got) != 1 || got[0].Content != "nickname is [Ace]" {
		t.Fatalf("bracket inside string broke the scan: %+v", got)
	}
}
