package extract

import (
	"encoding/json"
	"strings"

	"github.com/engram-ai/engram/src/memory/model"
	"github.com/engram-ai/engram/src/memory/resolve"
)

// ParseCandidates pulls memory candidates out of a model completion.
// Models wrap their JSON in prose and code fences often enough that this
// scans for the first top-level array instead of trusting the whole body.
// Anything unparseable degrades to an empty slice, never an error: a bad
// completion should cost us the extraction, not the conversation.
func ParseCandidates(completion string) []resolve.Candidate {
	raw := firstJSONArray(completion)
	if raw == "" {
		return nil
	}

	var items []map[string]any
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}

	candidates := make([]resolve.Candidate, 0, len(items))
	for _, item := range items {
		content := strings.TrimSpace(model.StringFromAny(item["content"]))
		if content == "" {
			continue
		}
		cand := resolve.Candidate{
			Content:    content,
			Type:       model.MemoryType(strings.ToLower(model.StringFromAny(item["type"]))),
			Category:   strings.TrimSpace(model.StringFromAny(item["category"])),
			Importance: model.ClampScore(model.FloatFromAny(item["importance"])),
			Confidence: model.ClampScore(model.FloatFromAny(item["confidence"])),
		}
		if !cand.Type.Valid() {
			cand.Type = model.TypeFact
		}
		if tags, ok := item["tags"].([]any); ok {
			for _, tag := range tags {
				if s := model.StringFromAny(tag); s != "" {
					cand.Tags = append(cand.Tags, s)
				}
			}
			cand.Tags = model.NormalizeTags(cand.Tags)
		}
		candidates = append(candidates, cand)
	}
	return candidates
}

// firstJSONArray returns the first balanced top-level JSON array in s,
// skipping brackets inside strings.
func firstJSONArray(s string) string {
	start := strings.IndexByte(s, '[')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
