package model

import (
	"sort"
	"strings"
	"time"
)

// MemoryType classifies what kind of knowledge a record holds.
type MemoryType string

const (
	TypePersonalInfo        MemoryType = "personal_info"
	TypePreference          MemoryType = "preference"
	TypeFact                MemoryType = "fact"
	TypeTask                MemoryType = "task"
	TypeGoal                MemoryType = "goal"
	TypeRelationship        MemoryType = "relationship"
	TypeConversationSummary MemoryType = "conversation_summary"
	TypeSkill               MemoryType = "skill"
)

// memoryTypeOrder fixes the display order used when memories are grouped
// into a context block. Keep personal information and preferences first.
var memoryTypeOrder = []MemoryType{
	TypePersonalInfo,
	TypePreference,
	TypeFact,
	TypeTask,
	TypeGoal,
	TypeRelationship,
	TypeConversationSummary,
	TypeSkill,
}

var memoryTypeLabels = map[MemoryType]string{
	TypePersonalInfo:        "Personal information",
	TypePreference:          "Preferences",
	TypeFact:                "Facts",
	TypeTask:                "Tasks",
	TypeGoal:                "Goals",
	TypeRelationship:        "Relationships",
	TypeConversationSummary: "Conversation summaries",
	TypeSkill:               "Skills",
}

// Valid reports whether t is one of the known memory types.
func (t MemoryType) Valid() bool {
	_, ok := memoryTypeLabels[t]
	return ok
}

// Label returns the human-readable group heading for t.
func (t MemoryType) Label() string {
	if label, ok := memoryTypeLabels[t]; ok {
		return label
	}
	return string(t)
}

// MemoryTypeOrder returns the stable display order of all memory types.
func MemoryTypeOrder() []MemoryType {
	out := make([]MemoryType, len(memoryTypeOrder))
	copy(out, memoryTypeOrder)
	return out
}

// SourceType records where a memory came from.
type SourceType string

const (
	SourceManual       SourceType = "manual"
	SourceConversation SourceType = "conversation"
	SourceImported     SourceType = "imported"
	SourceInferred     SourceType = "inferred"
)

// ChangedBy identifies the actor behind a content change.
type ChangedBy string

const (
	ChangedByUser   ChangedBy = "user"
	ChangedBySystem ChangedBy = "system"
	ChangedByAI     ChangedBy = "ai"
)

// MemoryRecord is the unit of long-term knowledge.
//
// A record with Active == false is soft-deleted: it stays addressable by id
// for audit and version history but must never surface in search results or
// pinned retrieval. EmbeddingModelID names the model that produced
// Embedding; vectors from different models must never be compared.
type MemoryRecord struct {
	ID               string         `json:"id"`
	OwnerID          string         `json:"owner_id"`
	Content          string         `json:"content"`
	Type             MemoryType     `json:"memory_type"`
	Category         string         `json:"category,omitempty"`
	Tags             []string       `json:"tags,omitempty"`
	Embedding        []float32      `json:"embedding,omitempty"`
	EmbeddingModelID string         `json:"embedding_model_id,omitempty"`
	Importance       float64        `json:"importance"`
	Confidence       float64        `json:"confidence"`
	AccessCount      int64          `json:"access_count"`
	LastAccessedAt   *time.Time     `json:"last_accessed_at,omitempty"`
	Source           SourceType     `json:"source_type"`
	SourceRef        string         `json:"source_ref,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	Active           bool           `json:"is_active"`
	Pinned           bool           `json:"is_pinned"`
	Verified         bool           `json:"is_verified"`
	NeedsResync      bool           `json:"needs_resync,omitempty"`
	Extra            map[string]any `json:"extra,omitempty"`
}

// Clone returns a deep copy so that stores can hand out records without
// sharing mutable state with callers.
func (r MemoryRecord) Clone() MemoryRecord {
	out := r
	if r.Tags != nil {
		out.Tags = append([]string(nil), r.Tags...)
	}
	if r.Embedding != nil {
		out.Embedding = append([]float32(nil), r.Embedding...)
	}
	if r.LastAccessedAt != nil {
		t := *r.LastAccessedAt
		out.LastAccessedAt = &t
	}
	if r.Extra != nil {
		out.Extra = make(map[string]any, len(r.Extra))
		for k, v := range r.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// MemoryVersion is an immutable snapshot of a record's content taken before
// a content-changing update. Versions are append-only.
type MemoryVersion struct {
	MemoryID  string    `json:"memory_id"`
	Version   int       `json:"version_number"`
	Content   string    `json:"content"`
	Reason    string    `json:"reason,omitempty"`
	ChangedBy ChangedBy `json:"changed_by"`
	CreatedAt time.Time `json:"created_at"`
}

// ClampScore bounds importance/confidence style scores to [0, 1].
func ClampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// NormalizeTags lowercases, trims, de-duplicates and sorts a tag list.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

// UnionTags merges two tag sets, preserving the normalized form.
func UnionTags(a, b []string) []string {
	merged := make([]string, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	return NormalizeTags(merged)
}
