// Package resolve decides what to do with a freshly extracted memory
// candidate given its nearest existing neighbors.
package resolve

import (
	"fmt"

	"github.com/engram-ai/engram/src/memory/model"
)

// Decision is the outcome of resolving a candidate against the store.
type Decision string

const (
	// DecisionCreate stores the candidate as a new record.
	DecisionCreate Decision = "create"
	// DecisionSkip drops the candidate as a near duplicate.
	DecisionSkip Decision = "skip"
	// DecisionUpdate rewrites an existing record with the candidate content.
	DecisionUpdate Decision = "update"
)

// Candidate is a memory proposal that has not been persisted yet.
type Candidate struct {
	Content    string
	Type       model.MemoryType
	Category   string
	Tags       []string
	Importance float64
	Confidence float64
}

// Neighbor pairs an existing record with its similarity to the candidate.
type Neighbor struct {
	Record     model.MemoryRecord
	Similarity float64
}

// Options holds the similarity thresholds. Zero values fall back to the
// defaults, so Options{} behaves like DefaultOptions().
type Options struct {
	// UpdateThreshold is the similarity at which a neighbor starts to
	// compete with the candidate instead of coexisting with it.
	UpdateThreshold float64
	// DuplicateThreshold is the similarity at or above which the candidate
	// is considered a restatement of the neighbor.
	DuplicateThreshold float64
}

func DefaultOptions() Options {
	return Options{UpdateThreshold: 0.85, DuplicateThreshold: 0.95}
}

func (o Options) WithDefaults() Options {
	def := DefaultOptions()
	if o.UpdateThreshold <= 0 {
		o.UpdateThreshold = def.UpdateThreshold
	}
	if o.DuplicateThreshold <= 0 {
		o.DuplicateThreshold = def.DuplicateThreshold
	}
	return o
}

// Resolution reports the decision with the neighbor it was made against.
type Resolution struct {
	Decision   Decision
	Target     *model.MemoryRecord
	Similarity float64
	Reason     string
}

// Resolve compares a candidate against its neighbors and picks an action.
//
// Below the update threshold the candidate is new information and is
// created. At or above the duplicate threshold it is a restatement and is
// skipped. In between, the candidate replaces the closest neighbor only
// when it carries strictly higher importance; otherwise the existing
// record wins and the candidate is skipped.
//
// Known limitation: similarity is purely geometric. A statement and its
// negation ("likes cilantro" vs "does not like cilantro") often land in
// the duplicate band and the contradiction is not detected here. Callers
// that need contradiction handling should record a contradicts
// relationship instead of relying on this decision.
//
// Resolve is pure: it touches no storage and the same inputs always
// produce the same resolution.
func Resolve(candidate Candidate, neighbors []Neighbor, opts Options) Resolution {
	opts = opts.WithDefaults()

	best := closest(neighbors)
	if best == nil || best.Similarity < opts.UpdateThreshold {
		return Resolution{
			Decision: DecisionCreate,
			Reason:   "no sufficiently similar memory exists",
		}
	}

	target := best.Record
	if best.Similarity >= opts.DuplicateThreshold {
		return Resolution{
			Decision:   DecisionSkip,
			Target:     &target,
			Similarity: best.Similarity,
			Reason:     fmt.Sprintf("duplicate of %s at %.3f", target.ID, best.Similarity),
		}
	}

	if candidate.Importance > target.Importance {
		return Resolution{
			Decision:   DecisionUpdate,
			Target:     &target,
			Similarity: best.Similarity,
			Reason: fmt.Sprintf("supersedes %s (importance %.2f > %.2f)",
				target.ID, candidate.Importance, target.Importance),
		}
	}
	return Resolution{
		Decision:   DecisionSkip,
		Target:     &target,
		Similarity: best.Similarity,
		Reason: fmt.Sprintf("existing %s retained (importance %.2f >= %.2f)",
			target.ID, target.Importance, candidate.Importance),
	}
}

// closest returns the highest-similarity neighbor, breaking ties by record
// ID so resolution stays deterministic.
func closest(neighbors []Neighbor) *Neighbor {
	var best *Neighbor
	for i := range neighbors {
		n := &neighbors[i]
		if best == nil || n.Similarity > best.Similarity ||
			(n.Similarity == best.Similarity && n.Record.ID < best.Record.ID) {
			best = n
		}
	}
	return best
}
