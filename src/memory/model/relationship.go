package model

import (
	"errors"
	"fmt"
)

// RelationKind enumerates supported relationships between memory records.
type RelationKind string

const (
	RelationRelatedTo   RelationKind = "related_to"
	RelationContradicts RelationKind = "contradicts"
	RelationSupersedes  RelationKind = "supersedes"
	RelationDerivedFrom RelationKind = "derived_from"
	RelationPartOf      RelationKind = "part_of"
)

var validRelationKinds = map[RelationKind]struct{}{
	RelationRelatedTo:   {},
	RelationContradicts: {},
	RelationSupersedes:  {},
	RelationDerivedFrom: {},
	RelationPartOf:      {},
}

// Relationship is a typed, directed edge between two memory records. It
// records why a conflict-resolution decision was made, independent of the
// records' own lifecycle.
type Relationship struct {
	FromID   string       `json:"from_id"`
	ToID     string       `json:"to_id"`
	Kind     RelationKind `json:"kind"`
	Strength float64      `json:"strength"`
}

// Validate ensures the edge definition is usable.
func (r Relationship) Validate() error {
	if r.FromID == "" || r.ToID == "" {
		return errors.New("relationship endpoints must be non-empty")
	}
	if r.FromID == r.ToID {
		return errors.New("relationship endpoints must differ")
	}
	if _, ok := validRelationKinds[r.Kind]; !ok {
		return fmt.Errorf("unsupported relation kind %q", r.Kind)
	}
	if r.Strength < 0 || r.Strength > 1 {
		return fmt.Errorf("relationship strength %v out of range [0,1]", r.Strength)
	}
	return nil
}
