package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// RelType represents the type of relationship between two concepts.
type RelType string

const (
	RelatesTo      RelType = "RELATES_TO"
	PrerequisiteOf RelType = "PREREQUISITE_OF"
)

// ParseRelType maps extractor output (relates_to, prerequisite_of) to a
// RelType. The second return value is false for unknown types.
func ParseRelType(s string) (RelType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(RelatesTo), "RELATES TO":
		return RelatesTo, true
	case string(PrerequisiteOf), "PREREQUISITE OF":
		return PrerequisiteOf, true
	default:
		return "", false
	}
}

// Relationship is a typed edge between two concepts. Edges are deduplicated
// by (source, target, type, label); merging the same key from a new chunk
// bumps the weight instead of adding a parallel edge.
type Relationship struct {
	ID        uuid.UUID `json:"id"`
	SourceID  uuid.UUID `json:"source_id"`
	TargetID  uuid.UUID `json:"target_id"`
	RelType   RelType   `json:"rel_type"`
	Label     string    `json:"label,omitempty"`
	Weight    float64   `json:"weight"`
	TimesSeen int       `json:"times_seen"`
	CreatedAt time.Time `json:"created_at"`
}

// ExtractedFrom is the provenance edge linking a concept to a chunk that
// produced it. Never removed individually, only by cascading deletes.
type ExtractedFrom struct {
	ConceptID  uuid.UUID `json:"concept_id"`
	ChunkID    uuid.UUID `json:"chunk_id"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// RelationshipConnection pairs an edge with its direction relative to the
// concept it was queried from.
type RelationshipConnection struct {
	Relationship *Relationship `json:"relationship"`
	IsOutgoing   bool          `json:"is_outgoing"`
}

// ConceptNeighbors is a concept with its one-hop (or multi-hop) neighborhood,
// both directions, both edge types.
type ConceptNeighbors struct {
	Concept   *Concept                  `json:"concept"`
	Neighbors []*Concept                `json:"neighbors"`
	Edges     []*RelationshipConnection `json:"edges"`
}

// Subgraph is the view consumed by the visualization layer: a set of concept
// nodes plus the edges whose endpoints are both in the set.
type Subgraph struct {
	Concepts      []*Concept      `json:"concepts"`
	Relationships []*Relationship `json:"relationships"`
}

// MergeResult summarizes one chunk's merge into the graph.
type MergeResult struct {
	ConceptsCreated    int
	ConceptsReused     int
	RelationshipsAdded int
	ProvenanceAdded    int
}
