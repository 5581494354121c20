package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ConceptCategory classifies a concept node.
type ConceptCategory string

const (
	CategoryProgramming ConceptCategory = "programming"
	CategoryMathematics ConceptCategory = "mathematics"
	CategoryScience     ConceptCategory = "science"
	CategoryEngineering ConceptCategory = "engineering"
	CategoryGeneral     ConceptCategory = "general"
)

// ParseCategory coerces free-form extractor output into the category enum.
// Anything unknown becomes general.
func ParseCategory(s string) ConceptCategory {
	switch ConceptCategory(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryProgramming:
		return CategoryProgramming
	case CategoryMathematics:
		return CategoryMathematics
	case CategoryScience:
		return CategoryScience
	case CategoryEngineering:
		return CategoryEngineering
	default:
		return CategoryGeneral
	}
}

// Concept is a deduplicated knowledge-graph node, globally unique by
// normalized name.
type Concept struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	NormalizedName string          `json:"normalized_name"`
	Category       ConceptCategory `json:"category"`
	Description    *string         `json:"description,omitempty"`
	Mastery        float64         `json:"mastery"`
	ReviewCount    int             `json:"review_count"`
	CreatedAt      time.Time       `json:"created_at"`
}

// NormalizeConceptName is the system-wide dedup key for concepts:
// case-folded with internal whitespace collapsed to single spaces.
func NormalizeConceptName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// ConceptCandidate is one validated concept entry from a chunk's extraction
// output, before merging into the graph. NormalizedName and Confidence are
// filled in during validation.
type ConceptCandidate struct {
	Name           string
	NormalizedName string
	Category       ConceptCategory
	Description    string
	Confidence     float64
}

// RelationshipCandidate is one validated relationship entry from a chunk's
// extraction output. Source and Target are concept names resolved through
// normalization during merge.
type RelationshipCandidate struct {
	Source string
	Target string
	Type   RelType
	Label  string
	Weight float64
}
