package graph

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/siherrmann/recall/helper"
	"github.com/siherrmann/recall/model"
)

// ConceptStore defines the concept reads and writes the merger needs.
type ConceptStore interface {
	InsertConcept(concept *model.Concept) error
	SelectConcept(id uuid.UUID) (*model.Concept, error)
	SelectConceptByNormalizedName(normalizedName string) (*model.Concept, error)
	SelectAllConcepts(category *model.ConceptCategory, limit int) ([]*model.Concept, error)
	SelectConceptsByDocument(documentID uuid.UUID) ([]*model.Concept, error)
	DeleteConcept(id uuid.UUID) error
}

// EdgeStore defines the relationship reads and writes the merger needs.
// MergeChunkExtraction commits one chunk's candidates in a single
// transaction.
type EdgeStore interface {
	MergeChunkExtraction(chunkID uuid.UUID, concepts []*model.ConceptCandidate, relationships []*model.RelationshipCandidate) (*model.MergeResult, error)
	InsertRelationship(rel *model.Relationship) error
	SelectRelationship(id uuid.UUID) (*model.Relationship, error)
	SelectRelationshipsForConcept(conceptID uuid.UUID) ([]*model.Relationship, error)
	DeleteRelationship(id uuid.UUID) error
}

// Merger folds per-chunk extraction output into the concept graph and
// exposes the read side consumed by the API layer.
type Merger struct {
	concepts ConceptStore
	edges    EdgeStore
	logger   *slog.Logger
}

// NewMerger creates a merger on top of the concept and edge stores.
func NewMerger(concepts ConceptStore, edges EdgeStore, logger *slog.Logger) (*Merger, error) {
	if concepts == nil {
		return nil, fmt.Errorf("concept store must not be nil")
	}
	if edges == nil {
		return nil, fmt.Errorf("edge store must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Merger{
		concepts: concepts,
		edges:    edges,
		logger:   logger,
	}, nil
}

// MergeChunk validates and normalizes one chunk's candidates and commits
// them in a single transaction. Invalid entries are dropped with a log line
// rather than failing the chunk.
func (m *Merger) MergeChunk(chunkID uuid.UUID, concepts []*model.ConceptCandidate, relationships []*model.RelationshipCandidate) (*model.MergeResult, error) {
	validConcepts := []*model.ConceptCandidate{}
	seen := map[string]bool{}
	for _, candidate := range concepts {
		name := strings.TrimSpace(candidate.Name)
		if name == "" {
			m.logger.Warn("Dropping concept candidate with empty name", slog.String("chunkId", chunkID.String()))
			continue
		}
		normalized := model.NormalizeConceptName(name)
		if seen[normalized] {
			continue
		}
		seen[normalized] = true

		validConcepts = append(validConcepts, &model.ConceptCandidate{
			Name:           name,
			NormalizedName: normalized,
			Category:       model.ParseCategory(string(candidate.Category)),
			Description:    strings.TrimSpace(candidate.Description),
			Confidence:     clamp01(candidate.Confidence),
		})
	}

	validRelationships := []*model.RelationshipCandidate{}
	for _, candidate := range relationships {
		source := model.NormalizeConceptName(candidate.Source)
		target := model.NormalizeConceptName(candidate.Target)
		if !seen[source] || !seen[target] {
			m.logger.Warn(
				"Dropping relationship candidate with unknown endpoint",
				slog.String("source", candidate.Source),
				slog.String("target", candidate.Target),
			)
			continue
		}
		if source == target {
			continue
		}

		relType, ok := model.ParseRelType(string(candidate.Type))
		if !ok {
			m.logger.Warn("Dropping relationship candidate with unknown type", slog.String("type", string(candidate.Type)))
			continue
		}

		// The store resolves endpoints by normalized name, so the raw
		// extractor names must not be forwarded.
		validRelationships = append(validRelationships, &model.RelationshipCandidate{
			Source: source,
			Target: target,
			Type:   relType,
			Label:  strings.TrimSpace(candidate.Label),
			Weight: clamp01(candidate.Weight),
		})
	}

	result, err := m.edges.MergeChunkExtraction(chunkID, validConcepts, validRelationships)
	if err != nil {
		return nil, helper.NewError("chunk merge", err)
	}

	return result, nil
}

// Concepts lists concepts with an optional category filter.
func (m *Merger) Concepts(category *model.ConceptCategory, limit int) ([]*model.Concept, error) {
	return m.concepts.SelectAllConcepts(category, limit)
}

// Concept returns a single concept by id.
func (m *Merger) Concept(id uuid.UUID) (*model.Concept, error) {
	return m.concepts.SelectConcept(id)
}

// DocumentSubgraph returns the concepts extracted from a document plus the
// relationships whose endpoints are both in that set.
func (m *Merger) DocumentSubgraph(documentID uuid.UUID) (*model.Subgraph, error) {
	concepts, err := m.concepts.SelectConceptsByDocument(documentID)
	if err != nil {
		return nil, helper.NewError("subgraph concepts", err)
	}

	inSet := map[uuid.UUID]bool{}
	for _, concept := range concepts {
		inSet[concept.ID] = true
	}

	seenEdges := map[uuid.UUID]bool{}
	relationships := []*model.Relationship{}
	for _, concept := range concepts {
		edges, err := m.edges.SelectRelationshipsForConcept(concept.ID)
		if err != nil {
			return nil, helper.NewError("subgraph relationships", err)
		}
		for _, edge := range edges {
			if seenEdges[edge.ID] || !inSet[edge.SourceID] || !inSet[edge.TargetID] {
				continue
			}
			seenEdges[edge.ID] = true
			relationships = append(relationships, edge)
		}
	}

	return &model.Subgraph{
		Concepts:      concepts,
		Relationships: relationships,
	}, nil
}

// Neighbors returns a concept with its neighborhood up to maxHops away,
// following edges in both directions. Edge direction is reported relative
// to the concept it was discovered from.
func (m *Merger) Neighbors(conceptID uuid.UUID, maxHops int) (*model.ConceptNeighbors, error) {
	if maxHops < 1 {
		maxHops = 1
	}

	results, edges, err := BFS(m.concepts, m.edges, conceptID, maxHops)
	if err != nil {
		return nil, err
	}

	neighbors := make([]*model.Concept, 0, len(results)-1)
	for _, result := range results[1:] {
		neighbors = append(neighbors, result.Concept)
	}

	return &model.ConceptNeighbors{
		Concept:   results[0].Concept,
		Neighbors: neighbors,
		Edges:     edges,
	}, nil
}

// CreateConcept adds a concept outside the extraction flow. The name still
// goes through normalization so manual entries cannot duplicate extracted
// ones.
func (m *Merger) CreateConcept(name string, category model.ConceptCategory, description string) (*model.Concept, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.ErrInvalidArgument
	}

	concept := &model.Concept{
		ID:             uuid.New(),
		Name:           name,
		NormalizedName: model.NormalizeConceptName(name),
		Category:       model.ParseCategory(string(category)),
	}
	description = strings.TrimSpace(description)
	if description != "" {
		concept.Description = &description
	}

	err := m.concepts.InsertConcept(concept)
	if err != nil {
		return nil, err
	}

	return concept, nil
}

// DeleteConcept removes a concept; its relationships and provenance edges
// cascade.
func (m *Merger) DeleteConcept(id uuid.UUID) error {
	return m.concepts.DeleteConcept(id)
}

// CreateRelationship adds an edge between two existing concepts by id.
func (m *Merger) CreateRelationship(sourceID uuid.UUID, targetID uuid.UUID, relType model.RelType, label string, weight float64) (*model.Relationship, error) {
	if sourceID == targetID {
		return nil, model.ErrInvalidArgument
	}
	parsedType, ok := model.ParseRelType(string(relType))
	if !ok {
		return nil, model.ErrInvalidArgument
	}

	// Both endpoints must exist; surfaces ErrNotFound before the FK does.
	if _, err := m.concepts.SelectConcept(sourceID); err != nil {
		return nil, err
	}
	if _, err := m.concepts.SelectConcept(targetID); err != nil {
		return nil, err
	}

	rel := &model.Relationship{
		ID:       uuid.New(),
		SourceID: sourceID,
		TargetID: targetID,
		RelType:  parsedType,
		Label:    strings.TrimSpace(label),
		Weight:   clamp01(weight),
	}

	err := m.edges.InsertRelationship(rel)
	if err != nil {
		return nil, err
	}

	return rel, nil
}

// DeleteRelationship removes a single edge.
func (m *Merger) DeleteRelationship(id uuid.UUID) error {
	return m.edges.DeleteRelationship(id)
}

func clamp01(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
