package graph

import (
	"github.com/google/uuid"
	"github.com/siherrmann/recall/model"
)

// TraversalResult contains a concept and its distance from the source.
type TraversalResult struct {
	Concept  *model.Concept
	Distance int
	// Path from the source to this concept
	Path []uuid.UUID
}

// BFS performs breadth-first search from a source concept, following
// relationships in both directions regardless of type. The first result is
// the source itself; traversed edges come back as connections with their
// direction relative to the concept they were discovered from.
func BFS(concepts ConceptStore, edges EdgeStore, sourceID uuid.UUID, maxHops int) ([]*TraversalResult, []*model.RelationshipConnection, error) {
	source, err := concepts.SelectConcept(sourceID)
	if err != nil {
		return nil, nil, err
	}

	visited := map[uuid.UUID]bool{sourceID: true}
	seenEdges := map[uuid.UUID]bool{}
	queue := []TraversalResult{{
		Concept:  source,
		Distance: 0,
		Path:     []uuid.UUID{sourceID},
	}}

	var results []*TraversalResult
	var connections []*model.RelationshipConnection

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		results = append(results, &current)

		if current.Distance >= maxHops {
			continue
		}

		currentEdges, err := edges.SelectRelationshipsForConcept(current.Concept.ID)
		if err != nil {
			return nil, nil, err
		}

		for _, edge := range currentEdges {
			outgoing := edge.SourceID == current.Concept.ID
			targetID := edge.SourceID
			if outgoing {
				targetID = edge.TargetID
			}

			if !seenEdges[edge.ID] {
				seenEdges[edge.ID] = true
				connections = append(connections, &model.RelationshipConnection{
					Relationship: edge,
					IsOutgoing:   outgoing,
				})
			}

			if visited[targetID] {
				continue
			}

			target, err := concepts.SelectConcept(targetID)
			if err != nil {
				// Skip endpoints deleted mid-traversal
				continue
			}

			visited[targetID] = true

			newPath := make([]uuid.UUID, len(current.Path))
			copy(newPath, current.Path)
			newPath = append(newPath, targetID)

			queue = append(queue, TraversalResult{
				Concept:  target,
				Distance: current.Distance + 1,
				Path:     newPath,
			})
		}
	}

	return results, connections, nil
}
