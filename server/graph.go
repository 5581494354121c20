package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/siherrmann/recall/core/graph"
	"github.com/siherrmann/recall/model"
)

// GraphHandler serves the concept graph endpoints: listing, traversal
// and manual edits.
type GraphHandler struct {
	merger *graph.Merger
}

func NewGraphHandler(merger *graph.Merger) *GraphHandler {
	return &GraphHandler{merger: merger}
}

func (h *GraphHandler) ListConcepts(c *gin.Context) {
	var category *model.ConceptCategory
	if raw := c.Query("category"); raw != "" {
		parsed := model.ParseCategory(raw)
		category = &parsed
	}
	limit := intQuery(c, "limit", 100)
	concepts, err := h.merger.Concepts(category, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"concepts": concepts})
}

func (h *GraphHandler) GetConcept(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	concept, err := h.merger.Concept(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"concept": concept})
}

type createConceptRequest struct {
	Name        string `json:"name" binding:"required"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

func (h *GraphHandler) CreateConcept(c *gin.Context) {
	var req createConceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	concept, err := h.merger.CreateConcept(req.Name, model.ParseCategory(req.Category), req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"concept": concept})
}

func (h *GraphHandler) DeleteConcept(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.merger.DeleteConcept(id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// Neighbors returns the concepts reachable from a concept within the
// requested hop count, with the connecting relationships.
func (h *GraphHandler) Neighbors(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	maxHops := intQuery(c, "hops", 1)
	neighbors, err := h.merger.Neighbors(id, maxHops)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, neighbors)
}

// Subgraph returns the concepts extracted from a document and the
// relationships between them.
func (h *GraphHandler) Subgraph(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	subgraph, err := h.merger.DocumentSubgraph(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, subgraph)
}

type createRelationshipRequest struct {
	SourceID uuid.UUID `json:"source_id" binding:"required"`
	TargetID uuid.UUID `json:"target_id" binding:"required"`
	Type     string    `json:"type" binding:"required"`
	Label    string    `json:"label"`
	Weight   float64   `json:"weight"`
}

func (h *GraphHandler) CreateRelationship(c *gin.Context) {
	var req createRelationshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	relType, ok := model.ParseRelType(req.Type)
	if !ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "unknown relationship type"})
		return
	}
	rel, err := h.merger.CreateRelationship(req.SourceID, req.TargetID, relType, req.Label, req.Weight)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"relationship": rel})
}

func (h *GraphHandler) DeleteRelationship(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.merger.DeleteRelationship(id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}
