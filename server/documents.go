package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/siherrmann/recall"
	"github.com/siherrmann/recall/model"
)

// DocumentsHandler serves document submission, listing and lifecycle
// endpoints on top of the recall facade.
type DocumentsHandler struct {
	app *recall.Recall
}

func NewDocumentsHandler(app *recall.Recall) *DocumentsHandler {
	return &DocumentsHandler{app: app}
}

type submitDocumentRequest struct {
	Path     string         `json:"path" binding:"required"`
	Metadata model.Metadata `json:"metadata"`
}

// Submit ingests a file by path and starts the pipeline for it.
func (h *DocumentsHandler) Submit(c *gin.Context) {
	var req submitDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	doc, err := h.app.AddDocument(req.Path, req.Metadata)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"document": doc})
}

func (h *DocumentsHandler) List(c *gin.Context) {
	limit := intQuery(c, "limit", 100)
	docs, err := h.app.Documents.SelectAllDocuments(nil, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (h *DocumentsHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	doc, err := h.app.Documents.SelectDocument(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document": doc})
}

// Status reports the pipeline state of a single document.
func (h *DocumentsHandler) Status(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	doc, err := h.app.Documents.SelectDocument(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":        doc.Status,
		"error_message": doc.ErrorMessage,
		"concept_count": doc.ConceptCount,
		"running":       h.app.Controller != nil && h.app.Controller.Running(id),
	})
}

// Resubmit re-runs the pipeline for a stuck or failed document.
func (h *DocumentsHandler) Resubmit(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	started, err := h.app.Resubmit(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"started": started})
}

func (h *DocumentsHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.app.Documents.DeleteDocument(id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// Chunks lists the stored chunks of a document in order.
func (h *DocumentsHandler) Chunks(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, err := h.app.Documents.SelectDocument(id); err != nil {
		respondError(c, err)
		return
	}
	chunks, err := h.app.Chunks.SelectChunksByDocument(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chunks": chunks})
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
