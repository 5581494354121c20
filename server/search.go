package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/siherrmann/recall"
)

// SearchHandler serves semantic chunk search over the stored
// embeddings.
type SearchHandler struct {
	app *recall.Recall
}

func NewSearchHandler(app *recall.Recall) *SearchHandler {
	return &SearchHandler{app: app}
}

func (h *SearchHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter q"})
		return
	}

	limit := intQuery(c, "limit", 10)
	threshold := 0.0
	if raw := c.Query("threshold"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid threshold"})
			return
		}
		threshold = parsed
	}

	var documentID *uuid.UUID
	if raw := c.Query("document_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
			return
		}
		documentID = &id
	}

	chunks, err := h.app.SearchChunks(query, limit, threshold, documentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chunks": chunks})
}
