package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/siherrmann/recall"
	"github.com/siherrmann/recall/model"
)

// QuizHandler serves the spaced repetition endpoints: due cards,
// review grading, per document stats and card edits.
type QuizHandler struct {
	app *recall.Recall
}

func NewQuizHandler(app *recall.Recall) *QuizHandler {
	return &QuizHandler{app: app}
}

// Due returns the cards scheduled for today, optionally filtered to a
// single document.
func (h *QuizHandler) Due(c *gin.Context) {
	var documentID *uuid.UUID
	if raw := c.Query("document_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
			return
		}
		documentID = &id
	}
	limit := intQuery(c, "limit", 20)
	cards, err := h.app.Scheduler.DueToday(documentID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cards": cards})
}

type reviewRequest struct {
	Grade *int `json:"grade" binding:"required"`
}

// Review grades a card and reschedules it.
func (h *QuizHandler) Review(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	card, err := h.app.Scheduler.Review(c.Request.Context(), id, model.Grade(*req.Grade))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"card": card})
}

// Stats returns per document card counts and mastery style aggregates.
func (h *QuizHandler) Stats(c *gin.Context) {
	stats, err := h.app.Scheduler.StatsByDocument()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// ByDocument lists all cards generated from one document.
func (h *QuizHandler) ByDocument(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	cards, err := h.app.Flashcards.SelectFlashcardsByDocument(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cards": cards})
}

type editCardRequest struct {
	Question string `json:"question" binding:"required"`
	Answer   string `json:"answer" binding:"required"`
}

// Edit replaces the question and answer text of a card. Scheduling
// state is untouched.
func (h *QuizHandler) Edit(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req editCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	card, err := h.app.Flashcards.UpdateFlashcardContent(id, req.Question, req.Answer)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"card": card})
}

func (h *QuizHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.app.Flashcards.DeleteFlashcard(id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}
