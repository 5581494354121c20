package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/siherrmann/recall"
)

// NewRouter builds the gin engine with all API routes wired to the
// given recall instance.
func NewRouter(app *recall.Recall) *gin.Engine {
	router := gin.Default()

	router.GET("/healthcheck", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	documents := NewDocumentsHandler(app)
	graphs := NewGraphHandler(app.Merger)
	quiz := NewQuizHandler(app)
	search := NewSearchHandler(app)

	api := router.Group("/api")
	{
		docs := api.Group("/documents")
		{
			docs.POST("", documents.Submit)
			docs.GET("", documents.List)
			docs.GET("/:id", documents.Get)
			docs.GET("/:id/status", documents.Status)
			docs.GET("/:id/chunks", documents.Chunks)
			docs.GET("/:id/graph", graphs.Subgraph)
			docs.GET("/:id/cards", quiz.ByDocument)
			docs.POST("/:id/resubmit", documents.Resubmit)
			docs.DELETE("/:id", documents.Delete)
		}

		concepts := api.Group("/concepts")
		{
			concepts.GET("", graphs.ListConcepts)
			concepts.POST("", graphs.CreateConcept)
			concepts.GET("/:id", graphs.GetConcept)
			concepts.GET("/:id/neighbors", graphs.Neighbors)
			concepts.DELETE("/:id", graphs.DeleteConcept)
		}

		relationships := api.Group("/relationships")
		{
			relationships.POST("", graphs.CreateRelationship)
			relationships.DELETE("/:id", graphs.DeleteRelationship)
		}

		cards := api.Group("/quiz")
		{
			cards.GET("/due", quiz.Due)
			cards.GET("/stats", quiz.Stats)
			cards.POST("/:id/review", quiz.Review)
			cards.PATCH("/:id", quiz.Edit)
			cards.DELETE("/:id", quiz.Delete)
		}

		api.GET("/search", search.Search)
	}

	return router
}
