package http

import (
	"github.com/gin-gonic/gin"

	"github.com/Drdr1/Offline-LLM-RAG-System/internal/bootstrap"
	"github.com/Drdr1/Offline-LLM-RAG-System/internal/transport/http/handler"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	var flusher handler.AnswerFlusher
	if app.AnswerCache != nil {
		flusher = app.AnswerCache
	}
	documentHandler := handler.NewDocumentHandler(app.IngestService, flusher, app.Config.Storage.MaxUploadBytes)
	queryHandler := handler.NewQueryHandler(app.QueryService)
	statsHandler := handler.NewStatsHandler(app)

	v1 := router.Group("/api/v1")
	documents := v1.Group("/documents")
	documents.POST("", documentHandler.Upload)
	documents.GET("", documentHandler.List)
	documents.GET("/:id", documentHandler.Status)
	documents.DELETE("/:id", documentHandler.Delete)
	documents.DELETE("", documentHandler.Reset)

	v1.POST("/ask", queryHandler.Ask)
	v1.GET("/stats", statsHandler.Stats)

	return router
}
