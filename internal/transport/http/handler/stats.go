package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Drdr1/Offline-LLM-RAG-System/internal/bootstrap"
	"github.com/Drdr1/Offline-LLM-RAG-System/internal/model"
	"github.com/Drdr1/Offline-LLM-RAG-System/internal/transport/http/response"
)

type StatsHandler struct {
	app *bootstrap.App
}

func NewStatsHandler(app *bootstrap.App) *StatsHandler {
	return &StatsHandler{app: app}
}

// Stats reports corpus size and the models backing the service.
func (h *StatsHandler) Stats(c *gin.Context) {
	docs, err := h.app.IngestService.ListDocuments()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stats failed")
		return
	}

	indexed := 0
	failed := 0
	for _, doc := range docs {
		switch doc.Status {
		case model.StatusIndexed:
			indexed++
		case model.StatusFailed:
			failed++
		}
	}

	response.OK(c, gin.H{
		"documents":           len(docs),
		"documents_indexed":   indexed,
		"documents_failed":    failed,
		"chunks_indexed":      h.app.Index.Len(),
		"embedding_model":     h.app.AI.EmbeddingModel(),
		"embedding_dimension": h.app.AI.Dimension(),
		"generation_model":    h.app.AI.GenerateModel(),
	})
}
