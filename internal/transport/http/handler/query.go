package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Drdr1/Offline-LLM-RAG-System/internal/ai"
	"github.com/Drdr1/Offline-LLM-RAG-System/internal/app"
	"github.com/Drdr1/Offline-LLM-RAG-System/internal/transport/http/response"
)

type QueryHandler struct {
	queryService *app.QueryService
}

type AskRequest struct {
	Question string `json:"question" binding:"required"`
	TopK     int    `json:"top_k"`
}

func NewQueryHandler(queryService *app.QueryService) *QueryHandler {
	return &QueryHandler{queryService: queryService}
}

// Ask answers a question against the indexed documents. TopK is optional
// and falls back to the configured default when zero.
func (h *QueryHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.TopK < 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "top_k must not be negative")
		return
	}

	result, err := h.queryService.Ask(c.Request.Context(), req.Question, req.TopK)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, ai.ErrEmbeddingUnavailable), errors.Is(err, ai.ErrGeneration):
			response.Error(c, http.StatusServiceUnavailable, response.CodeBackendUnavailable,
				"language model backend unavailable: "+err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "query failed")
		}
		return
	}

	response.OK(c, result)
}
