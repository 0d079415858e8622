package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Drdr1/Offline-LLM-RAG-System/internal/app"
	"github.com/Drdr1/Offline-LLM-RAG-System/internal/transport/http/response"
)

// AnswerFlusher invalidates cached answers after the corpus changed.
type AnswerFlusher interface {
	Flush(ctx context.Context) error
}

// DocumentHandler serves the write path: PDF uploads, ingestion status
// and deletion.
type DocumentHandler struct {
	ingestService *app.IngestService
	flusher       AnswerFlusher // may be nil when caching is disabled
	maxUploadSize int64
}

type UploadedDocument struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
}

type UploadResult struct {
	Documents []UploadedDocument `json:"documents"`
}

func NewDocumentHandler(ingestService *app.IngestService, flusher AnswerFlusher, maxUploadSize int64) *DocumentHandler {
	return &DocumentHandler{
		ingestService: ingestService,
		flusher:       flusher,
		maxUploadSize: maxUploadSize,
	}
}

func (h *DocumentHandler) flushAnswers(ctx context.Context) {
	if h.flusher == nil {
		return
	}
	if err := h.flusher.Flush(ctx); err != nil {
		log.Printf("Failed to flush answer cache: %v", err)
	}
}

// Upload accepts one or more PDF files under the "files" multipart field
// and queues each for ingestion. Completion is observable through the
// status endpoints; this call returns as soon as the jobs are queued.
func (h *DocumentHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid multipart form")
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "no files uploaded")
		return
	}

	// Validate the whole batch before storing anything, so a rejected
	// file never leaves earlier files silently queued behind a 400.
	for _, file := range files {
		if strings.ToLower(filepath.Ext(file.Filename)) != ".pdf" {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest,
				"only PDF files are allowed: "+file.Filename)
			return
		}
		if file.Size > h.maxUploadSize {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest,
				"file too large: "+file.Filename)
			return
		}
	}

	uploaded := make([]UploadedDocument, 0, len(files))
	for _, file := range files {
		f, err := file.Open()
		if err != nil {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read upload")
			return
		}
		doc, err := h.ingestService.Upload(c.Request.Context(), file.Filename, f)
		f.Close()
		if err != nil {
			switch {
			case errors.Is(err, app.ErrInvalidInput):
				response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
			case errors.Is(err, app.ErrIngestInProgress):
				response.Error(c, http.StatusConflict, response.CodeIngestInProgress, err.Error())
			default:
				response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "upload failed: "+err.Error())
			}
			return
		}
		uploaded = append(uploaded, UploadedDocument{
			ID:       doc.ID,
			Filename: doc.Filename,
			Status:   doc.Status,
		})
	}

	response.OK(c, UploadResult{Documents: uploaded})
}

func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.ingestService.ListDocuments()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list documents failed")
		return
	}
	response.OK(c, docs)
}

// Status reports where a document stands in the ingestion pipeline,
// including the failure reason for failed documents.
func (h *DocumentHandler) Status(c *gin.Context) {
	doc, err := h.ingestService.Status(c.Param("id"))
	if err != nil {
		if errors.Is(err, app.ErrDocumentNotFound) {
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
		} else {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "document status failed")
		}
		return
	}
	response.OK(c, doc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.ingestService.Delete(id); err != nil {
		switch {
		case errors.Is(err, app.ErrDocumentNotFound):
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
		case errors.Is(err, app.ErrIngestInProgress):
			response.Error(c, http.StatusConflict, response.CodeIngestInProgress, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete document failed")
		}
		return
	}
	h.flushAnswers(c.Request.Context())
	response.OK(c, gin.H{"deleted_document_id": id})
}

// Reset wipes all documents, chunks, vectors and stored uploads.
func (h *DocumentHandler) Reset(c *gin.Context) {
	if err := h.ingestService.Reset(); err != nil {
		if errors.Is(err, app.ErrIngestInProgress) {
			response.Error(c, http.StatusConflict, response.CodeIngestInProgress, err.Error())
		} else {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "reset failed")
		}
		return
	}
	h.flushAnswers(c.Request.Context())
	response.OK(c, gin.H{"reset": true})
}
