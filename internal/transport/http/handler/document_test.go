package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Drdr1/Offline-LLM-RAG-System/internal/app"
	"github.com/Drdr1/Offline-LLM-RAG-System/internal/index"
	"github.com/Drdr1/Offline-LLM-RAG-System/internal/model"
	"github.com/Drdr1/Offline-LLM-RAG-System/internal/platform/sqlite"
	"github.com/Drdr1/Offline-LLM-RAG-System/internal/repository"
	"github.com/Drdr1/Offline-LLM-RAG-System/internal/transport/http/response"
)

type recordingQueue struct {
	published []string
}

func (q *recordingQueue) PublishIngest(_ context.Context, documentID string) error {
	q.published = append(q.published, documentID)
	return nil
}

func newUploadRouter(t *testing.T) (*gin.Engine, *recordingQueue, *repository.DocumentRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Document{}, &model.Chunk{}))

	idx, err := index.New(2)
	require.NoError(t, err)

	docRepo := repository.NewDocumentRepository(db)
	queue := &recordingQueue{}
	svc := app.NewIngestService(docRepo, repository.NewChunkRepository(db), idx, nil, queue, nil, app.IngestConfig{
		ChunkSize: 50,
		Overlap:   5,
		UploadDir: t.TempDir(),
	})

	router := gin.New()
	router.POST("/api/v1/documents", NewDocumentHandler(svc, nil, 1<<20).Upload)
	return router, queue, docRepo
}

func multipartBody(t *testing.T, filenames ...string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, name := range filenames {
		part, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("%PDF-1.4 fake content"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploadAcceptsPDFBatch(t *testing.T) {
	router, queue, _ := newUploadRouter(t)

	body, contentType := multipartBody(t, "a.pdf", "b.pdf")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, queue.published, 2)

	var resp struct {
		Code int          `json:"code"`
		Data UploadResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, response.CodeOK, resp.Code)
	require.Len(t, resp.Data.Documents, 2)
	assert.Equal(t, "a.pdf", resp.Data.Documents[0].Filename)
	assert.Equal(t, model.StatusUploaded, resp.Data.Documents[0].Status)
}

// A rejected file anywhere in the batch rejects the whole batch: nothing
// may be stored or queued behind a 400.
func TestUploadRejectsWholeBatchOnInvalidFile(t *testing.T) {
	router, queue, docRepo := newUploadRouter(t)

	body, contentType := multipartBody(t, "good.pdf", "notes.txt")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, queue.published)
	count, err := docRepo.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestUploadRejectsEmptyForm(t *testing.T) {
	router, _, _ := newUploadRouter(t)

	body, contentType := multipartBody(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
