package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Drdr1/Offline-LLM-RAG-System/internal/config"
)

func testClient(baseURL string, dimension, retries int) *Client {
	return NewClient(config.OllamaConfig{
		BaseURL:            baseURL,
		GenerateModel:      "test-gen",
		EmbeddingModel:     "test-embed",
		EmbeddingDimension: dimension,
		Temperature:        0.7,
		TopP:               0.9,
		EmbedTimeoutSec:    2,
		GenerateTimeoutSec: 1,
		MaxRetries:         retries,
	})
}

func TestEmbedReturnsVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-embed", req.Model)
		assert.Equal(t, "hello", req.Prompt)
		json.NewEncoder(w).Encode(map[string]interface{}{"embedding": []float32{1, 2, 3}})
	}))
	defer srv.Close()

	vec, err := testClient(srv.URL, 3, 0).Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vec)
}

func TestEmbedRejectsWrongDimension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"embedding": []float32{1, 2}})
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 3, 0).Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestEmbedUnreachableBackend(t *testing.T) {
	// Closed server: connection refused immediately.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := testClient(srv.URL, 3, 0).Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
}

func TestEmbedRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"embedding": []float32{1, 2, 3}})
	}))
	defer srv.Close()

	vec, err := testClient(srv.URL, 3, 2).Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 3)
	assert.Equal(t, int32(3), calls.Load())
}

func TestEmbedBatchMatchesEmbedOneByOne(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		// Deterministic per-text vector so order is observable.
		json.NewEncoder(w).Encode(map[string]interface{}{
			"embedding": []float32{float32(len(req.Prompt)), 1, 0},
		})
	}))
	defer srv.Close()

	client := testClient(srv.URL, 3, 0)
	texts := []string{"a", "bb", "ccc"}

	batched, err := client.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, batched, 3)

	for i, text := range texts {
		single, err := client.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, single, batched[i])
	}
}

func TestGenerateReturnsAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var req struct {
			Model   string                 `json:"model"`
			Prompt  string                 `json:"prompt"`
			Stream  bool                   `json:"stream"`
			Options map[string]interface{} `json:"options"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-gen", req.Model)
		assert.False(t, req.Stream)
		assert.Contains(t, req.Options, "temperature")
		json.NewEncoder(w).Encode(map[string]string{"response": "  the answer  "})
	}))
	defer srv.Close()

	answer, err := testClient(srv.URL, 3, 0).Generate(context.Background(), "why?")
	require.NoError(t, err)
	assert.Equal(t, "the answer", answer)
}

func TestGenerateMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 3, 0).Generate(context.Background(), "why?")
	assert.ErrorIs(t, err, ErrGeneration)
}

func TestGenerateTimeoutSurfacesWithinBound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(3 * time.Second)
	}))
	defer srv.Close()

	start := time.Now()
	_, err := testClient(srv.URL, 3, 0).Generate(context.Background(), "why?")
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrGeneration)
	// Client timeout is 1s; the error must arrive near it, not hang.
	assert.Less(t, elapsed, 2500*time.Millisecond)
}

func TestGenerateHonorsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(3 * time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := testClient(srv.URL, 3, 5).Generate(ctx, "why?")
	assert.ErrorIs(t, err, ErrGeneration)
}
