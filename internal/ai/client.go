// Package ai talks to a locally hosted Ollama server: embeddings for
// indexing and retrieval, text generation for answers. Both calls carry
// bounded timeouts and a bounded retry budget; failures surface as typed
// errors rather than hanging the request.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Drdr1/Offline-LLM-RAG-System/internal/config"
)

var (
	// ErrEmbeddingUnavailable means the embedding backend could not be
	// reached or returned malformed output after the retry budget.
	ErrEmbeddingUnavailable = errors.New("embedding backend unavailable")

	// ErrDimensionMismatch means the backend returned a vector of the
	// wrong width. That is a deployment configuration problem and is
	// never retried.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrGeneration means the generation backend timed out, could not
	// be reached, or returned malformed output.
	ErrGeneration = errors.New("generation backend error")
)

// Client is an Ollama API client. The zero value is not usable; build it
// with NewClient.
type Client struct {
	embedHTTP   *http.Client
	genHTTP     *http.Client
	baseURL     string
	embedModel  string
	genModel    string
	dimension   int
	temperature float64
	topP        float64
	maxRetries  int
}

func NewClient(cfg config.OllamaConfig) *Client {
	embedTimeout := time.Duration(cfg.EmbedTimeoutSec) * time.Second
	if embedTimeout <= 0 {
		embedTimeout = 30 * time.Second
	}
	genTimeout := time.Duration(cfg.GenerateTimeoutSec) * time.Second
	if genTimeout <= 0 {
		genTimeout = 120 * time.Second
	}
	return &Client{
		embedHTTP:   &http.Client{Timeout: embedTimeout},
		genHTTP:     &http.Client{Timeout: genTimeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		embedModel:  cfg.EmbeddingModel,
		genModel:    cfg.GenerateModel,
		dimension:   cfg.EmbeddingDimension,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		maxRetries:  cfg.MaxRetries,
	}
}

// Dimension returns the configured embedding width.
func (c *Client) Dimension() int {
	return c.dimension
}

// GenerateModel returns the configured generation model name.
func (c *Client) GenerateModel() string {
	return c.genModel
}

// EmbeddingModel returns the configured embedding model name.
func (c *Client) EmbeddingModel() string {
	return c.embedModel
}

// Ping checks that the Ollama server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("build ollama ping request failed: %w", err)
	}
	resp, err := c.embedHTTP.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("ollama ping status %d", resp.StatusCode)
	}
	return nil
}

// withRetries runs fn up to 1+maxRetries times, backing off briefly
// between attempts. It stops early once ctx is done so a cancelled caller
// never waits out the remaining budget.
func (c *Client) withRetries(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
			}
		}
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return lastErr
}
