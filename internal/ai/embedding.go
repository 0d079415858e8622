package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Embed returns the embedding vector for the given text. Transient
// backend failures are retried within the client's budget; a vector of
// the wrong width fails immediately with ErrDimensionMismatch.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: embedding input is empty", ErrEmbeddingUnavailable)
	}

	reqBody := map[string]interface{}{
		"model":  c.embedModel,
		"prompt": text,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request failed: %w", err)
	}

	var vector []float32
	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embeddings", bytes.NewReader(bodyBytes))
		if err != nil {
			return fmt.Errorf("build embedding request failed: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.embedHTTP.Do(req)
		if err != nil {
			return fmt.Errorf("embedding request failed: %w", err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read embedding response failed: %w", err)
		}
		if resp.StatusCode >= 300 {
			return fmt.Errorf("embedding response status %d: %s", resp.StatusCode, string(raw))
		}

		var parsed struct {
			Embedding []float32 `json:"embedding"`
		}
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return fmt.Errorf("parse embedding json failed: %w", err)
		}
		if len(parsed.Embedding) == 0 {
			return fmt.Errorf("empty embedding in response")
		}
		vector = parsed.Embedding
		return nil
	}

	if err := c.withRetries(ctx, attempt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if c.dimension > 0 && len(vector) != c.dimension {
		return nil, fmt.Errorf("%w: backend returned %d, configured %d",
			ErrDimensionMismatch, len(vector), c.dimension)
	}
	return vector, nil
}

// EmbedBatch embeds each text in order. The Ollama embeddings endpoint
// takes one prompt per call, so batching is a loop over Embed and cannot
// change results relative to calling Embed one by one. On failure the
// index of the offending text is reported.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d of %d: %w", i+1, len(texts), err)
		}
		vectors[i] = vec
	}
	return vectors, nil
}
