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

// Generate sends a single prompt to the Ollama generate endpoint and
// returns the model's text. One call per question; retries are bounded
// and a timeout surfaces as ErrGeneration instead of hanging the caller.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]interface{}{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"options": map[string]interface{}{
			"temperature": c.temperature,
			"top_p":       c.topP,
		},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal generate request failed: %w", err)
	}

	var answer string
	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(bodyBytes))
		if err != nil {
			return fmt.Errorf("build generate request failed: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.genHTTP.Do(req)
		if err != nil {
			return fmt.Errorf("generate request failed: %w", err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read generate response failed: %w", err)
		}
		if resp.StatusCode >= 300 {
			return fmt.Errorf("generate response status %d: %s", resp.StatusCode, string(raw))
		}

		var parsed struct {
			Response string `json:"response"`
		}
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return fmt.Errorf("parse generate json failed: %w", err)
		}
		if strings.TrimSpace(parsed.Response) == "" {
			return fmt.Errorf("empty generate response")
		}
		answer = parsed.Response
		return nil
	}

	if err := c.withRetries(ctx, attempt); err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	return strings.TrimSpace(answer), nil
}
