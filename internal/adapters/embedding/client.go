// Package embedding adapts an OpenAI-compatible embeddings endpoint to
// ports.EmbeddingProvider, with a process-wide cache keyed by
// (model, text prefix) matching the caching the discovery feature
// extractor expects.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/longregen/tracediscover/internal/adapters/circuitbreaker"
	"github.com/longregen/tracediscover/internal/adapters/retry"
	"github.com/longregen/tracediscover/internal/ports"
)

const (
	// EmbeddingTimeout is the maximum time to wait for embedding generation.
	EmbeddingTimeout = 30 * time.Second

	// cacheKeyTextLen matches the original pipeline's cache-key truncation:
	// only the first 500 characters of the text participate in the key.
	cacheKeyTextLen = 500

	// maxInputLen is the hard truncation applied before sending text to
	// the embeddings endpoint, protecting against oversized payloads.
	maxInputLen = 8000
)

// Client is an OpenAI-compatible embedding client.
type Client struct {
	baseURL     string
	apiKey      string
	dimensions  int
	httpClient  *http.Client
	retryConfig retry.BackoffConfig
	breaker     *circuitbreaker.CircuitBreaker

	cacheMu sync.RWMutex
	cache   map[string]*ports.EmbeddingResult
}

// NewClient creates a new embedding client. dimensions, when positive, is
// validated against every response; pass 0 to accept whatever the model
// returns.
func NewClient(baseURL, apiKey string, dimensions int) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")
	baseURL = strings.TrimSuffix(baseURL, "/v1")

	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		dimensions: dimensions,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		retryConfig: retry.HTTPConfig(),
		breaker:     circuitbreaker.New(5, 30*time.Second),
		cache:       make(map[string]*ports.EmbeddingResult),
	}
}

// EmbeddingRequest represents the request to the embeddings API.
type EmbeddingRequest struct {
	Input interface{} `json:"input"` // string or []string
	Model string      `json:"model"`
}

// EmbeddingResponse represents the response from the embeddings API.
type EmbeddingResponse struct {
	Object string `json:"object"`
	Data   []struct {
		Object    string    `json:"object"`
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

func cacheKey(model, text string) string {
	t := text
	if len(t) > cacheKeyTextLen {
		t = t[:cacheKeyTextLen]
	}
	return model + ":" + t
}

func truncate(text string) string {
	if len(text) > maxInputLen {
		return text[:maxInputLen]
	}
	return text
}

// Embed generates an embedding for a single text under the given model,
// serving from the process-wide cache when available.
func (c *Client) Embed(ctx context.Context, model, text string) (*ports.EmbeddingResult, error) {
	key := cacheKey(model, text)

	c.cacheMu.RLock()
	if cached, ok := c.cache[key]; ok {
		c.cacheMu.RUnlock()
		return cached, nil
	}
	c.cacheMu.RUnlock()

	var result *ports.EmbeddingResult
	err := c.breaker.Execute(func() error {
		ctx, cancel := context.WithTimeout(ctx, EmbeddingTimeout)
		defer cancel()

		results, err := c.embedBatchInternal(ctx, model, []string{text})
		if err != nil {
			log.Printf("[EmbeddingClient.Embed] embedBatchInternal failed: baseURL=%s, model=%s, textLen=%d, error=%v",
				c.baseURL, model, len(text), err)
			return err
		}
		if len(results) == 0 {
			log.Printf("[EmbeddingClient.Embed] no embedding returned: baseURL=%s, model=%s", c.baseURL, model)
			return fmt.Errorf("no embedding returned")
		}
		result = results[0]
		return nil
	})
	if err != nil {
		log.Printf("[EmbeddingClient.Embed] circuit breaker error: %v (state=%s)", err, c.breaker.State())
		return nil, err
	}

	c.cacheMu.Lock()
	c.cache[key] = result
	c.cacheMu.Unlock()

	return result, nil
}

// EmbedBatch generates embeddings for multiple texts under the given
// model. Cache hits are served individually; only misses hit the network,
// batched in a single request.
func (c *Client) EmbedBatch(ctx context.Context, model string, texts []string) ([]*ports.EmbeddingResult, error) {
	if len(texts) == 0 {
		return []*ports.EmbeddingResult{}, nil
	}

	results := make([]*ports.EmbeddingResult, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))

	c.cacheMu.RLock()
	for i, text := range texts {
		if cached, ok := c.cache[cacheKey(model, text)]; ok {
			results[i] = cached
		} else {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, text)
		}
	}
	c.cacheMu.RUnlock()

	if len(missTexts) == 0 {
		return results, nil
	}

	var fetched []*ports.EmbeddingResult
	err := c.breaker.Execute(func() error {
		ctx, cancel := context.WithTimeout(ctx, EmbeddingTimeout)
		defer cancel()

		var err error
		fetched, err = c.embedBatchInternal(ctx, model, missTexts)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.cacheMu.Lock()
	for i, r := range fetched {
		results[missIdx[i]] = r
		c.cache[cacheKey(model, missTexts[i])] = r
	}
	c.cacheMu.Unlock()

	return results, nil
}

// GetDimensions returns the configured embedding dimensionality, or 0 if
// unconstrained.
func (c *Client) GetDimensions() int {
	return c.dimensions
}

// curlExample returns a curl command for debugging embedding requests.
func (c *Client) curlExample(model string) string {
	authHeader := ""
	if c.apiKey != "" {
		authHeader = fmt.Sprintf(` -H "Authorization: Bearer %s"`, c.apiKey)
	}
	return fmt.Sprintf(
		`curl -X POST "%s/v1/embeddings" -H "Content-Type: application/json"%s -d '{"input": "test", "model": "%s"}'`,
		c.baseURL, authHeader, model,
	)
}

// embedBatchInternal is the internal implementation for batch embedding.
func (c *Client) embedBatchInternal(ctx context.Context, model string, texts []string) ([]*ports.EmbeddingResult, error) {
	truncated := make([]string, len(texts))
	for i, t := range texts {
		truncated[i] = truncate(t)
	}

	req := EmbeddingRequest{Model: model}
	if len(truncated) == 1 {
		req.Input = truncated[0]
	} else {
		req.Input = truncated
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var respBody []byte
	var statusCode int

	err = retry.WithBackoffHTTP(ctx, c.retryConfig, func() (int, error) {
		httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/embeddings", bytes.NewReader(body))
		if err != nil {
			return 0, fmt.Errorf("failed to create request: %w", err)
		}

		httpReq.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			log.Printf("[EmbeddingClient] HTTP request failed: url=%s/v1/embeddings, error=%v", c.baseURL, err)
			return 0, fmt.Errorf("failed to send request: %w", err)
		}
		defer resp.Body.Close()

		statusCode = resp.StatusCode
		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return statusCode, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			log.Printf("[EmbeddingClient] API error: url=%s/v1/embeddings, status=%d, body=%s", c.baseURL, resp.StatusCode, string(respBody))
			if retry.IsRetryableHTTPStatus(resp.StatusCode) {
				return statusCode, nil
			}
			return statusCode, fmt.Errorf("API error: %s - %s", resp.Status, string(respBody))
		}

		return statusCode, nil
	})

	if err != nil {
		return nil, fmt.Errorf("%w (debug: %s)", err, c.curlExample(model))
	}

	var embeddingResp EmbeddingResponse
	if err := json.Unmarshal(respBody, &embeddingResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	results := make([]*ports.EmbeddingResult, len(embeddingResp.Data))
	for _, data := range embeddingResp.Data {
		dimensions := len(data.Embedding)
		if c.dimensions > 0 && dimensions != c.dimensions {
			log.Printf("[EmbeddingClient] dimension mismatch: expected=%d, got=%d, model=%s", c.dimensions, dimensions, embeddingResp.Model)
			return nil, fmt.Errorf("expected %d dimensions but got %d", c.dimensions, dimensions)
		}

		results[data.Index] = &ports.EmbeddingResult{
			Embedding:  data.Embedding,
			Model:      embeddingResp.Model,
			Dimensions: dimensions,
		}
	}

	return results, nil
}
