package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:11434/v1", "test-key", 1024)

	if client == nil {
		t.Fatal("expected non-nil client")
	}
	if client.baseURL != "http://localhost:11434" {
		t.Errorf("expected baseURL to be http://localhost:11434, got %s", client.baseURL)
	}
	if client.apiKey != "test-key" {
		t.Errorf("expected apiKey to be test-key, got %s", client.apiKey)
	}
	if client.dimensions != 1024 {
		t.Errorf("expected dimensions to be 1024, got %d", client.dimensions)
	}
}

func TestGetDimensions(t *testing.T) {
	client := NewClient("http://localhost:11434/v1", "", 1024)

	if client.GetDimensions() != 1024 {
		t.Errorf("expected GetDimensions() to return 1024, got %d", client.GetDimensions())
	}
}

func TestNewClient_URLNormalization(t *testing.T) {
	tests := []struct {
		name        string
		inputURL    string
		expectedURL string
	}{
		{"URL with /v1 suffix", "http://localhost:11434/v1", "http://localhost:11434"},
		{"URL without /v1 suffix", "http://localhost:11434", "http://localhost:11434"},
		{"URL with trailing slash", "http://localhost:11434/", "http://localhost:11434"},
		{"URL with /v1/ suffix", "http://localhost:11434/v1/", "http://localhost:11434"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(tt.inputURL, "", 1024)
			if client.baseURL != tt.expectedURL {
				t.Errorf("expected baseURL to be %s, got %s", tt.expectedURL, client.baseURL)
			}
		})
	}
}

func singleEmbeddingResponse(embedding []float32, model string) EmbeddingResponse {
	return EmbeddingResponse{
		Object: "list",
		Data: []struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}{
			{Object: "embedding", Embedding: embedding, Index: 0},
		},
		Model: model,
	}
}

func TestEmbed_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != "POST" {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected authorization header")
		}
		json.NewEncoder(w).Encode(singleEmbeddingResponse([]float32{0.1, 0.2, 0.3}, "test-model"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 3)
	result, err := client.Embed(context.Background(), "test-model", "test text")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if len(result.Embedding) != 3 {
		t.Errorf("expected 3 dimensions, got %d", len(result.Embedding))
	}
	if result.Model != "test-model" {
		t.Errorf("expected model test-model, got %s", result.Model)
	}
}

func TestEmbed_CacheHit(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(singleEmbeddingResponse([]float32{0.1, 0.2, 0.3}, "test-model"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 3)
	ctx := context.Background()

	if _, err := client.Embed(ctx, "test-model", "repeated text"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := client.Embed(ctx, "test-model", "repeated text"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if calls != 1 {
		t.Errorf("expected 1 network call due to caching, got %d", calls)
	}
}

func TestEmbed_NoEmbeddingReturned(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := EmbeddingResponse{Object: "list", Model: "test-model"}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 3)
	_, err := client.Embed(context.Background(), "test-model", "test text")

	if err == nil {
		t.Fatal("expected error for no embedding returned")
	}
}

func TestEmbedBatch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := EmbeddingResponse{
			Object: "list",
			Data: []struct {
				Object    string    `json:"object"`
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{
				{Object: "embedding", Embedding: []float32{0.1, 0.2, 0.3}, Index: 0},
				{Object: "embedding", Embedding: []float32{0.4, 0.5, 0.6}, Index: 1},
			},
			Model: "test-model",
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 3)
	results, err := client.EmbedBatch(context.Background(), "test-model", []string{"text1", "text2"})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Embedding[0] != 0.1 {
		t.Errorf("unexpected embedding value")
	}
}

func TestEmbedBatch_PartialCacheHit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req EmbeddingRequest
		json.NewDecoder(r.Body).Decode(&req)
		if _, ok := req.Input.(string); !ok {
			t.Errorf("expected only the cache miss to be sent, got input=%v", req.Input)
		}
		json.NewEncoder(w).Encode(singleEmbeddingResponse([]float32{0.7, 0.8, 0.9}, "test-model"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 3)
	ctx := context.Background()

	if _, err := client.Embed(ctx, "test-model", "cached text"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results, err := client.EmbedBatch(ctx, "test-model", []string{"cached text", "new text"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	client := NewClient("http://localhost:11434", "test-key", 3)
	results, err := client.EmbedBatch(context.Background(), "test-model", []string{})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty results, got %d", len(results))
	}
}

func TestEmbedBatch_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("internal error"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 3)
	_, err := client.EmbedBatch(context.Background(), "test-model", []string{"test"})

	if err == nil {
		t.Fatal("expected error for HTTP error")
	}
}

func TestEmbedBatch_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("invalid json"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 3)
	_, err := client.EmbedBatch(context.Background(), "test-model", []string{"test"})

	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestEmbedBatch_DimensionMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(singleEmbeddingResponse([]float32{0.1, 0.2}, "test-model"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 3)
	_, err := client.EmbedBatch(context.Background(), "test-model", []string{"test"})

	if err == nil {
		t.Fatal("expected error for dimension mismatch")
	}
}

func TestEmbedBatch_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 3)
	client.httpClient.Timeout = 100 * time.Millisecond

	_, err := client.EmbedBatch(context.Background(), "test-model", []string{"test"})

	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestEmbedBatch_NoAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("expected no authorization header")
		}
		json.NewEncoder(w).Encode(singleEmbeddingResponse([]float32{0.1, 0.2, 0.3}, "test-model"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 3)
	_, err := client.EmbedBatch(context.Background(), "test-model", []string{"test"})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEmbedBatch_SingleText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req EmbeddingRequest
		json.NewDecoder(r.Body).Decode(&req)

		if _, ok := req.Input.([]interface{}); ok {
			t.Error("expected Input to be string for single text")
		}
		json.NewEncoder(w).Encode(singleEmbeddingResponse([]float32{0.1, 0.2, 0.3}, "test-model"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 3)
	results, err := client.EmbedBatch(context.Background(), "test-model", []string{"single text"})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}

func TestEmbedBatch_NoDimensions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(singleEmbeddingResponse([]float32{0.1, 0.2, 0.3}, "test-model"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 0)
	results, err := client.EmbedBatch(context.Background(), "test-model", []string{"test"})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Dimensions != 3 {
		t.Errorf("expected 3 dimensions, got %d", results[0].Dimensions)
	}
}

func TestEmbedBatch_CircuitBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 3)

	for i := 0; i < 6; i++ {
		client.EmbedBatch(context.Background(), "test-model", []string{"test-text-not-cached"})
	}

	_, err := client.EmbedBatch(context.Background(), "test-model", []string{"test-text-not-cached"})
	if err == nil {
		t.Fatal("expected circuit breaker to be open")
	}
}
