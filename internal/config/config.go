// Package config loads the discovery service's configuration from a JSON
// file and environment variables, the same layered approach the rest of
// the codebase uses for its own services.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds all configuration for the discovery service.
type Config struct {
	Database  DatabaseConfig  `json:"database"`
	Server    ServerConfig    `json:"server"`
	Embedding EmbeddingConfig `json:"embedding"`
	Pipeline  PipelineConfig  `json:"pipeline"`
}

// DatabaseConfig holds the Postgres connection used for both the trace
// store (spans/annotations) and the discovery persistence schema
// (runs/clusters/slices).
type DatabaseConfig struct {
	PostgresURL string `json:"postgres_url"`
}

// ServerConfig holds HTTP API server configuration.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// EmbeddingConfig holds the embedding provider configuration. Leaving URL
// empty disables embeddings project-wide; skip_embeddings in a per-run
// config additionally lets a caller opt out even when a provider is
// configured.
type EmbeddingConfig struct {
	URL        string `json:"url"`
	APIKey     string `json:"api_key"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

// PipelineConfig holds the defaults `discovery run` applies to a run when
// its flags don't override them (the §6 invocation table). Runs started
// over the HTTP API take their defaults from pipeline.DefaultConfig
// instead, not from this section.
type PipelineConfig struct {
	DaysBack              int     `json:"days_back"`
	MinTraces             int     `json:"min_traces"`
	MaxTraces             int     `json:"max_traces"`
	ClusterMethod         string  `json:"cluster_method"`
	MinClusterSize        int     `json:"min_cluster_size"`
	MinSliceSize          int     `json:"min_slice_size"`
	MaxSliceDepth         int     `json:"max_slice_depth"`
	SignificanceThreshold float64 `json:"significance_threshold"`
	EmbeddingModel        string  `json:"embedding_model"`
	SkipEmbeddings        bool    `json:"skip_embeddings"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			PostgresURL: "",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8090,
		},
		Embedding: EmbeddingConfig{
			URL:        "",
			APIKey:     "",
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
		},
		Pipeline: PipelineConfig{
			DaysBack:              7,
			MinTraces:             50,
			MaxTraces:             10000,
			ClusterMethod:         "hdbscan",
			MinClusterSize:        10,
			MinSliceSize:          10,
			MaxSliceDepth:         2,
			SignificanceThreshold: 0.05,
			EmbeddingModel:        "text-embedding-3-small",
			SkipEmbeddings:        false,
		},
	}
}

func envString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func envInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*target = i
		}
	}
}

func envFloat(key string, target *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*target = f
		}
	}
}

func envBool(key string, target *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*target = b
		}
	}
}

// Load loads configuration from a config file (if present) layered with
// environment variable overrides.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := getConfigPath()
	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to parse config file %s: %v\n", configPath, err)
		}
	}

	envString("DISCOVERY_POSTGRES_URL", &cfg.Database.PostgresURL)

	envString("DISCOVERY_SERVER_HOST", &cfg.Server.Host)
	envInt("DISCOVERY_SERVER_PORT", &cfg.Server.Port)

	envString("DISCOVERY_EMBEDDING_URL", &cfg.Embedding.URL)
	envString("DISCOVERY_EMBEDDING_API_KEY", &cfg.Embedding.APIKey)
	envString("DISCOVERY_EMBEDDING_MODEL", &cfg.Embedding.Model)
	envInt("DISCOVERY_EMBEDDING_DIMENSIONS", &cfg.Embedding.Dimensions)

	envInt("DISCOVERY_DAYS_BACK", &cfg.Pipeline.DaysBack)
	envInt("DISCOVERY_MIN_TRACES", &cfg.Pipeline.MinTraces)
	envInt("DISCOVERY_MAX_TRACES", &cfg.Pipeline.MaxTraces)
	envString("DISCOVERY_CLUSTER_METHOD", &cfg.Pipeline.ClusterMethod)
	envInt("DISCOVERY_MIN_CLUSTER_SIZE", &cfg.Pipeline.MinClusterSize)
	envInt("DISCOVERY_MIN_SLICE_SIZE", &cfg.Pipeline.MinSliceSize)
	envInt("DISCOVERY_MAX_SLICE_DEPTH", &cfg.Pipeline.MaxSliceDepth)
	envFloat("DISCOVERY_SIGNIFICANCE_THRESHOLD", &cfg.Pipeline.SignificanceThreshold)
	envString("DISCOVERY_EMBEDDING_MODEL_OVERRIDE", &cfg.Pipeline.EmbeddingModel)
	envBool("DISCOVERY_SKIP_EMBEDDINGS", &cfg.Pipeline.SkipEmbeddings)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsEmbeddingConfigured returns true if an embedding provider endpoint has
// been set.
func (c *Config) IsEmbeddingConfigured() bool {
	return c.Embedding.URL != ""
}

func isValidURL(urlStr string) bool {
	u, err := url.Parse(urlStr)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server port must be between 1 and 65535")
	}

	if c.Database.PostgresURL != "" && !isValidURL(c.Database.PostgresURL) {
		errs = append(errs, "postgres URL must be a valid URL")
	}

	if c.Embedding.URL != "" {
		if !isValidURL(c.Embedding.URL) {
			errs = append(errs, "embedding URL must be a valid URL")
		}
		if c.Embedding.Dimensions < 1 {
			errs = append(errs, "embedding dimensions must be positive when URL is set")
		}
	}

	if c.Pipeline.DaysBack < 1 {
		errs = append(errs, "pipeline days_back must be positive")
	}
	if c.Pipeline.MinTraces < 1 {
		errs = append(errs, "pipeline min_traces must be positive")
	}
	if c.Pipeline.MaxTraces < c.Pipeline.MinTraces {
		errs = append(errs, "pipeline max_traces must be >= min_traces")
	}
	if c.Pipeline.ClusterMethod != "hdbscan" && c.Pipeline.ClusterMethod != "kmeans" {
		errs = append(errs, "pipeline cluster_method must be 'hdbscan' or 'kmeans'")
	}
	if c.Pipeline.MaxSliceDepth < 1 || c.Pipeline.MaxSliceDepth > 2 {
		errs = append(errs, "pipeline max_slice_depth must be 1 or 2")
	}
	if c.Pipeline.SignificanceThreshold <= 0 || c.Pipeline.SignificanceThreshold >= 1 {
		errs = append(errs, "pipeline significance_threshold must be in (0, 1)")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// getConfigPath returns the path to the config file.
func getConfigPath() string {
	if path := os.Getenv("DISCOVERY_CONFIG"); path != "" {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "config.json"
	}

	configDir := filepath.Join(homeDir, ".config", "tracediscover")
	configPath := filepath.Join(configDir, "config.json")
	if _, err := os.Stat(configPath); err == nil {
		return configPath
	}

	return configPath
}
