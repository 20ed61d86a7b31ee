// Command discovery runs unsupervised failure discovery over AI-agent
// execution traces: it fetches spans from a trace store, extracts
// features, scores badness, clusters traces, mines problematic slices,
// and either prints the resulting report or persists it and serves it
// over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/longregen/tracediscover/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "discovery",
		Short: "Unsupervised failure discovery over agent execution traces",
		Long: `discovery analyzes a corpus of agent execution traces and produces a
report of behavioral clusters and problematic slices, ranked by failure rate.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(
		runCmd(),
		serveCmd(),
		configCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// configCmd shows current configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Current configuration:")
			fmt.Println()

			fmt.Println("Database:")
			fmt.Printf("  Postgres: %s\n", maskDatabaseURL(cfg.Database.PostgresURL))
			fmt.Println()

			fmt.Println("Server:")
			fmt.Printf("  Host: %s\n", cfg.Server.Host)
			fmt.Printf("  Port: %d\n", cfg.Server.Port)
			fmt.Println()

			fmt.Println("Embedding:")
			fmt.Printf("  URL:        %s\n", cfg.Embedding.URL)
			fmt.Printf("  Model:      %s\n", cfg.Embedding.Model)
			fmt.Printf("  Dimensions: %d\n", cfg.Embedding.Dimensions)
			fmt.Printf("  API Key:    %s\n", maskSecret(cfg.Embedding.APIKey))
			fmt.Printf("  Status:     %s\n", boolStatus(cfg.IsEmbeddingConfigured()))
			fmt.Println()

			fmt.Println("Pipeline defaults:")
			fmt.Printf("  Days back:              %d\n", cfg.Pipeline.DaysBack)
			fmt.Printf("  Min traces:             %d\n", cfg.Pipeline.MinTraces)
			fmt.Printf("  Max traces:             %d\n", cfg.Pipeline.MaxTraces)
			fmt.Printf("  Cluster method:         %s\n", cfg.Pipeline.ClusterMethod)
			fmt.Printf("  Min cluster size:       %d\n", cfg.Pipeline.MinClusterSize)
			fmt.Printf("  Min slice size:         %d\n", cfg.Pipeline.MinSliceSize)
			fmt.Printf("  Max slice depth:        %d\n", cfg.Pipeline.MaxSliceDepth)
			fmt.Printf("  Significance threshold: %.3f\n", cfg.Pipeline.SignificanceThreshold)
			fmt.Printf("  Skip embeddings:        %v\n", cfg.Pipeline.SkipEmbeddings)
			fmt.Println()

			fmt.Println("Environment variables:")
			fmt.Println("  DISCOVERY_POSTGRES_URL")
			fmt.Println("  DISCOVERY_SERVER_HOST, DISCOVERY_SERVER_PORT")
			fmt.Println("  DISCOVERY_EMBEDDING_URL, DISCOVERY_EMBEDDING_API_KEY, DISCOVERY_EMBEDDING_MODEL, DISCOVERY_EMBEDDING_DIMENSIONS")
			fmt.Println("  DISCOVERY_DAYS_BACK, DISCOVERY_MIN_TRACES, DISCOVERY_MAX_TRACES")
			fmt.Println("  DISCOVERY_CLUSTER_METHOD, DISCOVERY_MIN_CLUSTER_SIZE")
			fmt.Println("  DISCOVERY_MIN_SLICE_SIZE, DISCOVERY_MAX_SLICE_DEPTH, DISCOVERY_SIGNIFICANCE_THRESHOLD")
			fmt.Println("  DISCOVERY_SKIP_EMBEDDINGS")

			return nil
		},
	}
}

// versionCmd shows version information.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("discovery %s\n", version)
			fmt.Printf("  Commit:     %s\n", commit)
			fmt.Printf("  Build Date: %s\n", buildDate)
		},
	}
}
