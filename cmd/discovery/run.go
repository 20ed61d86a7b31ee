package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/longregen/tracediscover/internal/adapters/embedding"
	"github.com/longregen/tracediscover/internal/adapters/tracestore"
	"github.com/longregen/tracediscover/internal/discovery/cluster"
	"github.com/longregen/tracediscover/internal/discovery/pipeline"
	"github.com/longregen/tracediscover/internal/ports"
	"github.com/spf13/cobra"
)

// runCmd executes a single discovery pipeline invocation against the
// configured trace store and prints the resulting report.
func runCmd() *cobra.Command {
	var (
		daysBack  int
		jsonOut   bool
		noEmbed   bool
		method    string
		minTraces int
		maxTraces int
	)

	cmd := &cobra.Command{
		Use:   "run <project>",
		Short: "Run discovery once for a project and print the report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := args[0]
			ctx := cmd.Context()

			pool, err := initDB(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			store := tracestore.NewStore(pool)

			var embedProvider ports.EmbeddingProvider
			if cfg.IsEmbeddingConfigured() && !noEmbed {
				embedProvider = embedding.NewClient(cfg.Embedding.URL, cfg.Embedding.APIKey, cfg.Embedding.Dimensions)
			}

			orchestrator := pipeline.NewOrchestrator(store, store, embedProvider)

			runCfg := pipeline.DefaultConfig()
			runCfg.ClusterMethod = cluster.Method(cfg.Pipeline.ClusterMethod)
			runCfg.MinClusterSize = cfg.Pipeline.MinClusterSize
			runCfg.MinSliceSize = cfg.Pipeline.MinSliceSize
			runCfg.MaxSliceDepth = cfg.Pipeline.MaxSliceDepth
			runCfg.SignificanceThreshold = cfg.Pipeline.SignificanceThreshold
			runCfg.EmbeddingModel = cfg.Pipeline.EmbeddingModel
			runCfg.MinTraces = cfg.Pipeline.MinTraces
			runCfg.MaxTraces = cfg.Pipeline.MaxTraces
			switch method {
			case "hdbscan":
				runCfg.ClusterMethod = cluster.MethodHDBSCAN
			case "kmeans":
				runCfg.ClusterMethod = cluster.MethodKMeans
			}
			if minTraces > 0 {
				runCfg.MinTraces = minTraces
			}
			if maxTraces > 0 {
				runCfg.MaxTraces = maxTraces
			}
			runCfg.SkipEmbeddings = noEmbed || cfg.Pipeline.SkipEmbeddings || embedProvider == nil

			days := daysBack
			if days <= 0 {
				days = cfg.Pipeline.DaysBack
			}
			end := time.Now().UTC()
			window := pipeline.TimeRange{Start: end.AddDate(0, 0, -days), End: end}

			report, err := orchestrator.Run(ctx, projectID, window, runCfg)
			if err != nil {
				return fmt.Errorf("discovery run failed: %w", err)
			}

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			fmt.Fprintln(cmd.OutOrStdout(), report.Summary())
			for _, c := range report.Clusters {
				fmt.Fprintf(cmd.OutOrStdout(), "  cluster %d: size=%d badness_rate=%.2f dominant_intent=%s dominant_route=%s dominant_model=%s\n",
					c.ClusterID, c.Size, c.BadnessRate, c.DominantIntent, c.DominantRoute, c.DominantModel)
			}
			for _, s := range report.TopSlices {
				fmt.Fprintf(cmd.OutOrStdout(), "  slice %s: size=%d lift=%.2f p_value=%.4f\n",
					s.AttributeString(), s.Size, s.Lift, s.PValue)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&daysBack, "days-back", 0, "days of history to scan (defaults to pipeline config)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the report as JSON instead of a text summary")
	cmd.Flags().BoolVar(&noEmbed, "skip-embeddings", false, "bypass the embedding block of the feature matrix")
	cmd.Flags().StringVar(&method, "cluster-method", "", "hdbscan or kmeans (defaults to pipeline config)")
	cmd.Flags().IntVar(&minTraces, "min-traces", 0, "override the minimum trace gate")
	cmd.Flags().IntVar(&maxTraces, "max-traces", 0, "override the maximum trace truncation")

	return cmd
}
