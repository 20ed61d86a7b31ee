package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/longregen/tracediscover/internal/adapters/embedding"
	"github.com/longregen/tracediscover/internal/adapters/httpapi"
	"github.com/longregen/tracediscover/internal/adapters/id"
	"github.com/longregen/tracediscover/internal/adapters/metrics"
	"github.com/longregen/tracediscover/internal/adapters/postgres"
	"github.com/longregen/tracediscover/internal/adapters/tracestore"
	"github.com/longregen/tracediscover/internal/adapters/tracing"
	"github.com/longregen/tracediscover/internal/discovery/pipeline"
	"github.com/longregen/tracediscover/internal/ports"
	"github.com/spf13/cobra"
)

// serveCmd starts the HTTP API server that accepts discovery run requests
// and serves back persisted reports.
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the discovery HTTP API server.

The server exposes endpoints to kick off a discovery run for a project
and to fetch a previously completed run's report.

Required configuration:
  - PostgreSQL database (DISCOVERY_POSTGRES_URL)

Optional:
  - Embedding provider (DISCOVERY_EMBEDDING_URL, DISCOVERY_EMBEDDING_API_KEY)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

// runServer initializes and starts the HTTP API server.
func runServer(ctx context.Context) error {
	log.Println("Starting discovery API server...")
	log.Printf("  HTTP:     http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("  Postgres: %s", maskDatabaseURL(cfg.Database.PostgresURL))
	if cfg.IsEmbeddingConfigured() {
		log.Printf("  Embedding: %s (%s, %d dims)", cfg.Embedding.URL, cfg.Embedding.Model, cfg.Embedding.Dimensions)
	} else {
		log.Println("  Embedding: disabled, feature matrix will skip the embedding block")
	}

	shutdownTracer, err := tracing.InitTracer("discovery")
	if err != nil {
		return fmt.Errorf("failed to init tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			log.Printf("tracer shutdown error: %v", err)
		}
	}()

	pool, err := initDB(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := tracestore.NewStore(pool)
	repo := postgres.NewDiscoveryRepository(pool)
	idGen := id.New()

	var embedProvider ports.EmbeddingProvider
	if cfg.IsEmbeddingConfigured() {
		embedProvider = embedding.NewClient(cfg.Embedding.URL, cfg.Embedding.APIKey, cfg.Embedding.Dimensions)
	}

	orchestrator := pipeline.NewOrchestrator(store, store, embedProvider)
	orchestrator.Metrics = metrics.New()

	handler := httpapi.NewDiscoveryHandler(orchestrator, repo, idGen)
	router := httpapi.NewRouter(handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // a discovery run can take a while
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigCh:
		log.Printf("received signal %s, shutting down", sig)
	case <-ctx.Done():
		log.Println("context cancelled, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	log.Println("server stopped")
	return nil
}
