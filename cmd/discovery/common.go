package main

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/longregen/tracediscover/internal/config"
)

// Version information (set via ldflags)
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// cfg is populated by the root command's PersistentPreRunE before any
// subcommand runs.
var cfg *config.Config

// initDB opens a Postgres connection pool for the configured trace store
// and discovery persistence schema.
func initDB(ctx context.Context) (*pgxpool.Pool, error) {
	if cfg.Database.PostgresURL == "" {
		return nil, fmt.Errorf("postgres connection required: set DISCOVERY_POSTGRES_URL")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Force UTC timezone to prevent timezone-related issues with TIMESTAMP columns
	poolConfig.ConnConfig.RuntimeParams["timezone"] = "UTC"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return pool, nil
}

// maskSecret masks a secret string for display.
func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "(set)"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// maskDatabaseURL masks the password in a database URL for safe logging.
func maskDatabaseURL(dbURL string) string {
	if dbURL == "" {
		return "(not set)"
	}
	parsed, err := url.Parse(dbURL)
	if err != nil {
		return "[invalid URL]"
	}
	if parsed.User != nil {
		if _, hasPassword := parsed.User.Password(); hasPassword {
			parsed.User = url.UserPassword(parsed.User.Username(), "****")
		}
	}
	return parsed.String()
}

// boolStatus returns a status string for a boolean.
func boolStatus(b bool) string {
	if b {
		return "configured"
	}
	return "not configured"
}
