// Package db provides database utilities and connection handling for SimilarHub.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// PgvectorRequirement documents that the application requires PostgreSQL with pgvector.
// pgvector stores the item embeddings and serves cosine-distance queries.
const PgvectorRequirement = "pgvector extension is required for similarity search"

// VersionQuery is the SQL query to verify pgvector is available.
const VersionQuery = "SELECT extversion FROM pg_extension WHERE extname = 'vector'"

// PoolConfig bounds the connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPoolConfig returns pool settings suited to the API server.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// Open connects to databaseURL and verifies the connection with a ping.
func Open(ctx context.Context, databaseURL string, pool PoolConfig) (*sql.DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return conn, nil
}

// PgvectorVersion returns the installed pgvector version.
func PgvectorVersion(ctx context.Context, conn *sql.DB) (string, error) {
	var version string
	err := conn.QueryRowContext(ctx, VersionQuery).Scan(&version)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%s: extension not installed", PgvectorRequirement)
	}
	if err != nil {
		return "", fmt.Errorf("failed to query pgvector version: %w", err)
	}
	return version, nil
}

// ApplyMigrations executes every *.up.sql file in dir in name order.
// Migrations are written to be re-runnable.
func ApplyMigrations(ctx context.Context, conn *sql.DB, dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(files)

	applied := make([]string, 0, len(files))
	for _, f := range files {
		body, err := os.ReadFile(f)
		if err != nil {
			return applied, fmt.Errorf("failed to read migration %s: %w", f, err)
		}
		if strings.TrimSpace(string(body)) == "" {
			continue
		}
		if _, err := conn.ExecContext(ctx, string(body)); err != nil {
			return applied, fmt.Errorf("failed to apply migration %s: %w", filepath.Base(f), err)
		}
		applied = append(applied, filepath.Base(f))
	}
	return applied, nil
}
