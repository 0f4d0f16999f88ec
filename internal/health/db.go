// Package health implements readiness probes for the serving dependencies.
package health

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/turanbrkay/SimilarHub/internal/db"
)

// DBChecker pings PostgreSQL and verifies that pgvector is installed, since
// every ranking query depends on it.
type DBChecker struct {
	conn *sql.DB
}

// NewDBChecker creates a database checker.
func NewDBChecker(conn *sql.DB) *DBChecker {
	return &DBChecker{conn: conn}
}

// HealthCheck pings the database, then reads the pgvector version.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	if err := d.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if _, err := db.PgvectorVersion(ctx, d.conn); err != nil {
		return err
	}
	return nil
}
