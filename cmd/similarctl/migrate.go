package main

import (
	"context"
	"fmt"

	"github.com/turanbrkay/SimilarHub/internal/db"
)

func runMigrate(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("migrate", e.out)
	dir := fs.String("dir", "migrations", "directory of *.up.sql files")
	if err := fs.Parse(args); err != nil {
		return err
	}

	applied, err := db.ApplyMigrations(ctx, e.conn, *dir)
	if err != nil {
		return err
	}
	version, err := db.PgvectorVersion(ctx, e.conn)
	if err != nil {
		return err
	}
	for _, name := range applied {
		fmt.Fprintln(e.out, "applied", name)
	}
	e.logger.Info("migrations applied", "count", len(applied), "pgvector", version)
	return nil
}
