package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/turanbrkay/SimilarHub/internal/media"
	"github.com/turanbrkay/SimilarHub/internal/tracing"
)

// ReplaceEdges deletes every edge of source and upserts edges in one
// transaction. On failure the previous edges stay in place.
func (s *Store) ReplaceEdges(ctx context.Context, source int64, edges []media.Edge) (err error) {
	if source <= 0 {
		return media.ErrInvalidID
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "similar_items", tracing.DBOperationExec)
	defer func() { endSpan(err) }()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		s.logger.Error("failed to begin transaction",
			slog.String("error", err.Error()),
			slog.Int64("source_id", source))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Always attempt rollback on function exit (no-op after successful commit)
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			s.logger.Warn("failed to rollback transaction",
				slog.String("error", err.Error()))
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM similar_items WHERE source_id = $1`, source); err != nil {
		return fmt.Errorf("failed to delete edges of %d: %w", source, err)
	}

	if len(edges) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO similar_items (source_id, target_id, score, similarity_details, updated_at)
			VALUES ($1, $2, $3, $4::jsonb, NOW())
			ON CONFLICT (source_id, target_id) DO UPDATE
			SET score = EXCLUDED.score,
				similarity_details = EXCLUDED.similarity_details,
				updated_at = NOW()
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare edge insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range edges {
			details, err := json.Marshal(e.Details)
			if err != nil {
				return fmt.Errorf("failed to encode similarity details: %w", err)
			}
			if _, err := stmt.ExecContext(ctx, source, e.TargetID, e.Score, string(details)); err != nil {
				return fmt.Errorf("failed to insert edge %d->%d: %w", source, e.TargetID, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		s.logger.Error("failed to commit transaction",
			slog.String("error", err.Error()),
			slog.Int64("source_id", source))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug("similarity edges replaced",
		slog.Int64("source_id", source),
		slog.Int("edges", len(edges)))
	return nil
}

// Neighbors returns up to limit edges of source, highest score first,
// joined with the target's display fields. A non-positive limit returns all.
func (s *Store) Neighbors(ctx context.Context, source int64, limit int) (out []media.Neighbor, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "similar_items", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.title, m.poster_url, s.score, s.similarity_details
		FROM similar_items s
		JOIN media_items m ON s.target_id = m.id
		WHERE s.source_id = $1
		ORDER BY s.score DESC, m.id ASC
		LIMIT $2
	`, source, lim)
	if err != nil {
		return nil, fmt.Errorf("failed to query neighbors of %d: %w", source, err)
	}
	defer rows.Close()

	out = []media.Neighbor{}
	for rows.Next() {
		var (
			n       media.Neighbor
			details []byte
		)
		if err := rows.Scan(&n.ID, &n.Title, &n.PosterURL, &n.Score, &details); err != nil {
			return nil, fmt.Errorf("failed to scan neighbor: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &n.Details); err != nil {
				s.logger.Warn("malformed similarity details",
					slog.Int64("source_id", source),
					slog.Int64("target_id", n.ID),
					slog.String("error", err.Error()))
			}
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate neighbors: %w", err)
	}
	return out, nil
}
