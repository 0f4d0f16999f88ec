// Package postgres implements the catalog, vector index and similarity edge
// stores on PostgreSQL with pgvector.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/turanbrkay/SimilarHub/internal/keywords"
	"github.com/turanbrkay/SimilarHub/internal/media"
	"github.com/turanbrkay/SimilarHub/internal/ranking"
	"github.com/turanbrkay/SimilarHub/internal/tracing"
)

var (
	_ media.ItemReader    = (*Store)(nil)
	_ media.EdgeWriter    = (*Store)(nil)
	_ media.EdgeReader    = (*Store)(nil)
	_ media.StatsReader   = (*Store)(nil)
	_ ranking.VectorIndex = (*Store)(nil)
)

// Store reads and writes media_items and similar_items.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates a Store over db.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

const itemColumns = `id, title, overview, genres, poster_url, embedding_analytical, embedding_plot, keywords_json`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanItem reads one row selected with itemColumns.
func (s *Store) scanItem(row rowScanner) (*media.Item, error) {
	var (
		item       media.Item
		genres     pq.StringArray
		analytical *pgvector.Vector
		plot       *pgvector.Vector
		rawKw      []byte
	)
	if err := row.Scan(&item.ID, &item.Title, &item.Overview, &genres, &item.PosterURL, &analytical, &plot, &rawKw); err != nil {
		return nil, err
	}
	item.Genres = []string(genres)
	if analytical != nil {
		item.Analytical = analytical.Slice()
	}
	if plot != nil {
		item.Plot = plot.Slice()
	}
	item.Keywords = keywords.Normalize(rawKw, s.logger.With(slog.Int64("item_id", item.ID)))
	return &item, nil
}

// Get returns one item by id.
func (s *Store) Get(ctx context.Context, id int64) (item *media.Item, err error) {
	if id <= 0 {
		return nil, media.ErrInvalidID
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "media_items", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM media_items WHERE id = $1`, id)
	item, err = s.scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, media.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item %d: %w", id, err)
	}
	return item, nil
}

// FindByTitle resolves a title case-insensitively. When several items share
// the title the lowest id wins.
func (s *Store) FindByTitle(ctx context.Context, title string) (item *media.Item, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "media_items", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+`
		FROM media_items
		WHERE LOWER(title) = LOWER($1)
		ORDER BY id
		LIMIT 1
	`, title)
	item, err = s.scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, media.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find item by title: %w", err)
	}
	return item, nil
}

// ListEmbedded returns every item with both vectors, ordered by id.
func (s *Store) ListEmbedded(ctx context.Context) (items []media.Item, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "media_items", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM media_items
		WHERE embedding_analytical IS NOT NULL AND embedding_plot IS NOT NULL
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list embedded items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item, err := s.scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}
	return items, nil
}

// UpsertItem inserts item or replaces the stored row with the same id.
// Missing vectors or keywords are stored as NULL.
func (s *Store) UpsertItem(ctx context.Context, item media.Item) (err error) {
	if item.ID <= 0 {
		return media.ErrInvalidID
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "media_items", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	var analytical, plot any
	if len(item.Analytical) > 0 {
		analytical = pgvector.NewVector(item.Analytical)
	}
	if len(item.Plot) > 0 {
		plot = pgvector.NewVector(item.Plot)
	}
	var kw any
	if !item.Keywords.Empty() {
		b, err := json.Marshal(item.Keywords)
		if err != nil {
			return fmt.Errorf("failed to encode keywords: %w", err)
		}
		kw = string(b)
	}
	genres := item.Genres
	if genres == nil {
		genres = []string{}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO media_items (id, title, overview, genres, poster_url, embedding_analytical, embedding_plot, keywords_json)
		VALUES ($1, $2, $3, $4, $5, $6::vector, $7::vector, $8::jsonb)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			overview = EXCLUDED.overview,
			genres = EXCLUDED.genres,
			poster_url = EXCLUDED.poster_url,
			embedding_analytical = EXCLUDED.embedding_analytical,
			embedding_plot = EXCLUDED.embedding_plot,
			keywords_json = EXCLUDED.keywords_json,
			updated_at = NOW()
	`, item.ID, item.Title, item.Overview, pq.Array(genres), item.PosterURL, analytical, plot, kw)
	if err != nil {
		return fmt.Errorf("failed to upsert item %d: %w", item.ID, err)
	}
	return nil
}

// Stats reports embedding coverage.
func (s *Store) Stats(ctx context.Context) (st media.Stats, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "media_items", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	err = s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(embedding_analytical),
			COUNT(embedding_plot),
			COUNT(*) FILTER (WHERE keywords_json IS NOT NULL AND keywords_json <> '{}'::jsonb),
			COUNT(*) FILTER (WHERE embedding_analytical IS NOT NULL AND embedding_plot IS NOT NULL)
		FROM media_items
	`).Scan(&st.Total, &st.WithAnalytical, &st.WithPlot, &st.WithKeywords, &st.WithAllVectors)
	if err != nil {
		return media.Stats{}, fmt.Errorf("failed to query embedding stats: %w", err)
	}
	st.ComputeCompletionRate()
	return st, nil
}
