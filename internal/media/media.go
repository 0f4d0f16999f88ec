// Package media defines the catalog items ranked by the similarity engine,
// the materialized similarity edges, and the persistence interfaces the
// ranking core depends on.
package media

import (
	"context"
	"errors"

	"github.com/turanbrkay/SimilarHub/internal/keywords"
)

// DefaultVectorDimension is the embedding width produced by the encoder.
const DefaultVectorDimension = 1024

// Sentinel errors for persistence operations.
var (
	ErrItemNotFound = errors.New("media item not found")
	ErrInvalidID    = errors.New("media item id must be positive")
)

// Item is a catalog entry with its optional embeddings and keywords.
type Item struct {
	ID         int64        `json:"id"`
	Title      string       `json:"title"`
	Overview   string       `json:"overview,omitempty"`
	Genres     []string     `json:"genres,omitempty"`
	PosterURL  string       `json:"poster_url,omitempty"`
	Analytical []float32    `json:"-"`
	Plot       []float32    `json:"-"`
	Keywords   keywords.Set `json:"keywords,omitempty"`
}

// HasVectors reports whether both embeddings are present.
// Items without both are excluded from ranking and materialization.
func (i *Item) HasVectors() bool {
	return len(i.Analytical) > 0 && len(i.Plot) > 0
}

// SignalScores is the per-signal similarity breakdown, each in [0, 1].
type SignalScores struct {
	Analytical float64 `json:"analytical"`
	Plot       float64 `json:"plot"`
	Keywords   float64 `json:"keywords"`
}

// Edge is a materialized similarity between two items.
// (SourceID, TargetID) is unique.
type Edge struct {
	SourceID int64        `json:"source_id"`
	TargetID int64        `json:"target_id"`
	Score    float64      `json:"score"`
	Details  SignalScores `json:"similarity_details"`
}

// Neighbor is a materialized edge joined with the target's display fields.
type Neighbor struct {
	ID        int64        `json:"id"`
	Title     string       `json:"title"`
	PosterURL string       `json:"poster_url,omitempty"`
	Score     float64      `json:"similarity_score"`
	Details   SignalScores `json:"similarity_details"`
}

// Stats summarizes embedding coverage across the catalog.
type Stats struct {
	Total          int64   `json:"total_items"`
	WithAnalytical int64   `json:"with_analytical_embedding"`
	WithPlot       int64   `json:"with_plot_embedding"`
	WithKeywords   int64   `json:"with_keywords"`
	WithAllVectors int64   `json:"with_all_embeddings"`
	CompletionRate float64 `json:"completion_rate"`
}

// ComputeCompletionRate sets CompletionRate to the percentage of items with
// both embeddings, rounded to two decimals.
func (s *Stats) ComputeCompletionRate() {
	if s.Total == 0 {
		s.CompletionRate = 0
		return
	}
	pct := float64(s.WithAllVectors) / float64(s.Total) * 100
	s.CompletionRate = float64(int64(pct*100+0.5)) / 100
}

// ItemReader reads catalog items.
type ItemReader interface {
	// ListEmbedded returns every item with both vectors, ordered by id.
	ListEmbedded(ctx context.Context) ([]Item, error)
	// FindByTitle resolves a title case-insensitively. Returns ErrItemNotFound.
	FindByTitle(ctx context.Context, title string) (*Item, error)
	// Get returns one item by id. Returns ErrItemNotFound.
	Get(ctx context.Context, id int64) (*Item, error)
}

// EdgeWriter persists materialized edges.
type EdgeWriter interface {
	// ReplaceEdges deletes every edge of source and upserts edges, atomically.
	ReplaceEdges(ctx context.Context, source int64, edges []Edge) error
}

// EdgeReader serves materialized edges.
type EdgeReader interface {
	// Neighbors returns up to limit edges of source, highest score first.
	Neighbors(ctx context.Context, source int64, limit int) ([]Neighbor, error)
}

// StatsReader reports embedding coverage.
type StatsReader interface {
	Stats(ctx context.Context) (Stats, error)
}
