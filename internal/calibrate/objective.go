package calibrate

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/turanbrkay/SimilarHub/internal/keywords"
	"github.com/turanbrkay/SimilarHub/internal/media"
	"github.com/turanbrkay/SimilarHub/internal/ranking"
)

// SearchDepth is how many results are inspected for the expected title.
const SearchDepth = 50

// Config is one candidate configuration: the signal weights plus the
// keyword category table.
type Config struct {
	Weights    ranking.WeightProfile    `json:"weights"`
	Categories keywords.CategoryWeights `json:"categories"`
}

// Clone returns a copy that shares no maps with c.
func (c Config) Clone() Config {
	out := Config{Weights: c.Weights}
	if c.Categories != nil {
		out.Categories = c.Categories.Clone()
	}
	return out
}

// ObjectiveFunc scores a configuration; higher is better.
type ObjectiveFunc func(ctx context.Context, cfg Config) (float64, error)

// Searcher is the ranking dependency; *ranking.Ranker implements it.
type Searcher interface {
	Search(ctx context.Context, q ranking.Query, weights ranking.WeightProfile, limit int, minScore float64) ([]ranking.CandidateScore, error)
}

// resolvedPair is a golden pair whose source item has been loaded.
type resolvedPair struct {
	source   *media.Item
	expected string
}

// resolve loads the source item of every pair. Unknown sources and sources
// without vectors are skipped with a warning.
func resolve(ctx context.Context, items media.ItemReader, golden []GoldenPair, logger *slog.Logger) ([]resolvedPair, error) {
	out := make([]resolvedPair, 0, len(golden))
	for _, p := range golden {
		item, err := items.FindByTitle(ctx, p.Source)
		if errors.Is(err, media.ErrItemNotFound) {
			logger.Warn("golden source not found", slog.String("title", p.Source))
			continue
		}
		if err != nil {
			return nil, err
		}
		if !item.HasVectors() {
			logger.Warn("golden source has no vectors", slog.String("title", p.Source))
			continue
		}
		out = append(out, resolvedPair{source: item, expected: p.Expected})
	}
	return out, nil
}

// reciprocalRank returns 1/r for the 1-indexed position of title in results,
// or 0 when it is absent.
func reciprocalRank(results []ranking.CandidateScore, title string) float64 {
	for i, r := range results {
		if strings.EqualFold(r.Title, title) {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

// meanReciprocalRank builds the MRR@SearchDepth objective over pairs.
// A pair whose search fails is left out of the mean; with no scored pairs
// the objective is 0.
func meanReciprocalRank(searcher Searcher, pairs []resolvedPair, logger *slog.Logger) ObjectiveFunc {
	return func(ctx context.Context, cfg Config) (float64, error) {
		var sum float64
		var scored int
		for _, p := range pairs {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			results, err := searcher.Search(ctx, ranking.Query{
				Vectors:         ranking.Vectors{Analytical: p.source.Analytical, Plot: p.source.Plot},
				Keywords:        p.source.Keywords,
				CategoryWeights: cfg.Categories,
			}, cfg.Weights, SearchDepth, 0)
			if err != nil {
				if ctx.Err() != nil {
					return 0, ctx.Err()
				}
				logger.Warn("golden pair search failed",
					slog.String("source", p.source.Title),
					slog.String("error", err.Error()))
				continue
			}
			sum += reciprocalRank(results, p.expected)
			scored++
		}
		if scored == 0 {
			return 0, nil
		}
		return sum / float64(scored), nil
	}
}
