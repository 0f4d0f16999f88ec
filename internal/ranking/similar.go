package ranking

import (
	"context"

	"github.com/turanbrkay/SimilarHub/internal/media"
)

// Searcher ranks catalog items; *Ranker implements it.
type Searcher interface {
	Search(ctx context.Context, q Query, weights WeightProfile, limit int, minScore float64) ([]CandidateScore, error)
}

// SimilarTo ranks the catalog against item's own vectors and keywords and
// drops item itself. It asks for limit+1 results so up to limit remain after
// the self hit is removed. An item without both vectors yields no results.
func SimilarTo(ctx context.Context, s Searcher, item *media.Item, weights WeightProfile, limit int, minScore float64) ([]CandidateScore, error) {
	if limit <= 0 || !item.HasVectors() {
		return []CandidateScore{}, nil
	}

	results, err := s.Search(ctx, Query{
		Vectors:  Vectors{Analytical: item.Analytical, Plot: item.Plot},
		Keywords: item.Keywords,
	}, weights, limit+1, minScore)
	if err != nil {
		return nil, err
	}

	out := make([]CandidateScore, 0, limit)
	for _, r := range results {
		if r.ID == item.ID {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, r)
	}
	return out, nil
}
