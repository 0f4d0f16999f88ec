package ranking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/turanbrkay/SimilarHub/internal/keywords"
	"github.com/turanbrkay/SimilarHub/internal/media"
	"github.com/turanbrkay/SimilarHub/internal/tracing"
)

// ErrVectorIndexUnavailable wraps any failure of the vector index.
var ErrVectorIndexUnavailable = errors.New("vector index unavailable")

// NearestQuery asks the vector index for the items closest to a pair of
// query vectors under a weighted cosine similarity.
type NearestQuery struct {
	Analytical       []float32
	Plot             []float32
	WeightAnalytical float64
	WeightPlot       float64
	Limit            int
}

// Neighbor is one vector index hit with both per-vector similarities.
type Neighbor struct {
	ID            int64
	Title         string
	Keywords      keywords.Set
	SimAnalytical float64
	SimPlot       float64
}

// VectorIndex returns up to Limit items that have both vectors, ordered by
// WeightAnalytical*simA + WeightPlot*simP descending, then id ascending.
// Similarities are 1 - cosine distance.
type VectorIndex interface {
	Nearest(ctx context.Context, q NearestQuery) ([]Neighbor, error)
}

// Vectors holds the two query embeddings.
type Vectors struct {
	Analytical []float32
	Plot       []float32
}

// Complete reports whether both vectors are present.
func (v Vectors) Complete() bool {
	return len(v.Analytical) > 0 && len(v.Plot) > 0
}

// Query describes a similarity search.
type Query struct {
	Vectors  Vectors
	Keywords keywords.Set
	// CategoryWeights overrides the ranker's table for this call when non-nil.
	CategoryWeights keywords.CategoryWeights
}

// CandidateScore is one ranked result with its per-signal breakdown.
type CandidateScore struct {
	ID         int64              `json:"id"`
	Title      string             `json:"title"`
	Signals    media.SignalScores `json:"similarity_details"`
	FinalScore float64            `json:"final_score"`
}

// Ranker fuses vector and keyword similarities into a single ranking.
// It holds no mutable state after construction and is safe for concurrent use.
type Ranker struct {
	index           VectorIndex
	categoryWeights keywords.CategoryWeights
	metrics         *Metrics
	logger          *slog.Logger
}

// NewRanker creates a ranker over index using categoryWeights for keyword
// similarity. A nil table uses keywords.DefaultCategoryWeights.
func NewRanker(index VectorIndex, categoryWeights keywords.CategoryWeights, metrics *Metrics, logger *slog.Logger) *Ranker {
	if categoryWeights == nil {
		categoryWeights = keywords.DefaultCategoryWeights()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ranker{
		index:           index,
		categoryWeights: categoryWeights.Clone(),
		metrics:         metrics,
		logger:          logger,
	}
}

// CategoryWeights returns a copy of the ranker's category weight table.
func (r *Ranker) CategoryWeights() keywords.CategoryWeights {
	return r.categoryWeights.Clone()
}

// Search ranks catalog items against q.
//
// The vector index is asked for min(limit*5, 500) candidates ordered by the
// two vector signals only. Each candidate then gets a keyword similarity
// against q.Keywords, the three signals are fused with weights, candidates
// below minScore are dropped, and the rest are sorted by final score
// (ties by ascending id) and truncated to limit.
//
// Items that rank outside the over-fetched window on vectors alone are never
// considered, even if their keyword overlap would lift them.
//
// A query missing either vector, or a non-positive limit, yields an empty
// result. Index failures are wrapped in ErrVectorIndexUnavailable.
func (r *Ranker) Search(ctx context.Context, q Query, weights WeightProfile, limit int, minScore float64) (results []CandidateScore, err error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 || !q.Vectors.Complete() {
		return []CandidateScore{}, nil
	}

	ctx, endSpan := tracing.StartSpan(ctx, "ranking.search")
	defer func() { endSpan(err) }()

	start := time.Now()
	defer func() {
		if r.metrics != nil {
			r.metrics.ObserveSearch(weights.Name, time.Since(start).Seconds(), len(results), err)
		}
	}()

	candidateLimit := CandidateLimit(limit)
	tracing.SetAttributes(ctx,
		attribute.Int("ranking.limit", limit),
		attribute.Int("ranking.candidate_limit", candidateLimit),
		attribute.String("ranking.profile", weights.Name),
	)

	neighbors, err := r.index.Nearest(ctx, NearestQuery{
		Analytical:       q.Vectors.Analytical,
		Plot:             q.Vectors.Plot,
		WeightAnalytical: weights.Analytical,
		WeightPlot:       weights.Plot,
		Limit:            candidateLimit,
	})
	if err != nil {
		r.logger.Error("vector index query failed",
			slog.String("error", err.Error()),
			slog.Int("candidate_limit", candidateLimit))
		return nil, fmt.Errorf("%w: %w", ErrVectorIndexUnavailable, err)
	}

	cw := r.categoryWeights
	if q.CategoryWeights != nil {
		cw = q.CategoryWeights
	}

	results = make([]CandidateScore, 0, len(neighbors))
	for _, n := range neighbors {
		signals := media.SignalScores{
			Analytical: Clamp01(n.SimAnalytical),
			Plot:       Clamp01(n.SimPlot),
			Keywords:   keywords.Similarity(q.Keywords, n.Keywords, cw),
		}
		final := CompositeScore(signals, weights)
		if final < minScore {
			continue
		}
		results = append(results, CandidateScore{
			ID:         n.ID,
			Title:      n.Title,
			Signals:    signals,
			FinalScore: final,
		})
	}

	SortCandidates(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// SortCandidates orders by final score descending, then id ascending.
func SortCandidates(c []CandidateScore) {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].FinalScore != c[j].FinalScore {
			return c[i].FinalScore > c[j].FinalScore
		}
		return c[i].ID < c[j].ID
	})
}
