package fusion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/sony/gobreaker"
)

// ErrLexicalUnavailable is returned when no lexical scorer is configured or
// its circuit is open.
var ErrLexicalUnavailable = errors.New("lexical scorer unavailable")

// LexicalScorer scores a fixed, id-ordered corpus against query tokens.
// ids and scores are parallel; ids not matching any token may be omitted or
// scored 0.
type LexicalScorer interface {
	Tokenize(text string) []string
	Scores(ctx context.Context, tokens []string) (ids []int64, scores []float64, err error)
}

// RankLexical max-normalizes scores and returns up to limit ids ordered by
// normalized score descending, ties by ascending id. Ids scoring 0 are left
// out. An empty or all-zero score array means no lexical signal and yields
// nil.
func RankLexical(ids []int64, scores []float64, limit int) []int64 {
	n := len(ids)
	if len(scores) < n {
		n = len(scores)
	}

	var maxScore float64
	for i := 0; i < n; i++ {
		if scores[i] > maxScore {
			maxScore = scores[i]
		}
	}
	if maxScore <= 0 || limit <= 0 {
		return nil
	}

	type hit struct {
		id    int64
		score float64
	}
	hits := make([]hit, 0, n)
	for i := 0; i < n; i++ {
		if scores[i] <= 0 {
			continue
		}
		hits = append(hits, hit{id: ids[i], score: scores[i] / maxScore})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].id < hits[j].id
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]int64, len(hits))
	for i, h := range hits {
		out[i] = h.id
	}
	return out
}

// BreakerConfig tunes the circuit breaker around the lexical scorer.
type BreakerConfig struct {
	MaxRequests      uint32
	MinRequests      uint32 // requests in an interval before the ratio is considered
	Interval         time.Duration
	Timeout          time.Duration
	ReadyToTripRatio float64
}

// DefaultBreakerConfig returns conservative breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      1,
		MinRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		ReadyToTripRatio: 0.6,
	}
}

// BreakerScorer wraps a LexicalScorer with a circuit breaker so that a
// failing scorer is skipped quickly instead of slowing every request.
type BreakerScorer struct {
	scorer LexicalScorer
	cb     *gobreaker.CircuitBreaker
}

// NewBreakerScorer wraps scorer. State changes are logged through logger.
func NewBreakerScorer(scorer LexicalScorer, cfg BreakerConfig, logger *slog.Logger) *BreakerScorer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 1
	}
	st := gobreaker.Settings{
		Name:        "lexical",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests && failureRatio >= cfg.ReadyToTripRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}
	return &BreakerScorer{scorer: scorer, cb: gobreaker.NewCircuitBreaker(st)}
}

// Tokenize implements LexicalScorer.
func (b *BreakerScorer) Tokenize(text string) []string {
	return b.scorer.Tokenize(text)
}

// Scores implements LexicalScorer.
func (b *BreakerScorer) Scores(ctx context.Context, tokens []string) ([]int64, []float64, error) {
	type result struct {
		ids    []int64
		scores []float64
	}
	res, err := b.cb.Execute(func() (interface{}, error) {
		ids, scores, err := b.scorer.Scores(ctx, tokens)
		if err != nil {
			return nil, err
		}
		return result{ids: ids, scores: scores}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, nil, fmt.Errorf("%w: %w", ErrLexicalUnavailable, err)
		}
		return nil, nil, err
	}
	r := res.(result)
	return r.ids, r.scores, nil
}

// State reports the breaker state.
func (b *BreakerScorer) State() gobreaker.State {
	return b.cb.State()
}
