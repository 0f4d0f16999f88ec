// Package materialize precomputes the top-K similarity graph so serving can
// read neighbors without running a search.
package materialize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/turanbrkay/SimilarHub/internal/jobs"
	"github.com/turanbrkay/SimilarHub/internal/media"
	"github.com/turanbrkay/SimilarHub/internal/ranking"
	"github.com/turanbrkay/SimilarHub/internal/stats"
	"github.com/turanbrkay/SimilarHub/internal/tracing"
)

// DefaultProgressEvery is how often, in items, progress is logged.
const DefaultProgressEvery = 100

// ErrInvalidTopK is returned for a non-positive top-K.
var ErrInvalidTopK = errors.New("top-k must be positive")

// Searcher is the ranking dependency; *ranking.Ranker implements it.
type Searcher interface {
	Search(ctx context.Context, q ranking.Query, weights ranking.WeightProfile, limit int, minScore float64) ([]ranking.CandidateScore, error)
}

// Summary reports the outcome of one run.
type Summary struct {
	RunID     string        `json:"run_id"`
	Profile   string        `json:"profile"`
	TopK      int           `json:"top_k"`
	Total     int64         `json:"total"`
	Processed int64         `json:"processed"`
	Failed    int64         `json:"failed"`
	Skipped   int64         `json:"skipped"`
	Edges     int64         `json:"edges"`
	Duration  time.Duration `json:"duration"`
}

// Materializer writes each item's top-K neighbors as similarity edges.
type Materializer struct {
	items         media.ItemReader
	edges         media.EdgeWriter
	searcher      Searcher
	locker        Locker
	metrics       *jobs.Metrics
	progressEvery int
	logger        *slog.Logger
}

// Option configures a Materializer.
type Option func(*Materializer)

// WithLocker replaces the default in-process locker.
func WithLocker(l Locker) Option {
	return func(m *Materializer) { m.locker = l }
}

// WithMetrics records run metrics.
func WithMetrics(metrics *jobs.Metrics) Option {
	return func(m *Materializer) { m.metrics = metrics }
}

// WithProgressEvery sets the progress logging interval.
func WithProgressEvery(n int) Option {
	return func(m *Materializer) {
		if n > 0 {
			m.progressEvery = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Materializer) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New creates a Materializer.
func New(items media.ItemReader, edges media.EdgeWriter, searcher Searcher, opts ...Option) *Materializer {
	m := &Materializer{
		items:         items,
		edges:         edges,
		searcher:      searcher,
		locker:        NewLocalLocker(),
		progressEvery: DefaultProgressEvery,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run materializes edges for every item with both vectors, in id order,
// under profile. Per-item failures are logged and counted; the run goes on.
// The returned error is non-nil only when the run could not start, was
// cancelled, or the lock was held (ErrRunInProgress).
func (m *Materializer) Run(ctx context.Context, profile ranking.WeightProfile, topK int) (summary Summary, err error) {
	if topK <= 0 {
		return Summary{}, ErrInvalidTopK
	}
	if err := profile.Validate(); err != nil {
		return Summary{}, err
	}

	release, err := m.locker.Acquire(ctx)
	if err != nil {
		if errors.Is(err, ErrRunInProgress) {
			m.recordError("lock_held")
		}
		return Summary{}, err
	}
	defer release()

	ctx, endSpan := tracing.StartSpan(ctx, "materialize.run")
	defer func() { endSpan(err) }()

	runID := uuid.NewString()
	logger := m.logger.With(slog.String("run_id", runID), slog.String("profile", profile.Name))
	start := time.Now()

	items, err := m.items.ListEmbedded(ctx)
	if err != nil {
		m.finish(start, err)
		return Summary{}, fmt.Errorf("failed to list items: %w", err)
	}

	st := stats.NewRunStats(len(items))
	logger.Info("materialization started",
		slog.Int("items", len(items)),
		slog.Int("top_k", topK))

	for i := range items {
		if err := ctx.Err(); err != nil {
			logger.Warn("materialization cancelled", slog.String("progress", st.String()))
			m.finish(start, err)
			return summarize(runID, profile, topK, st), err
		}

		n, err := m.RunOne(ctx, &items[i], profile, topK)
		switch {
		case errors.Is(err, ErrNoVectors):
			st.RecordSkip()
			m.recordItem(jobs.StatusSkipped)
		case err != nil:
			st.RecordFailure()
			m.recordItem(jobs.StatusFailure)
			logger.Error("failed to materialize item",
				slog.Int64("item_id", items[i].ID),
				slog.String("error", err.Error()))
		default:
			st.RecordSuccess(n)
			m.recordItem(jobs.StatusSuccess)
			if m.metrics != nil {
				m.metrics.AddEdges(n)
			}
		}

		if (i+1)%m.progressEvery == 0 {
			st.LogProgress(logger, jobs.JobTypeMaterialize)
		}
	}

	st.LogSummary(logger, jobs.JobTypeMaterialize)
	m.finish(start, nil)
	return summarize(runID, profile, topK, st), nil
}

// ErrNoVectors is returned by RunOne for an item missing either embedding.
var ErrNoVectors = errors.New("item has no vectors")

// RunOne replaces the edges of a single item and returns how many were
// written. An item without both vectors is left untouched and yields
// ErrNoVectors.
func (m *Materializer) RunOne(ctx context.Context, item *media.Item, profile ranking.WeightProfile, topK int) (int, error) {
	if !item.HasVectors() {
		return 0, ErrNoVectors
	}

	results, err := m.searcher.Search(ctx, ranking.Query{
		Vectors:  ranking.Vectors{Analytical: item.Analytical, Plot: item.Plot},
		Keywords: item.Keywords,
	}, profile, topK+1, 0)
	if err != nil {
		m.recordError("search_failed")
		return 0, fmt.Errorf("search for item %d: %w", item.ID, err)
	}

	edges := make([]media.Edge, 0, topK)
	for _, r := range results {
		if r.ID == item.ID {
			continue
		}
		if len(edges) == topK {
			break
		}
		edges = append(edges, media.Edge{
			SourceID: item.ID,
			TargetID: r.ID,
			Score:    r.FinalScore,
			Details:  r.Signals,
		})
	}

	if err := m.edges.ReplaceEdges(ctx, item.ID, edges); err != nil {
		m.recordError("write_failed")
		return 0, fmt.Errorf("write edges for item %d: %w", item.ID, err)
	}
	return len(edges), nil
}

func (m *Materializer) recordItem(status string) {
	if m.metrics != nil {
		m.metrics.IncItems(jobs.JobTypeMaterialize, status)
	}
}

func (m *Materializer) recordError(errorType string) {
	if m.metrics != nil {
		m.metrics.IncJobErrors(jobs.JobTypeMaterialize, errorType)
	}
}

func (m *Materializer) finish(start time.Time, err error) {
	if m.metrics == nil {
		return
	}
	status := jobs.StatusSuccess
	if err != nil {
		status = jobs.StatusFailure
	}
	m.metrics.IncJobsTotal(jobs.JobTypeMaterialize, status)
	m.metrics.ObserveJobDuration(jobs.JobTypeMaterialize, time.Since(start).Seconds())
}

func summarize(runID string, profile ranking.WeightProfile, topK int, st *stats.RunStats) Summary {
	return Summary{
		RunID:     runID,
		Profile:   profile.Name,
		TopK:      topK,
		Total:     st.Total(),
		Processed: st.Processed(),
		Failed:    st.Failed(),
		Skipped:   st.Skipped(),
		Edges:     st.Edges(),
		Duration:  st.Elapsed(),
	}
}
