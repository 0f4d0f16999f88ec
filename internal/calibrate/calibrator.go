package calibrate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/turanbrkay/SimilarHub/internal/jobs"
	"github.com/turanbrkay/SimilarHub/internal/media"
	"github.com/turanbrkay/SimilarHub/internal/tracing"
)

// Calibrator evaluates configurations against a golden set.
type Calibrator struct {
	items    media.ItemReader
	searcher Searcher
	metrics  *jobs.Metrics
	logger   *slog.Logger
}

// NewCalibrator creates a Calibrator. metrics and logger may be nil.
func NewCalibrator(items media.ItemReader, searcher Searcher, metrics *jobs.Metrics, logger *slog.Logger) *Calibrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calibrator{items: items, searcher: searcher, metrics: metrics, logger: logger}
}

// Objective resolves the golden sources once and returns the mean
// reciprocal rank objective over them.
func (c *Calibrator) Objective(ctx context.Context, golden []GoldenPair) (ObjectiveFunc, int, error) {
	pairs, err := resolve(ctx, c.items, golden, c.logger)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to resolve golden set: %w", err)
	}
	return meanReciprocalRank(c.searcher, pairs, c.logger), len(pairs), nil
}

// Calibrate runs strategy from start over golden and returns the best
// configuration found. start is never modified.
func (c *Calibrator) Calibrate(ctx context.Context, strategy OptimizationStrategy, start Config, golden []GoldenPair) (res Result, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "calibrate.run")
	defer func() { endSpan(err) }()
	tracing.SetAttributes(ctx,
		attribute.String("calibrate.strategy", strategy.Name()),
		attribute.Int("calibrate.golden_pairs", len(golden)))

	begin := time.Now()
	defer func() { c.finish(begin, err) }()

	objective, resolved, err := c.Objective(ctx, golden)
	if err != nil {
		return Result{}, err
	}
	c.logger.Info("calibration started",
		slog.String("strategy", strategy.Name()),
		slog.Int("pairs", len(golden)),
		slog.Int("resolved", resolved))

	res, err = strategy.Optimize(ctx, start.Clone(), objective)
	if err != nil {
		return res, err
	}

	c.logger.Info("calibration complete",
		slog.String("strategy", res.Strategy),
		slog.Float64("baseline", res.Baseline),
		slog.Float64("score", res.Score),
		slog.Int("evaluations", res.Evaluations),
		slog.Float64("analytical", res.Config.Weights.Analytical),
		slog.Float64("plot", res.Config.Weights.Plot),
		slog.Float64("keywords", res.Config.Weights.Keywords),
		slog.Duration("duration", time.Since(begin)))
	return res, nil
}

func (c *Calibrator) finish(begin time.Time, err error) {
	if c.metrics == nil {
		return
	}
	status := jobs.StatusSuccess
	if err != nil {
		status = jobs.StatusFailure
		c.metrics.IncJobErrors(jobs.JobTypeCalibrate, "calibration_failed")
	}
	c.metrics.IncJobsTotal(jobs.JobTypeCalibrate, status)
	c.metrics.ObserveJobDuration(jobs.JobTypeCalibrate, time.Since(begin).Seconds())
}
