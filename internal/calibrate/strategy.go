package calibrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/turanbrkay/SimilarHub/internal/keywords"
)

// Strategy names.
const (
	StrategyGrid       = "grid"
	StrategyCoordinate = "coordinate"
)

var (
	// ErrInvalidStep is returned for a step outside (0, 1] on the grid or a
	// non-positive coordinate step.
	ErrInvalidStep = errors.New("invalid step")
	// ErrInvalidRange is returned when a coordinate range is empty or
	// not strictly positive.
	ErrInvalidRange = errors.New("invalid weight range")
)

// sumTolerance is how far a grid point's weights may drift from 1.
const sumTolerance = 1e-3

// Result is the best configuration a strategy found.
type Result struct {
	Strategy    string  `json:"strategy"`
	Config      Config  `json:"config"`
	Score       float64 `json:"score"`
	Baseline    float64 `json:"baseline"`
	Evaluations int     `json:"evaluations"`
}

// OptimizationStrategy searches for the configuration that maximizes an
// objective, starting from start. Implementations never mutate start.
type OptimizationStrategy interface {
	Name() string
	Optimize(ctx context.Context, start Config, objective ObjectiveFunc) (Result, error)
}

// round3 rounds to three decimals.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// steps returns min, min+step, ... up to max inclusive, rounded to three
// decimals. Values are computed from the index to avoid drift.
func steps(min, max, step float64) []float64 {
	var out []float64
	for i := 0; ; i++ {
		v := min + float64(i)*step
		if v > max+1e-9 {
			break
		}
		out = append(out, round3(v))
	}
	return out
}

// GridSearch enumerates signal weights on the simplex at Step. Category
// weights are held at the start values.
type GridSearch struct {
	Step   float64
	Logger *slog.Logger
}

// Name implements OptimizationStrategy.
func (g GridSearch) Name() string { return StrategyGrid }

// Points returns every (analytical, plot, keywords) triple visited by the
// search, in visiting order.
func (g GridSearch) Points() ([][3]float64, error) {
	if g.Step <= 0 || g.Step > 1 {
		return nil, fmt.Errorf("%w: grid step %v must be in (0, 1]", ErrInvalidStep, g.Step)
	}
	values := steps(0, 1, g.Step)
	var points [][3]float64
	for _, a := range values {
		for _, p := range values {
			k := 1 - a - p
			if k < -sumTolerance {
				continue
			}
			k = round3(k)
			if k < 0 {
				k = 0
			}
			if math.Abs(a+p+k-1) > sumTolerance {
				continue
			}
			points = append(points, [3]float64{a, p, k})
		}
	}
	return points, nil
}

// Optimize implements OptimizationStrategy. The first point reaching the
// maximum score wins.
func (g GridSearch) Optimize(ctx context.Context, start Config, objective ObjectiveFunc) (Result, error) {
	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}
	points, err := g.Points()
	if err != nil {
		return Result{}, err
	}

	res := Result{Strategy: g.Name(), Config: start.Clone(), Score: -1}
	logger.Info("grid search started",
		slog.Float64("step", g.Step),
		slog.Int("combinations", len(points)))

	for i, pt := range points {
		cfg := start.Clone()
		cfg.Weights.Analytical, cfg.Weights.Plot, cfg.Weights.Keywords = pt[0], pt[1], pt[2]

		score, err := objective(ctx, cfg)
		if err != nil {
			return res, err
		}
		res.Evaluations++
		if i == 0 {
			res.Baseline = score
		}
		if score > res.Score {
			res.Score = score
			res.Config = cfg
			logger.Info("new best weights",
				slog.Float64("analytical", pt[0]),
				slog.Float64("plot", pt[1]),
				slog.Float64("keywords", pt[2]),
				slog.Float64("score", score))
		}
		if res.Evaluations%50 == 0 {
			logger.Info("grid search progress",
				slog.Int("evaluated", res.Evaluations),
				slog.Int("total", len(points)))
		}
	}
	return res, nil
}

// CoordinateAscent tunes one keyword category weight at a time, scanning
// [Min, Max] at Step with all other weights fixed. A category's best value
// is kept only if it strictly beats the current score. The result is a
// local optimum that depends on category order.
type CoordinateAscent struct {
	Min  float64
	Max  float64
	Step float64
	// Categories to tune, in order. Empty means every category of the start
	// table in keywords.CategoryOrder.
	Categories []string
	Logger     *slog.Logger
}

// Name implements OptimizationStrategy.
func (c CoordinateAscent) Name() string { return StrategyCoordinate }

func (c CoordinateAscent) validate() error {
	if c.Step <= 0 {
		return fmt.Errorf("%w: coordinate step %v must be positive", ErrInvalidStep, c.Step)
	}
	if c.Min <= 0 || c.Max < c.Min {
		return fmt.Errorf("%w: [%v, %v]", ErrInvalidRange, c.Min, c.Max)
	}
	return nil
}

// Optimize implements OptimizationStrategy.
func (c CoordinateAscent) Optimize(ctx context.Context, start Config, objective ObjectiveFunc) (Result, error) {
	if err := c.validate(); err != nil {
		return Result{}, err
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	best := start.Clone()
	if best.Categories == nil {
		best.Categories = keywords.DefaultCategoryWeights()
	}
	categories := c.Categories
	if len(categories) == 0 {
		categories = best.Categories.Categories()
	}

	res := Result{Strategy: c.Name(), Config: best}
	score, err := objective(ctx, best)
	if err != nil {
		return res, err
	}
	res.Evaluations++
	res.Baseline, res.Score = score, score
	logger.Info("coordinate ascent started",
		slog.Float64("baseline", score),
		slog.Int("categories", len(categories)))

	values := steps(c.Min, c.Max, c.Step)
	for _, category := range categories {
		catWeight := best.Categories.Weight(category)
		catScore := res.Score

		for _, v := range values {
			trial := Config{Weights: best.Weights, Categories: best.Categories.With(category, v)}
			s, err := objective(ctx, trial)
			if err != nil {
				return res, err
			}
			res.Evaluations++
			if s > catScore {
				catScore, catWeight = s, v
			}
		}

		if catScore > res.Score {
			best.Categories = best.Categories.With(category, catWeight)
			res.Score = catScore
			res.Config = best.Clone()
			logger.Info("category weight improved",
				slog.String("category", category),
				slog.Float64("weight", catWeight),
				slog.Float64("score", catScore))
		} else {
			logger.Info("no improvement for category",
				slog.String("category", category),
				slog.Float64("weight", best.Categories.Weight(category)))
		}
	}
	return res, nil
}
