package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/turanbrkay/SimilarHub/internal/calibrate"
	"github.com/turanbrkay/SimilarHub/internal/keywords"
	"github.com/turanbrkay/SimilarHub/internal/ranking"
)

// Search defaults, per strategy.
const (
	defaultGridStep       = 0.05
	defaultCoordinateStep = 0.5
	defaultCoordinateMin  = 0.1
	defaultCoordinateMax  = 10.0
)

type calibrateOptions struct {
	strategy      string
	step          float64
	min           float64
	max           float64
	golden        string
	profile       string
	profilesOut   string
	categoriesOut string
	pushgateway   string
}

func parseCalibrateFlags(e *env, args []string) (calibrateOptions, error) {
	var o calibrateOptions
	fs := newFlagSet("calibrate", e.out)
	fs.StringVar(&o.strategy, "strategy", calibrate.StrategyGrid, "grid or coordinate")
	fs.Float64Var(&o.step, "step", 0, "search step (default 0.05 for grid, 0.5 for coordinate)")
	fs.Float64Var(&o.min, "min", defaultCoordinateMin, "lowest category weight tried by coordinate ascent")
	fs.Float64Var(&o.max, "max", defaultCoordinateMax, "highest category weight tried by coordinate ascent")
	fs.StringVar(&o.golden, "golden", "", "YAML golden set (default: built-in pairs)")
	fs.StringVar(&o.profile, "profile", ranking.ProfileUserCustom, "profile the search starts from and writes back")
	fs.StringVar(&o.profilesOut, "profiles-out", "", "write the tuned profile as a calibration JSON file")
	fs.StringVar(&o.categoriesOut, "categories-out", "", "write the tuned category weights as JSON")
	fs.StringVar(&o.pushgateway, "pushgateway", "", "Prometheus Pushgateway URL for run metrics")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.step == 0 {
		o.step = defaultGridStep
		if o.strategy == calibrate.StrategyCoordinate {
			o.step = defaultCoordinateStep
		}
	}
	return o, nil
}

// newStrategy builds the optimization strategy named by o.strategy.
func newStrategy(o calibrateOptions, logger *slog.Logger) (calibrate.OptimizationStrategy, error) {
	switch o.strategy {
	case calibrate.StrategyGrid:
		return calibrate.GridSearch{Step: o.step, Logger: logger}, nil
	case calibrate.StrategyCoordinate:
		return calibrate.CoordinateAscent{Min: o.min, Max: o.max, Step: o.step, Logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q: use %s or %s", o.strategy, calibrate.StrategyGrid, calibrate.StrategyCoordinate)
	}
}

func runCalibrate(ctx context.Context, e *env, args []string) error {
	o, err := parseCalibrateFlags(e, args)
	if err != nil {
		return err
	}
	strategy, err := newStrategy(o, e.logger)
	if err != nil {
		return err
	}
	golden, err := calibrate.LoadGoldenSet(o.golden)
	if err != nil {
		return err
	}
	weights, err := e.profile(o.profile)
	if err != nil {
		return err
	}

	c := calibrate.NewCalibrator(e.store, e.ranker(), e.jobMetrics, e.logger)
	res, runErr := c.Calibrate(ctx, strategy, calibrate.Config{
		Weights:    weights,
		Categories: e.categoryWeights,
	}, golden)
	e.pushMetrics(o.pushgateway, "similarctl_calibrate")
	if runErr != nil {
		return runErr
	}

	if o.profilesOut != "" {
		if err := writeProfiles(o.profilesOut, o.profile, res.Config.Weights); err != nil {
			return err
		}
	}
	if o.categoriesOut != "" {
		if err := writeCategories(o.categoriesOut, res.Config.Categories); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// writeProfiles writes weights as the named profile in the calibration file
// layout read by ranking.LoadCalibration.
func writeProfiles(path, name string, weights ranking.WeightProfile) error {
	return writeJSONFile(path, ranking.CalibrationConfig{
		Version:  "1",
		Profiles: map[string]ranking.ProfileOverride{name: ranking.OverrideFrom(weights)},
	})
}

// writeCategories writes w in the layout read by keywords.LoadCategoryWeights.
func writeCategories(path string, w keywords.CategoryWeights) error {
	return writeJSONFile(path, map[string]float64(w))
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
