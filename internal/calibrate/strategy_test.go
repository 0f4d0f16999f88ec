package calibrate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/turanbrkay/SimilarHub/internal/keywords"
	"github.com/turanbrkay/SimilarHub/internal/ranking"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGridSearch_Points(t *testing.T) {
	tests := []struct {
		name string
		step float64
		want int
	}{
		{"half", 0.5, 6},
		{"tenth", 0.1, 66},
		{"five percent", 0.05, 231},
		{"whole", 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points, err := GridSearch{Step: tt.step}.Points()
			if err != nil {
				t.Fatal(err)
			}
			if len(points) != tt.want {
				t.Errorf("expected %d points, got %d", tt.want, len(points))
			}
			for _, p := range points {
				if p[0] < 0 || p[1] < 0 || p[2] < 0 {
					t.Errorf("negative weight in %v", p)
				}
				if math.Abs(p[0]+p[1]+p[2]-1) > sumTolerance {
					t.Errorf("point %v does not sum to 1", p)
				}
			}
		})
	}
}

func TestGridSearch_InvalidStep(t *testing.T) {
	for _, step := range []float64{0, -0.1, 1.5} {
		_, err := GridSearch{Step: step}.Optimize(context.Background(), Config{}, nil)
		if !errors.Is(err, ErrInvalidStep) {
			t.Errorf("step %v: expected ErrInvalidStep, got %v", step, err)
		}
	}
}

func TestGridSearch_FindsMaximum(t *testing.T) {
	objective := func(_ context.Context, cfg Config) (float64, error) {
		w := cfg.Weights
		return -(math.Pow(w.Analytical-0.3, 2) + math.Pow(w.Plot-0.5, 2) + math.Pow(w.Keywords-0.2, 2)), nil
	}
	start := Config{Weights: ranking.WeightProfile{Name: "trial"}, Categories: keywords.DefaultCategoryWeights()}

	res, err := GridSearch{Step: 0.1, Logger: discardLogger()}.Optimize(context.Background(), start, objective)
	if err != nil {
		t.Fatal(err)
	}
	w := res.Config.Weights
	if w.Analytical != 0.3 || w.Plot != 0.5 || w.Keywords != 0.2 {
		t.Errorf("expected 0.3/0.5/0.2, got %.3f/%.3f/%.3f", w.Analytical, w.Plot, w.Keywords)
	}
	if w.Name != "trial" {
		t.Errorf("expected profile name kept, got %q", w.Name)
	}
	if res.Evaluations != 66 {
		t.Errorf("expected 66 evaluations, got %d", res.Evaluations)
	}
	if res.Strategy != StrategyGrid {
		t.Errorf("unexpected strategy %q", res.Strategy)
	}
}

func TestGridSearch_FirstMaximumWins(t *testing.T) {
	constant := func(context.Context, Config) (float64, error) { return 0.25, nil }

	res, err := GridSearch{Step: 0.5, Logger: discardLogger()}.Optimize(context.Background(), Config{}, constant)
	if err != nil {
		t.Fatal(err)
	}
	w := res.Config.Weights
	if w.Analytical != 0 || w.Plot != 0 || w.Keywords != 1 {
		t.Errorf("expected first grid point to win ties, got %+v", w)
	}
	if res.Score != 0.25 || res.Baseline != 0.25 {
		t.Errorf("unexpected scores %+v", res)
	}
}

func TestGridSearch_ObjectiveError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	objective := func(ctx context.Context, _ Config) (float64, error) { return 0, ctx.Err() }

	_, err := GridSearch{Step: 0.5, Logger: discardLogger()}.Optimize(ctx, Config{}, objective)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCoordinateAscent_TunesOneCategory(t *testing.T) {
	objective := func(_ context.Context, cfg Config) (float64, error) {
		return -math.Pow(cfg.Categories.Weight(keywords.GenreAndTropes)-2, 2), nil
	}
	start := Config{
		Weights:    ranking.WeightProfile{Analytical: 0.35, Plot: 0.25, Keywords: 0.40},
		Categories: keywords.DefaultCategoryWeights(),
	}

	res, err := CoordinateAscent{Min: 0.5, Max: 3, Step: 0.5, Logger: discardLogger()}.
		Optimize(context.Background(), start, objective)
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Config.Categories[keywords.GenreAndTropes]; got != 2 {
		t.Errorf("expected genre weight 2, got %v", got)
	}
	if res.Baseline != -9 || res.Score != 0 {
		t.Errorf("expected baseline -9 and score 0, got %+v", res)
	}
	for _, c := range keywords.CategoryOrder[1:] {
		if res.Config.Categories[c] != start.Categories[c] {
			t.Errorf("category %s changed without improvement", c)
		}
	}
	if start.Categories[keywords.GenreAndTropes] != 5.0 {
		t.Error("start configuration was mutated")
	}
	if want := 1 + 9*6; res.Evaluations != want {
		t.Errorf("expected %d evaluations, got %d", want, res.Evaluations)
	}
}

func TestCoordinateAscent_StrictImprovementOnly(t *testing.T) {
	objective := func(context.Context, Config) (float64, error) { return 0.5, nil }
	start := Config{Categories: keywords.DefaultCategoryWeights()}

	res, err := CoordinateAscent{Min: 0.1, Max: 10, Step: 0.5, Categories: []string{keywords.MoodAndTone}, Logger: discardLogger()}.
		Optimize(context.Background(), start, objective)
	if err != nil {
		t.Fatal(err)
	}
	if res.Config.Categories[keywords.MoodAndTone] != 3.0 {
		t.Errorf("flat objective must keep the start weight, got %v", res.Config.Categories[keywords.MoodAndTone])
	}
}

func TestCoordinateAscent_InvalidArguments(t *testing.T) {
	tests := []struct {
		name     string
		strategy CoordinateAscent
		want     error
	}{
		{"zero step", CoordinateAscent{Min: 0.1, Max: 1, Step: 0}, ErrInvalidStep},
		{"zero min", CoordinateAscent{Min: 0, Max: 1, Step: 0.1}, ErrInvalidRange},
		{"inverted", CoordinateAscent{Min: 2, Max: 1, Step: 0.1}, ErrInvalidRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.strategy.Optimize(context.Background(), Config{}, nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSteps(t *testing.T) {
	got := steps(0.1, 1.1, 0.5)
	want := []float64{0.1, 0.6, 1.1}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestConfig_Clone(t *testing.T) {
	c := Config{Categories: keywords.CategoryWeights{keywords.Themes: 1}}
	clone := c.Clone()
	clone.Categories[keywords.Themes] = 9
	if c.Categories[keywords.Themes] != 1 {
		t.Error("clone shares the category table")
	}
	if (Config{}).Clone().Categories != nil {
		t.Error("nil table should stay nil")
	}
}
