package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/turanbrkay/SimilarHub/internal/calibrate"
	"github.com/turanbrkay/SimilarHub/internal/config"
	"github.com/turanbrkay/SimilarHub/internal/jobs"
	"github.com/turanbrkay/SimilarHub/internal/keywords"
	"github.com/turanbrkay/SimilarHub/internal/media"
	"github.com/turanbrkay/SimilarHub/internal/ranking"
	"github.com/turanbrkay/SimilarHub/internal/store/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEnv() *env {
	return &env{
		cfg: &config.Config{
			MaterializeTopK:    config.DefaultMaterializeTopK,
			MaterializeProfile: config.DefaultMaterializeProfile,
			MaterializeLockTTL: config.DefaultMaterializeLockTTL,
		},
		logger:   discardLogger(),
		out:      io.Discard,
		profiles: ranking.DefaultProfiles(),
	}
}

func TestDispatch_UnknownCommand(t *testing.T) {
	var out bytes.Buffer
	err := dispatch(context.Background(), "", []string{"explode"}, &out)
	if err == nil || !strings.Contains(err.Error(), "explode") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
	for _, c := range commands {
		if !strings.Contains(out.String(), c.name) {
			t.Errorf("usage does not list %s", c.name)
		}
	}
}

func TestParseMaterializeFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    materializeOptions
		wantErr bool
	}{
		{
			name: "config defaults",
			want: materializeOptions{topK: 20, profile: ranking.ProfileUserCustom, progress: 25, lockTTL: config.DefaultMaterializeLockTTL},
		},
		{
			name: "overrides",
			args: []string{"-top-k", "5", "-profile", "mixed", "-lock-ttl", "2m"},
			want: materializeOptions{topK: 5, profile: ranking.ProfileMixed, progress: 25, lockTTL: 2 * time.Minute},
		},
		{name: "zero top-k", args: []string{"-top-k", "0"}, wantErr: true},
		{name: "zero lock ttl", args: []string{"-lock-ttl", "0s"}, wantErr: true},
		{name: "unknown flag", args: []string{"-bogus"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseMaterializeFlags(testEnv(), tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestParseCalibrateFlags_StepDefaults(t *testing.T) {
	tests := []struct {
		args []string
		want float64
	}{
		{nil, defaultGridStep},
		{[]string{"-strategy", "coordinate"}, defaultCoordinateStep},
		{[]string{"-strategy", "grid", "-step", "0.1"}, 0.1},
	}
	for _, tt := range tests {
		o, err := parseCalibrateFlags(testEnv(), tt.args)
		if err != nil {
			t.Fatal(err)
		}
		if o.step != tt.want {
			t.Errorf("%v: expected step %v, got %v", tt.args, tt.want, o.step)
		}
	}
}

func TestNewStrategy(t *testing.T) {
	grid, err := newStrategy(calibrateOptions{strategy: "grid", step: 0.5}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	if g, ok := grid.(calibrate.GridSearch); !ok || g.Step != 0.5 {
		t.Errorf("unexpected grid strategy %#v", grid)
	}

	ca, err := newStrategy(calibrateOptions{strategy: "coordinate", step: 0.5, min: 0.1, max: 10}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	if c, ok := ca.(calibrate.CoordinateAscent); !ok || c.Max != 10 {
		t.Errorf("unexpected coordinate strategy %#v", ca)
	}

	if _, err := newStrategy(calibrateOptions{strategy: "annealing"}, discardLogger()); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestWriteProfiles_LoadsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.json")
	tuned := ranking.WeightProfile{Name: ranking.ProfileUserCustom, Analytical: 0.25, Plot: 0.6, Keywords: 0.15}
	if err := writeProfiles(path, ranking.ProfileUserCustom, tuned); err != nil {
		t.Fatal(err)
	}

	profiles, err := ranking.LoadCalibration(path)
	if err != nil {
		t.Fatal(err)
	}
	got, err := profiles.Get(ranking.ProfileUserCustom)
	if err != nil {
		t.Fatal(err)
	}
	if got.Analytical != 0.25 || got.Plot != 0.6 || got.Keywords != 0.15 {
		t.Errorf("unexpected profile %+v", got)
	}
	if _, err := profiles.Get(ranking.ProfileMixed); err != nil {
		t.Errorf("untouched profiles should keep their defaults: %v", err)
	}
}

func TestWriteProfiles_KeepsZeroWeight(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	tuned := ranking.WeightProfile{Analytical: 0.3, Plot: 0.7}
	if err := writeProfiles(path, ranking.ProfileUserCustom, tuned); err != nil {
		t.Fatal(err)
	}

	profiles, err := ranking.LoadCalibration(path)
	if err != nil {
		t.Fatal(err)
	}
	got := profiles[ranking.ProfileUserCustom]
	if got.Keywords != 0 || got.Sum() != 1.0 {
		t.Errorf("expected keywords 0 and sum 1, got %+v", got)
	}
}

func TestWriteCategories_LoadsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.json")
	w := keywords.DefaultCategoryWeights().With(keywords.GenreAndTropes, 7.5)
	if err := writeCategories(path, w); err != nil {
		t.Fatal(err)
	}
	got, err := keywords.LoadCategoryWeights(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Weight(keywords.GenreAndTropes) != 7.5 {
		t.Errorf("expected 7.5, got %v", got.Weight(keywords.GenreAndTropes))
	}
}

func TestFindSimilar(t *testing.T) {
	store := memory.NewStore()
	for _, it := range []media.Item{
		{ID: 1, Title: "Breaking Bad", Analytical: []float32{1, 0}, Plot: []float32{1, 0}},
		{ID: 2, Title: "Better Call Saul", Analytical: []float32{0.9, 0.1}, Plot: []float32{0.9, 0.1}},
		{ID: 3, Title: "The Office", Analytical: []float32{0, 1}, Plot: []float32{0, 1}},
		{ID: 4, Title: "Unembedded"},
	} {
		if err := store.Put(it); err != nil {
			t.Fatal(err)
		}
	}
	ranker := ranking.NewRanker(store, nil, nil, discardLogger())
	profile := ranking.DefaultProfiles()[ranking.ProfileMixed]
	ctx := context.Background()

	item, results, err := findSimilar(ctx, store, ranker, "breaking bad", profile, 1)
	if err != nil {
		t.Fatal(err)
	}
	if item.ID != 1 || len(results) != 1 || results[0].ID != 2 {
		t.Fatalf("unexpected results for %d: %+v", item.ID, results)
	}

	var out bytes.Buffer
	if err := printResults(&out, item, profile, results); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Better Call Saul") || !strings.Contains(out.String(), "RANK") {
		t.Errorf("unexpected output:\n%s", out.String())
	}

	_, results, err = findSimilar(ctx, store, ranker, "Unembedded", profile, 5)
	if err != nil || len(results) != 0 {
		t.Errorf("expected no results for an item without vectors, got %v %v", results, err)
	}

	if _, _, err := findSimilar(ctx, store, ranker, "Missing", profile, 5); !errors.Is(err, media.ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}
}

func TestEnvProfile(t *testing.T) {
	e := testEnv()
	p, err := e.profile(ranking.ProfilePlotBased)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != ranking.ProfilePlotBased {
		t.Errorf("expected name to be set, got %q", p.Name)
	}
	if _, err := e.profile("bogus"); !errors.Is(err, ranking.ErrUnknownProfile) {
		t.Errorf("expected ErrUnknownProfile, got %v", err)
	}
}

func TestPushMetrics(t *testing.T) {
	var method, path string
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer gw.Close()

	e := testEnv()
	e.registry = prometheus.NewRegistry()
	m := jobs.NewMetrics()
	if err := m.Register(e.registry); err != nil {
		t.Fatal(err)
	}
	m.AddEdges(3)

	e.pushMetrics(gw.URL, "materialize")
	if method != http.MethodPut || path != "/metrics/job/materialize" {
		t.Errorf("unexpected push %s %s", method, path)
	}

	method = ""
	e.pushMetrics("", "materialize")
	if method != "" {
		t.Error("empty url should not push")
	}
}
