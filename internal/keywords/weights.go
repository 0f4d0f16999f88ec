package keywords

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
)

// Known keyword categories.
const (
	GenreAndTropes      = "genre_and_tropes"
	MoodAndTone         = "mood_and_tone"
	Themes              = "themes"
	PlotAndConcepts     = "plot_and_concepts"
	CharacterArchetypes = "character_archetypes"
	NarrativeStyle      = "narrative_style"
	Setting             = "setting"
	TargetAudience      = "target_audience"
	DetailPlot          = "detail_plot"
)

// UnknownCategoryWeight is applied to categories missing from a weight table.
const UnknownCategoryWeight = 1.0

// CategoryOrder is the fixed order in which categories are tuned and reported.
var CategoryOrder = []string{
	GenreAndTropes,
	MoodAndTone,
	Themes,
	PlotAndConcepts,
	CharacterArchetypes,
	NarrativeStyle,
	Setting,
	TargetAudience,
	DetailPlot,
}

// CategoryWeights maps a category name to its weight. A weight of 0 turns
// the category off.
type CategoryWeights map[string]float64

// DefaultCategoryWeights returns the default weight table.
// Genre and mood carry the most signal; fine-grained plot details the least.
func DefaultCategoryWeights() CategoryWeights {
	return CategoryWeights{
		GenreAndTropes:      5.0,
		MoodAndTone:         3.0,
		Themes:              2.5,
		PlotAndConcepts:     2.0,
		CharacterArchetypes: 1.5,
		NarrativeStyle:      1.5,
		Setting:             1.0,
		TargetAudience:      1.0,
		DetailPlot:          0.5,
	}
}

// Weight returns the weight of category, or UnknownCategoryWeight when the
// table has no entry for it. Negative entries count as 0. A nil table weighs
// every category 1.0.
func (w CategoryWeights) Weight(category string) float64 {
	v, ok := w[category]
	if !ok {
		return UnknownCategoryWeight
	}
	if v < 0 {
		return 0
	}
	return v
}

// Clone returns an independent copy of the table.
func (w CategoryWeights) Clone() CategoryWeights {
	out := make(CategoryWeights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// With returns a copy of the table with category set to weight.
func (w CategoryWeights) With(category string, weight float64) CategoryWeights {
	out := w.Clone()
	out[category] = weight
	return out
}

// Categories returns the table's category names in CategoryOrder, followed
// by any extra categories sorted by name.
func (w CategoryWeights) Categories() []string {
	out := make([]string, 0, len(w))
	seen := make(map[string]bool, len(w))
	for _, c := range CategoryOrder {
		if _, ok := w[c]; ok {
			out = append(out, c)
			seen[c] = true
		}
	}
	var extra []string
	for c := range w {
		if !seen[c] {
			extra = append(extra, c)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// LoadCategoryWeights reads a JSON object of category weights and merges it
// over the defaults. Non-positive overrides are ignored.
// On any error the defaults are returned together with the error.
func LoadCategoryWeights(filePath string) (CategoryWeights, error) {
	if filePath == "" {
		return DefaultCategoryWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read category weights file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultCategoryWeights(), fmt.Errorf("failed to read category weights file: %w", err)
	}

	var override map[string]float64
	if err := json.Unmarshal(data, &override); err != nil {
		slog.Warn("failed to parse category weights file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultCategoryWeights(), fmt.Errorf("failed to parse category weights file: %w", err)
	}

	merged := DefaultCategoryWeights()
	var overrides []string
	for c, v := range override {
		if v <= 0 {
			continue
		}
		if merged[c] != v {
			overrides = append(overrides, fmt.Sprintf("%s: %.2f -> %.2f", c, merged.Weight(c), v))
		}
		merged[c] = v
	}
	sort.Strings(overrides)

	if len(overrides) > 0 {
		slog.Info("loaded category weights with overrides", "overrides", overrides)
	} else {
		slog.Info("loaded category weights (using all defaults)")
	}
	return merged, nil
}
