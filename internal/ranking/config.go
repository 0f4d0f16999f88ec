package ranking

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
)

// Profile names shipped with the service.
const (
	ProfileMixed        = "mixed"
	ProfileThemeMood    = "theme_mood"
	ProfilePlotBased    = "plot_based"
	ProfileKeywordBased = "keyword_based"
	ProfileUserCustom   = "user_custom"
)

// ErrUnknownProfile is returned when a profile name is not configured.
var ErrUnknownProfile = errors.New("unknown weight profile")

// ErrInvalidWeights is returned when a profile carries a negative weight.
var ErrInvalidWeights = errors.New("weights must be non-negative")

// WeightProfile holds the per-signal weights used to fuse similarities.
// Weights need not sum to 1; the fused score scales with their sum.
type WeightProfile struct {
	Name       string  `json:"name,omitempty"`
	Analytical float64 `json:"analytical"` // Weight for the analytical embedding
	Plot       float64 `json:"plot"`       // Weight for the plot embedding
	Keywords   float64 `json:"keywords"`   // Weight for keyword overlap
}

// Sum returns the total of the three weights.
func (p WeightProfile) Sum() float64 {
	return p.Analytical + p.Plot + p.Keywords
}

// Validate rejects negative weights.
func (p WeightProfile) Validate() error {
	if p.Analytical < 0 || p.Plot < 0 || p.Keywords < 0 {
		return fmt.Errorf("profile %q: %w", p.Name, ErrInvalidWeights)
	}
	return nil
}

// Profiles is a set of named weight profiles.
type Profiles map[string]WeightProfile

// Get returns the named profile or ErrUnknownProfile.
func (p Profiles) Get(name string) (WeightProfile, error) {
	wp, ok := p[name]
	if !ok {
		return WeightProfile{}, fmt.Errorf("%w: %s", ErrUnknownProfile, name)
	}
	return wp, nil
}

// Names returns the configured profile names sorted alphabetically.
func (p Profiles) Names() []string {
	names := make([]string, 0, len(p))
	for n := range p {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version  string                     `json:"version"`  // Config version for future compatibility
	Profiles map[string]ProfileOverride `json:"profiles"` // Profile overrides keyed by name
}

// ProfileOverride is one profile entry of a calibration file. A nil field
// keeps the base weight; a present field, zero included, replaces it.
type ProfileOverride struct {
	Analytical *float64 `json:"analytical,omitempty"`
	Plot       *float64 `json:"plot,omitempty"`
	Keywords   *float64 `json:"keywords,omitempty"`
}

// OverrideFrom returns an override that sets every weight of p.
func OverrideFrom(p WeightProfile) ProfileOverride {
	return ProfileOverride{Analytical: &p.Analytical, Plot: &p.Plot, Keywords: &p.Keywords}
}

// apply returns p with the present override fields written over it.
func (o ProfileOverride) apply(p WeightProfile) WeightProfile {
	if o.Analytical != nil {
		p.Analytical = *o.Analytical
	}
	if o.Plot != nil {
		p.Plot = *o.Plot
	}
	if o.Keywords != nil {
		p.Keywords = *o.Keywords
	}
	return p
}

// DefaultProfiles returns the built-in weight profiles.
//
//	mixed:         analytical 0.50, plot 0.30, keywords 0.20
//	theme_mood:    analytical 0.70, plot 0.10, keywords 0.20
//	plot_based:    analytical 0.10, plot 0.80, keywords 0.10
//	keyword_based: analytical 0.20, plot 0.10, keywords 0.70
//	user_custom:   analytical 0.30, plot 0.55, keywords 0.15 (calibrated)
func DefaultProfiles() Profiles {
	return Profiles{
		ProfileMixed:        {Name: ProfileMixed, Analytical: 0.50, Plot: 0.30, Keywords: 0.20},
		ProfileThemeMood:    {Name: ProfileThemeMood, Analytical: 0.70, Plot: 0.10, Keywords: 0.20},
		ProfilePlotBased:    {Name: ProfilePlotBased, Analytical: 0.10, Plot: 0.80, Keywords: 0.10},
		ProfileKeywordBased: {Name: ProfileKeywordBased, Analytical: 0.20, Plot: 0.10, Keywords: 0.70},
		ProfileUserCustom:   {Name: ProfileUserCustom, Analytical: 0.30, Plot: 0.55, Keywords: 0.15},
	}
}

// LoadCalibration loads weight profiles from a JSON calibration file.
// If the file doesn't exist or can't be parsed, returns the defaults with an error.
// Partial configurations are merged with defaults; new profile names are added.
func LoadCalibration(filePath string) (Profiles, error) {
	if filePath == "" {
		return DefaultProfiles(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultProfiles(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultProfiles(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	defaults := DefaultProfiles()
	merged := MergeCalibration(defaults, config.Profiles)
	for _, p := range merged {
		if err := p.Validate(); err != nil {
			slog.Warn("invalid calibration file, using defaults",
				"path", filePath,
				"error", err)
			return defaults, err
		}
	}
	logCalibrationOverrides(defaults, merged)

	return merged, nil
}

// MergeCalibration returns a copy of base with override applied.
// For profiles present in base only the fields set in the override are
// applied, so a file can tweak a single weight. Profiles absent from base
// start from zero weights.
func MergeCalibration(base Profiles, override map[string]ProfileOverride) Profiles {
	if base == nil {
		base = DefaultProfiles()
	}

	result := make(Profiles, len(base)+len(override))
	for name, p := range base {
		result[name] = p
	}

	for name, o := range override {
		p, ok := result[name]
		if !ok {
			p = WeightProfile{Name: name}
		}
		result[name] = o.apply(p)
	}

	return result
}

// logCalibrationOverrides logs which profiles differ from the defaults.
func logCalibrationOverrides(defaults, loaded Profiles) {
	var overrides []string

	for _, name := range loaded.Names() {
		l := loaded[name]
		d, ok := defaults[name]
		if !ok {
			overrides = append(overrides, fmt.Sprintf("%s: new (%.2f/%.2f/%.2f)",
				name, l.Analytical, l.Plot, l.Keywords))
			continue
		}
		var changed []string
		if l.Analytical != d.Analytical {
			changed = append(changed, fmt.Sprintf("analytical %.2f -> %.2f", d.Analytical, l.Analytical))
		}
		if l.Plot != d.Plot {
			changed = append(changed, fmt.Sprintf("plot %.2f -> %.2f", d.Plot, l.Plot))
		}
		if l.Keywords != d.Keywords {
			changed = append(changed, fmt.Sprintf("keywords %.2f -> %.2f", d.Keywords, l.Keywords))
		}
		if len(changed) > 0 {
			overrides = append(overrides, name+": "+strings.Join(changed, ", "))
		}
	}

	if len(overrides) > 0 {
		slog.Info("loaded ranking calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded ranking calibration (using all defaults)")
	}
}
