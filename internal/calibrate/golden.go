// Package calibrate tunes ranking weights against a golden set of known
// similar pairs.
package calibrate

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrEmptyGoldenSet is returned when a golden file has no usable pairs.
var ErrEmptyGoldenSet = errors.New("golden set has no pairs")

// GoldenPair states that Expected should rank high when searching from Source.
type GoldenPair struct {
	Source   string `yaml:"source" json:"source"`
	Expected string `yaml:"expected" json:"expected"`
}

// goldenFile is the YAML layout of a golden set file.
type goldenFile struct {
	Pairs []GoldenPair `yaml:"pairs"`
}

// DefaultGoldenSet returns the built-in golden pairs.
func DefaultGoldenSet() []GoldenPair {
	return []GoldenPair{
		{Source: "Peaky Blinders", Expected: "Boardwalk Empire"},
		{Source: "The Sopranos", Expected: "Boardwalk Empire"},
		{Source: "Breaking Bad", Expected: "Better Call Saul"},
		{Source: "Stranger Things", Expected: "Locke & Key"},
		{Source: "Westworld", Expected: "Altered Carbon"},
		{Source: "The Office", Expected: "Parks and Recreation"},
		{Source: "Friends", Expected: "How I Met Your Mother"},
		{Source: "Mad Men", Expected: "The Affair"},
		{Source: "The Crown", Expected: "Victoria"},
		{Source: "Game of Thrones", Expected: "House of the Dragon"},
		{Source: "The Witcher", Expected: "The Witcher: Blood Origin"},
		{Source: "Suits", Expected: "White Collar"},
		{Source: "Dexter", Expected: "Hannibal"},
		{Source: "True Detective", Expected: "Mindhunter"},
	}
}

// LoadGoldenSet reads golden pairs from a YAML file of the form
//
//	pairs:
//	  - source: Breaking Bad
//	    expected: Better Call Saul
//
// Pairs with a blank title are dropped. An empty path returns the defaults.
func LoadGoldenSet(path string) ([]GoldenPair, error) {
	if path == "" {
		return DefaultGoldenSet(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read golden set: %w", err)
	}

	var f goldenFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse golden set: %w", err)
	}

	pairs := make([]GoldenPair, 0, len(f.Pairs))
	for _, p := range f.Pairs {
		p.Source = strings.TrimSpace(p.Source)
		p.Expected = strings.TrimSpace(p.Expected)
		if p.Source == "" || p.Expected == "" {
			continue
		}
		pairs = append(pairs, p)
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyGoldenSet)
	}
	return pairs, nil
}
