package keywords

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Normalize decodes raw JSON into a Set. The only accepted shape is an
// object whose values are lists of strings. Anything else is dropped with a
// warning: a non-object document yields an empty Set, a non-list category is
// skipped, and non-string or blank terms are discarded. Terms are trimmed,
// lowercased, deduplicated and sorted. Categories left empty are omitted.
func Normalize(raw []byte, logger *slog.Logger) Set {
	if logger == nil {
		logger = slog.Default()
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return Set{}
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		logger.Warn("keyword payload is not valid JSON",
			slog.String("error", err.Error()))
		return Set{}
	}
	return NormalizeValue(doc, logger)
}

// NormalizeValue applies the Normalize rules to an already decoded value.
func NormalizeValue(doc any, logger *slog.Logger) Set {
	if logger == nil {
		logger = slog.Default()
	}
	if doc == nil {
		return Set{}
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		logger.Warn("keyword payload is not an object",
			slog.String("type", fmt.Sprintf("%T", doc)))
		return Set{}
	}

	out := make(Set, len(obj))
	for category, value := range obj {
		list, ok := value.([]any)
		if !ok {
			logger.Warn("keyword category is not a list",
				slog.String("category", category),
				slog.String("type", fmt.Sprintf("%T", value)))
			continue
		}

		terms := make([]string, 0, len(list))
		for _, v := range list {
			s, ok := v.(string)
			if !ok {
				continue
			}
			terms = append(terms, s)
		}
		if cleaned := cleanTerms(terms); len(cleaned) > 0 {
			out[category] = cleaned
		}
	}
	return out
}

// FromMap builds a Set from typed input, applying the same term rules as
// Normalize.
func FromMap(m map[string][]string) Set {
	out := make(Set, len(m))
	for category, terms := range m {
		if cleaned := cleanTerms(terms); len(cleaned) > 0 {
			out[category] = cleaned
		}
	}
	return out
}

func cleanTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
