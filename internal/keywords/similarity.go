package keywords

import "sort"

// Set maps a category name to its sorted, deduplicated, lowercase terms.
// Build one with Normalize or FromMap; the similarity functions assume the
// invariants hold.
type Set map[string][]string

// Empty reports whether the set has no terms in any category.
func (s Set) Empty() bool {
	for _, terms := range s {
		if len(terms) > 0 {
			return false
		}
	}
	return true
}

// Size returns the total number of terms across categories.
func (s Set) Size() int {
	n := 0
	for _, terms := range s {
		n += len(terms)
	}
	return n
}

// CategoryScore explains one category's contribution to a comparison.
type CategoryScore struct {
	Intersection int      `json:"intersection"`
	Union        int      `json:"union"`
	Score        float64  `json:"score"` // plain Jaccard for this category
	Weight       float64  `json:"weight"`
	Common       []string `json:"common"`
}

// Breakdown is the overall weighted score plus per-category details.
// Averaging the per-category scores does NOT yield Overall.
type Breakdown struct {
	Overall    float64                  `json:"overall"`
	Categories map[string]CategoryScore `json:"categories"`
}

// Similarity returns the globally weighted Jaccard similarity of a and b in
// [0, 1]. It is 0 when either set is empty.
func Similarity(a, b Set, w CategoryWeights) float64 {
	if a.Empty() || b.Empty() {
		return 0
	}

	var num, den float64
	for _, c := range unionCategories(a, b) {
		inter, union := overlap(a[c], b[c])
		weight := w.Weight(c)
		num += weight * float64(inter)
		den += weight * float64(union)
	}
	if den <= 0 {
		return 0
	}
	return num / den
}

// SimilarityBreakdown returns the same overall score as Similarity together
// with per-category intersection, union, Jaccard, weight and common terms.
func SimilarityBreakdown(a, b Set, w CategoryWeights) Breakdown {
	out := Breakdown{Categories: map[string]CategoryScore{}}
	if a.Empty() || b.Empty() {
		return out
	}

	var num, den float64
	for _, c := range unionCategories(a, b) {
		common := intersect(a[c], b[c])
		union := len(a[c]) + len(b[c]) - len(common)
		weight := w.Weight(c)
		num += weight * float64(len(common))
		den += weight * float64(union)

		cs := CategoryScore{
			Intersection: len(common),
			Union:        union,
			Weight:       weight,
			Common:       common,
		}
		if union > 0 {
			cs.Score = float64(len(common)) / float64(union)
		}
		out.Categories[c] = cs
	}
	if den > 0 {
		out.Overall = num / den
	}
	return out
}

func unionCategories(a, b Set) []string {
	out := make([]string, 0, len(a)+len(b))
	for c := range a {
		out = append(out, c)
	}
	for c := range b {
		if _, ok := a[c]; !ok {
			out = append(out, c)
		}
	}
	// Fixed order keeps the float summation deterministic.
	sort.Strings(out)
	return out
}

// overlap counts |a ∩ b| and |a ∪ b| for two sorted, deduplicated lists.
func overlap(a, b []string) (inter, union int) {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			inter++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return inter, len(a) + len(b) - inter
}

func intersect(a, b []string) []string {
	out := []string{}
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}
