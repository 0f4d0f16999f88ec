// Package fusion merges a semantic ranking and a lexical ranking with
// weighted reciprocal rank fusion.
package fusion

import "sort"

// DefaultRRFConstant is the k in 1/(rank+k).
const DefaultRRFConstant = 60

// RankedList is an ordered list of ids from one retriever. Position 0 is
// rank 1. Weight scales every contribution from this list.
type RankedList struct {
	Name   string
	Weight float64
	IDs    []int64
}

// Fused is one id with its fused score and the 1-indexed rank it held in
// each contributing list (0 when absent).
type Fused struct {
	ID    int64
	Score float64
	Ranks map[string]int
}

// Fuse combines lists with weighted reciprocal rank fusion:
//
//	score(id) = Σ weight_l / (rank_l(id) + k)
//
// Ranks are 1-indexed. An id missing from a list contributes nothing for it.
// A repeated id within one list counts at its first position only. The
// result is sorted by score descending, ties by ascending id. A
// non-positive k uses DefaultRRFConstant.
func Fuse(lists []RankedList, k int) []Fused {
	if k <= 0 {
		k = DefaultRRFConstant
	}

	byID := make(map[int64]*Fused)
	for _, list := range lists {
		seen := make(map[int64]bool, len(list.IDs))
		for i, id := range list.IDs {
			if seen[id] {
				continue
			}
			seen[id] = true

			rank := i + 1
			f, ok := byID[id]
			if !ok {
				f = &Fused{ID: id, Ranks: make(map[string]int, len(lists))}
				byID[id] = f
			}
			f.Score += list.Weight / float64(rank+k)
			f.Ranks[list.Name] = rank
		}
	}

	out := make([]Fused, 0, len(byID))
	for _, f := range byID {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}
