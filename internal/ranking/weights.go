package ranking

import (
	"math"

	"github.com/turanbrkay/SimilarHub/internal/media"
)

// Clamp01 limits a similarity to the [0, 1] range. NaN becomes 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SimilarityFromDistance converts a cosine distance to a similarity in [0, 1].
func SimilarityFromDistance(distance float64) float64 {
	return Clamp01(1 - distance)
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Mismatched lengths or zero-norm vectors yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// CompositeScore computes the fused score for a candidate:
//
//	final = wA*analytical + wP*plot + wK*keywords
//
// Each signal is clamped to [0, 1] before weighting.
func CompositeScore(s media.SignalScores, w WeightProfile) float64 {
	return w.Analytical*Clamp01(s.Analytical) +
		w.Plot*Clamp01(s.Plot) +
		w.Keywords*Clamp01(s.Keywords)
}

// CandidateLimit returns how many rows to fetch from the vector index for a
// request of limit results: min(limit*5, 500).
func CandidateLimit(limit int) int {
	if limit <= 0 {
		return 0
	}
	if limit >= maxCandidates/overFetchFactor {
		return maxCandidates
	}
	return limit * overFetchFactor
}

const (
	overFetchFactor = 5
	maxCandidates   = 500
)
