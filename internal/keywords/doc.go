// Package keywords scores the overlap of categorized keyword sets.
//
// A keyword Set maps a category name (genre_and_tropes, mood_and_tone, ...)
// to a sorted, deduplicated, lowercase list of terms. Sets enter the system
// only through Normalize, which is applied the same way when keywords are
// stored and when a query is built.
//
// Basic Usage:
//
//	weights := keywords.DefaultCategoryWeights()
//	a := keywords.Normalize(rawA, logger)
//	b := keywords.Normalize(rawB, logger)
//	score := keywords.Similarity(a, b, weights)
//
// Scoring:
//
// Similarity is a globally weighted Jaccard measure. Intersections and unions
// are summed across all categories, each multiplied by its category weight,
// before the ratio is taken:
//
//	score = Σ w_c·|A_c ∩ B_c| / Σ w_c·|A_c ∪ B_c|
//
// Large categories therefore dominate small ones. SimilarityBreakdown reports
// the per-category plain Jaccard for explanation only; averaging those values
// does not reproduce the overall score.
//
// Category weights are always passed explicitly. Use Clone or With to derive
// a trial table without touching the one shared by serving code.
package keywords
