// Package ranking fuses vector and keyword similarities into a single
// ranking under a tunable weight profile.
//
// Basic Usage:
//
//	// Load profiles (typically at startup)
//	profiles, err := ranking.LoadCalibration("configs/ranking.calibration.json")
//	if err != nil {
//		log.Warn("using default profiles", "error", err)
//	}
//
//	ranker := ranking.NewRanker(index, keywords.DefaultCategoryWeights(), metrics, logger)
//	weights, _ := profiles.Get(ranking.ProfileMixed)
//	results, err := ranker.Search(ctx, ranking.Query{
//		Vectors:  ranking.Vectors{Analytical: a, Plot: p},
//		Keywords: item.Keywords,
//	}, weights, 10, 0)
//
// Scoring:
//
//	final = wA*analytical + wP*plot + wK*keywords
//
// analytical and plot are cosine similarities reported by the VectorIndex;
// keywords is the weighted Jaccard from package keywords. Each is clamped to
// [0, 1]. Weights need not sum to 1, so absolute scores are only comparable
// within one profile.
//
// Recall:
//
// The vector index knows nothing about keywords. Search over-fetches
// min(limit*5, 500) candidates by vector similarity and re-ranks them, so an
// item with strong keyword overlap but weak vectors can be missed.
//
// Calibration:
//
// Profiles can be tuned at deploy time through a JSON calibration file
// loaded at startup. Values in the file override the defaults; a profile
// name not known to the defaults is added as written. See
// configs/ranking.calibration.json.
package ranking
