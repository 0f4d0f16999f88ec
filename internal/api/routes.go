package api

import "net/http"

// Limiters wraps routes with rate limiting. Search applies to routes that
// rank the catalog live; Default applies to the other /api routes. Nil
// fields disable limiting. Probes are never limited.
type Limiters struct {
	Search  func(http.Handler) http.Handler
	Default func(http.Handler) http.Handler
}

// Register mounts the API routes on mux.
func Register(mux *http.ServeMux, search *SearchHandlers, similar *SimilarHandlers, health *HealthHandlers, limits Limiters) {
	wrap := func(mw func(http.Handler) http.Handler, h http.HandlerFunc) http.Handler {
		if mw == nil {
			return h
		}
		return mw(h)
	}

	mux.HandleFunc("GET /health", health.Health)
	mux.HandleFunc("GET /ready", health.Ready)

	mux.Handle("POST /api/search", wrap(limits.Search, search.SemanticSearch))
	mux.Handle("POST /api/search/hybrid", wrap(limits.Search, search.HybridSearch))
	mux.Handle("GET /api/items/{id}/similar", wrap(limits.Search, search.SimilarToItem))
	mux.Handle("GET /api/profiles", wrap(limits.Default, search.Profiles))

	mux.Handle("GET /api/similar/{id}", wrap(limits.Default, similar.Similar))
	mux.Handle("GET /api/embeddings/stats", wrap(limits.Default, similar.EmbeddingStats))
}
