package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/turanbrkay/SimilarHub/internal/media"
)

// Materialized neighbor limits.
const (
	DefaultSimilarLimit = 10
	MaxSimilarLimit     = 50
)

// SimilarHandlers serves precomputed similarity edges and catalog coverage.
type SimilarHandlers struct {
	items  media.ItemReader
	edges  media.EdgeReader
	stats  media.StatsReader
	logger *slog.Logger
}

// NewSimilarHandlers creates handlers over the catalog and edge stores.
func NewSimilarHandlers(items media.ItemReader, edges media.EdgeReader, stats media.StatsReader, logger *slog.Logger) *SimilarHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &SimilarHandlers{items: items, edges: edges, stats: stats, logger: logger}
}

// SimilarResponse lists the materialized neighbors of one item.
type SimilarResponse struct {
	SourceID int64            `json:"source_id"`
	Title    string           `json:"title"`
	Count    int              `json:"count"`
	Similar  []media.Neighbor `json:"similar"`
}

// Similar handles GET /api/similar/{id}?limit=N. An existing item that has
// not been materialized yet returns an empty list.
func (h *SimilarHandlers) Similar(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	limit := DefaultSimilarLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > MaxSimilarLimit {
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation,
				"limit must be between 1 and "+strconv.Itoa(MaxSimilarLimit))
			return
		}
		limit = n
	}

	item, err := h.items.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "Failed to load item")
		return
	}

	neighbors, err := h.edges.Neighbors(r.Context(), id, limit)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "Failed to load similar items")
		return
	}
	if neighbors == nil {
		neighbors = []media.Neighbor{}
	}

	writeJSON(w, r, http.StatusOK, SimilarResponse{
		SourceID: item.ID,
		Title:    item.Title,
		Count:    len(neighbors),
		Similar:  neighbors,
	})
}

// EmbeddingStats handles GET /api/embeddings/stats.
func (h *SimilarHandlers) EmbeddingStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.stats.Stats(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, err, "Failed to load embedding statistics")
		return
	}
	writeJSON(w, r, http.StatusOK, st)
}
