package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/turanbrkay/SimilarHub/internal/fusion"
	"github.com/turanbrkay/SimilarHub/internal/media"
	"github.com/turanbrkay/SimilarHub/internal/ranking"
	"github.com/turanbrkay/SimilarHub/internal/validate"
)

// Request limits.
const (
	MinQueryLength     = validate.MinQueryLength
	MaxQueryLength     = validate.MaxQueryLength
	DefaultSearchLimit = 10
	MaxSearchLimit     = 100
	// DefaultMinScore applies to free-text semantic search; query-by-item
	// and hybrid search default to 0.
	DefaultMinScore = 0.5
	maxBodyBytes    = 1 << 16
)

// HybridSearcher runs RRF fused search; *fusion.Hybrid implements it.
type HybridSearcher interface {
	Search(ctx context.Context, q fusion.HybridQuery) ([]fusion.HybridResult, error)
}

// SearchHandlersConfig wires SearchHandlers. Hybrid and Encoder may be nil,
// in which case the routes that need them answer 503.
type SearchHandlersConfig struct {
	Ranker   ranking.Searcher
	Encoder  fusion.Encoder
	Hybrid   HybridSearcher
	Items    media.ItemReader
	Profiles ranking.Profiles
	Logger   *slog.Logger
}

// SearchHandlers serves live ranking: free-text semantic search, hybrid
// search and query-by-item.
type SearchHandlers struct {
	ranker   ranking.Searcher
	encoder  fusion.Encoder
	hybrid   HybridSearcher
	items    media.ItemReader
	profiles ranking.Profiles
	logger   *slog.Logger
}

// NewSearchHandlers creates search handlers.
func NewSearchHandlers(cfg SearchHandlersConfig) *SearchHandlers {
	if cfg.Profiles == nil {
		cfg.Profiles = ranking.DefaultProfiles()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &SearchHandlers{
		ranker:   cfg.Ranker,
		encoder:  cfg.Encoder,
		hybrid:   cfg.Hybrid,
		items:    cfg.Items,
		profiles: cfg.Profiles,
		logger:   cfg.Logger,
	}
}

// WeightsInput is an explicit weight override in a request body.
type WeightsInput struct {
	Analytical float64 `json:"analytical"`
	Plot       float64 `json:"plot"`
	Keywords   float64 `json:"keywords"`
}

// SemanticSearchRequest is the body of POST /api/search.
type SemanticSearchRequest struct {
	Query    string        `json:"query"`
	Intent   string        `json:"intent,omitempty"`
	Weights  *WeightsInput `json:"weights,omitempty"`
	Limit    *int          `json:"limit,omitempty"`
	MinScore *float64      `json:"min_score,omitempty"`
}

// SearchResponse is returned by semantic search and query-by-item.
type SearchResponse struct {
	Query   string                   `json:"query,omitempty"`
	Source  *SourceItem              `json:"source,omitempty"`
	Intent  string                   `json:"intent"`
	Weights ranking.WeightProfile    `json:"weights"`
	Count   int                      `json:"count"`
	Results []ranking.CandidateScore `json:"results"`
}

// SourceItem identifies the item a query-by-item search started from.
type SourceItem struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// HybridSearchRequest is the body of POST /api/search/hybrid.
type HybridSearchRequest struct {
	Query          string   `json:"query"`
	Intent         string   `json:"intent,omitempty"`
	Limit          *int     `json:"limit,omitempty"`
	SemanticWeight *float64 `json:"semantic_weight,omitempty"`
	KeywordWeight  *float64 `json:"keyword_weight,omitempty"`
}

// HybridSearchResponse is returned by hybrid search.
type HybridSearchResponse struct {
	Query          string                `json:"query"`
	Intent         string                `json:"intent"`
	SemanticWeight float64               `json:"semantic_weight"`
	KeywordWeight  float64               `json:"keyword_weight"`
	Count          int                   `json:"count"`
	Results        []fusion.HybridResult `json:"results"`
}

// ProfilesResponse lists the configured weight profiles.
type ProfilesResponse struct {
	Default  string                  `json:"default"`
	Profiles []ranking.WeightProfile `json:"profiles"`
}

// SemanticSearch handles POST /api/search.
func (h *SearchHandlers) SemanticSearch(w http.ResponseWriter, r *http.Request) {
	var req SemanticSearchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	query, ok := validateQuery(w, r, req.Query)
	if !ok {
		return
	}
	limit, ok := validateLimit(w, r, req.Limit, DefaultSearchLimit, MaxSearchLimit)
	if !ok {
		return
	}
	minScore := DefaultMinScore
	if req.MinScore != nil {
		minScore = *req.MinScore
	}

	weights, intent := h.resolveIntent(req.Intent)
	if req.Weights != nil {
		weights, ok = explicitWeights(w, r, *req.Weights)
		if !ok {
			return
		}
		intent = weights.Name
	}

	if h.encoder == nil {
		WriteError(w, r.Context(), http.StatusServiceUnavailable, ErrCodeUnavailable, "Semantic search is not configured")
		return
	}
	vec, err := h.encoder.Encode(r.Context(), query)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "Failed to encode query")
		return
	}

	results, err := h.ranker.Search(r.Context(), ranking.Query{
		Vectors: ranking.Vectors{Analytical: vec, Plot: vec},
	}, weights, limit, minScore)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "Failed to search")
		return
	}

	writeJSON(w, r, http.StatusOK, SearchResponse{
		Query:   query,
		Intent:  intent,
		Weights: weights,
		Count:   len(results),
		Results: results,
	})
}

// SimilarToItem handles GET /api/items/{id}/similar. Weights come from the
// profile query parameter (default mixed) or from explicit analytical, plot
// and keywords parameters; limit and min_score are optional.
func (h *SearchHandlers) SimilarToItem(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	var limitPtr *int
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "limit must be an integer")
			return
		}
		limitPtr = &n
	}
	limit, ok := validateLimit(w, r, limitPtr, DefaultSearchLimit, MaxSearchLimit)
	if !ok {
		return
	}

	minScore := 0.0
	if s := q.Get("min_score"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "min_score must be a number")
			return
		}
		minScore = v
	}

	var weights ranking.WeightProfile
	if q.Has("analytical") || q.Has("plot") || q.Has("keywords") {
		var in WeightsInput
		for _, p := range []struct {
			name string
			dst  *float64
		}{{"analytical", &in.Analytical}, {"plot", &in.Plot}, {"keywords", &in.Keywords}} {
			s := q.Get(p.name)
			if s == "" {
				continue
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, p.name+" must be a number")
				return
			}
			*p.dst = v
		}
		weights, ok = explicitWeights(w, r, in)
		if !ok {
			return
		}
	} else {
		name := q.Get("profile")
		if name == "" {
			name = ranking.ProfileMixed
		}
		p, err := h.profiles.Get(name)
		if err != nil {
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeUnknownProfile,
				fmt.Sprintf("Unknown profile %q; available: %s", name, strings.Join(h.profiles.Names(), ", ")))
			return
		}
		p.Name = name
		weights = p
	}

	item, err := h.items.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "Failed to load item")
		return
	}

	results, err := ranking.SimilarTo(r.Context(), h.ranker, item, weights, limit, minScore)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "Failed to search")
		return
	}

	writeJSON(w, r, http.StatusOK, SearchResponse{
		Source:  &SourceItem{ID: item.ID, Title: item.Title},
		Intent:  weights.Name,
		Weights: weights,
		Count:   len(results),
		Results: results,
	})
}

// HybridSearch handles POST /api/search/hybrid.
func (h *SearchHandlers) HybridSearch(w http.ResponseWriter, r *http.Request) {
	var req HybridSearchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	query, ok := validateQuery(w, r, req.Query)
	if !ok {
		return
	}
	limit, ok := validateLimit(w, r, req.Limit, DefaultSearchLimit, fusion.PerListLimit)
	if !ok {
		return
	}
	semanticWeight := fusion.DefaultSemanticWeight
	if req.SemanticWeight != nil {
		semanticWeight = *req.SemanticWeight
	}
	keywordWeight := fusion.DefaultLexicalWeight
	if req.KeywordWeight != nil {
		keywordWeight = *req.KeywordWeight
	}

	if h.hybrid == nil {
		WriteError(w, r.Context(), http.StatusServiceUnavailable, ErrCodeUnavailable, "Hybrid search is not configured")
		return
	}

	_, intent := h.resolveIntent(req.Intent)
	results, err := h.hybrid.Search(r.Context(), fusion.HybridQuery{
		Text:           query,
		Intent:         intent,
		Limit:          limit,
		SemanticWeight: semanticWeight,
		LexicalWeight:  keywordWeight,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err, "Failed to run hybrid search")
		return
	}

	writeJSON(w, r, http.StatusOK, HybridSearchResponse{
		Query:          query,
		Intent:         intent,
		SemanticWeight: semanticWeight,
		KeywordWeight:  keywordWeight,
		Count:          len(results),
		Results:        results,
	})
}

// Profiles handles GET /api/profiles.
func (h *SearchHandlers) Profiles(w http.ResponseWriter, r *http.Request) {
	names := h.profiles.Names()
	out := make([]ranking.WeightProfile, 0, len(names))
	for _, n := range names {
		p := h.profiles[n]
		p.Name = n
		out = append(out, p)
	}
	writeJSON(w, r, http.StatusOK, ProfilesResponse{Default: ranking.ProfileMixed, Profiles: out})
}

// resolveIntent returns the profile for intent, falling back to mixed for
// empty or unknown names.
func (h *SearchHandlers) resolveIntent(intent string) (ranking.WeightProfile, string) {
	if p, err := h.profiles.Get(intent); err == nil {
		p.Name = intent
		return p, intent
	}
	if p, err := h.profiles.Get(ranking.ProfileMixed); err == nil {
		p.Name = ranking.ProfileMixed
		return p, ranking.ProfileMixed
	}
	p := ranking.DefaultProfiles()[ranking.ProfileMixed]
	return p, ranking.ProfileMixed
}

// explicitWeights turns a request override into a profile named "custom".
func explicitWeights(w http.ResponseWriter, r *http.Request, in WeightsInput) (ranking.WeightProfile, bool) {
	p := ranking.WeightProfile{Name: "custom", Analytical: in.Analytical, Plot: in.Plot, Keywords: in.Keywords}
	if err := p.Validate(); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "weights must be non-negative")
		return p, false
	}
	if p.Sum() <= 0 {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "at least one weight must be positive")
		return p, false
	}
	return p, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, r.Context(), http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "Request body too large")
			return false
		}
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// validateQuery trims q and enforces 2..200 characters.
func validateQuery(w http.ResponseWriter, r *http.Request, q string) (string, bool) {
	q, err := validate.QueryText(q)
	if err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation,
			fmt.Sprintf("query must be between %d and %d characters: %v", MinQueryLength, MaxQueryLength, err))
		return "", false
	}
	return q, true
}

// validateLimit applies def when limit is nil and rejects values outside
// 1..max.
func validateLimit(w http.ResponseWriter, r *http.Request, limit *int, def, max int) (int, bool) {
	if limit == nil {
		return def, true
	}
	if *limit < 1 || *limit > max {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation,
			fmt.Sprintf("limit must be between 1 and %d", max))
		return 0, false
	}
	return *limit, true
}

// parseID reads the {id} path value and requires a positive integer.
func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "id must be a positive integer")
		return 0, false
	}
	return id, true
}
