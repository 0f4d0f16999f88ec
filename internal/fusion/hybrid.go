package fusion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/turanbrkay/SimilarHub/internal/media"
	"github.com/turanbrkay/SimilarHub/internal/ranking"
	"github.com/turanbrkay/SimilarHub/internal/tracing"
)

// List names used in Fused.Ranks.
const (
	ListSemantic = "semantic"
	ListLexical  = "lexical"
)

// Defaults for hybrid queries.
const (
	DefaultSemanticWeight = 0.7
	DefaultLexicalWeight  = 0.3
	// PerListLimit bounds how many ids each retriever contributes.
	PerListLimit = 50
)

// ErrInvalidQuery is returned for negative list weights.
var ErrInvalidQuery = errors.New("invalid hybrid query")

// Encoder turns free text into an embedding.
type Encoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
}

// Searcher is the semantic retriever; *ranking.Ranker implements it.
type Searcher interface {
	Search(ctx context.Context, q ranking.Query, weights ranking.WeightProfile, limit int, minScore float64) ([]ranking.CandidateScore, error)
}

// TitleLookup resolves display titles for lexical-only hits.
type TitleLookup interface {
	Get(ctx context.Context, id int64) (*media.Item, error)
}

// HybridQuery is a free-text search request.
type HybridQuery struct {
	Text           string
	Intent         string
	Limit          int
	SemanticWeight float64
	LexicalWeight  float64
}

// HybridResult is one fused hit. Ranks are 1-indexed, 0 when absent.
type HybridResult struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	HybridScore  float64 `json:"hybrid_score"`
	SemanticRank int     `json:"semantic_rank,omitempty"`
	LexicalRank  int     `json:"lexical_rank,omitempty"`
}

// Hybrid runs the semantic and lexical retrievers concurrently and fuses
// their rankings with RRF.
type Hybrid struct {
	searcher Searcher
	encoder  Encoder
	lexical  LexicalScorer
	titles   TitleLookup
	profiles ranking.Profiles
	k        int
	logger   *slog.Logger
}

// NewHybrid creates a hybrid searcher. lexical and titles may be nil.
func NewHybrid(searcher Searcher, encoder Encoder, lexical LexicalScorer, titles TitleLookup, profiles ranking.Profiles, logger *slog.Logger) *Hybrid {
	if profiles == nil {
		profiles = ranking.DefaultProfiles()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hybrid{
		searcher: searcher,
		encoder:  encoder,
		lexical:  lexical,
		titles:   titles,
		profiles: profiles,
		k:        DefaultRRFConstant,
		logger:   logger,
	}
}

// ResolveProfile returns the profile for intent, falling back to mixed.
func (h *Hybrid) ResolveProfile(intent string) ranking.WeightProfile {
	if p, err := h.profiles.Get(intent); err == nil {
		return p
	}
	if p, err := h.profiles.Get(ranking.ProfileMixed); err == nil {
		return p
	}
	return ranking.DefaultProfiles()[ranking.ProfileMixed]
}

// Search executes q. A lexical failure degrades to semantic-only fusion; an
// encoder or vector index failure is returned.
func (h *Hybrid) Search(ctx context.Context, q HybridQuery) (results []HybridResult, err error) {
	if q.SemanticWeight < 0 || q.LexicalWeight < 0 {
		return nil, fmt.Errorf("%w: list weights must be non-negative", ErrInvalidQuery)
	}
	if q.Limit <= 0 {
		return []HybridResult{}, nil
	}

	ctx, endSpan := tracing.StartSpan(ctx, "fusion.hybrid_search")
	defer func() { endSpan(err) }()

	profile := h.ResolveProfile(q.Intent)

	var (
		semantic   []ranking.CandidateScore
		lexicalIDs []int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vec, err := h.encoder.Encode(gctx, q.Text)
		if err != nil {
			return fmt.Errorf("failed to encode query: %w", err)
		}
		semantic, err = h.searcher.Search(gctx, ranking.Query{
			Vectors: ranking.Vectors{Analytical: vec, Plot: vec},
		}, profile, PerListLimit, 0)
		return err
	})
	g.Go(func() error {
		ids, err := h.lexicalRanking(gctx, q.Text)
		if err != nil {
			h.logger.Warn("lexical scorer failed, using semantic results only",
				slog.String("error", err.Error()))
			return nil
		}
		lexicalIDs = ids
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	titles := make(map[int64]string, len(semantic))
	semanticIDs := make([]int64, len(semantic))
	for i, c := range semantic {
		semanticIDs[i] = c.ID
		titles[c.ID] = c.Title
	}

	fused := Fuse([]RankedList{
		{Name: ListSemantic, Weight: q.SemanticWeight, IDs: semanticIDs},
		{Name: ListLexical, Weight: q.LexicalWeight, IDs: lexicalIDs},
	}, h.k)
	if len(fused) > q.Limit {
		fused = fused[:q.Limit]
	}

	results = make([]HybridResult, len(fused))
	for i, f := range fused {
		title, ok := titles[f.ID]
		if !ok {
			title = h.lookupTitle(ctx, f.ID)
		}
		results[i] = HybridResult{
			ID:           f.ID,
			Title:        title,
			HybridScore:  f.Score,
			SemanticRank: f.Ranks[ListSemantic],
			LexicalRank:  f.Ranks[ListLexical],
		}
	}
	return results, nil
}

func (h *Hybrid) lexicalRanking(ctx context.Context, text string) ([]int64, error) {
	if h.lexical == nil {
		return nil, ErrLexicalUnavailable
	}
	tokens := h.lexical.Tokenize(text)
	if len(tokens) == 0 {
		return nil, nil
	}
	ids, scores, err := h.lexical.Scores(ctx, tokens)
	if err != nil {
		return nil, err
	}
	return RankLexical(ids, scores, PerListLimit), nil
}

func (h *Hybrid) lookupTitle(ctx context.Context, id int64) string {
	if h.titles == nil {
		return ""
	}
	item, err := h.titles.Get(ctx, id)
	if err != nil {
		h.logger.Debug("title lookup failed",
			slog.Int64("id", id),
			slog.String("error", err.Error()))
		return ""
	}
	return item.Title
}
