// Package memory provides an in-memory catalog store with an exact-scan
// vector index. Used for tests, the calibration CLI on small fixtures, and
// development without Postgres.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/turanbrkay/SimilarHub/internal/keywords"
	"github.com/turanbrkay/SimilarHub/internal/media"
	"github.com/turanbrkay/SimilarHub/internal/ranking"
)

// Store is an in-memory implementation of the catalog and edge interfaces.
// It is safe for concurrent use. Items and edges are copied on the way in
// and out.
type Store struct {
	mu    sync.RWMutex
	items map[int64]*media.Item
	edges map[int64]map[int64]media.Edge
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		items: make(map[int64]*media.Item),
		edges: make(map[int64]map[int64]media.Edge),
	}
}

// Put inserts or replaces an item.
func (s *Store) Put(item media.Item) error {
	if item.ID <= 0 {
		return media.ErrInvalidID
	}
	c := copyItem(&item)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[c.ID] = c
	return nil
}

// Get retrieves an item by id.
func (s *Store) Get(_ context.Context, id int64) (*media.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, media.ErrItemNotFound
	}
	return copyItem(item), nil
}

// FindByTitle resolves a title case-insensitively. When several items share
// the title the lowest id wins.
func (s *Store) FindByTitle(_ context.Context, title string) (*media.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *media.Item
	for _, item := range s.items {
		if !strings.EqualFold(item.Title, title) {
			continue
		}
		if found == nil || item.ID < found.ID {
			found = item
		}
	}
	if found == nil {
		return nil, media.ErrItemNotFound
	}
	return copyItem(found), nil
}

// ListEmbedded returns every item with both vectors, ordered by id.
func (s *Store) ListEmbedded(_ context.Context) ([]media.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]media.Item, 0, len(s.items))
	for _, item := range s.items {
		if item.HasVectors() {
			out = append(out, *copyItem(item))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Nearest scans every item with both vectors and returns the top Limit by
// weighted cosine similarity, ties broken by ascending id.
func (s *Store) Nearest(ctx context.Context, q ranking.NearestQuery) ([]ranking.Neighbor, error) {
	if q.Limit <= 0 {
		return []ranking.Neighbor{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type scored struct {
		n     ranking.Neighbor
		score float64
	}

	s.mu.RLock()
	hits := make([]scored, 0, len(s.items))
	for _, item := range s.items {
		if !item.HasVectors() {
			continue
		}
		simA := ranking.CosineSimilarity(q.Analytical, item.Analytical)
		simP := ranking.CosineSimilarity(q.Plot, item.Plot)
		hits = append(hits, scored{
			n: ranking.Neighbor{
				ID:            item.ID,
				Title:         item.Title,
				Keywords:      copyKeywords(item.Keywords),
				SimAnalytical: simA,
				SimPlot:       simP,
			},
			score: q.WeightAnalytical*simA + q.WeightPlot*simP,
		})
	}
	s.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].n.ID < hits[j].n.ID
	})
	if len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}

	out := make([]ranking.Neighbor, len(hits))
	for i, h := range hits {
		out[i] = h.n
	}
	return out, nil
}

// ReplaceEdges drops every edge of source and stores edges in its place.
// Later duplicates of the same target overwrite earlier ones.
func (s *Store) ReplaceEdges(ctx context.Context, source int64, edges []media.Edge) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	next := make(map[int64]media.Edge, len(edges))
	for _, e := range edges {
		e.SourceID = source
		next[e.TargetID] = e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(next) == 0 {
		delete(s.edges, source)
		return nil
	}
	s.edges[source] = next
	return nil
}

// Neighbors returns up to limit edges of source, highest score first.
func (s *Store) Neighbors(_ context.Context, source int64, limit int) ([]media.Neighbor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]media.Neighbor, 0, len(s.edges[source]))
	for _, e := range s.edges[source] {
		n := media.Neighbor{ID: e.TargetID, Score: e.Score, Details: e.Details}
		if target, ok := s.items[e.TargetID]; ok {
			n.Title = target.Title
			n.PosterURL = target.PosterURL
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Edges returns a copy of every stored edge of source, ordered by target id.
func (s *Store) Edges(source int64) []media.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]media.Edge, 0, len(s.edges[source]))
	for _, e := range s.edges[source] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TargetID < out[j].TargetID })
	return out
}

// Stats reports embedding coverage.
func (s *Store) Stats(_ context.Context) (media.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st media.Stats
	for _, item := range s.items {
		st.Total++
		if len(item.Analytical) > 0 {
			st.WithAnalytical++
		}
		if len(item.Plot) > 0 {
			st.WithPlot++
		}
		if !item.Keywords.Empty() {
			st.WithKeywords++
		}
		if item.HasVectors() {
			st.WithAllVectors++
		}
	}
	st.ComputeCompletionRate()
	return st, nil
}

func copyItem(item *media.Item) *media.Item {
	c := *item
	c.Genres = append([]string(nil), item.Genres...)
	c.Analytical = append([]float32(nil), item.Analytical...)
	c.Plot = append([]float32(nil), item.Plot...)
	c.Keywords = copyKeywords(item.Keywords)
	return &c
}

func copyKeywords(s keywords.Set) keywords.Set {
	if s == nil {
		return nil
	}
	out := make(keywords.Set, len(s))
	for c, terms := range s {
		out[c] = append([]string(nil), terms...)
	}
	return out
}
