// Package lexical scores catalog items against free-text queries with an
// in-memory bleve index.
//
// The index holds one document per item built from its title, overview,
// genres and keyword terms, analyzed with the English analyzer. Scores are
// bleve's relevance scores over the whole corpus; callers normalize them.
//
// Index is safe for concurrent use. Rebuild swaps in a fresh index only
// when the document set changed.
package lexical

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/turanbrkay/SimilarHub/internal/media"
)

const textField = "text"

// ErrNotBuilt is returned by Scores before the first Rebuild.
var ErrNotBuilt = errors.New("lexical index not built")

// Document is one indexed item.
type Document struct {
	ID   int64
	Text string
}

type indexedDoc struct {
	Text string `json:"text"`
}

// DocumentFromItem flattens the searchable fields of an item.
func DocumentFromItem(item media.Item) Document {
	parts := []string{item.Title, item.Overview}
	parts = append(parts, item.Genres...)
	for _, c := range sortedCategories(item) {
		parts = append(parts, item.Keywords[c]...)
	}
	return Document{ID: item.ID, Text: strings.Join(nonEmpty(parts), " ")}
}

// Index is a bleve-backed lexical scorer.
type Index struct {
	mu          sync.RWMutex
	mapping     *mapping.IndexMappingImpl
	idx         bleve.Index
	ids         []int64
	fingerprint string
	logger      *slog.Logger
}

// NewIndex creates an empty index. Call Rebuild before scoring.
func NewIndex(logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{mapping: newMapping(), logger: logger}
}

func newMapping() *mapping.IndexMappingImpl {
	field := bleve.NewTextFieldMapping()
	field.Analyzer = en.AnalyzerName
	field.Store = false
	field.IncludeTermVectors = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(textField, field)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = en.AnalyzerName
	return m
}

// Rebuild replaces the indexed corpus with docs. It is a no-op when the
// documents are unchanged since the last build.
func (x *Index) Rebuild(docs []Document) error {
	sorted := append([]Document(nil), docs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	fp := fingerprint(sorted)

	x.mu.RLock()
	unchanged := x.idx != nil && x.fingerprint == fp
	x.mu.RUnlock()
	if unchanged {
		return nil
	}

	idx, err := bleve.NewMemOnly(x.mapping)
	if err != nil {
		return fmt.Errorf("failed to create lexical index: %w", err)
	}
	batch := idx.NewBatch()
	ids := make([]int64, 0, len(sorted))
	for _, d := range sorted {
		if err := batch.Index(strconv.FormatInt(d.ID, 10), indexedDoc{Text: d.Text}); err != nil {
			_ = idx.Close()
			return fmt.Errorf("failed to index document %d: %w", d.ID, err)
		}
		ids = append(ids, d.ID)
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return fmt.Errorf("failed to commit lexical batch: %w", err)
	}

	x.mu.Lock()
	old := x.idx
	x.idx, x.ids, x.fingerprint = idx, ids, fp
	x.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	x.logger.Info("lexical index rebuilt", slog.Int("documents", len(ids)))
	return nil
}

// RebuildFromItems indexes every item returned by the reader.
func (x *Index) RebuildFromItems(ctx context.Context, reader media.ItemReader) error {
	items, err := reader.ListEmbedded(ctx)
	if err != nil {
		return fmt.Errorf("failed to list items for lexical index: %w", err)
	}
	docs := make([]Document, len(items))
	for i, item := range items {
		docs[i] = DocumentFromItem(item)
	}
	return x.Rebuild(docs)
}

// Tokenize analyzes text the same way indexed documents are analyzed.
func (x *Index) Tokenize(text string) []string {
	tokens, err := x.mapping.AnalyzeText(en.AnalyzerName, []byte(text))
	if err != nil {
		x.logger.Warn("failed to analyze query text",
			slog.String("error", err.Error()))
		return nil
	}
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, string(t.Term))
	}
	return out
}

// Scores returns every indexed id in ascending order with its relevance
// score for tokens. Documents matching no token score 0.
func (x *Index) Scores(ctx context.Context, tokens []string) ([]int64, []float64, error) {
	x.mu.RLock()
	idx, ids := x.idx, x.ids
	x.mu.RUnlock()

	if idx == nil {
		return nil, nil, ErrNotBuilt
	}
	scores := make([]float64, len(ids))
	if len(tokens) == 0 || len(ids) == 0 {
		return ids, scores, nil
	}

	terms := make([]query.Query, 0, len(tokens))
	for _, tok := range tokens {
		tq := bleve.NewTermQuery(tok)
		tq.SetField(textField)
		terms = append(terms, tq)
	}
	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(terms...), len(ids), 0, false)

	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, nil, fmt.Errorf("lexical search failed: %w", err)
	}

	pos := make(map[int64]int, len(ids))
	for i, id := range ids {
		pos[id] = i
	}
	for _, hit := range res.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		if i, ok := pos[id]; ok {
			scores[i] = hit.Score
		}
	}
	return ids, scores, nil
}

// Len returns the number of indexed documents.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.ids)
}

// Close releases the underlying index.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.idx == nil {
		return nil
	}
	err := x.idx.Close()
	x.idx, x.ids, x.fingerprint = nil, nil, ""
	return err
}

func fingerprint(docs []Document) string {
	h := sha256.New()
	for _, d := range docs {
		h.Write([]byte(strconv.FormatInt(d.ID, 10)))
		h.Write([]byte{0})
		h.Write([]byte(d.Text))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func sortedCategories(item media.Item) []string {
	cats := make([]string, 0, len(item.Keywords))
	for c := range item.Keywords {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return cats
}

func nonEmpty(parts []string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
