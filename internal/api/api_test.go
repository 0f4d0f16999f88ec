package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/turanbrkay/SimilarHub/internal/fusion"
	"github.com/turanbrkay/SimilarHub/internal/keywords"
	"github.com/turanbrkay/SimilarHub/internal/media"
	"github.com/turanbrkay/SimilarHub/internal/ranking"
	"github.com/turanbrkay/SimilarHub/internal/store/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixedEncoder returns vec for every text, or err.
type fixedEncoder struct {
	vec   []float32
	err   error
	calls int
}

func (f *fixedEncoder) Encode(context.Context, string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

type okChecker struct{ err error }

func (c okChecker) HealthCheck(context.Context) error { return c.err }

// testServer wires every handler over an in-memory catalog:
//
//	1 Breaking Bad      A=P=[1,0]     crime keywords
//	2 Better Call Saul  A=P=[0.9,0.1] crime keywords
//	3 The Office        A=P=[0,1]
//	4 Unembedded        no vectors
type testServer struct {
	mux     *http.ServeMux
	store   *memory.Store
	encoder *fixedEncoder
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()
	crime := keywords.Set{keywords.GenreAndTropes: {"crime", "drama"}}
	for _, it := range []media.Item{
		{ID: 1, Title: "Breaking Bad", Analytical: []float32{1, 0}, Plot: []float32{1, 0}, Keywords: crime},
		{ID: 2, Title: "Better Call Saul", Analytical: []float32{0.9, 0.1}, Plot: []float32{0.9, 0.1}, Keywords: crime},
		{ID: 3, Title: "The Office", Analytical: []float32{0, 1}, Plot: []float32{0, 1}},
		{ID: 4, Title: "Unembedded"},
	} {
		if err := store.Put(it); err != nil {
			t.Fatal(err)
		}
	}

	encoder := &fixedEncoder{vec: []float32{1, 0}}
	ranker := ranking.NewRanker(store, nil, nil, discardLogger())
	profiles := ranking.DefaultProfiles()
	hybrid := fusion.NewHybrid(ranker, encoder, nil, store, profiles, discardLogger())

	mux := http.NewServeMux()
	Register(mux,
		NewSearchHandlers(SearchHandlersConfig{
			Ranker:   ranker,
			Encoder:  encoder,
			Hybrid:   hybrid,
			Items:    store,
			Profiles: profiles,
			Logger:   discardLogger(),
		}),
		NewSimilarHandlers(store, store, store, discardLogger()),
		NewHealthHandlers(discardLogger(), Check{Name: "database", Checker: okChecker{}, Critical: true}),
		Limiters{},
	)
	return &testServer{mux: mux, store: store, encoder: encoder}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[ErrorResponse](t, rec).Error.Code
}
