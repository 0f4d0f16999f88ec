package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/turanbrkay/SimilarHub/internal/media"
)

func TestSimilar(t *testing.T) {
	srv := newTestServer(t)
	err := srv.store.ReplaceEdges(context.Background(), 1, []media.Edge{
		{SourceID: 1, TargetID: 3, Score: 0.41},
		{SourceID: 1, TargetID: 2, Score: 0.93, Details: media.SignalScores{Analytical: 0.99, Plot: 0.99, Keywords: 1}},
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantCode   string
		wantIDs    []int64
	}{
		{"highest score first", "/api/similar/1", http.StatusOK, "", []int64{2, 3}},
		{"limit", "/api/similar/1?limit=1", http.StatusOK, "", []int64{2}},
		{"not materialized yet", "/api/similar/3", http.StatusOK, "", []int64{}},
		{"unknown item", "/api/similar/99", http.StatusNotFound, ErrCodeNotFound, nil},
		{"zero id", "/api/similar/0", http.StatusBadRequest, ErrCodeValidation, nil},
		{"limit too large", "/api/similar/1?limit=51", http.StatusBadRequest, ErrCodeValidation, nil},
		{"limit not a number", "/api/similar/1?limit=x", http.StatusBadRequest, ErrCodeValidation, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(t, http.MethodGet, tt.path, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantCode != "" {
				if got := errorCode(t, rec); got != tt.wantCode {
					t.Errorf("expected code %s, got %s", tt.wantCode, got)
				}
				return
			}
			resp := decode[SimilarResponse](t, rec)
			got := make([]int64, len(resp.Similar))
			for i, n := range resp.Similar {
				got[i] = n.ID
			}
			if !equalIDs(got, tt.wantIDs) {
				t.Errorf("expected ids %v, got %v", tt.wantIDs, got)
			}
			if resp.Count != len(resp.Similar) {
				t.Errorf("count %d does not match %d neighbors", resp.Count, len(resp.Similar))
			}
		})
	}
}

func TestSimilar_NeighborFields(t *testing.T) {
	srv := newTestServer(t)
	details := media.SignalScores{Analytical: 0.99, Plot: 0.98, Keywords: 1}
	if err := srv.store.ReplaceEdges(context.Background(), 1, []media.Edge{
		{SourceID: 1, TargetID: 2, Score: 0.93, Details: details},
	}); err != nil {
		t.Fatal(err)
	}

	resp := decode[SimilarResponse](t, srv.do(t, http.MethodGet, "/api/similar/1", nil))
	if resp.SourceID != 1 || resp.Title != "Breaking Bad" {
		t.Errorf("unexpected source %d %q", resp.SourceID, resp.Title)
	}
	if len(resp.Similar) != 1 {
		t.Fatalf("expected one neighbor, got %d", len(resp.Similar))
	}
	n := resp.Similar[0]
	if n.Title != "Better Call Saul" || n.Score != 0.93 || n.Details != details {
		t.Errorf("unexpected neighbor %+v", n)
	}
}

func TestEmbeddingStats(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.do(t, http.MethodGet, "/api/embeddings/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	st := decode[media.Stats](t, rec)
	want := media.Stats{Total: 4, WithAnalytical: 3, WithPlot: 3, WithKeywords: 2, WithAllVectors: 3, CompletionRate: 75}
	if st != want {
		t.Errorf("expected %+v, got %+v", want, st)
	}
}
