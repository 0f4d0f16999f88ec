//go:build integration

// Integration tests in this package need Docker (testcontainers starts a
// pgvector-enabled PostgreSQL) or an existing database in DATABASE_URL with
// the pgvector extension available.
//
// Run with: go test -tags=integration -v ./internal/store/postgres/...
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/turanbrkay/SimilarHub/internal/db"
	"github.com/turanbrkay/SimilarHub/internal/keywords"
	"github.com/turanbrkay/SimilarHub/internal/materialize"
	"github.com/turanbrkay/SimilarHub/internal/media"
	"github.com/turanbrkay/SimilarHub/internal/ranking"
)

const migrationsDir = "../../../migrations"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// openTestDB returns a migrated database with empty tables.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		ctr, err := tcpostgres.Run(ctx, "pgvector/pgvector:pg16",
			tcpostgres.WithDatabase("similarhub"),
			tcpostgres.WithUsername("similarhub"),
			tcpostgres.WithPassword("similarhub"),
			tcpostgres.BasicWaitStrategies(),
		)
		if err != nil {
			t.Skipf("could not start postgres container: %v", err)
		}
		t.Cleanup(func() {
			if err := testcontainers.TerminateContainer(ctr); err != nil {
				t.Logf("failed to terminate container: %v", err)
			}
		})
		dsn, err = ctr.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			t.Fatalf("failed to get connection string: %v", err)
		}
	}

	conn, err := db.Open(ctx, dsn, db.DefaultPoolConfig())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if _, err := db.ApplyMigrations(ctx, conn, migrationsDir); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}
	if _, err := conn.ExecContext(ctx, `TRUNCATE similar_items, media_items`); err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
	return conn
}

// vec returns a 1024-dim vector with the given leading components.
func vec(lead ...float32) []float32 {
	v := make([]float32, media.DefaultVectorDimension)
	copy(v, lead)
	return v
}

func seed(t *testing.T, s *Store) {
	t.Helper()
	crime := keywords.Set{keywords.GenreAndTropes: {"crime", "drama"}}
	items := []media.Item{
		{ID: 1, Title: "Peaky Blinders", Genres: []string{"Crime"}, Analytical: vec(1, 0), Plot: vec(1, 0), Keywords: crime},
		{ID: 2, Title: "Boardwalk Empire", Analytical: vec(0.9, 0.1), Plot: vec(0.9, 0.1), Keywords: crime},
		{ID: 3, Title: "The Office", Analytical: vec(0, 1), Plot: vec(0, 1)},
		{ID: 4, Title: "Unembedded"},
	}
	for _, it := range items {
		if err := s.UpsertItem(context.Background(), it); err != nil {
			t.Fatalf("UpsertItem(%d): %v", it.ID, err)
		}
	}
}

func TestPgvectorInstalled(t *testing.T) {
	conn := openTestDB(t)
	version, err := db.PgvectorVersion(context.Background(), conn)
	if err != nil {
		t.Fatal(err)
	}
	if version == "" {
		t.Error("expected a pgvector version")
	}
}

func TestStore_ItemsRoundTrip(t *testing.T) {
	s := NewStore(openTestDB(t), discardLogger())
	seed(t, s)
	ctx := context.Background()

	item, err := s.FindByTitle(ctx, "peaky BLINDERS")
	if err != nil {
		t.Fatal(err)
	}
	if item.ID != 1 || len(item.Analytical) != media.DefaultVectorDimension || item.Genres[0] != "Crime" {
		t.Errorf("unexpected item %+v", item.Title)
	}
	if got := item.Keywords[keywords.GenreAndTropes]; len(got) != 2 {
		t.Errorf("keywords not round-tripped: %v", item.Keywords)
	}

	if _, err := s.Get(ctx, 99); !errors.Is(err, media.ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}

	items, err := s.ListEmbedded(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Errorf("expected 3 embedded items, got %d", len(items))
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Total != 4 || st.WithAllVectors != 3 || st.WithKeywords != 2 || st.CompletionRate != 75 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestStore_Nearest(t *testing.T) {
	s := NewStore(openTestDB(t), discardLogger())
	seed(t, s)

	got, err := s.Nearest(context.Background(), ranking.NearestQuery{
		Analytical: vec(1, 0), Plot: vec(1, 0),
		WeightAnalytical: 0.5, WeightPlot: 0.5,
		Limit: 2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 2 {
		t.Fatalf("unexpected order %+v", got)
	}
	if got[0].SimAnalytical < 0.999 {
		t.Errorf("expected self similarity ~1, got %f", got[0].SimAnalytical)
	}
}

func TestStore_MaterializeEndToEnd(t *testing.T) {
	s := NewStore(openTestDB(t), discardLogger())
	seed(t, s)
	ctx := context.Background()

	ranker := ranking.NewRanker(s, nil, nil, discardLogger())
	m := materialize.New(s, s, ranker, materialize.WithLogger(discardLogger()))
	profile := ranking.DefaultProfiles()[ranking.ProfileMixed]

	summary, err := m.Run(ctx, profile, 1)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Edges != 3 || summary.Failed != 0 {
		t.Errorf("unexpected summary %+v", summary)
	}

	neighbors, err := s.Neighbors(ctx, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(neighbors) != 1 || neighbors[0].ID != 2 || neighbors[0].Title != "Boardwalk Empire" {
		t.Fatalf("unexpected neighbors %+v", neighbors)
	}
	if neighbors[0].Details.Keywords != 1 {
		t.Errorf("expected keyword breakdown 1.0, got %+v", neighbors[0].Details)
	}

	// A second run leaves the same edges.
	if _, err := m.Run(ctx, profile, 1); err != nil {
		t.Fatal(err)
	}
	again, err := s.Neighbors(ctx, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 1 || again[0] != neighbors[0] {
		t.Errorf("rerun changed edges: %+v vs %+v", neighbors, again)
	}
}

func TestStore_ReplaceEdgesRollsBack(t *testing.T) {
	s := NewStore(openTestDB(t), discardLogger())
	seed(t, s)
	ctx := context.Background()

	if err := s.ReplaceEdges(ctx, 1, []media.Edge{{TargetID: 2, Score: 0.9}}); err != nil {
		t.Fatal(err)
	}
	// Target 99 violates the foreign key, so the whole replacement fails.
	err := s.ReplaceEdges(ctx, 1, []media.Edge{{TargetID: 3, Score: 0.5}, {TargetID: 99, Score: 0.4}})
	if err == nil {
		t.Fatal("expected foreign key failure")
	}

	neighbors, err := s.Neighbors(ctx, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(neighbors) != 1 || neighbors[0].ID != 2 {
		t.Errorf("previous edges not preserved: %+v", neighbors)
	}
}
