package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pgvector/pgvector-go"

	"github.com/turanbrkay/SimilarHub/internal/keywords"
	"github.com/turanbrkay/SimilarHub/internal/ranking"
	"github.com/turanbrkay/SimilarHub/internal/tracing"
)

// nearestQuery ranks by the weighted cosine similarity of both vectors.
// <=> is pgvector's cosine distance.
const nearestQuery = `
	SELECT id, title, keywords_json, sim_analytical, sim_plot
	FROM (
		SELECT
			id,
			title,
			keywords_json,
			1 - (embedding_analytical <=> $1::vector) AS sim_analytical,
			1 - (embedding_plot <=> $2::vector) AS sim_plot
		FROM media_items
		WHERE embedding_analytical IS NOT NULL AND embedding_plot IS NOT NULL
	) AS sub
	ORDER BY $3::float8 * sim_analytical + $4::float8 * sim_plot DESC, id ASC
	LIMIT $5
`

// Nearest implements ranking.VectorIndex.
func (s *Store) Nearest(ctx context.Context, q ranking.NearestQuery) (out []ranking.Neighbor, err error) {
	if q.Limit <= 0 {
		return []ranking.Neighbor{}, nil
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "media_items", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx, nearestQuery,
		pgvector.NewVector(q.Analytical),
		pgvector.NewVector(q.Plot),
		q.WeightAnalytical,
		q.WeightPlot,
		q.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("nearest neighbor query failed: %w", err)
	}
	defer rows.Close()

	out = make([]ranking.Neighbor, 0, q.Limit)
	for rows.Next() {
		var (
			n     ranking.Neighbor
			rawKw []byte
		)
		if err := rows.Scan(&n.ID, &n.Title, &rawKw, &n.SimAnalytical, &n.SimPlot); err != nil {
			return nil, fmt.Errorf("failed to scan neighbor: %w", err)
		}
		n.Keywords = keywords.Normalize(rawKw, s.logger.With(slog.Int64("item_id", n.ID)))
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate neighbors: %w", err)
	}
	return out, nil
}
