package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/turanbrkay/SimilarHub/internal/media"
	"github.com/turanbrkay/SimilarHub/internal/ranking"
)

func runFind(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("find", e.out)
	title := fs.String("title", "", "title to start from (case-insensitive)")
	limit := fs.Int("limit", 10, "number of results")
	profileName := fs.String("profile", ranking.ProfileMixed, "weight profile")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *title == "" {
		return fmt.Errorf("-title is required")
	}
	profile, err := e.profile(*profileName)
	if err != nil {
		return err
	}

	item, results, err := findSimilar(ctx, e.store, e.ranker(), *title, profile, *limit)
	if err != nil {
		return err
	}
	return printResults(e.out, item, profile, results)
}

// findSimilar resolves title and ranks the catalog against it.
func findSimilar(ctx context.Context, items media.ItemReader, s ranking.Searcher, title string, profile ranking.WeightProfile, limit int) (*media.Item, []ranking.CandidateScore, error) {
	item, err := items.FindByTitle(ctx, title)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve %q: %w", title, err)
	}
	if !item.HasVectors() {
		return item, []ranking.CandidateScore{}, nil
	}
	results, err := ranking.SimilarTo(ctx, s, item, profile, limit, 0)
	if err != nil {
		return nil, nil, err
	}
	return item, results, nil
}

func printResults(w io.Writer, item *media.Item, profile ranking.WeightProfile, results []ranking.CandidateScore) error {
	fmt.Fprintf(w, "Similar to %q (id %d), profile %s\n", item.Title, item.ID, profile.Name)
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "no results")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tID\tTITLE\tSCORE\tANALYTICAL\tPLOT\tKEYWORDS")
	for i, r := range results {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%.4f\t%.4f\t%.4f\t%.4f\n",
			i+1, r.ID, r.Title, r.FinalScore, r.Signals.Analytical, r.Signals.Plot, r.Signals.Keywords)
	}
	return tw.Flush()
}
