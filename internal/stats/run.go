// Package stats tracks counters for batch runs.
package stats

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// RunStats tracks cumulative statistics for a materialization run.
// All operations are thread-safe using atomic counters.
type RunStats struct {
	total     int64 // Items scheduled for the run
	processed int64 // Items attempted, successful or not
	failed    int64 // Items whose search or write failed
	skipped   int64 // Items without vectors
	edges     int64 // Edges written
	started   time.Time
}

// NewRunStats creates a RunStats for a run over total items.
func NewRunStats(total int) *RunStats {
	return &RunStats{total: int64(total), started: time.Now()}
}

// RecordSuccess counts a processed item that wrote n edges.
func (s *RunStats) RecordSuccess(n int) {
	atomic.AddInt64(&s.processed, 1)
	atomic.AddInt64(&s.edges, int64(n))
}

// RecordFailure counts a processed item that failed.
func (s *RunStats) RecordFailure() {
	atomic.AddInt64(&s.processed, 1)
	atomic.AddInt64(&s.failed, 1)
}

// RecordSkip counts a processed item that had nothing to rank.
func (s *RunStats) RecordSkip() {
	atomic.AddInt64(&s.processed, 1)
	atomic.AddInt64(&s.skipped, 1)
}

// Total returns the number of items scheduled.
func (s *RunStats) Total() int64 { return atomic.LoadInt64(&s.total) }

// Processed returns the number of items attempted.
func (s *RunStats) Processed() int64 { return atomic.LoadInt64(&s.processed) }

// Failed returns the number of failed items.
func (s *RunStats) Failed() int64 { return atomic.LoadInt64(&s.failed) }

// Skipped returns the number of skipped items.
func (s *RunStats) Skipped() int64 { return atomic.LoadInt64(&s.skipped) }

// Edges returns the number of edges written.
func (s *RunStats) Edges() int64 { return atomic.LoadInt64(&s.edges) }

// Elapsed returns the time since the run started.
func (s *RunStats) Elapsed() time.Duration { return time.Since(s.started) }

// ETA estimates the remaining time from the average time per processed
// item. It is 0 before the first item and after the last.
func (s *RunStats) ETA() time.Duration {
	done := s.Processed()
	remaining := s.Total() - done
	if done == 0 || remaining <= 0 {
		return 0
	}
	perItem := s.Elapsed() / time.Duration(done)
	return perItem * time.Duration(remaining)
}

// String returns a human-readable summary of the statistics.
func (s *RunStats) String() string {
	return fmt.Sprintf("processed=%d/%d failed=%d skipped=%d edges=%d",
		s.Processed(), s.Total(), s.Failed(), s.Skipped(), s.Edges())
}

// LogProgress logs current progress with an ETA at INFO level.
func (s *RunStats) LogProgress(logger *slog.Logger, job string) {
	var pct float64
	if total := s.Total(); total > 0 {
		pct = float64(s.Processed()) / float64(total) * 100
	}
	logger.Info("batch progress",
		"job", job,
		"processed", s.Processed(),
		"total", s.Total(),
		"percent", fmt.Sprintf("%.1f", pct),
		"failed", s.Failed(),
		"edges", s.Edges(),
		"eta", s.ETA().Round(time.Second).String(),
	)
}

// LogSummary logs the final statistics at INFO level.
func (s *RunStats) LogSummary(logger *slog.Logger, job string) {
	logger.Info("batch complete",
		"job", job,
		"processed", s.Processed(),
		"total", s.Total(),
		"failed", s.Failed(),
		"skipped", s.Skipped(),
		"edges", s.Edges(),
		"elapsed", s.Elapsed().Round(time.Millisecond).String(),
	)
}
