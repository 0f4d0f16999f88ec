package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/turanbrkay/SimilarHub/internal/materialize"
)

type materializeOptions struct {
	topK        int
	profile     string
	progress    int
	pushgateway string
	lockTTL     time.Duration
}

func parseMaterializeFlags(e *env, args []string) (materializeOptions, error) {
	var o materializeOptions
	fs := newFlagSet("materialize", e.out)
	fs.IntVar(&o.topK, "top-k", e.cfg.MaterializeTopK, "neighbors kept per item")
	fs.StringVar(&o.profile, "profile", e.cfg.MaterializeProfile, "weight profile used for ranking")
	fs.IntVar(&o.progress, "progress-every", 25, "log progress every N items")
	fs.StringVar(&o.pushgateway, "pushgateway", "", "Prometheus Pushgateway URL for run metrics")
	fs.DurationVar(&o.lockTTL, "lock-ttl", e.cfg.MaterializeLockTTL, "redis lock lease, renewed while the run is active")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.topK <= 0 {
		return o, fmt.Errorf("-top-k must be positive, got %d", o.topK)
	}
	if o.lockTTL <= 0 {
		return o, fmt.Errorf("-lock-ttl must be positive, got %s", o.lockTTL)
	}
	return o, nil
}

func runMaterialize(ctx context.Context, e *env, args []string) error {
	o, err := parseMaterializeFlags(e, args)
	if err != nil {
		return err
	}
	profile, err := e.profile(o.profile)
	if err != nil {
		return err
	}

	var locker materialize.Locker = materialize.NewLocalLocker()
	if e.redis != nil {
		locker = materialize.NewRedisLocker(e.redis, materialize.DefaultLockKey, o.lockTTL).WithLogger(e.logger)
	}

	m := materialize.New(e.store, e.store, e.ranker(),
		materialize.WithLocker(locker),
		materialize.WithMetrics(e.jobMetrics),
		materialize.WithProgressEvery(o.progress),
		materialize.WithLogger(e.logger),
	)
	summary, runErr := m.Run(ctx, profile, o.topK)
	e.pushMetrics(o.pushgateway, "similarctl_materialize")
	if runErr != nil {
		return runErr
	}

	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
