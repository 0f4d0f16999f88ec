package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/redis/go-redis/v9"

	"github.com/turanbrkay/SimilarHub/internal/config"
	"github.com/turanbrkay/SimilarHub/internal/db"
	"github.com/turanbrkay/SimilarHub/internal/jobs"
	"github.com/turanbrkay/SimilarHub/internal/keywords"
	"github.com/turanbrkay/SimilarHub/internal/middleware"
	"github.com/turanbrkay/SimilarHub/internal/ranking"
	"github.com/turanbrkay/SimilarHub/internal/store/postgres"
	"github.com/turanbrkay/SimilarHub/internal/tracing"
)

const serviceName = "similarctl"

// env holds the dependencies shared by every subcommand.
type env struct {
	cfg             *config.Config
	logger          *slog.Logger
	out             io.Writer
	conn            *sql.DB
	redis           *redis.Client
	store           *postgres.Store
	profiles        ranking.Profiles
	categoryWeights keywords.CategoryWeights
	registry        *prometheus.Registry
	jobMetrics      *jobs.Metrics
	rankingMetrics  *ranking.Metrics
	tracer          *tracing.Provider
}

func newEnv(ctx context.Context, configPath string, out io.Writer) (*env, error) {
	cfg, errs := config.Load(configPath)
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	e := &env{cfg: cfg, logger: logger, out: out, registry: prometheus.NewRegistry()}

	tp, err := tracing.NewProvider(tracing.Config{
		ServiceName:  serviceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingEndpoint,
		SamplingRate: cfg.TracingSampleRate,
		InsecureMode: cfg.TracingInsecure,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	e.tracer = tp

	pool := db.DefaultPoolConfig()
	pool.MaxOpenConns = 4
	conn, err := db.Open(ctx, cfg.DatabaseURL, pool)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.conn = conn
	e.store = postgres.NewStore(conn, logger)

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
		}
		e.redis = redis.NewClient(opts)
	}

	e.profiles, err = ranking.LoadCalibration(cfg.ProfilesFile)
	if err != nil {
		logger.Warn("using default weight profiles", "error", err)
	}
	e.categoryWeights, err = keywords.LoadCategoryWeights(cfg.CategoryWeightsFile)
	if err != nil {
		logger.Warn("using default category weights", "error", err)
	}

	e.jobMetrics = jobs.NewMetrics()
	e.rankingMetrics = ranking.NewMetrics()
	if err := e.jobMetrics.Register(e.registry); err != nil {
		e.Close()
		return nil, err
	}
	if err := e.rankingMetrics.Register(e.registry); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

// ranker builds a ranker over the catalog using the configured category
// weights.
func (e *env) ranker() *ranking.Ranker {
	return ranking.NewRanker(e.store, e.categoryWeights, e.rankingMetrics, e.logger)
}

// profile returns the named profile with its Name set.
func (e *env) profile(name string) (ranking.WeightProfile, error) {
	p, err := e.profiles.Get(name)
	if err != nil {
		return p, err
	}
	p.Name = name
	return p, nil
}

// pushMetrics sends the batch metrics to a Prometheus Pushgateway. An empty
// url is a no-op.
func (e *env) pushMetrics(url, job string) {
	if url == "" {
		return
	}
	if err := push.New(url, job).Gatherer(e.registry).Push(); err != nil {
		e.logger.Warn("failed to push metrics", "url", url, "error", err)
	}
}

// Close releases every open resource.
func (e *env) Close() {
	if e.redis != nil {
		_ = e.redis.Close()
	}
	if e.conn != nil {
		_ = e.conn.Close()
	}
	if e.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.tracer.Shutdown(ctx); err != nil {
			e.logger.Error("failed to shut down tracer provider", "error", err)
		}
	}
}
