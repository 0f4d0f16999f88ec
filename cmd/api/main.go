// Package main is the entry point for the similarity API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/turanbrkay/SimilarHub/internal/api"
	"github.com/turanbrkay/SimilarHub/internal/config"
	"github.com/turanbrkay/SimilarHub/internal/db"
	"github.com/turanbrkay/SimilarHub/internal/embedding"
	"github.com/turanbrkay/SimilarHub/internal/fusion"
	"github.com/turanbrkay/SimilarHub/internal/health"
	"github.com/turanbrkay/SimilarHub/internal/keywords"
	"github.com/turanbrkay/SimilarHub/internal/lexical"
	"github.com/turanbrkay/SimilarHub/internal/middleware"
	"github.com/turanbrkay/SimilarHub/internal/ranking"
	"github.com/turanbrkay/SimilarHub/internal/store/postgres"
	"github.com/turanbrkay/SimilarHub/internal/tracing"
)

const (
	serviceName     = "similarhub-api"
	shutdownTimeout = 10 * time.Second
	cleanupInterval = time.Minute
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("SimilarHub API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// run wires every dependency from cfg and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("configuration loaded", "config", cfg.LogSummary())

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
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shut down tracer provider", "error", err)
		}
	}()

	conn, err := db.Open(ctx, cfg.DatabaseURL, db.DefaultPoolConfig())
	if err != nil {
		return err
	}
	defer conn.Close()

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
	}

	store := postgres.NewStore(conn, logger)

	profiles, err := ranking.LoadCalibration(cfg.ProfilesFile)
	if err != nil {
		logger.Warn("using default weight profiles", "error", err)
	}
	categoryWeights, err := keywords.LoadCategoryWeights(cfg.CategoryWeightsFile)
	if err != nil {
		logger.Warn("using default category weights", "error", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := middleware.NewMetrics()
	rankingMetrics := ranking.NewMetrics()
	for _, r := range []interface{ Register(prometheus.Registerer) error }{httpMetrics, rankingMetrics} {
		if err := r.Register(registry); err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	ranker := ranking.NewRanker(store, categoryWeights, rankingMetrics, logger)

	lex := lexical.NewIndex(logger)
	defer lex.Close()
	if err := lex.RebuildFromItems(ctx, store); err != nil {
		logger.Warn("lexical index unavailable, hybrid search will be semantic only", "error", err)
	}
	breakerCfg := fusion.DefaultBreakerConfig()
	if cfg.LexicalBreakerMinRequests > 0 {
		breakerCfg.MinRequests = uint32(cfg.LexicalBreakerMinRequests)
	}
	breakerCfg.Timeout = cfg.LexicalBreakerTimeout
	lexScorer := fusion.NewBreakerScorer(lex, breakerCfg, logger)

	var (
		encoder fusion.Encoder
		hybrid  api.HybridSearcher
	)
	checks := []api.Check{
		{Name: "database", Checker: health.NewDBChecker(conn), Critical: true},
		{Name: "lexical", Checker: health.NewLexicalChecker(lex, lexScorer)},
	}
	if cfg.EmbeddingURL != "" {
		embCfg := embedding.DefaultConfig(cfg.EmbeddingURL)
		embCfg.Dimension = cfg.VectorDimension
		client, err := embedding.NewClient(embCfg, logger)
		if err != nil {
			return fmt.Errorf("failed to create embedding client: %w", err)
		}
		encoder = client
		hybrid = fusion.NewHybrid(ranker, client, lexScorer, store, profiles, logger)
		checks = append(checks, api.Check{Name: "embedding", Checker: client})
	} else {
		logger.Warn("EMBEDDING_URL not set, free-text search is disabled")
	}

	var limitStore middleware.RateLimitStore
	if rdb != nil {
		limitStore = middleware.NewRedisRateLimitStore(rdb).WithMetrics(httpMetrics)
		checks = append(checks, api.Check{Name: "redis", Checker: health.NewRedisChecker(rdb)})
	} else {
		mem := middleware.NewInMemoryRateLimitStore()
		go cleanupLoop(ctx, mem, cleanupInterval)
		limitStore = mem
	}

	handler := newHandler(serverDeps{
		Search: api.NewSearchHandlers(api.SearchHandlersConfig{
			Ranker:   ranker,
			Encoder:  encoder,
			Hybrid:   hybrid,
			Items:    store,
			Profiles: profiles,
			Logger:   logger,
		}),
		Similar:    api.NewSimilarHandlers(store, store, store, logger),
		Health:     api.NewHealthHandlers(logger, checks...),
		LimitStore: limitStore,
		Metrics:    httpMetrics,
		Registry:   registry,
		Logger:     logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return serve(ctx, server, logger, shutdownTimeout)
}

// serve runs server until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, server *http.Server, logger *slog.Logger, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func cleanupLoop(ctx context.Context, store *middleware.InMemoryRateLimitStore, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			store.Cleanup()
		}
	}
}

