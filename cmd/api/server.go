package main

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/turanbrkay/SimilarHub/internal/api"
	"github.com/turanbrkay/SimilarHub/internal/middleware"
	"github.com/turanbrkay/SimilarHub/internal/tracing"
)

// serverDeps are the pieces newHandler assembles.
type serverDeps struct {
	Search     *api.SearchHandlers
	Similar    *api.SimilarHandlers
	Health     *api.HealthHandlers
	LimitStore middleware.RateLimitStore
	Metrics    *middleware.Metrics
	Registry   *prometheus.Registry
	Logger     *slog.Logger
}

// newHandler mounts the API, /metrics and the service root, and applies the
// middleware chain RequestID -> Tracing -> Logging -> HTTPMetrics.
func newHandler(d serverDeps) http.Handler {
	mux := http.NewServeMux()

	limits := api.Limiters{}
	if d.LimitStore != nil {
		keyFunc := middleware.IPKeyFunc()
		limits.Search = middleware.RateLimiter(d.LimitStore, middleware.DefaultSearchLimit(), keyFunc, d.Metrics)
		limits.Default = middleware.RateLimiter(d.LimitStore, middleware.DefaultGlobalLimit(), keyFunc, d.Metrics)
	}
	api.Register(mux, d.Search, d.Similar, d.Health, limits)

	mux.Handle("GET /metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			api.WriteError(w, r.Context(), http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"` + serviceName + `","version":"` + tracing.Version + `"}`)); err != nil {
			d.Logger.Error("failed to write response", "error", err)
		}
	})

	var handler http.Handler = mux
	handler = middleware.HTTPMetrics(d.Metrics)(handler)
	handler = middleware.Logging(d.Logger)(handler)
	handler = middleware.Tracing(serviceName)(handler)
	return middleware.RequestID(handler)
}
