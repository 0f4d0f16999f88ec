package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HealthChecker is a dependency probe.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Check is a named probe. A failing critical check makes /ready return 503;
// a failing optional check is reported as "degraded".
type Check struct {
	Name     string
	Checker  HealthChecker
	Critical bool
}

// Check results.
const (
	CheckOK       = "ok"
	CheckError    = "error"
	CheckDegraded = "degraded"
)

// readyTimeout bounds all readiness probes together.
const readyTimeout = 5 * time.Second

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	checks []Check
	logger *slog.Logger
}

// NewHealthHandlers creates probe handlers for checks.
func NewHealthHandlers(logger *slog.Logger, checks ...Check) *HealthHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandlers{checks: checks, logger: logger}
}

// HealthResponse is the probe body.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Health handles GET /health. It answers 200 whenever the process can serve.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Checks:    map[string]string{"runtime": CheckOK},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready. Every check runs; the response is 503 when any
// critical check fails.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	checks := make(map[string]string, len(h.checks))
	status, code := "healthy", http.StatusOK
	for _, c := range h.checks {
		err := c.Checker.HealthCheck(ctx)
		switch {
		case err == nil:
			checks[c.Name] = CheckOK
		case c.Critical:
			checks[c.Name] = CheckError
			status, code = "unhealthy", http.StatusServiceUnavailable
			h.logger.WarnContext(ctx, "readiness check failed",
				slog.String("check", c.Name),
				slog.String("error", err.Error()))
		default:
			checks[c.Name] = CheckDegraded
			if status == "healthy" {
				status = "degraded"
			}
			h.logger.InfoContext(ctx, "optional readiness check failed",
				slog.String("check", c.Name),
				slog.String("error", err.Error()))
		}
	}

	writeJSON(w, r, code, HealthResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
