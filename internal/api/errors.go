// Package api implements the HTTP handlers of the similarity service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/turanbrkay/SimilarHub/internal/embedding"
	"github.com/turanbrkay/SimilarHub/internal/fusion"
	"github.com/turanbrkay/SimilarHub/internal/media"
	"github.com/turanbrkay/SimilarHub/internal/middleware"
	"github.com/turanbrkay/SimilarHub/internal/ranking"
)

// Error codes returned in the error envelope.
const (
	ErrCodeValidation     = "validation_error"
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeUnknownProfile = "unknown_profile"
	ErrCodeRateLimited    = "rate_limit_exceeded"
	ErrCodeUnavailable    = "service_unavailable"
	ErrCodeInternal       = "internal_error"
)

// ErrorResponse is the error envelope: {"error": {"code": "...", "message": "..."}}.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a machine readable code and a human readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes the error envelope with status and records code for the
// request log line.
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	ctx = middleware.SetErrorCode(ctx, code)

	data, err := json.Marshal(ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// StatusCodeMapping returns the HTTP status used for code.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeBadRequest, ErrCodeUnknownProfile:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// classify maps a domain error to an error code.
func classify(err error) string {
	switch {
	case errors.Is(err, media.ErrItemNotFound):
		return ErrCodeNotFound
	case errors.Is(err, media.ErrInvalidID), errors.Is(err, ranking.ErrInvalidWeights), errors.Is(err, fusion.ErrInvalidQuery):
		return ErrCodeValidation
	case errors.Is(err, ranking.ErrUnknownProfile):
		return ErrCodeUnknownProfile
	case errors.Is(err, ranking.ErrVectorIndexUnavailable), errors.Is(err, embedding.ErrUnavailable):
		return ErrCodeUnavailable
	default:
		return ErrCodeInternal
	}
}

// writeDomainError logs err when it is a server side failure and writes the
// matching envelope. message is used for 5xx responses; client errors carry
// the error text.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, message string) {
	code := classify(err)
	status := StatusCodeMapping(code)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), message, slog.String("error", err.Error()))
		WriteError(w, r.Context(), status, code, message)
		return
	}
	WriteError(w, r.Context(), status, code, err.Error())
}

// writeJSON encodes v with status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}
