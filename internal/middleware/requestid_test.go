package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		reuse    bool
	}{
		{name: "generated when absent", incoming: "", reuse: false},
		{name: "client id reused", incoming: "req-1396", reuse: true},
		{name: "oversized id replaced", incoming: strings.Repeat("x", 200), reuse: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				captured = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/profiles", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if captured == "" {
				t.Fatal("expected request id in context")
			}
			if got := rec.Header().Get(RequestIDHeader); got != captured {
				t.Errorf("response header %q does not match context id %q", got, captured)
			}
			if (captured == tt.incoming) != tt.reuse {
				t.Errorf("reuse = %v, want %v (id %q)", captured == tt.incoming, tt.reuse, captured)
			}
		})
	}
}

func TestGetRequestID_EmptyContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	if id := GetRequestID(req.Context()); id != "" {
		t.Errorf("expected empty id, got %q", id)
	}
}
