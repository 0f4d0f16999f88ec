// Package embedding encodes query text through an HTTP embedding server.
//
// The server speaks the text-embeddings-inference protocol:
//
//	POST /embed {"inputs": ["text"], "normalize": true}  ->  [[0.1, ...]]
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/turanbrkay/SimilarHub/internal/tracing"
)

var (
	// ErrUnavailable wraps transport failures and 5xx responses after retries.
	ErrUnavailable = errors.New("embedding service unavailable")
	// ErrEmptyText is returned for blank input.
	ErrEmptyText = errors.New("text to encode is empty")
	// ErrDimensionMismatch is returned when the server's vector length differs
	// from the configured dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 512

// Config configures a Client.
type Config struct {
	BaseURL    string
	Dimension  int           // expected vector length; 0 disables the check
	Timeout    time.Duration // per attempt
	MaxRetries uint64
	HTTPClient *http.Client // optional; its transport is wrapped with otelhttp
}

// DefaultConfig returns a config for baseURL with 1024 dimensions, a 10s
// attempt timeout and 2 retries.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		Dimension:  1024,
		Timeout:    10 * time.Second,
		MaxRetries: 2,
	}
}

// Client implements fusion.Encoder over HTTP.
type Client struct {
	baseURL    string
	dimension  int
	timeout    time.Duration
	maxRetries uint64
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient validates cfg and creates a client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("embedding base URL is required")
	}
	if cfg.Dimension < 0 {
		return nil, fmt.Errorf("embedding dimension must be >= 0 (got %d)", cfg.Dimension)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	transport := hc.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	wrapped := *hc
	wrapped.Transport = otelhttp.NewTransport(transport)

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		dimension:  cfg.Dimension,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		httpClient: &wrapped,
		logger:     logger,
	}, nil
}

type embedRequest struct {
	Inputs    []string `json:"inputs"`
	Normalize bool     `json:"normalize"`
}

// statusError is a non-2xx response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("embedding server returned %d: %s", e.code, e.body)
}

// Encode returns the L2-normalized embedding of text. Transport errors and
// 5xx/429 responses are retried with exponential backoff; other 4xx
// responses fail immediately.
func (c *Client) Encode(ctx context.Context, text string) (vec []float32, err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	ctx, endSpan := tracing.StartSpan(ctx, "embedding.encode")
	defer func() { endSpan(err) }()

	body, err := json.Marshal(embedRequest{Inputs: []string{text}, Normalize: true})
	if err != nil {
		return nil, fmt.Errorf("failed to encode embed request: %w", err)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(newBackOff(), c.maxRetries),
		ctx,
	)
	var attempt int
	operation := func() error {
		attempt++
		v, err := c.embed(ctx, body)
		if err != nil {
			var se *statusError
			if errors.As(err, &se) && se.code < 500 && se.code != http.StatusTooManyRequests {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		vec = v
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.logger.WarnContext(ctx, "embedding request failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()))
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code < 500 && se.code != http.StatusTooManyRequests {
			return nil, err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if c.dimension > 0 && len(vec) != c.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), c.dimension)
	}
	return normalize(vec), nil
}

func (c *Client) embed(ctx context.Context, body []byte) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(msg))}
	}

	var out [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}
	if len(out) != 1 || len(out[0]) == 0 {
		return nil, fmt.Errorf("expected one embedding, got %d", len(out))
	}
	return out[0], nil
}

// HealthCheck calls GET /health on the embedding server.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// normalize scales v to unit length in place. A zero vector is returned as is.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}
