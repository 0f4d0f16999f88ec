package validate

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// URL validation errors.
var (
	ErrInvalidURL       = errors.New("invalid URL format")
	ErrDisallowedScheme = errors.New("URL scheme not allowed")
)

// URLConstraints restricts a URL's scheme and length.
type URLConstraints struct {
	AllowedSchemes []string
	MaxLength      int // 0 = no limit
}

// ServiceURLConstraints accepts plain HTTP(S) endpoints such as the
// embedding service. Private addresses are expected here.
var ServiceURLConstraints = URLConstraints{
	AllowedSchemes: []string{"http", "https"},
	MaxLength:      2048,
}

// RedisURLConstraints accepts redis:// and rediss:// connection strings.
var RedisURLConstraints = URLConstraints{
	AllowedSchemes: []string{"redis", "rediss"},
	MaxLength:      2048,
}

// URL validates urlStr against c and returns it trimmed.
func URL(urlStr string, c URLConstraints) (string, error) {
	urlStr = strings.TrimSpace(urlStr)
	if urlStr == "" {
		return "", ErrEmpty
	}
	if c.MaxLength > 0 && len(urlStr) > c.MaxLength {
		return "", fmt.Errorf("%w: URL exceeds %d characters", ErrStringTooLong, c.MaxLength)
	}

	parsed, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if len(c.AllowedSchemes) > 0 && !slices.Contains(c.AllowedSchemes, parsed.Scheme) {
		return "", fmt.Errorf("%w: got %q, allowed: %v", ErrDisallowedScheme, parsed.Scheme, c.AllowedSchemes)
	}
	if parsed.Hostname() == "" {
		return "", fmt.Errorf("%w: missing hostname", ErrInvalidURL)
	}
	return urlStr, nil
}

// ServiceURL validates an HTTP(S) service base URL.
func ServiceURL(urlStr string) (string, error) {
	return URL(urlStr, ServiceURLConstraints)
}

// RedisURL validates a redis connection string.
func RedisURL(urlStr string) (string, error) {
	return URL(urlStr, RedisURLConstraints)
}
