// Package config provides configuration loading and validation for the API
// server and the batch commands. It uses koanf to merge environment variables
// with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/turanbrkay/SimilarHub/internal/validate"
)

// Config holds all configuration values.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Storage
	DatabaseURL string `koanf:"database_url"`
	RedisURL    string `koanf:"redis_url"` // Optional; enables the distributed materialize lock

	// Embedding service used to encode free-text queries
	EmbeddingURL    string `koanf:"embedding_url"`
	VectorDimension int    `koanf:"vector_dimension"`

	// Ranking
	ProfilesFile        string `koanf:"profiles_file"`         // JSON weight profiles merged over defaults
	CategoryWeightsFile string `koanf:"category_weights_file"` // JSON category weights merged over defaults

	// Materialization
	MaterializeTopK    int           `koanf:"materialize_top_k"`
	MaterializeProfile string        `koanf:"materialize_profile"`
	MaterializeLockTTL time.Duration `koanf:"materialize_lock_ttl"` // Redis lock lease, renewed while a run is active

	// Lexical scorer circuit breaker
	LexicalBreakerMinRequests int           `koanf:"lexical_breaker_min_requests"` // Requests per interval before the failure ratio can trip
	LexicalBreakerTimeout     time.Duration `koanf:"lexical_breaker_timeout"`

	// Tracing
	TracingEnabled    bool    `koanf:"tracing_enabled"`
	TracingExporter   string  `koanf:"tracing_exporter"` // otlp-http or otlp-grpc
	TracingEndpoint   string  `koanf:"tracing_endpoint"`
	TracingSampleRate float64 `koanf:"tracing_sample_rate"`
	TracingInsecure   bool    `koanf:"tracing_insecure"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL     = errors.New("DATABASE_URL is required")
	ErrInvalidPort            = errors.New("PORT must be a valid integer")
	ErrInvalidInteger         = errors.New("value must be a valid integer")
	ErrInvalidTopK            = errors.New("MATERIALIZE_TOP_K must be positive")
	ErrInvalidLockTTL         = errors.New("MATERIALIZE_LOCK_TTL must be positive")
	ErrInvalidMinRequests     = errors.New("LEXICAL_BREAKER_MIN_REQUESTS must be positive")
	ErrInvalidVectorDimension = errors.New("VECTOR_DIMENSION must be positive")
	ErrInvalidSampleRate      = errors.New("TRACING_SAMPLE_RATE must be between 0 and 1")
	ErrInvalidTracingExporter = errors.New("TRACING_EXPORTER must be otlp-http or otlp-grpc")
	ErrInvalidEmbeddingURL    = errors.New("EMBEDDING_URL must be an http(s) URL")
	ErrInvalidRedisURL        = errors.New("REDIS_URL must be a redis:// or rediss:// URL")
)

// Default values for non-secret configuration.
const (
	DefaultPort                      = 8080
	DefaultEnv                       = "development"
	DefaultVectorDimension           = 1024
	DefaultMaterializeTopK           = 20
	DefaultMaterializeProfile        = "user_custom"
	DefaultMaterializeLockTTL        = time.Minute
	DefaultLexicalBreakerMinRequests = 3
	DefaultLexicalBreakerTimeout     = 30 * time.Second
	DefaultTracingExporter           = "otlp-http"
	DefaultTracingSampleRate         = 0.1
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	collect := func(err error) {
		if err != nil {
			loadErrs = append(loadErrs, err)
		}
	}

	// Try SIMILARHUB_PORT first, then PORT
	port, err := getEnvIntOrDefaultMulti([]string{"SIMILARHUB_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if err != nil {
		collect(fmt.Errorf("%w: %w", ErrInvalidPort, err))
	}
	dim, err := getEnvIntOrDefault("VECTOR_DIMENSION", k.Int("vector_dimension"), DefaultVectorDimension)
	collect(err)
	topK, err := getEnvIntOrDefault("MATERIALIZE_TOP_K", k.Int("materialize_top_k"), DefaultMaterializeTopK)
	collect(err)
	lockTTL, err := getEnvDurationOrDefault("MATERIALIZE_LOCK_TTL", k.Duration("materialize_lock_ttl"), DefaultMaterializeLockTTL)
	collect(err)
	minRequests, err := getEnvIntOrDefault("LEXICAL_BREAKER_MIN_REQUESTS", k.Int("lexical_breaker_min_requests"), DefaultLexicalBreakerMinRequests)
	collect(err)
	breakerTimeout, err := getEnvDurationOrDefault("LEXICAL_BREAKER_TIMEOUT", k.Duration("lexical_breaker_timeout"), DefaultLexicalBreakerTimeout)
	collect(err)
	sampleRate, err := getEnvFloatOrDefault("TRACING_SAMPLE_RATE", k.Float64("tracing_sample_rate"), DefaultTracingSampleRate)
	collect(err)

	cfg := &Config{
		Port:                      port,
		Env:                       getEnvOrDefaultMulti([]string{"SIMILARHUB_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:               getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisURL:                  getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		EmbeddingURL:              getEnvOrKoanf("EMBEDDING_URL", k, "embedding_url"),
		VectorDimension:           dim,
		ProfilesFile:              getEnvOrKoanf("PROFILES_FILE", k, "profiles_file"),
		CategoryWeightsFile:       getEnvOrKoanf("CATEGORY_WEIGHTS_FILE", k, "category_weights_file"),
		MaterializeTopK:           topK,
		MaterializeProfile:        getEnvOrDefault("MATERIALIZE_PROFILE", k.String("materialize_profile"), DefaultMaterializeProfile),
		MaterializeLockTTL:        lockTTL,
		LexicalBreakerMinRequests: minRequests,
		LexicalBreakerTimeout:     breakerTimeout,
		TracingEnabled:            getEnvBoolOrKoanf("TRACING_ENABLED", k, "tracing_enabled"),
		TracingExporter:           getEnvOrDefault("TRACING_EXPORTER", k.String("tracing_exporter"), DefaultTracingExporter),
		TracingEndpoint:           getEnvOrKoanf("TRACING_ENDPOINT", k, "tracing_endpoint"),
		TracingSampleRate:         sampleRate,
		TracingInsecure:           getEnvBoolOrKoanf("TRACING_INSECURE", k, "tracing_insecure"),
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvBoolOrKoanf parses common boolean spellings from the environment,
// falling back to the koanf value. Unrecognized values are ignored.
func getEnvBoolOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) bool {
	result := k.Bool(koanfKey)
	if val := os.Getenv(envKey); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			result = true
		case "false", "0", "no", "off":
			result = false
		}
	}
	return result
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	return getEnvIntOrDefaultMulti([]string{envKey}, koanfVal, defaultVal)
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or default.
// Returns an error if any environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s: %w", key, ErrInvalidInteger)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as a float.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvDurationOrDefault parses a Go duration string from the environment,
// falling back to the koanf value, then the default.
func getEnvDurationOrDefault(envKey string, koanfVal time.Duration, defaultVal time.Duration) (time.Duration, error) {
	if val := os.Getenv(envKey); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid duration: %w", envKey, err)
		}
		return d, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks that all required configuration values are present and in range.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.MaterializeTopK <= 0 {
		errs = append(errs, ErrInvalidTopK)
	}
	if c.MaterializeLockTTL <= 0 {
		errs = append(errs, ErrInvalidLockTTL)
	}
	if c.LexicalBreakerMinRequests <= 0 {
		errs = append(errs, ErrInvalidMinRequests)
	}
	if c.VectorDimension <= 0 {
		errs = append(errs, ErrInvalidVectorDimension)
	}
	if c.EmbeddingURL != "" {
		if _, err := validate.ServiceURL(c.EmbeddingURL); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidEmbeddingURL, err))
		}
	}
	if c.RedisURL != "" {
		if _, err := validate.RedisURL(c.RedisURL); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidRedisURL, err))
		}
	}
	if c.TracingEnabled {
		if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
			errs = append(errs, ErrInvalidSampleRate)
		}
		if c.TracingExporter != "otlp-http" && c.TracingExporter != "otlp-grpc" {
			errs = append(errs, ErrInvalidTracingExporter)
		}
	}

	return errs
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                         fmt.Sprintf("%d", c.Port),
		"env":                          c.Env,
		"database_url":                 maskDatabaseURL(c.DatabaseURL),
		"redis_url":                    maskDatabaseURL(c.RedisURL),
		"embedding_url":                c.EmbeddingURL,
		"vector_dimension":             fmt.Sprintf("%d", c.VectorDimension),
		"profiles_file":                c.ProfilesFile,
		"category_weights_file":        c.CategoryWeightsFile,
		"materialize_top_k":            fmt.Sprintf("%d", c.MaterializeTopK),
		"materialize_profile":          c.MaterializeProfile,
		"materialize_lock_ttl":         c.MaterializeLockTTL.String(),
		"lexical_breaker_min_requests": fmt.Sprintf("%d", c.LexicalBreakerMinRequests),
		"lexical_breaker_timeout":      c.LexicalBreakerTimeout.String(),
		"tracing_enabled":              fmt.Sprintf("%t", c.TracingEnabled),
		"tracing_exporter":             c.TracingExporter,
		"tracing_endpoint":             c.TracingEndpoint,
		"tracing_sample_rate":          fmt.Sprintf("%.2f", c.TracingSampleRate),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a connection URL.
// Works for postgres://, postgresql:// and redis:// schemes.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	// Look for password pattern: user:password@host
	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	// Reconstruct URL with masked password
	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
