package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	// ErrMissingAPIKey is returned when the selected LLM provider has no credentials.
	ErrMissingAPIKey = errors.New("missing LLM API key")
	ErrInvalidConfig = errors.New("invalid configuration")
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
)

type Config struct {
	// Analytical store.
	DuckDBPath   string
	MaxRows      int
	QueryTimeout time.Duration

	// Saved queries. SavedQueriesURL selects Postgres over the DuckDB file.
	SavedQueriesDB  string
	SavedQueriesURL string

	// Postgres pool for the saved-query store.
	PoolMaxConns        int32
	PoolMinConns        int32
	PoolMaxConnLifetime time.Duration

	// SQL generation.
	LLMProvider     string
	OpenAIAPIKey    string
	OpenAIModel     string
	AnthropicAPIKey string
	AnthropicModel  string
	AWSRegion       string
	BedrockModelID  string

	// Generated-SQL cache. Empty RedisURL disables caching.
	RedisURL    string
	SQLCacheTTL time.Duration

	// Data dictionary and masking.
	PolicyFile string

	// Logging.
	LogLevel slog.Level
	AuditLog string // path to NDJSON audit log file

	// Transport.
	Transport       string // "stdio" (default) or "http"
	HTTPAddr        string
	HTTPBearerToken string // required when transport=http

	// Observability.
	OTelEnabled bool

	// Scraper.
	FirecrawlAPIKey string
	ScrapeURL       string
}

// Overrides holds CLI flag values that override environment variables.
// Pointer fields distinguish "not set" from zero values.
type Overrides struct {
	DuckDBPath      *string
	SavedQueriesDB  *string
	LLMProvider     *string
	Model           *string
	LogLevel        *string
	MaxRows         *int
	QueryTimeout    *time.Duration
	PolicyFile      *string
	AuditLog        *string
	Transport       *string
	HTTPAddr        *string
	HTTPBearerToken *string
	OTelEnabled     bool
}

// LoadDotEnv loads variables from the given files into the process
// environment without overriding ones already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load builds a Config from environment variables, then applies CLI overrides,
// then validates the result.
func Load(overrides Overrides) (*Config, error) {
	cfg := defaults()

	if err := loadEnvVars(cfg); err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, overrides); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		DuckDBPath:          "data/dados.duckdb",
		SavedQueriesDB:      "data/saved_queries.duckdb",
		MaxRows:             1000,
		QueryTimeout:        30 * time.Second,
		PoolMaxConns:        4,
		PoolMinConns:        0,
		PoolMaxConnLifetime: 30 * time.Minute,
		LLMProvider:         ProviderOpenAI,
		OpenAIModel:         "gpt-4o-mini",
		AnthropicModel:      "claude-haiku-4-5",
		AWSRegion:           "us-east-1",
		BedrockModelID:      "anthropic.claude-3-haiku-20240307-v1:0",
		SQLCacheTTL:         24 * time.Hour,
		LogLevel:            slog.LevelInfo,
		Transport:           "stdio",
		HTTPAddr:            ":8080",
		ScrapeURL:           "https://books.toscrape.com/",
	}
}

// loadEnvVars reads every supported variable into cfg. All malformed values
// are reported together.
func loadEnvVars(cfg *Config) error {
	for key, dst := range map[string]*string{
		"DUCKDB_PATH":       &cfg.DuckDBPath,
		"SAVED_QUERIES_DB":  &cfg.SavedQueriesDB,
		"SAVED_QUERIES_URL": &cfg.SavedQueriesURL,
		"LLM_PROVIDER":      &cfg.LLMProvider,
		"OPENAI_API_KEY":    &cfg.OpenAIAPIKey,
		"OPENAI_MODEL":      &cfg.OpenAIModel,
		"ANTHROPIC_API_KEY": &cfg.AnthropicAPIKey,
		"ANTHROPIC_MODEL":   &cfg.AnthropicModel,
		"AWS_REGION":        &cfg.AWSRegion,
		"BEDROCK_MODEL_ID":  &cfg.BedrockModelID,
		"REDIS_URL":         &cfg.RedisURL,
		"POLICY_FILE":       &cfg.PolicyFile,
		"AUDIT_LOG":         &cfg.AuditLog,
		"TRANSPORT":         &cfg.Transport,
		"HTTP_ADDR":         &cfg.HTTPAddr,
		"HTTP_BEARER_TOKEN": &cfg.HTTPBearerToken,
		"FIRECRAWL_API_KEY": &cfg.FirecrawlAPIKey,
		"SCRAPE_URL":        &cfg.ScrapeURL,
	} {
		if v := env(key); v != "" {
			*dst = v
		}
	}

	var maxConns, minConns int
	errs := []error{
		envInt("MAX_ROWS", 1, &cfg.MaxRows),
		envInt("POOL_MAX_CONNS", 1, &maxConns),
		envInt("POOL_MIN_CONNS", 0, &minConns),
		envDuration("QUERY_TIMEOUT", &cfg.QueryTimeout),
		envDuration("SQL_CACHE_TTL", &cfg.SQLCacheTTL),
		envDuration("POOL_MAX_CONN_LIFETIME", &cfg.PoolMaxConnLifetime),
		envBool("OTEL_ENABLED", &cfg.OTelEnabled),
	}
	if maxConns > 0 {
		cfg.PoolMaxConns = int32(maxConns)
	}
	if env("POOL_MIN_CONNS") != "" {
		cfg.PoolMinConns = int32(minConns)
	}
	if v := env("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		cfg.LogLevel = level
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// envInt leaves dst untouched when key is unset and rejects values below floor.
func envInt(key string, floor int, dst *int) error {
	v := env(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < floor || n > math.MaxInt32 {
		return fmt.Errorf("%w: %s=%q must be an integer >= %d", ErrInvalidConfig, key, v, floor)
	}
	*dst = n
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := env(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, key, v, err)
	}
	*dst = d
	return nil
}

func envBool(key string, dst *bool) error {
	v := env(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q must be a boolean", ErrInvalidConfig, key, v)
	}
	*dst = b
	return nil
}

// applyOverrides applies CLI flag values on top of the env-loaded config.
func applyOverrides(cfg *Config, o Overrides) error {
	if o.DuckDBPath != nil {
		cfg.DuckDBPath = *o.DuckDBPath
	}
	if o.SavedQueriesDB != nil {
		cfg.SavedQueriesDB = *o.SavedQueriesDB
	}
	if o.LLMProvider != nil {
		cfg.LLMProvider = *o.LLMProvider
	}
	if o.Model != nil && *o.Model != "" {
		switch strings.ToLower(cfg.LLMProvider) {
		case ProviderAnthropic:
			cfg.AnthropicModel = *o.Model
		case ProviderBedrock:
			cfg.BedrockModelID = *o.Model
		default:
			cfg.OpenAIModel = *o.Model
		}
	}
	if o.LogLevel != nil {
		level, err := parseLogLevel(*o.LogLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	if o.MaxRows != nil {
		if *o.MaxRows <= 0 {
			return fmt.Errorf("%w: --max-rows must be positive", ErrInvalidConfig)
		}
		cfg.MaxRows = *o.MaxRows
	}
	if o.QueryTimeout != nil {
		cfg.QueryTimeout = *o.QueryTimeout
	}
	if o.PolicyFile != nil {
		cfg.PolicyFile = *o.PolicyFile
	}
	if o.AuditLog != nil {
		cfg.AuditLog = *o.AuditLog
	}
	if o.Transport != nil {
		cfg.Transport = *o.Transport
	}
	if o.HTTPAddr != nil {
		cfg.HTTPAddr = *o.HTTPAddr
	}
	if o.HTTPBearerToken != nil {
		cfg.HTTPBearerToken = *o.HTTPBearerToken
	}
	cfg.OTelEnabled = cfg.OTelEnabled || o.OTelEnabled

	return nil
}

// validate checks cross-field constraints on the final config.
func validate(cfg *Config) error {
	cfg.LLMProvider = strings.ToLower(cfg.LLMProvider)

	var problems []string
	if cfg.DuckDBPath == "" {
		problems = append(problems, "DUCKDB_PATH must not be empty")
	}
	switch cfg.LLMProvider {
	case ProviderOpenAI, ProviderAnthropic, ProviderBedrock:
	default:
		problems = append(problems, fmt.Sprintf("LLM_PROVIDER=%q must be openai, anthropic or bedrock", cfg.LLMProvider))
	}
	switch cfg.Transport {
	case "stdio":
	case "http":
		if cfg.HTTPBearerToken == "" {
			problems = append(problems, "HTTP_BEARER_TOKEN (or --http-bearer-token) is required with the http transport")
		}
	default:
		problems = append(problems, fmt.Sprintf("TRANSPORT=%q must be stdio or http", cfg.Transport))
	}
	if cfg.QueryTimeout <= 0 {
		problems = append(problems, "QUERY_TIMEOUT must be positive")
	}
	if cfg.SQLCacheTTL <= 0 {
		problems = append(problems, "SQL_CACHE_TTL must be positive")
	}
	if cfg.PoolMinConns > cfg.PoolMaxConns {
		problems = append(problems, fmt.Sprintf("POOL_MIN_CONNS (%d) exceeds POOL_MAX_CONNS (%d)", cfg.PoolMinConns, cfg.PoolMaxConns))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// RequireLLMCredentials reports ErrMissingAPIKey when the selected provider
// cannot authenticate. It is checked on first LLM use rather than in Load so
// that commands which never call a model work without a key. Bedrock resolves
// credentials through the AWS default chain and is never rejected here.
func (c *Config) RequireLLMCredentials() error {
	switch c.LLMProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY is not set", ErrMissingAPIKey)
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("%w: ANTHROPIC_API_KEY is not set", ErrMissingAPIKey)
		}
	}
	return nil
}

// Model returns the model identifier for the selected provider.
func (c *Config) Model() string {
	switch c.LLMProvider {
	case ProviderAnthropic:
		return c.AnthropicModel
	case ProviderBedrock:
		return c.BedrockModelID
	default:
		return c.OpenAIModel
	}
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: LOG_LEVEL=%q must be debug, info, warn or error", ErrInvalidConfig, s)
	}
}
