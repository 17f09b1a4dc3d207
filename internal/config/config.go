// Package config provides configuration loading and validation for the ranker.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. CVRANK_SCORING_IMPACT_WEIGHT.
const EnvPrefix = "CVRANK"

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Embedding providers.
const (
	EmbeddingOllama = "ollama"
	EmbeddingGemini = "gemini"
	EmbeddingHugot  = "hugot"
	EmbeddingHash   = "hash"
)

// Rerank providers.
const (
	RerankNone = "none"
	RerankHTTP = "http"
	RerankLLM  = "llm"
)

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Rerank    RerankConfig    `mapstructure:"rerank"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	// Taxonomy is the path to the skill taxonomy YAML file. Empty uses the built-in taxonomy.
	Taxonomy string        `mapstructure:"taxonomy"`
	Scoring  ScoringConfig `mapstructure:"scoring"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int           `mapstructure:"port" validate:"gte=1,lte=65535"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// StoreConfig selects and configures the document and vector store.
type StoreConfig struct {
	Driver      string `mapstructure:"driver" validate:"oneof=memory sqlite postgres"`
	DatabaseURL string `mapstructure:"database_url"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	Dimensions  int    `mapstructure:"dimensions" validate:"gte=1,lte=16000"`
}

// EmbeddingConfig configures the embedding backend.
type EmbeddingConfig struct {
	Provider          string        `mapstructure:"provider" validate:"oneof=ollama gemini hugot hash"`
	Model             string        `mapstructure:"model"`
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	ModelPath         string        `mapstructure:"model_path"`
	Dimensions        int           `mapstructure:"dimensions" validate:"gte=1,lte=16000"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int           `mapstructure:"burst" validate:"gte=0"`
	Retries           int           `mapstructure:"retries" validate:"gte=0,lte=5"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
}

// RerankConfig configures the optional cross-encoder stage.
type RerankConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider" validate:"oneof=none http llm"`
	URL      string        `mapstructure:"url"`
	Model    string        `mapstructure:"model"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// Concurrency bounds parallel LLM judge calls.
	Concurrency int `mapstructure:"concurrency" validate:"gte=0,lte=64"`
}

// RateLimitConfig configures per-client request quotas of the HTTP server.
type RateLimitConfig struct {
	Enabled         bool            `mapstructure:"enabled"`
	DefaultLimit    int             `mapstructure:"default_limit" validate:"gte=0"`
	DefaultWindow   time.Duration   `mapstructure:"default_window"`
	CleanupInterval time.Duration   `mapstructure:"cleanup_interval"`
	Allowlist       []string        `mapstructure:"allowlist"`
	Denylist        []string        `mapstructure:"denylist"`
	Exempt          []string        `mapstructure:"exempt"`
	Rules           []RateLimitRule `mapstructure:"rules" validate:"dive"`
}

// RateLimitRule overrides the default quota for a method and path. A path
// ending in "/" matches every path below it.
type RateLimitRule struct {
	Method string        `mapstructure:"method" validate:"required"`
	Path   string        `mapstructure:"path" validate:"required,startswith=/"`
	Limit  int           `mapstructure:"limit" validate:"gte=0"`
	Window time.Duration `mapstructure:"window"`
	Burst  int           `mapstructure:"burst" validate:"gte=0"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	JSON  bool `mapstructure:"json"`
	Debug bool `mapstructure:"debug"`
}

// Default returns the configuration used when no file or environment overrides are present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:           8080,
			RequestTimeout: 120 * time.Second,
		},
		Store: StoreConfig{
			Driver:     StoreMemory,
			SQLitePath: "cv_ranker.db",
			Dimensions: 768,
		},
		Embedding: EmbeddingConfig{
			Provider:          EmbeddingOllama,
			Model:             "nomic-embed-text",
			BaseURL:           "http://localhost:11434",
			Dimensions:        768,
			Timeout:           30 * time.Second,
			RequestsPerSecond: 0,
			Burst:             1,
			Retries:           1,
			RetryBackoff:      500 * time.Millisecond,
		},
		Rerank: RerankConfig{
			Enabled:     false,
			Provider:    RerankNone,
			Model:       "cross-encoder/ms-marco-MiniLM-L-6-v2",
			Timeout:     30 * time.Second,
			Concurrency: 4,
		},
		RateLimit: RateLimitConfig{
			Enabled:         true,
			DefaultLimit:    1000,
			DefaultWindow:   time.Minute,
			CleanupInterval: 5 * time.Minute,
			Exempt:          []string{"/health"},
			Rules: []RateLimitRule{
				// embedding a whole job on demand
				{Method: "POST", Path: "/companies/", Limit: 30, Window: time.Hour, Burst: 5},
				// searches embed lazily and may call a cross-encoder
				{Method: "POST", Path: "/search", Limit: 120, Window: time.Minute, Burst: 20},
				{Method: "POST", Path: "/search/stream", Limit: 120, Window: time.Minute, Burst: 20},
				// record uploads
				{Method: "PUT", Path: "/companies/", Limit: 300, Window: time.Minute, Burst: 30},
			},
		},
		Scoring: DefaultScoringConfig(),
	}
}

// LoadConfig loads configuration from an optional YAML or JSON file, then
// applies CVRANK_* environment overrides. An empty path loads defaults plus
// environment only. The returned Scoring section is finalized.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	defaults := Default()
	setDefaults(v, defaults)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("store.database_url", EnvPrefix+"_STORE_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("embedding.api_key", EnvPrefix+"_EMBEDDING_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("rerank.api_key", EnvPrefix+"_RERANK_API_KEY", "GEMINI_API_KEY")

	if path != "" {
		if !filepath.IsAbs(path) {
			cwd, err := os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("failed to get current directory: %w", err)
			}
			path = filepath.Join(cwd, path)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg := defaults
	// Decoding into a populated slice overwrites element by element, so lists
	// from the file or defaults must start empty.
	cfg.RateLimit.Allowlist, cfg.RateLimit.Denylist, cfg.RateLimit.Exempt = nil, nil, nil
	if v.IsSet("rate_limit.rules") {
		cfg.RateLimit.Rules = nil
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	scoring, err := cfg.Scoring.Finalize()
	if err != nil {
		return nil, err
	}
	cfg.Scoring = scoring
	return &cfg, nil
}

// Validate checks the non-scoring sections and cross-field requirements.
func (c *Config) Validate() error {
	validate := validator.New()
	for _, section := range []any{c.Server, c.Store, c.Embedding, c.Rerank, c.RateLimit} {
		if err := validate.Struct(section); err != nil {
			return fmt.Errorf("config error: %w", err)
		}
	}
	if c.Store.Driver == StorePostgres && c.Store.DatabaseURL == "" {
		return fmt.Errorf("config error: 'store.database_url' is required for the postgres driver")
	}
	if c.Store.Driver == StoreSQLite && c.Store.SQLitePath == "" {
		return fmt.Errorf("config error: 'store.sqlite_path' is required for the sqlite driver")
	}
	if c.Embedding.Provider == EmbeddingHugot && c.Embedding.ModelPath == "" && c.Embedding.Model == "" {
		return fmt.Errorf("config error: hugot embeddings need 'embedding.model_path' or 'embedding.model'")
	}
	if c.Rerank.Enabled && c.Rerank.Provider == RerankHTTP && c.Rerank.URL == "" {
		return fmt.Errorf("config error: 'rerank.url' is required for the http reranker")
	}
	if c.Rerank.Enabled && c.Rerank.Provider == RerankLLM && c.Rerank.APIKey == "" {
		return fmt.Errorf("config error: 'rerank.api_key' (or GEMINI_API_KEY) is required for the llm reranker")
	}
	return nil
}

// setDefaults registers scalar defaults so that environment overrides are
// visible to Unmarshal.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout)

	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.database_url", d.Store.DatabaseURL)
	v.SetDefault("store.sqlite_path", d.Store.SQLitePath)
	v.SetDefault("store.dimensions", d.Store.Dimensions)

	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.base_url", d.Embedding.BaseURL)
	v.SetDefault("embedding.api_key", d.Embedding.APIKey)
	v.SetDefault("embedding.model_path", d.Embedding.ModelPath)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
	v.SetDefault("embedding.timeout", d.Embedding.Timeout)
	v.SetDefault("embedding.requests_per_second", d.Embedding.RequestsPerSecond)
	v.SetDefault("embedding.burst", d.Embedding.Burst)
	v.SetDefault("embedding.retries", d.Embedding.Retries)
	v.SetDefault("embedding.retry_backoff", d.Embedding.RetryBackoff)

	v.SetDefault("rerank.enabled", d.Rerank.Enabled)
	v.SetDefault("rerank.provider", d.Rerank.Provider)
	v.SetDefault("rerank.url", d.Rerank.URL)
	v.SetDefault("rerank.model", d.Rerank.Model)
	v.SetDefault("rerank.timeout", d.Rerank.Timeout)
	v.SetDefault("rerank.concurrency", d.Rerank.Concurrency)

	v.SetDefault("rate_limit.enabled", d.RateLimit.Enabled)
	v.SetDefault("rate_limit.default_limit", d.RateLimit.DefaultLimit)
	v.SetDefault("rate_limit.default_window", d.RateLimit.DefaultWindow)
	v.SetDefault("rate_limit.cleanup_interval", d.RateLimit.CleanupInterval)
	v.SetDefault("rate_limit.allowlist", d.RateLimit.Allowlist)
	v.SetDefault("rate_limit.denylist", d.RateLimit.Denylist)
	v.SetDefault("rate_limit.exempt", d.RateLimit.Exempt)

	v.SetDefault("logging.json", d.Logging.JSON)
	v.SetDefault("logging.debug", d.Logging.Debug)
	v.SetDefault("taxonomy", d.Taxonomy)

	s := d.Scoring
	v.SetDefault("scoring.impact_weight", s.ImpactWeight)
	v.SetDefault("scoring.mandatory_strength_factor", s.MandatoryStrengthFactor)
	v.SetDefault("scoring.impact_min_relevance", s.ImpactMinRelevance)
	v.SetDefault("scoring.semantic_relevance_threshold", s.SemanticRelevanceThreshold)
	v.SetDefault("scoring.semantic_enabled", s.SemanticEnabled)
	v.SetDefault("scoring.semantic_min_chars", s.SemanticMinChars)
	v.SetDefault("scoring.impact_min_events", s.ImpactMinEvents)
	v.SetDefault("scoring.impact_saturation_events", s.ImpactSaturationEvents)
	v.SetDefault("scoring.impact_top_events", s.ImpactTopEvents)
	v.SetDefault("scoring.family_adjacency_credit", s.FamilyAdjacencyCredit)
	v.SetDefault("scoring.lexical_weight", s.LexicalWeight)
	v.SetDefault("scoring.top_k_per_section", s.TopKPerSection)
	v.SetDefault("scoring.default_top_k", s.DefaultTopK)
	v.SetDefault("scoring.max_concurrency", s.MaxConcurrency)
	v.SetDefault("scoring.rerank_top_n", s.RerankTopN)
	v.SetDefault("scoring.rerank_blend_weight", s.RerankBlendWeight)
	v.SetDefault("scoring.rerank_calibration", s.RerankCalibration)
}
