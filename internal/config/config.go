// Package config provides unified configuration loading for the search engine.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the search engine.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	Cache         CacheConfig         `yaml:"cache"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	Scorer        ScorerConfig        `yaml:"scorer"`
	Retrieval     RetrievalConfig     `yaml:"retrieval"`
	Recommend     RecommendConfig     `yaml:"recommend"`
	Ingestion     IngestionConfig     `yaml:"ingestion"`
	LLM           LLMConfig           `yaml:"llm"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// DatabaseConfig holds offer/rating store connection settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // sqlite or postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	JournalMode  string `yaml:"journal_mode"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CatalogConfig holds catalog store settings.
type CatalogConfig struct {
	Adapter    string `yaml:"adapter"` // memory or remote
	Collection string `yaml:"collection"`
	RemoteURL  string `yaml:"remote_url"`
	FetchLimit int    `yaml:"fetch_limit"`
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model"`
	Dimension int           `yaml:"dimension"`
	BatchSize int           `yaml:"batch_size"`
	Timeout   time.Duration `yaml:"timeout"`
}

// ScorerConfig holds relevance scorer settings.
type ScorerConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// RetrievalConfig holds hybrid retrieval settings.
type RetrievalConfig struct {
	DefaultBlend float64       `yaml:"default_blend"`
	ResultCap    int           `yaml:"result_cap"`
	KeywordCap   int           `yaml:"keyword_cap"`
	IntentAlpha  float64       `yaml:"intent_alpha"`
	IntentGate   float64       `yaml:"intent_gate"`
	CacheResults bool          `yaml:"cache_results"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
}

// RecommendConfig holds recommendation engine settings.
type RecommendConfig struct {
	TopK         int     `yaml:"top_k"`
	SimilarUsers int     `yaml:"similar_users"`
	HybridAlpha  float64 `yaml:"hybrid_alpha"`
	RatingScale  float64 `yaml:"rating_scale"`
}

// IngestionConfig holds catalog ingestion settings.
type IngestionConfig struct {
	ProductsCSV     string        `yaml:"products_csv"`
	ChunkSize       int           `yaml:"chunk_size"`
	StalenessWindow time.Duration `yaml:"staleness_window"`
}

// LLMConfig holds language-model provider settings for filter extraction.
type LLMConfig struct {
	Provider    string        `yaml:"provider"` // openai or mock
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8086,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     30 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path:         "/tmp/search-engine.db",
				MaxOpenConns: 1,
				JournalMode:  "WAL",
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Catalog: CatalogConfig{
			Adapter:    "memory",
			Collection: "products",
			FetchLimit: 10000,
		},
		Cache: CacheConfig{
			Driver:     "memory",
			TTL:        5 * time.Minute,
			MaxEntries: 10000,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				DB:       0,
				PoolSize: 10,
			},
		},
		Embedding: EmbeddingConfig{
			Model:     "all-MiniLM-L6-v2",
			Dimension: 384,
			BatchSize: 100,
			Timeout:   30 * time.Second,
		},
		Scorer: ScorerConfig{
			Model:   "ms-marco-TinyBERT-L-2-v2",
			Timeout: 30 * time.Second,
		},
		Retrieval: RetrievalConfig{
			DefaultBlend: 0.5,
			ResultCap:    5,
			KeywordCap:   3,
			IntentAlpha:  0.45,
			IntentGate:   0.45,
			CacheResults: true,
			CacheTTL:     5 * time.Minute,
		},
		Recommend: RecommendConfig{
			TopK:         5,
			SimilarUsers: 5,
			HybridAlpha:  0.7,
			RatingScale:  5.0,
		},
		Ingestion: IngestionConfig{
			ChunkSize:       100,
			StalenessWindow: 7 * 24 * time.Hour,
		},
		LLM: LLMConfig{
			Provider:    "mock",
			Model:       "gpt-4o-mini",
			Temperature: 0.0,
			Timeout:     30 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			ServiceName: "search-engine",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}

	if c.Catalog.Adapter != "memory" && c.Catalog.Adapter != "remote" {
		return fmt.Errorf("invalid catalog adapter: %s", c.Catalog.Adapter)
	}

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	if c.Retrieval.DefaultBlend < 0 || c.Retrieval.DefaultBlend > 1 {
		return fmt.Errorf("default_blend must be in [0,1]")
	}

	if c.Recommend.HybridAlpha < 0 || c.Recommend.HybridAlpha > 1 {
		return fmt.Errorf("hybrid_alpha must be in [0,1]")
	}

	if c.Ingestion.ChunkSize < 1 {
		return fmt.Errorf("ingestion chunk_size must be positive")
	}

	return nil
}

// DatabaseDSN returns the appropriate database connection string.
func (c *Config) DatabaseDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.SQLite.Path
	}
	return c.Database.Postgres.DSN
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Database.Driver = "sqlite"
			cfg.Database.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Database.Driver = "postgres"
			cfg.Database.Postgres.DSN = v
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("CATALOG_ADAPTER"); v != "" {
		cfg.Catalog.Adapter = v
	}

	if v := os.Getenv("CATALOG_URL"); v != "" {
		cfg.Catalog.Adapter = "remote"
		cfg.Catalog.RemoteURL = v
	}

	if v := os.Getenv("EMBEDDING_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}

	if v := os.Getenv("EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}

	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}

	if v := os.Getenv("SCORER_BASE_URL"); v != "" {
		cfg.Scorer.BaseURL = v
	}

	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}

	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}

	if v := os.Getenv("PRODUCTS_CSV"); v != "" {
		cfg.Ingestion.ProductsCSV = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
