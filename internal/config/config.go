package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the coursedex API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Rerank    RerankConfig    `yaml:"rerank"`
	Search    SearchConfig    `yaml:"search"`
	Auth      AuthConfig      `yaml:"auth"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings. No keys disables auth.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverValkey   = "valkey"
	DriverRedis    = "redis"
)

// DatabaseConfig holds candidate store connection settings.
// postgres uses DSN; valkey and redis use Addrs.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"`
	DSN              string   `yaml:"dsn"`
	MaxConns         int32    `yaml:"max_conns"`
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	Standalone       bool     `yaml:"standalone"`
	IndexName        string   `yaml:"index_name"`
	VectorField      string   `yaml:"vector_field"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds key layout settings for the key-value stores.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// EmbeddingConfig holds query embedding settings.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	TimeoutSec int    `yaml:"timeout_sec"`
	CacheSize  int    `yaml:"cache_size"`
	// QueryInstruction is prepended to every query, for instruction-tuned models.
	QueryInstruction string `yaml:"query_instruction"`
	// SharedCacheTTLSec enables the Redis/Valkey cache tier when > 0.
	// Only used with a key-value capable database driver.
	SharedCacheTTLSec int `yaml:"shared_cache_ttl_sec"`
}

// Rerank providers.
const (
	RerankProviderJina = "jina"
	RerankProviderTEI  = "tei"
)

// RerankConfig holds cross-encoder settings.
type RerankConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Provider    string `yaml:"provider"`
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	TopK        int    `yaml:"top_k"`
	TimeoutMS   int    `yaml:"timeout_ms"`
	BatchSize   int    `yaml:"batch_size"`
	CacheSize   int    `yaml:"cache_size"`
	CacheTTLSec int    `yaml:"cache_ttl_sec"`
}

// SearchConfig holds ranking and pagination settings.
type SearchConfig struct {
	CandidateLimit  int            `yaml:"candidate_limit"`
	DefaultPageSize int            `yaml:"default_page_size"`
	MaxPageSize     int            `yaml:"max_page_size"`
	StoreTimeoutMS  int            `yaml:"store_timeout_ms"`
	Normalization   string         `yaml:"normalization"`  // preserve | fold
	CategoryMerge   string         `yaml:"category_merge"` // intersect | union
	Weights         *WeightsConfig `yaml:"weights"`
	Quality         *QualityConfig `yaml:"quality"`
}

// WeightsConfig overrides the blend weights per scoring context.
type WeightsConfig struct {
	Local BlendConfig `yaml:"local"`
	Rest  BlendConfig `yaml:"rest"`
	Top   BlendConfig `yaml:"top"`
}

// BlendConfig is one weight set.
type BlendConfig struct {
	Rerank  float64 `yaml:"rerank"`
	Vector  float64 `yaml:"vector"`
	Lexical float64 `yaml:"lexical"`
	Quality float64 `yaml:"quality"`
}

// QualityConfig overrides the quality sub-weights.
type QualityConfig struct {
	Rating     float64 `yaml:"rating"`
	Popularity float64 `yaml:"popularity"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes YAML, expands ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "coursedex:"
	}
	if c.Database.IndexName == "" {
		c.Database.IndexName = c.Storage.KeyPrefix + "idx:courses"
	}
	if c.Database.VectorField == "" {
		c.Database.VectorField = "embedding"
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 10
	}
	if c.Embedding.CacheSize <= 0 {
		c.Embedding.CacheSize = 200
	}

	if c.Rerank.Provider == "" {
		c.Rerank.Provider = RerankProviderJina
	}
	if c.Rerank.TopK <= 0 {
		c.Rerank.TopK = 20
	}
	if c.Rerank.TimeoutMS <= 0 {
		c.Rerank.TimeoutMS = 5000
	}
	if c.Rerank.BatchSize <= 0 {
		c.Rerank.BatchSize = 32
	}
	if c.Rerank.CacheSize <= 0 {
		c.Rerank.CacheSize = 100
	}
	if c.Rerank.CacheTTLSec <= 0 {
		c.Rerank.CacheTTLSec = 600
	}

	if c.Search.CandidateLimit <= 0 {
		c.Search.CandidateLimit = 100
	}
	if c.Search.DefaultPageSize <= 0 {
		c.Search.DefaultPageSize = 9
	}
	if c.Search.MaxPageSize <= 0 {
		c.Search.MaxPageSize = 100
	}
	if c.Search.StoreTimeoutMS <= 0 {
		c.Search.StoreTimeoutMS = 5000
	}
	if c.Search.Normalization == "" {
		c.Search.Normalization = "preserve"
	}
	if c.Search.CategoryMerge == "" {
		c.Search.CategoryMerge = "intersect"
	}
}

// Validate checks the configuration for correctness.
// Weight sums are validated when the search service is built.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for the postgres driver")
		}
		if c.Embedding.SharedCacheTTLSec > 0 {
			return errors.New("embedding.shared_cache_ttl_sec requires a valkey or redis database")
		}
	case DriverValkey, DriverRedis:
		if len(c.Database.Addrs) == 0 {
			return errors.New("database.addrs is required")
		}
	default:
		return fmt.Errorf("database.driver must be postgres, valkey or redis, got %q", c.Database.Driver)
	}

	if c.Embedding.APIKey == "" {
		return errors.New("embedding.api_key is required")
	}

	switch c.Rerank.Provider {
	case RerankProviderJina:
		if c.Rerank.Enabled && c.Rerank.APIKey == "" {
			return errors.New("rerank.api_key is required for the jina provider")
		}
	case RerankProviderTEI:
		if c.Rerank.Enabled && c.Rerank.BaseURL == "" {
			return errors.New("rerank.base_url is required for the tei provider")
		}
	default:
		return fmt.Errorf("rerank.provider must be jina or tei, got %q", c.Rerank.Provider)
	}

	if c.Search.DefaultPageSize > c.Search.MaxPageSize {
		return fmt.Errorf("search.default_page_size (%d) exceeds search.max_page_size (%d)",
			c.Search.DefaultPageSize, c.Search.MaxPageSize)
	}
	switch c.Search.Normalization {
	case "preserve", "fold":
	default:
		return fmt.Errorf("search.normalization must be preserve or fold, got %q", c.Search.Normalization)
	}
	switch c.Search.CategoryMerge {
	case "intersect", "union":
	default:
		return fmt.Errorf("search.category_merge must be intersect or union, got %q", c.Search.CategoryMerge)
	}
	return nil
}

// UsesKV reports whether the database driver is a key-value store.
func (c *Config) UsesKV() bool {
	return c.Database.Driver == DriverValkey || c.Database.Driver == DriverRedis
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
