package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP:      HTTPConfig{Port: 8080},
		Database:  DatabaseConfig{Driver: DriverPostgres, DSN: "postgres://localhost/courses"},
		Embedding: EmbeddingConfig{APIKey: "sk-test"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.Database.Driver != DriverPostgres {
		t.Errorf("expected postgres driver, got %q", cfg.Database.Driver)
	}
	if cfg.Storage.KeyPrefix != "coursedex:" {
		t.Errorf("unexpected key prefix %q", cfg.Storage.KeyPrefix)
	}
	if cfg.Database.IndexName != "coursedex:idx:courses" {
		t.Errorf("unexpected index name %q", cfg.Database.IndexName)
	}
	if cfg.Embedding.CacheSize != 200 || cfg.Embedding.Dimensions != 1536 {
		t.Errorf("unexpected embedding defaults: %+v", cfg.Embedding)
	}
	if cfg.Rerank.TopK != 20 || cfg.Rerank.TimeoutMS != 5000 || cfg.Rerank.BatchSize != 32 || cfg.Rerank.CacheSize != 100 {
		t.Errorf("unexpected rerank defaults: %+v", cfg.Rerank)
	}
	if cfg.Search.CandidateLimit != 100 || cfg.Search.DefaultPageSize != 9 {
		t.Errorf("unexpected search defaults: %+v", cfg.Search)
	}
	if cfg.Search.Normalization != "preserve" || cfg.Search.CategoryMerge != "intersect" {
		t.Errorf("unexpected mode defaults: %+v", cfg.Search)
	}
	if cfg.Rerank.Enabled {
		t.Error("rerank must be disabled by default")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.HTTP.Port = 0 }, "http.port"},
		{"postgres without dsn", func(c *Config) { c.Database.DSN = "" }, "database.dsn"},
		{"valkey without addrs", func(c *Config) { c.Database.Driver = DriverValkey }, "database.addrs"},
		{"valkey with addrs", func(c *Config) {
			c.Database.Driver = DriverValkey
			c.Database.Addrs = []string{"localhost:6379"}
			c.Embedding.SharedCacheTTLSec = 3600
		}, ""},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"shared cache on postgres", func(c *Config) { c.Embedding.SharedCacheTTLSec = 60 }, "shared_cache_ttl_sec"},
		{"missing embedding key", func(c *Config) { c.Embedding.APIKey = "" }, "embedding.api_key"},
		{"jina enabled without key", func(c *Config) { c.Rerank.Enabled = true }, "rerank.api_key"},
		{"jina disabled without key", func(c *Config) { c.Rerank.Enabled = false }, ""},
		{"tei enabled without url", func(c *Config) {
			c.Rerank.Enabled = true
			c.Rerank.Provider = RerankProviderTEI
		}, "rerank.base_url"},
		{"unknown rerank provider", func(c *Config) { c.Rerank.Provider = "cohere" }, "rerank.provider"},
		{"page size above max", func(c *Config) { c.Search.DefaultPageSize = 500 }, "default_page_size"},
		{"bad normalization", func(c *Config) { c.Search.Normalization = "ascii" }, "search.normalization"},
		{"bad category merge", func(c *Config) { c.Search.CategoryMerge = "xor" }, "search.category_merge"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParse(t *testing.T) {
	t.Setenv("COURSEDEX_TEST_EMBED_KEY", "sk-from-env")

	data := []byte(`
http:
  port: 9090
database:
  driver: redis
  addrs: ["${COURSEDEX_TEST_REDIS:-localhost:6379}"]
embedding:
  api_key: ${COURSEDEX_TEST_EMBED_KEY}
search:
  category_merge: union
  weights:
    local: {vector: 0.6, lexical: 0.3, quality: 0.1}
  quality:
    rating: 0.7
    popularity: 0.3
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 9090 || cfg.Database.Driver != DriverRedis {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if len(cfg.Database.Addrs) != 1 || cfg.Database.Addrs[0] != "localhost:6379" {
		t.Errorf("expected default-expanded addr, got %v", cfg.Database.Addrs)
	}
	if cfg.Embedding.APIKey != "sk-from-env" {
		t.Errorf("expected env-expanded key, got %q", cfg.Embedding.APIKey)
	}
	if cfg.Search.CategoryMerge != "union" {
		t.Errorf("unexpected merge mode %q", cfg.Search.CategoryMerge)
	}
	if cfg.Search.Weights == nil || cfg.Search.Weights.Local.Vector != 0.6 {
		t.Errorf("expected local weights override, got %+v", cfg.Search.Weights)
	}
	if cfg.Search.Quality == nil || cfg.Search.Quality.Rating != 0.7 {
		t.Errorf("expected quality override, got %+v", cfg.Search.Quality)
	}
	if !cfg.UsesKV() {
		t.Error("redis driver must report key-value usage")
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("http: [")); err == nil {
		t.Error("expected YAML error")
	}
	if _, err := Parse([]byte("http:\n  port: 8080\n")); err == nil {
		t.Error("expected validation error")
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("COURSEDEX_TEST_SET", "value")

	got := string(expandEnvVars([]byte("a=${COURSEDEX_TEST_SET} b=${COURSEDEX_TEST_UNSET:-fallback} c=${COURSEDEX_TEST_UNSET}")))
	want := "a=value b=fallback c="
	if got != want {
		t.Errorf("expandEnvVars = %q, want %q", got, want)
	}
}
