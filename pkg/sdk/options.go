package coursedex

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver     string // "postgres", "valkey" or "redis"
	dsn        string
	maxConns   int32
	addrs      []string
	password   string
	standalone bool

	indexName   string
	keyPrefix   string
	vectorField string

	embedder      Embedder
	openaiKey     string
	openaiBaseURL string
	openaiModel   string
	dimensions    int
	cacheSize     int

	rerankProvider string
	rerankKey      string
	rerankBaseURL  string
	rerankModel    string
	rerankBatch    int
	rerankDefault  bool

	candidateLimit int
	categoryMerge  string
	fold           bool

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithPostgres reads candidates from PostgreSQL with pgvector.
func WithPostgres(dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "postgres"
		c.dsn = dsn
	})
}

// WithValkey reads candidates from a Valkey instance with valkey-search.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis reads candidates from a Redis 8+ instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithStandalone disables cluster topology discovery for Valkey/Redis.
func WithStandalone() Option {
	return optionFunc(func(c *clientConfig) {
		c.standalone = true
	})
}

// WithMaxConns sets the PostgreSQL pool size. Default: 10.
func WithMaxConns(n int32) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxConns = n
	})
}

// WithIndex sets the FT index, the course hash key prefix and the vector
// field for the Valkey/Redis drivers.
func WithIndex(indexName, keyPrefix, vectorField string) Option {
	return optionFunc(func(c *clientConfig) {
		c.indexName = indexName
		c.keyPrefix = keyPrefix
		c.vectorField = vectorField
	})
}

// WithEmbedder sets a custom query embedder. It takes precedence over WithOpenAI.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithOpenAI embeds queries through an OpenAI-compatible API.
// An empty model selects text-embedding-3-small.
func WithOpenAI(apiKey, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.openaiKey = apiKey
		c.openaiModel = model
	})
}

// WithOpenAIBaseURL points WithOpenAI at a compatible gateway.
func WithOpenAIBaseURL(baseURL string) Option {
	return optionFunc(func(c *clientConfig) {
		c.openaiBaseURL = baseURL
	})
}

// WithVectorDimensions sets the expected query vector size. Default: 1536.
func WithVectorDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.dimensions = dim
	})
}

// WithEmbeddingCacheSize bounds the in-process query embedding cache. Default: 200.
func WithEmbeddingCacheSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheSize = size
	})
}

// WithJinaReranker reranks the top candidates through the Jina rerank API.
// Reranking is then on by default; Query.Semantic overrides it per request.
func WithJinaReranker(apiKey, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.rerankProvider = "jina"
		c.rerankKey = apiKey
		c.rerankModel = model
		c.rerankDefault = true
	})
}

// WithTEIReranker reranks through a Text-Embeddings-Inference /rerank endpoint.
func WithTEIReranker(baseURL string, batchSize int) Option {
	return optionFunc(func(c *clientConfig) {
		c.rerankProvider = "tei"
		c.rerankBaseURL = baseURL
		c.rerankBatch = batchSize
		c.rerankDefault = true
	})
}

// WithRerankDefault sets whether requests without Query.Semantic are reranked.
func WithRerankDefault(enabled bool) Option {
	return optionFunc(func(c *clientConfig) {
		c.rerankDefault = enabled
	})
}

// WithCandidateLimit caps the candidate pool per request. Default: 100.
func WithCandidateLimit(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.candidateLimit = n
	})
}

// WithCategoryMerge selects how CategorySlug and CategorySlugs combine:
// MergeIntersect (default) or MergeUnion.
func WithCategoryMerge(mode string) Option {
	return optionFunc(func(c *clientConfig) {
		c.categoryMerge = mode
	})
}

// WithDiacriticFolding makes lexical matching ignore accents.
func WithDiacriticFolding() Option {
	return optionFunc(func(c *clientConfig) {
		c.fold = true
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
