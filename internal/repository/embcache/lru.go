package embcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/coursedex/internal/domain"
)

// DefaultSize is the default number of cached query embeddings.
const DefaultSize = 200

// FlightTimeout bounds one shared inner call. It runs detached from any
// single caller so a cancelled leader does not fail its followers.
const FlightTimeout = 30 * time.Second

// LRUEmbedder keeps the most recently used query embeddings in process.
// Safe for concurrent use. Entries expire only by capacity eviction.
// Returned vectors are shared between callers and must not be modified.
type LRUEmbedder struct {
	inner      domain.Embedder
	cache      *lru.Cache[string, []float32]
	group      singleflight.Group
	cacheTotal *prometheus.CounterVec
	tier       string
}

// NewLRU creates an in-process caching decorator holding up to size entries.
// cacheTotal is a counter vec with labels "tier" and "result", may be nil.
func NewLRU(inner domain.Embedder, size int, cacheTotal *prometheus.CounterVec) (*LRUEmbedder, error) {
	if size <= 0 {
		size = DefaultSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &LRUEmbedder{
		inner:      inner,
		cache:      cache,
		cacheTotal: cacheTotal,
		tier:       "memory",
	}, nil
}

// Embed returns the cached vector for the normalized text or asks the inner
// embedder. Concurrent misses for the same text share one inner call, and
// each caller waits on it only until its own ctx is done.
// Cache hit: TotalTokens = 0.
func (c *LRUEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := NormalizeKey(text)

	if vec, ok := c.cache.Get(key); ok {
		c.incCache("hit")
		return domain.EmbeddingResult{Embedding: vec}, nil
	}
	c.incCache("miss")

	ch := c.group.DoChan(key, func() (any, error) {
		// A concurrent flight may have filled the entry meanwhile.
		if vec, ok := c.cache.Peek(key); ok {
			return domain.EmbeddingResult{Embedding: vec}, nil
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), FlightTimeout)
		defer cancel()
		res, err := c.inner.Embed(fctx, key)
		if err != nil {
			return nil, err
		}
		if len(res.Embedding) == 0 {
			return nil, errors.New("empty embedding")
		}
		c.cache.Add(key, res.Embedding)
		return res, nil
	})

	select {
	case <-ctx.Done():
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", r.Err)
		}
		return r.Val.(domain.EmbeddingResult), nil //nolint:errcheck,forcetypeassert // only EmbeddingResult is stored
	}
}

// Len returns the number of cached entries.
func (c *LRUEmbedder) Len() int {
	return c.cache.Len()
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (c *LRUEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

func (c *LRUEmbedder) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(c.tier, result).Inc()
	}
}
