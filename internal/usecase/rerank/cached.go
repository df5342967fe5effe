// Package rerank holds decorators around the cross-encoder reranker.
package rerank

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"

	domrerank "github.com/kailas-cloud/coursedex/internal/domain/rerank"
)

// Cache defaults.
const (
	DefaultCacheSize = 100
	DefaultCacheTTL  = 10 * time.Minute
)

// CachedReranker keeps the last N successful rerank results keyed by the
// normalized query and the exact document texts. Failures are never cached.
type CachedReranker struct {
	inner      domrerank.Reranker
	cache      *expirable.LRU[string, []domrerank.ScoredDocument]
	cacheTotal *prometheus.CounterVec
}

// NewCached wraps inner with an expiring LRU. cacheTotal may be nil.
func NewCached(
	inner domrerank.Reranker, size int, ttl time.Duration, cacheTotal *prometheus.CounterVec,
) (*CachedReranker, error) {
	if inner == nil {
		return nil, errors.New("inner reranker is required")
	}
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedReranker{
		inner:      inner,
		cache:      expirable.NewLRU[string, []domrerank.ScoredDocument](size, nil, ttl),
		cacheTotal: cacheTotal,
	}, nil
}

// IsAvailable delegates to the inner reranker.
func (c *CachedReranker) IsAvailable() bool {
	return c.inner.IsAvailable()
}

// BatchRerank returns a cached copy on hit, otherwise calls inner and caches a
// non-empty result.
func (c *CachedReranker) BatchRerank(
	ctx context.Context, query string, docs []string,
) ([]domrerank.ScoredDocument, error) {
	key := cacheKey(query, docs)
	if cached, ok := c.cache.Get(key); ok {
		c.count("hit")
		return clone(cached), nil
	}
	c.count("miss")

	res, err := c.inner.BatchRerank(ctx, query, docs)
	if err != nil {
		return nil, err //nolint:wrapcheck // transparent decorator
	}
	if len(res) > 0 {
		c.cache.Add(key, clone(res))
	}
	return res, nil
}

// Len returns the number of cached results.
func (c *CachedReranker) Len() int {
	return c.cache.Len()
}

func (c *CachedReranker) count(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

// cacheKey hashes the lower-cased trimmed query and every document in order.
func cacheKey(query string, docs []string) string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(query))))
	for _, d := range docs {
		h.Write([]byte{0})
		h.Write([]byte(d))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func clone(in []domrerank.ScoredDocument) []domrerank.ScoredDocument {
	out := make([]domrerank.ScoredDocument, len(in))
	copy(out, in)
	return out
}
