package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/coursedex/internal/domain"
	"github.com/kailas-cloud/coursedex/internal/domain/search/filter"
	"github.com/kailas-cloud/coursedex/internal/domain/search/result"
	"github.com/kailas-cloud/coursedex/internal/logger"
	"github.com/kailas-cloud/coursedex/internal/metrics"
)

// Config tunes the search pipeline. Zero values take defaults.
type Config struct {
	// CandidateLimit caps the pool fetched per request, independent of page size.
	CandidateLimit int

	// RerankEnabled is the default when a request carries no override.
	RerankEnabled bool
	RerankTopK    int
	RerankTimeout time.Duration

	EmbedTimeout time.Duration
	StoreTimeout time.Duration

	CategoryMerge filter.CategoryMerge
	Normalization NormalizationMode

	Weights        RankWeights
	QualityWeights QualityWeights
}

// Defaults.
const (
	DefaultCandidateLimit = 100
	DefaultRerankTopK     = 20
	DefaultRerankTimeout  = 5 * time.Second
	DefaultEmbedTimeout   = 10 * time.Second
	DefaultStoreTimeout   = 5 * time.Second
)

func (c *Config) applyDefaults() {
	if c.CandidateLimit <= 0 {
		c.CandidateLimit = DefaultCandidateLimit
	}
	if c.RerankTopK <= 0 {
		c.RerankTopK = DefaultRerankTopK
	}
	if c.RerankTimeout <= 0 {
		c.RerankTimeout = DefaultRerankTimeout
	}
	if c.EmbedTimeout <= 0 {
		c.EmbedTimeout = DefaultEmbedTimeout
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = DefaultStoreTimeout
	}
	if c.CategoryMerge == "" {
		c.CategoryMerge = filter.MergeIntersect
	}
	if c.Normalization == "" {
		c.Normalization = NormalizePreserve
	}
	if c.Weights == (RankWeights{}) {
		c.Weights = DefaultRankWeights()
	}
	if c.QualityWeights == (QualityWeights{}) {
		c.QualityWeights = DefaultQualityWeights()
	}
}

// Service ranks courses against a query by blending vector similarity,
// lexical relevance, quality and an optional cross-encoder rerank.
type Service struct {
	source  CandidateSource
	embed   Embedder
	rerank  *rerankOrchestrator
	cfg     Config
	norm    normalizer
	lexical lexicalScorer
	quality qualityScorer
}

// New creates a search service. reranker may be nil.
func New(source CandidateSource, embed Embedder, reranker Reranker, cfg Config) (*Service, error) {
	cfg.applyDefaults()

	if !cfg.CategoryMerge.IsValid() {
		return nil, fmt.Errorf("unknown category merge mode %q", cfg.CategoryMerge)
	}
	norm, err := newNormalizer(cfg.Normalization)
	if err != nil {
		return nil, err
	}
	if err := cfg.Weights.Validate(); err != nil {
		return nil, fmt.Errorf("rank weights: %w", err)
	}
	if err := cfg.QualityWeights.Validate(); err != nil {
		return nil, err
	}

	return &Service{
		source: source,
		embed:  embed,
		rerank: &rerankOrchestrator{
			reranker: reranker,
			topK:     cfg.RerankTopK,
			timeout:  cfg.RerankTimeout,
		},
		cfg:     cfg,
		norm:    norm,
		lexical: lexicalScorer{norm: norm},
		quality: qualityScorer{w: cfg.QualityWeights},
	}, nil
}

// Search returns one page of ranked courses and the size of the whole pool.
// page must be >= 0 and size > 0.
func (s *Service) Search(
	ctx context.Context, f filter.SearchFilter, page, size int,
) ([]result.Ranked, int, error) {
	start := time.Now()
	items, total, err := s.search(ctx, f, page, size)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.SearchDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	return items, total, err
}

func (s *Service) search(
	ctx context.Context, f filter.SearchFilter, page, size int,
) ([]result.Ranked, int, error) {
	log := logger.FromContext(ctx)

	pred, err := filter.Compile(f, filter.CompileOptions{CategoryMerge: s.cfg.CategoryMerge})
	if err != nil {
		return nil, 0, fmt.Errorf("compile filter: %w", err)
	}
	if pred.AlwaysFalse() {
		log.Warn("filter can never match, returning empty page",
			zap.String("category_slug", f.CategorySlug),
			zap.Strings("category_slugs", f.CategorySlugs),
		)
		return []result.Ranked{}, 0, nil
	}

	query := s.norm.normalize(f.Keyword)

	var vector []float32
	if query != "" {
		vector, err = s.embedQuery(ctx, f.NormalizedKeyword())
		if err != nil {
			return nil, 0, err
		}
	}

	fetchStart := time.Now()
	sctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	cands, err := s.source.Fetch(sctx, pred, vector, s.cfg.CandidateLimit, 0)
	cancel()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", domain.ErrCandidateStore, err)
	}
	if len(cands) > s.cfg.CandidateLimit {
		cands = cands[:s.cfg.CandidateLimit]
	}
	metrics.SearchCandidates.Observe(float64(len(cands)))
	log.Debug("candidates fetched",
		zap.Int("count", len(cands)),
		zap.Stringer("predicate", pred),
		zap.Duration("elapsed", time.Since(fetchStart)),
	)

	if len(cands) == 0 {
		return []result.Ranked{}, 0, nil
	}

	items := make([]scored, len(cands))
	for i, c := range cands {
		items[i] = scored{
			cand: c,
			sig: signals{
				vector:  vectorScore(c.Distance),
				lexical: s.lexical.score(query, c),
				quality: s.quality.score(c),
			},
		}
	}

	var ranked []result.Ranked
	switch {
	case query == "":
		ranked = rankQuality(items)
	default:
		enabled := s.cfg.RerankEnabled
		if f.Semantic != nil {
			enabled = *f.Semantic
		}

		rr := rerankResult{outcome: RerankSkipped}
		if s.rerank.eligible(enabled, page, query) {
			// The reranker scores the text as typed, not the lexical form.
			rr = s.rerank.run(ctx, strings.TrimSpace(f.Keyword), cands)
		}
		recordRerankOutcome(rr.outcome)

		if rr.outcome == RerankSucceeded {
			ranked = rankTiered(items, rr.topN, rr.scores, s.cfg.Weights)
		} else {
			ranked = rankLocal(items, s.cfg.Weights.Local)
		}
	}

	return paginate(ranked, page, size), len(ranked), nil
}

func (s *Service) embedQuery(ctx context.Context, text string) ([]float32, error) {
	ectx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
	defer cancel()

	res, err := s.embed.Embed(ectx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: vectorize query: %w", domain.ErrEmbeddingProviderError, err)
	}
	domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)
	return res.Embedding, nil
}
