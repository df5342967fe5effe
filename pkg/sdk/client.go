package coursedex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/coursedex/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/coursedex/internal/db/redis"
	"github.com/kailas-cloud/coursedex/internal/domain"
	"github.com/kailas-cloud/coursedex/internal/domain/course"
	domrerank "github.com/kailas-cloud/coursedex/internal/domain/rerank"
	"github.com/kailas-cloud/coursedex/internal/domain/search/filter"
	"github.com/kailas-cloud/coursedex/internal/domain/search/result"
	"github.com/kailas-cloud/coursedex/internal/repository/candidate"
	"github.com/kailas-cloud/coursedex/internal/repository/embcache"
	"github.com/kailas-cloud/coursedex/internal/transport/jina"
	openaiEmb "github.com/kailas-cloud/coursedex/internal/transport/openai"
	"github.com/kailas-cloud/coursedex/internal/transport/tei"
	embeddinguc "github.com/kailas-cloud/coursedex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/coursedex/internal/usecase/health"
	rerankuc "github.com/kailas-cloud/coursedex/internal/usecase/rerank"
	searchuc "github.com/kailas-cloud/coursedex/internal/usecase/search"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultPageSize         = 9
	defaultKeyPrefix        = "coursedex:"
	defaultRerankTimeout    = 5 * time.Second
)

type searchUseCase interface {
	Search(ctx context.Context, f filter.SearchFilter, page, size int) ([]result.Ranked, int, error)
}

// backend is an opened candidate store.
type backend struct {
	source searchuc.CandidateSource
	pinger healthuc.DBPinger
	close  func()
}

// Client is the coursedex SDK entry point.
type Client struct {
	closeFn   func()
	pinger    healthuc.DBPinger
	searchSvc searchUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New creates a Client and connects to the candidate store.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.driver == "" {
		return nil, errors.New("coursedex: candidate store required (use WithPostgres, WithValkey or WithRedis)")
	}
	if cfg.embedder == nil && strings.TrimSpace(cfg.openaiKey) == "" {
		return nil, errors.New("coursedex: embedder required (use WithEmbedder or WithOpenAI)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	be, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	c, err := wireClient(be, cfg, obs)
	if err != nil {
		be.close()
		return nil, err
	}
	return c, nil
}

func openBackend(ctx context.Context, cfg *clientConfig) (*backend, error) {
	switch cfg.driver {
	case "postgres":
		maxConns := cfg.maxConns
		if maxConns <= 0 {
			maxConns = 10
		}
		pg, err := postgres.New(ctx, cfg.dsn, maxConns)
		if err != nil {
			return nil, fmt.Errorf("coursedex: create postgres pool: %w", err)
		}
		if err := pg.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			pg.Close()
			return nil, fmt.Errorf("coursedex: database not ready: %w", err)
		}
		return &backend{source: candidate.NewPostgresSource(pg.Pool), pinger: pg, close: pg.Close}, nil
	case "valkey", "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:      cfg.addrs,
			Password:   cfg.password,
			Standalone: cfg.standalone,
		})
		if err != nil {
			return nil, fmt.Errorf("coursedex: create %s store: %w", cfg.driver, err)
		}
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, fmt.Errorf("coursedex: database not ready: %w", err)
		}
		prefix := cfg.keyPrefix
		if prefix == "" {
			prefix = defaultKeyPrefix
		}
		index := cfg.indexName
		if index == "" {
			index = prefix + "idx:courses"
		}
		field := cfg.vectorField
		if field == "" {
			field = "embedding"
		}
		return &backend{
			source: candidate.NewRedisSource(s, index, prefix+"course:", field),
			pinger: s,
			close:  s.Close,
		}, nil
	default:
		return nil, fmt.Errorf("coursedex: unknown driver %q", cfg.driver)
	}
}

func wireClient(be *backend, cfg *clientConfig, obs *observer) (*Client, error) {
	log := zap.NewNop()

	var inner domain.Embedder
	if cfg.embedder != nil {
		inner = &embedderAdapter{inner: cfg.embedder}
	} else {
		model := cfg.openaiModel
		if model == "" {
			model = openaiEmb.DefaultModel
		}
		base := openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.openaiKey,
			BaseURL:    cfg.openaiBaseURL,
			Model:      model,
			Dimensions: cfg.dimensions,
			Provider:   "openai",
			Logger:     log,
		})
		inner = embeddinguc.NewInstrumentedEmbedder(base, "openai", model, cfg.dimensions, log)
	}
	embedder, err := embcache.NewLRU(inner, cfg.cacheSize, nil)
	if err != nil {
		return nil, fmt.Errorf("coursedex: %w", err)
	}

	var (
		searchReranker searchuc.Reranker
		rerankChecker  healthuc.RerankChecker
	)
	rr, err := buildReranker(cfg, log)
	if err != nil {
		return nil, err
	}
	if rr != nil {
		searchReranker = rr
		rerankChecker = rr
	}

	mode := searchuc.NormalizePreserve
	if cfg.fold {
		mode = searchuc.NormalizeFold
	}
	svc, err := searchuc.New(be.source, embedder, searchReranker, searchuc.Config{
		CandidateLimit: cfg.candidateLimit,
		RerankEnabled:  cfg.rerankDefault,
		CategoryMerge:  filter.CategoryMerge(cfg.categoryMerge),
		Normalization:  mode,
	})
	if err != nil {
		return nil, fmt.Errorf("coursedex: %w", err)
	}

	return &Client{
		closeFn:   be.close,
		pinger:    be.pinger,
		searchSvc: svc,
		healthSvc: healthuc.New(be.pinger, embedder, rerankChecker),
		obs:       obs,
	}, nil
}

func buildReranker(cfg *clientConfig, log *zap.Logger) (*rerankuc.CachedReranker, error) {
	client := &http.Client{Timeout: defaultRerankTimeout}

	var inner domrerank.Reranker
	switch cfg.rerankProvider {
	case "":
		return nil, nil
	case "jina":
		inner = jina.NewReranker(&jina.Config{
			APIKey:     cfg.rerankKey,
			Model:      cfg.rerankModel,
			HTTPClient: client,
			Logger:     log,
		})
	case "tei":
		inner = tei.NewReranker(&tei.Config{
			BaseURL:    cfg.rerankBaseURL,
			BatchSize:  cfg.rerankBatch,
			HTTPClient: client,
			Logger:     log,
		})
	default:
		return nil, fmt.Errorf("coursedex: unknown rerank provider %q", cfg.rerankProvider)
	}

	cached, err := rerankuc.NewCached(inner, 0, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("coursedex: %w", err)
	}
	return cached, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.pinger.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Search returns one page of ranked courses.
func (c *Client) Search(ctx context.Context, q Query) (page Page, err error) {
	start := time.Now()
	defer func() {
		c.obs.observe("search", start, err,
			slog.Int("page", q.Page),
			slog.Int("total", page.Total),
		)
	}()

	f, err := q.toFilter()
	if err != nil {
		return Page{}, err
	}
	if q.Page < 0 {
		return Page{}, domain.NewFilterError("page", "must not be negative")
	}
	size := q.Size
	if size <= 0 {
		size = defaultPageSize
	}

	items, total, err := c.searchSvc.Search(ctx, f, q.Page, size)
	if err != nil {
		return Page{}, fmt.Errorf("search: %w", err)
	}

	c.obs.observePool(total)

	out := make([]Course, len(items))
	for i := range items {
		out[i] = courseFromRanked(&items[i])
	}
	return Page{Items: out, Total: total, Page: q.Page, Size: size}, nil
}

func (q *Query) toFilter() (filter.SearchFilter, error) {
	level, err := course.ParseLevel(q.Level)
	if err != nil {
		return filter.SearchFilter{}, domain.NewFilterError("level", err.Error())
	}
	return filter.SearchFilter{
		Keyword:       q.Keyword,
		CategorySlug:  q.CategorySlug,
		CategorySlugs: q.CategorySlugs,
		Level:         level,
		Language:      q.Language,
		MinPrice:      q.MinPrice,
		MaxPrice:      q.MaxPrice,
		MinRating:     q.MinRating,
		InstructorID:  q.InstructorID,
		Semantic:      q.Semantic,
	}, nil
}

func courseFromRanked(r *result.Ranked) Course {
	c := Course{
		ID:             r.ID,
		Slug:           r.Slug,
		Image:          r.Image,
		Name:           r.Name,
		Description:    r.Description,
		CategoryName:   r.CategoryName,
		InstructorName: r.InstructorName,
		Level:          string(r.Level),
		Language:       r.Language,
		Rating:         r.Rating,
		TotalRating:    r.TotalRating,
		TotalStudent:   r.TotalStudent,
		TotalSection:   r.TotalSection,
		TotalLesson:    r.TotalLesson,
		Score:          r.RelevanceScore,
	}
	if r.HasPrice {
		price := r.Price
		c.Price = &price
	}
	return c
}
