package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/coursedex/internal/config"
	"github.com/kailas-cloud/coursedex/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/coursedex/internal/db/redis"
	"github.com/kailas-cloud/coursedex/internal/domain"
	domrerank "github.com/kailas-cloud/coursedex/internal/domain/rerank"
	"github.com/kailas-cloud/coursedex/internal/domain/search/filter"
	logpkg "github.com/kailas-cloud/coursedex/internal/logger"
	"github.com/kailas-cloud/coursedex/internal/metrics"
	"github.com/kailas-cloud/coursedex/internal/repository/candidate"
	"github.com/kailas-cloud/coursedex/internal/repository/embcache"
	chiTransport "github.com/kailas-cloud/coursedex/internal/transport/chi"
	"github.com/kailas-cloud/coursedex/internal/transport/jina"
	openaiEmb "github.com/kailas-cloud/coursedex/internal/transport/openai"
	"github.com/kailas-cloud/coursedex/internal/transport/tei"
	embeddinguc "github.com/kailas-cloud/coursedex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/coursedex/internal/usecase/health"
	rerankuc "github.com/kailas-cloud/coursedex/internal/usecase/rerank"
	searchuc "github.com/kailas-cloud/coursedex/internal/usecase/search"
	"github.com/kailas-cloud/coursedex/internal/version"
)

// sharedCache is the key-value surface used by the shared embedding tier.
type sharedCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// candidateStore is what the composition root needs from either backend.
type candidateStore struct {
	source searchuc.CandidateSource
	pinger healthuc.DBPinger
	kv     sharedCache
	close  func()
}

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting coursedex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Bool("rerank_enabled", cfg.Rerank.Enabled),
		zap.String("rerank_provider", cfg.Rerank.Provider),
	)

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()
	metrics.RegisterHTTPMetrics()

	ctx := context.Background()
	store, err := openStore(ctx, &cfg)
	if err != nil {
		logger.Fatal("Failed to open candidate store", zap.Error(err))
	}
	defer store.close()
	logger.Info("Connected to database")

	embedder, err := buildEmbedder(&cfg, store.kv, logger)
	if err != nil {
		logger.Fatal("Failed to build embedder", zap.Error(err))
	}

	reranker, err := buildReranker(&cfg.Rerank, logger)
	if err != nil {
		logger.Fatal("Failed to build reranker", zap.Error(err))
	}

	// Pass nil interfaces, not a typed nil *CachedReranker, when no reranker is configured.
	var (
		searchReranker searchuc.Reranker
		rerankChecker  healthuc.RerankChecker
	)
	if reranker != nil {
		searchReranker = reranker
		rerankChecker = reranker
	}

	searchSvc, err := searchuc.New(store.source, embedder, searchReranker, searchConfig(&cfg))
	if err != nil {
		logger.Fatal("Failed to build search service", zap.Error(err))
	}
	healthSvc := healthuc.New(store.pinger, embedder, rerankChecker)

	server := chiTransport.NewServer(searchSvc, healthSvc, logger,
		chiTransport.WithPageSizes(cfg.Search.DefaultPageSize, cfg.Search.MaxPageSize),
	)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// openStore connects the configured backend and waits until it answers.
func openStore(ctx context.Context, cfg *config.Config) (*candidateStore, error) {
	readiness := time.Duration(cfg.Database.ReadinessTimeout) * time.Second

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pg, err := postgres.New(ctx, cfg.Database.DSN, cfg.Database.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("create postgres pool: %w", err)
		}
		if err := pg.WaitForReady(ctx, readiness); err != nil {
			pg.Close()
			return nil, fmt.Errorf("postgres not ready: %w", err)
		}
		return &candidateStore{
			source: candidate.NewPostgresSource(pg.Pool),
			pinger: pg,
			close:  pg.Close,
		}, nil
	case config.DriverValkey, config.DriverRedis:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:      cfg.Database.Addrs,
			Password:   cfg.Database.Password,
			Standalone: cfg.Database.Standalone,
		})
		if err != nil {
			return nil, fmt.Errorf("create %s store: %w", cfg.Database.Driver, err)
		}
		if err := s.WaitForReady(ctx, readiness); err != nil {
			s.Close()
			return nil, fmt.Errorf("%s not ready: %w", cfg.Database.Driver, err)
		}
		return &candidateStore{
			source: candidate.NewRedisSource(
				s, cfg.Database.IndexName, cfg.Storage.KeyPrefix+"course:", cfg.Database.VectorField,
			),
			pinger: s,
			kv:     s,
			close:  s.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// buildEmbedder assembles the decorator chain:
// OpenAI -> Instruction (optional) -> Instrumented -> Shared (optional) -> LRU (outermost).
// Cache keys are the raw query; the instruction is fixed per deployment.
func buildEmbedder(cfg *config.Config, kv sharedCache, logger *zap.Logger) (*embcache.LRUEmbedder, error) {
	ec := cfg.Embedding

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     ec.APIKey,
		BaseURL:    ec.BaseURL,
		Model:      ec.Model,
		Dimensions: ec.Dimensions,
		Provider:   ec.Provider,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if ec.QueryInstruction != "" {
		embedder = domain.NewInstructionEmbedder(embedder, ec.QueryInstruction)
	}
	embedder = embeddinguc.NewInstrumentedEmbedder(
		embedder, ec.Provider, ec.Model, ec.Dimensions, logger,
	)

	if kv != nil && ec.SharedCacheTTLSec > 0 {
		embedder = embcache.NewShared(
			embedder, kv,
			cfg.Storage.KeyPrefix+ec.Model+":",
			time.Duration(ec.SharedCacheTTLSec)*time.Second,
			metrics.EmbeddingCacheTotal, logger,
		)
	}

	lru, err := embcache.NewLRU(embedder, ec.CacheSize, metrics.EmbeddingCacheTotal)
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}

	logger.Info("Embedder created",
		zap.String("provider", ec.Provider),
		zap.String("model", ec.Model),
		zap.Int("dimensions", ec.Dimensions),
		zap.Int("cache_size", ec.CacheSize),
		zap.Bool("shared_cache", kv != nil && ec.SharedCacheTTLSec > 0),
	)
	return lru, nil
}

// buildReranker returns nil when the provider has no credentials or endpoint.
// rerank.enabled only sets the per-request default, so a configured provider
// is still built when it is off and can be requested with semantic=true.
func buildReranker(rc *config.RerankConfig, logger *zap.Logger) (*rerankuc.CachedReranker, error) {
	client := &http.Client{Timeout: time.Duration(rc.TimeoutMS) * time.Millisecond}

	var inner domrerank.Reranker
	switch rc.Provider {
	case config.RerankProviderJina:
		if strings.TrimSpace(rc.APIKey) == "" {
			logger.Info("Reranker not configured", zap.String("provider", rc.Provider))
			return nil, nil
		}
		inner = jina.NewReranker(&jina.Config{
			APIKey:     rc.APIKey,
			BaseURL:    rc.BaseURL,
			Model:      rc.Model,
			HTTPClient: client,
			Logger:     logger,
		})
	case config.RerankProviderTEI:
		if rc.BaseURL == "" {
			logger.Info("Reranker not configured", zap.String("provider", rc.Provider))
			return nil, nil
		}
		inner = tei.NewReranker(&tei.Config{
			BaseURL:    rc.BaseURL,
			BatchSize:  rc.BatchSize,
			HTTPClient: client,
			Logger:     logger,
		})
	default:
		return nil, fmt.Errorf("unknown rerank provider %q", rc.Provider)
	}

	cached, err := rerankuc.NewCached(
		inner, rc.CacheSize, time.Duration(rc.CacheTTLSec)*time.Second, metrics.RerankCacheTotal,
	)
	if err != nil {
		return nil, fmt.Errorf("rerank cache: %w", err)
	}

	logger.Info("Reranker created",
		zap.String("provider", rc.Provider),
		zap.Int("top_k", rc.TopK),
		zap.Int("cache_size", rc.CacheSize),
	)
	return cached, nil
}

// searchConfig maps file configuration onto the search pipeline settings.
func searchConfig(cfg *config.Config) searchuc.Config {
	sc := searchuc.Config{
		CandidateLimit: cfg.Search.CandidateLimit,
		RerankEnabled:  cfg.Rerank.Enabled,
		RerankTopK:     cfg.Rerank.TopK,
		RerankTimeout:  time.Duration(cfg.Rerank.TimeoutMS) * time.Millisecond,
		EmbedTimeout:   time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		StoreTimeout:   time.Duration(cfg.Search.StoreTimeoutMS) * time.Millisecond,
		CategoryMerge:  filter.CategoryMerge(cfg.Search.CategoryMerge),
		Normalization:  searchuc.NormalizationMode(cfg.Search.Normalization),
	}
	if w := cfg.Search.Weights; w != nil {
		sc.Weights = searchuc.RankWeights{
			Local: blend(w.Local),
			Rest:  blend(w.Rest),
			Top:   blend(w.Top),
		}
	}
	if q := cfg.Search.Quality; q != nil {
		sc.QualityWeights = searchuc.QualityWeights{Rating: q.Rating, Popularity: q.Popularity}
	}
	return sc
}

func blend(b config.BlendConfig) searchuc.Weights {
	return searchuc.Weights{Rerank: b.Rerank, Vector: b.Vector, Lexical: b.Lexical, Quality: b.Quality}
}

// jsonRecoverer turns a panic into a JSON 500 instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.String("path", r.URL.Path),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Success: false,
						Code:    chiTransport.ErrorCodeInternal,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits one canonical log line per request and
// propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
