// Package chi exposes the course search engine over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/coursedex/internal/domain"
	"github.com/kailas-cloud/coursedex/internal/domain/search/filter"
	"github.com/kailas-cloud/coursedex/internal/domain/search/result"
	"github.com/kailas-cloud/coursedex/internal/logger"
	"github.com/kailas-cloud/coursedex/internal/metrics"
	healthuc "github.com/kailas-cloud/coursedex/internal/usecase/health"
)

// Pagination defaults.
const (
	DefaultPageSize = 9
	DefaultMaxSize  = 100
)

// Searcher is the consumer interface for the search engine (ISP).
type Searcher interface {
	Search(ctx context.Context, f filter.SearchFilter, page, size int) ([]result.Ranked, int, error)
}

// HealthChecker is the consumer interface for the health service (ISP).
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the search, health and metrics endpoints.
type Server struct {
	search          Searcher
	health          HealthChecker
	logger          *zap.Logger
	defaultPageSize int
	maxPageSize     int
	errorHandlers   []errorHandler
}

// Option configures a Server.
type Option func(*Server)

// WithPageSizes overrides the default and maximum page size.
func WithPageSizes(defaultSize, maxSize int) Option {
	return func(s *Server) {
		if defaultSize > 0 {
			s.defaultPageSize = defaultSize
		}
		if maxSize > 0 {
			s.maxPageSize = maxSize
		}
	}
}

// NewServer creates an HTTP API server. health may be nil.
func NewServer(search Searcher, health HealthChecker, log *zap.Logger, opts ...Option) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		search:          search,
		health:          health,
		logger:          log,
		defaultPageSize: DefaultPageSize,
		maxPageSize:     DefaultMaxSize,
	}
	for _, o := range opts {
		o(s)
	}
	s.errorHandlers = []errorHandler{
		filterErrorHandler,
		sentinelHandler(domain.ErrInvalidFilter, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, ErrorCodeEmbeddingProvider),
		sentinelHandler(domain.ErrCandidateStore, http.StatusBadGateway, ErrorCodeCandidateStore),
	}
	return s
}

// Routes mounts the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/api/v1/courses/search", s.SearchCourses)
	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
}

// SearchCourses handles GET /api/v1/courses/search.
func (s *Server) SearchCourses(w http.ResponseWriter, r *http.Request) {
	params, err := bindSearchParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		return
	}

	page := deref(params.Page)
	if page < 0 {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "page must not be negative")
		return
	}
	size := s.defaultPageSize
	if params.Size != nil {
		size = *params.Size
	}
	if size <= 0 {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "size must be positive")
		return
	}
	if size > s.maxPageSize {
		size = s.maxPageSize
	}

	f, err := params.toFilter()
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	items, total, err := s.search.Search(ctx, f, page, size)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, Envelope[CoursePage]{
		Success: true,
		Data:    coursePageFrom(result.Page{Items: items, Total: total, Page: page, Size: size}),
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: string(healthuc.Healthy), Checks: map[string]string{}})
		return
	}
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Success: false,
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidFilter,
		domain.ErrEmbeddingProviderError,
		domain.ErrCandidateStore,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// filterErrorHandler reports the offending field of a rejected filter.
func filterErrorHandler(w http.ResponseWriter, err error, _ string) bool {
	var fe *domain.FilterError
	if !errors.As(err, &fe) {
		return false
	}
	writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, fe.Error())
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternal, "internal error")
}
