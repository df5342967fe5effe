// Package health aggregates component checks for the /health endpoint.
package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates search still works with reduced quality or scope.
	Degraded Status = "degraded"
	// Unhealthy indicates search cannot be served.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
	// CheckUnavailable marks a configured reranker that cannot serve.
	CheckUnavailable CheckResult = "unavailable"
	// CheckDisabled marks a component turned off by configuration.
	CheckDisabled CheckResult = "disabled"
)

// Component names used as report keys.
const (
	ComponentDatabase  = "database"
	ComponentEmbedding = "embedding"
	ComponentReranker  = "reranker"
)

// DefaultCheckTimeout bounds each component probe.
const DefaultCheckTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db        DBPinger
	embedding EmbeddingChecker
	reranker  RerankChecker
	timeout   time.Duration
}

// New creates a Service. embedding and reranker can be nil.
func New(db DBPinger, embedding EmbeddingChecker, reranker RerankChecker) *Service {
	return &Service{db: db, embedding: embedding, reranker: reranker, timeout: DefaultCheckTimeout}
}

// Check probes the store and the embedding provider concurrently.
// A store failure is fatal; an embedding failure only degrades (quality-only
// listing still works). The reranker never affects the status.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		checks = make(map[string]CheckResult, 3)
	)
	set := func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			checks[name] = CheckError
			return
		}
		checks[name] = CheckOK
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(gctx, s.timeout)
		defer cancel()
		set(ComponentDatabase, s.db.Ping(cctx))
		return nil
	})
	if s.embedding != nil {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, s.timeout)
			defer cancel()
			set(ComponentEmbedding, s.embedding.HealthCheck(cctx))
			return nil
		})
	}
	_ = g.Wait()

	switch {
	case s.reranker == nil:
		checks[ComponentReranker] = CheckDisabled
	case s.reranker.IsAvailable():
		checks[ComponentReranker] = CheckOK
	default:
		checks[ComponentReranker] = CheckUnavailable
	}

	status := Healthy
	if checks[ComponentEmbedding] == CheckError {
		status = Degraded
	}
	if checks[ComponentDatabase] == CheckError {
		status = Unhealthy
	}
	return Report{Status: status, Checks: checks}
}
