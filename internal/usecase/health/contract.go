package health

import "context"

// DBPinger checks candidate store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// RerankChecker reports whether the reranker can serve.
type RerankChecker interface {
	IsAvailable() bool
}
