package search

import (
	"context"

	"github.com/kailas-cloud/coursedex/internal/domain"
	"github.com/kailas-cloud/coursedex/internal/domain/course"
	"github.com/kailas-cloud/coursedex/internal/domain/rerank"
	"github.com/kailas-cloud/coursedex/internal/domain/search/filter"
)

// CandidateSource returns filtered nearest-neighbor candidates.
// Results are ordered by ascending distance. A nil vector yields the
// filtered candidates in a deterministic quality order.
type CandidateSource interface {
	Fetch(
		ctx context.Context, pred filter.Predicate,
		vector []float32, limit, offset int,
	) ([]course.Candidate, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Reranker scores query/document pairs with a cross-encoder.
type Reranker interface {
	IsAvailable() bool
	BatchRerank(ctx context.Context, query string, docs []string) ([]rerank.ScoredDocument, error)
}
