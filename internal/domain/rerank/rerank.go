// Package rerank defines the cross-encoder reranking contract.
package rerank

import "context"

// ScoredDocument is one reranker verdict. Index is the offset into the
// document list sent to the reranker, not into any larger candidate list.
type ScoredDocument struct {
	Index int
	Text  string
	Score float64
}

// Reranker scores query-document pairs with a cross-encoder.
// Implementations are chosen at construction time by configuration.
type Reranker interface {
	// IsAvailable reports whether the reranker is configured and able to serve.
	IsAvailable() bool
	// BatchRerank scores docs against query. Results may arrive in any order;
	// an error or an empty result means the caller must fall back.
	BatchRerank(ctx context.Context, query string, docs []string) ([]ScoredDocument, error)
}
