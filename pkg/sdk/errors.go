package coursedex

import "github.com/kailas-cloud/coursedex/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidFilter          = domain.ErrInvalidFilter
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrCandidateStore         = domain.ErrCandidateStore
	ErrRerankerUnavailable    = domain.ErrRerankerUnavailable
)
