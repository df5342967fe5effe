package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFilter signals a malformed search filter rejected before reaching the store.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrCandidateStore signals a candidate store failure.
	ErrCandidateStore = errors.New("candidate store error")
	// ErrRerankerUnavailable signals that the reranker cannot serve requests.
	ErrRerankerUnavailable = errors.New("reranker unavailable")
	// ErrRerankerError signals a reranker transport or protocol failure.
	ErrRerankerError = errors.New("reranker error")
)

// FilterError wraps ErrInvalidFilter with the offending field.
type FilterError struct {
	Field  string
	Reason string
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidFilter.Error(), e.Field, e.Reason)
}

func (e *FilterError) Unwrap() error { return ErrInvalidFilter }

// NewFilterError creates a filter validation error for a field.
func NewFilterError(field, reason string) error {
	return &FilterError{Field: field, Reason: reason}
}
