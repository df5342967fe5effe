package db

import "github.com/kailas-cloud/coursedex/internal/domain/search/filter"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Filter       filter.Predicate
	Vector       []float32
	VectorField  string
	Offset       int
	Limit        int
	ReturnFields []string
}

// ListQuery is the input for a filtered search without a vector.
type ListQuery struct {
	IndexName    string
	Filter       filter.Predicate
	SortBy       string
	SortDesc     bool
	Offset       int
	Limit        int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
// For KNN queries Score holds the raw cosine distance.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
