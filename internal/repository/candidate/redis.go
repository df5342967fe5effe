package candidate

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/coursedex/internal/db"
	"github.com/kailas-cloud/coursedex/internal/domain/course"
	"github.com/kailas-cloud/coursedex/internal/domain/search/filter"
)

// searcher is the consumer interface for FT search operations (ISP).
type searcher interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
}

// RedisSource fetches candidates from a Redis/Valkey FT index over course hashes.
type RedisSource struct {
	store       searcher
	indexName   string
	keyPrefix   string
	vectorField string
}

// NewRedisSource creates a candidate source. keyPrefix is the course hash key
// prefix (e.g. "coursedex:course:"), stripped to recover ids when the hash
// has no id field.
func NewRedisSource(s searcher, indexName, keyPrefix, vectorField string) *RedisSource {
	return &RedisSource{
		store:       s,
		indexName:   indexName,
		keyPrefix:   keyPrefix,
		vectorField: vectorField,
	}
}

// Fetch returns up to limit candidates. With a vector they are ordered by
// ascending cosine distance; without one by quality.
func (r *RedisSource) Fetch(
	ctx context.Context, pred filter.Predicate, vector []float32, limit, offset int,
) ([]course.Candidate, error) {
	if pred.AlwaysFalse() || limit <= 0 {
		return []course.Candidate{}, nil
	}

	if len(vector) == 0 {
		sr, err := r.store.SearchList(ctx, &db.ListQuery{
			IndexName:    r.indexName,
			Filter:       pred,
			SortBy:       fieldRating,
			SortDesc:     true,
			Offset:       offset,
			Limit:        limit,
			ReturnFields: returnFields,
		})
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", r.indexName, err)
		}
		cands := r.toCandidates(sr, false)
		sortByQuality(cands)
		return cands, nil
	}

	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName,
		Filter:       pred,
		Vector:       vector,
		VectorField:  r.vectorField,
		Offset:       offset,
		Limit:        limit,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("search knn %s: %w", r.indexName, err)
	}
	cands := r.toCandidates(sr, true)
	sortByDistance(cands)
	return cands, nil
}

func (r *RedisSource) toCandidates(sr *db.SearchResult, withDistance bool) []course.Candidate {
	if sr == nil || len(sr.Entries) == 0 {
		return []course.Candidate{}
	}
	out := make([]course.Candidate, 0, len(sr.Entries))
	seen := make(map[string]struct{}, len(sr.Entries))
	for _, e := range sr.Entries {
		var dist float64
		if withDistance {
			dist = e.Score
		}
		c := fromFields(strings.TrimPrefix(e.Key, r.keyPrefix), e.Fields, dist)
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}
