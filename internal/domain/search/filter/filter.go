package filter

import (
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/kailas-cloud/coursedex/internal/domain"
	"github.com/kailas-cloud/coursedex/internal/domain/course"
)

// Search filter limits.
const (
	// MaxCategorySlugs is the maximum number of category slugs in one request.
	MaxCategorySlugs = 10
	// MaxKeywordLength is the maximum allowed keyword length in bytes.
	MaxKeywordLength = 1024
	// MaxRating is the upper bound of the rating scale.
	MaxRating = 5.0
)

// SearchFilter is the structured search request as received from callers.
type SearchFilter struct {
	Keyword       string
	CategorySlug  string
	CategorySlugs []string
	Level         course.Level
	Language      string
	MinPrice      *float64
	MaxPrice      *float64
	MinRating     *float64
	InstructorID  string

	// Status is accepted for wire compatibility and ignored: only published
	// courses are ever searchable.
	Status course.Status

	// Semantic overrides the configured rerank default when non-nil.
	Semantic *bool
}

// Validate rejects malformed filter combinations.
func (f *SearchFilter) Validate() error {
	if len(f.Keyword) > MaxKeywordLength {
		return domain.NewFilterError("keyword", "too long")
	}
	if n := len(cleanSlugs(f.CategorySlugs)); n > MaxCategorySlugs {
		return domain.NewFilterError("category_slugs", "maximum of 10 categories allowed")
	}
	if f.Level != "" && !f.Level.IsValid() {
		return domain.NewFilterError("level", "unknown level "+string(f.Level))
	}
	for _, b := range []struct {
		field string
		v     *float64
	}{{"min_price", f.MinPrice}, {"max_price", f.MaxPrice}, {"min_rating", f.MinRating}} {
		if b.v != nil && (math.IsNaN(*b.v) || math.IsInf(*b.v, 0)) {
			return domain.NewFilterError(b.field, "must be a finite number")
		}
	}
	if f.MinPrice != nil && *f.MinPrice < 0 {
		return domain.NewFilterError("min_price", "must not be negative")
	}
	if f.MaxPrice != nil && *f.MaxPrice < 0 {
		return domain.NewFilterError("max_price", "must not be negative")
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return domain.NewFilterError("min_price", "must not exceed max_price")
	}
	if f.MinRating != nil && (*f.MinRating < 0 || *f.MinRating > MaxRating) {
		return domain.NewFilterError("min_rating", "must be between 0 and 5")
	}
	if id := strings.TrimSpace(f.InstructorID); id != "" {
		if _, err := uuid.Parse(id); err != nil {
			return domain.NewFilterError("instructor_id", "must be a UUID")
		}
	}
	return nil
}

// NormalizedKeyword returns the keyword lower-cased and trimmed.
func (f *SearchFilter) NormalizedKeyword() string {
	return strings.ToLower(strings.TrimSpace(f.Keyword))
}

// cleanSlugs trims, drops empties and de-duplicates while keeping input order.
func cleanSlugs(slugs []string) []string {
	if len(slugs) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(slugs))
	out := make([]string, 0, len(slugs))
	for _, s := range slugs {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
