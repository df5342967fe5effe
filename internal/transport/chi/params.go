package chi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/oapi-codegen/runtime"

	"github.com/kailas-cloud/coursedex/internal/domain"
	"github.com/kailas-cloud/coursedex/internal/domain/course"
	"github.com/kailas-cloud/coursedex/internal/domain/search/filter"
)

// searchParams are the raw query parameters of GET /api/v1/courses/search.
type searchParams struct {
	Keyword        *string
	Page           *int
	Size           *int
	Semantic       *bool
	CategorySlug   *string
	CategorySlugs  *[]string
	CategorieSlugs *[]string // legacy spelling still sent by older clients
	InstructorID   *string
	Level          *string
	Language       *string
	MinPrice       *float64
	MaxPrice       *float64
	MinRating      *float64
	Status         *string
}

// bindSearchParams binds form-style query parameters. A malformed value
// yields an error naming the parameter.
func bindSearchParams(r *http.Request) (searchParams, error) {
	var p searchParams
	q := r.URL.Query()

	binds := []struct {
		name string
		dest any
	}{
		{"keyword", &p.Keyword},
		{"page", &p.Page},
		{"size", &p.Size},
		{"semantic", &p.Semantic},
		{"categorySlug", &p.CategorySlug},
		{"categorySlugs", &p.CategorySlugs},
		{"categorieSlugs", &p.CategorieSlugs},
		{"instructorId", &p.InstructorID},
		{"level", &p.Level},
		{"language", &p.Language},
		{"minPrice", &p.MinPrice},
		{"maxPrice", &p.MaxPrice},
		{"minRating", &p.MinRating},
		{"status", &p.Status},
	}
	for _, b := range binds {
		if err := runtime.BindQueryParameter("form", true, false, b.name, q, b.dest); err != nil {
			return searchParams{}, fmt.Errorf("invalid format for parameter %s: %w", b.name, err)
		}
	}
	return p, nil
}

// toFilter maps bound parameters onto a search filter. Slug lists accept both
// repeated parameters and comma-separated values.
func (p searchParams) toFilter() (filter.SearchFilter, error) {
	f := filter.SearchFilter{
		Keyword:      deref(p.Keyword),
		CategorySlug: strings.TrimSpace(deref(p.CategorySlug)),
		InstructorID: strings.TrimSpace(deref(p.InstructorID)),
		Language:     strings.TrimSpace(deref(p.Language)),
		MinPrice:     p.MinPrice,
		MaxPrice:     p.MaxPrice,
		MinRating:    p.MinRating,
		Status:       course.Status(strings.ToUpper(strings.TrimSpace(deref(p.Status)))),
		Semantic:     p.Semantic,
	}
	f.CategorySlugs = append(splitList(p.CategorySlugs), splitList(p.CategorieSlugs)...)

	level, err := course.ParseLevel(deref(p.Level))
	if err != nil {
		return filter.SearchFilter{}, domain.NewFilterError("level", err.Error())
	}
	f.Level = level
	return f, nil
}

func splitList(values *[]string) []string {
	if values == nil {
		return nil
	}
	var out []string
	for _, v := range *values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
