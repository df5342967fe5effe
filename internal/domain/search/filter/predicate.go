package filter

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/kailas-cloud/coursedex/internal/domain"
	"github.com/kailas-cloud/coursedex/internal/domain/course"
)

// Field identifies a filterable course attribute.
type Field string

// Filterable fields.
const (
	FieldStatus       Field = "status"
	FieldCategorySlug Field = "category_slug"
	FieldLevel        Field = "level"
	FieldLanguage     Field = "language"
	FieldPrice        Field = "price"
	FieldRating       Field = "rating"
	FieldInstructorID Field = "instructor_id"
)

// Op is a comparison operator.
type Op string

// Supported operators.
const (
	OpEq  Op = "eq"
	OpIn  Op = "in"
	OpGte Op = "gte"
	OpLte Op = "lte"
)

// Parameter names used in Predicate.Params.
const (
	ParamStatus        = "status"
	ParamCategorySlugs = "categorySlugs"
	ParamLevel         = "level"
	ParamLanguage      = "language"
	ParamMinPrice      = "minPrice"
	ParamMaxPrice      = "maxPrice"
	ParamMinRating     = "minRating"
	ParamInstructorID  = "instructorId"
)

// CategoryMerge decides how a single category slug combines with a slug list.
type CategoryMerge string

const (
	// MergeIntersect keeps only slugs present in both (AND semantics).
	MergeIntersect CategoryMerge = "intersect"
	// MergeUnion accepts a course in any of the supplied categories.
	MergeUnion CategoryMerge = "union"
)

// IsValid checks if the merge mode is supported.
func (m CategoryMerge) IsValid() bool {
	return m == MergeIntersect || m == MergeUnion
}

// Clause is one conjunct of a compiled predicate. Its value lives in
// Predicate.Params under Param.
type Clause struct {
	Field Field
	Op    Op
	Param string
}

// Predicate is a store-agnostic conjunction of clauses plus their parameters.
type Predicate struct {
	clauses     []Clause
	params      map[string]any
	alwaysFalse bool
}

// Clauses returns the conjuncts in compilation order.
func (p Predicate) Clauses() []Clause { return p.clauses }

// Params returns the parameter map keyed by Clause.Param.
func (p Predicate) Params() map[string]any { return p.params }

// AlwaysFalse reports whether no course can ever match.
func (p Predicate) AlwaysFalse() bool { return p.alwaysFalse }

// String returns a debug representation.
func (p Predicate) String() string {
	if p.alwaysFalse {
		return "FALSE"
	}
	parts := make([]string, 0, len(p.clauses))
	for _, c := range p.clauses {
		parts = append(parts, fmt.Sprintf("%s %s %v", c.Field, c.Op, p.params[c.Param]))
	}
	return strings.Join(parts, " AND ")
}

// CompileOptions tune compilation.
type CompileOptions struct {
	CategoryMerge CategoryMerge
}

// Compile validates f and translates it into a Predicate. The published-status
// clause is always present and cannot be overridden.
func Compile(f SearchFilter, opts CompileOptions) (Predicate, error) {
	if err := f.Validate(); err != nil {
		return Predicate{}, err
	}
	if opts.CategoryMerge == "" {
		opts.CategoryMerge = MergeIntersect
	}

	p := Predicate{params: make(map[string]any)}
	p.add(FieldStatus, OpEq, ParamStatus, string(course.StatusPublished))

	slugs, ok := mergeCategories(f.CategorySlug, cleanSlugs(f.CategorySlugs), opts.CategoryMerge)
	if !ok {
		p.alwaysFalse = true
	}
	if len(slugs) > MaxCategorySlugs {
		return Predicate{}, domain.NewFilterError("category_slugs", "maximum of 10 categories allowed")
	}
	if len(slugs) > 0 {
		p.add(FieldCategorySlug, OpIn, ParamCategorySlugs, slugs)
	}
	if f.Level != "" {
		p.add(FieldLevel, OpEq, ParamLevel, string(f.Level))
	}
	if lang := strings.TrimSpace(f.Language); lang != "" {
		p.add(FieldLanguage, OpEq, ParamLanguage, lang)
	}
	if f.MinPrice != nil {
		p.add(FieldPrice, OpGte, ParamMinPrice, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		p.add(FieldPrice, OpLte, ParamMaxPrice, *f.MaxPrice)
	}
	if f.MinRating != nil {
		p.add(FieldRating, OpGte, ParamMinRating, *f.MinRating)
	}
	if id := strings.TrimSpace(f.InstructorID); id != "" {
		// Validate already guaranteed a parseable UUID.
		p.add(FieldInstructorID, OpEq, ParamInstructorID, uuid.MustParse(id).String())
	}
	return p, nil
}

func (p *Predicate) add(field Field, op Op, param string, value any) {
	p.clauses = append(p.clauses, Clause{Field: field, Op: op, Param: param})
	p.params[param] = value
}

// mergeCategories folds the single slug and the slug list into one accepted set.
// ok=false means the intersection is empty and nothing can match.
func mergeCategories(single string, multi []string, mode CategoryMerge) ([]string, bool) {
	single = strings.TrimSpace(single)
	switch {
	case single == "" && len(multi) == 0:
		return nil, true
	case single == "":
		return multi, true
	case len(multi) == 0:
		return []string{single}, true
	}

	if mode == MergeUnion {
		if slices.Contains(multi, single) {
			return multi, true
		}
		return append([]string{single}, multi...), true
	}

	if slices.Contains(multi, single) {
		return []string{single}, true
	}
	return nil, false
}
