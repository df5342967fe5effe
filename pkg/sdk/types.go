package coursedex

// Course levels accepted by Query.Level.
const (
	LevelBeginner     = "BEGINNER"
	LevelIntermediate = "INTERMEDIATE"
	LevelAdvanced     = "ADVANCED"
)

// Category merge modes for WithCategoryMerge.
const (
	MergeIntersect = "intersect"
	MergeUnion     = "union"
)

// Query is one search request. Zero values mean "no constraint".
type Query struct {
	Keyword       string
	CategorySlug  string
	CategorySlugs []string
	Level         string
	Language      string
	MinPrice      *float64
	MaxPrice      *float64
	MinRating     *float64
	InstructorID  string

	// Semantic overrides the client's rerank default when non-nil.
	Semantic *bool

	// Page is zero-based. Size defaults to 9.
	Page int
	Size int
}

// Course is a single ranked hit.
type Course struct {
	ID             string
	Slug           string
	Image          string
	Name           string
	Description    string
	CategoryName   string
	InstructorName string
	Level          string
	Language       string
	Price          *float64
	Rating         float64
	TotalRating    int64
	TotalStudent   int64
	TotalSection   int64
	TotalLesson    int64
	Score          float64
}

// Page is one page of ranked courses. Total counts the whole candidate pool.
type Page struct {
	Items []Course
	Total int
	Page  int
	Size  int
}

// HasNext reports whether a page after this one holds items.
func (p Page) HasNext() bool {
	return (p.Page+1)*p.Size < p.Total
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            // "ok", "degraded", "error"
	Checks map[string]string // component -> "ok", "error", "unavailable", "disabled"
}
