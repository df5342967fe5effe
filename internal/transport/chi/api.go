package chi

import (
	"github.com/kailas-cloud/coursedex/internal/domain/course"
	"github.com/kailas-cloud/coursedex/internal/domain/search/result"
)

// ErrorCode is a stable machine-readable error identifier.
type ErrorCode string

// Error codes returned by the API.
const (
	ErrorCodeBadRequest        ErrorCode = "bad_request"
	ErrorCodeValidationFailed  ErrorCode = "validation_failed"
	ErrorCodeUnauthorized      ErrorCode = "unauthorized"
	ErrorCodeEmbeddingProvider ErrorCode = "embedding_provider_error"
	ErrorCodeCandidateStore    ErrorCode = "candidate_store_error"
	ErrorCodeInternal          ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Success bool      `json:"success"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// Envelope wraps successful payloads.
type Envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

// CoursePage is one page of search results.
type CoursePage struct {
	Items      []CourseItem `json:"items"`
	Total      int          `json:"total"`
	Page       int          `json:"page"`
	Size       int          `json:"size"`
	TotalPages int          `json:"totalPages"`
	HasNext    bool         `json:"hasNext"`
}

// CourseItem is a ranked course as returned to clients.
type CourseItem struct {
	ID             string   `json:"id"`
	Slug           string   `json:"slug"`
	Image          string   `json:"image,omitempty"`
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	CategoryName   string   `json:"categoryName,omitempty"`
	InstructorName string   `json:"instructorName,omitempty"`
	Level          string   `json:"level,omitempty"`
	Status         string   `json:"status"`
	Language       string   `json:"language,omitempty"`
	Price          *float64 `json:"price"`
	Rating         float64  `json:"rating"`
	TotalRating    int64    `json:"totalRating"`
	TotalStudent   int64    `json:"totalStudent"`
	TotalSection   int64    `json:"totalSection"`
	TotalLesson    int64    `json:"totalLesson"`
	RelevanceScore float64  `json:"relevanceScore"`
	Distance       float64  `json:"distance"`
}

// HealthResponse reports component health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func courseItemFromRanked(r *result.Ranked) CourseItem {
	item := CourseItem{
		ID:             r.ID,
		Slug:           r.Slug,
		Image:          r.Image,
		Name:           r.Name,
		Description:    r.Description,
		CategoryName:   r.CategoryName,
		InstructorName: r.InstructorName,
		Level:          string(r.Level),
		Status:         string(course.StatusPublished),
		Language:       r.Language,
		Rating:         r.Rating,
		TotalRating:    r.TotalRating,
		TotalStudent:   r.TotalStudent,
		TotalSection:   r.TotalSection,
		TotalLesson:    r.TotalLesson,
		RelevanceScore: r.RelevanceScore,
		Distance:       r.Distance,
	}
	if r.HasPrice {
		p := r.Price
		item.Price = &p
	}
	return item
}

func coursePageFrom(p result.Page) CoursePage {
	items := make([]CourseItem, len(p.Items))
	for i := range p.Items {
		items[i] = courseItemFromRanked(&p.Items[i])
	}
	return CoursePage{
		Items:      items,
		Total:      p.Total,
		Page:       p.Page,
		Size:       p.Size,
		TotalPages: p.TotalPages(),
		HasNext:    p.HasNext(),
	}
}
