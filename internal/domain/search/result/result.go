// Package result holds ranked search output.
package result

import "github.com/kailas-cloud/coursedex/internal/domain/course"

// Ranked is a candidate with its final relevance score.
type Ranked struct {
	course.Candidate
	RelevanceScore float64
}

// New creates a ranked result.
func New(c course.Candidate, score float64) Ranked {
	return Ranked{Candidate: c, RelevanceScore: score}
}

// Page is one slice of a ranked result list.
type Page struct {
	Items []Ranked
	Total int
	Page  int
	Size  int
}

// TotalPages returns the number of pages needed to show Total items.
func (p Page) TotalPages() int {
	if p.Size <= 0 {
		return 0
	}
	return (p.Total + p.Size - 1) / p.Size
}

// HasNext reports whether a page after this one holds items.
func (p Page) HasNext() bool {
	return (p.Page+1)*p.Size < p.Total
}
