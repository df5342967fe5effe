// Package course holds the catalog item model consumed by the search engine.
package course

import (
	"fmt"
	"strings"
)

// Level is the course difficulty.
type Level string

// Course level constants.
const (
	LevelBeginner     Level = "BEGINNER"
	LevelIntermediate Level = "INTERMEDIATE"
	LevelAdvanced     Level = "ADVANCED"
)

// IsValid checks if the level is one of the supported values.
func (l Level) IsValid() bool {
	return l == LevelBeginner || l == LevelIntermediate || l == LevelAdvanced
}

// ParseLevel parses a level case-insensitively. Empty input yields an empty level.
func ParseLevel(s string) (Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	l := Level(strings.ToUpper(s))
	if !l.IsValid() {
		return "", fmt.Errorf("unknown level %q", s)
	}
	return l, nil
}

// Status is the publication state of a course.
type Status string

// Course status constants. Only StatusPublished is ever searchable.
const (
	StatusDraft     Status = "DRAFT"
	StatusPublished Status = "PUBLISHED"
	StatusRejected  Status = "REJECTED"
)

// Candidate is a course returned by nearest-neighbor retrieval for one request.
// It carries no identity beyond the request lifetime.
type Candidate struct {
	ID             string
	Slug           string
	Image          string
	Name           string
	Description    string
	CategoryName   string
	InstructorName string
	Level          Level
	Language       string
	Price          float64
	HasPrice       bool
	Rating         float64 // [0,5]
	TotalRating    int64
	TotalStudent   int64
	TotalSection   int64
	TotalLesson    int64

	// Distance is the cosine distance from the query embedding (0 = identical).
	Distance float64
}
