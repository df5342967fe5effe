// Package candidate implements search.CandidateSource over Redis/Valkey and PostgreSQL.
package candidate

import (
	"sort"
	"strconv"

	"github.com/kailas-cloud/coursedex/internal/domain/course"
)

// Hash field names of an indexed course document.
const (
	fieldID             = "id"
	fieldSlug           = "slug"
	fieldImage          = "image"
	fieldName           = "name"
	fieldDescription    = "description"
	fieldCategoryName   = "category_name"
	fieldInstructorName = "instructor_name"
	fieldLevel          = "level"
	fieldLanguage       = "language"
	fieldPrice          = "price"
	fieldRating         = "rating"
	fieldTotalRating    = "total_rating"
	fieldTotalStudent   = "total_student"
	fieldTotalSection   = "total_section"
	fieldTotalLesson    = "total_lesson"
)

var returnFields = []string{
	fieldID, fieldSlug, fieldImage, fieldName, fieldDescription,
	fieldCategoryName, fieldInstructorName, fieldLevel, fieldLanguage,
	fieldPrice, fieldRating, fieldTotalRating, fieldTotalStudent,
	fieldTotalSection, fieldTotalLesson,
}

// fromFields maps a hash document onto a candidate. Malformed numerics read as zero.
func fromFields(id string, f map[string]string, distance float64) course.Candidate {
	c := course.Candidate{
		ID:             id,
		Slug:           f[fieldSlug],
		Image:          f[fieldImage],
		Name:           f[fieldName],
		Description:    f[fieldDescription],
		CategoryName:   f[fieldCategoryName],
		InstructorName: f[fieldInstructorName],
		Level:          course.Level(f[fieldLevel]),
		Language:       f[fieldLanguage],
		Rating:         parseFloat(f[fieldRating]),
		TotalRating:    parseInt(f[fieldTotalRating]),
		TotalStudent:   parseInt(f[fieldTotalStudent]),
		TotalSection:   parseInt(f[fieldTotalSection]),
		TotalLesson:    parseInt(f[fieldTotalLesson]),
		Distance:       distance,
	}
	if v, ok := f[fieldPrice]; ok && v != "" {
		c.Price = parseFloat(v)
		c.HasPrice = true
	}
	if v := f[fieldID]; v != "" {
		c.ID = v
	}
	return c
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return int64(parseFloat(s))
	}
	return v
}

// sortByQuality orders candidates by rating, then students, then id.
func sortByQuality(cands []course.Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		if a.TotalStudent != b.TotalStudent {
			return a.TotalStudent > b.TotalStudent
		}
		return a.ID < b.ID
	})
}

// sortByDistance orders candidates by ascending distance, keeping store order on ties.
func sortByDistance(cands []course.Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Distance < cands[j].Distance
	})
}
