package search

import (
	"strings"

	"github.com/kailas-cloud/coursedex/internal/domain/course"
)

// Lexical bonuses.
const (
	lexExactTitle     = 1.0
	lexTitleAffix     = 0.50
	lexTitleContains  = 0.30
	lexCategory       = 0.15
	lexDescription    = 0.10
	lexCoverageWeight = 0.12
)

// lexicalScorer is a heuristic text-relevance function (not literal BM25).
type lexicalScorer struct {
	norm normalizer
}

// score returns a [0,1] relevance of c to an already normalized query.
func (l lexicalScorer) score(query string, c course.Candidate) float64 {
	if query == "" {
		return 0
	}
	title := l.norm.normalize(c.Name)
	if title == query {
		return lexExactTitle
	}

	var s float64
	switch {
	case strings.HasPrefix(title, query) || strings.HasSuffix(title, query):
		s += lexTitleAffix
	case strings.Contains(title, query):
		s += lexTitleContains
	}
	if strings.Contains(l.norm.normalize(c.CategoryName), query) {
		s += lexCategory
	}
	if strings.Contains(l.norm.normalize(c.Description), query) {
		s += lexDescription
	}
	s += min(lexCoverageWeight, tokenCoverage(query, title)*lexCoverageWeight)

	return clamp01(s)
}

// tokenCoverage is the share of query tokens present in the title token set.
func tokenCoverage(query, title string) float64 {
	qTokens := strings.Fields(query)
	if len(qTokens) == 0 {
		return 0
	}
	titleSet := make(map[string]struct{})
	for _, t := range strings.Fields(title) {
		titleSet[t] = struct{}{}
	}
	var found int
	for _, t := range qTokens {
		if _, ok := titleSet[t]; ok {
			found++
		}
	}
	return float64(found) / float64(len(qTokens))
}
