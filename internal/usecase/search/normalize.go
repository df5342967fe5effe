package search

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizationMode controls how query and candidate text are normalized
// before lexical matching. One mode applies to a whole deployment.
type NormalizationMode string

const (
	// NormalizePreserve lower-cases, trims and collapses whitespace.
	NormalizePreserve NormalizationMode = "preserve"
	// NormalizeFold additionally strips diacritics ("café" matches "cafe").
	NormalizeFold NormalizationMode = "fold"
)

type normalizer struct {
	fold bool
}

func newNormalizer(mode NormalizationMode) (normalizer, error) {
	switch mode {
	case NormalizePreserve, "":
		return normalizer{}, nil
	case NormalizeFold:
		return normalizer{fold: true}, nil
	default:
		return normalizer{}, fmt.Errorf("unknown normalization mode %q", mode)
	}
}

func (n normalizer) normalize(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToLower(s)
	if n.fold {
		s = foldDiacritics(s)
	}
	return strings.Join(strings.Fields(s), " ")
}

// foldDiacritics decomposes s and drops combining marks.
// Transformers are stateful, so a fresh chain is built per call.
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
