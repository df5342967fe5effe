package search

import (
	"errors"
	"math"

	"github.com/kailas-cloud/coursedex/internal/domain/course"
)

// popularitySaturation is the student count at which popularity maxes out.
const popularitySaturation = 10000

// QualityWeights scale the rating and popularity contributions.
// Their sum bounds the quality score, which must stay within [0,1].
type QualityWeights struct {
	Rating     float64
	Popularity float64
}

// DefaultQualityWeights returns the production quality weights.
func DefaultQualityWeights() QualityWeights {
	return QualityWeights{Rating: 0.6, Popularity: 0.4}
}

// Validate checks the weights keep the score inside [0,1].
func (w QualityWeights) Validate() error {
	if w.Rating < 0 || w.Popularity < 0 {
		return errors.New("quality weights must not be negative")
	}
	if w.Rating+w.Popularity > 1+weightEpsilon {
		return errors.New("quality weights must sum to at most 1")
	}
	return nil
}

type qualityScorer struct {
	w QualityWeights
}

func (q qualityScorer) score(c course.Candidate) float64 {
	var s float64
	if c.Rating > 0 {
		s += min(c.Rating/5.0, 1) * q.w.Rating
	}
	if c.TotalStudent > 0 {
		pop := math.Log(float64(c.TotalStudent)+1) / math.Log(popularitySaturation)
		s += min(pop, 1) * q.w.Popularity
	}
	return clamp01(s)
}
