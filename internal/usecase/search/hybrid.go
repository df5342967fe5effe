package search

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kailas-cloud/coursedex/internal/domain/course"
	"github.com/kailas-cloud/coursedex/internal/domain/search/result"
)

const weightEpsilon = 1e-9

// Weights blend the per-candidate signals into one score.
type Weights struct {
	Rerank  float64
	Vector  float64
	Lexical float64
	Quality float64
}

func (w Weights) validate() error {
	if w.Rerank < 0 || w.Vector < 0 || w.Lexical < 0 || w.Quality < 0 {
		return errors.New("weights must not be negative")
	}
	if w.Rerank+w.Vector+w.Lexical+w.Quality > 1+weightEpsilon {
		return errors.New("weights must sum to at most 1")
	}
	return nil
}

// RankWeights holds one weight set per scoring context.
type RankWeights struct {
	// Local applies when no rerank happened for the request.
	Local Weights
	// Rest applies to candidates outside the reranked top tier.
	Rest Weights
	// Top applies to reranked candidates.
	Top Weights
}

// DefaultRankWeights returns the production weight sets.
func DefaultRankWeights() RankWeights {
	return RankWeights{
		Local: Weights{Vector: 0.50, Lexical: 0.35, Quality: 0.15},
		Rest:  Weights{Vector: 0.70, Lexical: 0.20, Quality: 0.10},
		Top:   Weights{Rerank: 0.55, Vector: 0.20, Lexical: 0.15, Quality: 0.10},
	}
}

// Validate checks every weight set.
func (r RankWeights) Validate() error {
	for name, w := range map[string]Weights{"local": r.Local, "rest": r.Rest, "top": r.Top} {
		if err := w.validate(); err != nil {
			return fmt.Errorf("%s weights: %w", name, err)
		}
	}
	if r.Local.Rerank != 0 || r.Rest.Rerank != 0 {
		return errors.New("rerank weight is only allowed in the top tier")
	}
	return nil
}

// signals are the per-candidate inputs to the blend.
type signals struct {
	vector  float64
	lexical float64
	quality float64
	rerank  float64
}

func (s signals) blend(w Weights) float64 {
	return clamp01(s.rerank*w.Rerank + s.vector*w.Vector + s.lexical*w.Lexical + s.quality*w.Quality)
}

type scored struct {
	cand  course.Candidate
	sig   signals
	score float64
}

// vectorScore converts cosine distance into similarity.
func vectorScore(distance float64) float64 {
	return clamp01(1 - distance)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// rankLocal scores every item with w and sorts them.
func rankLocal(items []scored, w Weights) []result.Ranked {
	for i := range items {
		items[i].score = items[i].sig.blend(w)
	}
	return sortRanked(items)
}

// rankQuality orders items by quality alone (empty query).
func rankQuality(items []scored) []result.Ranked {
	for i := range items {
		items[i].score = items[i].sig.quality
	}
	return sortRanked(items)
}

// rankTiered scores the first topN items with rerank weights and the rest with
// the rest-tier weights. The two tiers are sorted independently and
// concatenated, so no rest-tier item ever precedes a reranked one.
// Missing rerank scores fall back to the candidate's vector score.
func rankTiered(items []scored, topN int, rerankScores map[int]float64, w RankWeights) []result.Ranked {
	topN = min(topN, len(items))
	top := make([]scored, topN)
	copy(top, items[:topN])
	for i := range top {
		rs, ok := rerankScores[i]
		if !ok {
			rs = top[i].sig.vector
		}
		top[i].sig.rerank = rs
		top[i].score = top[i].sig.blend(w.Top)
	}

	rest := make([]scored, len(items)-topN)
	copy(rest, items[topN:])
	for i := range rest {
		rest[i].score = rest[i].sig.blend(w.Rest)
	}

	return append(sortRanked(top), sortRanked(rest)...)
}

// sortRanked sorts a copy by score descending, keeping input order on ties.
func sortRanked(items []scored) []result.Ranked {
	sorted := make([]scored, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].score > sorted[j].score
	})

	out := make([]result.Ranked, len(sorted))
	for i, s := range sorted {
		out[i] = result.New(s.cand, s.score)
	}
	return out
}
