package search

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/coursedex/internal/domain"
	"github.com/kailas-cloud/coursedex/internal/domain/course"
	"github.com/kailas-cloud/coursedex/internal/logger"
	"github.com/kailas-cloud/coursedex/internal/metrics"
)

// maxRerankDescription caps the description length (in runes) sent to the reranker.
const maxRerankDescription = 500

// RerankOutcome is the terminal state of one rerank attempt.
type RerankOutcome string

// Rerank outcomes.
const (
	RerankSkipped   RerankOutcome = "skipped"
	RerankSucceeded RerankOutcome = "succeeded"
	RerankFailed    RerankOutcome = "failed"
)

// rerankResult carries scores keyed by offset into the dispatched top tier.
type rerankResult struct {
	outcome RerankOutcome
	topN    int
	scores  map[int]float64
}

type rerankOrchestrator struct {
	reranker Reranker
	topK     int
	timeout  time.Duration
}

// eligible reports whether a rerank should be attempted for this request.
func (o *rerankOrchestrator) eligible(enabled bool, page int, query string) bool {
	return enabled && o.reranker != nil && page == 0 && query != "" && o.reranker.IsAvailable()
}

// run reranks the first min(len(cands), topK) candidates. cands must be in
// distance order and are never reordered before dispatch. Any failure yields
// RerankFailed; the caller then scores everything locally.
func (o *rerankOrchestrator) run(ctx context.Context, query string, cands []course.Candidate) rerankResult {
	log := logger.FromContext(ctx)

	topN := min(len(cands), o.topK)
	if topN == 0 {
		return rerankResult{outcome: RerankSkipped}
	}

	docs := make([]string, topN)
	for i := range topN {
		docs[i] = rerankDocument(cands[i])
	}

	rctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	resp, err := o.reranker.BatchRerank(rctx, query, docs)
	if err == nil && len(resp) == 0 {
		err = errors.New("empty rerank response")
	}
	if err != nil {
		log.Warn("rerank failed, falling back to local scoring",
			zap.Int("top_n", topN),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(errors.Join(domain.ErrRerankerError, err)),
		)
		return rerankResult{outcome: RerankFailed}
	}

	scores := make(map[int]float64, len(resp))
	for _, d := range resp {
		if d.Index < 0 || d.Index >= topN {
			continue
		}
		if _, dup := scores[d.Index]; dup {
			continue
		}
		scores[d.Index] = clamp01(d.Score)
	}
	if len(scores) == 0 {
		log.Warn("rerank returned no usable indices, falling back to local scoring",
			zap.Int("top_n", topN), zap.Int("returned", len(resp)))
		return rerankResult{outcome: RerankFailed}
	}

	log.Debug("rerank succeeded",
		zap.Int("top_n", topN),
		zap.Int("scored", len(scores)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return rerankResult{outcome: RerankSucceeded, topN: topN, scores: scores}
}

func recordRerankOutcome(o RerankOutcome) {
	metrics.RerankRequestsTotal.WithLabelValues(string(o)).Inc()
}

// rerankDocument builds the deterministic text sent to the reranker for c.
// Empty parts are skipped.
func rerankDocument(c course.Candidate) string {
	parts := make([]string, 0, 5)
	if c.Name != "" {
		parts = append(parts, c.Name)
	}
	if d := truncateRunes(strings.TrimSpace(c.Description), maxRerankDescription); d != "" {
		parts = append(parts, d)
	}
	if c.InstructorName != "" {
		parts = append(parts, "Instructor: "+c.InstructorName)
	}
	if c.CategoryName != "" {
		parts = append(parts, "Category: "+c.CategoryName)
	}
	if c.HasPrice {
		parts = append(parts, "Price: "+strconv.FormatFloat(c.Price, 'f', 2, 64))
	}
	return strings.Join(parts, " | ")
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
