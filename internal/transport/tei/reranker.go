// Package tei implements rerank.Reranker over a self-hosted cross-encoder
// served by Text Embeddings Inference (POST /rerank).
package tei

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/coursedex/internal/domain"
	"github.com/kailas-cloud/coursedex/internal/domain/rerank"
	"github.com/kailas-cloud/coursedex/internal/metrics"
)

const (
	// DefaultBatchSize matches the cross-encoder's comfortable batch on CPU.
	DefaultBatchSize = 32

	providerName   = "tei"
	maxErrorBody   = 512
	defaultTimeout = 10 * time.Second
)

// Config holds the TEI reranker settings.
type Config struct {
	BaseURL   string
	BatchSize int
	// RawScores requests unnormalized logits instead of sigmoid scores.
	RawScores  bool
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Reranker sends documents in chunks of BatchSize and stitches scores back
// onto their positions in the original list.
type Reranker struct {
	endpoint  string
	batchSize int
	rawScores bool
	client    *http.Client
	logger    *zap.Logger
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	RawScores bool     `json:"raw_scores"`
	Truncate  bool     `json:"truncate"`
}

type rankedText struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// NewReranker creates a TEI reranker.
func NewReranker(cfg *Config) *Reranker {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	endpoint := ""
	if base := strings.TrimRight(cfg.BaseURL, "/"); base != "" {
		endpoint = base + "/rerank"
	}
	return &Reranker{
		endpoint:  endpoint,
		batchSize: batch,
		rawScores: cfg.RawScores,
		client:    client,
		logger:    log,
	}
}

// IsAvailable reports whether an endpoint is configured.
func (r *Reranker) IsAvailable() bool {
	return r.endpoint != ""
}

// BatchRerank scores docs chunk by chunk. Any failed chunk fails the whole call.
func (r *Reranker) BatchRerank(ctx context.Context, query string, docs []string) ([]rerank.ScoredDocument, error) {
	if !r.IsAvailable() {
		return nil, domain.ErrRerankerUnavailable
	}
	out := make([]rerank.ScoredDocument, 0, len(docs))
	for start := 0; start < len(docs); start += r.batchSize {
		end := min(start+r.batchSize, len(docs))
		chunk := docs[start:end]

		ranked, err := r.rerankChunk(ctx, query, chunk)
		if err != nil {
			return nil, fmt.Errorf("chunk [%d:%d]: %w", start, end, err)
		}
		for _, rt := range ranked {
			if rt.Index < 0 || rt.Index >= len(chunk) {
				r.logger.Debug("tei returned out-of-range index", zap.Int("index", rt.Index))
				continue
			}
			out = append(out, rerank.ScoredDocument{
				Index: start + rt.Index,
				Text:  chunk[rt.Index],
				Score: rt.Score,
			})
		}
	}
	if len(docs) > 0 && len(out) == 0 {
		return nil, fmt.Errorf("%w: tei returned no usable results", domain.ErrRerankerError)
	}
	return out, nil
}

func (r *Reranker) rerankChunk(ctx context.Context, query string, texts []string) ([]rankedText, error) {
	body, err := json.Marshal(rerankRequest{
		Query:     query,
		Texts:     texts,
		RawScores: r.rawScores,
		Truncate:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := r.client.Do(req)
	metrics.RerankRequestDuration.WithLabelValues(providerName).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: tei request: %w", domain.ErrRerankerError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: tei status %d: %s",
			domain.ErrRerankerError, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var ranked []rankedText
	if err := json.NewDecoder(resp.Body).Decode(&ranked); err != nil {
		return nil, fmt.Errorf("%w: decode tei response: %w", domain.ErrRerankerError, err)
	}
	return ranked, nil
}
