// Package jina implements rerank.Reranker over the Jina-compatible /v1/rerank API.
package jina

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
	// DefaultBaseURL is the public Jina API endpoint.
	DefaultBaseURL = "https://api.jina.ai"
	// DefaultModel is the multilingual reranker used for course search.
	DefaultModel = "jina-reranker-v3"

	providerName   = "jina"
	maxErrorBody   = 512
	defaultTimeout = 10 * time.Second
)

// Config holds the Jina reranker settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// HTTPClient overrides the default client; its timeout bounds every call.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Reranker calls POST {BaseURL}/v1/rerank.
type Reranker struct {
	apiKey   string
	endpoint string
	model    string
	client   *http.Client
	logger   *zap.Logger
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// NewReranker creates a Jina reranker.
func NewReranker(cfg *Config) *Reranker {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Reranker{
		apiKey:   cfg.APIKey,
		endpoint: base + "/v1/rerank",
		model:    model,
		client:   client,
		logger:   log,
	}
}

// IsAvailable reports whether an API key is configured.
func (r *Reranker) IsAvailable() bool {
	return strings.TrimSpace(r.apiKey) != ""
}

// BatchRerank scores every document against query. Indices outside docs are dropped.
func (r *Reranker) BatchRerank(ctx context.Context, query string, docs []string) ([]rerank.ScoredDocument, error) {
	if !r.IsAvailable() {
		return nil, domain.ErrRerankerUnavailable
	}
	if len(docs) == 0 {
		return []rerank.ScoredDocument{}, nil
	}

	body, err := json.Marshal(rerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: docs,
		TopN:      len(docs),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	start := time.Now()
	resp, err := r.client.Do(req)
	metrics.RerankRequestDuration.WithLabelValues(providerName).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: jina request: %w", domain.ErrRerankerError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: jina status %d: %s",
			domain.ErrRerankerError, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode jina response: %w", domain.ErrRerankerError, err)
	}

	out := make([]rerank.ScoredDocument, 0, len(parsed.Results))
	for _, res := range parsed.Results {
		if res.Index < 0 || res.Index >= len(docs) {
			r.logger.Debug("jina returned out-of-range index", zap.Int("index", res.Index))
			continue
		}
		out = append(out, rerank.ScoredDocument{
			Index: res.Index,
			Text:  docs[res.Index],
			Score: res.RelevanceScore,
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: jina returned no usable results", domain.ErrRerankerError)
	}
	return out, nil
}
