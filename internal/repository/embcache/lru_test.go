package embcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/coursedex/internal/domain"
)

func TestLRU_SameNormalizedTextCallsProviderOnce(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}, TotalTokens: 4}}
	c := newTestLRU(t, inner, 0)
	ctx := context.Background()

	first, err := c.Embed(ctx, "  Java Basics ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.TotalTokens != 4 {
		t.Errorf("expected tokens on miss, got %d", first.TotalTokens)
	}

	second, err := c.Embed(ctx, "java basics")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.TotalTokens != 0 {
		t.Errorf("expected 0 tokens on hit, got %d", second.TotalTokens)
	}
	if got := inner.calls.Load(); got != 1 {
		t.Fatalf("expected 1 provider call, got %d", got)
	}
	if inner.texts[0] != "java basics" {
		t.Errorf("provider received %q, want normalized text", inner.texts[0])
	}
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	c := newTestLRU(t, inner, 2)
	ctx := context.Background()

	for _, q := range []string{"a", "b", "a", "c"} { // "a" promoted, so "b" is evicted
		if _, err := c.Embed(ctx, q); err != nil {
			t.Fatalf("embed %q: %v", q, err)
		}
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}

	before := inner.calls.Load()
	if _, err := c.Embed(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if inner.calls.Load() != before {
		t.Error("expected a to still be cached")
	}
	if _, err := c.Embed(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	if inner.calls.Load() != before+1 {
		t.Error("expected b to have been evicted")
	}
}

func TestLRU_ErrorNotCached(t *testing.T) {
	inner := &mockEmbedder{err: errors.New("provider down")}
	c := newTestLRU(t, inner, 10)

	if _, err := c.Embed(context.Background(), "go"); err == nil {
		t.Fatal("expected error")
	}
	if c.Len() != 0 {
		t.Error("failed embeddings must not be cached")
	}

	inner.err = nil
	inner.result = domain.EmbeddingResult{Embedding: []float32{1}}
	if _, err := c.Embed(context.Background(), "go"); err != nil {
		t.Fatalf("unexpected error after recovery: %v", err)
	}
}

func TestLRU_CachedValueSurvivesProviderOutage(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	c := newTestLRU(t, inner, 10)
	ctx := context.Background()

	if _, err := c.Embed(ctx, "go"); err != nil {
		t.Fatal(err)
	}
	inner.err = errors.New("provider down")
	res, err := c.Embed(ctx, "GO")
	if err != nil {
		t.Fatalf("expected cached value despite outage, got %v", err)
	}
	if len(res.Embedding) != 1 {
		t.Errorf("unexpected vector %v", res.Embedding)
	}
}

func TestLRU_EmptyEmbeddingRejected(t *testing.T) {
	c := newTestLRU(t, &mockEmbedder{}, 10)
	if _, err := c.Embed(context.Background(), "go"); err == nil {
		t.Fatal("expected error for empty embedding")
	}
}

func TestLRU_ConcurrentMissesCollapse(t *testing.T) {
	inner := &mockEmbedder{
		result: domain.EmbeddingResult{Embedding: []float32{1}},
		delay:  50 * time.Millisecond,
	}
	c := newTestLRU(t, inner, 10)

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Embed(context.Background(), "kubernetes"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := inner.calls.Load(); got != 1 {
		t.Errorf("expected 1 provider call for concurrent misses, got %d", got)
	}
}

func TestLRU_CancelledCallerDoesNotFailSharedFlight(t *testing.T) {
	inner := &mockEmbedder{
		result:  domain.EmbeddingResult{Embedding: []float32{0.5, 0.5}},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	c := newTestLRU(t, inner, 10)

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Embed(firstCtx, "kubernetes")
		firstErr <- err
	}()
	<-inner.started

	type result struct {
		res domain.EmbeddingResult
		err error
	}
	second := make(chan result, 1)
	go func() {
		res, err := c.Embed(context.Background(), "Kubernetes")
		second <- result{res, err}
	}()

	cancel()
	select {
	case err := <-firstErr:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled for cancelled caller, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	time.Sleep(20 * time.Millisecond)
	close(inner.release)

	select {
	case r := <-second:
		if r.err != nil {
			t.Fatalf("unexpected error for waiting caller: %v", r.err)
		}
		if len(r.res.Embedding) != 2 {
			t.Errorf("unexpected vector %v", r.res.Embedding)
		}
	case <-time.After(time.Second):
		t.Fatal("waiting caller did not return")
	}
	if got := inner.calls.Load(); got != 1 {
		t.Errorf("expected 1 provider call, got %d", got)
	}
	if c.Len() != 1 {
		t.Errorf("expected shared result to be cached, got %d entries", c.Len())
	}
}

func TestLRU_Metrics(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"tier", "result"})
	c, err := NewLRU(&mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}, 10, counter)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	_, _ = c.Embed(ctx, "x")
	_, _ = c.Embed(ctx, "x")

	if v := testutil.ToFloat64(counter.WithLabelValues("memory", "miss")); v != 1 {
		t.Errorf("misses = %f, want 1", v)
	}
	if v := testutil.ToFloat64(counter.WithLabelValues("memory", "hit")); v != 1 {
		t.Errorf("hits = %f, want 1", v)
	}
}

type healthyEmbedder struct {
	mockEmbedder
	checked bool
}

func (h *healthyEmbedder) HealthCheck(context.Context) error {
	h.checked = true
	return nil
}

func TestLRU_HealthCheckDelegates(t *testing.T) {
	inner := &healthyEmbedder{}
	c, err := NewLRU(inner, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !inner.checked {
		t.Error("expected inner health check")
	}
}
