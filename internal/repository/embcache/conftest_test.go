package embcache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/coursedex/internal/db"
	"github.com/kailas-cloud/coursedex/internal/domain"
)

type mockEmbedder struct {
	result domain.EmbeddingResult
	err    error
	calls  atomic.Int32
	delay  time.Duration

	// When release is set, Embed signals started and blocks until release
	// is closed or its ctx is done.
	started chan struct{}
	release chan struct{}

	mu    sync.Mutex
	texts []string
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.texts = append(m.texts, text)
	m.mu.Unlock()
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.release != nil {
		select {
		case m.started <- struct{}{}:
		default:
		}
		select {
		case <-m.release:
		case <-ctx.Done():
			return domain.EmbeddingResult{}, ctx.Err()
		}
	}
	return m.result, m.err
}

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	getFn func(ctx context.Context, key string) ([]byte, error)
	setFn func(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockKVStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value, ttl)
	}
	return nil
}

func newTestShared(t *testing.T, inner *mockEmbedder) (*SharedEmbedder, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{}
	return NewShared(inner, ms, "coursedex:text-embedding-3-small:", time.Hour, nil, zap.NewNop()), ms
}

func newTestLRU(t *testing.T, inner *mockEmbedder, size int) *LRUEmbedder {
	t.Helper()
	c, err := NewLRU(inner, size, nil)
	if err != nil {
		t.Fatalf("NewLRU: %v", err)
	}
	return c
}
