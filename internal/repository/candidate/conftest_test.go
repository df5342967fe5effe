package candidate

import (
	"context"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kailas-cloud/coursedex/internal/db"
	"github.com/kailas-cloud/coursedex/internal/domain/search/filter"
)

// mockSearcher implements the searcher consumer interface.
type mockSearcher struct {
	searchKNNFn  func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	searchListFn func(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
	calls        int
}

func (m *mockSearcher) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	m.calls++
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockSearcher) SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error) {
	m.calls++
	if m.searchListFn != nil {
		return m.searchListFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

// mockQuerier records the last query and returns canned rows.
type mockQuerier struct {
	rows    *fakeRows
	err     error
	lastSQL string
	lastArg pgx.NamedArgs
	calls   int
}

func (m *mockQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	m.calls++
	m.lastSQL = sql
	if len(args) == 1 {
		m.lastArg, _ = args[0].(pgx.NamedArgs)
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.rows == nil {
		return &fakeRows{}, nil
	}
	return m.rows, nil
}

// fakeRows is a minimal in-memory pgx.Rows.
type fakeRows struct {
	data   [][]any
	i      int
	err    error
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.i < len(r.data) {
		r.i++
		return true
	}
	return false
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.i-1]
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(row[i]))
	}
	return nil
}

func (r *fakeRows) Values() ([]any, error) { return r.data[r.i-1], nil }

func floatPtr(f float64) *float64 { return &f }

func compile(f filter.SearchFilter) filter.Predicate {
	p, err := filter.Compile(f, filter.CompileOptions{})
	if err != nil {
		panic(err)
	}
	return p
}
