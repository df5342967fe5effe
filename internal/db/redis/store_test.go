package redis

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/coursedex/internal/db"
	"github.com/kailas-cloud/coursedex/internal/domain/course"
	"github.com/kailas-cloud/coursedex/internal/domain/search/filter"
)

func floatPtr(f float64) *float64 { return &f }

func newTestStore(c rueidis.Client) *Store {
	return &Store{client: c}
}

func mustCompile(t *testing.T, f filter.SearchFilter) filter.Predicate {
	t.Helper()
	p, err := filter.Compile(f, filter.CompileOptions{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return p
}

// isDBError is a test helper for checking wrapped db.Error.
func isDBError(err error) bool {
	var dbErr *db.Error
	return errors.As(err, &dbErr)
}

// --- client.go tests ---

func TestPing_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	s := newTestStore(c)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := newTestStore(c)
	err := s.Ping(context.Background())
	if !isDBError(err) {
		t.Fatalf("expected db.Error, got %v", err)
	}
}

func TestWaitForReady_Timeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(errors.New("connection refused"))).
		AnyTimes()

	s := newTestStore(c)
	err := s.WaitForReady(context.Background(), 250*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("expected last ping error in %q", err)
	}
}

func TestWaitForReady_ImmediateSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG"))).
		Times(1)

	start := time.Now()
	if err := newTestStore(c).WaitForReady(context.Background(), time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) >= 100*time.Millisecond {
		t.Error("expected the first ping to run without waiting for a tick")
	}
}

func TestNewStore_RequiresAddrs(t *testing.T) {
	if _, err := NewStore(Config{}); err == nil {
		t.Fatal("expected error for missing addrs")
	}
}

// --- kv.go tests ---

func TestGet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "mykey")).
		Return(mock.Result(mock.RedisBlobString("value")))

	s := newTestStore(c)
	data, err := s.Get(context.Background(), "mykey")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "value" {
		t.Errorf("unexpected data: %s", data)
	}
}

func TestGet_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "mykey")).
		Return(mock.Result(mock.RedisNil()))

	s := newTestStore(c)
	_, err := s.Get(context.Background(), "mykey")
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestGet_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "mykey")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := newTestStore(c)
	_, err := s.Get(context.Background(), "mykey")
	if !isDBError(err) {
		t.Errorf("expected db.Error, got %v", err)
	}
}

func TestSet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "mykey", "myvalue")).
		Return(mock.Result(mock.RedisString("OK")))

	s := newTestStore(c)
	if err := s.Set(context.Background(), "mykey", []byte("myvalue")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSetWithTTL_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "mykey", "myvalue", "EX", "60")).
		Return(mock.Result(mock.RedisString("OK")))

	s := newTestStore(c)
	if err := s.SetWithTTL(context.Background(), "mykey", []byte("myvalue"), time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSetWithTTL_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "SET" })).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := newTestStore(c)
	err := s.SetWithTTL(context.Background(), "k", []byte("v"), time.Minute)
	if !isDBError(err) {
		t.Errorf("expected db.Error, got %v", err)
	}
}

// --- search.go tests ---

func TestSearchKNN_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	var captured []string
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			captured = cmd
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(1),
			mock.RedisString("coursedex:course:1"),
			mock.RedisArray(
				mock.RedisString("__vector_score"),
				mock.RedisString("0.1"),
				mock.RedisString("name"),
				mock.RedisString("Go"),
			),
		)))

	s := newTestStore(c)
	result, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName:    "courses",
		Filter:       mustCompile(t, filter.SearchFilter{Level: course.LevelBeginner}),
		Vector:       []float32{0.1, 0.2},
		Limit:        100,
		ReturnFields: []string{"name"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 1 || len(result.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %+v", result)
	}
	e := result.Entries[0]
	if e.Key != "coursedex:course:1" {
		t.Errorf("unexpected key %s", e.Key)
	}
	if e.Score != 0.1 {
		t.Errorf("expected raw distance 0.1, got %f", e.Score)
	}
	if _, ok := e.Fields["__vector_score"]; ok {
		t.Error("score field must be removed from fields")
	}

	wantQuery := "(@status:{PUBLISHED} @level:{BEGINNER})=>[KNN 100 @vector $BLOB]"
	if captured[2] != wantQuery {
		t.Errorf("query = %q, want %q", captured[2], wantQuery)
	}
	joined := strings.Join(captured, " ")
	for _, part := range []string{
		"RETURN 2 name __vector_score",
		"SORTBY __vector_score ASC",
		"LIMIT 0 100",
		"DIALECT 2",
	} {
		if !strings.Contains(joined, part) {
			t.Errorf("expected %q in command %q", part, joined)
		}
	}
}

func TestSearchKNN_Offset(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return strings.Contains(cmd[2], "[KNN 30 @embedding $BLOB]") &&
				slices.Contains(cmd, "__embedding_score")
		})).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	s := newTestStore(c)
	_, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName:   "courses",
		Filter:      mustCompile(t, filter.SearchFilter{}),
		Vector:      []float32{1},
		VectorField: "embedding",
		Offset:      10,
		Limit:       20,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSearchKNN_AlwaysFalseSkipsServer(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl) // no expectations: any call fails the test

	s := newTestStore(c)
	pred := mustCompile(t, filter.SearchFilter{CategorySlug: "a", CategorySlugs: []string{"b"}})
	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "courses", Filter: pred, Vector: []float32{1}, Limit: 10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Entries) != 0 {
		t.Error("expected no entries")
	}
}

func TestSearchKNN_IndexNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.SEARCH" })).
		Return(mock.Result(mock.RedisError("courses: no such index")))

	s := newTestStore(c)
	_, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "courses", Vector: []float32{1}, Limit: 10,
	})
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
	if !isDBError(err) {
		t.Errorf("expected db.Error, got %T", err)
	}
}

func TestSearchKNN_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.SEARCH" })).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := newTestStore(c)
	_, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "courses", Vector: []float32{0.1}, Limit: 10,
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestSearchKNN_Validation(t *testing.T) {
	s := &Store{}
	ctx := context.Background()

	if _, err := s.SearchKNN(ctx, &db.KNNQuery{Vector: []float32{0.1}, Limit: 10}); err == nil {
		t.Error("expected error for empty index name")
	}
	if _, err := s.SearchKNN(ctx, &db.KNNQuery{IndexName: "idx", Limit: 10}); err == nil {
		t.Error("expected error for empty vector")
	}
	if _, err := s.SearchKNN(ctx, &db.KNNQuery{IndexName: "idx", Vector: []float32{0.1}}); err == nil {
		t.Error("expected error for zero limit")
	}
}

func TestSearchList_Sorted(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	var captured []string
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			captured = cmd
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(2),
			mock.RedisString("k1"),
			mock.RedisArray(mock.RedisString("rating"), mock.RedisString("4.9")),
			mock.RedisString("k2"),
			mock.RedisArray(mock.RedisString("rating"), mock.RedisString("4.1")),
		)))

	s := newTestStore(c)
	res, err := s.SearchList(context.Background(), &db.ListQuery{
		IndexName: "courses",
		Filter:    mustCompile(t, filter.SearchFilter{MinRating: floatPtr(4)}),
		SortBy:    "rating",
		SortDesc:  true,
		Limit:     50,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Entries) != 2 || res.Entries[0].Fields["rating"] != "4.9" {
		t.Fatalf("unexpected entries %+v", res.Entries)
	}
	if captured[2] != "@status:{PUBLISHED} @rating:[4 +inf]" {
		t.Errorf("query = %q", captured[2])
	}
	if !strings.Contains(strings.Join(captured, " "), "SORTBY rating DESC LIMIT 0 50") {
		t.Errorf("unexpected command %v", captured)
	}
}

func TestSearchList_Validation(t *testing.T) {
	s := &Store{}
	if _, err := s.SearchList(context.Background(), &db.ListQuery{Limit: 1}); err == nil {
		t.Error("expected error for empty index name")
	}
	if _, err := s.SearchList(context.Background(), &db.ListQuery{IndexName: "idx"}); err == nil {
		t.Error("expected error for zero limit")
	}
}

// --- filter building ---

func TestBuildFilter(t *testing.T) {
	tests := []struct {
		name string
		f    filter.SearchFilter
		want string
	}{
		{"status only", filter.SearchFilter{}, "@status:{PUBLISHED}"},
		{
			"categories escaped",
			filter.SearchFilter{CategorySlugs: []string{"web-dev", "data science"}},
			`@status:{PUBLISHED} @category_slug:{web\-dev | data\ science}`,
		},
		{
			"price range",
			filter.SearchFilter{MinPrice: floatPtr(10), MaxPrice: floatPtr(99.5)},
			"@status:{PUBLISHED} @price:[10 +inf] @price:[-inf 99.5]",
		},
		{
			"language and instructor",
			filter.SearchFilter{Language: "en", InstructorID: "0b8c1d5e-2f4a-4c1b-9d3e-7a6f5e4d3c2b"},
			`@status:{PUBLISHED} @language:{en} @instructor_id:{0b8c1d5e\-2f4a\-4c1b\-9d3e\-7a6f5e4d3c2b}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildFilter(mustCompile(t, tt.f))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got  %q\nwant %q", got, tt.want)
			}
		})
	}
}

func TestBuildFilter_Empty(t *testing.T) {
	got, err := buildFilter(filter.Predicate{})
	if err != nil || got != "" {
		t.Errorf("expected empty filter, got %q, %v", got, err)
	}
}

func TestParseResult_SkipsMalformed(t *testing.T) {
	raw := []rueidis.RedisMessage{
		mock.RedisInt64(2),
		mock.RedisString("k1"),
		mock.RedisString("not-an-array"),
		mock.RedisString("k2"),
		mock.RedisArray(mock.RedisString("name"), mock.RedisString("Go")),
	}
	res, err := parseResult(raw, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Entries) != 1 || res.Entries[0].Key != "k2" {
		t.Errorf("unexpected entries %+v", res.Entries)
	}
}

func TestVectorToBytes(t *testing.T) {
	b := vectorToBytes([]float32{1, 2})
	if len(b) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(b))
	}
}
