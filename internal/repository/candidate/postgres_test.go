package candidate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/coursedex/internal/db"
	"github.com/kailas-cloud/coursedex/internal/domain/course"
	"github.com/kailas-cloud/coursedex/internal/domain/search/filter"
)

func candidateRow(id, name string, price *float64, rating float64, students int64, dist float64) []any {
	return []any{
		id, "slug-" + id, "", name, "desc", "Programming", "Jane Doe",
		"BEGINNER", "en", price, rating, int64(3), students, int64(4), int64(20), dist,
	}
}

func TestPostgresSource_FetchWithVector(t *testing.T) {
	q := &mockQuerier{rows: &fakeRows{data: [][]any{
		candidateRow("a", "Java Core", floatPtr(19.9), 4.5, 100, 0.12),
		candidateRow("b", "Java Spring", nil, 0, 0, 0.40),
	}}}
	src := NewPostgresSource(q)

	minRating := 4.0
	pred := compile(filter.SearchFilter{Language: "en", MinRating: &minRating})
	cands, err := src.Fetch(context.Background(), pred, []float32{0.5, 0.25}, 100, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(cands))
	}
	a := cands[0]
	if a.ID != "a" || !a.HasPrice || a.Price != 19.9 || a.Distance != 0.12 {
		t.Errorf("unexpected first candidate: %+v", a)
	}
	if a.Level != course.LevelBeginner || a.InstructorName != "Jane Doe" || a.TotalLesson != 20 {
		t.Errorf("fields not scanned: %+v", a)
	}
	if cands[1].HasPrice {
		t.Error("NULL price must not be reported as present")
	}
	if !q.rows.closed {
		t.Error("rows must be closed")
	}

	if !strings.Contains(q.lastSQL, distanceExpr) || !strings.Contains(q.lastSQL, "ORDER BY "+distanceOrder) {
		t.Errorf("expected distance ordering, got:\n%s", q.lastSQL)
	}
	if !strings.Contains(q.lastSQL, "c.status = @status") || !strings.Contains(q.lastSQL, "c.rating >= @minRating") {
		t.Errorf("expected filter clauses, got:\n%s", q.lastSQL)
	}
	if q.lastArg["vector"] != "[0.5,0.25]" {
		t.Errorf("unexpected vector arg: %v", q.lastArg["vector"])
	}
	if q.lastArg["limit"] != 100 || q.lastArg["offset"] != 0 {
		t.Errorf("unexpected paging args: %v", q.lastArg)
	}
}

func TestPostgresSource_FetchWithoutVector(t *testing.T) {
	q := &mockQuerier{}
	src := NewPostgresSource(q)

	if _, err := src.Fetch(context.Background(), compile(filter.SearchFilter{}), nil, 50, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(q.lastSQL, "<=>") {
		t.Errorf("no vector operator expected without a vector:\n%s", q.lastSQL)
	}
	if !strings.Contains(q.lastSQL, "ORDER BY "+qualityOrder) {
		t.Errorf("expected quality ordering:\n%s", q.lastSQL)
	}
	if _, ok := q.lastArg["vector"]; ok {
		t.Error("vector arg must be absent")
	}
}

func TestPostgresSource_InstructorFilter(t *testing.T) {
	q := &mockQuerier{}
	src := NewPostgresSource(q)

	pred := compile(filter.SearchFilter{InstructorID: "6F1C2A4E-0B7D-4E55-9C1A-1D2E3F405060"})
	if _, err := src.Fetch(context.Background(), pred, []float32{1}, 10, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(q.lastSQL, "fi.user_id = @instructorId::uuid") {
		t.Errorf("expected instructor subquery:\n%s", q.lastSQL)
	}
	if q.lastArg["instructorId"] != "6f1c2a4e-0b7d-4e55-9c1a-1d2e3f405060" {
		t.Errorf("unexpected instructor arg: %v", q.lastArg["instructorId"])
	}
}

func TestPostgresSource_AlwaysFalseSkipsQuery(t *testing.T) {
	q := &mockQuerier{}
	src := NewPostgresSource(q)

	pred, err := filter.Compile(filter.SearchFilter{
		CategorySlug:  "java",
		CategorySlugs: []string{"go"},
	}, filter.CompileOptions{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	cands, err := src.Fetch(context.Background(), pred, []float32{1}, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 0 || q.calls != 0 {
		t.Errorf("expected no query and empty result, calls=%d", q.calls)
	}
}

func TestPostgresSource_Errors(t *testing.T) {
	boom := errors.New("connection refused")

	t.Run("query", func(t *testing.T) {
		src := NewPostgresSource(&mockQuerier{err: boom})
		_, err := src.Fetch(context.Background(), compile(filter.SearchFilter{}), []float32{1}, 10, 0)
		var dbErr *db.Error
		if !errors.As(err, &dbErr) || dbErr.Op != db.OpQuery || !errors.Is(err, boom) {
			t.Errorf("expected wrapped db.Error, got %v", err)
		}
	})

	t.Run("rows", func(t *testing.T) {
		src := NewPostgresSource(&mockQuerier{rows: &fakeRows{err: boom}})
		_, err := src.Fetch(context.Background(), compile(filter.SearchFilter{}), []float32{1}, 10, 0)
		if !errors.Is(err, boom) {
			t.Errorf("expected rows error, got %v", err)
		}
	})
}
