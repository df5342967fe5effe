package result

import (
	"testing"

	"github.com/kailas-cloud/coursedex/internal/domain/course"
)

func TestNew(t *testing.T) {
	r := New(course.Candidate{ID: "c1", Name: "Go"}, 0.42)
	if r.ID != "c1" || r.Name != "Go" {
		t.Errorf("unexpected candidate %+v", r.Candidate)
	}
	if r.RelevanceScore != 0.42 {
		t.Errorf("expected 0.42, got %f", r.RelevanceScore)
	}
}

func TestPage_TotalPages(t *testing.T) {
	tests := []struct {
		total, size, want int
	}{
		{0, 9, 0},
		{9, 9, 1},
		{10, 9, 2},
		{5, 0, 0},
	}
	for _, tt := range tests {
		p := Page{Total: tt.total, Size: tt.size}
		if got := p.TotalPages(); got != tt.want {
			t.Errorf("TotalPages(total=%d,size=%d) = %d, want %d", tt.total, tt.size, got, tt.want)
		}
	}
}

func TestPage_HasNext(t *testing.T) {
	if !(Page{Total: 10, Page: 0, Size: 9}).HasNext() {
		t.Error("expected next page")
	}
	if (Page{Total: 9, Page: 0, Size: 9}).HasNext() {
		t.Error("expected no next page")
	}
}
