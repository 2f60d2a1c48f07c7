package analysis

import (
	"math"
	"testing"
)

func TestPlanWindowCoverage(t *testing.T) {
	cases := []struct {
		name      string
		total     int
		index     int
		size      int
		wantStart int
		wantEnd   int
		wantEmpty bool
	}{
		{name: "first_chunk", total: 60, index: 0, size: 25, wantStart: 0, wantEnd: 25},
		{name: "middle_chunk", total: 60, index: 1, size: 25, wantStart: 25, wantEnd: 50},
		{name: "tail_chunk_clamped", total: 60, index: 2, size: 25, wantStart: 50, wantEnd: 60},
		{name: "past_end_is_empty", total: 60, index: 3, size: 25, wantStart: 60, wantEnd: 60, wantEmpty: true},
		{name: "exact_fit_last", total: 50, index: 1, size: 25, wantStart: 25, wantEnd: 50},
		{name: "single_item", total: 1, index: 0, size: 25, wantStart: 0, wantEnd: 1},
		{name: "zero_total", total: 0, index: 0, size: 25, wantStart: 0, wantEnd: 0, wantEmpty: true},
		{name: "far_past_end", total: 10, index: 100, size: 25, wantStart: 10, wantEnd: 10, wantEmpty: true},
		{name: "negative_index_clamped", total: 10, index: -1, size: 5, wantStart: 0, wantEnd: 5},
		{name: "huge_index_no_overflow", total: 10, index: 368934881474191033, size: 25, wantStart: 10, wantEnd: 10, wantEmpty: true},
		{name: "max_index_no_overflow", total: 10, index: math.MaxInt, size: 50, wantStart: 10, wantEnd: 10, wantEmpty: true},
		{name: "zero_size_defaults", total: 30, index: 1, size: 0, wantStart: 25, wantEnd: 30},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := Plan(tc.total, tc.index, tc.size)
			if w.Start != tc.wantStart || w.End != tc.wantEnd {
				t.Fatalf("Plan(%d,%d,%d)=[%d,%d), want [%d,%d)",
					tc.total, tc.index, tc.size, w.Start, w.End, tc.wantStart, tc.wantEnd)
			}
			if w.Empty() != tc.wantEmpty {
				t.Fatalf("Empty()=%v, want %v", w.Empty(), tc.wantEmpty)
			}
		})
	}
}

func TestPlanIsPure(t *testing.T) {
	for total := 0; total <= 120; total += 7 {
		for idx := 0; idx < 8; idx++ {
			a := Plan(total, idx, 25)
			b := Plan(total, idx, 25)
			if a != b {
				t.Fatalf("Plan(%d,%d,25) not deterministic: %+v vs %+v", total, idx, a, b)
			}
		}
	}
}

func TestPlanWindowsTile(t *testing.T) {
	// Sequential windows must cover [0, total) exactly once.
	const total, size = 103, 25
	covered := 0
	for idx := 0; ; idx++ {
		w := Plan(total, idx, size)
		if w.Empty() {
			break
		}
		if w.Start != covered {
			t.Fatalf("window %d starts at %d, expected %d", idx, w.Start, covered)
		}
		covered = w.End
	}
	if covered != total {
		t.Fatalf("windows covered %d of %d items", covered, total)
	}
}

func TestClampChunkSize(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{in: 0, want: DefaultChunkSize},
		{in: -5, want: DefaultChunkSize},
		{in: 10, want: 10},
		{in: 50, want: 50},
		{in: 51, want: MaxChunkSize},
		{in: 1000, want: MaxChunkSize},
	}
	for _, tc := range cases {
		if got := ClampChunkSize(tc.in); got != tc.want {
			t.Fatalf("ClampChunkSize(%d)=%d, want %d", tc.in, got, tc.want)
		}
	}
}
