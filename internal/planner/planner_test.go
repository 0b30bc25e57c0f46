package planner_test

import (
	"reflect"
	"testing"

	"subtrans/internal/planner"
)

func TestPlanWholeVideo(t *testing.T) {
	got := planner.Plan(2000, nil, planner.Settings{MaxVideoDuration: 900, BatchOffset: 60})
	want := []planner.Window{
		{Index: 0, WindowStart: 0, WindowEnd: 900, ContextOffset: 0},
		{Index: 1, WindowStart: 900, WindowEnd: 1800, ContextOffset: 60},
		{Index: 2, WindowStart: 1800, WindowEnd: 2000, ContextOffset: 60},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Plan() = %+v, want %+v", got, want)
	}
	if got[1].ContextStart() != 840 {
		t.Fatalf("context start = %v, want 840", got[1].ContextStart())
	}
}

func TestPlanRangeClampsContextAtSpanStart(t *testing.T) {
	rng := &planner.Range{Start: 1000, End: 1700}
	got := planner.Plan(3600, rng, planner.Settings{MaxVideoDuration: 600, BatchOffset: 300})
	want := []planner.Window{
		{Index: 0, WindowStart: 1000, WindowEnd: 1600},
		{Index: 1, WindowStart: 1600, WindowEnd: 1700, ContextOffset: 300},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Plan() = %+v, want %+v", got, want)
	}

	short := planner.Plan(0, &planner.Range{Start: 0, End: 500}, planner.Settings{MaxVideoDuration: 300, BatchOffset: 300})
	if len(short) != 2 || short[1].ContextOffset != 300 || short[1].ContextStart() != 0 {
		t.Fatalf("unexpected plan %+v", short)
	}
}

func TestPlanContentRangesDoNotOverlap(t *testing.T) {
	windows := planner.Plan(5432.1, nil, planner.Settings{MaxVideoDuration: 1800, BatchOffset: 120})
	for i, w := range windows {
		if w.Index != i {
			t.Fatalf("window %d has index %d", i, w.Index)
		}
		if w.Duration() > 1800 {
			t.Fatalf("window %d too long: %v", i, w.Duration())
		}
		if i > 0 && w.WindowStart != windows[i-1].WindowEnd {
			t.Fatalf("window %d starts at %v, previous ended at %v", i, w.WindowStart, windows[i-1].WindowEnd)
		}
	}
	if last := windows[len(windows)-1]; last.WindowEnd != 5432.1 {
		t.Fatalf("last window ends at %v", last.WindowEnd)
	}
}

func TestPlanPresubShortensFirstWindow(t *testing.T) {
	got := planner.Plan(1000, nil, planner.Settings{MaxVideoDuration: 600, BatchOffset: 30, PresubDuration: 120, Presub: true})
	want := []planner.Window{
		{Index: 0, WindowStart: 0, WindowEnd: 120, Presub: true},
		{Index: 1, WindowStart: 120, WindowEnd: 720, ContextOffset: 30},
		{Index: 2, WindowStart: 720, WindowEnd: 1000, ContextOffset: 30},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Plan() = %+v, want %+v", got, want)
	}
}

func TestPlanEmptySpan(t *testing.T) {
	if got := planner.Plan(0, nil, planner.Settings{MaxVideoDuration: 900}); got != nil {
		t.Fatalf("expected no windows, got %+v", got)
	}
	if got := planner.Plan(100, &planner.Range{Start: 50, End: 50}, planner.Settings{MaxVideoDuration: 900}); got != nil {
		t.Fatalf("expected no windows for empty range, got %+v", got)
	}
	if got := planner.Plan(100, nil, planner.Settings{}); got != nil {
		t.Fatalf("expected no windows without a window length, got %+v", got)
	}
}
