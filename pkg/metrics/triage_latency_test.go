package metrics

import (
	"testing"
	"time"
)

func TestLatencyTracker_Stats(t *testing.T) {
	lt := NewLatencyTracker(100)
	for i := 1; i <= 100; i++ {
		lt.Record(time.Duration(i) * time.Millisecond)
	}

	s := lt.Stats()
	if s.Count != 100 || s.Samples != 100 {
		t.Fatalf("count = %d samples = %d", s.Count, s.Samples)
	}
	if s.Min != time.Millisecond || s.Max != 100*time.Millisecond {
		t.Errorf("min/max = %v/%v", s.Min, s.Max)
	}
	if s.P50 != 50*time.Millisecond {
		t.Errorf("p50 = %v, want 50ms", s.P50)
	}
}

func TestLatencyTracker_WindowWraps(t *testing.T) {
	lt := NewLatencyTracker(4)
	for i := 1; i <= 10; i++ {
		lt.Record(time.Duration(i) * time.Second)
	}

	s := lt.Stats()
	if s.Count != 10 {
		t.Errorf("count = %d, want 10", s.Count)
	}
	if s.Samples != 4 {
		t.Errorf("samples = %d, want 4", s.Samples)
	}
	if s.Min != 7*time.Second {
		t.Errorf("min = %v, want 7s (oldest samples evicted)", s.Min)
	}
}

func TestLatencyRegistry(t *testing.T) {
	r := NewLatencyRegistry(10)
	r.Record(OpClassifyAI, time.Millisecond)
	r.Record(OpClassifyAI, 3*time.Millisecond)
	r.Record(OpRecompute, time.Second)

	all := r.AllStats()
	if len(all) != 2 {
		t.Fatalf("len(AllStats) = %d, want 2", len(all))
	}
	if got := r.Stats(OpClassifyAI).Avg; got != 2*time.Millisecond {
		t.Errorf("avg = %v, want 2ms", got)
	}
	if got := r.Stats("missing"); got.Count != 0 {
		t.Errorf("unknown op should be empty, got %+v", got)
	}
}
