package gateway

import (
	"math"
	"testing"
)

func TestLatencyTracker_Empty(t *testing.T) {
	lt := NewLatencyTracker(100)
	if p50, p95, p99 := lt.Percentiles(); p50 != 0 || p95 != 0 || p99 != 0 {
		t.Errorf("empty tracker: got (%f,%f,%f)", p50, p95, p99)
	}
}

func TestLatencyTracker_Percentiles(t *testing.T) {
	lt := NewLatencyTracker(1000)
	for i := 100; i >= 1; i-- {
		lt.Record(float64(i))
	}

	p50, p95, p99 := lt.Percentiles()
	if math.Abs(p50-50.5) > 1e-9 {
		t.Errorf("p50 = %f, want 50.5", p50)
	}
	if math.Abs(p95-95.05) > 1e-9 {
		t.Errorf("p95 = %f, want 95.05", p95)
	}
	if math.Abs(p99-99.01) > 1e-9 {
		t.Errorf("p99 = %f, want 99.01", p99)
	}
}

func TestLatencyTracker_KeepsMostRecent(t *testing.T) {
	lt := NewLatencyTracker(3)
	for _, v := range []float64{1000, 1000, 1, 2, 3} {
		lt.Record(v)
	}
	if lt.Count() != 3 {
		t.Fatalf("Count = %d, want 3", lt.Count())
	}
	if _, _, p99 := lt.Percentiles(); p99 > 3 {
		t.Fatalf("old samples still counted, p99 = %f", p99)
	}
}
