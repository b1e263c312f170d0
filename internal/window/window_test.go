package window

import (
	"math"
	"testing"
)

func TestMeanEmpty(t *testing.T) {
	r := New(10)
	if _, ok := r.Mean(); ok {
		t.Fatal("expected no mean on empty window")
	}
}

func TestMeanPartialWindow(t *testing.T) {
	r := New(10)
	r.Push(0.2)
	r.Push(0.4)
	r.Push(0.9)

	mean, ok := r.Mean()
	if !ok {
		t.Fatal("expected mean")
	}
	if math.Abs(mean-0.5) > 1e-12 {
		t.Fatalf("expected 0.5 over 3 samples, got %f", mean)
	}
	if r.Len() != 3 {
		t.Fatalf("expected len 3, got %d", r.Len())
	}
}

func TestEvictsOldest(t *testing.T) {
	r := New(3)
	for _, v := range []float64{1, 2, 3} {
		r.Push(v)
	}
	r.Push(4)

	got := r.Values()
	want := []float64{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("expected %d values, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: expected %f, got %f", i, want[i], got[i])
		}
	}
	mean, _ := r.Mean()
	if mean != 3 {
		t.Fatalf("expected mean 3, got %f", mean)
	}
}

func TestNeverExceedsCapacity(t *testing.T) {
	r := New(10)
	for i := 0; i < 1000; i++ {
		r.Push(float64(i))
		if r.Len() > r.Cap() {
			t.Fatalf("len %d exceeds cap %d at push %d", r.Len(), r.Cap(), i)
		}
	}
	vals := r.Values()
	if vals[0] != 990 || vals[9] != 999 {
		t.Fatalf("unexpected window contents: %v", vals)
	}
}

func TestCapacityCoerced(t *testing.T) {
	r := New(0)
	if r.Cap() != 1 {
		t.Fatalf("expected cap 1, got %d", r.Cap())
	}
	r.Push(5)
	r.Push(7)
	if v := r.Values(); len(v) != 1 || v[0] != 7 {
		t.Fatalf("expected [7], got %v", v)
	}
}

func TestReset(t *testing.T) {
	r := New(4)
	r.Push(1)
	r.Push(2)
	r.Reset()
	if r.Len() != 0 {
		t.Fatalf("expected empty after reset, got %d", r.Len())
	}
	r.Push(9)
	if mean, _ := r.Mean(); mean != 9 {
		t.Fatalf("expected 9, got %f", mean)
	}
}
