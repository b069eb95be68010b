package desim

import "testing"

func TestSampleTracker_Percentile(t *testing.T) {
	tr := NewSampleTracker()
	for _, v := range []float64{10, 20, 30, 40, 50} {
		tr.Record(v)
	}
	if tr.Count() != 5 {
		t.Fatalf("Count() = %d, want 5", tr.Count())
	}
	if got := tr.Percentile(0); got != 10 {
		t.Errorf("Percentile(0) = %v, want 10", got)
	}
	if got := tr.Percentile(100); got != 50 {
		t.Errorf("Percentile(100) = %v, want 50", got)
	}
	if got := tr.Percentile(50); got != 30 {
		t.Errorf("Percentile(50) = %v, want 30", got)
	}
}

func TestSampleTracker_EmptyReturnsZero(t *testing.T) {
	tr := NewSampleTracker()
	if got := tr.Percentile(95); got != 0 {
		t.Errorf("Percentile on empty tracker = %v, want 0", got)
	}
}

func TestSampleTracker_DoesNotMutateInputOrder(t *testing.T) {
	tr := NewSampleTracker()
	tr.Record(3)
	tr.Record(1)
	tr.Record(2)

	_ = tr.Percentile(50)
	if tr.samples[0] != 3 || tr.samples[1] != 1 || tr.samples[2] != 2 {
		t.Error("Percentile must sort a copy, not the recorded samples in place")
	}
}
