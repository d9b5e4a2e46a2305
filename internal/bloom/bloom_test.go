package bloom

import (
	"fmt"
	"testing"
)

func TestFilter_NoFalseNegatives(t *testing.T) {
	f := New(10_000, 0.01)

	ids := make([][]byte, 0, 10_000)
	for i := 0; i < 10_000; i++ {
		id := []byte(fmt.Sprintf("doc-%d", i))
		f.Add(id)
		ids = append(ids, id)
	}

	for _, id := range ids {
		if !f.MightContain(id) {
			t.Fatalf("MightContain(%s) = false, want true (no false negatives allowed)", id)
		}
	}
}

func TestFilter_FalsePositiveRateBounded(t *testing.T) {
	const n = 10_000
	const p = 0.01
	f := New(n, p)

	for i := 0; i < n; i++ {
		f.Add([]byte(fmt.Sprintf("present-%d", i)))
	}

	falsePositives := 0
	const trials = 10_000
	for i := 0; i < trials; i++ {
		id := []byte(fmt.Sprintf("absent-%d", i))
		if f.MightContain(id) {
			falsePositives++
		}
	}

	rate := float64(falsePositives) / float64(trials)
	if rate > 2*p {
		t.Fatalf("false positive rate %.4f exceeds 2x target (%.4f)", rate, 2*p)
	}
}

func TestNew_DegenerateInputs(t *testing.T) {
	// Zero items and out-of-range p should not panic and should still
	// produce a usable filter.
	f := New(0, 0)
	f.Add([]byte("x"))
	if !f.MightContain([]byte("x")) {
		t.Fatal("MightContain after Add on degenerate filter = false, want true")
	}
}

func TestFilter_SizingMatchesFormula(t *testing.T) {
	f := New(1_000_000, 0.01)
	if f.M() == 0 || f.K() == 0 {
		t.Fatalf("expected non-zero m and k, got m=%d k=%d", f.M(), f.K())
	}
	// For n=1e6, p=0.01 the standard formula yields roughly 9.6M bits and 7 probes.
	if f.K() < 5 || f.K() > 10 {
		t.Fatalf("k = %d, expected in [5,10] for p=0.01", f.K())
	}
}
