package genome

import "testing"

func TestRNGStreamDeterministicPerSeedAndThread(t *testing.T) {
	a := NewRNGStream(42, 0)
	b := NewRNGStream(42, 0)

	for i := 0; i < 10; i++ {
		va, vb := a.Uniform01(), b.Uniform01()
		if va != vb {
			t.Fatalf("two streams with the same seed/thread diverged at draw %d: %g != %g", i, va, vb)
		}
	}
}

func TestRNGStreamDistinctThreadsDiverge(t *testing.T) {
	a := NewRNGStream(42, 0)
	b := NewRNGStream(42, 1)

	same := true
	for i := 0; i < 10; i++ {
		if a.Uniform01() != b.Uniform01() {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("streams for different thread indices produced identical sequences")
	}
}

func TestRNGStreamUniformIntBounds(t *testing.T) {
	r := NewRNGStream(1, 0)
	for i := 0; i < 200; i++ {
		v := r.UniformInt(5)
		if v < 0 || v >= 5 {
			t.Fatalf("UniformInt(5) returned out-of-range value %d", v)
		}
	}
	if r.UniformInt(0) != 0 {
		t.Fatalf("UniformInt(0) should return 0, not panic or draw")
	}
}

func TestRNGStreamPoissonZeroMean(t *testing.T) {
	r := NewRNGStream(1, 0)
	if n := r.Poisson(0); n != 0 {
		t.Fatalf("Poisson(0) = %d, want 0", n)
	}
}

func TestRNGStreamTruncatedPoissonNeverZero(t *testing.T) {
	r := NewRNGStream(1, 0)
	for i := 0; i < 50; i++ {
		if n := r.TruncatedPoisson(0.05); n < 1 {
			t.Fatalf("TruncatedPoisson returned %d, want >= 1", n)
		}
	}
}

func TestRNGStreamGeometricAtLeastOne(t *testing.T) {
	r := NewRNGStream(1, 0)
	for i := 0; i < 50; i++ {
		if n := r.Geometric(3.0); n < 1 {
			t.Fatalf("Geometric returned %d, want >= 1", n)
		}
	}
}

func TestRNGStreamWeightedIndexRespectsZeroWeights(t *testing.T) {
	r := NewRNGStream(1, 0)
	weights := []float64{0, 0, 5, 0}
	for i := 0; i < 50; i++ {
		if idx := r.WeightedIndex(weights); idx != 2 {
			t.Fatalf("WeightedIndex picked index %d, want the only nonzero-weight index 2", idx)
		}
	}
}

func TestRNGStreamWeightedIndexAllZero(t *testing.T) {
	r := NewRNGStream(1, 0)
	if idx := r.WeightedIndex([]float64{0, 0, 0}); idx != 0 {
		t.Fatalf("WeightedIndex with all-zero weights should fall back to index 0, got %d", idx)
	}
}

func TestRNGStreamBernoulliExtremes(t *testing.T) {
	r := NewRNGStream(1, 0)
	for i := 0; i < 20; i++ {
		if r.Bernoulli(0) {
			t.Fatalf("Bernoulli(0) returned true")
		}
	}
}
