package genome

import "testing"

// feedWindow feeds one full sampling period of alternating-noise timings
// around mean, returning the last call's decision.
func feedWindow(o *MutrunOptimizer, mean float64, currentMultiplier int) (int, bool) {
	var m int
	var changed bool
	for i := 0; i < mutrunSampleWindow; i++ {
		m, changed = o.RecordTickDuration(mean+float64(i%2)*0.01, currentMultiplier)
	}
	return m, changed
}

func TestMutrunOptimizerNoDecisionBeforeWindowFills(t *testing.T) {
	o := NewMutrunOptimizer(1)
	for i := 0; i < mutrunSampleWindow-1; i++ {
		if _, changed := o.RecordTickDuration(1.0, 1); changed {
			t.Fatalf("optimizer decided a layout change with only %d baseline samples", i+1)
		}
	}
}

func TestMutrunOptimizerProposesTrialWhenBaselineFills(t *testing.T) {
	o := NewMutrunOptimizer(1)
	m, changed := feedWindow(o, 1.0, 1)
	if !changed || m != 2 {
		t.Fatalf("full baseline should propose the doubled multiplier: got (%d,%v), want (2,true)", m, changed)
	}
}

func TestMutrunOptimizerWinContinuesInSameDirection(t *testing.T) {
	o := NewMutrunOptimizer(1)
	feedWindow(o, 10.0, 1) // baseline at multiplier 1, slow; proposes trial 2

	m, changed := feedWindow(o, 1.0, 2) // trial clearly faster
	if !changed || m != 4 {
		t.Fatalf("a significant win must commit and propose the next doubling: got (%d,%v), want (4,true)", m, changed)
	}
	if o.stasisRemaining != 0 {
		t.Fatalf("a win must not enter stasis; stasisRemaining = %d", o.stasisRemaining)
	}
	if o.currentCount != 2 {
		t.Fatalf("currentCount = %d, want 2 after committing the doubled layout", o.currentCount)
	}
	if !o.trending {
		t.Fatalf("a win must mark the optimizer as trending")
	}
}

func TestMutrunOptimizerLossRevertsAndEntersStasis(t *testing.T) {
	o := NewMutrunOptimizer(1)
	feedWindow(o, 1.0, 1) // baseline fast; proposes trial 2

	m, changed := feedWindow(o, 10.0, 2) // trial clearly slower
	if !changed || m != 1 {
		t.Fatalf("a significant loss must revert to the baseline multiplier: got (%d,%v), want (1,true)", m, changed)
	}
	if o.stasisRemaining != mutrunInitialStasisTicks {
		t.Fatalf("stasisRemaining = %d, want %d after a loss", o.stasisRemaining, mutrunInitialStasisTicks)
	}
}

func TestMutrunOptimizerInconclusiveWhileTrendingExtendsTrial(t *testing.T) {
	o := NewMutrunOptimizer(1)
	feedWindow(o, 10.0, 1) // baseline slow
	feedWindow(o, 1.0, 2)  // win; trending, trial 4 proposed

	// An inconclusive period at the new trial extends sampling instead of
	// deciding.
	m, changed := feedWindow(o, 1.0, 4)
	if changed {
		t.Fatalf("inconclusive-while-trending must extend, not decide: got (%d,%v)", m, changed)
	}
	if o.extensions != 1 {
		t.Fatalf("extensions = %d, want 1", o.extensions)
	}
	if o.stasisRemaining != 0 {
		t.Fatalf("an extended trial must not be in stasis")
	}
}

func TestMutrunOptimizerInconclusiveWithoutTrendEntersStasis(t *testing.T) {
	o := NewMutrunOptimizer(1)
	feedWindow(o, 1.0, 1) // baseline; proposes trial 2 (no trend yet)

	m, changed := feedWindow(o, 1.0, 2) // statistically indistinguishable
	if !changed || m != 1 {
		t.Fatalf("inconclusive without a trend must revert to baseline: got (%d,%v), want (1,true)", m, changed)
	}
	if o.stasisRemaining != mutrunInitialStasisTicks {
		t.Fatalf("stasisRemaining = %d, want %d", o.stasisRemaining, mutrunInitialStasisTicks)
	}
}

func TestMutrunOptimizerStasisDeepensAndIgnoresSamples(t *testing.T) {
	o := NewMutrunOptimizer(1)
	feedWindow(o, 1.0, 1)
	feedWindow(o, 10.0, 2) // loss: stasis begins

	if o.stasisLimit != 2*mutrunInitialStasisTicks {
		t.Fatalf("stasisLimit = %d, want doubled to %d", o.stasisLimit, 2*mutrunInitialStasisTicks)
	}
	if o.alpha != mutrunInitialAlpha/2 {
		t.Fatalf("alpha = %g, want tightened to %g", o.alpha, mutrunInitialAlpha/2)
	}
	for i := 0; i < mutrunInitialStasisTicks; i++ {
		if _, changed := o.RecordTickDuration(100.0, 1); changed {
			t.Fatalf("optimizer changed layout during stasis")
		}
	}
	if o.stasisRemaining != 0 {
		t.Fatalf("stasisRemaining = %d, want 0 after the stasis window elapses", o.stasisRemaining)
	}
}

func TestMutrunOptimizerReprobesOppositeNeighborAfterStasis(t *testing.T) {
	o := NewMutrunOptimizer(4)
	feedWindow(o, 1.0, 4)  // baseline at 4, proposes 8 (doubling)
	feedWindow(o, 10.0, 8) // loss: revert to 4, stasis, direction flips
	for i := 0; i < mutrunInitialStasisTicks; i++ {
		o.RecordTickDuration(1.0, 4)
	}

	m, changed := feedWindow(o, 1.0, 4)
	if !changed || m != 2 {
		t.Fatalf("the post-stasis probe should try the opposite neighbor: got (%d,%v), want (2,true)", m, changed)
	}
}

func TestMutrunOptimizerHalvingSkippedAtMultiplierFloor(t *testing.T) {
	o := NewMutrunOptimizer(1)
	o.direction = -1 // halving impossible at multiplier 1; must flip to doubling
	m, changed := feedWindow(o, 1.0, 1)
	if !changed || m != 2 {
		t.Fatalf("with no halving neighbor the probe must flip to doubling: got (%d,%v), want (2,true)", m, changed)
	}
}

func TestWelchFasterDetectsClearDifference(t *testing.T) {
	a := []float64{1.0, 1.1, 0.9, 1.05, 0.95, 1.0, 1.1, 0.9, 1.0, 1.0}
	b := []float64{5.0, 5.1, 4.9, 5.05, 4.95, 5.0, 5.1, 4.9, 5.0, 5.0}
	faster, significant := welchFaster(a, b, mutrunInitialAlpha)
	if !faster || !significant {
		t.Fatalf("welchFaster(a,b) = (%v,%v), want a clearly faster and significant", faster, significant)
	}
	faster, significant = welchFaster(b, a, mutrunInitialAlpha)
	if faster {
		t.Fatalf("welchFaster(b,a) reported the slower sample as faster")
	}
	if !significant {
		t.Fatalf("welchFaster(b,a) should still report significance")
	}
}

func TestWelchFasterInconclusiveOnOverlappingSamples(t *testing.T) {
	a := []float64{1.0, 2.0, 3.0, 4.0, 5.0, 1.5, 2.5, 3.5, 4.5, 2.0}
	b := []float64{1.2, 2.1, 2.9, 4.1, 4.9, 1.6, 2.4, 3.6, 4.4, 2.2}
	if _, significant := welchFaster(a, b, mutrunInitialAlpha); significant {
		t.Fatalf("near-identical noisy samples should not reach significance")
	}
}
