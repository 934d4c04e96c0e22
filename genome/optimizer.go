package genome

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// mutrunSampleWindow is how many tick timings are accumulated per
// sampling period before a Welch's t-test comparison is attempted (§4.5).
const mutrunSampleWindow = 10

// mutrunInitialStasisTicks is the first stasis hold; each subsequent
// stasis entry doubles the hold up to mutrunMaxStasisTicks, so a layout
// that has stopped improving gets probed less and less often (§4.5).
const (
	mutrunInitialStasisTicks = 10
	mutrunMaxStasisTicks     = 640
)

// mutrunInitialAlpha is the starting significance threshold; each stasis
// entry halves it down to mutrunMinAlpha, so deeper stasis demands
// stronger evidence before a layout change (§4.5).
const (
	mutrunInitialAlpha = 0.05
	mutrunMinAlpha     = 0.005
)

// mutrunMaxTrialExtensions bounds how many extra sampling periods an
// inconclusive-but-trending trial is granted before it is abandoned.
const mutrunMaxTrialExtensions = 2

// MutrunOptimizer self-tunes a chromosome's mutrun count by timing ticks
// at the current layout, trialing a neighboring multiplier (double or
// half), and comparing the two samples with Welch's two-sample t-test
// (§4.5). Transition rules: a significant win commits the trial and
// keeps moving in the same direction; a significant loss reverts and
// enters stasis; an inconclusive result extends the trial while a trend
// is running, and otherwise reverts into stasis. Stasis holds grow and
// the significance threshold tightens each time stasis is entered, and
// each stasis exit re-probes toward the opposite neighbor.
//
// RecordTickDuration's (multiplier, true) return tells the caller to
// switch the chromosome's mutrun layout to that multiplier before the
// next measured tick; timings fed afterwards are attributed to it.
type MutrunOptimizer struct {
	currentCount int

	currentSamples []float64
	trialSamples   []float64

	baselineMultiplier int
	trialMultiplier    int // 0 while accumulating a baseline
	direction          int // +1 doubling, -1 halving
	trending           bool
	extensions         int

	stasisRemaining int
	stasisLimit     int
	alpha           float64
}

// NewMutrunOptimizer starts an optimizer pinned at the chromosome's
// current mutrun count, idle until enough samples accumulate.
func NewMutrunOptimizer(currentCount int) *MutrunOptimizer {
	return &MutrunOptimizer{
		currentCount: currentCount,
		direction:    1,
		stasisLimit:  mutrunInitialStasisTicks,
		alpha:        mutrunInitialAlpha,
	}
}

// nextMultiplier steps a multiplier one notch in direction, or returns 0
// when the power-of-two [1,1024] domain has no neighbor that way.
func nextMultiplier(multiplier, direction int) int {
	if direction > 0 {
		if multiplier < 1024 {
			return multiplier * 2
		}
		return 0
	}
	if multiplier > 1 {
		return multiplier / 2
	}
	return 0
}

// RecordTickDuration feeds one tick's measured generation-time into the
// optimizer. It returns (newMultiplier, true) when the caller should
// switch the chromosome to that multiplier for the next sampling period,
// or (0, false) when the layout should stay as it is.
func (o *MutrunOptimizer) RecordTickDuration(seconds float64, currentMultiplier int) (int, bool) {
	if o.stasisRemaining > 0 {
		o.stasisRemaining--
		return 0, false
	}

	if o.trialMultiplier == 0 {
		o.currentSamples = append(o.currentSamples, seconds)
		if len(o.currentSamples) < mutrunSampleWindow {
			return 0, false
		}
		next := nextMultiplier(currentMultiplier, o.direction)
		if next == 0 {
			o.direction = -o.direction
			next = nextMultiplier(currentMultiplier, o.direction)
		}
		if next == 0 {
			o.currentSamples = o.currentSamples[:0]
			return 0, false
		}
		o.baselineMultiplier = currentMultiplier
		o.trialMultiplier = next
		return next, true
	}

	o.trialSamples = append(o.trialSamples, seconds)
	if len(o.trialSamples) < mutrunSampleWindow*(1+o.extensions) {
		return 0, false
	}

	faster, significant := welchFaster(o.trialSamples, o.currentSamples, o.alpha)
	switch {
	case significant && faster:
		// Commit the win and continue in the same direction: the trial
		// sample becomes the new baseline, and the next neighbor becomes
		// the new trial.
		o.currentCount = o.currentCount / o.baselineMultiplier * o.trialMultiplier
		o.currentSamples = append(o.currentSamples[:0], o.trialSamples...)
		o.trialSamples = o.trialSamples[:0]
		o.extensions = 0
		o.trending = true
		committed := o.trialMultiplier
		o.baselineMultiplier = committed
		next := nextMultiplier(committed, o.direction)
		if next == 0 {
			// Domain edge: hold the winning layout in stasis.
			o.trialMultiplier = 0
			o.enterStasis()
			return 0, false
		}
		o.trialMultiplier = next
		return next, true
	case significant && !faster:
		reverted := o.baselineMultiplier
		o.resetExperiment()
		o.enterStasis()
		return reverted, true
	default:
		if o.trending && o.extensions < mutrunMaxTrialExtensions {
			o.extensions++
			return 0, false
		}
		reverted := o.baselineMultiplier
		o.resetExperiment()
		o.enterStasis()
		return reverted, true
	}
}

func (o *MutrunOptimizer) resetExperiment() {
	o.currentSamples = o.currentSamples[:0]
	o.trialSamples = o.trialSamples[:0]
	o.trialMultiplier = 0
	o.extensions = 0
	o.trending = false
}

// enterStasis holds the current layout for the present stasis limit,
// then deepens: the next hold is twice as long, the next decision needs
// a tighter alpha, and the next probe tries the opposite neighbor.
func (o *MutrunOptimizer) enterStasis() {
	o.stasisRemaining = o.stasisLimit
	if o.stasisLimit < mutrunMaxStasisTicks {
		o.stasisLimit *= 2
	}
	if o.alpha/2 >= mutrunMinAlpha {
		o.alpha /= 2
	}
	o.direction = -o.direction
}

// welchFaster reports whether a's mean is significantly less than b's
// mean by Welch's two-sample t-test (unequal variances), and whether the
// difference clears the supplied significance threshold.
func welchFaster(a, b []float64, alpha float64) (faster bool, significant bool) {
	meanA, varA := stat.MeanVariance(a, nil)
	meanB, varB := stat.MeanVariance(b, nil)
	nA, nB := float64(len(a)), float64(len(b))

	se := math.Sqrt(varA/nA + varB/nB)
	if se == 0 {
		return meanA < meanB, meanA != meanB
	}

	t := (meanA - meanB) / se

	// Welch-Satterthwaite degrees of freedom.
	num := math.Pow(varA/nA+varB/nB, 2)
	den := math.Pow(varA/nA, 2)/(nA-1) + math.Pow(varB/nB, 2)/(nB-1)
	df := num / den

	p := twoSidedTProb(t, df)
	return t < 0, p < alpha
}

// twoSidedTProb approximates the two-sided p-value for Student's
// t-distribution via a normal approximation, adequate for the modest
// sample sizes and loose significance thresholds the optimizer uses.
func twoSidedTProb(t, df float64) float64 {
	if df <= 0 {
		return 1
	}
	// Correction factor that narrows the normal approximation toward
	// the heavier-tailed t-distribution for small df.
	adj := t / math.Sqrt(1+t*t/df)
	p := 2 * (1 - standardNormalCDF(math.Abs(adj)))
	return p
}

func standardNormalCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}
