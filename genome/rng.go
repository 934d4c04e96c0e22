package genome

import (
	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/stat/distuv"
)

// RNGStream is one thread's random-number source (§5's EIDOS_GSL_RNG(thread_num)
// analogue): a seeded generator plus the Poisson/geometric/uniform draws the
// genetic-state engine needs, none of them shared across threads.
type RNGStream struct {
	src *rand.Rand
}

// NewRNGStream seeds a stream deterministically from a base seed and the
// thread's index, so a fixed (base seed, thread index) pair always yields
// the same sequence of draws. Which stream draws for which child is not
// fixed: Species.generateOffspring hands each job to whichever worker
// takes it next, so a whole run is not reproduced bit-for-bit across
// different interleavings.
func NewRNGStream(baseSeed int64, threadIndex int) *RNGStream {
	return &RNGStream{src: rand.New(rand.NewSource(uint64(baseSeed) ^ uint64(threadIndex)*0x9E3779B97F4A7C15))}
}

// Uniform01 draws a uniform variate in [0,1).
func (s *RNGStream) Uniform01() float64 { return s.src.Float64() }

// UniformInt draws a uniform integer in [0, n).
func (s *RNGStream) UniformInt(n int64) int64 {
	if n <= 0 {
		return 0
	}
	return s.src.Int63n(n)
}

// Poisson draws a Poisson(mean) count.
func (s *RNGStream) Poisson(mean float64) int64 {
	if mean <= 0 {
		return 0
	}
	d := distuv.Poisson{Lambda: mean, Src: s.src}
	return int64(d.Rand())
}

// TruncatedPoisson draws a Poisson(mean) count conditioned on being >= 1,
// used in crossover-mutation's joint-draw regime once the zero case has
// already been ruled out by the precomputed cumulative probabilities.
func (s *RNGStream) TruncatedPoisson(mean float64) int64 {
	for {
		if n := s.Poisson(mean); n > 0 {
			return n
		}
	}
}

// Geometric draws a geometric count with the given mean (>=1), used for
// gene-conversion tract lengths.
func (s *RNGStream) Geometric(mean float64) int64 {
	if mean < 1 {
		mean = 1
	}
	p := 1.0 / mean
	d := distuv.Bernoulli{P: p, Src: s.src}
	n := int64(1)
	for d.Rand() == 0 {
		n++
	}
	return n
}

// Bernoulli draws a boolean true with probability p.
func (s *RNGStream) Bernoulli(p float64) bool {
	return s.src.Float64() < p
}

// Exponential draws an exponential variate with the given rate.
func (s *RNGStream) Exponential(rate float64) float64 {
	d := distuv.Exponential{Rate: rate, Src: s.src}
	return d.Rand()
}

// WeightedIndex picks an index in [0,len(weights)) proportional to weight,
// used for parent sampling and recombination sub-interval selection.
func (s *RNGStream) WeightedIndex(weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return 0
	}
	r := s.src.Float64() * total
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r < acc {
			return i
		}
	}
	return len(weights) - 1
}
