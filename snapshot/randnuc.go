package snapshot

import (
	"github.com/MesserLab/SLiM-sub011/genome"
)

// NucleotideFormat selects the output representation for
// GenerateRandomNucleotides (§6).
type NucleotideFormat int

const (
	FormatString NucleotideFormat = iota
	FormatChar
	FormatInteger
)

var nucleotideChars = [4]string{"A", "C", "G", "T"}

// GenerateRandomNucleotides draws length nucleotides uniformly under the
// (normalized) basis — a 4-vector of relative A/C/G/T weights, or nil for
// uniform — and returns them in the requested format (§6's
// random-nucleotide generator contract).
//
// Exactly one of the three return values is populated, matching which
// format was requested: a single string for FormatString, one
// one-character string per draw for FormatChar, or an integer in [0,3]
// per draw for FormatInteger.
func GenerateRandomNucleotides(rng *genome.RNGStream, length int, basis []float64, format NucleotideFormat) (asString string, asChars []string, asInts []int) {
	weights := normalizeBasis(basis)

	draws := make([]int, length)
	for i := range draws {
		draws[i] = drawNucleotide(rng, weights)
	}

	switch format {
	case FormatString:
		buf := make([]byte, length)
		for i, d := range draws {
			buf[i] = nucleotideChars[d][0]
		}
		return string(buf), nil, nil
	case FormatChar:
		chars := make([]string, length)
		for i, d := range draws {
			chars[i] = nucleotideChars[d]
		}
		return "", chars, nil
	default:
		return "", nil, draws
	}
}

func normalizeBasis(basis []float64) [4]float64 {
	if len(basis) != 4 {
		return [4]float64{0.25, 0.25, 0.25, 0.25}
	}
	total := basis[0] + basis[1] + basis[2] + basis[3]
	if total <= 0 {
		return [4]float64{0.25, 0.25, 0.25, 0.25}
	}
	var out [4]float64
	for i, v := range basis {
		out[i] = v / total
	}
	return out
}

func drawNucleotide(rng *genome.RNGStream, weights [4]float64) int {
	r := rng.Uniform01()
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r < acc {
			return i
		}
	}
	return 3
}
