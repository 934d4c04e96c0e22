package snapshot

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/MesserLab/SLiM-sub011/genome"
)

// WriteMS writes the MS-format output of §6 for one chromosome: header
// `//`, a `segsites: N` line, a `positions:` line of N doubles in [0,1]
// scaled by the chromosome's last position (15-digit precision), then
// one 0/1-string per output haplosome.
func WriteMS(w io.Writer, species *genome.Species, block *genome.MutationBlock, chromosomeIndex int) error {
	bw := bufio.NewWriter(w)
	defer bw.Flush()

	chromosome := species.Chromosomes[chromosomeIndex]
	refs := filterByChromosome(CollectOutputHaplosomes(species), chromosomeIndex)

	positions := collectSegregatingPositions(block, refs)

	fmt.Fprintln(bw, "//")
	fmt.Fprintf(bw, "segsites: %d\n", len(positions))

	if len(positions) > 0 {
		fmt.Fprint(bw, "positions:")
		span := float64(chromosome.LastPosition)
		for _, p := range positions {
			scaled := 0.0
			if span > 0 {
				scaled = float64(p) / span
			}
			fmt.Fprintf(bw, " %.15f", scaled)
		}
		fmt.Fprintln(bw)
	}

	posIndex := make(map[int64]int, len(positions))
	for i, p := range positions {
		posIndex[p] = i
	}

	for _, ref := range refs {
		row := make([]byte, len(positions))
		for i := range row {
			row[i] = '0'
		}
		for slot := 0; slot < ref.Haplosome.MutrunCount(); slot++ {
			run := ref.Haplosome.Run(slot)
			if run == nil {
				continue
			}
			for _, idx := range run.Mutations() {
				pos := block.MutationForIndex(idx).Position
				if i, ok := posIndex[pos]; ok {
					row[i] = '1'
				}
			}
		}
		bw.Write(row)
		fmt.Fprintln(bw)
	}

	return bw.Flush()
}

func filterByChromosome(refs []HaplosomeRef, chromosomeIndex int) []HaplosomeRef {
	var out []HaplosomeRef
	for _, r := range refs {
		if r.Haplosome.ChromosomeIndex == chromosomeIndex {
			out = append(out, r)
		}
	}
	return out
}

func collectSegregatingPositions(block *genome.MutationBlock, refs []HaplosomeRef) []int64 {
	seen := make(map[int64]bool)
	var out []int64
	for _, ref := range refs {
		for slot := 0; slot < ref.Haplosome.MutrunCount(); slot++ {
			run := ref.Haplosome.Run(slot)
			if run == nil {
				continue
			}
			for _, idx := range run.Mutations() {
				pos := block.MutationForIndex(idx).Position
				if !seen[pos] {
					seen[pos] = true
					out = append(out, pos)
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
