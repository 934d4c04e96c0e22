package snapshot

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/MesserLab/SLiM-sub011/genome"
)

// VCFIndividualCall describes one individual's genotype at a site for
// one chromosome: a pair of haplosome pointers (the second nil for
// haploid chromosomes), either of which may itself be a null haplosome
// (no genetic content, e.g. Y in a female) rendered as `~` (§6).
type VCFIndividualCall struct {
	SubpopID int32
	Index    int
	Hap1     *genome.Haplosome
	Hap2     *genome.Haplosome // nil for haploid chromosomes
}

// WriteVCF writes the VCF output of §6 for one chromosome: standard
// header lines plus the SLiM-specific INFO fields (MID, S, DOM, PO, TO,
// MT, AC, DP, AA, MULTIALLELIC, NONNUC flags) and per-individual call
// columns.
func WriteVCF(w io.Writer, species *genome.Species, block *genome.MutationBlock, chromosomeIndex int, chromosomeSymbol string, calls []VCFIndividualCall) error {
	bw := bufio.NewWriter(w)
	defer bw.Flush()

	fmt.Fprintln(bw, "##fileformat=VCFv4.2")
	fmt.Fprintln(bw, `##INFO=<ID=MID,Number=1,Type=Integer,Description="Mutation ID">`)
	fmt.Fprintln(bw, `##INFO=<ID=S,Number=1,Type=Float,Description="Selection Coefficient">`)
	fmt.Fprintln(bw, `##INFO=<ID=DOM,Number=1,Type=Float,Description="Dominance">`)
	fmt.Fprintln(bw, `##INFO=<ID=PO,Number=1,Type=Integer,Description="Population of Origin">`)
	fmt.Fprintln(bw, `##INFO=<ID=TO,Number=1,Type=Integer,Description="Tick of Origin">`)
	fmt.Fprintln(bw, `##INFO=<ID=MT,Number=1,Type=Integer,Description="Mutation Type">`)
	fmt.Fprintln(bw, `##INFO=<ID=AC,Number=1,Type=Integer,Description="Allele Count">`)
	fmt.Fprintln(bw, `##INFO=<ID=DP,Number=1,Type=Integer,Description="Total Depth">`)
	fmt.Fprintln(bw, `##INFO=<ID=AA,Number=1,Type=Character,Description="Ancestral Allele">`)
	fmt.Fprintln(bw, `##INFO=<ID=MULTIALLELIC,Number=0,Type=Flag,Description="Multiallelic">`)
	fmt.Fprintln(bw, `##INFO=<ID=NONNUC,Number=0,Type=Flag,Description="Non-nucleotide-based">`)
	fmt.Fprintln(bw, `##FORMAT=<ID=GT,Number=1,Type=String,Description="Genotype">`)

	fmt.Fprint(bw, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT")
	for _, c := range calls {
		fmt.Fprintf(bw, "\ti%d", c.Index)
	}
	fmt.Fprintln(bw)

	positions := vcfPositions(block, calls)
	for _, pos := range positions {
		idxByType := mutationsAtPosition(block, calls, pos)
		for _, idx := range idxByType {
			m := block.MutationForIndex(idx)
			trait := block.TraitInfoForIndex(idx)
			effect, dominance := 0.0, 0.0
			if len(trait) > 0 {
				effect, dominance = trait[0].Effect, trait[0].Dominance
			}
			ac := alleleCount(idx, calls)
			nonnuc := m.Nucleotide == genome.NoNucleotide

			info := fmt.Sprintf("MID=%d;S=%g;DOM=%g;PO=%d;TO=%d;MT=%d;AC=%d;DP=1000", m.ID, effect, dominance, m.OriginSubpopID, m.OriginTick, m.MutationTypeID, ac)
			if !nonnuc {
				info += fmt.Sprintf(";AA=%s", nucleotideChar(m.Nucleotide))
			} else {
				info += ";NONNUC"
			}
			if len(idxByType) > 1 {
				info += ";MULTIALLELIC"
			}

			fmt.Fprintf(bw, "%s\t%d\t.\tA\tT\t.\t.\t%s\tGT", chromosomeSymbol, pos+1, info)
			for _, c := range calls {
				fmt.Fprint(bw, "\t", vcfGenotype(idx, block, c))
			}
			fmt.Fprintln(bw)
		}
	}

	return bw.Flush()
}

func vcfPositions(block *genome.MutationBlock, calls []VCFIndividualCall) []int64 {
	seen := make(map[int64]bool)
	var out []int64
	visit := func(h *genome.Haplosome) {
		if h == nil || h.IsNull() {
			return
		}
		for slot := 0; slot < h.MutrunCount(); slot++ {
			run := h.Run(slot)
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
	for _, c := range calls {
		visit(c.Hap1)
		visit(c.Hap2)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func mutationsAtPosition(block *genome.MutationBlock, calls []VCFIndividualCall, pos int64) []genome.MutationIndex {
	seen := make(map[genome.MutationIndex]bool)
	var out []genome.MutationIndex
	visit := func(h *genome.Haplosome) {
		if h == nil || h.IsNull() {
			return
		}
		for slot := 0; slot < h.MutrunCount(); slot++ {
			run := h.Run(slot)
			if run == nil {
				continue
			}
			for _, idx := range run.Mutations() {
				if block.MutationForIndex(idx).Position == pos && !seen[idx] {
					seen[idx] = true
					out = append(out, idx)
				}
			}
		}
	}
	for _, c := range calls {
		visit(c.Hap1)
		visit(c.Hap2)
	}
	sort.Slice(out, func(i, j int) bool { return block.MutationForIndex(out[i]).ID < block.MutationForIndex(out[j]).ID })
	return out
}

func alleleCount(idx genome.MutationIndex, calls []VCFIndividualCall) int {
	count := 0
	check := func(h *genome.Haplosome) {
		if h == nil || h.IsNull() {
			return
		}
		for slot := 0; slot < h.MutrunCount(); slot++ {
			if run := h.Run(slot); run != nil {
				for _, v := range run.Mutations() {
					if v == idx {
						count++
					}
				}
			}
		}
	}
	for _, c := range calls {
		check(c.Hap1)
		check(c.Hap2)
	}
	return count
}

// vcfGenotype renders one individual's call for mutation idx: `0|1`
// pairs for diploid, `0`/`1` for haploid, `~` for no genetic content
// (§6, scenario 6: Y-only chromosome in a female).
func vcfGenotype(idx genome.MutationIndex, block *genome.MutationBlock, c VCFIndividualCall) string {
	allele := func(h *genome.Haplosome) string {
		if h == nil || h.IsNull() {
			return "~"
		}
		if h.ContainsMutation(idx, block) {
			return "1"
		}
		return "0"
	}
	if c.Hap2 == nil {
		return allele(c.Hap1)
	}
	a1, a2 := allele(c.Hap1), allele(c.Hap2)
	if a1 == "~" && a2 == "~" {
		return "~"
	}
	return a1 + "|" + a2
}

func nucleotideChar(n int8) string {
	switch n {
	case 0:
		return "A"
	case 1:
		return "C"
	case 2:
		return "G"
	case 3:
		return "T"
	default:
		return "N"
	}
}
