package snapshot

import (
	"testing"

	"github.com/MesserLab/SLiM-sub011/genome"
)

// newTestChromosome builds a single-chromosome setup spanning [0,999] with
// nonzero mutation/recombination rates, suitable for exercising every
// output format.
func newTestChromosome(t *testing.T, index int, symbol string) *genome.Chromosome {
	t.Helper()
	mutMap, err := genome.NewRateMap([]int64{999}, []float64{1e-7})
	if err != nil {
		t.Fatalf("NewRateMap: %v", err)
	}
	recMap, err := genome.NewRateMap([]int64{999}, []float64{1e-8})
	if err != nil {
		t.Fatalf("NewRateMap: %v", err)
	}
	c, err := genome.NewChromosome(index, symbol, genome.HaplosomeAutosome, 0, 999, mutMap, recMap, 1)
	if err != nil {
		t.Fatalf("NewChromosome: %v", err)
	}
	return c
}

// insertMutation allocates a non-nucleotide mutation at position in block
// and inserts it into h's first mutation-run slot.
func insertMutation(t *testing.T, block *genome.MutationBlock, h *genome.Haplosome, position int64, id int64) genome.MutationIndex {
	t.Helper()
	idx, err := block.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	*block.MutationForIndex(idx) = genome.Mutation{ID: id, Position: position, Nucleotide: genome.NoNucleotide}
	run := h.WillModifyRunUnshared(0)
	run.InsertSortedMutationIfUnique(idx, position, block)
	return idx
}

// insertExistingMutation inserts an already-allocated mutation index into
// h's first mutation-run slot, so two haplosomes can share one mutation.
func insertExistingMutation(t *testing.T, block *genome.MutationBlock, h *genome.Haplosome, idx genome.MutationIndex) {
	t.Helper()
	run := h.WillModifyRunUnshared(0)
	run.InsertSortedMutationIfUnique(idx, block.MutationForIndex(idx).Position, block)
}

// newTestSpeciesOneSubpop builds a one-chromosome, one-subpopulation
// species with n diploid individuals, each with empty (mutation-free)
// haplosomes ready for insertMutation to populate.
func newTestSpeciesOneSubpop(t *testing.T, n int) (*genome.Species, *genome.MutationBlock, *genome.Chromosome) {
	t.Helper()
	c := newTestChromosome(t, 0, "I")
	species := &genome.Species{
		Chromosomes: []*genome.Chromosome{c},
		Subpops:     map[int32]*genome.Subpopulation{},
	}
	subpop := &genome.Subpopulation{}
	for i := 0; i < n; i++ {
		ind := &genome.Individual{}
		h1 := c.NewHaplosomeNonNull(ind)
		h2 := c.NewHaplosomeNonNull(ind)
		pool := c.PoolForSlot(0)
		for _, h := range []*genome.Haplosome{h1, h2} {
			for slot := 0; slot < h.MutrunCount(); slot++ {
				h.FillRun(slot, pool.NewRun())
			}
		}
		ind.Haplosomes = []*genome.Haplosome{h1, h2}
		subpop.Individuals = append(subpop.Individuals, ind)
	}
	species.Subpops[0] = subpop
	block := genome.NewMutationBlock(1, 64)
	return species, block, c
}
