package treeseq

import (
	"testing"

	"github.com/MesserLab/SLiM-sub011/genome"
)

func newTestChromosomeForCrossCheck(t *testing.T) *genome.Chromosome {
	t.Helper()
	mutMap, err := genome.NewRateMap([]int64{999}, []float64{1e-7})
	if err != nil {
		t.Fatalf("NewRateMap: %v", err)
	}
	recMap, err := genome.NewRateMap([]int64{999}, []float64{1e-8})
	if err != nil {
		t.Fatalf("NewRateMap: %v", err)
	}
	c, err := genome.NewChromosome(0, "I", genome.HaplosomeAutosome, 0, 999, mutMap, recMap, 1)
	if err != nil {
		t.Fatalf("NewChromosome: %v", err)
	}
	return c
}

func TestCrossCheckPassesWhenRecordedMatchesInMemory(t *testing.T) {
	c := newTestChromosomeForCrossCheck(t)
	block := genome.NewMutationBlock(0, 64)
	idx, err := block.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	*block.MutationForIndex(idx) = genome.Mutation{Position: 300}

	ind := &genome.Individual{}
	h := c.NewHaplosomeNonNull(ind)
	pool := c.PoolForSlot(0)
	for slot := 0; slot < h.MutrunCount(); slot++ {
		h.FillRun(slot, pool.NewRun())
	}
	run := h.WillModifyRunUnshared(0)
	run.InsertSortedMutationIfUnique(idx, 300, block)

	r := NewRecorder(1, 0, 0)
	nodeID := r.NewNode(0, 1)
	h.TreeSeqNodeID = nodeID
	r.RecordMutationSite(0, nodeID, block.MutationForIndex(idx))
	ind.Haplosomes = []*genome.Haplosome{h}

	if err := r.CrossCheck([]*genome.Individual{ind}, block); err != nil {
		t.Fatalf("CrossCheck: %v", err)
	}
}

func TestCrossCheckFailsWhenInMemoryMutationWasNeverRecorded(t *testing.T) {
	c := newTestChromosomeForCrossCheck(t)
	block := genome.NewMutationBlock(0, 64)
	idx, err := block.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	*block.MutationForIndex(idx) = genome.Mutation{Position: 300}

	ind := &genome.Individual{}
	h := c.NewHaplosomeNonNull(ind)
	pool := c.PoolForSlot(0)
	for slot := 0; slot < h.MutrunCount(); slot++ {
		h.FillRun(slot, pool.NewRun())
	}
	run := h.WillModifyRunUnshared(0)
	run.InsertSortedMutationIfUnique(idx, 300, block)

	r := NewRecorder(1, 0, 0)
	nodeID := r.NewNode(0, 1)
	h.TreeSeqNodeID = nodeID
	// Deliberately skip RecordMutationSite.
	ind.Haplosomes = []*genome.Haplosome{h}

	if err := r.CrossCheck([]*genome.Individual{ind}, block); err == nil {
		t.Fatalf("expected CrossCheck to fail when an in-memory mutation was never recorded")
	}
}

func TestCrossCheckFailsWhenRecordedMutationMissingFromMemory(t *testing.T) {
	c := newTestChromosomeForCrossCheck(t)
	block := genome.NewMutationBlock(0, 64)

	ind := &genome.Individual{}
	h := c.NewHaplosomeNonNull(ind)
	pool := c.PoolForSlot(0)
	for slot := 0; slot < h.MutrunCount(); slot++ {
		h.FillRun(slot, pool.NewRun())
	}

	r := NewRecorder(1, 0, 0)
	nodeID := r.NewNode(0, 1)
	h.TreeSeqNodeID = nodeID
	r.RecordMutationSite(0, nodeID, &genome.Mutation{Position: 42})
	ind.Haplosomes = []*genome.Haplosome{h}

	if err := r.CrossCheck([]*genome.Individual{ind}, block); err == nil {
		t.Fatalf("expected CrossCheck to fail when a recorded mutation is absent in memory")
	}
}

func TestCrossCheckSkipsNullHaplosomes(t *testing.T) {
	c := newTestChromosomeForCrossCheck(t)
	block := genome.NewMutationBlock(0, 64)
	ind := &genome.Individual{}
	h := c.NewHaplosomeNull(ind)
	ind.Haplosomes = []*genome.Haplosome{h}

	r := NewRecorder(1, 0, 0)
	if err := r.CrossCheck([]*genome.Individual{ind}, block); err != nil {
		t.Fatalf("CrossCheck over a null haplosome should be a no-op, got: %v", err)
	}
}

func TestCrossCheckSeesInheritedMutationsThroughEdges(t *testing.T) {
	c := newTestChromosomeForCrossCheck(t)
	block := genome.NewMutationBlock(0, 64)
	idx, err := block.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	*block.MutationForIndex(idx) = genome.Mutation{Position: 300}

	// The mutation is recorded on the parent's node; the child inherits it
	// through an edge covering the position, with nothing recorded on the
	// child's own node.
	r := NewRecorder(1, 0, 0)
	parentNode := r.NewNode(0, 1)
	childNode := r.NewNode(0, 2)
	r.RecordMutationSite(0, parentNode, block.MutationForIndex(idx))
	r.RecordEdge(0, 0, 1000, parentNode, childNode)

	ind := &genome.Individual{}
	h := c.NewHaplosomeNonNull(ind)
	pool := c.PoolForSlot(0)
	for slot := 0; slot < h.MutrunCount(); slot++ {
		h.FillRun(slot, pool.NewRun())
	}
	run := h.WillModifyRunUnshared(0)
	run.InsertSortedMutationIfUnique(idx, 300, block)
	h.TreeSeqNodeID = childNode
	ind.Haplosomes = []*genome.Haplosome{h}

	if err := r.CrossCheck([]*genome.Individual{ind}, block); err != nil {
		t.Fatalf("CrossCheck should see the inherited mutation through the edge: %v", err)
	}
}

func TestCrossCheckEdgeIntervalClipsInheritedMutations(t *testing.T) {
	c := newTestChromosomeForCrossCheck(t)
	block := genome.NewMutationBlock(0, 64)
	idx, err := block.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	*block.MutationForIndex(idx) = genome.Mutation{Position: 300}

	// The edge to the parent covers only [500, 1000): the parent's
	// mutation at 300 must NOT be attributed to the child, so a child
	// carrying it in memory fails the check.
	r := NewRecorder(1, 0, 0)
	parentNode := r.NewNode(0, 1)
	childNode := r.NewNode(0, 2)
	r.RecordMutationSite(0, parentNode, block.MutationForIndex(idx))
	r.RecordEdge(0, 500, 1000, parentNode, childNode)

	ind := &genome.Individual{}
	h := c.NewHaplosomeNonNull(ind)
	pool := c.PoolForSlot(0)
	for slot := 0; slot < h.MutrunCount(); slot++ {
		h.FillRun(slot, pool.NewRun())
	}
	run := h.WillModifyRunUnshared(0)
	run.InsertSortedMutationIfUnique(idx, 300, block)
	h.TreeSeqNodeID = childNode
	ind.Haplosomes = []*genome.Haplosome{h}

	if err := r.CrossCheck([]*genome.Individual{ind}, block); err == nil {
		t.Fatalf("expected CrossCheck to fail: the edge interval does not cover the mutation's position")
	}
}
