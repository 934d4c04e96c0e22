package treeseq

import (
	"fmt"
	"math"

	"github.com/MesserLab/SLiM-sub011/genome"
)

// CrossCheck reconstructs each living haplosome's mutation set from the
// recorded tables — the mutations on its own node plus, walking edges
// upward, the mutations recorded on every ancestor node within the
// interval each edge chain covers — and compares it against the
// in-memory haplosome. Discrepancy is a fatal internal error (§4.9, §7).
func (r *Recorder) CrossCheck(aliveIndividuals []*genome.Individual, block *genome.MutationBlock) error {
	for _, ind := range aliveIndividuals {
		for _, h := range ind.Haplosomes {
			if h == nil || h.IsNull() {
				continue
			}
			if h.TreeSeqNodeID == genome.NoTreeSeqNode {
				continue
			}
			tc := r.Collections[h.ChromosomeIndex]
			recorded := reconstructPositionsForNode(tc, h.TreeSeqNodeID)
			if err := crossCheckHaplosome(h, block, recorded); err != nil {
				return err
			}
		}
	}
	return nil
}

// reconstructPositionsForNode collects every recorded mutation position
// visible to node: mutations on the node itself over its full extent,
// plus mutations on each ancestor restricted to the intersection of the
// edge intervals along the path to it.
func reconstructPositionsForNode(tc *TableCollection, node int64) map[int64]bool {
	positionBySite := make(map[int64]int64, tc.Sites.Len())
	for _, s := range tc.Sites.Rows() {
		positionBySite[s.ID] = s.Position
	}
	mutsByNode := make(map[int64][]int64)
	for _, m := range tc.Mutations.Rows() {
		mutsByNode[m.NodeID] = append(mutsByNode[m.NodeID], positionBySite[m.SiteID])
	}
	edgesByChild := make(map[int64][]EdgeRow)
	for _, e := range tc.Edges.Rows() {
		edgesByChild[e.ChildNode] = append(edgesByChild[e.ChildNode], e)
	}

	out := make(map[int64]bool)
	var walk func(n, left, right int64)
	walk = func(n, left, right int64) {
		for _, pos := range mutsByNode[n] {
			if pos >= left && pos < right {
				out[pos] = true
			}
		}
		for _, e := range edgesByChild[n] {
			lo, hi := left, right
			if e.Left > lo {
				lo = e.Left
			}
			if e.Right < hi {
				hi = e.Right
			}
			if lo < hi {
				walk(e.ParentNode, lo, hi)
			}
		}
	}
	walk(node, math.MinInt64, math.MaxInt64)
	return out
}

func crossCheckHaplosome(h *genome.Haplosome, block *genome.MutationBlock, recorded map[int64]bool) error {
	expected := make(map[int64]bool)
	for slot := 0; slot < h.MutrunCount(); slot++ {
		run := h.Run(slot)
		if run == nil {
			continue
		}
		for _, idx := range run.Mutations() {
			expected[block.MutationForIndex(idx).Position] = true
		}
	}

	for pos := range expected {
		if !recorded[pos] {
			return fmt.Errorf("treeseq: cross-check failed: haplosome node %d has mutation at position %d in memory but not recorded", h.TreeSeqNodeID, pos)
		}
	}
	for pos := range recorded {
		if !expected[pos] {
			return fmt.Errorf("treeseq: cross-check failed: haplosome node %d has recorded mutation at position %d not present in memory", h.TreeSeqNodeID, pos)
		}
	}
	return nil
}
