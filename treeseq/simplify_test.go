package treeseq

import (
	"testing"

	"github.com/MesserLab/SLiM-sub011/genome"
)

func TestSimplifyPrunesEdgesAndMutationsUnreachableFromSamples(t *testing.T) {
	r := NewRecorder(1, 0, 0)
	tc := r.Collections[0]

	// ancestor -> middle -> sample, plus an unrelated dead branch.
	ancestor := tc.Nodes.Add(NodeRow{IndividualID: -1})
	middle := tc.Nodes.Add(NodeRow{IndividualID: -1})
	sample := tc.Nodes.Add(NodeRow{IndividualID: -1})
	deadBranchParent := tc.Nodes.Add(NodeRow{IndividualID: -1})
	deadBranchChild := tc.Nodes.Add(NodeRow{IndividualID: -1})

	tc.Edges.Add(EdgeRow{Left: 0, Right: 100, ParentNode: ancestor, ChildNode: middle})
	tc.Edges.Add(EdgeRow{Left: 0, Right: 100, ParentNode: middle, ChildNode: sample})
	tc.Edges.Add(EdgeRow{Left: 0, Right: 100, ParentNode: deadBranchParent, ChildNode: deadBranchChild})

	siteID := tc.Sites.SiteIDForPosition(50)
	tc.Mutations.Add(MutationRow{SiteID: siteID, NodeID: sample})
	tc.Mutations.Add(MutationRow{SiteID: siteID, NodeID: deadBranchChild})

	ind := &genome.Individual{Haplosomes: []*genome.Haplosome{haplosomeWithTreeSeqNode(sample)}}
	r.Simplify([]*genome.Individual{ind})

	for _, e := range tc.Edges.Rows() {
		if e.ChildNode == deadBranchChild {
			t.Fatalf("dead branch edge should have been pruned: %+v", e)
		}
	}
	foundAncestorEdge, foundMiddleEdge := false, false
	for _, e := range tc.Edges.Rows() {
		if e.ChildNode == middle {
			foundAncestorEdge = true
		}
		if e.ChildNode == sample {
			foundMiddleEdge = true
		}
	}
	if !foundAncestorEdge || !foundMiddleEdge {
		t.Fatalf("edges on the path to the sample must survive simplification")
	}
	for _, m := range tc.Mutations.Rows() {
		if m.NodeID == deadBranchChild {
			t.Fatalf("mutation on the dead branch should have been pruned")
		}
	}
}

func TestIsSingleRootAfterSimplifyWithOneLineage(t *testing.T) {
	r := NewRecorder(1, 0, 0)
	tc := r.Collections[0]
	root := tc.Nodes.Add(NodeRow{IndividualID: -1})
	child := tc.Nodes.Add(NodeRow{IndividualID: -1})
	tc.Edges.Add(EdgeRow{Left: 0, Right: 100, ParentNode: root, ChildNode: child})

	ind := &genome.Individual{Haplosomes: []*genome.Haplosome{haplosomeWithTreeSeqNode(child)}}
	r.Simplify([]*genome.Individual{ind})

	if !r.IsCoalesced(0) {
		t.Fatalf("a single root/child lineage must be reported as coalesced")
	}
}

func TestIsSingleRootFalseWithTwoDisjointRoots(t *testing.T) {
	r := NewRecorder(1, 0, 0)
	tc := r.Collections[0]
	root1 := tc.Nodes.Add(NodeRow{IndividualID: -1})
	child1 := tc.Nodes.Add(NodeRow{IndividualID: -1})
	root2 := tc.Nodes.Add(NodeRow{IndividualID: -1})
	child2 := tc.Nodes.Add(NodeRow{IndividualID: -1})
	tc.Edges.Add(EdgeRow{Left: 0, Right: 100, ParentNode: root1, ChildNode: child1})
	tc.Edges.Add(EdgeRow{Left: 0, Right: 100, ParentNode: root2, ChildNode: child2})

	ind := &genome.Individual{Haplosomes: []*genome.Haplosome{haplosomeWithTreeSeqNode(child1), haplosomeWithTreeSeqNode(child2)}}
	r.Simplify([]*genome.Individual{ind})

	if r.IsCoalesced(0) {
		t.Fatalf("two disjoint roots must not be reported as coalesced")
	}
}

// haplosomeWithTreeSeqNode builds a null genome.Haplosome carrying only a
// tree-sequence node id, sufficient for Simplify's sample-set collection
// which only reads h.TreeSeqNodeID.
func haplosomeWithTreeSeqNode(nodeID int64) *genome.Haplosome {
	h := &genome.Haplosome{}
	h.ReinitializeToNull(nil)
	h.TreeSeqNodeID = nodeID
	return h
}
