package treeseq

import (
	"log"

	"github.com/MesserLab/SLiM-sub011/genome"
)

// simplificationRatioTarget is the post/pre table-size ratio the
// auto-simplification interval controller aims for (§4.9).
const simplificationRatioTarget = 0.5

// Recorder is the per-species tree-sequence recorder: one TableCollection
// per chromosome (sharing node/individual/population tables through the
// first chromosome's collection), incremental recording hooks wired into
// genome.Species via the genome.TreeSequenceRecorder interface, and the
// auto-simplification/cross-check machinery of §4.9.
type Recorder struct {
	Collections []*TableCollection

	simplifyInterval  int64
	simplifyElapsed   int64

	rememberedNodes map[int64]bool

	crosschecksInterval int64
	ticksSinceCrosscheck int64

	coalesced []bool // per chromosome, cached result of the last coalescence check

	nodeToIndividual map[int64]int64 // node id -> owning individual's pedigree id

	block *genome.MutationBlock // set via SetMutationBlock, used by CrossCheck
}

// SetMutationBlock wires the species' mutation arena into the recorder,
// required before AdvanceTick can run a cross-check pass.
func (r *Recorder) SetMutationBlock(block *genome.MutationBlock) {
	r.block = block
}

// NewRecorder builds a recorder with one TableCollection per chromosome,
// sharing the shared tables from the first.
func NewRecorder(chromosomeCount int, simplifyInterval, crosschecksInterval int64) *Recorder {
	r := &Recorder{
		Collections:         make([]*TableCollection, chromosomeCount),
		simplifyInterval:    simplifyInterval,
		crosschecksInterval: crosschecksInterval,
		rememberedNodes:     make(map[int64]bool),
		coalesced:           make([]bool, chromosomeCount),
		nodeToIndividual:    make(map[int64]int64),
	}
	var shared *TableCollection
	for i := 0; i < chromosomeCount; i++ {
		tc := NewTableCollection(shared)
		r.Collections[i] = tc
		if i == 0 {
			shared = tc
		}
	}
	return r
}

// NewNode allocates one node row for a haplosome belonging to the
// individual identified by pedigreeID (§4.9: "two nodes per chromosome
// per individual, invariant" — the second node of the pair comes from a
// second NewNode call for the other haplosome copy).
func (r *Recorder) NewNode(chromosomeIndex int, pedigreeID int64) int64 {
	tc := r.Collections[chromosomeIndex]
	id := tc.Nodes.Add(NodeRow{IndividualID: pedigreeID})
	r.nodeToIndividual[id] = pedigreeID
	return id
}

// RecordEdge appends an edge row describing the parental strand interval
// inherited at a breakpoint (§4.6 step 6, §4.9).
func (r *Recorder) RecordEdge(chromosomeIndex int, leftPosition, rightPosition int64, parentNode, childNode int64) {
	r.Collections[chromosomeIndex].Edges.Add(EdgeRow{
		Left: leftPosition, Right: rightPosition,
		ParentNode: parentNode, ChildNode: childNode,
	})
}

// RecordMutationSite appends a site row (if the position is new) and a
// mutation row with packed metadata for a newly constructed mutation
// (§4.6 step 6, §4.9).
func (r *Recorder) RecordMutationSite(chromosomeIndex int, nodeID int64, m *genome.Mutation) {
	tc := r.Collections[chromosomeIndex]
	siteID := tc.Sites.SiteIDForPosition(m.Position)
	tc.Mutations.Add(MutationRow{
		SiteID:   siteID,
		NodeID:   nodeID,
		ParentID: -1,
		Metadata: MutationMetadata{
			MutationTypeID: m.MutationTypeID,
			OriginSubpopID: m.OriginSubpopID,
			OriginTick:     int32(m.OriginTick),
			Nucleotide:     m.Nucleotide,
		},
	})
}

// RecordNewDerivedState writes a fresh mutation row whose derived state
// is the ordered list of mutation ids currently present at position,
// implementing record_new_derived_state (§4.9).
func (r *Recorder) RecordNewDerivedState(chromosomeIndex int, nodeID int64, position int64, derivedMutationIDs []int64) {
	tc := r.Collections[chromosomeIndex]
	siteID := tc.Sites.SiteIDForPosition(position)
	tc.Mutations.Add(MutationRow{
		SiteID:       siteID,
		NodeID:       nodeID,
		ParentID:     -1,
		DerivedState: append([]int64(nil), derivedMutationIDs...),
	})
}

// RememberNode adds nodeID to the set preserved across simplification
// regardless of whether it belongs to a currently-alive individual.
func (r *Recorder) RememberNode(nodeID int64) {
	r.rememberedNodes[nodeID] = true
}

// AdvanceTick implements genome.TreeSequenceRecorder.AdvanceTick: bumps
// the simplify-elapsed counter, triggers auto-simplification when due,
// and runs a cross-check pass on its own interval (§4.9, §4.10 step 7).
func (r *Recorder) AdvanceTick(tick int64, aliveIndividuals []*genome.Individual) {
	r.simplifyElapsed++
	r.ticksSinceCrosscheck++

	if r.simplifyInterval > 0 && r.simplifyElapsed >= r.simplifyInterval {
		r.Simplify(aliveIndividuals)
		r.simplifyElapsed = 0
	}

	if r.crosschecksInterval > 0 && r.ticksSinceCrosscheck >= r.crosschecksInterval && r.block != nil {
		if err := r.CrossCheck(aliveIndividuals, r.block); err != nil {
			log.Fatalf("treeseq: cross-check failed at tick %d: %v", tick, err)
		}
		r.ticksSinceCrosscheck = 0
	}
}

var _ genome.TreeSequenceRecorder = (*Recorder)(nil)
