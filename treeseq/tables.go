// Package treeseq implements the incremental tree-sequence recorder:
// tskit-style node/edge/site/mutation/individual/population tables built
// up in step with reproduction, with size-ratio-triggered simplification
// and periodic cross-checking against the live haplosome state.
package treeseq

// NodeRow is one tree-sequence node: one haplosome's genetic history at
// one point in time. Two nodes are allocated per chromosome per
// individual, per tick, as an invariant of incremental recording.
type NodeRow struct {
	ID         int64
	Time       float64 // ticks before the present, increasing into the past
	Flags      uint32
	IndividualID int64 // -1 if not associated with an individual row
}

// EdgeRow describes a parental strand interval inherited by a child node.
type EdgeRow struct {
	Left, Right  int64
	ParentNode   int64
	ChildNode    int64
}

// SiteRow is one genomic position at which at least one mutation has
// ever been recorded.
type SiteRow struct {
	ID       int64
	Position int64
}

// MutationRow is one mutation event at a site, with its MutationMetadata
// (packed to 17 bytes by MutationMetadata.Encode, §4.9) and an optional
// parent mutation row for stacked derived states.
type MutationRow struct {
	ID         int64
	SiteID     int64
	NodeID     int64
	ParentID   int64 // -1 if none
	Metadata   MutationMetadata
	DerivedState []int64 // ordered list of mutation ids present at this position
}

// IndividualRow carries the 40-byte individual metadata (§4.9).
type IndividualRow struct {
	ID       int64
	Metadata IndividualMetadata
}

// PopulationRow names a subpopulation at a point in the simulation.
type PopulationRow struct {
	ID   int64
	Name string
}

// NodeTable, EdgeTable, SiteTable, MutationTable, IndividualTable, and
// PopulationTable are thin slice-backed append-only tables, mirroring
// tskit's table model without a dependency on tskit itself (no example
// repo in the retrieved corpus ships a tskit binding; see DESIGN.md).
type NodeTable struct{ rows []NodeRow }
type EdgeTable struct{ rows []EdgeRow }
type SiteTable struct {
	rows     []SiteRow
	byPosition map[int64]int64 // position -> site id, for "if position not previously seen"
}
type MutationTable struct{ rows []MutationRow }
type IndividualTable struct{ rows []IndividualRow }
type PopulationTable struct{ rows []PopulationRow }

func (t *NodeTable) Add(row NodeRow) int64 {
	row.ID = int64(len(t.rows))
	t.rows = append(t.rows, row)
	return row.ID
}
func (t *NodeTable) Len() int          { return len(t.rows) }
func (t *NodeTable) Row(id int64) NodeRow { return t.rows[id] }

func (t *EdgeTable) Add(row EdgeRow) int64 {
	t.rows = append(t.rows, row)
	return int64(len(t.rows) - 1)
}
func (t *EdgeTable) Len() int           { return len(t.rows) }
func (t *EdgeTable) Rows() []EdgeRow    { return t.rows }

// SiteIDForPosition returns the existing site id at position, or
// allocates a new one.
func (t *SiteTable) SiteIDForPosition(position int64) int64 {
	if t.byPosition == nil {
		t.byPosition = make(map[int64]int64)
	}
	if id, ok := t.byPosition[position]; ok {
		return id
	}
	id := int64(len(t.rows))
	t.rows = append(t.rows, SiteRow{ID: id, Position: position})
	t.byPosition[position] = id
	return id
}
func (t *SiteTable) Len() int        { return len(t.rows) }
func (t *SiteTable) Rows() []SiteRow { return t.rows }

func (t *MutationTable) Add(row MutationRow) int64 {
	row.ID = int64(len(t.rows))
	t.rows = append(t.rows, row)
	return row.ID
}
func (t *MutationTable) Len() int            { return len(t.rows) }
func (t *MutationTable) Rows() []MutationRow { return t.rows }

func (t *IndividualTable) Add(row IndividualRow) int64 {
	row.ID = int64(len(t.rows))
	t.rows = append(t.rows, row)
	return row.ID
}
func (t *IndividualTable) Len() int { return len(t.rows) }

func (t *PopulationTable) Add(row PopulationRow) int64 {
	row.ID = int64(len(t.rows))
	t.rows = append(t.rows, row)
	return row.ID
}

// TableCollection is one chromosome's tree-sequence state. The node,
// individual, and population tables are conceptually shared across every
// chromosome in a species; only the first chromosome's collection
// actually owns them (see NewRecorder), consistent with §4.9's
// "splices them in and out" note — here expressed as a shared pointer
// rather than literal splicing.
type TableCollection struct {
	Nodes       *NodeTable
	Edges       *EdgeTable
	Sites       *SiteTable
	Mutations   *MutationTable
	Individuals *IndividualTable
	Populations *PopulationTable
}

// NewTableCollection builds an empty collection, optionally sharing the
// node/individual/population tables with another chromosome's collection
// (pass nil for shared to own them).
func NewTableCollection(shared *TableCollection) *TableCollection {
	tc := &TableCollection{
		Edges:     &EdgeTable{},
		Sites:     &SiteTable{},
		Mutations: &MutationTable{},
	}
	if shared == nil {
		tc.Nodes = &NodeTable{}
		tc.Individuals = &IndividualTable{}
		tc.Populations = &PopulationTable{}
	} else {
		tc.Nodes = shared.Nodes
		tc.Individuals = shared.Individuals
		tc.Populations = shared.Populations
	}
	return tc
}

// PreSize returns the combined row count across all tables, used as the
// "pre" measurement in the simplification size-ratio heuristic (§4.9).
func (tc *TableCollection) PreSize() int {
	return tc.Nodes.Len() + tc.Edges.Len() + tc.Sites.Len() + tc.Mutations.Len()
}
