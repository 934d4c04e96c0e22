package genome

// MutationIndex is a 32-bit index into a MutationBlock. It is never a
// pointer: the block can be reallocated (growth doubles capacity) without
// invalidating any structural reference expressed as an index. Where raw
// Mutation pointers do leak out to callers (scripting value registries in
// the original design), MutationBlock.grow patches every pointer recorded
// with MutationBlock.RegisterPointer; see mutation_block.go.
type MutationIndex int32

// NoMutationIndex terminates the MutationBlock free list and marks "no
// mutation" in contexts that need a sentinel.
const NoMutationIndex MutationIndex = -1

// MutationState is the lifecycle state of a Mutation (§3).
type MutationState uint8

const (
	MutationStateNew MutationState = iota
	MutationStateInRegistry
	MutationStateFixed
	MutationStateRemovedWithSubstitution
)

func (s MutationState) String() string {
	switch s {
	case MutationStateNew:
		return "new"
	case MutationStateInRegistry:
		return "in-registry"
	case MutationStateFixed:
		return "fixed-and-substituted"
	case MutationStateRemovedWithSubstitution:
		return "removed-with-substitution"
	default:
		return "unknown"
	}
}

// NoNucleotide marks a mutation as not nucleotide-based.
const NoNucleotide int8 = -1

// Mutation is a compact fixed-size record with identity fields. Its
// position, once assigned at creation, never changes (§3 invariant).
// Per-trait effect/dominance pairs live in a parallel buffer
// (MutationBlock.traitInfo), not inline, because the trait count is
// determined at runtime.
type Mutation struct {
	ID                 int64
	MutationTypeID     int32
	ChromosomeIndex    int
	Position           int64
	OriginTick         int64
	OriginSubpopID     int32
	Nucleotide         int8 // in {0,1,2,3} or NoNucleotide
	State              MutationState
	StackGroup         int32 // which stacking-policy group this mutation belongs to
}

// TraitEffect holds one trait's effect size and dominance coefficient for
// a mutation. Stored per-trait in MutationBlock's parallel trait-info
// buffer, stride traitCount*sizeof(TraitEffect), per §3/§4.1.
type TraitEffect struct {
	Effect    float64
	Dominance float64
}

// Substitution is a record for a fixed-and-retired mutation, retained in
// the species' substitution list for reporting and counted as present in
// every non-null haplosome's derived state for tree-sequence recording.
type Substitution struct {
	ID              int64
	MutationTypeID  int32
	ChromosomeIndex int
	Position        int64
	OriginTick      int64
	OriginSubpopID  int32
	Nucleotide      int8
	FixationTick    int64
}

func substitutionFromMutation(m *Mutation, fixationTick int64) Substitution {
	return Substitution{
		ID:              m.ID,
		MutationTypeID:  m.MutationTypeID,
		ChromosomeIndex: m.ChromosomeIndex,
		Position:        m.Position,
		OriginTick:      m.OriginTick,
		OriginSubpopID:  m.OriginSubpopID,
		Nucleotide:      m.Nucleotide,
		FixationTick:    fixationTick,
	}
}
