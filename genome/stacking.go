package genome

// StackPolicy is the per-stack-group rule for how multiple mutations at
// the same position interact on insertion (§4.8).
type StackPolicy int

const (
	StackPolicyStack StackPolicy = iota
	StackPolicyKeepFirst
	StackPolicyKeepLast
)

// NucleotideStackGroup is the special stack group shared by all
// nucleotide-based mutation types, which always use keep-last (§4.2, §4.8).
const NucleotideStackGroup int32 = -1

// StackingPolicyTable maps stack groups to their policy. A policy change
// at any time requires a global revalidation pass over the registry
// (§4.8), applied the next time each run is touched by
// EnforceStackPolicyForAddition rather than eagerly.
type StackingPolicyTable struct {
	policies map[int32]StackPolicy
}

func NewStackingPolicyTable() *StackingPolicyTable {
	return &StackingPolicyTable{
		policies: map[int32]StackPolicy{
			NucleotideStackGroup: StackPolicyKeepLast,
		},
	}
}

// SetPolicy assigns a policy to a stack group. Setting a policy other than
// keep-last for the nucleotide group is a configuration error (§4.2).
func (t *StackingPolicyTable) SetPolicy(group int32, policy StackPolicy) error {
	if group == NucleotideStackGroup && policy != StackPolicyKeepLast {
		return newErr(ErrConfiguration, "StackingPolicyTable.SetPolicy",
			"nucleotide-based mutation types require the stack group's policy to be keep-last")
	}
	t.policies[group] = policy
	return nil
}

func (t *StackingPolicyTable) PolicyFor(group int32) StackPolicy {
	if p, ok := t.policies[group]; ok {
		return p
	}
	return StackPolicyStack
}
