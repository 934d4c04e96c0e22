package genome

import (
	"sort"
	"sync"
	"sync/atomic"
)

// MutationRun is an immutable-after-publish, sorted-ascending vector of
// MutationIndex covering one mutrun slot's window of a chromosome.
// Identity (Go pointer equality) encodes genetic equality: two runs with
// the same pointer are the same content by construction (§3, §4.2).
//
// Once a run has been "published" into one or more haplosomes it must not
// be mutated directly — callers go through WillModifyRun /
// WillModifyRunUnshared on the owning Haplosome, which copy-on-write as
// needed. MutationRun itself does not enforce this at the type level (Go
// has no const-pointer equivalent); it is a calling convention, exactly as
// the original C++ comments in haplosome.h describe.
type MutationRun struct {
	mutations []MutationIndex // sorted ascending by position

	useCount    int32 // tallied periodically, not maintained per-modification
	operationID int64 // stamp marking participation in a given bulk operation

	// shared is conservatively set once a run has been referenced by more
	// than one haplosome slot. The same parental run is routinely handed
	// out, unmodified, to many children generated concurrently (§5), so
	// every write here must go through atomic.Bool rather than a plain
	// bool: two goroutines independently marking the same pointer shared
	// is a genuine data race even though both writes agree on the value.
	shared atomic.Bool

	nonneutralCache      []MutationIndex
	nonneutralCacheStamp int64
}

// IsShared reports whether the run has ever been assigned into more than
// one haplosome slot, and so must be copy-on-write before modification.
func (r *MutationRun) IsShared() bool { return r.shared.Load() }

// MarkShared flags the run as (possibly) referenced by more than one
// haplosome. Called whenever a run pointer is assigned by value into a
// second slot rather than deep-copied.
func (r *MutationRun) MarkShared() { r.shared.Store(true) }

// Len returns the number of mutations in the run.
func (r *MutationRun) Len() int { return len(r.mutations) }

// At returns the mutation index at position i in run order.
func (r *MutationRun) At(i int) MutationIndex { return r.mutations[i] }

// Mutations returns the run's contents. Callers must not mutate the
// returned slice; it aliases the run's backing array.
func (r *MutationRun) Mutations() []MutationIndex { return r.mutations }

func (r *MutationRun) reset() {
	r.mutations = r.mutations[:0]
	r.useCount = 0
	r.operationID = 0
	r.shared.Store(false)
	r.nonneutralCache = nil
	r.nonneutralCacheStamp = -1
}

// CopyFrom replaces the run's contents with a shallow copy of other's.
func (r *MutationRun) CopyFrom(other *MutationRun) {
	r.WillModifyRun()
	r.mutations = append(r.mutations[:0], other.mutations...)
}

// EmplaceBack appends idx in amortized O(1); caller must guarantee the
// run remains sorted (used while merging parental runs in crossover.go,
// where positions are already known to increase).
func (r *MutationRun) EmplaceBack(idx MutationIndex) {
	r.mutations = append(r.mutations, idx)
}

// InsertSortedMutationIfUnique binary-searches for idx's slot and inserts
// it iff no identical index is already present. position is supplied by
// the caller (already resolved from the MutationBlock) to avoid a second
// lookup; it is used only to find the insertion point.
func (r *MutationRun) InsertSortedMutationIfUnique(idx MutationIndex, position int64, block *MutationBlock) bool {
	n := len(r.mutations)
	i := sort.Search(n, func(i int) bool {
		return block.MutationForIndex(r.mutations[i]).Position >= position
	})
	for j := i; j < n && block.MutationForIndex(r.mutations[j]).Position == position; j++ {
		if r.mutations[j] == idx {
			return false
		}
	}
	r.mutations = append(r.mutations, NoMutationIndex)
	copy(r.mutations[i+1:], r.mutations[i:])
	r.mutations[i] = idx
	return true
}

// EnforceStackPolicyForAddition consults every existing mutation at
// position sharing stackGroup and decides whether a new mutation may be
// added, mutating the run under keep-last by removing the mutations it
// displaces. Returns false if the addition must be rejected (keep-first
// with an existing occupant).
func (r *MutationRun) EnforceStackPolicyForAddition(position int64, stackGroup int32, policy StackPolicy, block *MutationBlock) bool {
	switch policy {
	case StackPolicyStack:
		return true
	case StackPolicyKeepFirst:
		for _, idx := range r.mutations {
			m := block.MutationForIndex(idx)
			if m.Position == position && m.StackGroup == stackGroup {
				return false
			}
		}
		return true
	case StackPolicyKeepLast:
		kept := r.mutations[:0]
		for _, idx := range r.mutations {
			m := block.MutationForIndex(idx)
			if m.Position == position && m.StackGroup == stackGroup {
				continue // drop existing stacked mutations in this group
			}
			kept = append(kept, idx)
		}
		r.mutations = kept
		return true
	default:
		return true
	}
}

// RemoveFixedMutations removes entries whose state is fixed-and-substituted
// or removed-with-substitution, stamping the run with operationID so a
// caller running this across many runs in one bulk pass can tell which
// runs it has already visited.
func (r *MutationRun) RemoveFixedMutations(operationID int64, block *MutationBlock) {
	if r.operationID == operationID {
		return
	}
	r.operationID = operationID

	kept := r.mutations[:0]
	for _, idx := range r.mutations {
		st := block.MutationForIndex(idx).State
		if st == MutationStateFixed || st == MutationStateRemovedWithSubstitution {
			continue
		}
		kept = append(kept, idx)
	}
	r.mutations = kept
}

// WillModifyRun invalidates the lazily-computed non-neutral mutation
// cache. Called by every mutating operation above.
func (r *MutationRun) WillModifyRun() {
	r.nonneutralCacheStamp = -1
	r.nonneutralCache = nil
}

// NonNeutralMutations returns the cached subset of non-neutral mutations,
// recomputing it if the species' nonneutralChangeCounter has advanced
// since the cache was built.
func (r *MutationRun) NonNeutralMutations(changeCounter int64, isNeutral func(MutationIndex) bool) []MutationIndex {
	if r.nonneutralCacheStamp == changeCounter && r.nonneutralCache != nil {
		return r.nonneutralCache
	}
	cache := make([]MutationIndex, 0, len(r.mutations))
	for _, idx := range r.mutations {
		if !isNeutral(idx) {
			cache = append(cache, idx)
		}
	}
	r.nonneutralCache = cache
	r.nonneutralCacheStamp = changeCounter
	return cache
}

// SetUseCount and UseCount implement the tallied (not incremental) use
// counter: Species.TallyMutationRunUseCounts walks every haplosome once
// per tick and calls SetUseCount with the observed total.
func (r *MutationRun) SetUseCount(n int32) { r.useCount = n }
func (r *MutationRun) UseCount() int32     { return r.useCount }

// MutationRunContext is the per-thread pool of MutationRun objects: a
// free-list of previously-used runs ready for reuse, plus a shared,
// atomically-incremented "next operation id" counter (§4.2, §5).
type MutationRunContext struct {
	mu              sync.Mutex // guards freeList: a slot's pool may be reached by more than one worker goroutine (§5)
	freeList        []*MutationRun
	nextOperationID *int64 // shared across all per-thread contexts of one Chromosome
}

// NewMutationRunContextGroup builds n per-thread contexts that share one
// operation-id counter, as required by §5 ("shared across threads but
// incremented under a critical section" — here, atomically).
func NewMutationRunContextGroup(n int) []*MutationRunContext {
	counter := new(int64)
	contexts := make([]*MutationRunContext, n)
	for i := range contexts {
		contexts[i] = &MutationRunContext{nextOperationID: counter}
	}
	return contexts
}

// NewRun pops a run from the free list, or allocates a fresh empty one.
func (c *MutationRunContext) NewRun() *MutationRun {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n := len(c.freeList); n > 0 {
		r := c.freeList[n-1]
		c.freeList = c.freeList[:n-1]
		r.reset()
		return r
	}
	return &MutationRun{nonneutralCacheStamp: -1}
}

// Recycle returns a run to the free list for future reuse. Caller must
// guarantee the run is no longer referenced by any haplosome (the tallied
// use-count reached zero).
func (c *MutationRunContext) Recycle(r *MutationRun) {
	c.mu.Lock()
	c.freeList = append(c.freeList, r)
	c.mu.Unlock()
}

// NextOperationID atomically increments and returns the shared bulk/tally
// operation-id counter.
func (c *MutationRunContext) NextOperationID() int64 {
	return atomic.AddInt64(c.nextOperationID, 1)
}
