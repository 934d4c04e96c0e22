package genome

import "sync"

// MutationBlock is an arena allocator for Mutation records: three
// parallel, growable buffers indexed by MutationIndex — the Mutation
// records themselves, a refcount buffer, and a per-trait-info buffer of
// stride traitCount — plus a singly-linked free list threaded through the
// free Mutation slots (mirrors §3/§4.1 and original_source/core/mutation_block.h).
//
// Ownership: one MutationBlock per Species.
type MutationBlock struct {
	// allocMu serializes Allocate/Dispose/grow: §5 runs crossover-mutation
	// for many children concurrently, and each may need to allocate a new
	// mutation from this one shared block.
	allocMu sync.Mutex

	mutations []Mutation
	refcounts []int32
	traitInfo []TraitEffect // flattened, stride traitCount per mutation

	traitCount    int
	capacity      MutationIndex
	freeIndex     MutationIndex
	lastUsedIndex MutationIndex

	// inParallel reports whether the engine is currently executing inside
	// a parallel fork-join section (§5). Growth is forbidden while true:
	// live pointer references recorded in pointerRegistry could not be
	// patched safely against concurrent readers.
	inParallel func() bool

	// pointerRegistry tracks every outstanding *Mutation that an external
	// caller (the scripting value registry, in the original design) is
	// holding, so growth can patch them in place rather than leave them
	// dangling into a freed backing array. See RegisterPointer.
	pointerRegistry []pointerRef

	initialCapacity MutationIndex
}

type pointerRef struct {
	index MutationIndex
	slot  **Mutation
}

const mutationBlockHardCeiling MutationIndex = 1<<31 - 1

// NewMutationBlock creates a block with room for initialCapacity mutations
// (rounded up to at least 64) and traitCount traits per mutation.
func NewMutationBlock(traitCount int, initialCapacity int) *MutationBlock {
	if initialCapacity < 64 {
		initialCapacity = 64
	}
	b := &MutationBlock{
		traitCount:      traitCount,
		capacity:        MutationIndex(initialCapacity),
		freeIndex:       NoMutationIndex,
		lastUsedIndex:   NoMutationIndex,
		inParallel:      func() bool { return false },
		initialCapacity: MutationIndex(initialCapacity),
	}
	b.mutations = make([]Mutation, b.capacity)
	b.refcounts = make([]int32, b.capacity)
	b.traitInfo = make([]TraitEffect, int(b.capacity)*traitCount)
	b.threadFreeList(0, b.capacity)
	return b
}

// threadFreeList links slots [from, to) into the free list, most recently
// added slot first (matches the C++ implementation's simple push order).
func (b *MutationBlock) threadFreeList(from, to MutationIndex) {
	for i := to - 1; i >= from; i-- {
		b.setNextFree(i, b.freeIndex)
		b.freeIndex = i
	}
}

// setNextFree stores the free-list "next" pointer in the first field of a
// free slot, exactly as the C++ version overlays it on the Mutation's
// first word.
func (b *MutationBlock) setNextFree(idx MutationIndex, next MutationIndex) {
	b.mutations[idx].ID = int64(next)
}

func (b *MutationBlock) nextFree(idx MutationIndex) MutationIndex {
	return MutationIndex(b.mutations[idx].ID)
}

// Allocate pops the free list, growing the block first if it is empty.
// Safe to call concurrently from the parallel offspring-generation
// fork-join section (§5); the backing arrays are not touched outside this
// lock except by ZeroRefcounts/the registry GC pass, both of which only
// run between ticks while no fork-join section is active.
func (b *MutationBlock) Allocate() (MutationIndex, error) {
	b.allocMu.Lock()
	defer b.allocMu.Unlock()

	if b.freeIndex == NoMutationIndex {
		if err := b.grow(); err != nil {
			return NoMutationIndex, err
		}
	}
	result := b.freeIndex
	b.freeIndex = b.nextFree(result)
	if b.lastUsedIndex < result {
		b.lastUsedIndex = result
	}
	return result, nil
}

// Dispose pushes a mutation's slot back onto the free list. Caller must
// have already removed the mutation from the registry and dropped its
// refcount to zero.
func (b *MutationBlock) Dispose(idx MutationIndex) {
	b.allocMu.Lock()
	defer b.allocMu.Unlock()

	b.setNextFree(idx, b.freeIndex)
	b.freeIndex = idx
	b.refcounts[idx] = 0
}

// MutationForIndex returns a pointer into the live buffer for idx.
func (b *MutationBlock) MutationForIndex(idx MutationIndex) *Mutation {
	return &b.mutations[idx]
}

// RefcountForIndex returns a pointer to the refcount slot, so callers can
// increment/decrement in place.
func (b *MutationBlock) RefcountForIndex(idx MutationIndex) *int32 {
	return &b.refcounts[idx]
}

// TraitInfoForIndex returns the per-trait effect/dominance slice for idx.
func (b *MutationBlock) TraitInfoForIndex(idx MutationIndex) []TraitEffect {
	start := int(idx) * b.traitCount
	return b.traitInfo[start : start+b.traitCount]
}

// ZeroRefcounts bulk-clears the refcount buffer up to the highest index
// ever used (original_source/core/mutation_block.h: ZeroRefcountBlock).
func (b *MutationBlock) ZeroRefcounts() {
	if b.lastUsedIndex < 0 {
		return
	}
	for i := MutationIndex(0); i <= b.lastUsedIndex; i++ {
		b.refcounts[i] = 0
	}
}

// SetInParallel installs the predicate grow consults to refuse growing
// the block while the engine is inside a parallel fork-join section
// (§5); see Species.generateOffspring, which toggles the predicate's
// backing flag for the duration of offspring generation.
func (b *MutationBlock) SetInParallel(predicate func() bool) {
	b.inParallel = predicate
}

// RegisterPointer records an outstanding **Mutation that must be patched
// to the new backing array location if the block grows. Call
// UnregisterPointer when the reference is no longer live.
func (b *MutationBlock) RegisterPointer(slot **Mutation, idx MutationIndex) {
	b.pointerRegistry = append(b.pointerRegistry, pointerRef{index: idx, slot: slot})
}

// UnregisterPointer removes a previously registered pointer slot.
func (b *MutationBlock) UnregisterPointer(slot **Mutation) {
	for i, ref := range b.pointerRegistry {
		if ref.slot == slot {
			b.pointerRegistry = append(b.pointerRegistry[:i], b.pointerRegistry[i+1:]...)
			return
		}
	}
}

// grow doubles the block's capacity, reallocs all three parallel buffers,
// and patches every outstanding registered pointer. Forbidden inside a
// parallel region: user-visible references into the block cannot be
// safely patched against a concurrent reader (§4.1, §5, §7).
func (b *MutationBlock) grow() error {
	if b.inParallel() {
		return newErr(ErrInvariant, "MutationBlock.grow",
			"cannot grow the mutation block while inside a parallel region; "+
				"increase the pre-allocated mutation block capacity")
	}

	// Doubled in 64-bit space: doubling a capacity near 2^30 would wrap a
	// 32-bit MutationIndex before the ceiling check could catch it.
	doubled := int64(b.capacity) * 2
	if doubled > int64(mutationBlockHardCeiling) {
		doubled = int64(mutationBlockHardCeiling)
	}
	if doubled <= int64(b.capacity) {
		return newErr(ErrInvariant, "MutationBlock.grow",
			"mutation block has reached the hard ceiling of %d live mutations", mutationBlockHardCeiling)
	}
	newCapacity := MutationIndex(doubled)

	newMutations := make([]Mutation, newCapacity)
	copy(newMutations, b.mutations)
	newRefcounts := make([]int32, newCapacity)
	copy(newRefcounts, b.refcounts)
	newTraitInfo := make([]TraitEffect, int(newCapacity)*b.traitCount)
	copy(newTraitInfo, b.traitInfo)

	oldCapacity := b.capacity
	b.mutations = newMutations
	b.refcounts = newRefcounts
	b.traitInfo = newTraitInfo
	b.capacity = newCapacity

	// Patch every outstanding pointer to the new backing array; in Go the
	// "signed address delta" the original C++ applies collapses to just
	// re-deriving the pointer from the index we already tracked.
	for _, ref := range b.pointerRegistry {
		*ref.slot = &b.mutations[ref.index]
	}

	b.threadFreeList(oldCapacity, newCapacity)
	return nil
}

// MemoryUsage reports the live footprint of the arena's three buffers,
// supplementing spec.md with original_source/core/mutation_block.h's
// MemoryUsageForX accessor family.
type MemoryUsage struct {
	MutationBytes  int64
	RefcountBytes  int64
	TraitInfoBytes int64
}

func (b *MutationBlock) MemoryUsage() MemoryUsage {
	return MemoryUsage{
		MutationBytes:  int64(len(b.mutations)) * int64(mutationByteSize),
		RefcountBytes:  int64(len(b.refcounts)) * 4,
		TraitInfoBytes: int64(len(b.traitInfo)) * int64(traitEffectByteSize),
	}
}

// approximate on-the-wire sizes used only for MemoryUsage reporting.
const (
	mutationByteSize    = 64
	traitEffectByteSize = 16
)

// Capacity returns the block's current slot capacity.
func (b *MutationBlock) Capacity() MutationIndex { return b.capacity }

// LastUsedIndex returns the highest index ever handed out by Allocate.
func (b *MutationBlock) LastUsedIndex() MutationIndex { return b.lastUsedIndex }
