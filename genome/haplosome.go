package genome

// HaplosomeType distinguishes the kind of chromosome copy a Haplosome
// represents (§3). Mirrors SLiM's HaplosomeType enumeration.
type HaplosomeType uint8

const (
	HaplosomeAutosome HaplosomeType = iota
	HaplosomeX
	HaplosomeY
	HaplosomeMitochondrial
	HaplosomeHaploidAutosome
)

// smallMutrunBufSize is the embedded small-buffer optimization from
// original_source/core/haplosome.h's SLIM_HAPLOSOME_MUTRUN_BUFSIZE: most
// haplosomes use very few mutrun slots, so keeping the first one inline
// avoids a heap allocation per haplosome.
const smallMutrunBufSize = 1

// NoPedigreeID marks a haplosome with no assigned pedigree id.
const NoPedigreeID int64 = -1

// Haplosome is one chromosome copy for one individual: a sequence of
// shared MutationRun pointers. A haplosome owns none of its runs — all
// are shared by identity (§3).
//
// "Null" state: mutrunCount == 0 and no run storage is present — this is
// a defined, content-free slot (e.g. the Y slot in a female), not an
// error. "Deferred" state: mutrunCount != 0 but the run pointers
// themselves are still nil, a placeholder before content is generated.
type Haplosome struct {
	Individual      *Individual // owning individual, non-owning back-pointer
	ChromosomeIndex int
	Type            HaplosomeType
	PedigreeID      int64

	smallBuf     [smallMutrunBufSize]*MutationRun
	runs         []*MutationRun // used only once mutrunCount > smallMutrunBufSize
	mutrunCount  int32
	mutrunLength int64

	deferred bool

	// TreeSeqNodeID is the tree-sequence node id assigned to this
	// haplosome by the recorder, or NoTreeSeqNode if tree-sequence
	// recording is disabled (§4.9).
	TreeSeqNodeID int64
}

// NoTreeSeqNode marks a haplosome with no assigned tree-sequence node.
const NoTreeSeqNode int64 = -1

// IsNull reports whether this haplosome carries no genetic content.
func (h *Haplosome) IsNull() bool { return h.mutrunCount == 0 }

// IsDeferred reports whether the haplosome has mutrun slots but no run
// content assigned to them yet.
func (h *Haplosome) IsDeferred() bool { return h.deferred }

// MutrunCount returns the number of mutation-run slots.
func (h *Haplosome) MutrunCount() int { return int(h.mutrunCount) }

// MutrunLength returns the base-pair length covered by each run.
func (h *Haplosome) MutrunLength() int64 { return h.mutrunLength }

// Run returns the run pointer at slot i.
func (h *Haplosome) Run(i int) *MutationRun {
	if i < smallMutrunBufSize {
		return h.smallBuf[i]
	}
	return h.runs[i-smallMutrunBufSize]
}

// SetRun assigns the run pointer at slot i. Assigning a run that is (or
// may become) referenced by more than one haplosome must be followed by
// MarkShared on that run so future WillModifyRun calls copy-on-write.
func (h *Haplosome) SetRun(i int, r *MutationRun) {
	if i < smallMutrunBufSize {
		h.smallBuf[i] = r
		return
	}
	h.runs[i-smallMutrunBufSize] = r
}

// MakeNull frees the heap mutrun buffer (if any) and transitions the
// haplosome to the null state.
func (h *Haplosome) MakeNull() {
	h.runs = nil
	h.mutrunCount = 0
	h.mutrunLength = 0
	h.deferred = false
	h.smallBuf = [smallMutrunBufSize]*MutationRun{}
	h.TreeSeqNodeID = NoTreeSeqNode
}

// ReinitializeToNull repurposes a pool-allocated haplosome as a null
// haplosome for individual, preserving its chromosome index.
func (h *Haplosome) ReinitializeToNull(individual *Individual) {
	h.Individual = individual
	h.MakeNull()
}

// ReinitializeToNonNull repurposes a pool-allocated haplosome for
// individual using chromosome's current mutrun layout, leaving run
// pointers nil (deferred) until the caller fills them.
func (h *Haplosome) ReinitializeToNonNull(individual *Individual, chromosome *Chromosome) {
	h.Individual = individual
	h.ChromosomeIndex = chromosome.Index
	h.mutrunCount = int32(chromosome.MutrunCount)
	h.mutrunLength = chromosome.MutrunLength
	h.smallBuf = [smallMutrunBufSize]*MutationRun{}
	if int(h.mutrunCount) > smallMutrunBufSize {
		h.runs = make([]*MutationRun, int(h.mutrunCount)-smallMutrunBufSize)
	} else {
		h.runs = nil
	}
	h.deferred = true
	h.TreeSeqNodeID = NoTreeSeqNode
}

// FillRun sets slot i's content and clears the deferred flag once every
// slot has been filled.
func (h *Haplosome) FillRun(i int, r *MutationRun) {
	h.SetRun(i, r)
	if h.deferred {
		h.deferred = false
		for j := 0; j < int(h.mutrunCount); j++ {
			if h.Run(j) == nil {
				h.deferred = true
				break
			}
		}
	}
}

// WillModifyRun returns a run at slot i safe to mutate in place, copying
// it first if it is (or may be) shared with another haplosome.
func (h *Haplosome) WillModifyRun(i int, ctx *MutationRunContext) *MutationRun {
	run := h.Run(i)
	if run.IsShared() {
		fresh := ctx.NewRun()
		fresh.CopyFrom(run)
		h.SetRun(i, fresh)
		return fresh
	}
	run.WillModifyRun()
	return run
}

// WillModifyRunUnshared returns the run at slot i for in-place editing
// without copying, on the caller's guarantee that it is not shared by any
// other haplosome.
func (h *Haplosome) WillModifyRunUnshared(i int) *MutationRun {
	run := h.Run(i)
	run.WillModifyRun()
	return run
}

// CopyFromHaplosome performs an identical shallow copy of mutrun
// pointers: pointer equality is treated as content equality, so no run is
// deep-copied. A null source makes self null too.
func (h *Haplosome) CopyFromHaplosome(other *Haplosome) {
	if other.IsNull() {
		h.MakeNull()
		return
	}
	h.ChromosomeIndex = other.ChromosomeIndex
	h.mutrunCount = other.mutrunCount
	h.mutrunLength = other.mutrunLength
	h.deferred = other.deferred
	if int(h.mutrunCount) > smallMutrunBufSize {
		h.runs = make([]*MutationRun, int(h.mutrunCount)-smallMutrunBufSize)
	} else {
		h.runs = nil
	}
	for i := 0; i < int(h.mutrunCount); i++ {
		r := other.Run(i)
		if r != nil {
			r.MarkShared()
		}
		h.SetRun(i, r)
	}
}

// ContainsMutation reports whether idx is present in the run covering its
// position.
func (h *Haplosome) ContainsMutation(idx MutationIndex, block *MutationBlock) bool {
	if h.IsNull() {
		return false
	}
	m := block.MutationForIndex(idx)
	slot := int(m.Position / h.mutrunLength)
	run := h.Run(slot)
	if run == nil {
		return false
	}
	for _, v := range run.mutations {
		if v == idx {
			return true
		}
	}
	return false
}

// MutationCount sums the per-run sizes across all slots.
func (h *Haplosome) MutationCount() int {
	if h.IsNull() {
		return 0
	}
	total := 0
	for i := 0; i < int(h.mutrunCount); i++ {
		if r := h.Run(i); r != nil {
			total += r.Len()
		}
	}
	return total
}
