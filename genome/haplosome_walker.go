package genome

// HaplosomeWalker is a forward cursor over a haplosome's mutations, with
// position-indexed seek (§4.4). It never mutates the haplosome.
type HaplosomeWalker struct {
	haplosome *Haplosome
	block     *MutationBlock

	slot    int // current mutrun slot
	posInRun int // index within the current run's mutation slice
}

// NewHaplosomeWalker creates a walker positioned at the first mutation.
func NewHaplosomeWalker(h *Haplosome, block *MutationBlock) *HaplosomeWalker {
	w := &HaplosomeWalker{haplosome: h, block: block}
	w.seekFirst()
	return w
}

func (w *HaplosomeWalker) seekFirst() {
	w.slot = 0
	w.posInRun = 0
	if w.haplosome.IsNull() {
		w.slot = w.haplosome.MutrunCount()
		return
	}
	w.advancePastEmptyRuns()
}

func (w *HaplosomeWalker) advancePastEmptyRuns() {
	for w.slot < w.haplosome.MutrunCount() {
		run := w.haplosome.Run(w.slot)
		if run != nil && w.posInRun < run.Len() {
			return
		}
		w.slot++
		w.posInRun = 0
	}
}

// Finished reports whether the walker has passed the last mutation.
func (w *HaplosomeWalker) Finished() bool {
	return w.slot >= w.haplosome.MutrunCount()
}

// CurrentMutation returns the mutation index under the cursor. Callers
// must check Finished first.
func (w *HaplosomeWalker) CurrentMutation() MutationIndex {
	return w.haplosome.Run(w.slot).At(w.posInRun)
}

// Position returns the genomic position of the mutation under the
// cursor.
func (w *HaplosomeWalker) Position() int64 {
	return w.block.MutationForIndex(w.CurrentMutation()).Position
}

// NextMutation advances the cursor by one mutation.
func (w *HaplosomeWalker) NextMutation() {
	if w.Finished() {
		return
	}
	w.posInRun++
	w.advancePastEmptyRuns()
}

// MoveToPosition jumps directly to the mutrun slot containing position p
// (p / mutrunLength) and then advances linearly to the first mutation at
// or after p. If p is beyond the last mutation, the walker becomes
// Finished.
func (w *HaplosomeWalker) MoveToPosition(p int64) {
	if w.haplosome.IsNull() || w.haplosome.MutrunLength() == 0 {
		w.slot = w.haplosome.MutrunCount()
		return
	}
	target := int(p / w.haplosome.MutrunLength())
	if target >= w.haplosome.MutrunCount() {
		w.slot = w.haplosome.MutrunCount()
		return
	}
	w.slot = target
	w.posInRun = 0

	run := w.haplosome.Run(w.slot)
	if run != nil {
		for w.posInRun < run.Len() && w.block.MutationForIndex(run.At(w.posInRun)).Position < p {
			w.posInRun++
		}
	}
	w.advancePastEmptyRuns()
}

// MutationIsStackedAtCurrentPosition reports whether mutation m shares
// the cursor's current position (without necessarily being the current
// mutation itself).
func (w *HaplosomeWalker) MutationIsStackedAtCurrentPosition(m MutationIndex) bool {
	if w.Finished() {
		return false
	}
	pos := w.Position()
	return w.block.MutationForIndex(m).Position == pos
}

// NucleotideAtCurrentPosition returns the nucleotide carried by the
// mutation under the cursor, or NoNucleotide if not nucleotide-based.
func (w *HaplosomeWalker) NucleotideAtCurrentPosition() int8 {
	if w.Finished() {
		return NoNucleotide
	}
	return w.block.MutationForIndex(w.CurrentMutation()).Nucleotide
}

// IdenticalAtCurrentPositionTo reports whether two walkers, starting from
// their current positions, see the same multiset of stacked mutations in
// the same order and reach the next-position boundary simultaneously.
// Used to detect junction events for tree-sequence edge emission (§4.4).
func (w *HaplosomeWalker) IdenticalAtCurrentPositionTo(other *HaplosomeWalker) bool {
	wFinished, oFinished := w.Finished(), other.Finished()
	if wFinished != oFinished {
		return false
	}
	if wFinished {
		return true
	}
	if w.Position() != other.Position() {
		return false
	}
	pos := w.Position()

	a, b := *w, *other
	for {
		aDone := a.Finished() || a.Position() != pos
		bDone := b.Finished() || b.Position() != pos
		if aDone != bDone {
			return false
		}
		if aDone {
			return true
		}
		if a.CurrentMutation() != b.CurrentMutation() {
			return false
		}
		a.NextMutation()
		b.NextMutation()
	}
}
