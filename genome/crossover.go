package genome

import (
	"math"
	"sort"
)

// GESubrange is the intersection of a mutation-rate-map segment with a
// genomic element: a sub-interval with its own per-base mutation rate,
// used to distribute drawn mutation positions proportional to rate
// (§4.6 step 3).
type GESubrange struct {
	Start int64 // inclusive
	End   int64 // exclusive
	Rate  float64
}

// ComputeGESubranges intersects a chromosome's genomic elements with a
// mutation rate map, producing the sub-interval list that mutation
// positions are drawn against.
func ComputeGESubranges(chromosome *Chromosome, mutMap *RateMap) []GESubrange {
	var out []GESubrange
	for _, ge := range chromosome.GenomicElements {
		start := ge.StartPosition
		for start <= ge.EndPosition {
			i := sort.Search(len(mutMap.endPositions), func(i int) bool { return mutMap.endPositions[i] >= start })
			if i >= len(mutMap.endPositions) {
				i = len(mutMap.endPositions) - 1
			}
			segStart, segEnd := mutMap.segmentBounds(i)
			lo := start
			if segStart > lo {
				lo = segStart
			}
			hi := ge.EndPosition + 1
			if segEnd < hi {
				hi = segEnd
			}
			if hi > lo {
				out = append(out, GESubrange{Start: lo, End: hi, Rate: mutMap.rates[i]})
			}
			start = hi
			if hi <= lo {
				break
			}
		}
	}
	return out
}

// Breakpoint is one crossover or gene-conversion event drawn along a
// chromosome (§4.6 step 2). A gene-conversion tract is either simple
// (copied wholesale from the opposite strand) or complex, in which case
// heteroduplex positions — positions where the two strands disagree —
// are each resolved by a biased mismatch-repair draw.
type Breakpoint struct {
	Position       int64
	GeneConversion bool
	TractEnd       int64 // exclusive, valid only when GeneConversion
	Complex        bool  // valid only when GeneConversion
}

// NewMutationDraw is one new mutation's drawn position and type, before
// a concrete Mutation has been allocated in the block (§4.6 step 3).
type NewMutationDraw struct {
	Position int64
	TypeID   int32
}

// MutationTypeConfig supplies the effect/dominance distribution and
// stacking/nucleotide behavior for one mutation type (§3).
type MutationTypeConfig struct {
	ID             int32
	StackGroup     int32
	Nucleotide     bool
	DrawEffect     func(rng *RNGStream) TraitEffect
}

// CrossoverCallbacks are the script-level hooks invoked during
// mutation() processing and edge/site recording (§4.6 steps 4-6). Any
// field may be nil.
type CrossoverCallbacks struct {
	// Mutate is called after each new mutation is tentatively
	// constructed; it may rewrite m in place and return false to
	// request the mutation be discarded (a rejected draw consumes no
	// retry — the position is simply dropped, as in the teacher's
	// at-most-once pass over drawn positions).
	Mutate func(m *Mutation) bool

	// RecordEdge is called once per copy segment with the segment's
	// [leftPosition, rightPosition) interval and the parental strand (0
	// or 1) the segment is copied from.
	RecordEdge func(leftPosition, rightPosition int64, fromStrand int)

	// RecordMutationSite is called once per newly constructed mutation.
	RecordMutationSite func(m *Mutation)

	// RegisterMutation is called once per newly accepted mutation (after
	// stacking-policy resolution), regardless of whether tree-sequence
	// recording is enabled, so the caller can add it to its segregating
	// registry.
	RegisterMutation func(idx MutationIndex)
}

// CrossoverInputs bundles everything one crossover-mutation call needs.
type CrossoverInputs struct {
	Chromosome    *Chromosome
	Strand1       *Haplosome
	Strand2       *Haplosome
	Child         *Haplosome
	ParentSex     Sex
	Block         *MutationBlock
	MutationMap   *RateMap
	RecombMap     *RateMap
	Subranges     []GESubrange // precomputed via ComputeGESubranges
	MutationTypes map[int32]*MutationTypeConfig
	TypeWeights   []int32 // parallel type-id list weighted by genomic-element-type composition at draw time; simplified to uniform-by-id here
	Stacking      *StackingPolicyTable
	RNG           *RNGStream
	Callbacks     CrossoverCallbacks
	OriginTick    int64
	OriginSubpop  int32

	// NextMutationID supplies the monotonically increasing mutation id
	// assigned to each newly drawn mutation; required whenever mCount>0
	// may be nonzero.
	NextMutationID func() int64
}

// Execute runs the full crossover-mutation operation described in §4.6,
// filling every mutrun slot of in.Child from in.Strand1/in.Strand2 plus
// newly drawn mutations, honoring breakpoints, gene conversion, and the
// stacking policy.
func Execute(in *CrossoverInputs) error {
	mutationRate := 0.0
	if in.MutationMap != nil {
		mutationRate = in.MutationMap.OverallRate()
	}
	recombRate := 0.0
	if in.RecombMap != nil {
		recombRate = in.RecombMap.OverallRate()
	}

	mCount, bCount := jointDrawEventCounts(in.RNG, mutationRate, recombRate)

	breaks := drawBreakpoints(in, bCount)
	muts := drawMutationPositions(in, mCount)

	segs := buildCopySegments(in, breaks)
	if err := assembleChild(in, segs, muts); err != nil {
		return err
	}
	emitCoverageEdges(in, segs)
	return nil
}

// copySegment is one contiguous stretch of the chromosome copied from a
// single parental strand. The segment list tiles [0, lastPosition+1) and
// is the sole carrier of strand state during child assembly, so a
// gene-conversion tract that spans several mutrun slots keeps its source
// strand across every slot it touches.
type copySegment struct {
	Start, End   int64 // [Start, End)
	Strand       int   // 0 = strand1, 1 = strand2
	Heteroduplex bool  // complex tract: mismatches resolved by biased repair
}

// buildCopySegments flattens the breakpoint list into strand-attributed
// segments: crossovers toggle the strand, gene-conversion tracts insert a
// bounded stretch of the opposite strand and then resume the original
// one (§4.6 step 2). A crossover swallowed by an earlier tract still
// toggles the strand but contributes no segment of its own; a swallowed
// tract contributes only the part that extends past the earlier one.
func buildCopySegments(in *CrossoverInputs, breaks []Breakpoint) []copySegment {
	end := in.Chromosome.LastPosition + 1
	segs := make([]copySegment, 0, 2*len(breaks)+1)
	cursor := int64(0)

	add := func(from, to int64, strand int, het bool) {
		if from < cursor {
			from = cursor
		}
		if to > end {
			to = end
		}
		if to > from {
			segs = append(segs, copySegment{Start: from, End: to, Strand: strand, Heteroduplex: het})
			cursor = to
		}
	}

	strand := 0
	for _, bp := range breaks {
		if bp.GeneConversion {
			add(cursor, bp.Position, strand, false)
			add(bp.Position, bp.TractEnd, 1-strand, bp.Complex)
		} else {
			add(cursor, bp.Position, strand, false)
			strand = 1 - strand
		}
	}
	add(cursor, end, strand, false)
	return segs
}

// emitCoverageEdges records one edge per copy segment so the child
// node's ancestry covers the full chromosome extent: a child with no
// breakpoints still yields a single parent-to-child edge (§4.6 step 6,
// §4.9). A heteroduplex segment is attributed to its donor strand.
func emitCoverageEdges(in *CrossoverInputs, segs []copySegment) {
	if in.Callbacks.RecordEdge == nil {
		return
	}
	for _, seg := range segs {
		in.Callbacks.RecordEdge(seg.Start, seg.End, seg.Strand)
	}
}

// jointDrawEventCounts implements the three-way cumulative-probability
// joint draw of (mutation count, breakpoint count) from §4.6 step 1: a
// single uniform draw decides which of (both zero, M only, B only, both
// nonzero) regime applies, saving an RNG draw in the common empty case.
func jointDrawEventCounts(rng *RNGStream, mutationRate, recombRate float64) (int64, int64) {
	pBothZero := expNeg(mutationRate) * expNeg(recombRate)
	pMZeroBNonzero := expNeg(mutationRate) * (1 - expNeg(recombRate))
	pMNonzeroBZero := (1 - expNeg(mutationRate)) * expNeg(recombRate)

	u := rng.Uniform01()
	switch {
	case u < pBothZero:
		return 0, 0
	case u < pBothZero+pMZeroBNonzero:
		return 0, rng.TruncatedPoisson(recombRate)
	case u < pBothZero+pMZeroBNonzero+pMNonzeroBZero:
		return rng.TruncatedPoisson(mutationRate), 0
	default:
		return rng.TruncatedPoisson(mutationRate), rng.TruncatedPoisson(recombRate)
	}
}

func expNeg(rate float64) float64 {
	if rate <= 0 {
		return 1
	}
	// Matches RateMap.ExpNegOverallRate's cached value when rate is the
	// map's own overall rate; recomputed here since mutationRate/
	// recombRate may be zero (no map configured).
	return math.Exp(-rate)
}

// drawBreakpoints draws bCount breakpoint positions weighted by
// recombination sub-interval rate, applying the DSB/gene-conversion
// model when enabled (§4.6 step 2).
func drawBreakpoints(in *CrossoverInputs, bCount int64) []Breakpoint {
	if bCount == 0 || in.RecombMap == nil {
		return nil
	}
	out := make([]Breakpoint, 0, bCount)
	for i := int64(0); i < bCount; i++ {
		pos := drawWeightedPosition(in.RNG, in.Chromosome, in.RecombMap)
		bp := Breakpoint{Position: pos}
		if in.Chromosome.DSB.Enabled && in.RNG.Bernoulli(in.Chromosome.DSB.NonCrossoverFraction) {
			bp.GeneConversion = true
			bp.Complex = !in.RNG.Bernoulli(in.Chromosome.DSB.SimpleFraction)
			tractLen := in.RNG.Geometric(in.Chromosome.DSB.GeneConversionAvgLength)
			tractEnd := pos + tractLen
			if tractEnd > in.Chromosome.LastPosition+1 {
				if in.Chromosome.DSB.RedrawLengthsOnFailure {
					tractLen = in.Chromosome.LastPosition + 1 - pos
				}
				tractEnd = in.Chromosome.LastPosition + 1
			}
			bp.TractEnd = tractEnd
		}
		out = append(out, bp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// drawWeightedPosition picks a recombination-map segment proportional to
// its contribution to the map's overall rate, then a uniform offset
// inside it.
func drawWeightedPosition(rng *RNGStream, chromosome *Chromosome, rateMap *RateMap) int64 {
	weights := make([]float64, len(rateMap.rates))
	for i := range rateMap.rates {
		start, end := rateMap.segmentBounds(i)
		weights[i] = rateMap.rates[i] * float64(end-start)
	}
	seg := rng.WeightedIndex(weights)
	start, end := rateMap.segmentBounds(seg)
	if end <= start {
		return start
	}
	return start + rng.UniformInt(end-start)
}

// drawMutationPositions distributes mCount new mutations across the
// precomputed GESubranges proportional to rate-weighted length, sorts,
// and uniques the resulting position list (§4.6 step 3).
func drawMutationPositions(in *CrossoverInputs, mCount int64) []NewMutationDraw {
	if mCount == 0 || len(in.Subranges) == 0 {
		return nil
	}
	weights := make([]float64, len(in.Subranges))
	for i, sr := range in.Subranges {
		weights[i] = sr.Rate * float64(sr.End-sr.Start)
	}
	out := make([]NewMutationDraw, 0, mCount)
	for i := int64(0); i < mCount; i++ {
		idx := in.RNG.WeightedIndex(weights)
		sr := in.Subranges[idx]
		pos := sr.Start + in.RNG.UniformInt(sr.End-sr.Start)
		typeID := pickMutationType(in)
		out = append(out, NewMutationDraw{Position: pos, TypeID: typeID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	dedup := out[:0]
	for i, d := range out {
		if i > 0 && d.Position == out[i-1].Position {
			continue
		}
		dedup = append(dedup, d)
	}
	return dedup
}

func pickMutationType(in *CrossoverInputs) int32 {
	if len(in.TypeWeights) == 0 {
		return 0
	}
	return in.TypeWeights[in.RNG.UniformInt(int64(len(in.TypeWeights)))]
}

// assembleChild fills every mutrun slot of the child in sequence (§4.6
// step 4): a slot covered by a single non-heteroduplex segment with no
// new mutations shares that strand's run by pointer assignment; every
// other slot is built fresh by copying the covering segments in position
// order and splicing in new mutations.
func assembleChild(in *CrossoverInputs, segs []copySegment, muts []NewMutationDraw) error {
	chromosome := in.Chromosome
	slotLen := chromosome.MutrunLength
	if slotLen <= 0 {
		return newErr(ErrInvariant, "assembleChild", "chromosome mutrun length must be positive")
	}
	strands := [2]*Haplosome{in.Strand1, in.Strand2}

	for slot := 0; slot < in.Child.MutrunCount(); slot++ {
		slotStart := int64(slot) * slotLen
		slotEnd := slotStart + slotLen

		var slotSegs []copySegment
		for _, seg := range segs {
			lo, hi := seg.Start, seg.End
			if lo < slotStart {
				lo = slotStart
			}
			if hi > slotEnd {
				hi = slotEnd
			}
			if hi > lo {
				slotSegs = append(slotSegs, copySegment{Start: lo, End: hi, Strand: seg.Strand, Heteroduplex: seg.Heteroduplex})
			}
		}

		var slotMuts []NewMutationDraw
		for _, m := range muts {
			if m.Position >= slotStart && m.Position < slotEnd {
				slotMuts = append(slotMuts, m)
			}
		}

		// The segment list tiles the chromosome, so a single covering
		// segment means no junction falls anywhere in this slot.
		if len(slotSegs) == 1 && !slotSegs[0].Heteroduplex && len(slotMuts) == 0 {
			run := strands[slotSegs[0].Strand].Run(slot)
			if run != nil {
				run.MarkShared()
			}
			in.Child.SetRun(slot, run)
			continue
		}

		pool := chromosome.PoolForSlot(slot)
		fresh := pool.NewRun()
		for _, seg := range slotSegs {
			if seg.Heteroduplex {
				copyHeteroduplexRange(in, fresh, slot, seg)
			} else {
				copyStrandRange(in, fresh, strands[seg.Strand], slot, seg.Start, seg.End)
			}
		}
		spliceNewMutations(in, fresh, slotMuts, slotStart, slotEnd)
		in.Child.SetRun(slot, fresh)
	}

	return nil
}

// copyStrandRange appends strand's mutations with positions in [from, to)
// into fresh; segments are visited in position order, so appends stay
// sorted.
func copyStrandRange(in *CrossoverInputs, fresh *MutationRun, strand *Haplosome, slot int, from, to int64) {
	run := strand.Run(slot)
	if run == nil {
		return
	}
	for _, idx := range run.Mutations() {
		pos := in.Block.MutationForIndex(idx).Position
		if pos >= from && pos < to {
			fresh.EmplaceBack(idx)
		}
	}
}

// copyHeteroduplexRange fills a complex gene-conversion tract segment:
// positions where the donor (converting) and recipient strands carry the
// same stacked mutation set copy through unchanged, while each mismatch
// position is repaired toward the donor with probability
// (1 + mismatchRepairBias)/2 — bias 0 is unbiased, +1 always keeps the
// donor state, -1 always restores the recipient's (§4.6 step 2).
func copyHeteroduplexRange(in *CrossoverInputs, fresh *MutationRun, slot int, seg copySegment) {
	strands := [2]*Haplosome{in.Strand1, in.Strand2}
	donor := strands[seg.Strand]
	recipient := strands[1-seg.Strand]

	donorGroups := stackedGroupsInRange(in.Block, donor, slot, seg.Start, seg.End)
	recipGroups := stackedGroupsInRange(in.Block, recipient, slot, seg.Start, seg.End)

	pDonor := (1 + in.Chromosome.DSB.MismatchRepairBias) / 2
	keepDonor := func() bool { return in.RNG.Bernoulli(pDonor) }

	i, j := 0, 0
	for i < len(donorGroups) || j < len(recipGroups) {
		switch {
		case j >= len(recipGroups) || (i < len(donorGroups) && donorGroups[i].position < recipGroups[j].position):
			if keepDonor() {
				for _, idx := range donorGroups[i].indices {
					fresh.EmplaceBack(idx)
				}
			}
			i++
		case i >= len(donorGroups) || recipGroups[j].position < donorGroups[i].position:
			if !keepDonor() {
				for _, idx := range recipGroups[j].indices {
					fresh.EmplaceBack(idx)
				}
			}
			j++
		default:
			src := donorGroups[i]
			if !sameIndices(donorGroups[i].indices, recipGroups[j].indices) && !keepDonor() {
				src = recipGroups[j]
			}
			for _, idx := range src.indices {
				fresh.EmplaceBack(idx)
			}
			i++
			j++
		}
	}
}

// stackedGroup is the stacked mutation set at one position of one strand.
type stackedGroup struct {
	position int64
	indices  []MutationIndex
}

func stackedGroupsInRange(block *MutationBlock, strand *Haplosome, slot int, from, to int64) []stackedGroup {
	run := strand.Run(slot)
	if run == nil {
		return nil
	}
	var groups []stackedGroup
	for _, idx := range run.Mutations() {
		pos := block.MutationForIndex(idx).Position
		if pos < from || pos >= to {
			continue
		}
		if n := len(groups); n > 0 && groups[n-1].position == pos {
			groups[n-1].indices = append(groups[n-1].indices, idx)
		} else {
			groups = append(groups, stackedGroup{position: pos, indices: []MutationIndex{idx}})
		}
	}
	return groups
}

func sameIndices(a, b []MutationIndex) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// spliceNewMutations allocates and inserts every drawn mutation whose
// position falls in [from, to) into fresh, applying the stacking policy,
// the mutate() callback, and nucleotide divergence (§4.6 steps 4-5).
func spliceNewMutations(in *CrossoverInputs, fresh *MutationRun, muts []NewMutationDraw, from, to int64) {
	for _, d := range muts {
		if d.Position < from || d.Position >= to {
			continue
		}
		cfg := in.MutationTypes[d.TypeID]
		if cfg == nil {
			continue
		}

		effect := TraitEffect{}
		if cfg.DrawEffect != nil {
			effect = cfg.DrawEffect(in.RNG)
		}

		nucleotide := NoNucleotide
		if cfg.Nucleotide {
			nucleotide = int8(in.RNG.UniformInt(4))
			// The derived nucleotide must differ from the ancestral state
			// at this position; redraw on collision.
			if anc := in.Chromosome.AncestralNucleotide(d.Position); anc != NoNucleotide {
				for nucleotide == anc {
					nucleotide = int8(in.RNG.UniformInt(4))
				}
			}
		}

		var id int64
		if in.NextMutationID != nil {
			id = in.NextMutationID()
		}

		m := Mutation{
			ID:              id,
			MutationTypeID:  d.TypeID,
			ChromosomeIndex: in.Chromosome.Index,
			Position:        d.Position,
			OriginTick:      in.OriginTick,
			OriginSubpopID:  in.OriginSubpop,
			Nucleotide:      nucleotide,
			State:           MutationStateInRegistry,
			StackGroup:      cfg.StackGroup,
		}

		if in.Callbacks.Mutate != nil && !in.Callbacks.Mutate(&m) {
			continue
		}

		idx, err := in.Block.Allocate()
		if err != nil {
			continue
		}
		*in.Block.MutationForIndex(idx) = m
		if traits := in.Block.TraitInfoForIndex(idx); len(traits) > 0 {
			traits[0] = effect
		}

		policy := in.Stacking.PolicyFor(cfg.StackGroup)
		if !fresh.EnforceStackPolicyForAddition(d.Position, cfg.StackGroup, policy, in.Block) {
			in.Block.Dispose(idx)
			continue
		}
		if !fresh.InsertSortedMutationIfUnique(idx, d.Position, in.Block) {
			in.Block.Dispose(idx)
			continue
		}

		if in.Callbacks.RegisterMutation != nil {
			in.Callbacks.RegisterMutation(idx)
		}
		if in.Callbacks.RecordMutationSite != nil {
			in.Callbacks.RecordMutationSite(in.Block.MutationForIndex(idx))
		}
	}
}
