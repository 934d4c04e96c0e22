package genome

import (
	"math"
	"sort"
	"sync"
)

// RateMap is a piecewise-constant rate map: a sequence of (endPosition,
// rate) segments covering a chromosome, with a cached overall rate and
// exp(-overall rate) for fast Poisson draws (§3).
type RateMap struct {
	endPositions []int64
	rates        []float64

	overallRate       float64
	expNegOverallRate float64
}

// NewRateMap builds a rate map from parallel end-position/rate slices.
// endPositions must be strictly ascending and its last entry must cover
// the chromosome's last position.
func NewRateMap(endPositions []int64, rates []float64) (*RateMap, error) {
	if len(endPositions) == 0 || len(endPositions) != len(rates) {
		return nil, newErr(ErrConfiguration, "NewRateMap", "end positions and rates must be equal-length and non-empty")
	}
	prev := int64(-1)
	total := 0.0
	for i, end := range endPositions {
		if end <= prev {
			return nil, newErr(ErrConfiguration, "NewRateMap", "end positions must be strictly ascending")
		}
		if rates[i] < 0 {
			return nil, newErr(ErrConfiguration, "NewRateMap", "rate %g at segment %d is negative", rates[i], i)
		}
		total += rates[i] * float64(end-prev)
		prev = end
	}
	return &RateMap{
		endPositions:      append([]int64(nil), endPositions...),
		rates:             append([]float64(nil), rates...),
		overallRate:       total,
		expNegOverallRate: math.Exp(-total),
	}, nil
}

// RateAt returns the per-base rate of the segment containing position.
func (m *RateMap) RateAt(position int64) float64 {
	i := sort.Search(len(m.endPositions), func(i int) bool { return m.endPositions[i] >= position })
	if i >= len(m.rates) {
		i = len(m.rates) - 1
	}
	return m.rates[i]
}

// OverallRate returns the cached total rate across the whole map.
func (m *RateMap) OverallRate() float64 { return m.overallRate }

// ExpNegOverallRate returns the cached exp(-overall rate), used to draw
// "is the count zero" cheaply without a full Poisson sample.
func (m *RateMap) ExpNegOverallRate() float64 { return m.expNegOverallRate }

// segmentBounds returns the [start, end) extent of segment i.
func (m *RateMap) segmentBounds(i int) (int64, int64) {
	start := int64(0)
	if i > 0 {
		start = m.endPositions[i-1] + 1
	}
	return start, m.endPositions[i] + 1
}

// GenomicElement is one sorted, non-overlapping span of a chromosome
// referencing a genomic-element-type.
type GenomicElement struct {
	StartPosition int64
	EndPosition   int64
	TypeID        int32
}

// GenomicElementType names a fractional mix of mutation types that new
// mutations falling in a genomic element of this type are drawn from.
type GenomicElementType struct {
	ID                     int32
	MutationTypeFractions  map[int32]float64 // mutation type id -> relative fraction
}

// DSBParams holds the double-strand-break/gene-conversion model
// parameters (§3, §4.6 step 2).
type DSBParams struct {
	Enabled                bool
	NonCrossoverFraction   float64
	GeneConversionAvgLength float64 // mean tract length
	SimpleFraction         float64 // fraction of non-crossovers that are "simple" tracts
	MismatchRepairBias     float64
	RedrawLengthsOnFailure bool
}

// Chromosome is a named, typed, indexed container for one chromosome's
// rate maps, genomic-element layout, mutation-run layout, self-tuning
// mutrun-count optimizer, per-thread mutrun pools, and haplosome
// junkyards (§3).
type Chromosome struct {
	Index  int
	Symbol string
	Type   HaplosomeType

	FirstPosition int64
	LastPosition  int64

	SexSpecific bool
	// _H_ unified-access copies: when !SexSpecific these are the only
	// populated maps; when SexSpecific they mirror MutationMapM.
	MutationMapH      *RateMap
	MutationMapM      *RateMap
	MutationMapF      *RateMap
	RecombinationMapH *RateMap
	RecombinationMapM *RateMap
	RecombinationMapF *RateMap

	HotspotMap *RateMap // optional, nucleotide-sensitive hotspot multiplier

	GenomicElements     []GenomicElement
	GenomicElementTypes map[int32]*GenomicElementType
	AncestralSequence   []int8 // optional

	DSB DSBParams

	MutrunBase       int
	MutrunMultiplier int
	MutrunCount      int
	MutrunLength     int64

	Optimizer *MutrunOptimizer

	pools []*MutationRunContext

	junkyardMu      sync.Mutex // guards nullJunkyard/nonNullJunkyard: offspring for many individuals are generated concurrently (§5)
	nullJunkyard    []*Haplosome
	nonNullJunkyard []*Haplosome

	emptyRun *MutationRun // shared empty run used by zero-rate chromosomes
}

// NewChromosome constructs a chromosome with unified (non-sex-specific)
// mutation/recombination maps.
func NewChromosome(index int, symbol string, typ HaplosomeType, firstPos, lastPos int64, mutMap, recMap *RateMap, threadCount int) (*Chromosome, error) {
	if lastPos < firstPos {
		return nil, newErr(ErrConfiguration, "NewChromosome", "last_position %d < first_position %d", lastPos, firstPos)
	}
	c := &Chromosome{
		Index:               index,
		Symbol:              symbol,
		Type:                typ,
		FirstPosition:       firstPos,
		LastPosition:         lastPos,
		MutationMapH:        mutMap,
		RecombinationMapH:   recMap,
		GenomicElementTypes: make(map[int32]*GenomicElementType),
	}
	if err := c.SetMutrunLayout(threadCount, 1); err != nil {
		return nil, err
	}
	c.pools = NewMutationRunContextGroup(threadCount)
	c.Optimizer = NewMutrunOptimizer(c.MutrunCount)
	c.emptyRun = &MutationRun{nonneutralCacheStamp: -1}
	return c, nil
}

// AddGenomicElement appends a genomic element, validating non-overlap
// with prior elements and ascending order.
func (c *Chromosome) AddGenomicElement(ge GenomicElement) error {
	if ge.EndPosition < ge.StartPosition {
		return newErr(ErrConfiguration, "Chromosome.AddGenomicElement", "genomic element end %d precedes start %d", ge.EndPosition, ge.StartPosition)
	}
	if n := len(c.GenomicElements); n > 0 {
		prev := c.GenomicElements[n-1]
		if ge.StartPosition <= prev.EndPosition {
			return newErr(ErrConfiguration, "Chromosome.AddGenomicElement", "genomic elements must be sorted and non-overlapping")
		}
	}
	c.GenomicElements = append(c.GenomicElements, ge)
	return nil
}

// SetMutrunLayout sets base x multiplier = run count, validating the
// multiplier is a power of two in [1,1024] and the resulting count does
// not exceed the hard ceiling of 1024 (§4.5). It also recomputes the
// derived mutrun length, satisfying count*length-1 >= last_position.
func (c *Chromosome) SetMutrunLayout(base, multiplier int) error {
	if base < 1 {
		return newErr(ErrConfiguration, "Chromosome.SetMutrunLayout", "mutrun base count must be >= 1")
	}
	if multiplier < 1 || multiplier > 1024 || (multiplier&(multiplier-1)) != 0 {
		return newErr(ErrConfiguration, "Chromosome.SetMutrunLayout", "mutrun multiplier %d must be a power of two in [1,1024]", multiplier)
	}
	count := base * multiplier
	if count > 1024 {
		return newErr(ErrConfiguration, "Chromosome.SetMutrunLayout", "mutrun count %d exceeds the hard ceiling of 1024", count)
	}
	length := (c.LastPosition - c.FirstPosition + 1 + int64(count) - 1) / int64(count)
	if length < 1 {
		length = 1
	}
	if int64(count)*length-1 < c.LastPosition-c.FirstPosition {
		return newErr(ErrConfiguration, "Chromosome.SetMutrunLayout",
			"count*length-1 (%d) must be >= last_position-first_position (%d)", int64(count)*length-1, c.LastPosition-c.FirstPosition)
	}
	c.MutrunBase = base
	c.MutrunMultiplier = multiplier
	c.MutrunCount = count
	c.MutrunLength = length
	return nil
}

// AncestralNucleotide returns the ancestral nucleotide at position, or
// NoNucleotide when the chromosome carries no ancestral sequence.
func (c *Chromosome) AncestralNucleotide(position int64) int8 {
	i := position - c.FirstPosition
	if i < 0 || i >= int64(len(c.AncestralSequence)) {
		return NoNucleotide
	}
	return c.AncestralSequence[i]
}

// PoolForSlot returns the per-thread MutationRunContext responsible for
// mutrun slot i, deterministically partitioned by slot index modulo
// thread count (§5, §9).
func (c *Chromosome) PoolForSlot(i int) *MutationRunContext {
	return c.pools[i%len(c.pools)]
}

// ThreadCount returns the number of per-thread mutrun pools.
func (c *Chromosome) ThreadCount() int { return len(c.pools) }

// EmptyRun returns the chromosome's single shared empty mutation run,
// used by zero-rate chromosomes so every haplosome shares one run by
// pointer identity rather than allocating distinct empty runs.
func (c *Chromosome) EmptyRun() *MutationRun {
	c.emptyRun.MarkShared()
	return c.emptyRun
}

// NewHaplosomeNull draws a null haplosome from the chromosome's null
// junkyard, or allocates a fresh one if the junkyard is empty (§4.3).
func (c *Chromosome) NewHaplosomeNull(individual *Individual) *Haplosome {
	c.junkyardMu.Lock()
	var h *Haplosome
	if n := len(c.nullJunkyard); n > 0 {
		h = c.nullJunkyard[n-1]
		c.nullJunkyard = c.nullJunkyard[:n-1]
	}
	c.junkyardMu.Unlock()

	if h != nil {
		h.ReinitializeToNull(individual)
		return h
	}
	h = &Haplosome{ChromosomeIndex: c.Index, Type: c.Type, PedigreeID: NoPedigreeID}
	h.ReinitializeToNull(individual)
	return h
}

// NewHaplosomeNonNull draws a non-null haplosome from the chromosome's
// non-null junkyard, refreshing its owning individual and mutrun layout,
// or allocates a fresh one if the junkyard is empty (§4.3).
func (c *Chromosome) NewHaplosomeNonNull(individual *Individual) *Haplosome {
	c.junkyardMu.Lock()
	var h *Haplosome
	if n := len(c.nonNullJunkyard); n > 0 {
		h = c.nonNullJunkyard[n-1]
		c.nonNullJunkyard = c.nonNullJunkyard[:n-1]
	}
	c.junkyardMu.Unlock()

	if h != nil {
		h.ReinitializeToNonNull(individual, c)
		return h
	}
	h = &Haplosome{ChromosomeIndex: c.Index, Type: c.Type, PedigreeID: NoPedigreeID}
	h.ReinitializeToNonNull(individual, c)
	return h
}

// FreeHaplosome clears a haplosome's individual back-pointer and pushes
// it onto the appropriate junkyard for reuse (§4.3).
func (c *Chromosome) FreeHaplosome(h *Haplosome) {
	h.Individual = nil
	c.junkyardMu.Lock()
	if h.IsNull() {
		c.nullJunkyard = append(c.nullJunkyard, h)
	} else {
		c.nonNullJunkyard = append(c.nonNullJunkyard, h)
	}
	c.junkyardMu.Unlock()
}
