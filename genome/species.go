package genome

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// TreeSequenceRecorder is the subset of the tree-sequence recorder that
// the genetic-state engine drives directly during reproduction and tick
// advancement (§4.9, §4.10). Declared here rather than imported, so the
// treeseq package can depend on genome without a cycle.
type TreeSequenceRecorder interface {
	NewNode(chromosomeIndex int, pedigreeID int64) int64
	RecordEdge(chromosomeIndex int, leftPosition, rightPosition int64, parentNode, childNode int64)
	RecordMutationSite(chromosomeIndex int, nodeID int64, m *Mutation)
	AdvanceTick(tick int64, aliveIndividuals []*Individual)
}

// TickHooks are the script-level callback groups invoked at each phase
// boundary of §4.10. Any field may be nil.
type TickHooks struct {
	FirstEvents        func(ctx context.Context) error
	EarlyEvents        func(ctx context.Context) error
	LateEvents         func(ctx context.Context) error
	RecalculateFitness func(individual *Individual) float64
}

// Species coordinates one simulated species: its mutation arena,
// chromosomes, subpopulations, and the per-tick phase sequence of §4.10.
type Species struct {
	Block       *MutationBlock
	Chromosomes []*Chromosome
	Subpops     map[int32]*Subpopulation
	Stacking    *StackingPolicyTable
	BulkOps     *BulkOperationCoalescer
	MutationTypes map[int32]*MutationTypeConfig

	RNGs []*RNGStream // one per worker thread, indexed by worker id

	TreeSeq TreeSequenceRecorder // optional; nil disables tree-sequence recording

	Tick int64

	registryMu      sync.Mutex
	registry        []MutationIndex // mutations currently segregating
	substitutions   []Substitution
	nextMutationID  int64 // incremented under atomic.AddInt64 per §5
	nextPedigreeID  int64
	nextSweepOpID   int64 // GC sweep stamps, negated so they never collide with pool operation ids

	nonneutralChangeCounter int64

	inParallelSection int32 // set while generateOffspring's fork-join section is active
}

// NewSpecies constructs a species with an empty registry, ready to
// receive chromosomes and subpopulations.
func NewSpecies(block *MutationBlock, workerCount int, baseSeed int64) *Species {
	rngs := make([]*RNGStream, workerCount)
	for i := range rngs {
		rngs[i] = NewRNGStream(baseSeed, i)
	}
	species := &Species{
		Block:         block,
		Subpops:       make(map[int32]*Subpopulation),
		Stacking:      NewStackingPolicyTable(),
		BulkOps:       NewBulkOperationCoalescer(),
		MutationTypes: make(map[int32]*MutationTypeConfig),
		RNGs:          rngs,
	}
	block.SetInParallel(func() bool { return atomic.LoadInt32(&species.inParallelSection) != 0 })
	return species
}

// NextMutationID atomically increments and returns the species-wide
// monotonically increasing mutation id counter (§5: "gSLiM_next_mutation_id
// is incremented under a critical section").
func (s *Species) NextMutationID() int64 {
	return atomic.AddInt64(&s.nextMutationID, 1)
}

// RunTick executes one full WF-model tick in the order given by §4.10:
// first-event scripts, offspring generation, early-event scripts, fitness
// recalculation, generation swap, late-event scripts, then tick
// advancement (registry GC and tree-seq auto-simplify trigger).
func (s *Species) RunTick(ctx context.Context, hooks TickHooks) error {
	if hooks.FirstEvents != nil {
		if err := hooks.FirstEvents(ctx); err != nil {
			return err
		}
	}

	children, err := s.generateOffspring(ctx)
	if err != nil {
		return err
	}

	if hooks.EarlyEvents != nil {
		if err := hooks.EarlyEvents(ctx); err != nil {
			return err
		}
	}

	s.recalculateFitness(hooks.RecalculateFitness)

	s.swapGenerations(children)

	if hooks.LateEvents != nil {
		if err := hooks.LateEvents(ctx); err != nil {
			return err
		}
	}

	s.advanceTick()
	return nil
}

// offspringJob is one (subpop, slot) unit of work in the flattened job list
// generateOffspring's worker pool drains.
type offspringJob struct {
	subpopID int32
	subpop   *Subpopulation
	slot     int
}

// generateOffspring fans out child production across subpopulations and
// individuals using a fixed pool of len(s.RNGs) worker goroutines, each
// exclusively owning one RNGStream for its whole lifetime (§5: "bulk-
// parallel fork-join sections over independent haplosomes"). Jobs are
// drawn from one shared counter rather than dispatched by a fixed i%N
// assignment: the latter would let two goroutines racing on completion
// order both claim the same RNGStream index at once, since SetLimit bounds
// total concurrency but not which goroutines overlap. Each child's own
// construction remains sequential; only different children run
// concurrently, and never on the same RNGStream at the same time.
func (s *Species) generateOffspring(ctx context.Context) (map[int32][]*Individual, error) {
	atomic.StoreInt32(&s.inParallelSection, 1)
	defer atomic.StoreInt32(&s.inParallelSection, 0)

	results := make(map[int32][]*Individual, len(s.Subpops))
	var jobs []offspringJob
	for subpopID, subpop := range s.Subpops {
		target := subpop.Size() // WF model: constant population size
		kids := make([]*Individual, target)
		results[subpopID] = kids
		for slot := 0; slot < target; slot++ {
			jobs = append(jobs, offspringJob{subpopID: subpopID, subpop: subpop, slot: slot})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	var nextJob int64

	workerCount := len(s.RNGs)
	if workerCount > len(jobs) {
		workerCount = len(jobs)
	}
	for w := 0; w < workerCount; w++ {
		rng := s.RNGs[w]
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				i := atomic.AddInt64(&nextJob, 1) - 1
				if i >= int64(len(jobs)) {
					return nil
				}
				job := jobs[i]
				child, err := s.makeChild(job.subpop, job.subpopID, rng)
				if err != nil {
					return err
				}
				results[job.subpopID][job.slot] = child
			}
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// makeChild samples a parent pair from subpop and runs crossover-mutation
// once per strand per chromosome to fill a freshly pool-allocated child.
func (s *Species) makeChild(subpop *Subpopulation, subpopID int32, rng *RNGStream) (*Individual, error) {
	parent1, parent2 := subpop.SampleParentPair(rng)

	child := &Individual{
		PedigreeID:        atomic.AddInt64(&s.nextPedigreeID, 1),
		SubpopID:          subpopID,
		Parent1PedigreeID: parent1.PedigreeID,
		Parent2PedigreeID: parent2.PedigreeID,
		Haplosomes:        make([]*Haplosome, 2*len(s.Chromosomes)),
	}

	for ci, chromosome := range s.Chromosomes {
		if err := s.fillChildChromosome(chromosome, ci, parent1, parent2, child, rng); err != nil {
			return nil, err
		}
	}
	return child, nil
}

// fillChildChromosome runs crossover-mutation twice (one per resulting
// haplosome copy), each time nominating one parent as "strand1" and
// alternating which parent contributes it, matching diploid inheritance.
func (s *Species) fillChildChromosome(chromosome *Chromosome, chromIdx int, parent1, parent2 *Individual, child *Individual, rng *RNGStream) error {
	p1a, p1b := parent1.HaplosomePair(chromIdx)
	p2a, p2b := parent2.HaplosomePair(chromIdx)

	mutMap := chromosome.MutationMapH
	recMap := chromosome.RecombinationMapH
	var subranges []GESubrange
	if mutMap != nil {
		subranges = ComputeGESubranges(chromosome, mutMap)
	}

	pairs := [2]struct {
		strand1, strand2 *Haplosome
	}{
		{p1a, p1b},
		{p2a, p2b},
	}

	for copyIdx := 0; copyIdx < 2; copyIdx++ {
		childHap := chromosome.NewHaplosomeNonNull(child)
		in := &CrossoverInputs{
			Chromosome:    chromosome,
			Strand1:       pairs[copyIdx].strand1,
			Strand2:       pairs[copyIdx].strand2,
			Child:         childHap,
			Block:         s.Block,
			MutationMap:   mutMap,
			RecombMap:     recMap,
			Subranges:     subranges,
			MutationTypes: s.MutationTypes,
			TypeWeights:   s.mutationTypeIDs(),
			Stacking:      s.Stacking,
			RNG:            rng,
			OriginTick:     s.Tick,
			OriginSubpop:   child.SubpopID,
			NextMutationID: s.NextMutationID,
		}
		in.Callbacks.RegisterMutation = s.RegisterMutation
		if s.TreeSeq != nil {
			childHap.TreeSeqNodeID = s.TreeSeq.NewNode(chromIdx, child.PedigreeID)
			strand1, strand2 := pairs[copyIdx].strand1, pairs[copyIdx].strand2
			childNode := childHap.TreeSeqNodeID
			in.Callbacks.RecordEdge = func(left, right int64, fromStrand int) {
				parentNode := strand1.TreeSeqNodeID
				if fromStrand == 1 {
					parentNode = strand2.TreeSeqNodeID
				}
				s.TreeSeq.RecordEdge(chromIdx, left, right, parentNode, childNode)
			}
			in.Callbacks.RecordMutationSite = func(m *Mutation) {
				s.TreeSeq.RecordMutationSite(chromIdx, childNode, m)
			}
		}
		if err := Execute(in); err != nil {
			return err
		}
		child.Haplosomes[2*chromIdx+copyIdx] = childHap
	}
	return nil
}

func (s *Species) mutationTypeIDs() []int32 {
	ids := make([]int32, 0, len(s.MutationTypes))
	for id := range s.MutationTypes {
		ids = append(ids, id)
	}
	return ids
}

// recalculateFitness invokes the fitness callback for every individual in
// every subpopulation and rebuilds each subpop's sampling distribution
// (§4.10 step 4).
func (s *Species) recalculateFitness(recalc func(*Individual) float64) {
	for _, subpop := range s.Subpops {
		for _, ind := range subpop.Individuals {
			if recalc != nil {
				ind.FitnessValue = recalc(ind)
			} else {
				ind.FitnessValue = 1.0
			}
		}
		subpop.RebuildFitnessDistribution()
	}
}

// swapGenerations replaces each subpopulation's individuals with the
// freshly generated children, freeing the retiring parents' haplosomes
// back into their chromosomes' junkyards (§4.10 step 5).
func (s *Species) swapGenerations(children map[int32][]*Individual) {
	for subpopID, subpop := range s.Subpops {
		for _, parent := range subpop.Individuals {
			for _, h := range parent.Haplosomes {
				if h == nil {
					continue
				}
				s.Chromosomes[h.ChromosomeIndex].FreeHaplosome(h)
			}
		}
		subpop.Individuals = children[subpopID]
	}
}

// advanceTick bumps the tick counter, tallies mutation-run use counts and
// garbage-collects the mutation registry, and notifies the tree-sequence
// recorder so it can trigger auto-simplification if due (§4.10 step 7).
func (s *Species) advanceTick() {
	s.Tick++
	s.nonneutralChangeCounter++

	s.TallyMutationRunUseCounts()
	s.garbageCollectRegistry()

	if s.TreeSeq != nil {
		alive := make([]*Individual, 0)
		for _, subpop := range s.Subpops {
			alive = append(alive, subpop.Individuals...)
		}
		s.TreeSeq.AdvanceTick(s.Tick, alive)
	}
}

// TallyMutationRunUseCounts recounts, for every mutation run referenced
// by a live haplosome, how many haplosome slots share it, stamping each
// run's use count with the observed total. Returns the total number of
// mutation references seen across all slots (each shared run's entries
// counted once per referencing slot), which must equal the sum of
// per-mutation refcounts computed by the registry GC pass.
func (s *Species) TallyMutationRunUseCounts() int64 {
	counts := make(map[*MutationRun]int32)
	var totalRefs int64
	for _, subpop := range s.Subpops {
		for _, ind := range subpop.Individuals {
			for _, h := range ind.Haplosomes {
				if h == nil || h.IsNull() {
					continue
				}
				for slot := 0; slot < h.MutrunCount(); slot++ {
					if run := h.Run(slot); run != nil {
						counts[run]++
						totalRefs += int64(run.Len())
					}
				}
			}
		}
	}
	for run, n := range counts {
		run.SetUseCount(n)
	}
	return totalRefs
}

// garbageCollectRegistry tallies every haplosome's mutation refcounts,
// then retires every registry entry that is no longer segregating: a
// mutation whose refcount reaches the total non-null haplosome count for
// its chromosome is fixed (recorded as a substitution, dropped from every
// run, and its slot disposed); one whose refcount is zero is lost and
// disposed.
func (s *Species) garbageCollectRegistry() {
	s.Block.ZeroRefcounts()

	totalHaplosomesByChromosome := make([]int, len(s.Chromosomes))
	for _, subpop := range s.Subpops {
		for _, ind := range subpop.Individuals {
			for _, h := range ind.Haplosomes {
				if h == nil || h.IsNull() {
					continue
				}
				totalHaplosomesByChromosome[h.ChromosomeIndex]++
				for slot := 0; slot < h.MutrunCount(); slot++ {
					run := h.Run(slot)
					if run == nil {
						continue
					}
					for _, idx := range run.Mutations() {
						*s.Block.RefcountForIndex(idx)++
					}
				}
			}
		}
	}

	kept := s.registry[:0]
	for _, idx := range s.registry {
		refcount := *s.Block.RefcountForIndex(idx)
		m := s.Block.MutationForIndex(idx)
		total := 0
		if m.ChromosomeIndex >= 0 && m.ChromosomeIndex < len(totalHaplosomesByChromosome) {
			total = totalHaplosomesByChromosome[m.ChromosomeIndex]
		}
		switch {
		case refcount == 0:
			s.Block.Dispose(idx)
		case int(refcount) >= total && total > 0:
			m.State = MutationStateFixed
			s.substitutions = append(s.substitutions, substitutionFromMutation(m, s.Tick))
			// Each fixation gets its own sweep stamp: RemoveFixedMutations
			// skips runs already stamped with the same id, so reusing one id
			// across the pass would leave every fixation after the first
			// unswept while its index is recycled. Sweep ids are negative so
			// they can never collide with the pools' positive operation ids.
			s.removeFixedFromAllRuns(-atomic.AddInt64(&s.nextSweepOpID, 1))
			s.Block.Dispose(idx)
		default:
			kept = append(kept, idx)
		}
	}
	s.registry = kept
}

// removeFixedFromAllRuns sweeps every live haplosome's runs once, dropping
// entries whose mutation has just been marked fixed. Stamped with opID so
// a run shared by many haplosomes is only rewritten once.
func (s *Species) removeFixedFromAllRuns(opID int64) {
	for _, subpop := range s.Subpops {
		for _, ind := range subpop.Individuals {
			for _, h := range ind.Haplosomes {
				if h == nil || h.IsNull() {
					continue
				}
				for slot := 0; slot < h.MutrunCount(); slot++ {
					if run := h.Run(slot); run != nil {
						run.RemoveFixedMutations(opID, s.Block)
					}
				}
			}
		}
	}
}

// RegisterMutation adds a newly allocated mutation to the segregating
// registry; called once per accepted mutation drawn in crossover-mutation.
// Safe to call concurrently from the parallel offspring-generation fork-
// join section (§5).
func (s *Species) RegisterMutation(idx MutationIndex) {
	s.registryMu.Lock()
	s.registry = append(s.registry, idx)
	s.registryMu.Unlock()
}

// LogWarning reports a recoverable warning (§7) via the standard logger,
// matching the teacher's plain log.Printf diagnostics rather than a
// structured logging library.
func LogWarning(format string, args ...any) {
	log.Printf("warning: "+format, args...)
}
