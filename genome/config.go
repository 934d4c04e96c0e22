package genome

import "encoding/json"

// ChromosomeConfig is the JSON-serializable description of one
// chromosome, consumed by NewSpeciesFromConfig to build the runtime
// Chromosome/RateMap graph. Mirrors the teacher's JSON-tagged config
// struct + Default*Config() + Validate() convention.
type ChromosomeConfig struct {
	Symbol          string             `json:"symbol"`
	Type            string             `json:"type"` // "autosome", "x", "y", "mitochondrial", "haploid-autosome"
	FirstPosition   int64              `json:"first_position"`
	LastPosition    int64              `json:"last_position"`
	MutationRate    []RateSegmentConfig `json:"mutation_rate"`
	RecombinationRate []RateSegmentConfig `json:"recombination_rate"`
	GenomicElements []GenomicElementConfig `json:"genomic_elements"`
	DSB             DSBConfig          `json:"dsb"`
	MutrunBase      int                `json:"mutrun_base"`
	MutrunMultiplier int               `json:"mutrun_multiplier"`
}

// RateSegmentConfig is one (endPosition, rate) pair of a rate map.
type RateSegmentConfig struct {
	EndPosition int64   `json:"end_position"`
	Rate        float64 `json:"rate"`
}

// GenomicElementConfig is one genomic element span.
type GenomicElementConfig struct {
	StartPosition int64 `json:"start_position"`
	EndPosition   int64 `json:"end_position"`
	TypeID        int32 `json:"type_id"`
}

// DSBConfig mirrors DSBParams for JSON configuration.
type DSBConfig struct {
	Enabled                bool    `json:"enabled"`
	NonCrossoverFraction   float64 `json:"non_crossover_fraction"`
	GeneConversionAvgLength float64 `json:"gene_conversion_avg_length"`
	SimpleFraction         float64 `json:"simple_fraction"`
	MismatchRepairBias     float64 `json:"mismatch_repair_bias"`
	RedrawLengthsOnFailure bool    `json:"redraw_lengths_on_failure"`
}

// SpeciesConfig is the top-level, JSON-serializable configuration for a
// species: its chromosomes, worker/thread count, and RNG seed.
type SpeciesConfig struct {
	Chromosomes       []ChromosomeConfig `json:"chromosomes"`
	WorkerCount       int                `json:"worker_count"`
	RandomSeed        int64              `json:"random_seed"`
	MutationBlockSize int                `json:"mutation_block_initial_capacity"`
	TraitCount        int                `json:"trait_count"`
}

// DefaultSpeciesConfig returns a single-autosome, worker-count-4 baseline
// configuration suitable as a starting point for callers building up a
// script-driven configuration incrementally.
func DefaultSpeciesConfig() SpeciesConfig {
	return SpeciesConfig{
		Chromosomes: []ChromosomeConfig{
			{
				Symbol:        "1",
				Type:          "autosome",
				FirstPosition: 0,
				LastPosition:  99999,
				MutationRate:  []RateSegmentConfig{{EndPosition: 99999, Rate: 1e-7}},
				RecombinationRate: []RateSegmentConfig{{EndPosition: 99999, Rate: 1e-8}},
				GenomicElements: []GenomicElementConfig{{StartPosition: 0, EndPosition: 99999, TypeID: 0}},
				MutrunBase:      1,
				MutrunMultiplier: 1,
			},
		},
		WorkerCount:       4,
		RandomSeed:        1,
		MutationBlockSize: 1 << 16,
		TraitCount:        1,
	}
}

// Validate checks a SpeciesConfig for the configuration errors §7 expects
// to be reported fatally and never caught.
func (c *SpeciesConfig) Validate() error {
	if len(c.Chromosomes) == 0 {
		return newErr(ErrConfiguration, "SpeciesConfig.Validate", "at least one chromosome is required")
	}
	if c.WorkerCount < 1 {
		return newErr(ErrConfiguration, "SpeciesConfig.Validate", "worker_count must be >= 1")
	}
	symbols := make(map[string]bool, len(c.Chromosomes))
	for _, ch := range c.Chromosomes {
		if symbols[ch.Symbol] {
			return newErr(ErrConfiguration, "SpeciesConfig.Validate", "duplicate chromosome symbol %q", ch.Symbol)
		}
		symbols[ch.Symbol] = true
		if err := ch.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks one chromosome's configuration.
func (c *ChromosomeConfig) Validate() error {
	if c.LastPosition < c.FirstPosition {
		return newErr(ErrConfiguration, "ChromosomeConfig.Validate", "chromosome %q: last_position %d < first_position %d", c.Symbol, c.LastPosition, c.FirstPosition)
	}
	if len(c.MutationRate) == 0 {
		return newErr(ErrConfiguration, "ChromosomeConfig.Validate", "chromosome %q: mutation_rate map must not be empty", c.Symbol)
	}
	if len(c.RecombinationRate) == 0 {
		return newErr(ErrConfiguration, "ChromosomeConfig.Validate", "chromosome %q: recombination_rate map must not be empty", c.Symbol)
	}
	prevEnd := c.FirstPosition - 1
	for _, ge := range c.GenomicElements {
		if ge.StartPosition <= prevEnd {
			return newErr(ErrConfiguration, "ChromosomeConfig.Validate", "chromosome %q: genomic elements must be sorted and non-overlapping", c.Symbol)
		}
		prevEnd = ge.EndPosition
	}
	if c.DSB.Enabled && (c.DSB.NonCrossoverFraction < 0 || c.DSB.NonCrossoverFraction > 1) {
		return newErr(ErrConfiguration, "ChromosomeConfig.Validate", "chromosome %q: dsb.non_crossover_fraction must be in [0,1]", c.Symbol)
	}
	return nil
}

// parseHaplosomeType maps a config string to HaplosomeType.
func parseHaplosomeType(s string) (HaplosomeType, error) {
	switch s {
	case "autosome", "":
		return HaplosomeAutosome, nil
	case "x":
		return HaplosomeX, nil
	case "y":
		return HaplosomeY, nil
	case "mitochondrial":
		return HaplosomeMitochondrial, nil
	case "haploid-autosome":
		return HaplosomeHaploidAutosome, nil
	default:
		return 0, newErr(ErrConfiguration, "parseHaplosomeType", "unknown chromosome type %q", s)
	}
}

// BuildRateMap converts a slice of RateSegmentConfig into a *RateMap.
func BuildRateMap(segments []RateSegmentConfig) (*RateMap, error) {
	ends := make([]int64, len(segments))
	rates := make([]float64, len(segments))
	for i, seg := range segments {
		ends[i] = seg.EndPosition
		rates[i] = seg.Rate
	}
	return NewRateMap(ends, rates)
}

// NewSpeciesFromConfig builds a fully wired Species (mutation block,
// chromosomes with rate maps and genomic elements, per-chromosome
// optimizer and pools) from a validated SpeciesConfig.
func NewSpeciesFromConfig(cfg SpeciesConfig) (*Species, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	block := NewMutationBlock(cfg.TraitCount, cfg.MutationBlockSize)
	species := NewSpecies(block, cfg.WorkerCount, cfg.RandomSeed)

	for i, chCfg := range cfg.Chromosomes {
		typ, err := parseHaplosomeType(chCfg.Type)
		if err != nil {
			return nil, err
		}
		mutMap, err := BuildRateMap(chCfg.MutationRate)
		if err != nil {
			return nil, err
		}
		recMap, err := BuildRateMap(chCfg.RecombinationRate)
		if err != nil {
			return nil, err
		}
		chromosome, err := NewChromosome(i, chCfg.Symbol, typ, chCfg.FirstPosition, chCfg.LastPosition, mutMap, recMap, cfg.WorkerCount)
		if err != nil {
			return nil, err
		}
		if chCfg.MutrunBase > 0 && chCfg.MutrunMultiplier > 0 {
			if err := chromosome.SetMutrunLayout(chCfg.MutrunBase, chCfg.MutrunMultiplier); err != nil {
				return nil, err
			}
		}
		for _, ge := range chCfg.GenomicElements {
			if err := chromosome.AddGenomicElement(GenomicElement{StartPosition: ge.StartPosition, EndPosition: ge.EndPosition, TypeID: ge.TypeID}); err != nil {
				return nil, err
			}
		}
		chromosome.DSB = DSBParams{
			Enabled:                 chCfg.DSB.Enabled,
			NonCrossoverFraction:    chCfg.DSB.NonCrossoverFraction,
			GeneConversionAvgLength: chCfg.DSB.GeneConversionAvgLength,
			SimpleFraction:          chCfg.DSB.SimpleFraction,
			MismatchRepairBias:      chCfg.DSB.MismatchRepairBias,
			RedrawLengthsOnFailure:  chCfg.DSB.RedrawLengthsOnFailure,
		}
		species.Chromosomes = append(species.Chromosomes, chromosome)
	}

	return species, nil
}

// MarshalConfig encodes a SpeciesConfig as indented JSON; decoding is
// left to encoding/json.Unmarshal.
func MarshalConfig(cfg SpeciesConfig) ([]byte, error) {
	return json.MarshalIndent(cfg, "", "  ")
}
