// Package snapshot implements the external, bit-exact file formats of
// §6: text and binary population snapshots, MS format, VCF, and the
// random-nucleotide generator contract. None of these formats are part
// of the genetic-state engine itself — they are read/write adapters over
// genome.Species and genome.MutationBlock.
package snapshot

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/MesserLab/SLiM-sub011/genome"
)

// HaplosomeRef names one output haplosome by subpopulation id and
// individual index, exactly as the text/binary/MS/VCF formats reference
// it.
type HaplosomeRef struct {
	SubpopID int32
	Index    int
	Tag      string // optional; empty if untagged
	Haplosome *genome.Haplosome
}

// CollectOutputHaplosomes gathers every non-null haplosome across a
// species' subpopulations in deterministic (subpop id, individual index,
// chromosome*2+copy) order, suitable for any of the §6 output formats.
func CollectOutputHaplosomes(species *genome.Species) []HaplosomeRef {
	subpopIDs := make([]int32, 0, len(species.Subpops))
	for id := range species.Subpops {
		subpopIDs = append(subpopIDs, id)
	}
	sort.Slice(subpopIDs, func(i, j int) bool { return subpopIDs[i] < subpopIDs[j] })

	var out []HaplosomeRef
	for _, subpopID := range subpopIDs {
		subpop := species.Subpops[subpopID]
		for idx, ind := range subpop.Individuals {
			for _, h := range ind.Haplosomes {
				if h == nil || h.IsNull() {
					continue
				}
				out = append(out, HaplosomeRef{SubpopID: subpopID, Index: idx, Haplosome: h})
			}
		}
	}
	return out
}

// collectMutationIndices gathers every distinct MutationIndex present in
// any output haplosome, sorted by mutation id for stable output.
func collectMutationIndices(block *genome.MutationBlock, refs []HaplosomeRef) []genome.MutationIndex {
	seen := make(map[genome.MutationIndex]bool)
	var out []genome.MutationIndex
	for _, ref := range refs {
		h := ref.Haplosome
		for slot := 0; slot < h.MutrunCount(); slot++ {
			run := h.Run(slot)
			if run == nil {
				continue
			}
			for _, idx := range run.Mutations() {
				if !seen[idx] {
					seen[idx] = true
					out = append(out, idx)
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return block.MutationForIndex(out[i]).ID < block.MutationForIndex(out[j]).ID
	})
	return out
}

// WriteText writes the line-oriented ASCII population snapshot format of
// §6: a header, a Mutations: block, then a Haplosomes: block.
// Each mutation line carries a chromosome-symbol field, looked up in
// chromosomeSymbols, only when the species has more than one chromosome.
func WriteText(w io.Writer, header string, species *genome.Species, block *genome.MutationBlock, chromosomeSymbols map[int]string) error {
	bw := bufio.NewWriter(w)
	defer bw.Flush()

	multiChromosome := len(species.Chromosomes) > 1

	refs := CollectOutputHaplosomes(species)
	mutIndices := collectMutationIndices(block, refs)

	fmt.Fprintln(bw, header)
	fmt.Fprintln(bw, "Mutations:")
	for _, idx := range mutIndices {
		m := block.MutationForIndex(idx)
		trait := block.TraitInfoForIndex(idx)
		effect, dominance := 0.0, 0.0
		if len(trait) > 0 {
			effect, dominance = trait[0].Effect, trait[0].Dominance
		}
		if multiChromosome {
			fmt.Fprintf(bw, "%d %d %d %s %g %g %d %d", m.ID, m.MutationTypeID, m.Position, chromosomeSymbols[m.ChromosomeIndex], effect, dominance, m.OriginSubpopID, m.OriginTick)
		} else {
			fmt.Fprintf(bw, "%d %d %d %g %g %d %d", m.ID, m.MutationTypeID, m.Position, effect, dominance, m.OriginSubpopID, m.OriginTick)
		}
		if m.Nucleotide != genome.NoNucleotide {
			fmt.Fprintf(bw, " %d", m.Nucleotide)
		}
		fmt.Fprintln(bw)
	}

	fmt.Fprintln(bw, "Haplosomes:")
	for _, ref := range refs {
		fmt.Fprintf(bw, "p%d:i%d", ref.SubpopID, ref.Index)
		if ref.Tag != "" {
			fmt.Fprintf(bw, " %s", ref.Tag)
		}
		for slot := 0; slot < ref.Haplosome.MutrunCount(); slot++ {
			run := ref.Haplosome.Run(slot)
			if run == nil {
				continue
			}
			for _, idx := range run.Mutations() {
				fmt.Fprintf(bw, " %d", block.MutationForIndex(idx).ID)
			}
		}
		fmt.Fprintln(bw)
	}

	return bw.Flush()
}

// ParseText reads a text snapshot back into a mutation id -> (muttype,
// position, effect, dominance, origin subpop, origin tick, nucleotide)
// record list and a haplosome list of (subpop, index, tag, mutation ids),
// for callers that want to drive their own reconstruction rather than
// rebuild a full genome.Species here (out of scope per §1: "file I/O ...
// beyond the bit-exact layouts").
type TextMutationRecord struct {
	ID             int64
	MutationTypeID int32
	Position       int64
	ChromosomeSymbol string
	Effect         float64
	Dominance      float64
	OriginSubpopID int32
	OriginTick     int64
	Nucleotide     int8
}

type TextHaplosomeRecord struct {
	SubpopID int32
	Index    int
	Tag      string
	MutationIDs []int64
}

// ParseText parses the §6 text snapshot format produced by WriteText.
func ParseText(r io.Reader, multiChromosome bool) (header string, mutations []TextMutationRecord, haplosomes []TextHaplosomeRecord, err error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		return "", nil, nil, fmt.Errorf("snapshot: empty text snapshot")
	}
	header = scanner.Text()

	if !scanner.Scan() || scanner.Text() != "Mutations:" {
		return "", nil, nil, fmt.Errorf("snapshot: expected 'Mutations:' header")
	}
	for scanner.Scan() {
		line := scanner.Text()
		if line == "Haplosomes:" {
			break
		}
		rec, perr := parseMutationLine(line, multiChromosome)
		if perr != nil {
			return "", nil, nil, perr
		}
		mutations = append(mutations, rec)
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		rec, perr := parseHaplosomeLine(line)
		if perr != nil {
			return "", nil, nil, perr
		}
		haplosomes = append(haplosomes, rec)
	}
	if err := scanner.Err(); err != nil {
		return "", nil, nil, err
	}
	return header, mutations, haplosomes, nil
}

func parseMutationLine(line string, multiChromosome bool) (TextMutationRecord, error) {
	var fields []string
	start := 0
	for i := 0; i <= len(line); i++ {
		if i == len(line) || line[i] == ' ' {
			if i > start {
				fields = append(fields, line[start:i])
			}
			start = i + 1
		}
	}
	minFields := 7
	if multiChromosome {
		minFields = 8
	}
	if len(fields) < minFields {
		return TextMutationRecord{}, fmt.Errorf("snapshot: malformed mutation line %q", line)
	}

	var rec TextMutationRecord
	i := 0
	next := func() string { s := fields[i]; i++; return s }

	rec.ID = mustParseInt64(next())
	rec.MutationTypeID = int32(mustParseInt64(next()))
	rec.Position = mustParseInt64(next())
	if multiChromosome {
		rec.ChromosomeSymbol = next()
	}
	rec.Effect = mustParseFloat(next())
	rec.Dominance = mustParseFloat(next())
	rec.OriginSubpopID = int32(mustParseInt64(next()))
	rec.OriginTick = mustParseInt64(next())
	rec.Nucleotide = genome.NoNucleotide
	if i < len(fields) {
		rec.Nucleotide = int8(mustParseInt64(next()))
	}
	return rec, nil
}

func parseHaplosomeLine(line string) (TextHaplosomeRecord, error) {
	var fields []string
	start := 0
	for i := 0; i <= len(line); i++ {
		if i == len(line) || line[i] == ' ' {
			if i > start {
				fields = append(fields, line[start:i])
			}
			start = i + 1
		}
	}
	if len(fields) == 0 {
		return TextHaplosomeRecord{}, fmt.Errorf("snapshot: empty haplosome line")
	}

	var subpop int32
	var index int
	if _, err := fmt.Sscanf(fields[0], "p%d:i%d", &subpop, &index); err != nil {
		return TextHaplosomeRecord{}, fmt.Errorf("snapshot: malformed haplosome label %q: %w", fields[0], err)
	}

	rec := TextHaplosomeRecord{SubpopID: subpop, Index: index}
	rest := fields[1:]
	for _, f := range rest {
		if id, err := strconv.ParseInt(f, 10, 64); err == nil {
			rec.MutationIDs = append(rec.MutationIDs, id)
		} else {
			rec.Tag = f
		}
	}
	return rec, nil
}

func mustParseInt64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func mustParseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
