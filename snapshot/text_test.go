package snapshot

import (
	"bytes"
	"strings"
	"testing"
)

func TestWriteTextSingleChromosomeOmitsSymbolField(t *testing.T) {
	species, block, _ := newTestSpeciesOneSubpop(t, 2)
	h := species.Subpops[0].Individuals[0].Haplosomes[0]
	insertMutation(t, block, h, 500, 7)

	var buf bytes.Buffer
	if err := WriteText(&buf, "#OUT: 1 A", species, block, map[int]string{0: "I"}); err != nil {
		t.Fatalf("WriteText: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if lines[0] != "#OUT: 1 A" {
		t.Fatalf("header = %q, want %q", lines[0], "#OUT: 1 A")
	}
	if lines[1] != "Mutations:" {
		t.Fatalf("line 1 = %q, want Mutations:", lines[1])
	}
	fields := strings.Fields(lines[2])
	// id muttype position effect dominance origin-subpop origin-tick
	if len(fields) != 7 {
		t.Fatalf("single-chromosome mutation line has %d fields, want 7: %q", len(fields), lines[2])
	}
	if fields[0] != "7" || fields[2] != "500" {
		t.Fatalf("mutation line = %q, want id 7 at position 500", lines[2])
	}
}

func TestWriteTextParseTextRoundTrip(t *testing.T) {
	species, block, _ := newTestSpeciesOneSubpop(t, 2)
	h0 := species.Subpops[0].Individuals[0].Haplosomes[0]
	h1 := species.Subpops[0].Individuals[1].Haplosomes[1]
	insertMutation(t, block, h0, 100, 1)
	shared := insertMutation(t, block, h0, 200, 2)
	insertExistingMutation(t, block, h1, shared)

	var buf bytes.Buffer
	if err := WriteText(&buf, "#OUT: 5 A", species, block, nil); err != nil {
		t.Fatalf("WriteText: %v", err)
	}

	header, muts, haps, err := ParseText(&buf, false)
	if err != nil {
		t.Fatalf("ParseText: %v", err)
	}
	if header != "#OUT: 5 A" {
		t.Fatalf("header = %q", header)
	}
	if len(muts) != 2 {
		t.Fatalf("len(mutations) = %d, want 2", len(muts))
	}
	if muts[0].ID != 1 || muts[0].Position != 100 {
		t.Fatalf("mutation 0 = %+v, want id 1 at 100", muts[0])
	}
	if muts[1].ID != 2 || muts[1].Position != 200 {
		t.Fatalf("mutation 1 = %+v, want id 2 at 200", muts[1])
	}
	// 2 individuals x 2 haplosomes each.
	if len(haps) != 4 {
		t.Fatalf("len(haplosomes) = %d, want 4", len(haps))
	}
	if haps[0].SubpopID != 0 || haps[0].Index != 0 {
		t.Fatalf("haplosome 0 labeled p%d:i%d, want p0:i0", haps[0].SubpopID, haps[0].Index)
	}
	if got := haps[0].MutationIDs; len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("haplosome 0 mutation ids = %v, want [1 2]", got)
	}
	if got := haps[3].MutationIDs; len(got) != 1 || got[0] != 2 {
		t.Fatalf("haplosome 3 mutation ids = %v, want [2]", got)
	}
}

func TestParseTextRejectsMissingMutationsHeader(t *testing.T) {
	r := strings.NewReader("#OUT: 1 A\nnot-the-block\n")
	if _, _, _, err := ParseText(r, false); err == nil {
		t.Fatalf("expected an error for a snapshot missing the Mutations: header")
	}
}

func TestParseTextRejectsEmptyInput(t *testing.T) {
	if _, _, _, err := ParseText(strings.NewReader(""), false); err == nil {
		t.Fatalf("expected an error for an empty snapshot")
	}
}

func TestParseTextMultiChromosomeReadsSymbolField(t *testing.T) {
	in := "#OUT: 1 A\nMutations:\n9 0 42 II 0.1 0.5 0 3\nHaplosomes:\np0:i0 9\n"
	_, muts, haps, err := ParseText(strings.NewReader(in), true)
	if err != nil {
		t.Fatalf("ParseText: %v", err)
	}
	if len(muts) != 1 || muts[0].ChromosomeSymbol != "II" {
		t.Fatalf("mutations = %+v, want one with chromosome symbol II", muts)
	}
	if muts[0].Effect != 0.1 || muts[0].Dominance != 0.5 {
		t.Fatalf("mutation effect/dominance = %g/%g, want 0.1/0.5", muts[0].Effect, muts[0].Dominance)
	}
	if len(haps) != 1 || len(haps[0].MutationIDs) != 1 || haps[0].MutationIDs[0] != 9 {
		t.Fatalf("haplosomes = %+v, want one carrying mutation 9", haps)
	}
}
