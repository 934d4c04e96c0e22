package genome

import "testing"

func TestSubpopulationSampleParentUniformWhenFitnessZero(t *testing.T) {
	s := NewSubpopulation(0)
	for i := 0; i < 5; i++ {
		s.Individuals = append(s.Individuals, &Individual{PedigreeID: int64(i)})
	}
	s.RebuildFitnessDistribution()

	rng := NewRNGStream(1, 0)
	seen := make(map[int64]bool)
	for i := 0; i < 50; i++ {
		ind := s.SampleParent(rng)
		if ind == nil {
			t.Fatalf("SampleParent returned nil for a non-empty subpopulation")
		}
		seen[ind.PedigreeID] = true
	}
	if len(seen) < 2 {
		t.Fatalf("SampleParent with all-zero fitness should still draw from the whole population, got %d distinct picks", len(seen))
	}
}

func TestSubpopulationSampleParentWeighted(t *testing.T) {
	s := NewSubpopulation(0)
	s.Individuals = []*Individual{
		{PedigreeID: 0, FitnessValue: 0},
		{PedigreeID: 1, FitnessValue: 100},
		{PedigreeID: 2, FitnessValue: 0},
	}
	s.RebuildFitnessDistribution()

	rng := NewRNGStream(1, 0)
	for i := 0; i < 20; i++ {
		ind := s.SampleParent(rng)
		if ind.PedigreeID != 1 {
			t.Fatalf("SampleParent picked pedigree %d, want the only nonzero-fitness individual (1)", ind.PedigreeID)
		}
	}
}

func TestSubpopulationSampleParentEmpty(t *testing.T) {
	s := NewSubpopulation(0)
	s.RebuildFitnessDistribution()
	if ind := s.SampleParent(NewRNGStream(1, 0)); ind != nil {
		t.Fatalf("SampleParent on an empty subpopulation should return nil")
	}
}

func TestIndividualHaplosomePair(t *testing.T) {
	h0a, h0b := &Haplosome{}, &Haplosome{}
	h1a, h1b := &Haplosome{}, &Haplosome{}
	ind := &Individual{Haplosomes: []*Haplosome{h0a, h0b, h1a, h1b}}

	a, b := ind.HaplosomePair(0)
	if a != h0a || b != h0b {
		t.Fatalf("HaplosomePair(0) returned the wrong pair")
	}
	a, b = ind.HaplosomePair(1)
	if a != h1a || b != h1b {
		t.Fatalf("HaplosomePair(1) returned the wrong pair")
	}
}
