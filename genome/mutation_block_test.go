package genome

import "testing"

func TestMutationBlockAllocateDispose(t *testing.T) {
	b := NewMutationBlock(1, 4) // rounds up to 64

	idx1, err := b.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	idx2, err := b.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if idx1 == idx2 {
		t.Fatalf("Allocate returned the same index twice: %d", idx1)
	}

	*b.MutationForIndex(idx1) = Mutation{ID: 1, Position: 10}
	if b.MutationForIndex(idx1).Position != 10 {
		t.Fatalf("MutationForIndex did not round-trip the stored position")
	}

	b.Dispose(idx1)
	idx3, err := b.Allocate()
	if err != nil {
		t.Fatalf("Allocate after dispose: %v", err)
	}
	if idx3 != idx1 {
		t.Fatalf("Allocate after Dispose did not reuse the freed slot: got %d, want %d", idx3, idx1)
	}
}

func TestMutationBlockGrowsPastInitialCapacity(t *testing.T) {
	b := NewMutationBlock(0, 64)
	if b.Capacity() != 64 {
		t.Fatalf("Capacity = %d, want 64", b.Capacity())
	}

	for i := 0; i < 65; i++ {
		if _, err := b.Allocate(); err != nil {
			t.Fatalf("Allocate #%d: %v", i, err)
		}
	}
	if b.Capacity() <= 64 {
		t.Fatalf("Capacity did not grow past 65 allocations: %d", b.Capacity())
	}
}

func TestMutationBlockGrowForbiddenInParallel(t *testing.T) {
	b := NewMutationBlock(0, 64)
	b.inParallel = func() bool { return true }

	for i := 0; i < 64; i++ {
		if _, err := b.Allocate(); err != nil {
			t.Fatalf("Allocate #%d: %v", i, err)
		}
	}
	if _, err := b.Allocate(); err == nil {
		t.Fatalf("expected Allocate to fail growing while inParallel is true")
	}
}

func TestMutationBlockRegisterPointerPatchedOnGrow(t *testing.T) {
	b := NewMutationBlock(0, 4) // rounds up to 64
	idx, err := b.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	*b.MutationForIndex(idx) = Mutation{ID: 42}

	var held *Mutation
	held = b.MutationForIndex(idx)
	b.RegisterPointer(&held, idx)
	defer b.UnregisterPointer(&held)

	for i := 0; i < 64; i++ {
		if _, err := b.Allocate(); err != nil {
			t.Fatalf("Allocate #%d: %v", i, err)
		}
	}

	if held != b.MutationForIndex(idx) {
		t.Fatalf("registered pointer was not patched after growth")
	}
	if held.ID != 42 {
		t.Fatalf("patched pointer lost its content: ID = %d, want 42", held.ID)
	}
}

func TestMutationBlockTraitInfoForIndex(t *testing.T) {
	b := NewMutationBlock(2, 64)
	idx, err := b.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	trait := b.TraitInfoForIndex(idx)
	if len(trait) != 2 {
		t.Fatalf("TraitInfoForIndex length = %d, want 2", len(trait))
	}
	trait[0] = TraitEffect{Effect: 0.5, Dominance: 0.25}

	again := b.TraitInfoForIndex(idx)
	if again[0].Effect != 0.5 || again[0].Dominance != 0.25 {
		t.Fatalf("TraitInfoForIndex did not alias the same backing storage")
	}
}

func TestMutationBlockZeroRefcounts(t *testing.T) {
	b := NewMutationBlock(0, 64)
	idx, _ := b.Allocate()
	*b.RefcountForIndex(idx) = 7

	b.ZeroRefcounts()
	if *b.RefcountForIndex(idx) != 0 {
		t.Fatalf("ZeroRefcounts did not clear refcount for allocated index")
	}
}
