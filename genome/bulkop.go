package genome

// BulkOperationCoalescer deduplicates identical mutating operations
// applied across many haplosomes that share the same input run at one
// mutrun slot, so the output run is computed once per distinct input and
// shared by pointer thereafter (§4.7).
//
// Bulk operations are a main-thread-only invariant (§5): never call these
// methods from inside a parallel fork-join section.
type BulkOperationCoalescer struct {
	activeOpID int64
	activeSlot int
	active     bool

	outputs map[*MutationRun]*MutationRun // input run -> output run
}

// NewBulkOperationCoalescer constructs an idle coalescer.
func NewBulkOperationCoalescer() *BulkOperationCoalescer {
	return &BulkOperationCoalescer{outputs: make(map[*MutationRun]*MutationRun)}
}

// Start begins a bulk operation over slot_index, identified by opID. If a
// previous operation was left active (an exception bypassed End), the
// stale state is logged as a recoverable warning and reset before the
// new operation begins (§4.7).
func (c *BulkOperationCoalescer) Start(opID int64, slotIndex int, warn func(string)) {
	if c.active {
		if warn != nil {
			warn("BulkOperationCoalescer.Start: previous bulk operation was left active without a matching End; resetting")
		}
		c.reset()
	}
	c.activeOpID = opID
	c.activeSlot = slotIndex
	c.active = true
}

// WillModifyRunForBulkOperation looks up input in the coalescing map. On
// first sight it allocates a fresh output run via ctx, records the pair,
// and returns it so the caller performs the mutation. On a repeat sight
// of the same input it assigns the already-computed output directly into
// h at slotIndex and returns nil, signaling the caller to do no work.
func (c *BulkOperationCoalescer) WillModifyRunForBulkOperation(opID int64, slotIndex int, input *MutationRun, h *Haplosome, ctx *MutationRunContext) (*MutationRun, error) {
	if !c.active || opID != c.activeOpID || slotIndex != c.activeSlot {
		return nil, newErr(ErrInvariant, "BulkOperationCoalescer.WillModifyRunForBulkOperation", "called without a matching active bulk operation")
	}
	if out, ok := c.outputs[input]; ok {
		h.SetRun(slotIndex, out)
		out.MarkShared()
		return nil, nil
	}
	out := ctx.NewRun()
	out.CopyFrom(input)
	c.outputs[input] = out
	h.SetRun(slotIndex, out)
	return out, nil
}

// End closes the bulk operation, clearing the coalescing map and active
// identifiers. Calling End without a matching Start is a programmer error
// and terminates the operation (§4.7, §7).
func (c *BulkOperationCoalescer) End(opID int64, slotIndex int) error {
	if !c.active || opID != c.activeOpID || slotIndex != c.activeSlot {
		return newErr(ErrInvariant, "BulkOperationCoalescer.End", "unmatched bulk operation start/end for op %d slot %d", opID, slotIndex)
	}
	c.reset()
	return nil
}

func (c *BulkOperationCoalescer) reset() {
	c.active = false
	for k := range c.outputs {
		delete(c.outputs, k)
	}
}
