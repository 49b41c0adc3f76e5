package ir

// SlotTable assigns positional numbers to anonymous locals the way the
// textual format requires: parameters first, then for every block its
// label followed by the results defined in it.
type SlotTable struct {
	version int
	values  map[*Value]int
	blocks  map[*BasicBlock]int
}

// Slots returns the numbering for the current state of the function. The
// table is rebuilt whenever the function changed since the last call.
func (f *Function) Slots() *SlotTable {
	if f.slots != nil && f.slots.version == f.version {
		return f.slots
	}
	t := &SlotTable{
		version: f.version,
		values:  make(map[*Value]int),
		blocks:  make(map[*BasicBlock]int),
	}
	next := 0
	for _, p := range f.Params {
		if p.Value.Name == "" {
			t.values[p.Value] = next
			next++
		}
	}
	for _, b := range f.Blocks {
		if b.Label == "" {
			t.blocks[b] = next
			next++
		}
		for _, id := range b.Instrs {
			if r := f.instrs[id].GetResult(); r != nil && r.Name == "" {
				t.values[r] = next
				next++
			}
		}
		if b.Terminator != nil {
			if r := b.Terminator.GetResult(); r != nil && r.Name == "" {
				t.values[r] = next
				next++
			}
		}
	}
	f.slots = t
	return t
}

// Value returns the slot of an anonymous local.
func (t *SlotTable) Value(v *Value) (int, bool) {
	n, ok := t.values[v]
	return n, ok
}

// Block returns the slot of an anonymous block.
func (t *SlotTable) Block(b *BasicBlock) (int, bool) {
	n, ok := t.blocks[b]
	return n, ok
}
