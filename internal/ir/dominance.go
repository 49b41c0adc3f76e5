package ir

// DomTree holds immediate dominators of a function's reachable blocks,
// computed with the Cooper-Harvey-Kennedy iterative algorithm.
type DomTree struct {
	entry *BasicBlock
	order []*BasicBlock // reverse postorder
	index map[*BasicBlock]int
	idom  map[*BasicBlock]*BasicBlock
	preds map[*BasicBlock][]*BasicBlock
}

// Predecessors maps every block to the blocks branching to it.
func Predecessors(fn *Function) map[*BasicBlock][]*BasicBlock {
	preds := make(map[*BasicBlock][]*BasicBlock)
	for _, b := range fn.Blocks {
		for _, succ := range b.Successors() {
			preds[succ] = appendUnique(preds[succ], b)
		}
	}
	return preds
}

// NewDomTree computes the dominator tree of fn.
func NewDomTree(fn *Function) *DomTree {
	d := &DomTree{
		entry: fn.EntryBlock(),
		index: make(map[*BasicBlock]int),
		idom:  make(map[*BasicBlock]*BasicBlock),
		preds: Predecessors(fn),
	}
	if d.entry == nil {
		return d
	}

	var postorder []*BasicBlock
	visited := make(map[*BasicBlock]bool)
	var walk func(b *BasicBlock)
	walk = func(b *BasicBlock) {
		visited[b] = true
		for _, succ := range b.Successors() {
			if !visited[succ] {
				walk(succ)
			}
		}
		postorder = append(postorder, b)
	}
	walk(d.entry)

	for i := len(postorder) - 1; i >= 0; i-- {
		d.index[postorder[i]] = len(d.order)
		d.order = append(d.order, postorder[i])
	}

	d.idom[d.entry] = d.entry
	for changed := true; changed; {
		changed = false
		for _, b := range d.order[1:] {
			var newIdom *BasicBlock
			for _, p := range d.preds[b] {
				if _, done := d.idom[p]; !done {
					continue
				}
				if newIdom == nil {
					newIdom = p
				} else {
					newIdom = d.intersect(p, newIdom)
				}
			}
			if newIdom != nil && d.idom[b] != newIdom {
				d.idom[b] = newIdom
				changed = true
			}
		}
	}
	return d
}

func (d *DomTree) intersect(a, b *BasicBlock) *BasicBlock {
	for a != b {
		for d.index[a] > d.index[b] {
			a = d.idom[a]
		}
		for d.index[b] > d.index[a] {
			b = d.idom[b]
		}
	}
	return a
}

// Reachable reports whether b can be reached from the entry block.
func (d *DomTree) Reachable(b *BasicBlock) bool {
	_, ok := d.index[b]
	return ok
}

// IDom returns the immediate dominator of b, or nil for the entry and
// unreachable blocks.
func (d *DomTree) IDom(b *BasicBlock) *BasicBlock {
	if b == d.entry {
		return nil
	}
	return d.idom[b]
}

// Dominates reports whether every path from the entry to b passes through
// a. Unreachable blocks are dominated by everything.
func (d *DomTree) Dominates(a, b *BasicBlock) bool {
	if !d.Reachable(b) {
		return true
	}
	if !d.Reachable(a) {
		return false
	}
	for {
		if b == a {
			return true
		}
		if b == d.entry {
			return false
		}
		b = d.idom[b]
	}
}

// Preds returns the predecessors of b.
func (d *DomTree) Preds(b *BasicBlock) []*BasicBlock {
	return d.preds[b]
}
