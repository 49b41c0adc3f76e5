// Package inject inserts trace calls at the structural points of a
// function: entry, returns, call sites, block entries, loads and stores.
package inject

import (
	"fmt"

	"github.com/tliron/commonlog"

	"gneiss/internal/classify"
	"gneiss/internal/errors"
	"gneiss/internal/ir"
	"gneiss/internal/naming"
	"gneiss/internal/setup"
)

var log = commonlog.GetLogger("gneiss.inject")

// Profile selects which sites are instrumented
type Profile int

const (
	// ControlFlow traces function entry and exit, calls, function pointer
	// assignments and block entries.
	ControlFlow Profile = iota
	// DataFlow traces loads and stores.
	DataFlow
)

func (p Profile) String() string {
	switch p {
	case ControlFlow:
		return "control-flow"
	case DataFlow:
		return "data-flow"
	}
	return "unknown"
}

// Stats counts the trace calls inserted per site kind
type Stats struct {
	Entries     int
	Returns     int
	Calls       int
	Assignments int
	Blocks      int
	Loads       int
	Stores      int
}

// Total returns the number of trace calls
func (s Stats) Total() int {
	return s.Entries + s.Returns + s.Calls + s.Assignments + s.Blocks + s.Loads + s.Stores
}

// Add accumulates o into s
func (s *Stats) Add(o Stats) {
	s.Entries += o.Entries
	s.Returns += o.Returns
	s.Calls += o.Calls
	s.Assignments += o.Assignments
	s.Blocks += o.Blocks
	s.Loads += o.Loads
	s.Stores += o.Stores
}

func (s Stats) String() string {
	return fmt.Sprintf("entries=%d returns=%d calls=%d assignments=%d blocks=%d loads=%d stores=%d",
		s.Entries, s.Returns, s.Calls, s.Assignments, s.Blocks, s.Loads, s.Stores)
}

type injector struct {
	sink    *setup.Sink
	fn      *ir.Function
	profile Profile
	stats   Stats
}

// Function instruments one function definition with the given profile.
// Only instructions present before the call are visited; declarations are
// left alone.
func Function(sink *setup.Sink, fn *ir.Function, profile Profile) (Stats, error) {
	if fn.Declaration {
		return Stats{}, nil
	}
	for _, b := range fn.Blocks {
		if b.Terminator == nil {
			return Stats{}, errors.NoInsertionPoint(fn.Name, b.Ref())
		}
	}

	in := &injector{sink: sink, fn: fn, profile: profile}
	if profile == ControlFlow {
		naming.NameBlocks(fn, in.skipped())
	}

	blocks := make([]*ir.BasicBlock, len(fn.Blocks))
	copy(blocks, fn.Blocks)
	first := true
	for _, b := range blocks {
		if sink.IsSetupBlock(b) {
			continue
		}
		in.block(b, first)
		first = false
	}

	log.Debugf("@%s (%s): %s", fn.Name, profile, in.stats)
	return in.stats, nil
}

// skipped returns the setup block when fn is the entry function.
func (in *injector) skipped() *ir.BasicBlock {
	if in.fn == in.sink.Entry {
		return in.sink.Block
	}
	return nil
}

func (in *injector) trace(b *ir.BasicBlock, pos ir.InstrID, msg naming.Message) {
	in.sink.Trace(ir.NewBuilderBefore(b, pos), msg)
}

func (in *injector) block(b *ir.BasicBlock, logicalFirst bool) {
	original := b.Snapshot()
	term := b.Terminator

	if in.profile == ControlFlow {
		if front, ok := b.FirstInsertionPoint(); ok {
			if logicalFirst {
				in.trace(b, front, naming.FuncEntered(in.fn.Name))
				in.stats.Entries++
			}
			in.trace(b, front, naming.BlockEntry(naming.BlockName(b)))
			in.stats.Blocks++
		} else {
			log.Debugf("@%s: block %s is a bare dispatch pad, not traced", in.fn.Name, b.Ref())
		}
	}

	for _, id := range original {
		in.instruction(b, id)
	}

	if in.profile == ControlFlow && term.Opcode() == ir.OpRet {
		in.trace(b, b.LastInsertionPoint(), naming.FuncReturn(in.fn.Name))
		in.stats.Returns++
	}
}

func (in *injector) instruction(b *ir.BasicBlock, id ir.InstrID) {
	inst := in.fn.Instr(id)
	switch inst.Opcode() {
	case ir.OpCall:
		if in.profile != ControlFlow {
			return
		}
		target := classify.Classify(inst.(*ir.CallInstruction))
		in.trace(b, id, target.Message(in.fn.Name))
		in.stats.Calls++

	case ir.OpStore:
		store := inst.(*ir.StoreInstruction)
		switch in.profile {
		case ControlFlow:
			if v := store.Value.Value; v != nil && v.Kind == ir.FunctionValue {
				in.trace(b, id, naming.FuncAssignment(naming.NameOf(v)))
				in.stats.Assignments++
			}
		case DataFlow:
			in.trace(b, id, naming.Store(
				valueName(store.Value),
				naming.TypeText(store.Value.Type),
				operandText(store.Address)))
			in.stats.Stores++
		}

	case ir.OpLoad:
		if in.profile != DataFlow {
			return
		}
		load := inst.(*ir.LoadInstruction)
		in.trace(b, id, naming.Load(
			naming.OperandText(load.Result),
			naming.TypeText(load.Type),
			operandText(load.Address)))
		in.stats.Loads++
	}
}

// valueName renders a stored value by its own name, without a sigil.
func valueName(op *ir.Operand) string {
	if op.Inner != nil {
		return op.Ref()
	}
	return naming.NameOf(op.Value)
}

func operandText(op *ir.Operand) string {
	if op.Inner != nil {
		return op.Ref()
	}
	return naming.OperandText(op.Value)
}
