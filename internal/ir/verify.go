package ir

import (
	"fmt"
)

// Violation is one structural defect found by the verifier
type Violation struct {
	Function string
	Block    string
	Message  string
}

func (v Violation) Error() string {
	if v.Block == "" {
		return fmt.Sprintf("@%s: %s", v.Function, v.Message)
	}
	return fmt.Sprintf("@%s, block %s: %s", v.Function, v.Block, v.Message)
}

// VerifyModule checks every function definition. An empty result means
// the module is well formed.
func VerifyModule(m *Module) []Violation {
	var all []Violation
	for _, fn := range m.Functions {
		all = append(all, VerifyFunction(fn)...)
	}
	return all
}

type position struct {
	block *BasicBlock
	index int // terminator sits at len(block.Instrs)
}

type verifier struct {
	fn         *Function
	violations []Violation
	positions  map[InstrID]position
	blocks     map[*BasicBlock]bool
	dom        *DomTree
}

// VerifyFunction checks block structure, phi placement, references and
// dominance of a function definition.
func VerifyFunction(fn *Function) []Violation {
	if fn.Declaration {
		return nil
	}
	v := &verifier{
		fn:        fn,
		positions: make(map[InstrID]position),
		blocks:    make(map[*BasicBlock]bool),
	}
	if len(fn.Blocks) == 0 {
		v.report(nil, "function definition has no blocks")
		return v.violations
	}

	for _, b := range fn.Blocks {
		v.blocks[b] = true
		for i, id := range b.Instrs {
			v.positions[id] = position{block: b, index: i}
		}
		if b.Terminator != nil {
			v.positions[b.Terminator.GetID()] = position{block: b, index: len(b.Instrs)}
		}
	}

	v.checkNames()
	v.checkStructure()
	if len(v.violations) > 0 {
		// Dominance is meaningless on a broken CFG.
		return v.violations
	}
	v.dom = NewDomTree(fn)
	v.checkPhis()
	v.checkOperands()
	return v.violations
}

func (v *verifier) report(b *BasicBlock, format string, args ...interface{}) {
	label := ""
	if b != nil {
		label = b.Ref()
	}
	v.violations = append(v.violations, Violation{
		Function: v.fn.Name,
		Block:    label,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (v *verifier) checkNames() {
	seen := make(map[string]bool)
	claim := func(b *BasicBlock, name string) {
		if name == "" {
			return
		}
		if seen[name] {
			v.report(b, "name %%%s is defined more than once", name)
		}
		seen[name] = true
	}
	for _, p := range v.fn.Params {
		claim(nil, p.Value.Name)
	}
	for _, b := range v.fn.Blocks {
		claim(b, b.Label)
		for _, id := range b.Instrs {
			if r := v.fn.Instr(id).GetResult(); r != nil {
				claim(b, r.Name)
			}
		}
	}
}

func (v *verifier) checkStructure() {
	for _, b := range v.fn.Blocks {
		if b.Terminator == nil {
			v.report(b, "block has no terminator")
		}
		for _, id := range b.Instrs {
			if v.fn.Instr(id).IsTerminator() {
				v.report(b, "terminator %q in the middle of a block", FormatInstruction(v.fn.Instr(id)))
			}
		}
		v.checkPlacement(b)
		for _, succ := range b.Successors() {
			if succ == nil || !v.blocks[succ] {
				v.report(b, "branch to a block outside the function")
			}
		}
	}
	preds := Predecessors(v.fn)
	if len(preds[v.fn.EntryBlock()]) > 0 {
		v.report(v.fn.EntryBlock(), "entry block has predecessors")
	}
}

// checkPlacement enforces the fixed slots of exception handling pads,
// which open their block, and of musttail calls, which sit right before
// a ret.
func (v *verifier) checkPlacement(b *BasicBlock) {
	seenOther := false
	for i, id := range b.Instrs {
		in := v.fn.Instr(id)
		if in.Opcode() == OpPhi {
			continue
		}
		if IsEHPad(in) && seenOther {
			v.report(b, "%s is not the first non-phi instruction", in.(*OpaqueInstruction).Op)
		}
		seenOther = true
		if IsMustTail(in) && (i != len(b.Instrs)-1 || b.Terminator == nil || b.Terminator.Opcode() != OpRet) {
			v.report(b, "musttail call must precede a ret")
		}
	}
	if b.Terminator != nil && IsEHPad(b.Terminator) && seenOther {
		v.report(b, "%s is not the first non-phi instruction", b.Terminator.(*OpaqueInstruction).Op)
	}
}

func (v *verifier) checkPhis() {
	for _, b := range v.fn.Blocks {
		leading := true
		for _, id := range b.Instrs {
			phi, ok := v.fn.Instr(id).(*PhiInstruction)
			if !ok {
				leading = false
				continue
			}
			if !leading {
				v.report(b, "phi %s is not at the start of its block", phi.Result.Ref())
			}
			v.checkPhiIncoming(b, phi)
		}
	}
}

func (v *verifier) checkPhiIncoming(b *BasicBlock, phi *PhiInstruction) {
	if !v.dom.Reachable(b) {
		return
	}
	preds := make(map[*BasicBlock]bool)
	for _, p := range v.dom.Preds(b) {
		preds[p] = true
	}
	incoming := make(map[*BasicBlock]bool)
	for _, in := range phi.Incoming {
		if !v.blocks[in.Block] {
			v.report(b, "phi %s names a block outside the function", phi.Result.Ref())
			continue
		}
		incoming[in.Block] = true
		if !preds[in.Block] {
			v.report(b, "phi %s has an entry for %s which is not a predecessor", phi.Result.Ref(), in.Block.Ref())
		}
		if in.Value.IsLocal() {
			v.checkDefinition(b, in.Value, func(def position) bool {
				return def.block == in.Block || v.dom.Dominates(def.block, in.Block)
			})
		}
	}
	for p := range preds {
		if !incoming[p] {
			v.report(b, "phi %s has no entry for predecessor %s", phi.Result.Ref(), p.Ref())
		}
	}
}

func (v *verifier) checkOperands() {
	for _, b := range v.fn.Blocks {
		ids := b.Snapshot()
		if b.Terminator != nil {
			ids = append(ids, b.Terminator.GetID())
		}
		for i, id := range ids {
			in := v.fn.Instr(id)
			if in.Opcode() == OpPhi {
				continue
			}
			for _, op := range in.GetOperands() {
				if op == nil {
					v.report(b, "missing operand in %q", FormatInstruction(in))
					continue
				}
				if !op.IsLocal() {
					continue
				}
				use := i
				v.checkDefinition(b, op, func(def position) bool {
					if def.block == b {
						return def.index < use
					}
					return v.dom.Dominates(def.block, b)
				})
			}
		}
	}
}

// checkDefinition verifies a local operand belongs to this function and
// that its definition satisfies dominates.
func (v *verifier) checkDefinition(b *BasicBlock, op *Value, dominates func(position) bool) {
	if op.Parent != v.fn {
		v.report(b, "operand %s is defined in another function", op.Ref())
		return
	}
	if op.Kind == ParamValue {
		return
	}
	def, ok := v.positions[op.Def]
	if !ok || v.fn.Instr(op.Def).GetResult() != op {
		v.report(b, "operand %s has no definition in the function", op.Ref())
		return
	}
	if !dominates(def) {
		v.report(b, "definition of %s does not dominate all uses", op.Ref())
	}
}
