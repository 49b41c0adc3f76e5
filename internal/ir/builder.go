package ir

import (
	"fmt"
)

// Builder creates instructions at an insertion point: either before a given
// instruction or at the end of a block body.
type Builder struct {
	fn     *Function
	block  *BasicBlock
	before InstrID
	atEnd  bool
}

// NewBuilder creates a builder appending to the end of block's body.
func NewBuilder(block *BasicBlock) *Builder {
	return &Builder{fn: block.Parent, block: block, atEnd: true}
}

// NewBuilderBefore creates a builder inserting in front of pos.
func NewBuilderBefore(block *BasicBlock, pos InstrID) *Builder {
	return &Builder{fn: block.Parent, block: block, before: pos}
}

// Block returns the block instructions are inserted into
func (b *Builder) Block() *BasicBlock {
	return b.block
}

func (b *Builder) insert(in Instruction) InstrID {
	if b.atEnd {
		return b.fn.Append(b.block, in)
	}
	return b.fn.InsertBefore(b.block, b.before, in)
}

func (b *Builder) result(name string, t Type) *Value {
	if IsVoid(t) {
		return nil
	}
	if name != "" {
		name = b.fn.UniqueName(name)
	}
	return &Value{Kind: ResultValue, Name: name, Type: t}
}

// CreateCall emits a call to callee. The signature decides both the result
// type and whether the full function type is spelled out.
func (b *Builder) CreateCall(callee *Value, sig *FunctionType, args []*Operand, name string) *CallInstruction {
	var written Type = sig.Ret
	if sig.Variadic {
		written = sig
	}
	call := &CallInstruction{
		Result: b.result(name, sig.Ret),
		Type:   written,
		Callee: callee,
		Args:   args,
	}
	b.insert(call)
	return call
}

// CreateAlloca emits a stack slot for one value of type t.
func (b *Builder) CreateAlloca(t Type, align int, name string) *OpaqueInstruction {
	alloca := &OpaqueInstruction{
		Result: b.result(name, Ptr),
		Op:     "alloca",
		Pieces: []Piece{{Text: t.String(), Space: true}},
	}
	if align > 0 {
		alloca.Attach = fmt.Sprintf("align %d", align)
	}
	b.insert(alloca)
	return alloca
}

func (b *Builder) CreateLoad(t Type, addr *Value, align int, name string) *LoadInstruction {
	load := &LoadInstruction{
		Result:  b.result(name, t),
		Type:    t,
		Address: NewOperand(Ptr, addr),
	}
	if align > 0 {
		load.Attach = fmt.Sprintf("align %d", align)
	}
	b.insert(load)
	return load
}

func (b *Builder) CreateStore(t Type, val, addr *Value, align int) *StoreInstruction {
	store := &StoreInstruction{
		Value:   NewOperand(t, val),
		Address: NewOperand(Ptr, addr),
	}
	if align > 0 {
		store.Attach = fmt.Sprintf("align %d", align)
	}
	b.insert(store)
	return store
}

// CreateBr terminates the builder's block with an unconditional branch.
func (b *Builder) CreateBr(target *BasicBlock) *BranchTerminator {
	br := &BranchTerminator{Target: target}
	b.fn.SetTerminator(b.block, br)
	return br
}
