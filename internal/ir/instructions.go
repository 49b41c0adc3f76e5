package ir

// InstrID is a stable handle into a function's instruction arena.
type InstrID int

// Opcode is the closed set of instruction kinds the engine distinguishes.
type Opcode int

const (
	OpPhi Opcode = iota
	OpCall
	OpLoad
	OpStore
	OpRet
	OpBr
	OpCondBr
	OpSwitch
	OpOpaque
)

func (o Opcode) String() string {
	switch o {
	case OpPhi:
		return "phi"
	case OpCall:
		return "call"
	case OpLoad:
		return "load"
	case OpStore:
		return "store"
	case OpRet:
		return "ret"
	case OpBr:
		return "br"
	case OpCondBr:
		return "condbr"
	case OpSwitch:
		return "switch"
	}
	return "opaque"
}

// opaqueTerminators lists the opcodes that end a block but are not
// modelled as dedicated kinds.
var opaqueTerminators = map[string]bool{
	"unreachable": true,
	"invoke":      true,
	"resume":      true,
	"indirectbr":  true,
	"cleanupret":  true,
	"catchret":    true,
	"catchswitch": true,
	"callbr":      true,
}

// ehPads must be the first non-phi instruction of their block.
var ehPads = map[string]bool{
	"landingpad":  true,
	"catchpad":    true,
	"cleanuppad":  true,
	"catchswitch": true,
}

// IsEHPad reports whether in is an exception handling pad.
func IsEHPad(in Instruction) bool {
	o, ok := in.(*OpaqueInstruction)
	return ok && ehPads[o.Op]
}

// IsMustTail reports whether in is a musttail call.
func IsMustTail(in Instruction) bool {
	c, ok := in.(*CallInstruction)
	return ok && c.Tail == "musttail"
}

// IsTerminatorOpcode reports whether an instruction spelled op ends a block.
func IsTerminatorOpcode(op string) bool {
	switch op {
	case "ret", "br", "switch":
		return true
	}
	return opaqueTerminators[op]
}

type Instruction interface {
	GetID() InstrID
	GetResult() *Value
	GetOperands() []*Value
	GetBlock() *BasicBlock
	Opcode() Opcode
	IsTerminator() bool
	Attachments() string

	setID(InstrID)
	setBlock(*BasicBlock)
}

// Terminators end basic blocks
type Terminator interface {
	Instruction
	GetSuccessors() []*BasicBlock
}

// PhiIncoming is one [value, block] pair of a phi
type PhiIncoming struct {
	Value *Value
	Block *BasicBlock
}

type PhiInstruction struct {
	ID       InstrID
	Result   *Value
	Block    *BasicBlock
	Flags    []string
	Type     Type
	Incoming []PhiIncoming
	Attach   string
}

// CallInstruction represents a call. Type is the type as written after the
// call keyword: the return type, or the full function type for variadic
// callees.
type CallInstruction struct {
	ID      InstrID
	Result  *Value
	Block   *BasicBlock
	Tail    string
	Flags   []string
	Type    Type
	Callee  *Value
	Args    []*Operand
	FnAttrs []string
	Attach  string
}

type LoadInstruction struct {
	ID       InstrID
	Result   *Value
	Block    *BasicBlock
	Volatile bool
	Type     Type
	Address  *Operand
	Attach   string
}

type StoreInstruction struct {
	ID       InstrID
	Block    *BasicBlock
	Volatile bool
	Value    *Operand
	Address  *Operand
	Attach   string
}

// Piece is one element of an opaque instruction's operand text.
type Piece struct {
	Text  string
	Value *Value
	Block *BasicBlock
	Space bool // preceded by whitespace in the source
}

// OpaqueInstruction keeps any other instruction as written, with local
// values and block labels resolved so they survive renumbering.
type OpaqueInstruction struct {
	ID     InstrID
	Result *Value
	Block  *BasicBlock
	Op     string
	Pieces []Piece
	Attach string
}

type ReturnTerminator struct {
	ID     InstrID
	Block  *BasicBlock
	Value  *Operand // nil for ret void
	Attach string
}

type BranchTerminator struct {
	ID     InstrID
	Block  *BasicBlock
	Target *BasicBlock
	Attach string
}

type CondBranchTerminator struct {
	ID         InstrID
	Block      *BasicBlock
	Condition  *Operand
	TrueBlock  *BasicBlock
	FalseBlock *BasicBlock
	Attach     string
}

type SwitchCase struct {
	Value  *Operand
	Target *BasicBlock
}

type SwitchTerminator struct {
	ID        InstrID
	Block     *BasicBlock
	Condition *Operand
	Default   *BasicBlock
	Cases     []SwitchCase
	Attach    string
}

// Implementation of interfaces

func (p *PhiInstruction) GetID() InstrID        { return p.ID }
func (p *PhiInstruction) GetResult() *Value     { return p.Result }
func (p *PhiInstruction) GetBlock() *BasicBlock { return p.Block }
func (p *PhiInstruction) Opcode() Opcode        { return OpPhi }
func (p *PhiInstruction) IsTerminator() bool    { return false }
func (p *PhiInstruction) Attachments() string   { return p.Attach }
func (p *PhiInstruction) setID(id InstrID)      { p.ID = id }
func (p *PhiInstruction) setBlock(b *BasicBlock) { p.Block = b }
func (p *PhiInstruction) GetOperands() []*Value {
	ops := make([]*Value, 0, len(p.Incoming))
	for _, in := range p.Incoming {
		ops = append(ops, in.Value)
	}
	return ops
}

func (c *CallInstruction) GetID() InstrID         { return c.ID }
func (c *CallInstruction) GetResult() *Value      { return c.Result }
func (c *CallInstruction) GetBlock() *BasicBlock  { return c.Block }
func (c *CallInstruction) Opcode() Opcode         { return OpCall }
func (c *CallInstruction) IsTerminator() bool     { return false }
func (c *CallInstruction) Attachments() string    { return c.Attach }
func (c *CallInstruction) setID(id InstrID)       { c.ID = id }
func (c *CallInstruction) setBlock(b *BasicBlock) { c.Block = b }
func (c *CallInstruction) GetOperands() []*Value {
	ops := []*Value{c.Callee}
	return append(ops, operandValues(c.Args...)...)
}

// CalledFunction returns the callee when it is a function symbol.
func (c *CallInstruction) CalledFunction() *Function {
	if c.Callee != nil && c.Callee.Kind == FunctionValue {
		return c.Callee.Func
	}
	return nil
}

func (l *LoadInstruction) GetID() InstrID         { return l.ID }
func (l *LoadInstruction) GetResult() *Value      { return l.Result }
func (l *LoadInstruction) GetOperands() []*Value  { return operandValues(l.Address) }
func (l *LoadInstruction) GetBlock() *BasicBlock  { return l.Block }
func (l *LoadInstruction) Opcode() Opcode         { return OpLoad }
func (l *LoadInstruction) IsTerminator() bool     { return false }
func (l *LoadInstruction) Attachments() string    { return l.Attach }
func (l *LoadInstruction) setID(id InstrID)       { l.ID = id }
func (l *LoadInstruction) setBlock(b *BasicBlock) { l.Block = b }

func (s *StoreInstruction) GetID() InstrID         { return s.ID }
func (s *StoreInstruction) GetResult() *Value      { return nil }
func (s *StoreInstruction) GetOperands() []*Value  { return operandValues(s.Value, s.Address) }
func (s *StoreInstruction) GetBlock() *BasicBlock  { return s.Block }
func (s *StoreInstruction) Opcode() Opcode         { return OpStore }
func (s *StoreInstruction) IsTerminator() bool     { return false }
func (s *StoreInstruction) Attachments() string    { return s.Attach }
func (s *StoreInstruction) setID(id InstrID)       { s.ID = id }
func (s *StoreInstruction) setBlock(b *BasicBlock) { s.Block = b }

func (o *OpaqueInstruction) GetID() InstrID         { return o.ID }
func (o *OpaqueInstruction) GetResult() *Value      { return o.Result }
func (o *OpaqueInstruction) GetBlock() *BasicBlock  { return o.Block }
func (o *OpaqueInstruction) Opcode() Opcode         { return OpOpaque }
func (o *OpaqueInstruction) IsTerminator() bool     { return opaqueTerminators[o.Op] }
func (o *OpaqueInstruction) Attachments() string    { return o.Attach }
func (o *OpaqueInstruction) setID(id InstrID)       { o.ID = id }
func (o *OpaqueInstruction) setBlock(b *BasicBlock) { o.Block = b }
func (o *OpaqueInstruction) GetOperands() []*Value {
	var ops []*Value
	for _, p := range o.Pieces {
		if p.Value != nil {
			ops = append(ops, p.Value)
		}
	}
	return ops
}

// GetSuccessors returns the label operands of an opaque terminator.
func (o *OpaqueInstruction) GetSuccessors() []*BasicBlock {
	if !o.IsTerminator() {
		return nil
	}
	var succs []*BasicBlock
	for _, p := range o.Pieces {
		if p.Block != nil {
			succs = appendUnique(succs, p.Block)
		}
	}
	return succs
}

// Terminator implementations

func (r *ReturnTerminator) GetID() InstrID               { return r.ID }
func (r *ReturnTerminator) GetResult() *Value            { return nil }
func (r *ReturnTerminator) GetOperands() []*Value        { return operandValues(r.Value) }
func (r *ReturnTerminator) GetBlock() *BasicBlock        { return r.Block }
func (r *ReturnTerminator) Opcode() Opcode               { return OpRet }
func (r *ReturnTerminator) IsTerminator() bool           { return true }
func (r *ReturnTerminator) Attachments() string          { return r.Attach }
func (r *ReturnTerminator) GetSuccessors() []*BasicBlock { return nil }
func (r *ReturnTerminator) setID(id InstrID)             { r.ID = id }
func (r *ReturnTerminator) setBlock(b *BasicBlock)       { r.Block = b }

func (b *BranchTerminator) GetID() InstrID               { return b.ID }
func (b *BranchTerminator) GetResult() *Value            { return nil }
func (b *BranchTerminator) GetOperands() []*Value        { return nil }
func (b *BranchTerminator) GetBlock() *BasicBlock        { return b.Block }
func (b *BranchTerminator) Opcode() Opcode               { return OpBr }
func (b *BranchTerminator) IsTerminator() bool           { return true }
func (b *BranchTerminator) Attachments() string          { return b.Attach }
func (b *BranchTerminator) GetSuccessors() []*BasicBlock { return []*BasicBlock{b.Target} }
func (b *BranchTerminator) setID(id InstrID)             { b.ID = id }
func (b *BranchTerminator) setBlock(bb *BasicBlock)      { b.Block = bb }

func (c *CondBranchTerminator) GetID() InstrID         { return c.ID }
func (c *CondBranchTerminator) GetResult() *Value      { return nil }
func (c *CondBranchTerminator) GetOperands() []*Value  { return operandValues(c.Condition) }
func (c *CondBranchTerminator) GetBlock() *BasicBlock  { return c.Block }
func (c *CondBranchTerminator) Opcode() Opcode         { return OpCondBr }
func (c *CondBranchTerminator) IsTerminator() bool     { return true }
func (c *CondBranchTerminator) Attachments() string    { return c.Attach }
func (c *CondBranchTerminator) setID(id InstrID)       { c.ID = id }
func (c *CondBranchTerminator) setBlock(b *BasicBlock) { c.Block = b }
func (c *CondBranchTerminator) GetSuccessors() []*BasicBlock {
	return appendUnique([]*BasicBlock{c.TrueBlock}, c.FalseBlock)
}

func (s *SwitchTerminator) GetID() InstrID         { return s.ID }
func (s *SwitchTerminator) GetResult() *Value      { return nil }
func (s *SwitchTerminator) GetBlock() *BasicBlock  { return s.Block }
func (s *SwitchTerminator) Opcode() Opcode         { return OpSwitch }
func (s *SwitchTerminator) IsTerminator() bool     { return true }
func (s *SwitchTerminator) Attachments() string    { return s.Attach }
func (s *SwitchTerminator) setID(id InstrID)       { s.ID = id }
func (s *SwitchTerminator) setBlock(b *BasicBlock) { s.Block = b }
func (s *SwitchTerminator) GetOperands() []*Value {
	ops := operandValues(s.Condition)
	for _, c := range s.Cases {
		ops = append(ops, operandValues(c.Value)...)
	}
	return ops
}
func (s *SwitchTerminator) GetSuccessors() []*BasicBlock {
	succs := []*BasicBlock{s.Default}
	for _, c := range s.Cases {
		succs = appendUnique(succs, c.Target)
	}
	return succs
}

func operandValues(ops ...*Operand) []*Value {
	var vals []*Value
	for _, op := range ops {
		for op != nil && op.Inner != nil {
			op = op.Inner
		}
		if op != nil && op.Value != nil {
			vals = append(vals, op.Value)
		}
	}
	return vals
}

func appendUnique(blocks []*BasicBlock, b *BasicBlock) []*BasicBlock {
	for _, existing := range blocks {
		if existing == b {
			return blocks
		}
	}
	return append(blocks, b)
}
