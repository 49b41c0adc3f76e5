package ir

// This file holds the module-level data model: modules, globals, functions,
// basic blocks and values. Instructions live in instructions.go.

import (
	"fmt"
	"strconv"
	"strings"
)

// Module represents one compilation unit. It is mutated in place by the
// instrumentation passes.
type Module struct {
	SourceFilename string
	Header         []string // raw lines before the first function
	Globals        []*Global
	Functions      []*Function
	Trailer        []string // raw lines after the first function
	Metadata       []*MetadataDef

	symbols map[string]*Value
	strings map[string]*Value
}

// Global represents a global variable. Body is everything after `=`.
type Global struct {
	Name  string
	Body  string
	Value *Value
}

// MetadataDef is a named or numbered metadata line.
type MetadataDef struct {
	Name string // including the leading '!'
	Body string
}

// Function represents a function definition or declaration.
type Function struct {
	Name        string
	Module      *Module
	Declaration bool
	Prefix      []string // linkage, visibility, return attributes
	RetType     Type
	Params      []*Param
	Variadic    bool
	Suffix      string // attribute groups, section, personality, ...
	Blocks      []*BasicBlock
	Value       *Value

	instrs  []Instruction
	version int
	slots   *SlotTable
}

// Param represents a function parameter
type Param struct {
	Type  Type
	Attrs []string
	Value *Value
}

// BasicBlock represents a straight-line sequence of instructions. The
// terminator is kept apart from the body.
type BasicBlock struct {
	Label      string // empty for anonymous blocks
	Parent     *Function
	Instrs     []InstrID
	Terminator Terminator
}

// ValueKind categorizes values
type ValueKind int

const (
	ParamValue ValueKind = iota
	ResultValue
	GlobalValue
	FunctionValue
	ConstantValue
	MetadataValue
)

func (k ValueKind) String() string {
	switch k {
	case ParamValue:
		return "param"
	case ResultValue:
		return "result"
	case GlobalValue:
		return "global"
	case FunctionValue:
		return "function"
	case ConstantValue:
		return "constant"
	case MetadataValue:
		return "metadata"
	}
	return "unknown"
}

// Value represents anything that can appear as an operand.
type Value struct {
	Kind   ValueKind
	Name   string // without sigil; empty for anonymous locals
	Type   Type
	Text   string // literal spelling of constants and metadata
	Parent *Function
	Def    InstrID // defining instruction of a result
	Func   *Function
	Global *Global
}

// IsLocal reports whether v is a parameter or instruction result.
func (v *Value) IsLocal() bool {
	return v.Kind == ParamValue || v.Kind == ResultValue
}

// Ref returns the value as an operand reference (%x, %3, @g, 42).
func (v *Value) Ref() string {
	switch v.Kind {
	case ParamValue, ResultValue:
		if v.Name != "" {
			return "%" + QuoteName(v.Name)
		}
		if v.Parent != nil {
			if n, ok := v.Parent.Slots().Value(v); ok {
				return fmt.Sprintf("%%%d", n)
			}
		}
		return "%<badref>"
	case GlobalValue, FunctionValue:
		return "@" + QuoteName(v.Name)
	}
	return v.Text
}

// Operand is a typed use of a value, as written in call arguments, loads
// and stores. Inner is set for metadata wrappers such as `metadata ptr %x`.
type Operand struct {
	Type  Type
	Attrs []string
	Value *Value
	Inner *Operand
}

// NewOperand builds an attribute-free operand.
func NewOperand(t Type, v *Value) *Operand {
	return &Operand{Type: t, Value: v}
}

// Ref returns the operand value reference without its type.
func (o *Operand) Ref() string {
	if o.Inner != nil {
		return o.Inner.String()
	}
	return o.Value.Ref()
}

func (o *Operand) String() string {
	parts := []string{o.Type.String()}
	parts = append(parts, o.Attrs...)
	parts = append(parts, o.Ref())
	return strings.Join(parts, " ")
}

// Constant creates a literal constant value.
func Constant(t Type, text string) *Value {
	return &Value{Kind: ConstantValue, Type: t, Text: text}
}

// IntConst creates an integer constant of type t.
func IntConst(t Type, n int64) *Value {
	return Constant(t, fmt.Sprintf("%d", n))
}

// NewModule creates an empty module.
func NewModule(sourceFilename string) *Module {
	return &Module{
		SourceFilename: sourceFilename,
		symbols:        make(map[string]*Value),
		strings:        make(map[string]*Value),
	}
}

// Lookup returns the global or function value named name.
func (m *Module) Lookup(name string) (*Value, bool) {
	v, ok := m.symbols[name]
	return v, ok
}

// Function returns the function named name, or nil.
func (m *Module) Function(name string) *Function {
	if v, ok := m.symbols[name]; ok && v.Kind == FunctionValue {
		return v.Func
	}
	return nil
}

// GlobalVar returns the global variable named name, or nil.
func (m *Module) GlobalVar(name string) *Global {
	if v, ok := m.symbols[name]; ok && v.Kind == GlobalValue {
		return v.Global
	}
	return nil
}

// AddGlobal appends a global variable. The name must be free.
func (m *Module) AddGlobal(name, body string) (*Global, error) {
	if _, exists := m.symbols[name]; exists {
		return nil, fmt.Errorf("symbol @%s already defined", name)
	}
	g := &Global{Name: name, Body: body}
	g.Value = &Value{Kind: GlobalValue, Name: name, Type: Ptr, Global: g}
	m.Globals = append(m.Globals, g)
	m.symbols[name] = g.Value
	return g, nil
}

// AddFunction appends a function. The name must be free.
func (m *Module) AddFunction(fn *Function) error {
	if _, exists := m.symbols[fn.Name]; exists {
		return fmt.Errorf("symbol @%s already defined", fn.Name)
	}
	fn.Module = m
	fn.Value = &Value{Kind: FunctionValue, Name: fn.Name, Type: Ptr, Func: fn}
	m.Functions = append(m.Functions, fn)
	m.symbols[fn.Name] = fn.Value
	return nil
}

// UniqueGlobalName returns base, or base with a numeric suffix, such that
// no global symbol of that name exists.
func (m *Module) UniqueGlobalName(base string) string {
	name := base
	for i := 1; ; i++ {
		if _, exists := m.symbols[name]; !exists {
			return name
		}
		name = fmt.Sprintf("%s.%d", base, i)
	}
}

// InternPrefix starts the name of every string constant made by
// InternString.
const InternPrefix = ".gneiss.str."

// InternString returns a private constant holding s followed by a NUL
// byte. Equal strings share one global.
func (m *Module) InternString(s string) *Value {
	if v, ok := m.strings[s]; ok {
		return v
	}
	name := m.UniqueGlobalName(fmt.Sprintf("%s%d", InternPrefix, len(m.strings)))
	body := fmt.Sprintf("private unnamed_addr constant [%d x i8] c\"%s\", align 1", len(s)+1, EscapeCString(s+"\x00"))
	g, _ := m.AddGlobal(name, body)
	m.strings[s] = g.Value
	return g.Value
}

// adoptString lets InternString reuse a constant it made in an earlier run.
func (m *Module) adoptString(g *Global) {
	if !strings.HasPrefix(g.Name, InternPrefix) {
		return
	}
	if s, ok := StringConstant(g); ok {
		if _, dup := m.strings[s]; !dup {
			m.strings[s] = g.Value
		}
	}
}

// StringConstant decodes the c"..." initializer of g, without the
// terminating NUL.
func StringConstant(g *Global) (string, bool) {
	start := strings.Index(g.Body, `c"`)
	if start < 0 {
		return "", false
	}
	raw := g.Body[start+2:]
	end := strings.IndexByte(raw, '"')
	if end < 0 {
		return "", false
	}
	decoded, ok := unescape(raw[:end])
	if !ok {
		return "", false
	}
	return strings.TrimSuffix(decoded, "\x00"), true
}

// unescape decodes the \XX escapes of a quoted string or name.
func unescape(raw string) (string, bool) {
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+2 >= len(raw) {
			b.WriteByte(raw[i])
			continue
		}
		n, err := strconv.ParseUint(raw[i+1:i+3], 16, 8)
		if err != nil {
			return "", false
		}
		b.WriteByte(byte(n))
		i += 2
	}
	return b.String(), true
}

// QuoteName returns name as it must be spelled after a sigil or before a
// label colon: bare when it is a plain identifier or a number, quoted
// otherwise.
func QuoteName(name string) string {
	if isPlainName(name) {
		return name
	}
	return `"` + EscapeCString(name) + `"`
}

// UnquoteName is the inverse of QuoteName. Names that are not quoted are
// returned unchanged.
func UnquoteName(name string) string {
	if len(name) < 2 || name[0] != '"' || name[len(name)-1] != '"' {
		return name
	}
	if decoded, ok := unescape(name[1 : len(name)-1]); ok {
		return decoded
	}
	return name[1 : len(name)-1]
}

func isPlainName(name string) bool {
	if name == "" {
		return false
	}
	if isNumeric(name) {
		return true
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '-', c == '$', c == '.', c == '_':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// EscapeCString escapes s for a c"..." literal.
func EscapeCString(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c < 0x7f && c != '"' && c != '\\' {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "\\%02X", c)
	}
	return b.String()
}

// HasNamedMetadata reports whether a named metadata node exists.
func (m *Module) HasNamedMetadata(name string) bool {
	for _, md := range m.Metadata {
		if md.Name == name {
			return true
		}
	}
	return false
}

// LookupMetadata returns the metadata line named name ("!7", "!llvm.ident"),
// or nil.
func (m *Module) LookupMetadata(name string) *MetadataDef {
	for _, md := range m.Metadata {
		if md.Name == name {
			return md
		}
	}
	return nil
}

// AddMetadataNode appends an unnamed node under the next free number and
// returns its reference.
func (m *Module) AddMetadataNode(body string) string {
	next := 0
	for _, md := range m.Metadata {
		if n, err := strconv.Atoi(strings.TrimPrefix(md.Name, "!")); err == nil && n >= next {
			next = n + 1
		}
	}
	ref := fmt.Sprintf("!%d", next)
	m.Metadata = append(m.Metadata, &MetadataDef{Name: ref, Body: body})
	return ref
}

// AddNamedMetadata appends a named metadata node if it is not present yet.
func (m *Module) AddNamedMetadata(name, body string) {
	if m.HasNamedMetadata(name) {
		return
	}
	m.Metadata = append(m.Metadata, &MetadataDef{Name: name, Body: body})
}

// NewFunction creates a detached function. Add it with Module.AddFunction.
func NewFunction(name string, ret Type, params []Type, variadic bool) *Function {
	fn := &Function{Name: name, RetType: ret, Variadic: variadic}
	for _, t := range params {
		fn.AddParam(t, nil, "")
	}
	return fn
}

// AddParam appends a parameter.
func (f *Function) AddParam(t Type, attrs []string, name string) *Param {
	p := &Param{Type: t, Attrs: attrs}
	p.Value = &Value{Kind: ParamValue, Name: name, Type: t, Parent: f}
	f.Params = append(f.Params, p)
	f.touch()
	return p
}

// Type returns the function's signature.
func (f *Function) Type() *FunctionType {
	ft := &FunctionType{Ret: f.RetType, Variadic: f.Variadic}
	for _, p := range f.Params {
		ft.Params = append(ft.Params, p.Type)
	}
	return ft
}

// EntryBlock returns the first block, or nil for declarations.
func (f *Function) EntryBlock() *BasicBlock {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// Block returns the block labelled label, or nil.
func (f *Function) Block(label string) *BasicBlock {
	for _, b := range f.Blocks {
		if b.Label != "" && b.Label == label {
			return b
		}
	}
	return nil
}

// AddBlock appends a new block.
func (f *Function) AddBlock(label string) *BasicBlock {
	b := &BasicBlock{Label: label, Parent: f}
	f.Blocks = append(f.Blocks, b)
	f.touch()
	return b
}

// InsertBlockBefore creates a block placed immediately before next.
func (f *Function) InsertBlockBefore(label string, next *BasicBlock) *BasicBlock {
	b := &BasicBlock{Label: label, Parent: f}
	for i, existing := range f.Blocks {
		if existing == next {
			f.Blocks = append(f.Blocks[:i], append([]*BasicBlock{b}, f.Blocks[i:]...)...)
			f.touch()
			return b
		}
	}
	f.Blocks = append(f.Blocks, b)
	f.touch()
	return b
}

// Names returns every local name in use: parameters, results and labels.
func (f *Function) Names() map[string]bool {
	names := make(map[string]bool)
	for _, p := range f.Params {
		if p.Value.Name != "" {
			names[p.Value.Name] = true
		}
	}
	for _, b := range f.Blocks {
		if b.Label != "" {
			names[b.Label] = true
		}
	}
	for _, in := range f.instrs {
		if r := in.GetResult(); r != nil && r.Name != "" {
			names[r.Name] = true
		}
	}
	return names
}

// UniqueName returns base, or base with a numeric suffix, such that no
// local value or block of that name exists.
func (f *Function) UniqueName(base string) string {
	names := f.Names()
	name := base
	for i := 1; names[name]; i++ {
		name = fmt.Sprintf("%s%d", base, i)
	}
	return name
}

// SetLabel renames a block.
func (f *Function) SetLabel(b *BasicBlock, label string) {
	b.Label = label
	f.touch()
}

// Instr returns the instruction with the given handle.
func (f *Function) Instr(id InstrID) Instruction {
	if id < 0 || int(id) >= len(f.instrs) {
		return nil
	}
	return f.instrs[id]
}

// NumInstrs returns the size of the instruction arena.
func (f *Function) NumInstrs() int {
	return len(f.instrs)
}

func (f *Function) add(b *BasicBlock, in Instruction) InstrID {
	id := InstrID(len(f.instrs))
	in.setID(id)
	in.setBlock(b)
	if r := in.GetResult(); r != nil {
		r.Kind = ResultValue
		r.Parent = f
		r.Def = id
	}
	f.instrs = append(f.instrs, in)
	f.touch()
	return id
}

// Append adds a non-terminator at the end of the block body.
func (f *Function) Append(b *BasicBlock, in Instruction) InstrID {
	id := f.add(b, in)
	b.Instrs = append(b.Instrs, id)
	return id
}

// InsertBefore adds in immediately before the instruction pos. When pos is
// the block terminator the instruction goes to the end of the body.
func (f *Function) InsertBefore(b *BasicBlock, pos InstrID, in Instruction) InstrID {
	id := f.add(b, in)
	for i, existing := range b.Instrs {
		if existing == pos {
			b.Instrs = append(b.Instrs[:i], append([]InstrID{id}, b.Instrs[i:]...)...)
			return id
		}
	}
	b.Instrs = append(b.Instrs, id)
	return id
}

// SetTerminator installs t as the block terminator.
func (f *Function) SetTerminator(b *BasicBlock, t Terminator) InstrID {
	id := f.add(b, t)
	b.Terminator = t
	return id
}

func (f *Function) touch() {
	f.version++
}

// Snapshot returns a copy of the block's body handles, safe to iterate
// while inserting.
func (b *BasicBlock) Snapshot() []InstrID {
	ids := make([]InstrID, len(b.Instrs))
	copy(ids, b.Instrs)
	return ids
}

// FirstInsertionPoint returns the handle new instructions go in front of
// when they belong at the top of the block: past the phis and the
// exception handling pad, if any. A block ending in catchswitch has no
// such point.
func (b *BasicBlock) FirstInsertionPoint() (InstrID, bool) {
	if b.Terminator != nil && IsEHPad(b.Terminator) {
		return 0, false
	}
	for i, id := range b.Instrs {
		in := b.Parent.Instr(id)
		if in.Opcode() == OpPhi {
			continue
		}
		if !IsEHPad(in) {
			return id, true
		}
		if i+1 < len(b.Instrs) {
			return b.Instrs[i+1], true
		}
		break
	}
	if b.Terminator != nil {
		return b.Terminator.GetID(), true
	}
	return 0, false
}

// LastInsertionPoint returns the handle code that must run right before the
// block is left goes in front of: the terminator, or a musttail call
// which has to stay glued to its ret.
func (b *BasicBlock) LastInsertionPoint() InstrID {
	if n := len(b.Instrs); n > 0 && IsMustTail(b.Parent.Instr(b.Instrs[n-1])) {
		return b.Instrs[n-1]
	}
	return b.Terminator.GetID()
}

// Successors returns the blocks the terminator may transfer control to.
func (b *BasicBlock) Successors() []*BasicBlock {
	if b.Terminator == nil {
		return nil
	}
	return b.Terminator.GetSuccessors()
}

// Ref returns the block as a label operand (%name or %N).
func (b *BasicBlock) Ref() string {
	if b.Label != "" {
		return "%" + QuoteName(b.Label)
	}
	if n, ok := b.Parent.Slots().Block(b); ok {
		return fmt.Sprintf("%%%d", n)
	}
	return "%<badref>"
}
