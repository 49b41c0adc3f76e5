package ir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"gneiss/grammar"
)

// Lower converts a parsed .ll file into the IR. Symbols are collected first
// so bodies can refer to globals and functions defined later in the file.
func Lower(src *grammar.Module) (*Module, error) {
	m := NewModule("")
	var defines []*grammar.Define
	var bodies []*Function
	seenFunction := false

	for _, ent := range src.Entities {
		switch {
		case ent.SourceFilename != nil:
			m.SourceFilename = grammar.Unquote(*ent.SourceFilename)

		case ent.Global != nil:
			g, err := m.AddGlobal(stripSigil(ent.Global.Name), ent.Global.Body.Text())
			if err != nil {
				return nil, fmt.Errorf("%s: %w", ent.Pos, err)
			}
			m.adoptString(g)

		case ent.Declare != nil:
			seenFunction = true
			fn, err := lowerHeader(ent.Declare.Header, true)
			if err != nil {
				return nil, err
			}
			if err := m.AddFunction(fn); err != nil {
				return nil, fmt.Errorf("%s: %w", ent.Pos, err)
			}

		case ent.Define != nil:
			seenFunction = true
			fn, err := lowerHeader(ent.Define.Header, false)
			if err != nil {
				return nil, err
			}
			if err := m.AddFunction(fn); err != nil {
				return nil, fmt.Errorf("%s: %w", ent.Pos, err)
			}
			defines = append(defines, ent.Define)
			bodies = append(bodies, fn)

		case ent.Metadata != nil:
			m.Metadata = append(m.Metadata, &MetadataDef{Name: ent.Metadata.Name, Body: ent.Metadata.Body.Text()})

		case ent.Raw != nil:
			if seenFunction {
				m.Trailer = append(m.Trailer, ent.Raw.Text())
			} else {
				m.Header = append(m.Header, ent.Raw.Text())
			}
		}
	}

	for i, def := range defines {
		l := &lowerer{module: m, fn: bodies[i], locals: make(map[string]*Value), blocks: make(map[string]*BasicBlock)}
		if err := l.lowerBody(def); err != nil {
			return nil, fmt.Errorf("@%s: %w", bodies[i].Name, err)
		}
	}
	return m, nil
}

// Parse parses and lowers .ll text in one step.
func Parse(filename, source string) (*Module, error) {
	ast, err := grammar.ParseString(filename, source)
	if err != nil {
		return nil, err
	}
	return Lower(ast)
}

func lowerHeader(h *grammar.FuncHeader, decl bool) (*Function, error) {
	ret, err := lowerType(h.Ret)
	if err != nil {
		return nil, err
	}
	fn := &Function{
		Name:        stripSigil(h.Name),
		Declaration: decl,
		Prefix:      h.Pre,
		RetType:     ret,
		Suffix:      h.Post.Text(),
	}
	for _, p := range h.Params {
		if p.Variadic {
			fn.Variadic = true
			continue
		}
		t, err := lowerType(p.Type)
		if err != nil {
			return nil, err
		}
		name := ""
		if p.Name != nil {
			name = localName(*p.Name)
		}
		fn.AddParam(t, attrTexts(p.Attrs), name)
	}
	return fn, nil
}

func lowerType(t *grammar.Type) (Type, error) {
	if t == nil || t.Base == nil {
		return nil, fmt.Errorf("missing type")
	}
	var result Type
	base := t.Base
	switch {
	case base.Keyword != nil:
		result = keywordType(*base.Keyword)
	case base.Named != nil:
		result = &NamedType{Name: *base.Named}
	case base.Array != nil:
		n, err := strconv.Atoi(base.Array.Len)
		if err != nil {
			return nil, fmt.Errorf("%s: bad array length %q", t.Pos, base.Array.Len)
		}
		elem, err := lowerType(base.Array.Elem)
		if err != nil {
			return nil, err
		}
		result = &ArrayType{Len: n, Elem: elem}
	case base.Vector != nil:
		n, err := strconv.Atoi(base.Vector.Len)
		if err != nil {
			return nil, fmt.Errorf("%s: bad vector length %q", t.Pos, base.Vector.Len)
		}
		elem, err := lowerType(base.Vector.Elem)
		if err != nil {
			return nil, err
		}
		result = &VectorType{Len: n, Elem: elem}
	case base.Struct != nil, base.Packed != nil:
		packed := base.Packed != nil
		var fields []*grammar.Type
		if packed {
			fields = base.Packed.Fields
		} else {
			fields = base.Struct.Fields
		}
		st := &StructType{Packed: packed}
		for _, f := range fields {
			ft, err := lowerType(f)
			if err != nil {
				return nil, err
			}
			st.Fields = append(st.Fields, ft)
		}
		result = st
	default:
		return nil, fmt.Errorf("%s: unsupported type", t.Pos)
	}

	for _, suffix := range t.Suffixes {
		if suffix.Pointer {
			result = &PointerType{Elem: result}
			continue
		}
		ft := &FunctionType{Ret: result, Variadic: suffix.Func.Variadic}
		for _, p := range suffix.Func.Params {
			pt, err := lowerType(p)
			if err != nil {
				return nil, err
			}
			ft.Params = append(ft.Params, pt)
		}
		result = ft
	}
	return result, nil
}

func keywordType(kw string) Type {
	switch kw {
	case "void":
		return Void
	case "ptr":
		return Ptr
	case "metadata":
		return Metadata
	case "label":
		return Label
	}
	if strings.HasPrefix(kw, "i") {
		if bits, err := strconv.Atoi(kw[1:]); err == nil {
			return &IntType{Bits: bits}
		}
	}
	return &KeywordType{Name: kw}
}

type lowerer struct {
	module *Module
	fn     *Function
	locals map[string]*Value
	blocks map[string]*BasicBlock
}

type segment struct {
	label  string
	instrs []*grammar.Instruction
}

// splitAtTerminators cuts a labelled run of instructions wherever a
// terminator is followed by more instructions; each remainder becomes an
// unlabelled block.
func splitAtTerminators(label string, instrs []*grammar.Instruction) []segment {
	segs := []segment{{label: label}}
	for _, gi := range instrs {
		cur := &segs[len(segs)-1]
		if n := len(cur.instrs); n > 0 && isTerminator(cur.instrs[n-1]) {
			segs = append(segs, segment{})
			cur = &segs[len(segs)-1]
		}
		cur.instrs = append(cur.instrs, gi)
	}
	return segs
}

func isTerminator(gi *grammar.Instruction) bool {
	switch {
	case gi.Ret != nil, gi.Br != nil, gi.Switch != nil:
		return true
	case gi.Opaque != nil:
		return IsTerminatorOpcode(gi.Opaque.Opcode)
	}
	return false
}

func (l *lowerer) lowerBody(def *grammar.Define) error {
	for _, p := range l.fn.Params {
		if p.Value.Name != "" {
			l.locals["%"+p.Value.Name] = p.Value
		}
	}
	// Anonymous values are referenced by their slot number in the source.
	next := 0
	for _, p := range l.fn.Params {
		if p.Value.Name == "" {
			l.locals[fmt.Sprintf("%%%d", next)] = p.Value
			next++
		}
	}

	var segs []segment
	if len(def.Entry) > 0 || len(def.Blocks) == 0 {
		segs = append(segs, splitAtTerminators("", def.Entry)...)
	}
	for _, lb := range def.Blocks {
		segs = append(segs, splitAtTerminators(UnquoteName(grammar.BlockLabel(lb.Label)), lb.Instrs)...)
	}

	blocks := make([]*BasicBlock, len(segs))
	results := make(map[*grammar.Instruction]*Value)
	for i, seg := range segs {
		numbered := seg.label == "" || isNumeric(seg.label)
		label := seg.label
		if numbered {
			label = ""
		}
		blocks[i] = l.fn.AddBlock(label)

		ref := "%" + seg.label
		if numbered {
			if seg.label == "" {
				ref = fmt.Sprintf("%%%d", next)
			}
			next++
		}
		if _, dup := l.blocks[ref]; dup {
			return fmt.Errorf("block %s defined twice", ref)
		}
		l.blocks[ref] = blocks[i]

		for _, gi := range seg.instrs {
			if gi.Result == nil {
				continue
			}
			ref := canonicalRef(*gi.Result)
			if _, dup := l.locals[ref]; dup {
				return fmt.Errorf("%s: value %s defined twice", gi.Pos, ref)
			}
			v := &Value{Kind: ResultValue, Name: localName(ref), Parent: l.fn}
			if v.Name == "" {
				next++
			}
			l.locals[ref] = v
			results[gi] = v
		}
	}

	for i, seg := range segs {
		block := blocks[i]
		for _, gi := range seg.instrs {
			in, err := l.lowerInstruction(gi, results[gi])
			if err != nil {
				return fmt.Errorf("%s: %w", gi.Pos, err)
			}
			if term, ok := in.(Terminator); ok && in.IsTerminator() {
				l.fn.SetTerminator(block, term)
			} else {
				l.fn.Append(block, in)
			}
		}
	}
	return nil
}

func (l *lowerer) local(ref string) (*Value, error) {
	if v, ok := l.locals[canonicalRef(ref)]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("use of undefined value %s", ref)
}

func (l *lowerer) block(ref string) (*BasicBlock, error) {
	if b, ok := l.blocks[canonicalRef(ref)]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("use of undefined label %s", ref)
}

func (l *lowerer) global(ref string) *Value {
	name := stripSigil(ref)
	if v, ok := l.module.Lookup(name); ok {
		return v
	}
	return &Value{Kind: GlobalValue, Name: name, Type: Ptr}
}

func (l *lowerer) lowerInstruction(gi *grammar.Instruction, result *Value) (Instruction, error) {
	attach := make([]string, 0, len(gi.Attach))
	for _, span := range gi.Attach {
		attach = append(attach, span.Text())
	}
	trailer := strings.Join(attach, ", ")

	switch {
	case gi.Phi != nil:
		t, err := lowerType(gi.Phi.Type)
		if err != nil {
			return nil, err
		}
		phi := &PhiInstruction{Result: withType(result, t), Flags: gi.Phi.Flags, Type: t, Attach: trailer}
		for _, inc := range gi.Phi.Incoming {
			v, err := l.lowerValue(inc.Value, t)
			if err != nil {
				return nil, err
			}
			b, err := l.block(inc.Block)
			if err != nil {
				return nil, err
			}
			phi.Incoming = append(phi.Incoming, PhiIncoming{Value: v, Block: b})
		}
		return phi, nil

	case gi.Call != nil:
		c := gi.Call
		t, err := lowerType(c.Type)
		if err != nil {
			return nil, err
		}
		retType := t
		if ft, ok := t.(*FunctionType); ok {
			retType = ft.Ret
		}
		callee, err := l.lowerValue(c.Callee, Ptr)
		if err != nil {
			return nil, err
		}
		call := &CallInstruction{Flags: c.Flags, Type: t, Callee: callee, FnAttrs: c.Attrs, Attach: trailer}
		if c.Tail != nil {
			call.Tail = *c.Tail
		}
		if !IsVoid(retType) {
			call.Result = withType(result, retType)
		}
		for _, arg := range c.Args {
			op, err := l.lowerOperand(arg)
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, op)
		}
		return call, nil

	case gi.Load != nil:
		t, err := lowerType(gi.Load.Type)
		if err != nil {
			return nil, err
		}
		addr, err := l.lowerOperand(gi.Load.Address)
		if err != nil {
			return nil, err
		}
		return &LoadInstruction{Result: withType(result, t), Volatile: gi.Load.Volatile, Type: t, Address: addr, Attach: trailer}, nil

	case gi.Store != nil:
		val, err := l.lowerOperand(gi.Store.Value)
		if err != nil {
			return nil, err
		}
		addr, err := l.lowerOperand(gi.Store.Address)
		if err != nil {
			return nil, err
		}
		return &StoreInstruction{Volatile: gi.Store.Volatile, Value: val, Address: addr, Attach: trailer}, nil

	case gi.Ret != nil:
		ret := &ReturnTerminator{Attach: trailer}
		if !gi.Ret.Void {
			op, err := l.lowerOperand(gi.Ret.Value)
			if err != nil {
				return nil, err
			}
			ret.Value = op
		}
		return ret, nil

	case gi.Br != nil:
		if gi.Br.Dest != nil {
			target, err := l.block(*gi.Br.Dest)
			if err != nil {
				return nil, err
			}
			return &BranchTerminator{Target: target, Attach: trailer}, nil
		}
		cond, err := l.lowerOperand(gi.Br.Cond)
		if err != nil {
			return nil, err
		}
		t, err := l.block(gi.Br.True)
		if err != nil {
			return nil, err
		}
		f, err := l.block(gi.Br.False)
		if err != nil {
			return nil, err
		}
		return &CondBranchTerminator{Condition: cond, TrueBlock: t, FalseBlock: f, Attach: trailer}, nil

	case gi.Switch != nil:
		cond, err := l.lowerOperand(gi.Switch.Cond)
		if err != nil {
			return nil, err
		}
		def, err := l.block(gi.Switch.Default)
		if err != nil {
			return nil, err
		}
		sw := &SwitchTerminator{Condition: cond, Default: def, Attach: trailer}
		for _, c := range gi.Switch.Cases {
			v, err := l.lowerOperand(c.Value)
			if err != nil {
				return nil, err
			}
			target, err := l.block(c.Dest)
			if err != nil {
				return nil, err
			}
			sw.Cases = append(sw.Cases, SwitchCase{Value: v, Target: target})
		}
		return sw, nil

	case gi.Opaque != nil:
		return l.lowerOpaque(gi.Opaque, result, trailer)
	}
	return nil, fmt.Errorf("empty instruction")
}

func (l *lowerer) lowerOpaque(o *grammar.Opaque, result *Value, trailer string) (Instruction, error) {
	in := &OpaqueInstruction{Op: o.Opcode, Attach: trailer}
	if result != nil {
		if o.Opcode == "alloca" {
			result.Type = Ptr
		}
		in.Result = result
	}
	prevEnd := -1
	prevText := ""
	for i, operand := range o.Operands {
		piece := Piece{}
		switch {
		case operand.Label != nil:
			b, err := l.block(*operand.Label)
			if err != nil {
				return nil, err
			}
			piece.Block = b
		case operand.Local != nil:
			if v, ok := l.locals[canonicalRef(*operand.Local)]; ok {
				piece.Value = v
			} else if b, ok := l.blocks[canonicalRef(*operand.Local)]; ok && o.Opcode == "blockaddress" {
				piece.Block = b
			} else {
				piece.Text = *operand.Local
			}
		case operand.Continued != nil:
			piece.Text = *operand.Continued
		default:
			piece.Text = *operand.Other
		}

		start, end := tokenExtent(operand.Tokens)
		switch {
		case i == 0:
			piece.Space = true
		case start >= 0 && prevEnd >= 0:
			piece.Space = start > prevEnd
		default:
			piece.Space = needsSpace(prevText, piece.Text)
		}
		prevEnd = end
		prevText = piece.Text
		in.Pieces = append(in.Pieces, piece)
	}
	return in, nil
}

func (l *lowerer) lowerOperand(tv *grammar.TypedValue) (*Operand, error) {
	t, err := lowerType(tv.Type)
	if err != nil {
		return nil, err
	}
	op := &Operand{Type: t, Attrs: attrTexts(tv.Attrs)}
	if tv.Value.Typed != nil {
		inner, err := l.lowerOperand(tv.Value.Typed)
		if err != nil {
			return nil, err
		}
		op.Inner = inner
		return op, nil
	}
	v, err := l.lowerValue(tv.Value, t)
	if err != nil {
		return nil, err
	}
	op.Value = v
	return op, nil
}

func (l *lowerer) lowerValue(v *grammar.Value, t Type) (*Value, error) {
	switch {
	case v.Local != nil:
		return l.local(*v.Local)
	case v.Global != nil:
		return l.global(*v.Global), nil
	case v.Meta != nil:
		return &Value{Kind: MetadataValue, Type: Metadata, Text: v.Text()}, nil
	case v.Typed != nil:
		return nil, fmt.Errorf("unexpected typed value")
	}
	return Constant(t, v.Text()), nil
}

func withType(v *Value, t Type) *Value {
	if v != nil {
		v.Type = t
	}
	return v
}

func attrTexts(attrs []*grammar.Attr) []string {
	texts := make([]string, 0, len(attrs))
	for _, a := range attrs {
		texts = append(texts, a.Text())
	}
	return texts
}

func tokenExtent(tokens []lexer.Token) (int, int) {
	start, end := -1, -1
	for _, tok := range tokens {
		if strings.TrimSpace(tok.Value) == "" || strings.HasPrefix(tok.Value, ";") {
			continue
		}
		if start < 0 {
			start = tok.Pos.Offset
		}
		end = tok.Pos.Offset + len(tok.Value)
	}
	return start, end
}

func needsSpace(prev, next string) bool {
	switch {
	case next == "," || next == ")" || next == "]" || next == ">" || next == "}":
		return false
	case strings.HasSuffix(prev, "(") || prev == "[" || prev == "<" || prev == "{":
		return false
	}
	return true
}

// stripSigil returns the bare name of a %- or @-reference, unquoted.
func stripSigil(name string) string {
	if len(name) > 0 && (name[0] == '@' || name[0] == '%') {
		name = name[1:]
	}
	return UnquoteName(name)
}

// canonicalRef spells a local reference the way the lowerer keys it, so
// %"x" and %x find the same value.
func canonicalRef(ref string) string {
	if len(ref) > 0 && ref[0] == '%' {
		return "%" + stripSigil(ref)
	}
	return ref
}

// localName returns the name of a %-reference, or "" for numbered ones.
func localName(ref string) string {
	name := stripSigil(ref)
	if isNumeric(name) {
		return ""
	}
	return name
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
