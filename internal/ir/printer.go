package ir

import (
	"fmt"
	"strings"
)

// Printer renders a module back to .ll text
type Printer struct {
	indent int
	output strings.Builder
}

// NewPrinter creates a new IR printer
func NewPrinter() *Printer {
	return &Printer{indent: 0}
}

// Print returns the textual form of a module
func Print(m *Module) string {
	p := NewPrinter()
	p.printModule(m)
	return p.output.String()
}

// PrintFunction returns the textual form of a single function
func PrintFunction(fn *Function) string {
	p := NewPrinter()
	p.printFunction(fn)
	return p.output.String()
}

// Helper methods

func (p *Printer) writeIndent() {
	for i := 0; i < p.indent; i++ {
		p.output.WriteString("  ")
	}
}

func (p *Printer) writeLine(format string, args ...interface{}) {
	p.writeIndent()
	p.output.WriteString(fmt.Sprintf(format, args...))
	p.output.WriteString("\n")
}

func (p *Printer) printModule(m *Module) {
	if m.SourceFilename != "" {
		p.writeLine("source_filename = \"%s\"", m.SourceFilename)
	}
	for _, line := range m.Header {
		p.writeLine("%s", line)
	}

	if len(m.Globals) > 0 {
		p.writeLine("")
		for _, g := range m.Globals {
			p.writeLine("@%s = %s", QuoteName(g.Name), g.Body)
		}
	}

	for _, fn := range m.Functions {
		p.writeLine("")
		p.printFunction(fn)
	}

	if len(m.Trailer) > 0 {
		p.writeLine("")
		for _, line := range m.Trailer {
			p.writeLine("%s", line)
		}
	}

	if len(m.Metadata) > 0 {
		p.writeLine("")
		for _, md := range m.Metadata {
			p.writeLine("%s = %s", md.Name, md.Body)
		}
	}
}

func (p *Printer) printFunction(fn *Function) {
	params := make([]string, 0, len(fn.Params)+1)
	for _, param := range fn.Params {
		parts := []string{param.Type.String()}
		parts = append(parts, param.Attrs...)
		if !fn.Declaration {
			parts = append(parts, param.Value.Ref())
		}
		params = append(params, strings.Join(parts, " "))
	}
	if fn.Variadic {
		params = append(params, "...")
	}

	header := []string{}
	if fn.Declaration {
		header = append(header, "declare")
	} else {
		header = append(header, "define")
	}
	header = append(header, fn.Prefix...)
	header = append(header, fmt.Sprintf("%s @%s(%s)", fn.RetType, QuoteName(fn.Name), strings.Join(params, ", ")))
	if fn.Suffix != "" {
		header = append(header, fn.Suffix)
	}

	if fn.Declaration {
		p.writeLine("%s", strings.Join(header, " "))
		return
	}

	p.writeLine("%s {", strings.Join(header, " "))
	for i, block := range fn.Blocks {
		p.printBasicBlock(block, i == 0)
	}
	p.writeLine("}")
}

func (p *Printer) printBasicBlock(block *BasicBlock, first bool) {
	switch {
	case block.Label != "":
		if !first {
			p.writeLine("")
		}
		p.writeLine("%s:", QuoteName(block.Label))
	case !first:
		p.writeLine("")
		p.writeLine("%s:", strings.TrimPrefix(block.Ref(), "%"))
	}

	p.indent++
	for _, id := range block.Instrs {
		p.printInstruction(block.Parent.Instr(id))
	}
	if block.Terminator != nil {
		p.printInstruction(block.Terminator)
	}
	p.indent--
}

func (p *Printer) printInstruction(inst Instruction) {
	text := FormatInstruction(inst)
	for _, line := range strings.Split(text, "\n") {
		p.writeLine("%s", line)
	}
}

// FormatInstruction returns the textual form of one instruction without
// indentation.
func FormatInstruction(inst Instruction) string {
	var b strings.Builder
	if r := inst.GetResult(); r != nil {
		b.WriteString(r.Ref())
		b.WriteString(" = ")
	}

	switch in := inst.(type) {
	case *PhiInstruction:
		b.WriteString(joinWords("phi", strings.Join(in.Flags, " "), in.Type.String()))
		incoming := make([]string, len(in.Incoming))
		for i, inc := range in.Incoming {
			incoming[i] = fmt.Sprintf("[ %s, %s ]", inc.Value.Ref(), inc.Block.Ref())
		}
		b.WriteString(" ")
		b.WriteString(strings.Join(incoming, ", "))

	case *CallInstruction:
		args := make([]string, len(in.Args))
		for i, a := range in.Args {
			args[i] = a.String()
		}
		b.WriteString(joinWords(in.Tail, "call", strings.Join(in.Flags, " "), in.Type.String(), in.Callee.Ref()))
		b.WriteString("(" + strings.Join(args, ", ") + ")")
		if len(in.FnAttrs) > 0 {
			b.WriteString(" " + strings.Join(in.FnAttrs, " "))
		}

	case *LoadInstruction:
		b.WriteString(joinWords("load", volatile(in.Volatile), in.Type.String()))
		b.WriteString(", " + in.Address.String())

	case *StoreInstruction:
		b.WriteString(joinWords("store", volatile(in.Volatile), in.Value.String()))
		b.WriteString(", " + in.Address.String())

	case *OpaqueInstruction:
		b.WriteString(in.Op)
		for _, piece := range in.Pieces {
			if piece.Space {
				b.WriteString(" ")
			}
			switch {
			case piece.Block != nil:
				b.WriteString("label " + piece.Block.Ref())
			case piece.Value != nil:
				b.WriteString(piece.Value.Ref())
			default:
				b.WriteString(piece.Text)
			}
		}

	case *ReturnTerminator:
		if in.Value == nil {
			b.WriteString("ret void")
		} else {
			b.WriteString("ret " + in.Value.String())
		}

	case *BranchTerminator:
		b.WriteString("br label " + in.Target.Ref())

	case *CondBranchTerminator:
		fmt.Fprintf(&b, "br %s, label %s, label %s", in.Condition, in.TrueBlock.Ref(), in.FalseBlock.Ref())

	case *SwitchTerminator:
		fmt.Fprintf(&b, "switch %s, label %s [", in.Condition, in.Default.Ref())
		for _, c := range in.Cases {
			fmt.Fprintf(&b, "\n  %s, label %s", c.Value, c.Target.Ref())
		}
		if len(in.Cases) > 0 {
			b.WriteString("\n")
		}
		b.WriteString("]")
	}

	if attach := inst.Attachments(); attach != "" {
		b.WriteString(", " + attach)
	}
	return b.String()
}

func joinWords(words ...string) string {
	kept := words[:0:0]
	for _, w := range words {
		if w != "" {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

func volatile(v bool) string {
	if v {
		return "volatile"
	}
	return ""
}

func (m *Module) String() string               { return Print(m) }
func (f *Function) String() string             { return PrintFunction(f) }
func (b *BasicBlock) String() string           { return "BasicBlock: " + b.Ref() }
func (v *Value) String() string                { return v.Ref() }
func (p *PhiInstruction) String() string       { return FormatInstruction(p) }
func (c *CallInstruction) String() string      { return FormatInstruction(c) }
func (l *LoadInstruction) String() string      { return FormatInstruction(l) }
func (s *StoreInstruction) String() string     { return FormatInstruction(s) }
func (o *OpaqueInstruction) String() string    { return FormatInstruction(o) }
func (r *ReturnTerminator) String() string     { return FormatInstruction(r) }
func (b *BranchTerminator) String() string     { return FormatInstruction(b) }
func (c *CondBranchTerminator) String() string { return FormatInstruction(c) }
func (s *SwitchTerminator) String() string     { return FormatInstruction(s) }
