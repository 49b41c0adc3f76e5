// Package setup prepends the log sink initialization to the entry function
// and hands back the Sink every trace call is emitted through.
package setup

import (
	"path"
	"strings"

	"github.com/tliron/commonlog"

	"gneiss/internal/errors"
	"gneiss/internal/extern"
	"gneiss/internal/ir"
	"gneiss/internal/naming"
)

const (
	EntryFunction = "main"
	BlockLabel    = "setupLogger"
	HandleName    = "logFileName"
	LineName      = "line"
	Marker        = "!gneiss.setup"

	HandleSize = 50
	MaxLogSize = 1048576
	MaxBackups = 3

	// LevelInfo is the severity of every record and the level the sink
	// is opened with.
	LevelInfo = 2
)

var log = commonlog.GetLogger("gneiss.setup")

// Sink is the explicit logging context of one module: the buffer holding
// the log file name, the emit function and the setup block to skip.
type Sink struct {
	Module   *ir.Module
	Entry    *ir.Function
	Block    *ir.BasicBlock
	Handle   *ir.Global
	Log      *ir.Function
	Severity int
}

// IsSetupBlock reports whether b is the synthesized setup block.
func (s *Sink) IsSetupBlock(b *ir.BasicBlock) bool {
	return s.Block != nil && b == s.Block
}

// Trace emits one logger_log call at the builder's insertion point. The
// format and every argument become private string constants.
func (s *Sink) Trace(b *ir.Builder, msg naming.Message) *ir.CallInstruction {
	args := []*ir.Operand{
		ir.NewOperand(ir.I32, ir.IntConst(ir.I32, int64(s.Severity))),
		ir.NewOperand(ir.Ptr, s.Handle.Value),
		ir.NewOperand(ir.I32, ir.IntConst(ir.I32, 0)),
		ir.NewOperand(ir.Ptr, s.Module.InternString(msg.Format)),
	}
	for _, arg := range msg.Args {
		args = append(args, ir.NewOperand(ir.Ptr, s.Module.InternString(arg)))
	}
	return b.CreateCall(s.Log.Value, extern.Log.Signature, args, "")
}

// TraceMessage recovers the message of a trace call. It reports false for
// any other instruction.
func TraceMessage(m *ir.Module, inst ir.Instruction) (naming.Message, bool) {
	call, ok := inst.(*ir.CallInstruction)
	if !ok || call.Callee == nil || call.Callee.Name != extern.Log.Name || len(call.Args) < 4 {
		return naming.Message{}, false
	}
	decode := func(op *ir.Operand) (string, bool) {
		if op.Value == nil || op.Value.Kind != ir.GlobalValue {
			return "", false
		}
		g := m.GlobalVar(op.Value.Name)
		if g == nil {
			return "", false
		}
		return ir.StringConstant(g)
	}
	format, ok := decode(call.Args[3])
	if !ok {
		return naming.Message{}, false
	}
	msg := naming.Message{Format: format}
	for _, op := range call.Args[4:] {
		arg, ok := decode(op)
		if !ok {
			return naming.Message{}, false
		}
		msg.Args = append(msg.Args, arg)
	}
	return msg, true
}

// Traces lists the rendered messages of every trace call in fn, in layout
// order.
func Traces(fn *ir.Function) []string {
	var texts []string
	for _, b := range fn.Blocks {
		for _, id := range b.Instrs {
			if msg, ok := TraceMessage(fn.Module, fn.Instr(id)); ok {
				texts = append(texts, msg.Text())
			}
		}
	}
	return texts
}

// Ensure makes sure m initializes its log sink on entry and returns the
// sink. A module that already went through setup is left untouched.
func Ensure(m *ir.Module) (*Sink, error) {
	entry := m.Function(EntryFunction)
	if entry == nil || entry.Declaration || len(entry.Blocks) == 0 {
		return nil, errors.MissingEntry(EntryFunction)
	}

	if done, block := alreadySetUp(m, entry); done {
		log.Infof("module %s is already set up", m.SourceFilename)
		return rebuild(m, entry, block)
	}
	return synthesize(m, entry)
}

// alreadySetUp detects earlier setup by the module marker or, for modules
// rewritten before the marker existed, by a leading setup block.
func alreadySetUp(m *ir.Module, entry *ir.Function) (bool, *ir.BasicBlock) {
	first := entry.EntryBlock()
	var block *ir.BasicBlock
	if first.Label == BlockLabel {
		block = first
	}
	if m.HasNamedMetadata(Marker) {
		return true, block
	}
	return block != nil && m.GlobalVar(HandleName) != nil, block
}

// markedHandle follows the marker to the node naming the sink handle.
// Markers written before the handle was recorded fall back to the
// default name.
func markedHandle(m *ir.Module) *ir.Global {
	if marker := m.LookupMetadata(Marker); marker != nil {
		node := m.LookupMetadata("!" + strings.Trim(marker.Body, "!{} "))
		if node != nil {
			if at := strings.Index(node.Body, "@"); at >= 0 {
				name := strings.TrimSpace(strings.TrimSuffix(node.Body[at+1:], "}"))
				return m.GlobalVar(ir.UnquoteName(name))
			}
		}
	}
	return m.GlobalVar(HandleName)
}

func rebuild(m *ir.Module, entry *ir.Function, block *ir.BasicBlock) (*Sink, error) {
	handle := markedHandle(m)
	if handle == nil {
		return nil, errors.MissingSinkHandle(HandleName)
	}
	logFn, err := extern.Declare(m, extern.Log)
	if err != nil {
		return nil, err
	}
	return &Sink{Module: m, Entry: entry, Block: block, Handle: handle, Log: logFn, Severity: LevelInfo}, nil
}

func synthesize(m *ir.Module, entry *ir.Function) (*Sink, error) {
	fns, err := extern.DeclareAll(m)
	if err != nil {
		return nil, err
	}

	// The program may own these names already; the sink is found through
	// the marker, never by name.
	line, err := m.AddGlobal(m.UniqueGlobalName(LineName), "global i32 0, align 4")
	if err != nil {
		return nil, errors.NewPassError(errors.StageSetup, errors.ErrorSetup, "cannot create the line placeholder").Wrap(err)
	}
	handle, err := m.AddGlobal(m.UniqueGlobalName(HandleName), "global [50 x i8] zeroinitializer, align 16")
	if err != nil {
		return nil, errors.NewPassError(errors.StageSetup, errors.ErrorSetup, "cannot create the log sink handle").Wrap(err)
	}
	format := m.InternString(naming.EscapePercent(BaseName(m.SourceFilename)) + "-%d.log")

	original := entry.EntryBlock()
	block := entry.InsertBlockBefore(entry.UniqueName(BlockLabel), original)
	b := ir.NewBuilder(block)

	b.CreateStore(ir.I32, ir.IntConst(ir.I32, 0), line.Value, 4)
	pidSlot := b.CreateAlloca(ir.I32, 4, "pidAlloca")
	pid := b.CreateCall(fns.Getpid.Value, extern.Getpid.Signature, nil, "pid")
	b.CreateStore(ir.I32, pid.Result, pidSlot.Result, 4)
	pidValue := b.CreateLoad(ir.I32, pidSlot.Result, 4, "pidValue")

	b.CreateCall(fns.Snprintf.Value, extern.Snprintf.Signature, []*ir.Operand{
		ir.NewOperand(ir.Ptr, handle.Value),
		ir.NewOperand(ir.I32, ir.IntConst(ir.I32, HandleSize)),
		ir.NewOperand(ir.Ptr, format),
		ir.NewOperand(ir.I32, pidValue.Result),
	}, "nameLength")
	b.CreateCall(fns.InitFileLogger.Value, extern.InitFileLogger.Signature, []*ir.Operand{
		ir.NewOperand(ir.Ptr, handle.Value),
		ir.NewOperand(ir.I64, ir.IntConst(ir.I64, MaxLogSize)),
		ir.NewOperand(ir.I32, ir.IntConst(ir.I32, MaxBackups)),
	}, "initStatus")
	b.CreateCall(fns.SetLevel.Value, extern.SetLevel.Signature, []*ir.Operand{
		ir.NewOperand(ir.I32, ir.IntConst(ir.I32, LevelInfo)),
	}, "")
	b.CreateBr(original)

	node := m.AddMetadataNode("!{ptr " + handle.Value.Ref() + "}")
	m.AddNamedMetadata(Marker, "!{"+node+"}")
	log.Infof("inserted %%%s into @%s of %s, sink @%s", block.Label, entry.Name, m.SourceFilename, handle.Name)

	return &Sink{Module: m, Entry: entry, Block: block, Handle: handle, Log: fns.Log, Severity: LevelInfo}, nil
}

// BaseName strips directories and every extension from a source file
// name: "src/hello.test.c" becomes "hello".
func BaseName(sourceFilename string) string {
	base := path.Base(strings.ReplaceAll(sourceFilename, "\\", "/"))
	if i := strings.Index(base, "."); i >= 0 {
		base = base[:i]
	}
	if base == "" || base == "/" {
		return "module"
	}
	return base
}
