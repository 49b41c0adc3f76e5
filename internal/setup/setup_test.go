package setup_test

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gneiss/internal/errors"
	"gneiss/internal/ir"
	"gneiss/internal/naming"
	"gneiss/internal/setup"
)

func parseFixture(t *testing.T, name string) *ir.Module {
	t.Helper()
	source, err := os.ReadFile("../../testdata/" + name)
	require.NoError(t, err)
	m, err := ir.Parse(name, string(source))
	require.NoError(t, err)
	return m
}

func countSetupBlocks(m *ir.Module) int {
	n := 0
	for _, b := range m.Function(setup.EntryFunction).Blocks {
		if strings.HasPrefix(b.Label, setup.BlockLabel) {
			n++
		}
	}
	return n
}

func TestEnsureInsertsSetupBlock(t *testing.T) {
	m := parseFixture(t, "hello.ll")

	sink, err := setup.Ensure(m)
	require.NoError(t, err)

	mainFn := m.Function("main")
	require.Len(t, mainFn.Blocks, 4)
	assert.Same(t, mainFn.Blocks[0], sink.Block)
	assert.Equal(t, setup.BlockLabel, sink.Block.Label)
	assert.True(t, sink.IsSetupBlock(mainFn.Blocks[0]))
	assert.False(t, sink.IsSetupBlock(mainFn.Blocks[1]))
	assert.Equal(t, setup.LevelInfo, sink.Severity)

	expected := `define dso_local i32 @main() #0 {
setupLogger:
  store i32 0, ptr @line, align 4
  %pidAlloca = alloca i32, align 4
  %pid = call i32 @getpid()
  store i32 %pid, ptr %pidAlloca, align 4
  %pidValue = load i32, ptr %pidAlloca, align 4
  %nameLength = call i32 (ptr, i32, ptr, ...) @snprintf(ptr @logFileName, i32 50, ptr @.gneiss.str.0, i32 %pidValue)
  %initStatus = call i32 @logger_initFileLogger(ptr @logFileName, i64 1048576, i32 3)
  call void @logger_setLevel(i32 2)
  br label %0

0:
  %1 = alloca i32, align 4
`
	assert.True(t, strings.HasPrefix(ir.PrintFunction(mainFn), expected), ir.PrintFunction(mainFn))

	output := ir.Print(m)
	assert.Contains(t, output, "@line = global i32 0, align 4\n")
	assert.Contains(t, output, "@logFileName = global [50 x i8] zeroinitializer, align 16\n")
	assert.Contains(t, output, `@.gneiss.str.0 = private unnamed_addr constant [13 x i8] c"hello-%d.log\00", align 1`)
	assert.Contains(t, output, "declare i32 @getpid()\n")
	assert.Contains(t, output, "declare i32 @snprintf(ptr, i32, ptr, ...)\n")
	assert.Contains(t, output, "declare i32 @logger_initFileLogger(ptr, i64, i32)\n")
	assert.Contains(t, output, "declare void @logger_setLevel(i32)\n")
	assert.Contains(t, output, "declare void @logger_log(i32, ptr, i32, ptr, ...)\n")
	assert.Contains(t, output, "!gneiss.setup = !{!3}\n")
	assert.Contains(t, output, "!3 = !{ptr @logFileName}\n")

	assert.Empty(t, ir.VerifyModule(m))
}

func TestEnsureIsIdempotent(t *testing.T) {
	m := parseFixture(t, "hello.ll")

	first, err := setup.Ensure(m)
	require.NoError(t, err)
	before := ir.Print(m)

	second, err := setup.Ensure(m)
	require.NoError(t, err)

	assert.Same(t, first.Block, second.Block)
	assert.Same(t, first.Handle, second.Handle)
	assert.Same(t, first.Log, second.Log)
	assert.Equal(t, before, ir.Print(m))
	assert.Equal(t, 1, countSetupBlocks(m))
}

func TestEnsureAfterRoundTrip(t *testing.T) {
	m := parseFixture(t, "loop.ll")
	_, err := setup.Ensure(m)
	require.NoError(t, err)
	text := ir.Print(m)

	again, err := ir.Parse("loop.ll", text)
	require.NoError(t, err, text)
	sink, err := setup.Ensure(again)
	require.NoError(t, err)

	assert.Equal(t, setup.BlockLabel, sink.Block.Label)
	assert.Equal(t, 1, countSetupBlocks(again))
	assert.Equal(t, text, ir.Print(again))
}

func TestEnsureRecognizesUnmarkedSetup(t *testing.T) {
	m := parseFixture(t, "exit.ll")
	_, err := setup.Ensure(m)
	require.NoError(t, err)
	m.Metadata = nil

	sink, err := setup.Ensure(m)
	require.NoError(t, err)
	assert.Equal(t, 1, countSetupBlocks(m))
	assert.Same(t, m.Function("main").Blocks[0], sink.Block)
}

func TestEnsureMissingEntry(t *testing.T) {
	m, err := ir.Parse("lib.ll", `define i32 @helper() {
  ret i32 0
}`)
	require.NoError(t, err)
	_, err = setup.Ensure(m)
	require.Error(t, err)
	pe, ok := errors.AsPassError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorMissingEntry, pe.Code)

	declared, err := ir.Parse("decl.ll", `declare i32 @main()`)
	require.NoError(t, err)
	_, err = setup.Ensure(declared)
	require.Error(t, err)
}

func TestEnsureMarkerWithoutHandle(t *testing.T) {
	m, err := ir.Parse("marked.ll", `define i32 @main() {
  ret i32 0
}

!gneiss.setup = !{}`)
	require.NoError(t, err)

	_, err = setup.Ensure(m)
	pe, ok := errors.AsPassError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorMissingSinkHandle, pe.Code)
}

func TestEnsureSignatureClash(t *testing.T) {
	m, err := ir.Parse("clash.ll", `define i32 @main() {
  ret i32 0
}

declare i64 @getpid()`)
	require.NoError(t, err)

	_, err = setup.Ensure(m)
	pe, ok := errors.AsPassError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorSignatureClash, pe.Code)
	assert.Len(t, m.Function("main").Blocks, 1, "a failed setup must not insert a block")
}

func TestEnsureSinkNamesTaken(t *testing.T) {
	m, err := ir.Parse("taken.ll", `@logFileName = global i32 0
@line = dso_local global i32 7

define i32 @main() {
  %1 = load i32, ptr @line, align 4
  ret i32 %1
}`)
	require.NoError(t, err)

	sink, err := setup.Ensure(m)
	require.NoError(t, err)
	assert.Equal(t, "logFileName.1", sink.Handle.Name)

	output := ir.Print(m)
	assert.Contains(t, output, "@line.1 = global i32 0, align 4\n")
	assert.Contains(t, output, "store i32 0, ptr @line.1, align 4")
	assert.Contains(t, output, "%1 = load i32, ptr @line, align 4")
	assert.Contains(t, output, "!gneiss.setup = !{!0}\n")
	assert.Contains(t, output, "!0 = !{ptr @logFileName.1}\n")
	assert.Empty(t, ir.VerifyModule(m))

	reparsed, err := ir.Parse("taken.ll", output)
	require.NoError(t, err)
	again, err := setup.Ensure(reparsed)
	require.NoError(t, err)
	assert.Equal(t, "logFileName.1", again.Handle.Name)
	assert.Equal(t, output, ir.Print(reparsed))
}

func TestEnsureUnrecordedMarkerUsesDefaultHandle(t *testing.T) {
	m, err := ir.Parse("legacy.ll", `@logFileName = global [50 x i8] zeroinitializer, align 16

define i32 @main() {
  ret i32 0
}

!gneiss.setup = !{}`)
	require.NoError(t, err)

	sink, err := setup.Ensure(m)
	require.NoError(t, err)
	assert.Equal(t, setup.HandleName, sink.Handle.Name)
}

func TestSinkTrace(t *testing.T) {
	m := parseFixture(t, "exit.ll")
	sink, err := setup.Ensure(m)
	require.NoError(t, err)

	quit := m.Function("quit")
	entry := quit.EntryBlock()
	call := sink.Trace(ir.NewBuilderBefore(entry, entry.Instrs[0]), naming.FuncEntered("quit"))

	assert.Equal(t, entry.Instrs[0], call.GetID())
	assert.Nil(t, call.Result)
	assert.Equal(t,
		"call void (i32, ptr, i32, ptr, ...) @logger_log(i32 2, ptr @logFileName, i32 0, ptr @.gneiss.str.1, ptr @.gneiss.str.2)",
		ir.FormatInstruction(call))
	assert.Contains(t, ir.Print(m), `@.gneiss.str.1 = private unnamed_addr constant [17 x i8] c"Func Entered: %s\00", align 1`)
	assert.Contains(t, ir.Print(m), `@.gneiss.str.2 = private unnamed_addr constant [5 x i8] c"quit\00", align 1`)
	assert.Empty(t, ir.VerifyModule(m))
}

func TestBaseName(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"hello.c", "hello"},
		{"src/lib/hello.c", "hello"},
		{"hello.test.c", "hello"},
		{`C:\work\prog.cpp`, "prog"},
		{"noext", "noext"},
		{"", "module"},
		{".hidden.c", "module"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, setup.BaseName(tc.input), tc.input)
	}
}

func TestSetupPercentInFileName(t *testing.T) {
	m, err := ir.Parse("odd.ll", `source_filename = "100%.c"

define i32 @main() {
  ret i32 0
}`)
	require.NoError(t, err)
	_, err = setup.Ensure(m)
	require.NoError(t, err)
	assert.Contains(t, ir.Print(m), `c"100%%-%d.log\00"`)
}

func TestTraceMessageRoundTrip(t *testing.T) {
	m := parseFixture(t, "funcptr.ll")
	sink, err := setup.Ensure(m)
	require.NoError(t, err)

	add := m.Function("add")
	entry := add.EntryBlock()
	sink.Trace(ir.NewBuilderBefore(entry, entry.Instrs[0]), naming.IndirectCall("%7"))
	sink.Trace(ir.NewBuilderBefore(entry, entry.Instrs[1]), naming.Load("%v", "i32", "%buf"))

	assert.Equal(t, []string{
		"Func Call: Indirect Call to -> %7",
		"Load %v with i32 in %buf",
	}, setup.Traces(add))

	reparsed, err := ir.Parse("funcptr.ll", ir.Print(m))
	require.NoError(t, err)
	assert.Equal(t, setup.Traces(add), setup.Traces(reparsed.Function("add")))

	_, ok := setup.TraceMessage(m, add.Instr(entry.Instrs[len(entry.Instrs)-1]))
	assert.False(t, ok)
}
