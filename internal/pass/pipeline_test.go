package pass

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gneiss/internal/errors"
	"gneiss/internal/ir"
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

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"funclog", "varassign"}, Names())

	p, err := Lookup("funclog")
	require.NoError(t, err)
	assert.Equal(t, "funclog", p.Name())
	assert.NotEmpty(t, p.Description())
	assert.Equal(t, "!gneiss.funclog", p.Marker())
}

func TestLookupUnknownPass(t *testing.T) {
	_, err := Lookup("funclg")
	pe, ok := errors.AsPassError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorUnknownPass, pe.Code)
	assert.Equal(t, errors.StageConfig, pe.Stage)
	assert.Contains(t, pe.Suggestions, "did you mean 'funclog'?")
}

func TestNewPipeline(t *testing.T) {
	p, err := NewPipeline("funclog", " funclog ", "")
	require.NoError(t, err)
	require.Len(t, p.Passes(), 1)
	assert.Equal(t, "funclog", p.Passes()[0].Name())
}

func TestNewPipelineErrors(t *testing.T) {
	testCases := []struct {
		name  string
		names []string
		code  string
	}{
		{"both profiles", []string{"funclog", "varassign"}, errors.ErrorConflictingPasses},
		{"unknown", []string{"tracing"}, errors.ErrorUnknownPass},
		{"empty", nil, errors.ErrorEmptyPipeline},
		{"blank", []string{" "}, errors.ErrorEmptyPipeline},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewPipeline(tc.names...)
			pe, ok := errors.AsPassError(err)
			require.True(t, ok, "expected a pass error, got %v", err)
			assert.Equal(t, tc.code, pe.Code)
		})
	}
}

func TestRunFunctionLogging(t *testing.T) {
	m := parseFixture(t, "hello.ll")
	p, err := NewPipeline("funclog")
	require.NoError(t, err)

	report, err := p.Run(m)
	require.NoError(t, err)
	assert.Equal(t, Done, report.State)
	assert.Empty(t, report.Skipped)

	mainStats := report.Stats("main")
	assert.Equal(t, 1, mainStats.Entries)
	assert.Equal(t, 1, mainStats.Returns)
	assert.Equal(t, 2, mainStats.Calls)
	assert.Equal(t, 3, mainStats.Blocks)
	assert.Equal(t, 10, report.Total.Total())

	assert.True(t, m.HasNamedMetadata(setup.Marker))
	assert.True(t, m.HasNamedMetadata("!gneiss.funclog"))
	assert.Contains(t, report.String(), "funclog @main: entries=1 returns=1 calls=2")
	assert.Contains(t, report.String(), "total: 10 trace call(s)")
}

func TestRunVariableAssignment(t *testing.T) {
	m := parseFixture(t, "hello.ll")
	p, err := NewPipeline("varassign")
	require.NoError(t, err)

	report, err := p.Run(m)
	require.NoError(t, err)
	assert.Equal(t, Done, report.State)
	// add: 2 stores 2 loads; main: 2 stores 2 loads, the setup block excluded
	assert.Equal(t, 4, report.Stats("add").Total())
	assert.Equal(t, 4, report.Stats("main").Total())
	assert.Equal(t, 0, report.Stats("main").Calls)
}

func TestRunIsIdempotent(t *testing.T) {
	m := parseFixture(t, "loop.ll")
	p, err := NewPipeline("funclog")
	require.NoError(t, err)

	_, err = p.Run(m)
	require.NoError(t, err)
	first := ir.Print(m)

	reparsed, err := ir.Parse("loop.ll", first)
	require.NoError(t, err, first)
	report, err := p.Run(reparsed)
	require.NoError(t, err)

	assert.Equal(t, []string{"funclog"}, report.Skipped)
	assert.Equal(t, 0, report.Total.Total())
	assert.Equal(t, first, ir.Print(reparsed))
	assert.Equal(t, 1, strings.Count(first, "setupLogger:"))
}

func TestRunBothProfilesInSequence(t *testing.T) {
	m := parseFixture(t, "funcptr.ll")

	control, err := NewPipeline("funclog")
	require.NoError(t, err)
	_, err = control.Run(m)
	require.NoError(t, err)

	data, err := NewPipeline("varassign")
	require.NoError(t, err)
	report, err := data.Run(m)
	require.NoError(t, err)

	// Trace calls are not loads or stores, so only the original sites count.
	assert.Equal(t, 2, report.Stats("main").Total())
	assert.Equal(t, 1, strings.Count(ir.Print(m), "setupLogger:"))
}

func TestRunMissingEntry(t *testing.T) {
	m, err := ir.Parse("lib.ll", `define i32 @helper() {
  ret i32 0
}`)
	require.NoError(t, err)
	p, err := NewPipeline("funclog")
	require.NoError(t, err)

	report, err := p.Run(m)
	require.Error(t, err)
	assert.Equal(t, FatalAbort, report.State)
	pe, ok := errors.AsPassError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorMissingEntry, pe.Code)
	assert.Equal(t, errors.StageSetup, pe.Stage)
}

func TestRunVerificationFailure(t *testing.T) {
	m, err := ir.Parse("spin.ll", `define void @spin() {
entry:
  br label %entry
}

define i32 @main() {
  call void @spin()
  ret i32 0
}`)
	require.NoError(t, err)
	p, err := NewPipeline("funclog")
	require.NoError(t, err)

	report, err := p.Run(m)
	require.Error(t, err)
	assert.Equal(t, FatalAbort, report.State)

	pe, ok := errors.AsPassError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorVerification, pe.Code)
	assert.Contains(t, pe.Notes, "@spin, block %entry: entry block has predecessors")
	assert.Contains(t, pe.Dump, "define void @spin()")
	assert.Contains(t, pe.Dump, "setupLogger:")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "start", Start.String())
	assert.Equal(t, "functions-instrumented", FunctionsInstrumented.String())
	assert.Equal(t, "fatal-abort", FatalAbort.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestRunAlongsideProgramGlobalNamedLine(t *testing.T) {
	m, err := ir.Parse("counter.ll", `@line = dso_local global i32 3, align 4

define dso_local i32 @main() {
  %1 = load i32, ptr @line, align 4
  ret i32 %1
}`)
	require.NoError(t, err)
	p, err := NewPipeline("funclog", "varassign")
	require.NoError(t, err)

	report, err := p.Run(m)
	require.NoError(t, err)
	assert.Equal(t, Done, report.State)

	output := ir.Print(m)
	assert.Contains(t, output, "@line = dso_local global i32 3, align 4\n")
	assert.Contains(t, output, "store i32 0, ptr @line.1, align 4")
	loads := 0
	for _, text := range setup.Traces(m.Function("main")) {
		if strings.HasPrefix(text, "Load ") {
			assert.True(t, strings.HasSuffix(text, " with i32 in @line"), text)
			loads++
		}
	}
	assert.Equal(t, 1, loads)

	reparsed, err := ir.Parse("counter.ll", output)
	require.NoError(t, err, output)
	assert.Empty(t, ir.VerifyModule(reparsed))
}

func TestRunQuotedFunctionNames(t *testing.T) {
	m, err := ir.Parse("quoted.ll", `define i32 @"odd name"(i32 %"the arg") {
  %1 = add i32 %"the arg", 1
  ret i32 %1
}

define i32 @main() {
  %1 = call i32 @"odd name"(i32 1)
  ret i32 %1
}`)
	require.NoError(t, err)
	p, err := NewPipeline("funclog")
	require.NoError(t, err)

	_, err = p.Run(m)
	require.NoError(t, err)

	odd := m.Function("odd name")
	require.NotNil(t, odd)
	assert.Equal(t, []string{
		"Func Entered: odd name",
		"BasicBlock Entry: odd name-00",
		"Func Return: odd name",
	}, setup.Traces(odd))
	assert.Contains(t, setup.Traces(m.Function("main")), "Func Call: odd name")

	output := ir.Print(m)
	assert.Contains(t, output, `define i32 @"odd name"(i32 %"the arg") {`)
	assert.Contains(t, output, "\n\"odd name-00\":\n")
	assert.Contains(t, output, `call i32 @"odd name"(i32 1)`)

	reparsed, err := ir.Parse("quoted.ll", output)
	require.NoError(t, err, output)
	assert.Empty(t, ir.VerifyModule(reparsed))
}
