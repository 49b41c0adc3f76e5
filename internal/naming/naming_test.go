package naming_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gneiss/internal/ir"
	"gneiss/internal/naming"
)

func parseFixture(t *testing.T, name string) *ir.Module {
	t.Helper()
	source, err := os.ReadFile("../../testdata/" + name)
	require.NoError(t, err)
	m, err := ir.Parse(name, string(source))
	require.NoError(t, err)
	return m
}

func TestNameOf(t *testing.T) {
	m := parseFixture(t, "funcptr.ll")
	mainFn := m.Function("main")
	entry := mainFn.EntryBlock()

	load := mainFn.Instr(entry.Instrs[2]).(*ir.LoadInstruction)
	assert.Equal(t, "operation", naming.NameOf(load.Result))
	assert.Equal(t, "add", naming.NameOf(m.Function("add").Value))
	assert.Equal(t, "42", naming.NameOf(ir.IntConst(ir.I32, 42)))

	hello := parseFixture(t, "hello.ll")
	add := hello.Function("add")
	assert.Equal(t, "%0", naming.NameOf(add.Params[0].Value))
	assert.Equal(t, "%0", naming.NameOf(add.Params[0].Value), "placeholder must be stable")
}

func TestOperandText(t *testing.T) {
	m := parseFixture(t, "funcptr.ll")
	mainFn := m.Function("main")
	store := mainFn.Instr(mainFn.EntryBlock().Instrs[1]).(*ir.StoreInstruction)

	assert.Equal(t, "@add", naming.OperandText(store.Value.Value))
	assert.Equal(t, "%operation.addr", naming.OperandText(store.Address.Value))
	assert.Equal(t, "<null>", naming.OperandText(nil))
}

func TestTypeText(t *testing.T) {
	assert.Equal(t, "i32", naming.TypeText(ir.I32))
	assert.Equal(t, "ptr", naming.TypeText(ir.Ptr))
	assert.Equal(t, "[50 x i8]", naming.TypeText(&ir.ArrayType{Len: 50, Elem: ir.I8}))
}

func TestSyntheticBlockName(t *testing.T) {
	assert.Equal(t, "main-00", naming.SyntheticBlockName("main", 0))
	assert.Equal(t, "main-07", naming.SyntheticBlockName("main", 7))
	assert.Equal(t, "main-123", naming.SyntheticBlockName("main", 123))
}

func TestNameBlocks(t *testing.T) {
	m := parseFixture(t, "hello.ll")
	mainFn := m.Function("main")

	assert.Equal(t, 3, naming.NameBlocks(mainFn, nil))
	assert.Equal(t, "main-00", mainFn.Blocks[0].Label)
	assert.Equal(t, "main-01", mainFn.Blocks[1].Label)
	assert.Equal(t, "main-02", mainFn.Blocks[2].Label)

	assert.Equal(t, 0, naming.NameBlocks(mainFn, nil), "naming twice must not rename")
	assert.Equal(t, "main-01", naming.BlockName(mainFn.Blocks[1]))
	assert.Empty(t, ir.VerifyFunction(mainFn))
}

func TestNameBlocksSkipsAndKeepsLabels(t *testing.T) {
	m, err := ir.Parse("mixed.ll", `define void @f(i1 %c) {
  br i1 %c, label %named, label %1

named:
  br label %1

1:
  ret void
}`)
	require.NoError(t, err)
	fn := m.Function("f")

	assert.Equal(t, 1, naming.NameBlocks(fn, fn.Blocks[0]))
	assert.Equal(t, "", fn.Blocks[0].Label)
	assert.Equal(t, "named", fn.Blocks[1].Label)
	assert.Equal(t, "f-00", fn.Blocks[2].Label)
}

func TestNameBlocksAvoidsTakenNames(t *testing.T) {
	m := ir.NewModule("taken.c")
	fn := ir.NewFunction("g", ir.Void, nil, false)
	require.NoError(t, m.AddFunction(fn))
	entry := fn.AddBlock("")
	taken := fn.AddBlock("g-00")
	ir.NewBuilder(entry).CreateBr(taken)
	fn.SetTerminator(taken, &ir.ReturnTerminator{})

	naming.NameBlocks(fn, nil)
	assert.Equal(t, "g-001", fn.Blocks[0].Label)
}

func TestEscapePercent(t *testing.T) {
	assert.Equal(t, "100%% done", naming.EscapePercent("100% done"))
	assert.Equal(t, "%%%%", naming.EscapePercent("%%"))
	assert.Equal(t, "plain", naming.EscapePercent("plain"))
}
