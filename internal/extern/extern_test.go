package extern_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gneiss/internal/errors"
	"gneiss/internal/extern"
	"gneiss/internal/ir"
)

func TestDeclareAddsDeclaration(t *testing.T) {
	m := ir.NewModule("t.c")

	fn, err := extern.Declare(m, extern.Log)
	require.NoError(t, err)
	assert.True(t, fn.Declaration)
	assert.Same(t, fn, m.Function("logger_log"))
	assert.Equal(t, "declare void @logger_log(i32, ptr, i32, ptr, ...)\n", ir.PrintFunction(fn))

	again, err := extern.Declare(m, extern.Log)
	require.NoError(t, err)
	assert.Same(t, fn, again)
	assert.Len(t, m.Functions, 1)
}

func TestDeclareReusesMatchingDeclaration(t *testing.T) {
	m, err := ir.Parse("t.ll", `define i32 @main() {
  %1 = call i32 @getpid()
  ret i32 %1
}

declare i32 @getpid()`)
	require.NoError(t, err)

	fn, err := extern.Declare(m, extern.Getpid)
	require.NoError(t, err)
	assert.Same(t, m.Function("getpid"), fn)
	assert.Len(t, m.Functions, 2)
}

func TestDeclareRejectsSignatureClash(t *testing.T) {
	m, err := ir.Parse("t.ll", `declare i64 @getpid(i32)`)
	require.NoError(t, err)

	_, err = extern.Declare(m, extern.Getpid)
	require.Error(t, err)
	pe, ok := errors.AsPassError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorSignatureClash, pe.Code)
	assert.Contains(t, pe.Message, "declared as i64 (i32), expected i32 ()")
}

func TestDeclareRejectsGlobalVariable(t *testing.T) {
	m := ir.NewModule("t.c")
	_, err := m.AddGlobal("snprintf", "global i32 0")
	require.NoError(t, err)

	_, err = extern.Declare(m, extern.Snprintf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a global variable")
}

func TestDeclareAll(t *testing.T) {
	m := ir.NewModule("t.c")
	set, err := extern.DeclareAll(m)
	require.NoError(t, err)

	assert.Equal(t, "getpid", set.Getpid.Name)
	assert.Equal(t, "snprintf", set.Snprintf.Name)
	assert.Equal(t, "logger_initFileLogger", set.InitFileLogger.Name)
	assert.Equal(t, "logger_setLevel", set.SetLevel.Name)
	assert.Equal(t, "logger_log", set.Log.Name)
	assert.Len(t, m.Functions, 5)

	for _, c := range extern.All() {
		assert.Equal(t, c.Signature.String(), m.Function(c.Name).Type().String())
	}
}
