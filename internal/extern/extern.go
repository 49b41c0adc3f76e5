// Package extern declares the runtime functions the instrumentation calls
// into, reusing existing declarations when their signature matches.
package extern

import (
	"gneiss/internal/errors"
	"gneiss/internal/ir"
)

// Collaborator is an external function the rewritten module depends on.
type Collaborator struct {
	Name      string
	Signature *ir.FunctionType
}

var (
	InitFileLogger = Collaborator{
		Name:      "logger_initFileLogger",
		Signature: &ir.FunctionType{Ret: ir.I32, Params: []ir.Type{ir.Ptr, ir.I64, ir.I32}},
	}
	SetLevel = Collaborator{
		Name:      "logger_setLevel",
		Signature: &ir.FunctionType{Ret: ir.Void, Params: []ir.Type{ir.I32}},
	}
	Log = Collaborator{
		Name:      "logger_log",
		Signature: &ir.FunctionType{Ret: ir.Void, Params: []ir.Type{ir.I32, ir.Ptr, ir.I32, ir.Ptr}, Variadic: true},
	}
	Snprintf = Collaborator{
		Name:      "snprintf",
		Signature: &ir.FunctionType{Ret: ir.I32, Params: []ir.Type{ir.Ptr, ir.I32, ir.Ptr}, Variadic: true},
	}
	Getpid = Collaborator{
		Name:      "getpid",
		Signature: &ir.FunctionType{Ret: ir.I32},
	}
)

// All lists every collaborator in declaration order.
func All() []Collaborator {
	return []Collaborator{Getpid, Snprintf, InitFileLogger, SetLevel, Log}
}

// Declare returns the module's function for c, adding a declaration when
// none exists. A symbol of that name with any other signature, or a global
// variable of that name, is a setup error.
func Declare(m *ir.Module, c Collaborator) (*ir.Function, error) {
	if v, ok := m.Lookup(c.Name); ok {
		if v.Kind != ir.FunctionValue {
			return nil, errors.SignatureClash(c.Name, c.Signature.String(), "a global variable")
		}
		if got := v.Func.Type(); !ir.TypesEqual(got, c.Signature) {
			return nil, errors.SignatureClash(c.Name, c.Signature.String(), got.String())
		}
		return v.Func, nil
	}

	fn := ir.NewFunction(c.Name, c.Signature.Ret, c.Signature.Params, c.Signature.Variadic)
	fn.Declaration = true
	if err := m.AddFunction(fn); err != nil {
		return nil, errors.NewPassError(errors.StageSetup, errors.ErrorSetup, "cannot declare @%s", c.Name).Wrap(err)
	}
	return fn, nil
}

// Set holds the resolved collaborator functions of one module.
type Set struct {
	Getpid         *ir.Function
	Snprintf       *ir.Function
	InitFileLogger *ir.Function
	SetLevel       *ir.Function
	Log            *ir.Function
}

// DeclareAll resolves every collaborator, stopping at the first clash.
func DeclareAll(m *ir.Module) (*Set, error) {
	set := &Set{}
	targets := []**ir.Function{&set.Getpid, &set.Snprintf, &set.InitFileLogger, &set.SetLevel, &set.Log}
	for i, c := range All() {
		fn, err := Declare(m, c)
		if err != nil {
			return nil, err
		}
		*targets[i] = fn
	}
	return set, nil
}
