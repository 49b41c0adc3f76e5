// Package pass holds the named instrumentation passes and the driver that
// runs them over a module: setup, per-function injection, verification.
package pass

import (
	"sort"

	"gneiss/internal/errors"
	"gneiss/internal/inject"
	"gneiss/internal/ir"
	"gneiss/internal/setup"
)

// Pass is one instrumentation transformation
type Pass interface {
	Name() string
	Description() string
	// Marker is the named metadata recording that the pass already ran.
	Marker() string
	Apply(sink *setup.Sink, fn *ir.Function) (inject.Stats, error)
}

// FunctionLogging traces control flow: function entry and return, call
// sites, function pointer assignments and block entries.
type FunctionLogging struct{}

func (FunctionLogging) Name() string {
	return "funclog"
}

func (FunctionLogging) Description() string {
	return "Traces function entry and exit, calls, function pointer assignments and basic block entries"
}

func (FunctionLogging) Marker() string {
	return "!gneiss.funclog"
}

func (FunctionLogging) Apply(sink *setup.Sink, fn *ir.Function) (inject.Stats, error) {
	return inject.Function(sink, fn, inject.ControlFlow)
}

// VariableAssignment traces every load and store.
type VariableAssignment struct{}

func (VariableAssignment) Name() string {
	return "varassign"
}

func (VariableAssignment) Description() string {
	return "Traces every load and store with its value, type and address"
}

func (VariableAssignment) Marker() string {
	return "!gneiss.varassign"
}

func (VariableAssignment) Apply(sink *setup.Sink, fn *ir.Function) (inject.Stats, error) {
	return inject.Function(sink, fn, inject.DataFlow)
}

var registry = map[string]Pass{
	"funclog":   FunctionLogging{},
	"varassign": VariableAssignment{},
}

// Names lists the registered pass names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the pass registered under name
func Lookup(name string) (Pass, error) {
	p, ok := registry[name]
	if !ok {
		return nil, errors.UnknownPass(name, Names())
	}
	return p, nil
}
