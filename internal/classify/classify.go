// Package classify decides what kind of target a call site transfers
// control to.
package classify

import (
	"gneiss/internal/ir"
	"gneiss/internal/naming"
)

// Kind is the category of a call target
type Kind int

const (
	Direct Kind = iota
	Indirect
	Exit
	Abort
)

func (k Kind) String() string {
	switch k {
	case Direct:
		return "direct"
	case Indirect:
		return "indirect"
	case Exit:
		return "exit"
	case Abort:
		return "abort"
	}
	return "unknown"
}

// Target describes a classified call. Name is the callee's name for
// direct calls and the operand's name or placeholder for indirect ones.
type Target struct {
	Kind   Kind
	Name   string
	Callee *ir.Function // nil for indirect calls
}

// Classify inspects the callee operand of call. Only the exact names exit
// and abort terminate the process; attributes are not consulted.
func Classify(call *ir.CallInstruction) Target {
	fn := call.CalledFunction()
	if fn == nil {
		return Target{Kind: Indirect, Name: naming.NameOf(call.Callee)}
	}
	switch fn.Name {
	case "exit":
		return Target{Kind: Exit, Name: fn.Name, Callee: fn}
	case "abort":
		return Target{Kind: Abort, Name: fn.Name, Callee: fn}
	}
	return Target{Kind: Direct, Name: fn.Name, Callee: fn}
}

// Message returns the trace message for a call of this target made from
// the function named caller.
func (t Target) Message(caller string) naming.Message {
	switch t.Kind {
	case Indirect:
		return naming.IndirectCall(t.Name)
	case Exit:
		return naming.ProgramExit(caller)
	case Abort:
		return naming.ProgramAbort(caller)
	}
	return naming.FuncCall(t.Name)
}
