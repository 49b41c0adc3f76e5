package naming

import (
	"strings"
)

// Message is the content of one trace record: a printf format whose
// static text is already escaped, and the dynamic strings substituted for
// its %s verbs. Names never appear in the format, so a '%' inside a name
// is printed verbatim.
type Message struct {
	Format string
	Args   []string
}

func newMessage(static string, args ...string) Message {
	return Message{Format: EscapePercent(static) + "%s", Args: args}
}

// Text renders the message the way the logging runtime will print it.
func (m Message) Text() string {
	var b strings.Builder
	next := 0
	for i := 0; i < len(m.Format); i++ {
		c := m.Format[i]
		if c != '%' || i+1 >= len(m.Format) {
			b.WriteByte(c)
			continue
		}
		i++
		switch m.Format[i] {
		case '%':
			b.WriteByte('%')
		case 's':
			if next < len(m.Args) {
				b.WriteString(m.Args[next])
			}
			next++
		default:
			b.WriteByte('%')
			b.WriteByte(m.Format[i])
		}
	}
	return b.String()
}

func (m Message) String() string {
	return m.Text()
}

// FuncEntered marks the start of a function body.
func FuncEntered(fn string) Message {
	return newMessage("Func Entered: ", fn)
}

// FuncReturn marks a return from fn.
func FuncReturn(fn string) Message {
	return newMessage("Func Return: ", fn)
}

// FuncCall marks a direct call.
func FuncCall(callee string) Message {
	return newMessage("Func Call: ", callee)
}

// IndirectCall marks a call through a pointer. The operand is rendered
// after a single '%' whether or not its placeholder already carries one.
func IndirectCall(operand string) Message {
	return newMessage("Func Call: Indirect Call to -> %", strings.TrimPrefix(operand, "%"))
}

// ProgramExit marks a call to exit made by caller.
func ProgramExit(caller string) Message {
	return newMessage("Program Exit: ", caller)
}

// ProgramAbort marks a call to abort made by caller.
func ProgramAbort(caller string) Message {
	return newMessage("Program Abort: ", caller)
}

// FuncAssignment marks a store of a function address.
func FuncAssignment(fn string) Message {
	return newMessage("Func Assignment: ", fn)
}

// BlockEntry marks the start of a basic block.
func BlockEntry(block string) Message {
	return newMessage("BasicBlock Entry: ", block)
}

// Load describes a load of typ from src into dest.
func Load(dest, typ, src string) Message {
	return Message{Format: "Load %s with %s in %s", Args: []string{dest, typ, src}}
}

// Store describes a store of value of type typ to dest.
func Store(value, typ, dest string) Message {
	return Message{Format: "Store %s with %s in %s", Args: []string{value, typ, dest}}
}
