// Package repl is an interactive shell for loading a module, running passes
// on it and inspecting the result.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"gneiss/internal/classify"
	"gneiss/internal/errors"
	"gneiss/internal/ir"
	"gneiss/internal/pass"
	"gneiss/internal/setup"
)

const PROMPT = ">> "

const help = `commands:
  :load <file.ll>     parse a module
  :pass <name>        run funclog or varassign on the loaded module
  :verify             run the verifier
  :print [fn]         print the module or one function
  :calls <fn>         classify the call sites of a function
  :traces <fn>        list the trace messages of a function
  :write <file.ll>    write the module
  :help               show this text
  :quit               leave
`

// Session holds the module being worked on
type Session struct {
	out    io.Writer
	path   string
	source string
	module *ir.Module
}

// NewSession creates a session writing its output to out
func NewSession(out io.Writer) *Session {
	return &Session{out: out}
}

// Start runs the shell on standard output until in is exhausted or :quit.
func Start(in io.Reader) {
	Run(in, os.Stdout)
}

// Run reads commands from in until EOF or :quit.
func Run(in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	session := NewSession(out)

	for {
		fmt.Fprint(out, PROMPT)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == ":quit" || line == ":q" {
			return
		}
		if err := session.Execute(line); err != nil {
			session.report(err)
		}
	}
}

// Execute runs one command line
func (s *Session) Execute(line string) error {
	fields := strings.Fields(line)
	command, args := fields[0], fields[1:]

	switch command {
	case ":help", ":h":
		fmt.Fprint(s.out, help)
		return nil
	case ":load":
		if len(args) != 1 {
			return fmt.Errorf("usage: :load <file.ll>")
		}
		return s.load(args[0])
	}

	if s.module == nil {
		return fmt.Errorf("no module loaded, use :load <file.ll>")
	}

	switch command {
	case ":pass":
		if len(args) == 0 {
			return fmt.Errorf("usage: :pass <%s>", strings.Join(pass.Names(), "|"))
		}
		pipeline, err := pass.NewPipeline(args...)
		if err != nil {
			return err
		}
		report, err := pipeline.Run(s.module)
		if err != nil {
			return err
		}
		fmt.Fprint(s.out, report.String())

	case ":verify":
		violations := ir.VerifyModule(s.module)
		if len(violations) == 0 {
			color.New(color.FgGreen).Fprintln(s.out, "module is well formed")
			return nil
		}
		for _, v := range violations {
			fmt.Fprintln(s.out, v.Error())
		}

	case ":print":
		if len(args) == 0 {
			fmt.Fprint(s.out, ir.Print(s.module))
			return nil
		}
		fn, err := s.function(args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(s.out, ir.PrintFunction(fn))

	case ":calls":
		fn, err := s.function(argOrEmpty(args))
		if err != nil {
			return err
		}
		for _, b := range fn.Blocks {
			for _, id := range b.Instrs {
				call, ok := fn.Instr(id).(*ir.CallInstruction)
				if !ok {
					continue
				}
				if _, isTrace := setup.TraceMessage(s.module, call); isTrace {
					continue
				}
				target := classify.Classify(call)
				fmt.Fprintf(s.out, "%-8s %s\n", target.Kind, target.Message(fn.Name).Text())
			}
		}

	case ":traces":
		fn, err := s.function(argOrEmpty(args))
		if err != nil {
			return err
		}
		for _, text := range setup.Traces(fn) {
			fmt.Fprintln(s.out, text)
		}

	case ":write":
		if len(args) != 1 {
			return fmt.Errorf("usage: :write <file.ll>")
		}
		if err := os.WriteFile(args[0], []byte(ir.Print(s.module)), 0o644); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "wrote %s\n", args[0])

	default:
		return fmt.Errorf("unknown command %s, try :help", command)
	}
	return nil
}

func (s *Session) load(path string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return errors.ReadFailure(path, err)
	}
	module, err := ir.Parse(path, string(source))
	if err != nil {
		s.path, s.source = path, string(source)
		return errors.ParseFailure(err)
	}
	s.path, s.source, s.module = path, string(source), module
	fmt.Fprintf(s.out, "loaded %s: %d function(s)\n", path, len(module.Functions))
	return nil
}

func (s *Session) function(name string) (*ir.Function, error) {
	name = strings.TrimPrefix(name, "@")
	if name == "" {
		return nil, fmt.Errorf("missing function name")
	}
	fn := s.module.Function(name)
	if fn == nil {
		return nil, fmt.Errorf("no function @%s", name)
	}
	return fn, nil
}

func (s *Session) report(err error) {
	pe, ok := errors.AsPassError(err)
	if !ok {
		color.New(color.FgRed).Fprintf(s.out, "error: %s\n", err)
		return
	}
	reporter := errors.NewErrorReporter(s.path, s.source)
	fmt.Fprint(s.out, reporter.FormatError(pe.CompilerError()))
}

func argOrEmpty(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
