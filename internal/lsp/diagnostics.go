package lsp

import (
	"sort"
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"gneiss/internal/errors"
	"gneiss/internal/inject"
	"gneiss/internal/ir"
	"gneiss/internal/pass"
)

// Analysis is everything the server knows about one document
type Analysis struct {
	Module      *ir.Module
	Diagnostics []protocol.Diagnostic
	// Preview maps pass name to function name to the trace calls the pass
	// would insert.
	Preview map[string]map[string]inject.Stats
	// Functions maps function name to the 0-based line of its header.
	Functions map[string]int
}

// Analyze parses and verifies source, then dry-runs every registered pass
// on a private copy to preview its effect. The returned diagnostics are
// never nil so publishing them clears stale ones.
func Analyze(path, source string) *Analysis {
	a := &Analysis{
		Diagnostics: []protocol.Diagnostic{},
		Preview:     make(map[string]map[string]inject.Stats),
		Functions:   functionLines(source),
	}

	module, err := ir.Parse(path, source)
	if err != nil {
		a.Diagnostics = append(a.Diagnostics, ConvertPassError(errors.ParseFailure(err), a.Functions))
		return a
	}
	a.Module = module

	violations := ir.VerifyModule(module)
	for _, v := range violations {
		a.Diagnostics = append(a.Diagnostics, convertViolation(v, a.Functions))
	}
	if len(violations) > 0 {
		return a
	}

	reported := make(map[string]bool)
	for _, name := range pass.Names() {
		copied, err := ir.Parse(path, source)
		if err != nil {
			continue
		}
		pipeline, err := pass.NewPipeline(name)
		if err != nil {
			continue
		}
		report, err := pipeline.Run(copied)
		if err != nil {
			pe, ok := errors.AsPassError(err)
			if ok && !reported[pe.Code] {
				reported[pe.Code] = true
				d := ConvertPassError(pe, a.Functions)
				d.Severity = ptrSeverity(protocol.DiagnosticSeverityWarning)
				a.Diagnostics = append(a.Diagnostics, d)
			}
			continue
		}
		stats := make(map[string]inject.Stats)
		for _, f := range report.Functions {
			stats[f.Function] = f.Stats
		}
		a.Preview[name] = stats
	}
	return a
}

// FunctionAt returns the function whose header is on line, if any.
func (a *Analysis) FunctionAt(line int) (string, bool) {
	for name, l := range a.Functions {
		if l == line {
			return name, true
		}
	}
	return "", false
}

// PreviewText renders the dry-run counts of fn as markdown.
func (a *Analysis) PreviewText(fn string) string {
	passes := make([]string, 0, len(a.Preview))
	for name := range a.Preview {
		passes = append(passes, name)
	}
	sort.Strings(passes)

	var sb strings.Builder
	sb.WriteString("**@" + fn + "**\n")
	for _, name := range passes {
		stats, ok := a.Preview[name][fn]
		if !ok {
			continue
		}
		sb.WriteString("\n- `" + name + "`: " + stats.String())
	}
	return sb.String()
}

// ConvertPassError transforms a pass error into an LSP diagnostic. Errors
// without a source position are anchored at their function's header, or
// at the top of the document.
func ConvertPassError(pe *errors.PassError, functions map[string]int) protocol.Diagnostic {
	line, column, length := 0, 0, 1
	switch {
	case pe.Position.Line > 0:
		line = pe.Position.Line - 1
		column = max(0, pe.Position.Column-1)
		length = 5
	case pe.Function != "":
		line = functions[pe.Function]
	}

	message := pe.Message
	if pe.Err != nil {
		message += ": " + pe.Err.Error()
	}
	return protocol.Diagnostic{
		Range: protocol.Range{
			Start: protocol.Position{Line: uint32(line), Character: uint32(column)},
			End:   protocol.Position{Line: uint32(line), Character: uint32(column + length)},
		},
		Severity: ptrSeverity(protocol.DiagnosticSeverityError),
		Code:     &protocol.IntegerOrString{Value: pe.Code},
		Source:   ptrString("gneiss-" + string(pe.Stage)),
		Message:  message,
	}
}

func convertViolation(v ir.Violation, functions map[string]int) protocol.Diagnostic {
	line := functions[v.Function]
	return protocol.Diagnostic{
		Range: protocol.Range{
			Start: protocol.Position{Line: uint32(line), Character: 0},
			End:   protocol.Position{Line: uint32(line), Character: 6},
		},
		Severity: ptrSeverity(protocol.DiagnosticSeverityError),
		Code:     &protocol.IntegerOrString{Value: errors.ErrorVerification},
		Source:   ptrString("gneiss-verify"),
		Message:  v.Error(),
	}
}

// functionLines finds the 0-based header line of every define and declare.
func functionLines(source string) map[string]int {
	lines := make(map[string]int)
	for i, text := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(text)
		if !strings.HasPrefix(trimmed, "define ") && !strings.HasPrefix(trimmed, "declare ") {
			continue
		}
		at := strings.Index(trimmed, "@")
		if at < 0 {
			continue
		}
		rest := trimmed[at+1:]
		var name string
		if strings.HasPrefix(rest, `"`) {
			if end := strings.Index(rest[1:], `"`); end >= 0 {
				name = ir.UnquoteName(rest[:end+2])
			}
		} else if end := strings.Index(rest, "("); end >= 0 {
			name = rest[:end]
		}
		if name != "" {
			lines[name] = i
		}
	}
	return lines
}

func ptrSeverity(s protocol.DiagnosticSeverity) *protocol.DiagnosticSeverity {
	return &s
}

func ptrString(s string) *string {
	return &s
}
