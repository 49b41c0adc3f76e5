package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
)

// Stage names the pipeline step an error came from
type Stage string

const (
	StageParse      Stage = "parse"
	StageConfig     Stage = "config"
	StageSetup      Stage = "setup"
	StageInstrument Stage = "instrument"
	StageVerify     Stage = "verify"
)

// PassError is a fatal failure of one pipeline stage. Dump carries the
// printed module when verification rejected it.
type PassError struct {
	Stage       Stage
	Code        string
	Message     string
	Function    string
	Position    Position
	Notes       []string
	Suggestions []string
	Dump        string
	Err         error
}

func (e *PassError) Error() string {
	msg := fmt.Sprintf("%s[%s]: %s", e.Stage, e.Code, e.Message)
	if e.Function != "" {
		msg = fmt.Sprintf("%s[%s]: @%s: %s", e.Stage, e.Code, e.Function, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PassError) Unwrap() error {
	return e.Err
}

// NewPassError creates a pass error with a formatted message
func NewPassError(stage Stage, code, format string, args ...interface{}) *PassError {
	return &PassError{Stage: stage, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to the error
func (e *PassError) Wrap(err error) *PassError {
	e.Err = err
	return e
}

// WithFunction records the function being processed
func (e *PassError) WithFunction(name string) *PassError {
	e.Function = name
	return e
}

// WithNote adds a note to the error
func (e *PassError) WithNote(note string) *PassError {
	e.Notes = append(e.Notes, note)
	return e
}

// WithSuggestion adds a suggested fix
func (e *PassError) WithSuggestion(message string) *PassError {
	e.Suggestions = append(e.Suggestions, message)
	return e
}

// WithDump attaches the printed module
func (e *PassError) WithDump(dump string) *PassError {
	e.Dump = dump
	return e
}

// CompilerError converts the pass error into a reportable diagnostic
func (e *PassError) CompilerError() CompilerError {
	message := e.Message
	if e.Function != "" {
		message = fmt.Sprintf("in @%s: %s", e.Function, message)
	}
	ce := CompilerError{
		Level:    Error,
		Code:     e.Code,
		Message:  message,
		Position: e.Position,
		Length:   1,
		Notes:    e.Notes,
		HelpText: GetErrorDescription(e.Code),
	}
	if e.Err != nil {
		ce.Notes = append(append([]string{}, ce.Notes...), "caused by: "+e.Err.Error())
	}
	for _, s := range e.Suggestions {
		ce.Suggestions = append(ce.Suggestions, Suggestion{Message: s})
	}
	return ce
}

// AsPassError finds a PassError in err's chain
func AsPassError(err error) (*PassError, bool) {
	var pe *PassError
	if stderrors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// Common constructors

// ParseFailure converts a grammar or lowering error into a pass error.
// Syntax errors keep their position.
func ParseFailure(err error) *PassError {
	var pe participle.Error
	if stderrors.As(err, &pe) {
		pos := pe.Position()
		e := NewPassError(StageParse, ErrorParse, "%s", pe.Message())
		e.Position = Position{Line: pos.Line, Column: pos.Column}
		return e
	}
	code := ErrorParse
	if strings.Contains(err.Error(), "use of undefined") {
		code = ErrorUndefinedValue
	}
	return NewPassError(StageParse, code, "%s", err.Error())
}

// ReadFailure reports an input file that could not be read
func ReadFailure(path string, err error) *PassError {
	return NewPassError(StageParse, ErrorReadInput, "cannot read %s", path).Wrap(err)
}

// UnknownPass reports a pipeline entry naming no registered pass
func UnknownPass(name string, known []string) *PassError {
	e := NewPassError(StageConfig, ErrorUnknownPass, "unknown pass '%s'", name)
	for _, similar := range findSimilarNames(name, known) {
		e.WithSuggestion(fmt.Sprintf("did you mean '%s'?", similar))
	}
	return e.WithNote("available passes: " + strings.Join(known, ", "))
}

// ConflictingPasses reports a pipeline selecting both profiles
func ConflictingPasses(first, second string) *PassError {
	return NewPassError(StageConfig, ErrorConflictingPasses, "passes '%s' and '%s' cannot run in the same pipeline", first, second).
		WithSuggestion(fmt.Sprintf("run '%s' and '%s' in separate invocations", first, second))
}

// MissingEntry reports a module without a definition of the entry function
func MissingEntry(name string) *PassError {
	return NewPassError(StageSetup, ErrorMissingEntry, "entry function @%s is not defined in this module", name)
}

// SignatureClash reports a collaborator already declared with another type
func SignatureClash(name, want, got string) *PassError {
	return NewPassError(StageSetup, ErrorSignatureClash, "@%s is declared as %s, expected %s", name, got, want)
}

// MissingSinkHandle reports a marked module that lost its sink handle
func MissingSinkHandle(name string) *PassError {
	return NewPassError(StageSetup, ErrorMissingSinkHandle, "module is marked as set up but @%s is missing", name)
}

// NoInsertionPoint reports a block the injector cannot insert into
func NoInsertionPoint(function, block string) *PassError {
	return NewPassError(StageInstrument, ErrorNoInsertionPoint, "block %s has no terminator", block).
		WithFunction(function)
}

// VerificationFailed reports verifier violations with the module dump
func VerificationFailed(violations []string, dump string) *PassError {
	e := NewPassError(StageVerify, ErrorVerification, "module failed verification with %d violation(s)", len(violations))
	for _, v := range violations {
		e.WithNote(v)
	}
	return e.WithDump(dump)
}

func findSimilarNames(target string, candidates []string) []string {
	var similar []string

	for _, candidate := range candidates {
		if levenshteinDistance(target, candidate) <= 2 && len(candidate) > 2 {
			similar = append(similar, candidate)
		}
	}

	return similar
}

// Simple Levenshtein distance implementation for finding similar names
func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
	}

	for i := 0; i <= len(a); i++ {
		matrix[i][0] = i
	}
	for j := 0; j <= len(b); j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}

			matrix[i][j] = min3(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}

	return matrix[len(a)][len(b)]
}

func min3(a, b, c int) int {
	if a < b {
		if a < c {
			return a
		}
		return c
	}
	if b < c {
		return b
	}
	return c
}
