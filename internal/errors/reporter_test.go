package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorReporter(t *testing.T) {
	source := `define i32 @main() {
  %x = add i32 %y, 1
  ret i32 %x
}`

	reporter := NewErrorReporter("test.ll", source)

	err := CompilerError{
		Level:       Error,
		Code:        ErrorUndefinedValue,
		Message:     "use of undefined value %y",
		Position:    Position{Line: 2, Column: 16},
		Length:      2,
		Suggestions: []Suggestion{{Message: "define %y before using it"}},
	}
	formatted := reporter.FormatError(err)

	assert.Contains(t, formatted, "error["+ErrorUndefinedValue+"]")
	assert.Contains(t, formatted, "use of undefined value %y")
	assert.Contains(t, formatted, "test.ll:2:16")
	assert.Contains(t, formatted, "%x = add i32 %y, 1")
	assert.Contains(t, formatted, "define %y before using it")
}

func TestFormatErrorWithoutPosition(t *testing.T) {
	reporter := NewErrorReporter("test.ll", "ret void")
	formatted := reporter.FormatError(MissingEntry("main").CompilerError())

	assert.Contains(t, formatted, "error["+ErrorMissingEntry+"]")
	assert.Contains(t, formatted, "--> test.ll\n")
	assert.NotContains(t, formatted, "ret void")
	assert.Contains(t, formatted, GetErrorDescription(ErrorMissingEntry))
}

func TestErrorMarkerCreation(t *testing.T) {
	reporter := NewErrorReporter("test.ll", "store i32 0, ptr %missing")

	marker := reporter.createMarker(18, 8, Error)

	assert.Equal(t, 17, strings.Count(marker, " "))
	assert.Equal(t, 8, strings.Count(marker, "^"))
}

func TestErrorLevels(t *testing.T) {
	reporter := NewErrorReporter("test.ll", "ret void")
	pos := Position{Line: 1, Column: 1}

	errorFormatted := reporter.FormatError(CompilerError{Level: Error, Message: "test error", Position: pos})
	warningFormatted := reporter.FormatError(CompilerError{Level: Warning, Message: "test warning", Position: pos})

	assert.Contains(t, errorFormatted, "error:")
	assert.Contains(t, warningFormatted, "warning:")
}

func TestErrorCategories(t *testing.T) {
	assert.Equal(t, "Input", GetErrorCategory(ErrorParse))
	assert.Equal(t, "Configuration", GetErrorCategory(ErrorConflictingPasses))
	assert.Equal(t, "Setup", GetErrorCategory(ErrorSignatureClash))
	assert.Equal(t, "Instrumentation", GetErrorCategory(ErrorNoInsertionPoint))
	assert.Equal(t, "Verification", GetErrorCategory(ErrorVerification))
	assert.Equal(t, "Unknown", GetErrorCategory("X0001"))
	assert.Equal(t, "Unknown error code", GetErrorDescription("X0001"))
}

func TestPassErrorMessage(t *testing.T) {
	err := NoInsertionPoint("main", "%main-01")
	assert.Equal(t, "instrument[G0401]: @main: block %main-01 has no terminator", err.Error())

	cause := fmt.Errorf("boom")
	wrapped := NewPassError(StageSetup, ErrorSetup, "cannot declare @getpid").Wrap(cause)
	assert.Equal(t, "setup[G0300]: cannot declare @getpid: boom", wrapped.Error())
	assert.True(t, stderrors.Is(wrapped, cause))
}

func TestAsPassError(t *testing.T) {
	inner := SignatureClash("getpid", "i32 ()", "i64 ()")
	err := fmt.Errorf("running pipeline: %w", inner)

	pe, ok := AsPassError(err)
	require.True(t, ok)
	assert.Equal(t, ErrorSignatureClash, pe.Code)
	assert.Equal(t, StageSetup, pe.Stage)

	_, ok = AsPassError(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestUnknownPassSuggestions(t *testing.T) {
	err := UnknownPass("funclg", []string{"funclog", "varassign"})
	assert.Equal(t, ErrorUnknownPass, err.Code)
	require.Len(t, err.Suggestions, 1)
	assert.Equal(t, "did you mean 'funclog'?", err.Suggestions[0])
	assert.Contains(t, err.Notes[0], "funclog, varassign")

	err = UnknownPass("verydifferent", []string{"funclog", "varassign"})
	assert.Empty(t, err.Suggestions)
}

func TestVerificationFailedCarriesDump(t *testing.T) {
	err := VerificationFailed([]string{"@f, block %a: block has no terminator"}, "define void @f() {\n}\n")
	assert.Equal(t, StageVerify, err.Stage)
	assert.Contains(t, err.Message, "1 violation(s)")
	assert.Equal(t, []string{"@f, block %a: block has no terminator"}, err.Notes)
	assert.Contains(t, err.Dump, "define void @f()")

	ce := err.CompilerError()
	assert.Equal(t, ErrorVerification, ce.Code)
	assert.Len(t, ce.Notes, 1)
}

func TestParseFailureClassifiesLoweringErrors(t *testing.T) {
	err := ParseFailure(fmt.Errorf("@main: 3:5: use of undefined value %%y"))
	assert.Equal(t, ErrorUndefinedValue, err.Code)
	assert.Equal(t, StageParse, err.Stage)

	err = ParseFailure(fmt.Errorf("something else"))
	assert.Equal(t, ErrorParse, err.Code)
}

func TestLevenshteinDistance(t *testing.T) {
	assert.Equal(t, 0, levenshteinDistance("funclog", "funclog"))
	assert.Equal(t, 1, levenshteinDistance("funclog", "funclg"))
	assert.Equal(t, 7, levenshteinDistance("funclog", ""))
	assert.Equal(t, 3, levenshteinDistance("kitten", "sitting"))
}
