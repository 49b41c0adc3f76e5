package grammar

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/fatih/color"
)

var irParser = participle.MustBuild[Module](
	participle.Lexer(IRLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(64),
)

// ParseString parses IR text. The final line does not need a newline.
func ParseString(filename, source string) (*Module, error) {
	if !strings.HasSuffix(source, "\n") {
		source += "\n"
	}
	return irParser.ParseString(filename, source)
}

func ParseFile(path string) (*Module, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return ParseString(path, string(source))
}

// FormatParseError renders a caret-style parse error message.
func FormatParseError(src string, err error) string {
	pe, ok := err.(participle.Error)
	if !ok {
		return color.RedString("Unexpected error: %s", err)
	}

	pos := pe.Position()
	lines := strings.Split(src, "\n")
	if pos.Line <= 0 || pos.Line > len(lines) {
		return color.RedString("Syntax error at unknown location: %s", err)
	}

	line := lines[pos.Line-1]
	col := pos.Column
	if col < 1 {
		col = 1
	}
	caret := strings.Repeat(" ", col-1) + "^"

	var b strings.Builder
	b.WriteString(color.RedString("Syntax error in %s at line %d, column %d:", pos.Filename, pos.Line, pos.Column))
	b.WriteString("\n")
	b.WriteString(line)
	b.WriteString("\n")
	b.WriteString(color.HiRedString(caret))
	b.WriteString("\n")
	fmt.Fprintf(&b, "→ %s\n", pe.Message())
	return b.String()
}
