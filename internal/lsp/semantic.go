package lsp

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"gneiss/grammar"
	"gneiss/internal/ir"
	"gneiss/internal/setup"
)

// SemanticToken represents a single LSP semantic token entry
// Line and StartChar are 0-based positions
// TokenType is an index into SemanticTokenTypes
// TokenModifiers is a bitmask based on SemanticTokenModifiers
type SemanticToken struct {
	Line           uint32
	StartChar      uint32
	Length         uint32
	TokenType      int // index into SemanticTokenTypes
	TokenModifiers int // bitmask
}

// tokenKinds maps lexer symbols to semantic token types. Symbols not
// listed (whitespace, line ends, punctuation) produce no token.
var tokenKinds = map[string]string{
	"String":      "string",
	"Comment":     "comment",
	"Label":       "label",
	"GlobalIdent": "variable",
	"LocalIdent":  "variable",
	"MetaIdent":   "macro",
	"AttrGroup":   "macro",
	"DbgRecord":   "macro",
	"ComdatIdent": "macro",
	"TypeKw":      "type",
	"ConstKw":     "keyword",
	"ConstOp":     "keyword",
	"Ident":       "keyword",
	"Float":       "number",
	"Int":         "number",
}

// collectSemanticTokens lexes source and classifies every token. Globals
// naming a function of module become functions; calls into the trace sink
// are tagged so editors can dim instrumentation.
func collectSemanticTokens(source string, module *ir.Module) []SemanticToken {
	var tokens []SemanticToken

	lex, err := grammar.IRLexer.LexString("", source)
	if err != nil {
		return tokens
	}
	// A lexing error still leaves the tokens read so far.
	all, _ := lexer.ConsumeAll(lex)

	names := make(map[lexer.TokenType]string)
	for name, typ := range grammar.IRLexer.Symbols() {
		names[typ] = name
	}

	for _, tok := range all {
		if tok.EOF() {
			break
		}
		symbol := names[tok.Type]
		kind, ok := tokenKinds[symbol]
		if !ok {
			continue
		}

		modifiers := 0
		switch symbol {
		case "GlobalIdent":
			name := ir.UnquoteName(tok.Value[1:])
			if module != nil && module.Function(name) != nil {
				kind = "function"
			}
			if name == setup.HandleName || name == setup.LineName || strings.HasPrefix(name, "logger_") {
				modifiers |= modifierBit("instrumentation")
			}
		case "Label":
			if tok.Value == setup.BlockLabel+":" {
				modifiers |= modifierBit("instrumentation")
			}
			modifiers |= modifierBit("declaration")
		}

		tokens = append(tokens, SemanticToken{
			Line:           uint32(tok.Pos.Line - 1),   // LSP uses 0-based line numbers
			StartChar:      uint32(tok.Pos.Column - 1), // LSP uses 0-based column numbers
			Length:         uint32(len(tok.Value)),
			TokenType:      indexOf(kind, SemanticTokenTypes),
			TokenModifiers: modifiers,
		})
	}

	return tokens
}

// encodeSemanticTokens compresses tokens into the LSP wire format
// (delta-line, delta-start).
func encodeSemanticTokens(tokens []SemanticToken) []uint32 {
	var data []uint32
	var prevLine, prevStart uint32

	for _, token := range tokens {
		deltaLine := token.Line - prevLine
		var deltaStart uint32
		if deltaLine == 0 {
			deltaStart = token.StartChar - prevStart
		} else {
			deltaStart = token.StartChar
		}

		data = append(data, deltaLine, deltaStart, token.Length, uint32(token.TokenType), uint32(token.TokenModifiers))

		prevLine = token.Line
		prevStart = token.StartChar
	}

	return data
}

func modifierBit(name string) int {
	return 1 << indexOf(name, SemanticTokenModifiers)
}

// indexOf returns the index of a string in a slice, or 0 if not found
func indexOf(target string, list []string) int {
	for i, v := range list {
		if v == target {
			return i
		}
	}
	return 0 // Default to first token type if not found
}
