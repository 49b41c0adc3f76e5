package grammar

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

var (
	symbols       = IRLexer.Symbols()
	whitespaceTok = symbols["Whitespace"]
	commentTok    = symbols["Comment"]
	eolTok        = symbols["EOL"]
)

// JoinTokens rebuilds source text from tokens. Significant tokens are kept
// as written; any gap in the source becomes a single space.
func JoinTokens(tokens []lexer.Token) string {
	var b strings.Builder
	prevEnd := -1
	for _, tok := range tokens {
		switch tok.Type {
		case whitespaceTok, commentTok, eolTok:
			continue
		}
		if prevEnd >= 0 && tok.Pos.Offset > prevEnd {
			b.WriteByte(' ')
		}
		b.WriteString(tok.Value)
		prevEnd = tok.Pos.Offset + len(tok.Value)
	}
	return b.String()
}

// Text returns the span as it appeared in the source.
func (s *Span) Text() string {
	if s == nil {
		return ""
	}
	if len(s.Tokens) > 0 {
		return JoinTokens(s.Tokens)
	}
	return strings.Join(s.Parts, " ")
}

func (r *RawLine) Text() string {
	return r.Head + " " + r.Body.Text()
}

func (h *HeaderTail) Text() string {
	if h == nil {
		return ""
	}
	if len(h.Tokens) > 0 {
		return JoinTokens(h.Tokens)
	}
	return strings.Join(h.Parts, " ")
}

func (a *Attr) Text() string {
	if len(a.Tokens) > 0 {
		return JoinTokens(a.Tokens)
	}
	if a.Align != nil {
		return "align " + *a.Align
	}
	if len(a.Args) > 0 {
		return a.Name + "(" + joinBalanced(a.Args) + ")"
	}
	return a.Name
}

func (v *Value) Text() string {
	if len(v.Tokens) > 0 {
		return JoinTokens(v.Tokens)
	}
	switch {
	case v.Local != nil:
		return *v.Local
	case v.Global != nil:
		return *v.Global
	case v.Const != nil:
		return *v.Const
	}
	return ""
}

func joinBalanced(items []*Balanced) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		if it.Token != nil {
			parts = append(parts, *it.Token)
			continue
		}
		parts = append(parts, "("+joinBalanced(it.Group)+")")
	}
	return strings.Join(parts, " ")
}

// Unquote strips the quotes from a string token, keeping escapes as
// written.
func Unquote(s string) string {
	s = strings.TrimPrefix(s, "c")
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// BlockLabel returns a label token without its colon.
func BlockLabel(s string) string {
	return strings.TrimSuffix(s, ":")
}
