package grammar

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// IRLexer tokenizes the textual IR. Newlines are significant: every
// instruction, global and declaration occupies one line, apart from the
// continued clauses of invoke and landingpad.
var IRLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		// Quoted block labels look like strings until the colon
		{"Label", `("[^"]*"|[-a-zA-Z$._0-9]+):`, nil},

		// String literals before comments so ';' inside them is not a comment
		{"String", `c?"[^"]*"`, nil},

		// Comments
		{"Comment", `;[^\n]*`, nil},

		// Line structure
		{"EOL", `(\r?\n[ \t]*)+`, nil},
		{"Whitespace", `[ \t]+`, nil},

		// Sigiled names
		{"GlobalIdent", `@([-a-zA-Z$._][-a-zA-Z$._0-9]*|[0-9]+|"[^"]*")`, nil},
		{"LocalIdent", `%([-a-zA-Z$._][-a-zA-Z$._0-9]*|[0-9]+|"[^"]*")`, nil},
		{"MetaIdent", `![-a-zA-Z$._0-9]*`, nil},
		{"AttrGroup", `#[0-9]+`, nil},
		{"DbgRecord", `#dbg_[a-z_]+`, nil},
		{"ComdatIdent", `\$[-a-zA-Z$._0-9]+`, nil},

		// Keywords that need their own token type so greedy attribute
		// lists never swallow them
		{"TypeKw", `\b(void|ptr|half|bfloat|float|double|x86_fp80|fp128|ppc_fp128|label|metadata|token|opaque|x86_amx|i[0-9]+)\b`, nil},
		{"ConstKw", `\b(true|false|null|undef|poison|zeroinitializer|none)\b`, nil},
		{"ConstOp", `\b(getelementptr|bitcast|inttoptr|ptrtoint|addrspacecast|trunc|zext|sext|fptrunc|fpext|fptoui|fptosi|uitofp|sitofp|blockaddress|dso_local_equivalent|no_cfi)\b`, nil},

		// Identifiers and keywords
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_.]*`, nil},

		// Numbers
		{"Float", `-?[0-9]+\.[0-9]+([eE][-+]?[0-9]+)?|0x[0-9A-Fa-f]+`, nil},
		{"Int", `-?[0-9]+`, nil},

		// Punctuation
		{"Ellipsis", `\.\.\.`, nil},
		{"Bracket", `[()\[\]{}<>]`, nil},
		{"Punct", `[=,*:|!]`, nil},
	},
})

