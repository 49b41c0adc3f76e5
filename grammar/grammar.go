package grammar

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// Module is a whole .ll file: a sequence of top-level entities, one per line
// except for function definitions which span their body.
type Module struct {
	Pos      lexer.Position
	Entities []*Entity `EOL* @@*`
}

type Entity struct {
	Pos            lexer.Position
	SourceFilename *string      `  "source_filename" "=" @String EOL+`
	Global         *GlobalDef   `| @@`
	Declare        *Declare     `| @@`
	Define         *Define      `| @@`
	Metadata       *MetadataDef `| @@`
	Raw            *RawLine     `| @@`
}

// GlobalDef is any `@name = ...` line. The body is kept verbatim.
type GlobalDef struct {
	Pos  lexer.Position
	Name string `@GlobalIdent "="`
	Body *Span  `@@ EOL+`
}

type MetadataDef struct {
	Pos  lexer.Position
	Name string `@MetaIdent "="`
	Body *Span  `@@ EOL+`
}

// RawLine covers header lines the engine does not interpret: target
// triple, type definitions, attribute groups, comdats.
type RawLine struct {
	Pos  lexer.Position
	Head string `@( "target" | "attributes" | "module" | "uselistorder" | "uselistorder_bb" | LocalIdent | ComdatIdent )`
	Body *Span  `@@ EOL+`
}

type Declare struct {
	Pos    lexer.Position
	Header *FuncHeader `"declare" @@ EOL+`
}

type Define struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Header *FuncHeader     `"define" @@ "{" EOL+`
	Entry  []*Instruction  `@@*`
	Blocks []*LabeledBlock `@@*`
	Close  string          `"}" EOL+`
}

type FuncHeader struct {
	Pos    lexer.Position
	Pre    []string    `@Ident*`
	Ret    *Type       `@@`
	Name   string      `@GlobalIdent`
	Params []*Param    `"(" [ @@ { "," @@ } ] ")"`
	Post   *HeaderTail `@@?`
}

// HeaderTail is everything between the parameter list and the body brace:
// unnamed_addr, attribute groups, section, personality and so on.
type HeaderTail struct {
	Tokens []lexer.Token
	Parts  []string `@(Ident | TypeKw | ConstKw | ConstOp | Int | Float | String | GlobalIdent | LocalIdent | MetaIdent | AttrGroup | ComdatIdent | Punct)+`
}

type Param struct {
	Variadic bool    `  @"..."`
	Type     *Type   `| @@`
	Attrs    []*Attr `  @@*`
	Name     *string `  @LocalIdent?`
}

// Attr is a parameter or return attribute such as noundef, align 4 or
// dereferenceable(8).
type Attr struct {
	Tokens []lexer.Token
	Align  *string     `  "align" @Int`
	Name   string      `| @Ident`
	Args   []*Balanced `  [ "(" @@* ")" ]`
}

type Type struct {
	Pos      lexer.Position
	Base     *BaseType     `@@`
	Suffixes []*TypeSuffix `@@*`
}

type BaseType struct {
	Keyword *string           `  @TypeKw`
	Named   *string           `| @LocalIdent`
	Array   *ArrayType        `| @@`
	Vector  *VectorType       `| @@`
	Packed  *PackedStructType `| @@`
	Struct  *StructType       `| @@`
}

type ArrayType struct {
	Len  string `"[" @Int "x"`
	Elem *Type  `@@ "]"`
}

type VectorType struct {
	Len  string `"<" @Int "x"`
	Elem *Type  `@@ ">"`
}

type StructType struct {
	Fields []*Type `"{" [ @@ { "," @@ } ] "}"`
}

type PackedStructType struct {
	Fields []*Type `"<" "{" [ @@ { "," @@ } ] "}" ">"`
}

type TypeSuffix struct {
	Pointer bool            `  @"*"`
	Func    *FuncTypeParams `| @@`
}

type FuncTypeParams struct {
	Params   []*Type `"(" [ @@ { "," @@ } ]`
	Variadic bool    `[ [ "," ] @"..." ] ")"`
}

type LabeledBlock struct {
	Pos    lexer.Position
	Label  string         `@Label EOL+`
	Instrs []*Instruction `@@*`
}

type Instruction struct {
	Pos    lexer.Position
	Result *string  `[ @LocalIdent "=" ]`
	Phi    *Phi     `( @@`
	Call   *Call    `| @@`
	Load   *Load    `| @@`
	Store  *Store   `| @@`
	Ret    *Ret     `| @@`
	Br     *Br      `| @@`
	Switch *Switch  `| @@`
	Opaque *Opaque  `| @@ )`
	Attach []*Span  `{ "," @@ } EOL+`
}

type Phi struct {
	Flags    []string    `"phi" @Ident*`
	Type     *Type       `@@`
	Incoming []*Incoming `@@ { "," @@ }`
}

type Incoming struct {
	Value *Value `"[" @@`
	Block string `"," @LocalIdent "]"`
}

type Call struct {
	Tail   *string       `@( "tail" | "musttail" | "notail" )? "call"`
	Flags  []string      `@Ident*`
	Type   *Type         `@@`
	Callee *Value        `@@`
	Args   []*TypedValue `"(" [ @@ { "," @@ } ] ")"`
	Attrs  []string      `@AttrGroup*`
}

type Load struct {
	Volatile bool        `"load" @"volatile"?`
	Type     *Type       `@@ ","`
	Address  *TypedValue `@@`
}

type Store struct {
	Volatile bool        `"store" @"volatile"?`
	Value    *TypedValue `@@ ","`
	Address  *TypedValue `@@`
}

type Ret struct {
	Void  bool        `"ret" ( @"void"`
	Value *TypedValue `| @@ )`
}

type Br struct {
	Dest  *string     `"br" ( "label" @LocalIdent`
	Cond  *TypedValue `| @@`
	True  string      `  "," "label" @LocalIdent`
	False string      `  "," "label" @LocalIdent )`
}

type Switch struct {
	Cond    *TypedValue   `"switch" @@`
	Default string        `"," "label" @LocalIdent "[" EOL*`
	Cases   []*SwitchCase `@@* "]"`
}

type SwitchCase struct {
	Value *TypedValue `@@`
	Dest  string      `"," "label" @LocalIdent EOL*`
}

// Opaque is any instruction the engine does not need to understand. Its
// operands are kept token by token; local names and label references are
// picked out so they can be renumbered and checked.
type Opaque struct {
	Opcode   string           `@( Ident | ConstOp | DbgRecord )`
	Operands []*OpaqueOperand `@@*`
}

// OpaqueOperand is one operand token of an Opaque instruction. The clauses
// of invoke and landingpad may start on a line of their own, so a line
// break before one of them continues the instruction.
type OpaqueOperand struct {
	Tokens    []lexer.Token
	Label     *string `  "label" @LocalIdent`
	Local     *string `| @LocalIdent`
	Continued *string `| EOL @( "to" | "unwind" | "cleanup" | "catch" | "filter" )`
	Other     *string `| @( Ident | TypeKw | ConstKw | ConstOp | Int | Float | String | GlobalIdent | MetaIdent | AttrGroup | DbgRecord | ComdatIdent | Label | Ellipsis | Punct | Bracket )`
}

type TypedValue struct {
	Pos   lexer.Position
	Type  *Type   `@@`
	Attrs []*Attr `@@*`
	Value *Value  `@@`
}

type Value struct {
	Tokens    []lexer.Token
	Local     *string     `  @LocalIdent`
	Global    *string     `| @GlobalIdent`
	Const     *string     `| @( Int | Float | ConstKw | String )`
	Expr      *ConstExpr  `| @@`
	Meta      *MetaValue  `| @@`
	Aggregate *Aggregate  `| @@`
	Typed     *TypedValue `| @@`
}

type ConstExpr struct {
	Op    string      `@ConstOp`
	Flags []string    `@Ident*`
	Body  []*Balanced `"(" @@* ")"`
}

type MetaValue struct {
	Name string      `@MetaIdent`
	Str  *string     `[ @String`
	Args []*Balanced `  | ( "(" | "{" ) @@* ( ")" | "}" ) ]`
}

type Aggregate struct {
	Items []*Balanced `( "{" | "[" | "<" ) @@* ( "}" | "]" | ">" )`
}

// Balanced is a token or a bracketed group of tokens.
type Balanced struct {
	Token *string     `  @( Ident | TypeKw | ConstKw | ConstOp | Int | Float | String | GlobalIdent | LocalIdent | MetaIdent | AttrGroup | DbgRecord | ComdatIdent | Label | Ellipsis | Punct )`
	Group []*Balanced `| ( "(" | "[" | "{" | "<" ) @@* ( ")" | "]" | "}" | ">" )`
}

// Span is a verbatim run of tokens up to the end of the line.
type Span struct {
	Tokens []lexer.Token
	Parts  []string `@( Ident | TypeKw | ConstKw | ConstOp | Int | Float | String | GlobalIdent | LocalIdent | MetaIdent | AttrGroup | DbgRecord | ComdatIdent | Label | Ellipsis | Punct | Bracket )+`
}
