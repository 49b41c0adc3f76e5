package ir

import (
	"fmt"
	"strings"
)

// Type represents an IR type. String returns the canonical spelling used in
// .ll text.
type Type interface {
	String() string
}

// IntType represents an integer type of arbitrary width (i1, i8, i32, ...)
type IntType struct {
	Bits int
}

// PointerType represents a pointer. Elem is nil for the opaque `ptr`.
type PointerType struct {
	Elem Type
}

type VoidType struct{}

// KeywordType covers types spelled by a single keyword that the engine
// never inspects: float, double, label, metadata, token and friends.
type KeywordType struct {
	Name string
}

type ArrayType struct {
	Len  int
	Elem Type
}

type VectorType struct {
	Len  int
	Elem Type
}

type StructType struct {
	Fields []Type
	Packed bool
}

// NamedType refers to a type defined at module level (%struct.S).
type NamedType struct {
	Name string
}

type FunctionType struct {
	Ret      Type
	Params   []Type
	Variadic bool
}

var (
	Void     Type = &VoidType{}
	I1       Type = &IntType{Bits: 1}
	I8       Type = &IntType{Bits: 8}
	I32      Type = &IntType{Bits: 32}
	I64      Type = &IntType{Bits: 64}
	Ptr      Type = &PointerType{}
	Metadata Type = &KeywordType{Name: "metadata"}
	Label    Type = &KeywordType{Name: "label"}
)

func (i *IntType) String() string     { return fmt.Sprintf("i%d", i.Bits) }
func (v *VoidType) String() string    { return "void" }
func (k *KeywordType) String() string { return k.Name }
func (n *NamedType) String() string   { return n.Name }
func (a *ArrayType) String() string   { return fmt.Sprintf("[%d x %s]", a.Len, a.Elem) }
func (v *VectorType) String() string  { return fmt.Sprintf("<%d x %s>", v.Len, v.Elem) }

func (p *PointerType) String() string {
	if p.Elem == nil {
		return "ptr"
	}
	return p.Elem.String() + "*"
}

func (s *StructType) String() string {
	fields := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		fields[i] = f.String()
	}
	body := "{}"
	if len(fields) > 0 {
		body = "{ " + strings.Join(fields, ", ") + " }"
	}
	if s.Packed {
		return "<" + body + ">"
	}
	return body
}

func (f *FunctionType) String() string {
	params := make([]string, 0, len(f.Params)+1)
	for _, p := range f.Params {
		params = append(params, p.String())
	}
	if f.Variadic {
		params = append(params, "...")
	}
	return fmt.Sprintf("%s (%s)", f.Ret, strings.Join(params, ", "))
}

// TypesEqual compares two types structurally.
func TypesEqual(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String()
}

// IsVoid reports whether t is the void type.
func IsVoid(t Type) bool {
	_, ok := t.(*VoidType)
	return ok
}
