package ir

import (
	"testing"
)

func TestIntTypeString(t *testing.T) {
	testCases := []struct {
		bits     int
		expected string
	}{
		{1, "i1"},
		{8, "i8"},
		{32, "i32"},
		{64, "i64"},
		{128, "i128"},
	}

	for _, tc := range testCases {
		intType := &IntType{Bits: tc.bits}
		result := intType.String()
		if result != tc.expected {
			t.Errorf("IntType{Bits: %d}.String() = %s, expected %s", tc.bits, result, tc.expected)
		}
	}
}

func TestCompositeTypeString(t *testing.T) {
	testCases := []struct {
		name     string
		typ      Type
		expected string
	}{
		{"opaque pointer", Ptr, "ptr"},
		{"typed pointer", &PointerType{Elem: I8}, "i8*"},
		{"void", Void, "void"},
		{"keyword", &KeywordType{Name: "double"}, "double"},
		{"array", &ArrayType{Len: 50, Elem: I8}, "[50 x i8]"},
		{"nested array", &ArrayType{Len: 2, Elem: &ArrayType{Len: 3, Elem: I32}}, "[2 x [3 x i32]]"},
		{"vector", &VectorType{Len: 4, Elem: I32}, "<4 x i32>"},
		{"struct", &StructType{Fields: []Type{I32, Ptr}}, "{ i32, ptr }"},
		{"empty struct", &StructType{}, "{}"},
		{"packed struct", &StructType{Fields: []Type{I8, I32}, Packed: true}, "<{ i8, i32 }>"},
		{"named", &NamedType{Name: "%struct.S"}, "%struct.S"},
		{"function", &FunctionType{Ret: I32, Params: []Type{Ptr, I64, I32}}, "i32 (ptr, i64, i32)"},
		{"variadic function", &FunctionType{Ret: Void, Params: []Type{I32, Ptr, I32, Ptr}, Variadic: true}, "void (i32, ptr, i32, ptr, ...)"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if result := tc.typ.String(); result != tc.expected {
				t.Errorf("String() = %s, expected %s", result, tc.expected)
			}
		})
	}
}

func TestTypesEqual(t *testing.T) {
	if !TypesEqual(&IntType{Bits: 32}, I32) {
		t.Error("i32 should equal i32")
	}
	if TypesEqual(I32, I64) {
		t.Error("i32 should not equal i64")
	}
	a := &FunctionType{Ret: I32, Params: []Type{Ptr}, Variadic: true}
	b := &FunctionType{Ret: I32, Params: []Type{Ptr}}
	if TypesEqual(a, b) {
		t.Error("variadic and fixed signatures should differ")
	}
	if !TypesEqual(nil, nil) || TypesEqual(nil, I32) {
		t.Error("nil handling is wrong")
	}
}
