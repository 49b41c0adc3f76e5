package ir

import (
	"os"
	"strings"
	"testing"
)

func parseFixture(t *testing.T, name string) *Module {
	t.Helper()
	source, err := os.ReadFile("../../testdata/" + name)
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	m, err := Parse(name, string(source))
	if err != nil {
		t.Fatalf("parse %s: %v", name, err)
	}
	return m
}

func TestNewPrinter(t *testing.T) {
	printer := NewPrinter()

	if printer == nil {
		t.Fatal("NewPrinter should not return nil")
	}

	if printer.indent != 0 {
		t.Errorf("NewPrinter should have indent 0, got %d", printer.indent)
	}

	if printer.output.Len() != 0 {
		t.Error("NewPrinter should have empty output buffer")
	}
}

func TestPrintFunctionRoundTrip(t *testing.T) {
	m := parseFixture(t, "hello.ll")

	expected := `define dso_local i32 @add(i32 noundef %0, i32 noundef %1) #0 {
  %3 = alloca i32, align 4
  %4 = alloca i32, align 4
  store i32 %0, ptr %3, align 4
  store i32 %1, ptr %4, align 4
  %5 = load i32, ptr %3, align 4
  %6 = load i32, ptr %4, align 4
  %7 = add nsw i32 %5, %6
  ret i32 %7
}
`
	if got := PrintFunction(m.Function("add")); got != expected {
		t.Errorf("PrintFunction mismatch:\n%s\nexpected:\n%s", got, expected)
	}

	expectedMain := `define dso_local i32 @main() #0 {
  %1 = alloca i32, align 4
  %2 = alloca i32, align 4
  store i32 0, ptr %1, align 4
  %3 = call i32 @add(i32 noundef 3, i32 noundef 4)
  store i32 %3, ptr %2, align 4
  %4 = load i32, ptr %2, align 4
  %5 = icmp sgt i32 %4, 4
  br i1 %5, label %6, label %9

6:
  %7 = load i32, ptr %2, align 4
  %8 = call i32 (ptr, ...) @printf(ptr noundef @.str, i32 noundef %7)
  br label %9

9:
  ret i32 0
}
`
	if got := PrintFunction(m.Function("main")); got != expectedMain {
		t.Errorf("PrintFunction mismatch:\n%s\nexpected:\n%s", got, expectedMain)
	}
}

func TestPrintModuleSections(t *testing.T) {
	m := parseFixture(t, "hello.ll")
	output := Print(m)

	expectedLines := []string{
		`source_filename = "hello.c"`,
		`target triple = "x86_64-pc-linux-gnu"`,
		`@.str = private unnamed_addr constant [12 x i8] c"hello %d%%\0A\00", align 1`,
		`declare i32 @printf(ptr noundef, ...) #1`,
		`attributes #1 = { "frame-pointer"="all" }`,
		`!llvm.module.flags = !{!0, !1}`,
		`!0 = !{i32 1, !"wchar_size", i32 4}`,
	}
	for _, line := range expectedLines {
		if !strings.Contains(output, line+"\n") {
			t.Errorf("output should contain %q\n%s", line, output)
		}
	}

	if strings.Index(output, "@.str =") > strings.Index(output, "define") {
		t.Error("globals should be printed before functions")
	}
	if strings.Index(output, "attributes #0") < strings.Index(output, "declare") {
		t.Error("attribute groups should follow the functions")
	}
}

func TestPrintIsStable(t *testing.T) {
	for _, fixture := range []string{"hello.ll", "funcptr.ll", "exit.ll", "loop.ll"} {
		t.Run(fixture, func(t *testing.T) {
			first := Print(parseFixture(t, fixture))
			again, err := Parse(fixture, first)
			if err != nil {
				t.Fatalf("reparse failed: %v\n%s", err, first)
			}
			if second := Print(again); second != first {
				t.Errorf("printing is not stable:\n%s\n---\n%s", first, second)
			}
		})
	}
}

func TestPrintRenumbersAfterNaming(t *testing.T) {
	m := parseFixture(t, "loop.ll")
	sum := m.Function("sum")

	for i, b := range sum.Blocks {
		sum.SetLabel(b, []string{"sum-00", "sum-01", "sum-02", "sum-03"}[i])
	}

	expected := `define dso_local i32 @sum(i32 noundef %0) {
sum-00:
  br label %sum-01

sum-01:
  %1 = phi i32 [ 0, %sum-00 ], [ %4, %sum-02 ]
  %2 = icmp slt i32 %1, %0
  br i1 %2, label %sum-02, label %sum-03

sum-02:
  %3 = add nsw i32 %1, 1
  %4 = add nsw i32 %3, %0
  br label %sum-01

sum-03:
  ret i32 %1
}
`
	if got := PrintFunction(sum); got != expected {
		t.Errorf("PrintFunction mismatch:\n%s\nexpected:\n%s", got, expected)
	}
}

func TestFormatSwitch(t *testing.T) {
	src := `define i32 @f(i32 %x) {
entry:
  switch i32 %x, label %done [
    i32 0, label %zero
  ]

zero:
  br label %done

done:
  ret i32 0
}
`
	m, err := Parse("switch.ll", src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	term := m.Function("f").EntryBlock().Terminator
	expected := "switch i32 %x, label %done [\n  i32 0, label %zero\n]"
	if got := FormatInstruction(term); got != expected {
		t.Errorf("FormatInstruction = %q, expected %q", got, expected)
	}
}
