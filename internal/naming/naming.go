// Package naming derives stable textual identifiers for values and blocks
// and builds the messages carried by trace calls.
package naming

import (
	"fmt"
	"strings"

	"gneiss/internal/ir"
)

// NameOf returns the value's own name, or the placeholder the printer
// would use for it when it has none (%N for anonymous locals, the literal
// text of constants).
func NameOf(v *ir.Value) string {
	if v == nil {
		return "<null>"
	}
	if v.Name != "" {
		return v.Name
	}
	return v.Ref()
}

// OperandText returns the value exactly as it appears as an operand,
// sigil included.
func OperandText(v *ir.Value) string {
	if v == nil {
		return "<null>"
	}
	return v.Ref()
}

// TypeText renders a type in its canonical spelling.
func TypeText(t ir.Type) string {
	if t == nil {
		return "<none>"
	}
	return t.String()
}

// SyntheticBlockName returns the name given to the index-th anonymous block
// of fn.
func SyntheticBlockName(fn string, index int) string {
	return fmt.Sprintf("%s-%02d", fn, index)
}

// BlockName returns the label of b, or its positional placeholder when it
// has not been named.
func BlockName(b *ir.BasicBlock) string {
	if b.Label != "" {
		return b.Label
	}
	return strings.TrimPrefix(b.Ref(), "%")
}

// NameBlocks gives every anonymous block of fn except skip a synthetic
// name, in layout order, and returns how many it named. Names stick, so a
// second call changes nothing.
func NameBlocks(fn *ir.Function, skip *ir.BasicBlock) int {
	index := 0
	for _, b := range fn.Blocks {
		if b == skip || b.Label != "" {
			continue
		}
		fn.SetLabel(b, fn.UniqueName(SyntheticBlockName(fn.Name, index)))
		index++
	}
	return index
}

// EscapePercent doubles every '%' so s can be used as a printf format.
func EscapePercent(s string) string {
	return strings.ReplaceAll(s, "%", "%%")
}
