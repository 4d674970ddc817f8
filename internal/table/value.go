package table

import (
	"fmt"

	"github.com/segadb/segadb/pkg"
)

// ValueEqual compares two cell values. Numeric values compare by magnitude
// regardless of concrete type (json decoding produces float64 where inserts
// may have used int); everything else compares by formatted representation.
// Equality matching in queries and constraints both go through here.
func ValueEqual(a, b any) bool {
	fa, okA := pkg.NumToFloat(a)
	fb, okB := pkg.NumToFloat(b)
	if okA && okB {
		return fa == fb
	}
	if okA != okB {
		return false
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// valueLess orders cell values: nil first, then numerics by magnitude,
// then everything else lexically. Mixed numeric/non-numeric pairs put the
// numeric value first.
func valueLess(a, b any) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	fa, okA := pkg.NumToFloat(a)
	fb, okB := pkg.NumToFloat(b)
	switch {
	case okA && okB:
		return fa < fb
	case okA:
		return true
	case okB:
		return false
	}
	return fmt.Sprintf("%v", a) < fmt.Sprintf("%v", b)
}

// valueKey buckets values the same way ValueEqual compares them: numerics
// collapse by magnitude, everything else keeps its formatted form. The tag
// keeps 1 and "1" in separate buckets.
func valueKey(v any) string {
	if f, ok := pkg.NumToFloat(v); ok {
		return fmt.Sprintf("n:%v", f)
	}
	return fmt.Sprintf("s:%v", v)
}
