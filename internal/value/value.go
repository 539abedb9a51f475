// Package value is the runtime value representation shared by the
// executor and the builtin-function registry: a scalar or array payload
// plus the unit/factor/final metadata from spec §3.
package value

import (
	"math"

	"github.com/nksplang/nksp/internal/ast"
	"github.com/nksplang/nksp/internal/units"
)

// Value is a tagged union over the seven expression types of spec §3.
// Array element factors are tracked per-element since metric-prefix factor
// is a runtime property independent of the (array-prohibited) unit-type
// dimension; spec §4.4's array_equal is explicitly "factor-aware".
type Value struct {
	Type ast.ValType

	I   int64
	R   float64
	S   string
	Num units.Number // meaningful only when Type is Int or Real

	IntArr    []int64
	IntFactor []float64
	RealArr   []float64
	RealFactor []float64
	StrArr    []string
}

func Int(v int64, n units.Number) Value   { return Value{Type: ast.Int, I: v, Num: n} }
func Real(v float64, n units.Number) Value { return Value{Type: ast.Real, R: v, Num: n} }
func Str(v string) Value                   { return Value{Type: ast.String, S: v} }

func ZeroOf(t ast.ValType, size int) Value {
	switch t {
	case ast.Int:
		return Value{Type: ast.Int, Num: units.ZeroNumber}
	case ast.Real:
		return Value{Type: ast.Real, Num: units.ZeroNumber}
	case ast.String:
		return Value{Type: ast.String}
	case ast.IntArray:
		return Value{Type: ast.IntArray, IntArr: make([]int64, size), IntFactor: onesOf(size)}
	case ast.RealArray:
		return Value{Type: ast.RealArray, RealArr: make([]float64, size), RealFactor: onesOf(size)}
	case ast.StringArray:
		return Value{Type: ast.StringArray, StrArr: make([]string, size)}
	default:
		return Value{Type: ast.Empty}
	}
}

func onesOf(n int) []float64 {
	f := make([]float64, n)
	for i := range f {
		f[i] = units.NoPrefixFactor
	}
	return f
}

// AsFloat returns the value's scaled numeric payload for arithmetic that
// needs a common representation (e.g. real-valued comparisons against an
// int operand).
func (v Value) AsFloat() float64 {
	switch v.Type {
	case ast.Int:
		return float64(v.I) * v.Num.Factor
	case ast.Real:
		return v.R * v.Num.Factor
	default:
		return 0
	}
}

// RealEqualTolerance is the tolerance spec §4.2 requires for "=" / "#" on
// reals: two values are equal when they differ by less than it, or by at
// most it relative to the larger magnitude. This is distinct from the
// strict comparisons used by "<", ">", "<=", ">=" so that "<=" stays
// transitive (spec §8 property 7).
const RealEqualTolerance = 1e-9

func RealEqual(a, b float64) bool {
	if a == b {
		return true
	}
	diff := math.Abs(a - b)
	if diff < RealEqualTolerance {
		return true
	}
	largest := math.Max(math.Abs(a), math.Abs(b))
	return diff <= largest*RealEqualTolerance
}
