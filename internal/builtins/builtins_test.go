package builtins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nksplang/nksp/internal/ast"
	"github.com/nksplang/nksp/internal/units"
	"github.com/nksplang/nksp/internal/value"
)

func lookup(t *testing.T, r *Registry, name string) Func {
	t.Helper()
	f, ok := r.Lookup(name)
	require.True(t, ok, "expected builtin %q to be registered", name)
	return f
}

func TestRegistryDisableHidesFunction(t *testing.T) {
	r := NewRegistry()
	lookup(t, r, "message")
	r.Disable("message")
	_, ok := r.Lookup("message")
	assert.False(t, ok)
	assert.True(t, r.IsDisabled("message"))
}

func TestExitSetsExitValue(t *testing.T) {
	r := NewRegistry()
	f := lookup(t, r, "exit")
	ctx := &CallContext{Args: []value.Value{value.Int(7, units.ZeroNumber)}}
	status := f.Exec(ctx)
	assert.Equal(t, StatusExit, status)
	assert.True(t, ctx.ExitValueIsSet)
	assert.Equal(t, int64(7), ctx.ExitValue.I)
}

func TestWaitConvertsSecondsToMicroseconds(t *testing.T) {
	r := NewRegistry()
	f := lookup(t, r, "wait")
	ctx := &CallContext{Args: []value.Value{value.Real(2, units.Number{Unit: units.Seconds, Factor: units.NoPrefixFactor})}}
	status := f.Exec(ctx)
	assert.Equal(t, StatusSuspend, status)
	assert.Equal(t, int64(2e6), ctx.SuspendMicros)
}

func TestWaitAbortsOnNonPositiveDuration(t *testing.T) {
	r := NewRegistry()
	f := lookup(t, r, "wait")
	ctx := &CallContext{Args: []value.Value{value.Int(0, units.ZeroNumber)}}
	assert.Equal(t, StatusAbort, f.Exec(ctx))
}

func TestIncAddsOneAndFlagsUnitWarning(t *testing.T) {
	r := NewRegistry()
	f := lookup(t, r, "inc")

	res, err := f.CheckArgs([]ArgDescriptor{{Type: ast.Int, Unit: units.Hertz}})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Warn)

	var stored value.Value
	ctx := &CallContext{
		Args: []value.Value{value.Int(5, units.ZeroNumber)},
		Set:  func(i int, v value.Value) { stored = v },
	}
	status := f.Exec(ctx)
	assert.Equal(t, StatusOK, status)
	assert.Equal(t, int64(6), ctx.Args[0].I)
	assert.Equal(t, int64(6), stored.I)
}

func TestDecSubtractsOne(t *testing.T) {
	r := NewRegistry()
	f := lookup(t, r, "dec")
	ctx := &CallContext{
		Args: []value.Value{value.Int(5, units.ZeroNumber)},
		Set:  func(i int, v value.Value) {},
	}
	f.Exec(ctx)
	assert.Equal(t, int64(4), ctx.Args[0].I)
}

func TestMinMaxPickCorrectOperand(t *testing.T) {
	r := NewRegistry()
	min := lookup(t, r, "min")
	ctx := &CallContext{Args: []value.Value{value.Int(3, units.ZeroNumber), value.Int(1, units.ZeroNumber)}}
	min.Exec(ctx)
	assert.Equal(t, int64(1), ctx.Args[0].I)

	max := lookup(t, r, "max")
	ctx = &CallContext{Args: []value.Value{value.Int(3, units.ZeroNumber), value.Int(1, units.ZeroNumber)}}
	max.Exec(ctx)
	assert.Equal(t, int64(3), ctx.Args[0].I)
}

func TestMinRejectsMismatchedUnits(t *testing.T) {
	r := NewRegistry()
	f := lookup(t, r, "min")
	_, err := f.CheckArgs([]ArgDescriptor{{Type: ast.Int, Unit: units.Hertz}, {Type: ast.Int, Unit: units.Seconds}})
	assert.Error(t, err)
}

func TestAbsPreservesFinalAndUnit(t *testing.T) {
	r := NewRegistry()
	f := lookup(t, r, "abs")
	res, err := f.CheckArgs([]ArgDescriptor{{Type: ast.Int, Unit: units.Hertz, Final: true}})
	require.NoError(t, err)
	assert.True(t, res.Final)
	assert.Equal(t, units.Hertz, res.Unit)

	ctx := &CallContext{Args: []value.Value{value.Int(-5, units.ZeroNumber)}}
	f.Exec(ctx)
	assert.Equal(t, int64(5), ctx.Args[0].I)
}

func TestSqrtComputesRealResult(t *testing.T) {
	r := NewRegistry()
	f := lookup(t, r, "sqrt")
	ctx := &CallContext{Args: []value.Value{value.Int(9, units.ZeroNumber)}}
	f.Exec(ctx)
	assert.InDelta(t, 3.0, ctx.Args[0].R, 1e-9)
}

func TestPowRejectsUnitOnExponent(t *testing.T) {
	r := NewRegistry()
	f := lookup(t, r, "pow")
	_, err := f.CheckArgs([]ArgDescriptor{{Type: ast.Int}, {Type: ast.Int, Unit: units.Hertz}})
	assert.Error(t, err)
}

func TestShLeftAndShRight(t *testing.T) {
	r := NewRegistry()
	left := lookup(t, r, "sh_left")
	ctx := &CallContext{Args: []value.Value{value.Int(1, units.ZeroNumber), value.Int(4, units.ZeroNumber)}}
	left.Exec(ctx)
	assert.Equal(t, int64(16), ctx.Args[0].I)

	right := lookup(t, r, "sh_right")
	ctx = &CallContext{Args: []value.Value{value.Int(16, units.ZeroNumber), value.Int(4, units.ZeroNumber)}}
	right.Exec(ctx)
	assert.Equal(t, int64(1), ctx.Args[0].I)
}

func TestMsbAndLsb(t *testing.T) {
	r := NewRegistry()
	msb := lookup(t, r, "msb")
	ctx := &CallContext{Args: []value.Value{value.Int(0b0101_0000, units.ZeroNumber)}}
	msb.Exec(ctx)
	assert.Equal(t, int64(6), ctx.Args[0].I)

	lsb := lookup(t, r, "lsb")
	ctx = &CallContext{Args: []value.Value{value.Int(0b0101_0000, units.ZeroNumber)}}
	lsb.Exec(ctx)
	assert.Equal(t, int64(4), ctx.Args[0].I)
}

func TestNumElementsCountsEachArrayType(t *testing.T) {
	r := NewRegistry()
	f := lookup(t, r, "num_elements")
	arr := value.ZeroOf(ast.IntArray, 3)
	ctx := &CallContext{Args: []value.Value{arr}}
	f.Exec(ctx)
	assert.Equal(t, int64(3), ctx.Args[0].I)

	ctx = &CallContext{Args: []value.Value{value.ZeroOf(ast.RealArray, 2)}}
	f.Exec(ctx)
	assert.Equal(t, int64(2), ctx.Args[0].I)

	ctx = &CallContext{Args: []value.Value{value.ZeroOf(ast.StringArray, 4)}}
	f.Exec(ctx)
	assert.Equal(t, int64(4), ctx.Args[0].I)
}

func TestSearchFindsIntElement(t *testing.T) {
	r := NewRegistry()
	f := lookup(t, r, "search")
	arr := value.Value{Type: ast.IntArray, IntArr: []int64{5, 6, 7}}
	ctx := &CallContext{Args: []value.Value{arr, value.Int(6, units.ZeroNumber)}}
	f.Exec(ctx)
	assert.Equal(t, int64(1), ctx.Args[0].I)
}

func TestSearchReturnsMinusOneWhenAbsent(t *testing.T) {
	r := NewRegistry()
	f := lookup(t, r, "search")
	arr := value.Value{Type: ast.IntArray, IntArr: []int64{5, 6, 7}}
	ctx := &CallContext{Args: []value.Value{arr, value.Int(99, units.ZeroNumber)}}
	f.Exec(ctx)
	assert.Equal(t, int64(-1), ctx.Args[0].I)
}

func TestArrayEqualComparesByValue(t *testing.T) {
	r := NewRegistry()
	f := lookup(t, r, "array_equal")
	a := value.Value{Type: ast.IntArray, IntArr: []int64{1, 2, 3}}
	b := value.Value{Type: ast.IntArray, IntArr: []int64{1, 2, 3}}
	ctx := &CallContext{Args: []value.Value{a, b}}
	f.Exec(ctx)
	assert.Equal(t, int64(1), ctx.Args[0].I)

	b.IntArr = []int64{1, 2, 4}
	ctx = &CallContext{Args: []value.Value{a, b}}
	f.Exec(ctx)
	assert.Equal(t, int64(0), ctx.Args[0].I)
}

func TestSortAscendingAndDescending(t *testing.T) {
	r := NewRegistry()
	f := lookup(t, r, "sort")

	arr := value.Value{Type: ast.IntArray, IntArr: []int64{3, 1, 2}}
	var sorted value.Value
	ctx := &CallContext{
		Args: []value.Value{arr, value.Int(0, units.ZeroNumber)},
		Set:  func(i int, v value.Value) { sorted = v },
	}
	f.Exec(ctx)
	assert.Equal(t, []int64{1, 2, 3}, sorted.IntArr)

	arr = value.Value{Type: ast.IntArray, IntArr: []int64{3, 1, 2}}
	ctx = &CallContext{
		Args: []value.Value{arr, value.Int(1, units.ZeroNumber)},
		Set:  func(i int, v value.Value) { sorted = v },
	}
	f.Exec(ctx)
	assert.Equal(t, []int64{3, 2, 1}, sorted.IntArr)
}

func TestInRangeHandlesInvertedBounds(t *testing.T) {
	r := NewRegistry()
	f := lookup(t, r, "in_range")
	ctx := &CallContext{Args: []value.Value{
		value.Int(5, units.ZeroNumber),
		value.Int(10, units.ZeroNumber),
		value.Int(0, units.ZeroNumber),
	}}
	f.Exec(ctx)
	assert.Equal(t, int64(1), ctx.Args[0].I)
}
