package nksp

import (
	"github.com/nksplang/nksp/internal/ast"
	"github.com/nksplang/nksp/internal/builtins"
	"github.com/nksplang/nksp/internal/units"
	"github.com/nksplang/nksp/internal/value"
)

// RegisterIntVariable exposes a host-owned integer scalar as a built-in
// NKSP variable (spec.md §6: "Integer scalar variable pointers with an
// assign/eval interface and a read-only flag"). get/set are called
// directly from the executor's hot path; they must not block.
func (e *Engine) RegisterIntVariable(name string, readOnly bool, get func() int64, set func(int64)) {
	v := &builtins.Var{
		Name: name, Kind: builtins.VarHostInt, Type: ast.Int, ReadOnly: readOnly,
		Read: func() value.Value { return value.Int(get(), units.ZeroNumber) },
	}
	if !readOnly && set != nil {
		v.Write = func(val value.Value) { set(val.I) }
	}
	e.vars.Register(v)
}

// RegisterConstInt exposes a host-supplied compile-time integer constant.
func (e *Engine) RegisterConstInt(name string, val int64) {
	e.vars.Register(&builtins.Var{
		Name: name, Kind: builtins.VarConst, Type: ast.Int, ReadOnly: true,
		ConstValue: value.Int(val, units.ZeroNumber),
	})
}

// RegisterConstReal exposes a host-supplied compile-time real constant.
func (e *Engine) RegisterConstReal(name string, val float64) {
	e.vars.Register(&builtins.Var{
		Name: name, Kind: builtins.VarConst, Type: ast.Real, ReadOnly: true,
		ConstValue: value.Real(val, units.ZeroNumber),
	})
}

// RegisterDynamicInt wires a read-only dynamic variable whose value is
// computed by the host at read time (spec.md §6: "$NKSP_REAL_TIMER,
// $NKSP_PERF_TIMER").
func (e *Engine) RegisterDynamicInt(name string, read func() int64) {
	e.vars.RegisterDynamicTimer(name, read)
}

// RegisterIntArray exposes a host-owned 8-bit integer array as a built-in
// NKSP array variable (spec.md §6: "8-bit integer array views, with a
// read-only flag"). data must return the same backing slice on every
// call; element reads/writes and in-place builtins like sort() go
// straight to that host memory.
func (e *Engine) RegisterIntArray(name string, readOnly bool, size int, data func() []int64) {
	e.vars.RegisterIntArray(name, readOnly, size, data)
}

// RegisterFunction adds an engine-specific built-in callable from script
// (spec.md §6: "a function_by_name(name) hook so the host can add
// engine-specific built-ins").
func (e *Engine) RegisterFunction(fn builtins.Func) {
	e.fns.Register(fn)
}

// DisableFunction marks a built-in as unavailable, so that preprocessor
// conditions like NKSP_NO_MESSAGE can elide calls to it at parse time
// (spec.md §6: "an is_function_disabled hook").
func (e *Engine) DisableFunction(name string) {
	e.fns.Disable(name)
}
