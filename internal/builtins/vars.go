package builtins

import (
	"github.com/nksplang/nksp/internal/ast"
	"github.com/nksplang/nksp/internal/units"
	"github.com/nksplang/nksp/internal/value"
)

// VarKind classifies a registered built-in variable.
type VarKind int

const (
	VarConst VarKind = iota
	VarDynamic
	VarHostInt   // host-owned integer scalar pointer, possibly read-only
	VarHostArray // host-owned 8-bit integer array view, possibly read-only
)

// Var is one built-in variable registered by the host or the core runtime
// (spec §6: "constant integer and constant real variables by name...
// dynamic variables whose reads and writes invoke host callbacks").
type Var struct {
	Name     string
	Kind     VarKind
	Type     ast.ValType
	Unit     units.Type
	ReadOnly bool

	ConstValue value.Value

	// Dynamic read/write hooks (e.g. $NKSP_REAL_TIMER, $NKSP_PERF_TIMER).
	Read  func() value.Value
	Write func(value.Value)

	// ArraySize and ArrayData back a VarHostArray: ArrayData must return
	// the same host-owned slice on every call, so element reads/writes and
	// in-place builtins (sort) touch host memory directly, same as a
	// script-declared array's pool storage.
	ArraySize   int
	ArrayData   func() []int64
	arrayFactor []float64 // all-ones, built once at registration (host arrays carry no per-element factor)
}

// Factors returns this array variable's per-element metric-prefix factor
// view, sized to match ArrayData().
func (v *Var) Factors() []float64 { return v.arrayFactor }

// VarRegistry is the built-in-variable half of the registration surface
// (spec §6), kept separate from Registry (functions) since hosts register
// variables and functions through distinct hooks.
type VarRegistry struct {
	vars map[string]*Var
}

func NewVarRegistry() *VarRegistry {
	vr := &VarRegistry{vars: map[string]*Var{}}
	registerCoreVars(vr)
	return vr
}

func (vr *VarRegistry) Register(v *Var) { vr.vars[v.Name] = v }

func (vr *VarRegistry) Lookup(name string) (*Var, bool) {
	v, ok := vr.vars[name]
	return v, ok
}

// Handler-type tags (spec §6).
const (
	CBTypeInit       = 0
	CBTypeNote       = 1
	CBTypeRelease    = 2
	CBTypeController = 3
	CBTypeRPN        = 4
	CBTypeNRPN       = 5
)

func registerCoreVars(vr *VarRegistry) {
	constInt := func(name string, v int64) {
		vr.Register(&Var{Name: name, Kind: VarConst, Type: ast.Int, ReadOnly: true,
			ConstValue: value.Int(v, units.ZeroNumber)})
	}
	constReal := func(name string, v float64) {
		vr.Register(&Var{Name: name, Kind: VarConst, Type: ast.Real, ReadOnly: true,
			ConstValue: value.Real(v, units.ZeroNumber)})
	}

	constInt("$NI_CB_TYPE_INIT", CBTypeInit)
	constInt("$NI_CB_TYPE_NOTE", CBTypeNote)
	constInt("$NI_CB_TYPE_RELEASE", CBTypeRelease)
	constInt("$NI_CB_TYPE_CONTROLLER", CBTypeController)
	constInt("$NI_CB_TYPE_RPN", CBTypeRPN)
	constInt("$NI_CB_TYPE_NRPN", CBTypeNRPN)

	constReal("~NI_MATH_PI", 3.14159265358979323846)
	constReal("~NI_MATH_E", 2.71828182845904523536)
}

// RegisterDynamicTimer wires a host real/performance timer as a dynamic
// read-only variable, e.g. $NKSP_REAL_TIMER / $NKSP_PERF_TIMER (spec §6).
func (vr *VarRegistry) RegisterDynamicTimer(name string, read func() int64) {
	vr.Register(&Var{
		Name: name, Kind: VarDynamic, Type: ast.Int, ReadOnly: true,
		Read: func() value.Value { return value.Int(read(), units.ZeroNumber) },
	})
}

// RegisterIntArray wires a host-owned 8-bit integer array as a built-in
// array variable (spec §6: "8-bit integer array views, with a read-only
// flag"). data must return the same backing slice on every call.
func (vr *VarRegistry) RegisterIntArray(name string, readOnly bool, size int, data func() []int64) {
	factors := make([]float64, size)
	for i := range factors {
		factors[i] = units.NoPrefixFactor
	}
	vr.Register(&Var{
		Name: name, Kind: VarHostArray, Type: ast.IntArray, ReadOnly: readOnly,
		ArraySize: size, ArrayData: data, arrayFactor: factors,
	})
}
