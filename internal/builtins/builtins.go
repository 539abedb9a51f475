// Package builtins is the built-in function and variable registry (spec
// §4.4, §6). Each entry in spec §4.4's per-function bullet list
// (returnType, returnUnitType, returnsFinal, minArgs, maxArgs,
// acceptsArgType, acceptsArgUnitType, acceptsArgUnitPrefix, acceptsArgFinal,
// modifiesArg, checkArgs) is collapsed into one CheckArgs call performed
// once per call site during parsing, which is the idiomatic Go shape for
// what the original exposes as a bundle of per-property virtual getters —
// mirrored on the teacher's own builtins, which are plain functions keyed
// by name in a map (yaegi's `initUniverse` bltnSym table) rather than
// objects with per-property accessors.
package builtins

import (
	"fmt"
	"math"
	"sort"

	"github.com/nksplang/nksp/internal/ast"
	"github.com/nksplang/nksp/internal/units"
	"github.com/nksplang/nksp/internal/value"
)

// ArgDescriptor is the static (parse-time) description of one call
// argument expression.
type ArgDescriptor struct {
	Type  ast.ValType
	Unit  units.Type
	Final bool
	Const bool
}

// StaticResult is what CheckArgs computes for one call site: the call
// expression's static type/unit/final, plus an optional non-fatal warning
// (spec §4.1: "final on one side of a binary op... emits a warning";
// several builtins have analogous warnings, e.g. inc/dec on unit-bearing
// operands).
type StaticResult struct {
	Type  ast.ValType
	Unit  units.Type
	Final bool
	Warn  string
}

// Status mirrors the subset of vmexec's step flags a builtin can itself
// trigger: ordinary completion, or a request to suspend/abort the calling
// handler (spec §4.4: wait(), exit()).
type Status int

const (
	StatusOK Status = iota
	StatusSuspend
	StatusAbort
	StatusExit
)

// CallContext is passed to Func.Exec with already-evaluated arguments and
// host-provided services. Set writes a new value back into the i-th
// argument's originating variable/array-element; only valid when
// ModifiesArg(i) is true for that function.
type CallContext struct {
	Args            []value.Value
	Set             func(i int, v value.Value)
	Now             func() int64 // microseconds, host clock (spec §4.4 message() timestamp)
	RandInt         func(lo, hi int64) int64
	RandReal        func(lo, hi float64) float64
	Print           func(timestampUs int64, text string)
	SuspendMicros   int64
	ExitValue       value.Value
	ExitValueIsSet  bool
}

// Func is one registered built-in.
type Func interface {
	Name() string
	MinArgs() int
	MaxArgs() int
	ModifiesArg(i int) bool
	CheckArgs(args []ArgDescriptor) (StaticResult, error)
	Exec(ctx *CallContext) Status
}

// Registry holds builtin functions by name plus the is_function_disabled
// hook (spec §6); built-in variables live in VarRegistry.
type Registry struct {
	funcs    map[string]Func
	disabled map[string]bool
}

func NewRegistry() *Registry {
	r := &Registry{funcs: map[string]Func{}, disabled: map[string]bool{}}
	registerCore(r)
	return r
}

func (r *Registry) Register(f Func) { r.funcs[f.Name()] = f }

func (r *Registry) Lookup(name string) (Func, bool) {
	if r.disabled[name] {
		return nil, false
	}
	f, ok := r.funcs[name]
	return f, ok
}

// Disable implements the host's is_function_disabled hook (spec §6), used
// e.g. by the NKSP_NO_MESSAGE preprocessor condition to elide message()
// calls at parse time.
func (r *Registry) Disable(name string) { r.disabled[name] = true }

func (r *Registry) IsDisabled(name string) bool { return r.disabled[name] }

// --- generic building blocks -------------------------------------------

type simpleFunc struct {
	name        string
	minArgs     int
	maxArgs     int
	modifies    map[int]bool
	check       func(args []ArgDescriptor) (StaticResult, error)
	exec        func(ctx *CallContext) Status
}

func (f *simpleFunc) Name() string    { return f.name }
func (f *simpleFunc) MinArgs() int    { return f.minArgs }
func (f *simpleFunc) MaxArgs() int    { return f.maxArgs }
func (f *simpleFunc) ModifiesArg(i int) bool { return f.modifies[i] }
func (f *simpleFunc) CheckArgs(args []ArgDescriptor) (StaticResult, error) {
	return f.check(args)
}
func (f *simpleFunc) Exec(ctx *CallContext) Status { return f.exec(ctx) }

func numericArg(a ArgDescriptor) bool { return a.Type == ast.Int || a.Type == ast.Real }

// finalPreservingUnary builds a builtin of the "preserve final, preserve
// unit/factor, 1 numeric arg" shape used by abs/round/ceil/floor/sqrt/
// log*/exp/trig/int/real/int_to_real/real_to_int (spec §4.1's final-
// propagation table).
func finalPreservingUnary(name string, resultType ast.ValType, unitless bool, fn func(v value.Value) value.Value) *simpleFunc {
	return &simpleFunc{
		name: name, minArgs: 1, maxArgs: 1,
		check: func(args []ArgDescriptor) (StaticResult, error) {
			if !numericArg(args[0]) {
				return StaticResult{}, fmt.Errorf("%s: argument must be numeric", name)
			}
			u := args[0].Unit
			if unitless {
				u = units.None
			}
			rt := resultType
			if rt == ast.Empty {
				rt = args[0].Type
			}
			return StaticResult{Type: rt, Unit: u, Final: args[0].Final}, nil
		},
		exec: func(ctx *CallContext) Status {
			ctx.Args[0] = fn(ctx.Args[0])
			return StatusOK
		},
	}
}

func registerCore(r *Registry) {
	registerFlow(r)
	registerArithmetic(r)
	registerRoundingConversion(r)
	registerTranscendental(r)
	registerBit(r)
	registerArrays(r)
	registerUtility(r)
}

// --- flow: message, exit, wait ------------------------------------------

func registerFlow(r *Registry) {
	r.Register(&simpleFunc{
		name: "message", minArgs: 1, maxArgs: 1,
		check: func(args []ArgDescriptor) (StaticResult, error) {
			return StaticResult{Type: ast.Empty}, nil
		},
		exec: func(ctx *CallContext) Status {
			var text string
			v := ctx.Args[0]
			switch v.Type {
			case ast.String:
				text = v.S
			case ast.Int:
				text = fmt.Sprintf("%d", v.I)
			case ast.Real:
				text = fmt.Sprintf("%g", v.R)
			}
			if ctx.Print != nil {
				ts := int64(0)
				if ctx.Now != nil {
					ts = ctx.Now()
				}
				ctx.Print(ts, text)
			}
			return StatusOK
		},
	})

	r.Register(&simpleFunc{
		name: "exit", minArgs: 0, maxArgs: 1,
		check: func(args []ArgDescriptor) (StaticResult, error) {
			if len(args) == 0 {
				return StaticResult{Type: ast.Empty}, nil
			}
			return StaticResult{Type: args[0].Type, Unit: args[0].Unit, Final: args[0].Final}, nil
		},
		exec: func(ctx *CallContext) Status {
			if len(ctx.Args) > 0 {
				ctx.ExitValue = ctx.Args[0]
				ctx.ExitValueIsSet = true
			}
			return StatusExit
		},
	})

	r.Register(&simpleFunc{
		name: "wait", minArgs: 1, maxArgs: 1,
		check: func(args []ArgDescriptor) (StaticResult, error) {
			a := args[0]
			if a.Type != ast.Int && a.Type != ast.Real {
				return StaticResult{}, fmt.Errorf("wait: argument must be numeric")
			}
			if a.Unit != units.None && a.Unit != units.Seconds {
				return StaticResult{}, fmt.Errorf("wait: argument must be unit-less microseconds or a seconds-typed value")
			}
			return StaticResult{Type: ast.Empty}, nil
		},
		exec: func(ctx *CallContext) Status {
			v := ctx.Args[0]
			var us float64
			if v.Num.Unit == units.Seconds {
				us = v.AsFloat() * 1e6
			} else {
				us = v.AsFloat()
			}
			if us <= 0 {
				return StatusAbort
			}
			ctx.SuspendMicros = int64(us)
			return StatusSuspend
		},
	})
}

// --- arithmetic: abs, min, max, random -----------------------------------

func registerArithmetic(r *Registry) {
	r.Register(finalPreservingUnary("abs", ast.Empty, false, func(v value.Value) value.Value {
		if v.Type == ast.Int {
			if v.I < 0 {
				v.I = -v.I
			}
			return v
		}
		v.R = math.Abs(v.R)
		return v
	}))

	matchUnit := func(name string, args []ArgDescriptor) error {
		for i := 1; i < len(args); i++ {
			if !numericArg(args[i]) {
				return fmt.Errorf("%s: all arguments must be numeric", name)
			}
			if args[i].Unit != args[0].Unit {
				return fmt.Errorf("%s: all arguments must share the same unit type", name)
			}
		}
		return nil
	}

	r.Register(&simpleFunc{
		name: "min", minArgs: 2, maxArgs: 2,
		check: func(args []ArgDescriptor) (StaticResult, error) {
			if err := matchUnit("min", args); err != nil {
				return StaticResult{}, err
			}
			rt := ast.Real
			if args[0].Type == ast.Int && args[1].Type == ast.Int {
				rt = ast.Int
			}
			return StaticResult{Type: rt, Unit: args[0].Unit}, nil
		},
		exec: func(ctx *CallContext) Status {
			a, b := ctx.Args[0], ctx.Args[1]
			if a.AsFloat() <= b.AsFloat() {
				ctx.Args[0] = a
			} else {
				ctx.Args[0] = b
			}
			return StatusOK
		},
	})
	r.Register(&simpleFunc{
		name: "max", minArgs: 2, maxArgs: 2,
		check: func(args []ArgDescriptor) (StaticResult, error) {
			if err := matchUnit("max", args); err != nil {
				return StaticResult{}, err
			}
			rt := ast.Real
			if args[0].Type == ast.Int && args[1].Type == ast.Int {
				rt = ast.Int
			}
			return StaticResult{Type: rt, Unit: args[0].Unit}, nil
		},
		exec: func(ctx *CallContext) Status {
			a, b := ctx.Args[0], ctx.Args[1]
			if a.AsFloat() >= b.AsFloat() {
				ctx.Args[0] = a
			} else {
				ctx.Args[0] = b
			}
			return StatusOK
		},
	})

	r.Register(&simpleFunc{
		name: "random", minArgs: 2, maxArgs: 2,
		check: func(args []ArgDescriptor) (StaticResult, error) {
			if err := matchUnit("random", args); err != nil {
				return StaticResult{}, err
			}
			var warn string
			if args[0].Final != args[1].Final {
				warn = "random: mismatched finalness across operands"
			}
			rt := ast.Real
			if args[0].Type == ast.Int && args[1].Type == ast.Int {
				rt = ast.Int
			}
			return StaticResult{Type: rt, Unit: args[0].Unit, Warn: warn}, nil
		},
		exec: func(ctx *CallContext) Status {
			lo, hi := ctx.Args[0], ctx.Args[1]
			if lo.Type == ast.Int && hi.Type == ast.Int {
				v := ctx.RandInt(lo.I, hi.I)
				ctx.Args[0] = value.Int(v, lo.Num)
			} else {
				v := ctx.RandReal(lo.AsFloat(), hi.AsFloat())
				f := lo.Num.Factor
				if f == 0 {
					f = units.NoPrefixFactor
				}
				ctx.Args[0] = value.Real(v/f, units.Number{Unit: lo.Num.Unit, Factor: f})
			}
			return StatusOK
		},
	})
}

// --- rounding / conversion ------------------------------------------------

func registerRoundingConversion(r *Registry) {
	r.Register(finalPreservingUnary("round", ast.Empty, false, func(v value.Value) value.Value {
		if v.Type == ast.Real {
			v.R = math.Round(v.R)
		}
		return v
	}))
	r.Register(finalPreservingUnary("ceil", ast.Empty, false, func(v value.Value) value.Value {
		if v.Type == ast.Real {
			v.R = math.Ceil(v.R)
		}
		return v
	}))
	r.Register(finalPreservingUnary("floor", ast.Empty, false, func(v value.Value) value.Value {
		if v.Type == ast.Real {
			v.R = math.Floor(v.R)
		}
		return v
	}))
	r.Register(finalPreservingUnary("int", ast.Int, false, func(v value.Value) value.Value {
		if v.Type == ast.Real {
			return value.Int(int64(v.R), v.Num)
		}
		return v
	}))
	r.Register(finalPreservingUnary("real", ast.Real, false, func(v value.Value) value.Value {
		if v.Type == ast.Int {
			return value.Real(float64(v.I), v.Num)
		}
		return v
	}))
	r.Register(finalPreservingUnary("int_to_real", ast.Real, false, func(v value.Value) value.Value {
		return value.Real(float64(v.I), v.Num)
	}))
	r.Register(finalPreservingUnary("real_to_int", ast.Int, false, func(v value.Value) value.Value {
		return value.Int(int64(v.R), v.Num)
	}))
}

// --- transcendental ---------------------------------------------------

func registerTranscendental(r *Registry) {
	unary := func(name string, fn func(float64) float64) {
		r.Register(finalPreservingUnary(name, ast.Real, false, func(v value.Value) value.Value {
			x := v.R
			if v.Type == ast.Int {
				x = float64(v.I)
			}
			return value.Real(fn(x), v.Num)
		}))
	}
	unary("sqrt", math.Sqrt)
	unary("log", math.Log)
	unary("log2", math.Log2)
	unary("log10", math.Log10)
	unary("exp", math.Exp)
	unary("sin", math.Sin)
	unary("cos", math.Cos)
	unary("tan", math.Tan)
	unary("asin", math.Asin)
	unary("acos", math.Acos)
	unary("atan", math.Atan)

	r.Register(&simpleFunc{
		name: "pow", minArgs: 2, maxArgs: 2,
		check: func(args []ArgDescriptor) (StaticResult, error) {
			if !numericArg(args[0]) || !numericArg(args[1]) {
				return StaticResult{}, fmt.Errorf("pow: arguments must be numeric")
			}
			if args[1].Unit != units.None {
				return StaticResult{}, fmt.Errorf("pow: 2nd argument must be unit-less")
			}
			// final is preserved from the LHS only (spec §4.1).
			return StaticResult{Type: ast.Real, Unit: args[0].Unit, Final: args[0].Final}, nil
		},
		exec: func(ctx *CallContext) Status {
			a, b := ctx.Args[0], ctx.Args[1]
			ctx.Args[0] = value.Real(math.Pow(a.AsFloat(), b.AsFloat()), a.Num)
			return StatusOK
		},
	})
}

// --- bit -----------------------------------------------------------------

func registerBit(r *Registry) {
	bitBinary := func(name string, fn func(a, b int64) int64) {
		r.Register(&simpleFunc{
			name: name, minArgs: 2, maxArgs: 2,
			check: func(args []ArgDescriptor) (StaticResult, error) {
				if args[0].Type != ast.Int || args[1].Type != ast.Int || args[0].Unit != units.None || args[1].Unit != units.None {
					return StaticResult{}, fmt.Errorf("%s: operands must be unit-less integers", name)
				}
				return StaticResult{Type: ast.Int}, nil
			},
			exec: func(ctx *CallContext) Status {
				ctx.Args[0] = value.Int(fn(ctx.Args[0].I, ctx.Args[1].I), units.ZeroNumber)
				return StatusOK
			},
		})
	}
	bitBinary("sh_left", func(a, b int64) int64 {
		if b < 0 || b >= 64 {
			return 0
		}
		return a << uint(b)
	})
	bitBinary("sh_right", func(a, b int64) int64 {
		if b < 0 || b >= 64 {
			return 0
		}
		return a >> uint(b)
	})
	r.Register(&simpleFunc{
		name: "msb", minArgs: 1, maxArgs: 1,
		check: func(args []ArgDescriptor) (StaticResult, error) {
			if args[0].Type != ast.Int {
				return StaticResult{}, fmt.Errorf("msb: argument must be an integer")
			}
			return StaticResult{Type: ast.Int}, nil
		},
		exec: func(ctx *CallContext) Status {
			v := uint64(ctx.Args[0].I)
			res := int64(-1)
			for i := 63; i >= 0; i-- {
				if v&(1<<uint(i)) != 0 {
					res = int64(i)
					break
				}
			}
			ctx.Args[0] = value.Int(res, units.ZeroNumber)
			return StatusOK
		},
	})
	r.Register(&simpleFunc{
		name: "lsb", minArgs: 1, maxArgs: 1,
		check: func(args []ArgDescriptor) (StaticResult, error) {
			if args[0].Type != ast.Int {
				return StaticResult{}, fmt.Errorf("lsb: argument must be an integer")
			}
			return StaticResult{Type: ast.Int}, nil
		},
		exec: func(ctx *CallContext) Status {
			v := uint64(ctx.Args[0].I)
			res := int64(-1)
			for i := 0; i < 64; i++ {
				if v&(1<<uint(i)) != 0 {
					res = int64(i)
					break
				}
			}
			ctx.Args[0] = value.Int(res, units.ZeroNumber)
			return StatusOK
		},
	})
}

// --- arrays ----------------------------------------------------------

func registerArrays(r *Registry) {
	r.Register(&simpleFunc{
		name: "num_elements", minArgs: 1, maxArgs: 1,
		check: func(args []ArgDescriptor) (StaticResult, error) {
			if !args[0].Type.IsArray() {
				return StaticResult{}, fmt.Errorf("num_elements: argument must be an array")
			}
			return StaticResult{Type: ast.Int}, nil
		},
		exec: func(ctx *CallContext) Status {
			arr := ctx.Args[0]
			n := 0
			switch arr.Type {
			case ast.IntArray:
				n = len(arr.IntArr)
			case ast.RealArray:
				n = len(arr.RealArr)
			case ast.StringArray:
				n = len(arr.StrArr)
			}
			ctx.Args[0] = value.Int(int64(n), units.ZeroNumber)
			return StatusOK
		},
	})

	r.Register(&simpleFunc{
		name: "search", minArgs: 2, maxArgs: 2,
		check: func(args []ArgDescriptor) (StaticResult, error) {
			if !args[0].Type.IsArray() {
				return StaticResult{}, fmt.Errorf("search: first argument must be an array")
			}
			if args[0].Type.ElementType() != args[1].Type {
				return StaticResult{}, fmt.Errorf("search: needle type must match array element type")
			}
			return StaticResult{Type: ast.Int}, nil
		},
		exec: func(ctx *CallContext) Status {
			arr := ctx.Args[0]
			needle := ctx.Args[1]
			idx := int64(-1)
			switch arr.Type {
			case ast.IntArray:
				for i, v := range arr.IntArr {
					if v == needle.I {
						idx = int64(i)
						break
					}
				}
			case ast.RealArray:
				for i, v := range arr.RealArr {
					if value.RealEqual(v*arr.RealFactor[i], needle.AsFloat()) {
						idx = int64(i)
						break
					}
				}
			case ast.StringArray:
				for i, v := range arr.StrArr {
					if v == needle.S {
						idx = int64(i)
						break
					}
				}
			}
			ctx.Args[0] = value.Int(idx, units.ZeroNumber)
			return StatusOK
		},
	})

	r.Register(&simpleFunc{
		name: "array_equal", minArgs: 2, maxArgs: 2,
		check: func(args []ArgDescriptor) (StaticResult, error) {
			if !args[0].Type.IsArray() || args[0].Type != args[1].Type {
				return StaticResult{}, fmt.Errorf("array_equal: both arguments must be arrays of the same type")
			}
			return StaticResult{Type: ast.Int}, nil
		},
		exec: func(ctx *CallContext) Status {
			a, b := ctx.Args[0], ctx.Args[1]
			eq := true
			switch a.Type {
			case ast.IntArray:
				if len(a.IntArr) != len(b.IntArr) {
					eq = false
				} else {
					for i := range a.IntArr {
						if a.IntArr[i] != b.IntArr[i] {
							eq = false
							break
						}
					}
				}
			case ast.RealArray:
				if len(a.RealArr) != len(b.RealArr) {
					eq = false
				} else {
					for i := range a.RealArr {
						if !value.RealEqual(a.RealArr[i]*a.RealFactor[i], b.RealArr[i]*b.RealFactor[i]) {
							eq = false
							break
						}
					}
				}
			case ast.StringArray:
				if len(a.StrArr) != len(b.StrArr) {
					eq = false
				} else {
					for i := range a.StrArr {
						if a.StrArr[i] != b.StrArr[i] {
							eq = false
							break
						}
					}
				}
			}
			v := int64(0)
			if eq {
				v = 1
			}
			ctx.Args[0] = value.Int(v, units.ZeroNumber)
			return StatusOK
		},
	})

	// sort: an indirect indexed sort. It builds an index permutation by
	// comparing elements (real elements scaled by their factors), writes
	// the elements in that order into fresh slices and hands them back
	// through ctx.Set; the executor copies them into the array's storage.
	r.Register(&simpleFunc{
		name: "sort", minArgs: 2, maxArgs: 2, modifies: map[int]bool{0: true},
		check: func(args []ArgDescriptor) (StaticResult, error) {
			if args[0].Type != ast.IntArray && args[0].Type != ast.RealArray {
				return StaticResult{}, fmt.Errorf("sort: argument must be an int or real array")
			}
			if args[1].Type != ast.Int {
				return StaticResult{}, fmt.Errorf("sort: descending flag must be an integer")
			}
			return StaticResult{Type: ast.Empty}, nil
		},
		exec: func(ctx *CallContext) Status {
			arr := ctx.Args[0]
			descending := ctx.Args[1].I != 0
			n := 0
			if arr.Type == ast.IntArray {
				n = len(arr.IntArr)
			} else {
				n = len(arr.RealArr)
			}
			perm := make([]int, n)
			for i := range perm {
				perm[i] = i
			}
			less := func(i, j int) bool {
				var vi, vj float64
				if arr.Type == ast.IntArray {
					vi, vj = float64(arr.IntArr[perm[i]]), float64(arr.IntArr[perm[j]])
				} else {
					vi = arr.RealArr[perm[i]] * arr.RealFactor[perm[i]]
					vj = arr.RealArr[perm[j]] * arr.RealFactor[perm[j]]
				}
				if descending {
					return vi > vj
				}
				return vi < vj
			}
			sort.SliceStable(perm, less)
			if arr.Type == ast.IntArray {
				out := make([]int64, n)
				for i, p := range perm {
					out[i] = arr.IntArr[p]
				}
				arr.IntArr = out
			} else {
				outV := make([]float64, n)
				outF := make([]float64, n)
				for i, p := range perm {
					outV[i] = arr.RealArr[p]
					outF[i] = arr.RealFactor[p]
				}
				arr.RealArr, arr.RealFactor = outV, outF
			}
			ctx.Set(0, arr)
			return StatusOK
		},
	})
}

// --- utility ---------------------------------------------------------

func registerUtility(r *Registry) {
	r.Register(&simpleFunc{
		name: "in_range", minArgs: 3, maxArgs: 3,
		check: func(args []ArgDescriptor) (StaticResult, error) {
			for i := 1; i < 3; i++ {
				if args[i].Unit != args[0].Unit {
					return StaticResult{}, fmt.Errorf("in_range: all arguments must share the same unit type")
				}
			}
			return StaticResult{Type: ast.Int}, nil
		},
		exec: func(ctx *CallContext) Status {
			x, lo, hi := ctx.Args[0].AsFloat(), ctx.Args[1].AsFloat(), ctx.Args[2].AsFloat()
			if lo > hi {
				lo, hi = hi, lo
			}
			v := int64(0)
			if x >= lo && x <= hi {
				v = 1
			}
			ctx.Args[0] = value.Int(v, units.ZeroNumber)
			return StatusOK
		},
	})

	incdec := func(name string, delta int64) {
		r.Register(&simpleFunc{
			name: name, minArgs: 1, maxArgs: 1, modifies: map[int]bool{0: true},
			check: func(args []ArgDescriptor) (StaticResult, error) {
				if args[0].Type != ast.Int && args[0].Type != ast.Real {
					return StaticResult{}, fmt.Errorf("%s: argument must be numeric", name)
				}
				var warn string
				if args[0].Unit != units.None {
					warn = fmt.Sprintf("%s: operand carries a unit", name)
				}
				return StaticResult{Type: args[0].Type, Unit: args[0].Unit, Final: args[0].Final, Warn: warn}, nil
			},
			exec: func(ctx *CallContext) Status {
				v := ctx.Args[0]
				if v.Type == ast.Int {
					v.I += delta
				} else {
					v.R += float64(delta)
				}
				ctx.Args[0] = v
				ctx.Set(0, v)
				return StatusOK
			},
		})
	}
	incdec("inc", 1)
	incdec("dec", -1)
}
