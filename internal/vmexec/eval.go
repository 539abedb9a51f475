package vmexec

import (
	"github.com/nksplang/nksp/internal/ast"
	"github.com/nksplang/nksp/internal/units"
	"github.com/nksplang/nksp/internal/value"
)

// eval is the plain recursive expression evaluator of spec §4.2
// (evalInt/evalReal/evalStr/... collapsed into one typed Value return,
// since Go has no algebraic-type-narrowing return polymorphism to match
// the original's per-type virtual eval methods). It never touches the
// control stack: only statement-kind nodes are stepped under budget.
func (e *Executor) eval(ctx *ExecContext, id ast.NodeID) value.Value {
	n := ctx.tree().Node(id)
	switch n.Kind {
	case ast.KindIntLit:
		return value.Int(n.IntVal, units.Number{Unit: n.Unit, Factor: factorOr1(n.Factor), Final: n.Final})
	case ast.KindRealLit:
		return value.Real(n.RealVal, units.Number{Unit: n.Unit, Factor: factorOr1(n.Factor), Final: n.Final})
	case ast.KindStrLit:
		return value.Str(n.StrVal)
	case ast.KindVar:
		return e.readScalar(ctx, n, false)
	case ast.KindPolyVar:
		return e.readScalar(ctx, n, true)
	case ast.KindBuiltinVarRef:
		if n.Type.IsArray() {
			return e.readArrayRef(ctx, n)
		}
		return e.readBuiltinVar(n)
	case ast.KindArrayVar:
		return e.readArrayRef(ctx, n)
	case ast.KindArrayElem:
		return e.readArrayElem(ctx, n)
	case ast.KindBinArith:
		return e.evalBinArith(ctx, n)
	case ast.KindRelational:
		return e.evalRelational(ctx, n)
	case ast.KindLogicalAnd:
		return value.Int(boolInt(e.eval(ctx, n.Children[0]).I != 0 && e.eval(ctx, n.Children[1]).I != 0), units.ZeroNumber)
	case ast.KindLogicalOr:
		return value.Int(boolInt(e.eval(ctx, n.Children[0]).I != 0 || e.eval(ctx, n.Children[1]).I != 0), units.ZeroNumber)
	case ast.KindBitwiseAnd:
		return value.Int(e.eval(ctx, n.Children[0]).I&e.eval(ctx, n.Children[1]).I, units.ZeroNumber)
	case ast.KindBitwiseOr:
		return value.Int(e.eval(ctx, n.Children[0]).I|e.eval(ctx, n.Children[1]).I, units.ZeroNumber)
	case ast.KindUnaryNeg:
		return e.evalUnaryNeg(ctx, n)
	case ast.KindUnaryNot:
		return value.Int(boolInt(e.eval(ctx, n.Children[0]).I == 0), units.ZeroNumber)
	case ast.KindUnaryBitNot:
		return value.Int(^e.eval(ctx, n.Children[0]).I, units.ZeroNumber)
	case ast.KindFinalMarker:
		v := e.eval(ctx, n.Children[0])
		v.Num.Final = true
		return v
	case ast.KindConcat:
		return e.evalConcat(ctx, n)
	case ast.KindCall:
		v, _ := e.evalCall(ctx, n, id)
		return v
	default:
		return value.Value{}
	}
}

func factorOr1(f float64) float64 {
	if f == 0 {
		return units.NoPrefixFactor
	}
	return f
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (e *Executor) evalUnaryNeg(ctx *ExecContext, n *ast.Node) value.Value {
	v := e.eval(ctx, n.Children[0])
	switch v.Type {
	case ast.Int:
		return value.Int(-v.I, v.Num)
	case ast.Real:
		return value.Real(-v.R, v.Num)
	default:
		return v
	}
}

func (e *Executor) evalConcat(ctx *ExecContext, n *ast.Node) value.Value {
	var sb []byte
	for _, c := range n.Children {
		sb = append(sb, []byte(e.stringOf(ctx, c))...)
	}
	return value.Str(string(sb))
}

func (e *Executor) stringOf(ctx *ExecContext, id ast.NodeID) string {
	v := e.eval(ctx, id)
	if v.Type == ast.String {
		return v.S
	}
	return ""
}

func (e *Executor) evalBinArith(ctx *ExecContext, n *ast.Node) value.Value {
	l := e.eval(ctx, n.Children[0])
	r := e.eval(ctx, n.Children[1])
	switch n.Op {
	case "+", "-":
		return e.evalAddSub(n, l, r)
	case "*":
		return e.evalMul(n, l, r)
	case "/":
		return e.evalDiv(n, l, r)
	case "mod":
		rv := r.I
		if rv == 0 {
			return value.Int(0, units.ZeroNumber)
		}
		return value.Int(l.I%rv, units.ZeroNumber)
	default:
		return value.Value{}
	}
}

func (e *Executor) evalAddSub(n *ast.Node, l, r value.Value) value.Value {
	resultFactor := units.SmallerFactor(l.Num.Factor, r.Num.Factor)
	// ConvertFactor takes the unscaled payload, not scalarFloat's product.
	lraw, rraw := l.R, r.R
	if l.Type == ast.Int {
		lraw = float64(l.I)
	}
	if r.Type == ast.Int {
		rraw = float64(r.I)
	}
	lv := units.ConvertFactor(lraw, l.Num.Factor, resultFactor)
	rv := units.ConvertFactor(rraw, r.Num.Factor, resultFactor)
	var f float64
	if n.Op == "+" {
		f = lv + rv
	} else {
		f = lv - rv
	}
	num := units.Number{Unit: n.Unit, Factor: resultFactor, Final: n.Final}
	if n.Type == ast.Int {
		return value.Int(int64(f), num)
	}
	return value.Real(f, num)
}

func (e *Executor) evalMul(n *ast.Node, l, r value.Value) value.Value {
	f := scalarFloat(l) * scalarFloat(r)
	num := units.Number{Unit: n.Unit, Factor: factorOr1(l.Num.Factor) * factorOr1(r.Num.Factor), Final: n.Final}
	if n.Type == ast.Int {
		return value.Int(int64(f/num.Factor), num)
	}
	return value.Real(f / num.Factor, num)
}

func (e *Executor) evalDiv(n *ast.Node, l, r value.Value) value.Value {
	rf := scalarFloat(r)
	num := units.Number{Unit: n.Unit, Factor: factorOr1(l.Num.Factor) / factorOr1(r.Num.Factor), Final: n.Final}
	if rf == 0 {
		return value.Real(0, num)
	}
	f := scalarFloat(l) / rf
	if n.Type == ast.Int {
		return value.Int(int64(f/num.Factor), num)
	}
	return value.Real(f / num.Factor, num)
}

func scalarFloat(v value.Value) float64 {
	switch v.Type {
	case ast.Int:
		return float64(v.I) * v.Num.Factor
	case ast.Real:
		return v.R * v.Num.Factor
	default:
		return 0
	}
}

// evalRelational implements spec §4.2's epsilon-tolerant real equality for
// "="/"#" and strict ordering for "<"/">"/"<="/">=" so ordering stays
// transitive (spec §8 property 7).
func (e *Executor) evalRelational(ctx *ExecContext, n *ast.Node) value.Value {
	l := e.eval(ctx, n.Children[0])
	r := e.eval(ctx, n.Children[1])
	if l.Type == ast.String || r.Type == ast.String {
		eq := l.S == r.S
		return value.Int(boolInt(relEval(n.Op, eq, l.S < r.S, l.S > r.S)), units.ZeroNumber)
	}
	lf, rf := scalarFloat(l), scalarFloat(r)
	eq := value.RealEqual(lf, rf)
	return value.Int(boolInt(relEval(n.Op, eq, lf < rf, lf > rf)), units.ZeroNumber)
}

func relEval(op string, eq, lt, gt bool) bool {
	switch op {
	case "=":
		return eq
	case "#":
		return !eq
	case "<":
		return lt
	case ">":
		return gt
	case "<=":
		return lt || eq
	case ">=":
		return gt || eq
	default:
		return false
	}
}

func (e *Executor) readScalar(ctx *ExecContext, n *ast.Node, poly bool) value.Value {
	off := n.PoolOffset
	if poly {
		switch n.Type {
		case ast.Int:
			return value.Int(ctx.poly.Ints[off], units.Number{Unit: n.Unit, Factor: ctx.poly.IntFactors[off]})
		case ast.Real:
			return value.Real(ctx.poly.Reals[off], units.Number{Unit: n.Unit, Factor: ctx.poly.RealFactors[off]})
		}
		return value.Value{}
	}
	switch n.Type {
	case ast.Int:
		return value.Int(ctx.global.Ints[off], units.Number{Unit: n.Unit, Factor: ctx.global.IntFactors[off]})
	case ast.Real:
		return value.Real(ctx.global.Reals[off], units.Number{Unit: n.Unit, Factor: ctx.global.RealFactors[off]})
	case ast.String:
		return value.Str(ctx.global.Strings[off])
	}
	return value.Value{}
}

func (e *Executor) writeScalar(ctx *ExecContext, n *ast.Node, poly bool, v value.Value) {
	off := n.PoolOffset
	if poly {
		switch n.Type {
		case ast.Int:
			ctx.poly.Ints[off] = v.I
			ctx.poly.IntFactors[off] = factorOr1(v.Num.Factor)
		case ast.Real:
			ctx.poly.Reals[off] = v.R
			ctx.poly.RealFactors[off] = factorOr1(v.Num.Factor)
		}
		return
	}
	switch n.Type {
	case ast.Int:
		ctx.global.Ints[off] = v.I
		ctx.global.IntFactors[off] = factorOr1(v.Num.Factor)
	case ast.Real:
		ctx.global.Reals[off] = v.R
		ctx.global.RealFactors[off] = factorOr1(v.Num.Factor)
	case ast.String:
		ctx.global.Strings[off] = v.S
	}
}

func (e *Executor) readBuiltinVar(n *ast.Node) value.Value {
	bv, ok := e.vars.Lookup(n.Name)
	if !ok {
		return value.Value{}
	}
	if bv.Read != nil {
		return bv.Read()
	}
	return bv.ConstValue
}

func (e *Executor) writeBuiltinVar(n *ast.Node, v value.Value) {
	bv, ok := e.vars.Lookup(n.Name)
	if !ok || bv.ReadOnly || bv.Write == nil {
		return
	}
	bv.Write(v)
}

// readArrayRef produces a Value whose array payload is a slice view over
// the backing pool storage, so element reads and writes go straight to the
// real store; a builtin that returns a rebuilt array (sort) is copied back
// by storeBack.
func (e *Executor) readArrayRef(ctx *ExecContext, n *ast.Node) value.Value {
	if n.Kind == ast.KindBuiltinVarRef {
		return e.readHostArrayRef(n)
	}
	off, size := n.PoolOffset, n.ArraySize
	switch n.Type {
	case ast.IntArray:
		return value.Value{Type: ast.IntArray, IntArr: ctx.global.Ints[off : off+size], IntFactor: ctx.global.IntFactors[off : off+size]}
	case ast.RealArray:
		return value.Value{Type: ast.RealArray, RealArr: ctx.global.Reals[off : off+size], RealFactor: ctx.global.RealFactors[off : off+size]}
	case ast.StringArray:
		return value.Value{Type: ast.StringArray, StrArr: ctx.global.Strings[off : off+size]}
	}
	return value.Value{}
}

// readHostArrayRef resolves a VarHostArray reference by name, returning a
// slice view straight over the host's own backing array (spec §6).
func (e *Executor) readHostArrayRef(n *ast.Node) value.Value {
	bv, ok := e.vars.Lookup(n.Name)
	if !ok || bv.ArrayData == nil {
		return value.Value{}
	}
	return value.Value{Type: ast.IntArray, IntArr: bv.ArrayData(), IntFactor: bv.Factors()}
}

func (e *Executor) readArrayElem(ctx *ExecContext, n *ast.Node) value.Value {
	arr := e.readArrayRef(ctx, ctx.tree().Node(n.Children[0]))
	idx := e.eval(ctx, n.Children[1]).I
	switch n.Type {
	case ast.Int:
		if idx < 0 || int(idx) >= len(arr.IntArr) {
			return value.Int(0, units.ZeroNumber)
		}
		return value.Int(arr.IntArr[idx], units.Number{Factor: arr.IntFactor[idx]})
	case ast.Real:
		if idx < 0 || int(idx) >= len(arr.RealArr) {
			return value.Real(0, units.ZeroNumber)
		}
		return value.Real(arr.RealArr[idx], units.Number{Factor: arr.RealFactor[idx]})
	case ast.String:
		if idx < 0 || int(idx) >= len(arr.StrArr) {
			return value.Str("")
		}
		return value.Str(arr.StrArr[idx])
	}
	return value.Value{}
}

func (e *Executor) writeArrayElem(ctx *ExecContext, n *ast.Node, v value.Value) {
	arrNode := ctx.tree().Node(n.Children[0])
	if arrNode.Kind == ast.KindBuiltinVarRef {
		bv, ok := e.vars.Lookup(arrNode.Name)
		if !ok || bv.ReadOnly || bv.ArrayData == nil {
			return
		}
	}
	arr := e.readArrayRef(ctx, arrNode)
	idx := e.eval(ctx, n.Children[1]).I
	switch n.Type {
	case ast.Int:
		if idx < 0 || int(idx) >= len(arr.IntArr) {
			return
		}
		arr.IntArr[idx] = v.I
		arr.IntFactor[idx] = factorOr1(v.Num.Factor)
	case ast.Real:
		if idx < 0 || int(idx) >= len(arr.RealArr) {
			return
		}
		arr.RealArr[idx] = v.R
		arr.RealFactor[idx] = factorOr1(v.Num.Factor)
	case ast.String:
		if idx < 0 || int(idx) >= len(arr.StrArr) {
			return
		}
		arr.StrArr[idx] = v.S
	}
}
