package vmexec

import (
	"github.com/nksplang/nksp/internal/ast"
	"github.com/nksplang/nksp/internal/builtins"
	"github.com/nksplang/nksp/internal/metrics"
	"github.com/nksplang/nksp/internal/value"
)

// Executor implements the step loop of spec §4.3. It is stateless across
// scripts/voices — all mutable state lives in ExecContext — so a single
// Executor can be shared by every voice in the host.
type Executor struct {
	fns     *builtins.Registry
	vars    *builtins.VarRegistry
	metrics *metrics.Metrics
}

// NewExecutor builds an Executor. m may be nil, in which case the executor
// runs unmetered (spec.md §5's metrics seam is optional).
func NewExecutor(fns *builtins.Registry, vars *builtins.VarRegistry, m *metrics.Metrics) *Executor {
	return &Executor{fns: fns, vars: vars, metrics: m}
}

// Exec runs ctx's loaded script's named handler until it completes,
// suspends, or errors (spec §4.3/§6). Calling Exec again on a Suspended
// context resumes in place rather than restarting the handler. A Go panic
// raised while stepping is recovered here and reported as Error.
func (e *Executor) Exec(ctx *ExecContext, handlerName string) (status Status) {
	defer func() {
		if r := recover(); r != nil {
			ctx.status = Error
			ctx.reset()
			status = Error
		}
	}()
	if ctx.status != Suspended || ctx.sp == 0 {
		handlerNode, ok := ctx.parsed.Handlers[handlerName]
		if !ok {
			return NotRunning
		}
		ctx.reset()
		body := ctx.tree().Node(handlerNode).Children[0]
		ctx.push(body)
	}
	return e.run(ctx)
}

// RunBody executes body to completion or suspension, bypassing the handler
// table. Used once per ExecContext to seed global/polyphonic storage from
// a script's top-level declare initializers (spec §3), which never appear
// in the handler map since they sit outside any "on ... end on" block.
func (e *Executor) RunBody(ctx *ExecContext, body ast.NodeID) Status {
	ctx.reset()
	ctx.push(body)
	return e.run(ctx)
}

func (e *Executor) run(ctx *ExecContext) Status {
	ctx.status = Running
	ctx.instrCount = 0
	ctx.exitSet = false

	synced := 0
	if !ctx.opts.AutoSuspendEnabled {
		synced = 1
	}

	var ctrl control
	for ctx.status == Running && ctx.sp > 0 {
		if ctx.isAborted() {
			ctrl = ctrlAbort | ctrlError
		} else {
			ctrl = e.step(ctx, &synced)
		}

		if ctrl.has(ctrlReturn) {
			ctrl &^= ctrlReturn
			e.unwindToSub(ctx, &synced)
		}

		if ctrl == ctrlNone && synced == 0 && ctx.instrCount > e.hardBudget(ctx) {
			ctrl = ctrlSuspend
			ctx.suspendUs = e.suspensionMicros(ctx)
		}

		ctx.instrCount++
		e.metrics.IncInstructions()

		if ctrl != ctrlNone {
			e.finish(ctx, ctrl)
			break
		}
	}
	if ctx.status == Running {
		e.finish(ctx, ctrlNone)
	}
	return ctx.status
}

func (e *Executor) hardBudget(ctx *ExecContext) int {
	if ctx.opts.HardInstructionBudget > 0 {
		return ctx.opts.HardInstructionBudget
	}
	return 210
}

func (e *Executor) softBudget(ctx *ExecContext) int {
	if ctx.opts.SoftInstructionBudget > 0 {
		return ctx.opts.SoftInstructionBudget
	}
	return 70
}

func (e *Executor) suspensionMicros(ctx *ExecContext) int64 {
	if ctx.opts.SuspensionMicros > 0 {
		return ctx.opts.SuspensionMicros
	}
	return 1000
}

func (e *Executor) unwindToSub(ctx *ExecContext, synced *int) {
	for ctx.sp > 0 {
		top := ctx.top()
		wasSub := top.isSub
		if ctx.tree().Node(top.node).Kind == ast.KindSync {
			*synced--
		}
		ctx.pop()
		if wasSub {
			return
		}
	}
}

func (e *Executor) finish(ctx *ExecContext, ctrl control) {
	if ctrl.has(ctrlSuspend) && !ctrl.has(ctrlAbort) {
		ctx.status = Suspended
		e.metrics.IncSuspensions()
		return
	}
	ctx.status = NotRunning
	if ctrl.has(ctrlError) {
		ctx.status = Error
		e.metrics.IncAborts()
	}
	ctx.reset()
}

// step executes exactly one (Statement*, subindex) transition of spec
// §4.3 against the top-of-stack frame.
func (e *Executor) step(ctx *ExecContext, synced *int) control {
	top := ctx.top()
	n := ctx.tree().Node(top.node)
	switch n.Kind {
	case ast.KindStmtList:
		if top.subIndex < len(n.Children) {
			child := n.Children[top.subIndex]
			top.subIndex++
			ctx.push(child)
		} else {
			ctx.pop()
		}
		return ctrlNone

	case ast.KindIf:
		if top.subIndex == 0 {
			cond := e.eval(ctx, n.Children[0]).I
			branch := n.Children[2] // else
			if cond != 0 {
				branch = n.Children[1]
			}
			top.subIndex = 1
			if branch == 0 {
				ctx.pop()
			} else {
				ctx.push(branch)
			}
		} else {
			ctx.pop()
		}
		return ctrlNone

	case ast.KindSelect:
		if top.subIndex == 0 {
			v := e.eval(ctx, n.Children[0]).I
			idx := findCase(n.Cases, v)
			top.subIndex = 1
			if idx < 0 {
				ctx.pop()
			} else {
				ctx.push(n.Cases[idx].Body)
			}
		} else {
			ctx.pop()
		}
		return ctrlNone

	case ast.KindWhile:
		cond := e.eval(ctx, n.Children[0]).I
		if cond != 0 {
			ctx.push(n.Children[1])
			if *synced == 0 && ctx.instrCount > e.softBudget(ctx) {
				ctx.suspendUs = e.suspensionMicros(ctx)
				return ctrlSuspend
			}
		} else {
			ctx.pop()
		}
		return ctrlNone

	case ast.KindSync:
		if top.subIndex == 0 {
			top.subIndex = 1
			*synced++
			ctx.push(n.Children[0])
		} else {
			ctx.pop()
			*synced--
		}
		return ctrlNone

	case ast.KindNoOp:
		ctx.pop()
		return ctrlNone

	default:
		// Pop first: a "call NAME" leaf pushes the function body, which
		// must stay on the stack.
		id := top.node
		ctx.pop()
		return e.execLeaf(ctx, n, id)
	}
}

func findCase(cases []ast.CaseRange, v int64) int {
	for i, c := range cases {
		if v >= c.Lo && v <= c.Hi {
			return i
		}
	}
	return -1
}

// execLeaf executes a one-step leaf statement: assignment, exit, inc/dec,
// or a call (built-in leaf call, or "call NAME" — which, rather than
// running here, pushes the user function's body as a subroutine frame so
// its own control flow is budget-stepped like any other statement list).
func (e *Executor) execLeaf(ctx *ExecContext, n *ast.Node, id ast.NodeID) control {
	switch n.Kind {
	case ast.KindAssign:
		return e.execAssign(ctx, n)
	case ast.KindExit:
		return e.execExit(ctx, n)
	case ast.KindInc, ast.KindDec:
		return e.execIncDec(ctx, n)
	case ast.KindCall:
		return e.execCallStmt(ctx, n, id)
	default:
		return ctrlNone
	}
}

func (e *Executor) execAssign(ctx *ExecContext, n *ast.Node) control {
	lhs := ctx.tree().Node(n.Children[0])
	rhs := e.eval(ctx, n.Children[1])
	switch lhs.Kind {
	case ast.KindVar:
		e.writeScalar(ctx, lhs, false, rhs)
	case ast.KindPolyVar:
		e.writeScalar(ctx, lhs, true, rhs)
	case ast.KindArrayElem:
		e.writeArrayElem(ctx, lhs, rhs)
	case ast.KindBuiltinVarRef:
		e.writeBuiltinVar(lhs, rhs)
	}
	return ctrlNone
}

func (e *Executor) execExit(ctx *ExecContext, n *ast.Node) control {
	if n.Children[0] != 0 && ctx.opts.ExitResultEnabled {
		ctx.exitValue = e.eval(ctx, n.Children[0])
		ctx.exitSet = true
	}
	return ctrlAbort
}

func (e *Executor) execIncDec(ctx *ExecContext, n *ast.Node) control {
	operand := ctx.tree().Node(n.Children[0])
	cur := e.eval(ctx, n.Children[0])
	delta := int64(1)
	if n.Kind == ast.KindDec {
		delta = -1
	}
	next := value.Int(cur.I+delta, cur.Num)
	switch operand.Kind {
	case ast.KindVar:
		e.writeScalar(ctx, operand, false, next)
	case ast.KindPolyVar:
		e.writeScalar(ctx, operand, true, next)
	case ast.KindArrayElem:
		e.writeArrayElem(ctx, operand, next)
	case ast.KindBuiltinVarRef:
		e.writeBuiltinVar(operand, next)
	}
	return ctrlNone
}

// execCallStmt dispatches a statement-position call: a built-in executes
// eagerly (spec §4.4); a user function's body is pushed as a subroutine
// frame instead, so nested loops/branches inside it are budget-stepped.
func (e *Executor) execCallStmt(ctx *ExecContext, n *ast.Node, id ast.NodeID) control {
	if fn, ok := e.fns.Lookup(n.FuncName); ok {
		_, ctrl := e.runBuiltin(ctx, fn, n)
		return ctrl
	}
	if sub, ok := ctx.funcBody(n.FuncName); ok {
		ctx.pushSub(ctx.tree().Node(sub).Children[0])
	}
	return ctrlNone
}

// evalCall is the expression-position counterpart used by eval(): builtin
// calls only (user functions never appear inside an expression in the
// grammar of spec §4.1).
func (e *Executor) evalCall(ctx *ExecContext, n *ast.Node, id ast.NodeID) (value.Value, control) {
	fn, ok := e.fns.Lookup(n.FuncName)
	if !ok {
		return value.Value{}, ctrlNone
	}
	return e.runBuiltin(ctx, fn, n)
}

func (e *Executor) runBuiltin(ctx *ExecContext, fn builtins.Func, n *ast.Node) (value.Value, control) {
	args := make([]value.Value, len(n.Children))
	for i, c := range n.Children {
		args[i] = e.eval(ctx, c)
	}
	cc := &builtins.CallContext{
		Args: args,
		Set:  func(i int, v value.Value) { args[i] = v },
		Now:  ctx.opts.Now, RandInt: ctx.opts.RandInt, RandReal: ctx.opts.RandReal,
		Print: ctx.opts.Print,
	}
	status := fn.Exec(cc)

	for i, c := range n.Children {
		if fn.ModifiesArg(i) {
			e.storeBack(ctx, c, args[i])
		}
	}

	switch status {
	case builtins.StatusSuspend:
		ctx.suspendUs = cc.SuspendMicros
		return value.Value{Type: n.Type}, ctrlSuspend
	case builtins.StatusAbort:
		return value.Value{Type: n.Type}, ctrlAbort | ctrlError
	case builtins.StatusExit:
		if ctx.opts.ExitResultEnabled && cc.ExitValueIsSet {
			ctx.exitValue = cc.ExitValue
			ctx.exitSet = true
		}
		return value.Value{Type: n.Type}, ctrlAbort
	default:
		result := value.Value{Type: n.Type}
		if len(args) > 0 {
			result = args[0]
			result.Type = n.Type
		}
		return result, ctrlNone
	}
}

// storeBack writes a builtin's in-place-modified argument (e.g. inc/dec,
// array sort) back to its originating variable/array-element slot.
func (e *Executor) storeBack(ctx *ExecContext, argNode ast.NodeID, v value.Value) {
	n := ctx.tree().Node(argNode)
	switch n.Kind {
	case ast.KindVar:
		e.writeScalar(ctx, n, false, v)
	case ast.KindPolyVar:
		e.writeScalar(ctx, n, true, v)
	case ast.KindArrayElem:
		e.writeArrayElem(ctx, n, v)
	case ast.KindArrayVar:
		// sort returns a rebuilt array; copy it back into the pool slots
		// the array occupies.
		dst := e.readArrayRef(ctx, n)
		copy(dst.IntArr, v.IntArr)
		copy(dst.RealArr, v.RealArr)
		copy(dst.RealFactor, v.RealFactor)
		copy(dst.StrArr, v.StrArr)
	case ast.KindBuiltinVarRef:
		if n.Type.IsArray() {
			e.writeHostArray(n, v)
		}
	}
}

// writeHostArray copies a builtin's rebuilt array result (e.g. sort's
// fresh permutation slice) back into a VarHostArray's fixed host buffer,
// the host-array counterpart of storeBack's pool-array copy.
func (e *Executor) writeHostArray(n *ast.Node, v value.Value) {
	bv, ok := e.vars.Lookup(n.Name)
	if !ok || bv.ReadOnly || bv.ArrayData == nil {
		return
	}
	copy(bv.ArrayData(), v.IntArr)
}
