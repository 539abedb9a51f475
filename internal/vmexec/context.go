package vmexec

import (
	"sync/atomic"

	"github.com/nksplang/nksp/internal/ast"
	"github.com/nksplang/nksp/internal/parser"
	"github.com/nksplang/nksp/internal/value"
)

// frame is one entry of the explicit control stack (spec §4.3:
// "(Statement*, subindex) frames"). subIndex's meaning is node-kind
// dependent: a running counter for statement lists, a one-shot "already
// descended" marker (set to 1) for branches and sync blocks.
type frame struct {
	node     ast.NodeID
	subIndex int
	// isSub marks a statement-list frame that is the body of a user
	// function invoked via "call" (spec §4.3/§7: "RETURN unwinds to the
	// innermost subroutine only"); the RETURN-unwind loop stops once it
	// pops a frame with isSub set.
	isSub bool
}

// Options configures one ExecContext's budgets (spec §4.3), independent
// of any particular script.
type Options struct {
	SoftInstructionBudget int
	HardInstructionBudget int
	SuspensionMicros      int64
	AutoSuspendEnabled    bool

	Now      func() int64
	RandInt  func(lo, hi int64) int64
	RandReal func(lo, hi float64) float64
	Print    func(timestampUs int64, text string)

	ExitResultEnabled bool
}

// ExecContext is the per-voice execution state of spec §3/§5: polyphonic
// pools, the control stack, and the abort/suspend/exit bookkeeping that
// survives across suspended exec() calls.
type ExecContext struct {
	global *GlobalStore
	poly   *PolyStore
	parsed *parser.Result
	opts   Options

	stack []frame
	sp    int // number of active frames; stack[:sp]

	status Status

	instrCount int
	syncDepth  int
	suspendUs  int64

	exitValue value.Value
	exitSet   bool

	aborted uint32 // atomic; set by SignalAbort, observed at each step
}

// NewExecContext allocates a voice's polyphonic storage and control stack,
// pre-sized once to requiredMaxStackSize so the audio-thread step loop
// never grows a slice (spec §4.3, mirrored from the teacher's frame
// pre-sizing in resizeFrame).
func NewExecContext(global *GlobalStore, poly *PolyStore, parsed *parser.Result, opts Options) *ExecContext {
	size := parsed.RequiredStackSize
	if size < 1 {
		size = 1
	}
	return &ExecContext{
		global: global,
		poly:   poly,
		parsed: parsed,
		opts:   opts,
		stack:  make([]frame, size),
		status: NotRunning,
	}
}

func (c *ExecContext) tree() *ast.Tree { return c.parsed.Tree }

func (c *ExecContext) funcBody(name string) (ast.NodeID, bool) {
	id, ok := c.parsed.Functions[name]
	return id, ok
}

// SignalAbort requests the executor terminate at the next step boundary
// (spec §4.3 "Cancellation"); safe to call from any goroutine.
func (c *ExecContext) SignalAbort() { atomic.StoreUint32(&c.aborted, 1) }

func (c *ExecContext) isAborted() bool { return atomic.LoadUint32(&c.aborted) != 0 }

func (c *ExecContext) Status() Status { return c.status }

func (c *ExecContext) SuspensionMicroseconds() int64 { return c.suspendUs }

func (c *ExecContext) ExitValue() (value.Value, bool) { return c.exitValue, c.exitSet }

func (c *ExecContext) InstructionCount() int { return c.instrCount }

// reset discards the stack, the suspension delta and the sync depth; the
// exit value is left for ExitValue to report (spec §4.3: "on
// completion... otherwise the stack is reset").
func (c *ExecContext) reset() {
	c.sp = 0
	c.suspendUs = 0
	c.syncDepth = 0
}

func (c *ExecContext) push(n ast.NodeID) {
	c.pushFrame(n, false)
}

func (c *ExecContext) pushSub(n ast.NodeID) {
	c.pushFrame(n, true)
}

func (c *ExecContext) pushFrame(n ast.NodeID, isSub bool) {
	if c.sp >= len(c.stack) {
		// Should never happen: requiredMaxStackSize is computed to bound
		// nesting depth exactly (spec §3 invariant). Treat as a VM bug,
		// not a user script error.
		c.status = Error
		return
	}
	c.stack[c.sp] = frame{node: n, isSub: isSub}
	c.sp++
}

func (c *ExecContext) pop() {
	if c.sp > 0 {
		c.sp--
	}
}

func (c *ExecContext) top() *frame {
	return &c.stack[c.sp-1]
}
