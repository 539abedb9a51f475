// Package nksp implements the NKSP scripting-language front end and
// real-time virtual machine (spec.md §§1-8): preprocessing, parsing and
// type/unit checking, a budget-stepped tree-walking executor, a built-in
// function/variable registry, and a reference-counted script cache. It
// mirrors the top-level shape of yaegi's interp.go: one Options struct fed
// into New, returning an Engine that owns every other piece of state.
package nksp

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/nksplang/nksp/internal/builtins"
	"github.com/nksplang/nksp/internal/cache"
	"github.com/nksplang/nksp/internal/diag"
	"github.com/nksplang/nksp/internal/lexer"
	"github.com/nksplang/nksp/internal/metrics"
	"github.com/nksplang/nksp/internal/parser"
	"github.com/nksplang/nksp/internal/preprocess"
	"github.com/nksplang/nksp/internal/vmexec"
)

// Engine is the embedding surface of spec.md §6: load scripts, create
// per-voice execution contexts, and run event handlers against them. One
// Engine instance is shared by every voice and every loaded script of one
// host session.
type Engine struct {
	opts Options

	fns   *builtins.Registry
	vars  *builtins.VarRegistry
	exec  *vmexec.Executor
	cache *cache.Cache
}

// New constructs an Engine. Calling New never fails: registration hooks
// are added afterward via RegisterFunction/RegisterIntVariable/etc.
func New(opts Options) *Engine {
	opts = opts.withDefaults()

	e := &Engine{
		opts: opts,
		fns:  builtins.NewRegistry(),
		vars: builtins.NewVarRegistry(),
	}
	var m *metrics.Metrics
	if opts.MetricsRegisterer != nil {
		m = metrics.New(opts.MetricsRegisterer)
	}
	e.exec = vmexec.NewExecutor(e.fns, e.vars, m)
	e.cache = cache.New(e.compile, m)
	return e
}

func defaultNow() int64 { return time.Now().UnixMicro() }

func defaultRandInt(lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	return lo + rand.Int63n(hi-lo+1)
}

func defaultRandReal(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + rand.Float64()*(hi-lo)
}

// ParsedScript is the host-visible result of LoadScript (spec.md §6:
// "always returns a script object so callers can inspect diagnostics").
type ParsedScript struct {
	ID uuid.UUID

	Diagnostics []diag.Diagnostic
	ElidedSpans []diag.CodeBlock

	// OriginalPatchInitializers holds the source text of each patch
	// variable's default initializer, as it read before any override was
	// textually substituted (spec.md §6: "Optional out-parameter returns
	// the original default initializers of any patch variables").
	OriginalPatchInitializers map[string]string

	entry *cache.Entry
}

// HasErrors reports whether the script has any parse error and is
// therefore not executable (spec.md §7).
func (s *ParsedScript) HasErrors() bool {
	for _, d := range s.Diagnostics {
		if d.Kind == diag.Error {
			return true
		}
	}
	return false
}

// Release drops this ParsedScript's reference on the underlying cache
// entry. Call it when the host is done with the script (e.g. an
// instrument is unloaded).
func (s *ParsedScript) Release() {
	if s.entry != nil {
		s.entry.Release()
	}
}

// PatchVariableNames lists every patch-declared variable found in the
// script, for tooling that wants to offer overrides before loading a
// voice (spec.md §6: "Optional out-parameter returns the original default
// initializers of any patch variables found in the source").
func (s *ParsedScript) PatchVariableNames() []string {
	names := make([]string, 0, len(s.entry.Result.PatchVarLocations))
	for n := range s.entry.Result.PatchVarLocations {
		names = append(names, n)
	}
	return names
}

func (e *Engine) compile(source string, overrides map[string]string) (*parser.Result, error) {
	pp := preprocess.New(e.opts.HostConditions)
	sink := diag.NewCollector()
	elided := pp.Run([]byte(source), sink)

	ctx := parser.NewContext(sink, e.fns, e.vars)
	result := parser.Parse(elided, ctx)

	if len(overrides) == 0 {
		result.Diagnostics = sink.Diagnostics
		result.ElidedSpans = sink.ElidedSpans
		return result, nil
	}

	patched, _, err := preprocess.Patch(elided, result.PatchVarLocations, overrides, result.PatchVarArraySize)
	if err != nil {
		return nil, errors.Wrap(err, "nksp: patching script")
	}

	sink2 := diag.NewCollector()
	ctx2 := parser.NewContext(sink2, e.fns, e.vars)
	result2 := parser.Parse(patched, ctx2)
	result2.Diagnostics = sink2.Diagnostics
	result2.ElidedSpans = sink2.ElidedSpans
	return result2, nil
}

// LoadScript parses source, applying any patch-variable overrides, and
// returns a ParsedScript (spec.md §6 "load_script"). The returned script
// always carries its diagnostics, even on parse failure; check
// ParsedScript.HasErrors before calling CreateExecContext/Exec.
func (e *Engine) LoadScript(source string, overrides map[string]string) (*ParsedScript, error) {
	entry, err := e.cache.Load(source, overrides)
	if err != nil {
		return nil, errors.Wrap(err, "nksp: loading script")
	}

	original := map[string]string{}
	if len(overrides) > 0 {
		pp := preprocess.New(e.opts.HostConditions)
		elided := pp.Run([]byte(source), diag.NewCollector())
		_, orig, err := preprocess.Patch(elided, entry.Result.PatchVarLocations, overrides, entry.Result.PatchVarArraySize)
		if err == nil {
			original = orig
		}
	}

	return &ParsedScript{
		ID:                        uuid.New(),
		Diagnostics:               entry.Result.Diagnostics,
		ElidedSpans:               entry.Result.ElidedSpans,
		OriginalPatchInitializers: original,
		entry:                     entry,
	}, nil
}

// ByWildcardSource reports how many cache entries hold this source text,
// regardless of patch-variable overrides (spec.md
// §4.5's wildcard lookup, for tooling that lists all consumers of a
// script).
func (e *Engine) ByWildcardSource(source string) int {
	return len(e.cache.ByWildcardSource(source))
}

// CreateExecContext allocates a voice's polyphonic storage and control
// stack, sized per the script (spec.md §6 "create_exec_context"). Exec
// never resizes the stack, but each built-in call made during Exec still
// allocates its argument slice and call context.
func (e *Engine) CreateExecContext(script *ParsedScript) *vmexec.ExecContext {
	global := vmexec.NewGlobalStore(script.entry.Result.GlobalPools)
	poly := vmexec.NewPolyStore(script.entry.Result.PolyPools)
	ctx := vmexec.NewExecContext(global, poly, script.entry.Result, vmexec.Options{
		SoftInstructionBudget: e.opts.SoftInstructionBudget,
		HardInstructionBudget: e.opts.HardInstructionBudget,
		SuspensionMicros:      e.opts.SuspensionMicros,
		AutoSuspendEnabled:    e.opts.AutoSuspendEnabled,
		ExitResultEnabled:     e.opts.ExitResultEnabled,
		Now:                   e.opts.Now,
		RandInt:               e.opts.RandInt,
		RandReal:              e.opts.RandReal,
		Print:                 e.opts.Print,
	})
	// Top-level declare statements sit outside every "on ... end on" block,
	// so they never land in the handler table; run them once up front to
	// seed the new context's global/polyphonic storage (spec.md §3).
	e.exec.RunBody(ctx, script.entry.Result.GlobalInit)
	return ctx
}

// Exec runs ctx's handler until completion, suspension, or error
// (spec.md §6 "exec"). script must not have HasErrors(); exec refuses a
// script with parse errors by returning ERROR immediately.
func (e *Engine) Exec(script *ParsedScript, ctx *vmexec.ExecContext, handlerName string) vmexec.Status {
	if script.HasErrors() {
		return vmexec.NotRunning | vmexec.Error
	}
	return e.exec.Exec(ctx, handlerName)
}

// EventHandlerByName reports whether script defines the named event
// handler (spec.md §6 "event_handler_by_name").
func (e *Engine) EventHandlerByName(script *ParsedScript, name string) bool {
	_, ok := script.entry.Result.Handlers[name]
	return ok
}

// EventHandler returns the handler name registered for one of the
// $NI_CB_TYPE_* constants (spec.md §6 "event_handler(index)").
func (e *Engine) EventHandler(index int) (string, bool) {
	name, ok := handlerNameByCBType[index]
	return name, ok
}

var handlerNameByCBType = map[int]string{
	builtins.CBTypeInit:       "init",
	builtins.CBTypeNote:       "note",
	builtins.CBTypeRelease:    "release",
	builtins.CBTypeController: "controller",
	builtins.CBTypeRPN:        "rpn",
	builtins.CBTypeNRPN:       "nrpn",
}

// SyntaxTokens returns source's tokens with byte-accurate spans and a type
// classifier, for editor tooling (spec.md §6 "syntax_tokens").
func (e *Engine) SyntaxTokens(source string) []lexer.Token {
	return lexer.SyntaxTokens([]byte(source))
}

// SetAutoSuspendEnabled toggles budget-driven auto-suspension for every
// ExecContext created afterward (spec.md §6).
func (e *Engine) SetAutoSuspendEnabled(v bool) { e.opts.AutoSuspendEnabled = v }

// SetExitResultEnabled toggles whether exit(value) populates a context's
// exit value for every ExecContext created afterward (spec.md §6).
func (e *Engine) SetExitResultEnabled(v bool) { e.opts.ExitResultEnabled = v }
