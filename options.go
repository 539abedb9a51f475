package nksp

import "github.com/prometheus/client_golang/prometheus"

// Options configures an Engine, mirroring yaegi's interp.Options pattern:
// one plain struct passed into New, no package-level state.
type Options struct {
	// AutoSuspendEnabled enables budget-driven auto-suspension outside
	// sync blocks (spec.md §4.3). New does not default it, so the zero
	// value of Options disables it and callers must set it explicitly.
	AutoSuspendEnabled bool

	// ExitResultEnabled controls whether exit(value) populates the
	// context's exit value (spec.md §6 "set_exit_result_enabled").
	ExitResultEnabled bool

	// SoftInstructionBudget and HardInstructionBudget bound a single
	// Exec call's step count before auto-suspension / forced suspension
	// (spec.md §4.3). Zero means "use the engine default" (70 / 210).
	SoftInstructionBudget int
	HardInstructionBudget int

	// SuspensionMicros is the fixed delta scheduled on suspension
	// (spec.md §4.3). Zero means "use the engine default" (1000us).
	SuspensionMicros int64

	// HostConditions seeds the preprocessor's active condition set
	// (spec.md §4.1: "seeded by host-supplied built-ins"), e.g.
	// "NKSP_NO_MESSAGE" to elide calls to message() at parse time.
	HostConditions []string

	// Now, RandInt, RandReal and Print are host callbacks wired into
	// every ExecContext created by this Engine (spec.md §6 registration
	// surface). Now defaults to wall-clock Unix microseconds, RandInt/
	// RandReal default to math/rand-backed generators, and Print
	// defaults to a no-op if left nil.
	Now      func() int64
	RandInt  func(lo, hi int64) int64
	RandReal func(lo, hi float64) float64
	Print    func(timestampUs int64, text string)

	// MetricsRegisterer, if set, registers the Engine's instruction/
	// suspension/abort and script cache hit/miss counters with it
	// (spec.md §5's optional metrics seam). Left nil, the Engine runs
	// unmetered; pass prometheus.DefaultRegisterer to scrape the global
	// registry, or a dedicated prometheus.NewRegistry() to isolate it.
	MetricsRegisterer prometheus.Registerer
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = defaultNow
	}
	if o.RandInt == nil {
		o.RandInt = defaultRandInt
	}
	if o.RandReal == nil {
		o.RandReal = defaultRandReal
	}
	if o.Print == nil {
		o.Print = func(int64, string) {}
	}
	return o
}
