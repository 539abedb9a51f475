// Package metrics is the optional Prometheus instrumentation seam spec.md's
// host-integration boundary can plug in (spec.md §5 "the VM reports load
// through a small set of counters a host can scrape without depending on a
// specific exporter"): instructions stepped, suspensions, aborts and script
// cache hit/miss, collected behind one struct neither the executor nor the
// cache package needs to know the exporter for. A nil *Metrics is always
// safe to use, so an Engine built without a registerer stays unmetered.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics is a small bundle of counters wired into internal/vmexec's step
// loop and internal/cache's Load, mirroring the teacher's own preference
// for an explicit struct threaded through constructors over package-level
// state (Design Notes §9).
type Metrics struct {
	Instructions prometheus.Counter
	Suspensions  prometheus.Counter
	Aborts       prometheus.Counter
	CacheHits    prometheus.Counter
	CacheMisses  prometheus.Counter
}

// New builds a Metrics set and registers it with reg. Pass
// prometheus.DefaultRegisterer for the global registry, or
// prometheus.NewRegistry() to keep a test's metrics isolated.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Instructions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nksp_instructions_total",
			Help: "VM instructions stepped across all exec contexts.",
		}),
		Suspensions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nksp_suspensions_total",
			Help: "Exec calls that ended suspended, by an instruction budget or wait().",
		}),
		Aborts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nksp_aborts_total",
			Help: "Exec calls that finished via abort or runtime error.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nksp_cache_hits_total",
			Help: "Script cache lookups served from an already-compiled entry.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nksp_cache_misses_total",
			Help: "Script cache lookups that triggered a compile.",
		}),
	}
	reg.MustRegister(m.Instructions, m.Suspensions, m.Aborts, m.CacheHits, m.CacheMisses)
	return m
}

func (m *Metrics) IncInstructions() {
	if m != nil {
		m.Instructions.Inc()
	}
}

func (m *Metrics) IncSuspensions() {
	if m != nil {
		m.Suspensions.Inc()
	}
}

func (m *Metrics) IncAborts() {
	if m != nil {
		m.Aborts.Inc()
	}
}

func (m *Metrics) IncCacheHit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

func (m *Metrics) IncCacheMiss() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}
