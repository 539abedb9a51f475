package vmexec

import (
	"github.com/nksplang/nksp/internal/parser"
	"github.com/nksplang/nksp/internal/units"
)

// GlobalStore holds the four global pools of spec §3. CreateExecContext
// allocates a fresh instance for each ExecContext, so global variables are
// not shared between contexts of the same script.
type GlobalStore struct {
	Ints        []int64
	IntFactors  []float64
	Reals       []float64
	RealFactors []float64
	Strings     []string
}

func NewGlobalStore(layout parser.PoolLayout) *GlobalStore {
	g := &GlobalStore{
		Ints:        make([]int64, layout.Ints),
		IntFactors:  make([]float64, layout.Ints),
		Reals:       make([]float64, layout.Reals),
		RealFactors: make([]float64, layout.Reals),
		Strings:     make([]string, layout.Strings),
	}
	for i := range g.IntFactors {
		g.IntFactors[i] = units.NoPrefixFactor
	}
	for i := range g.RealFactors {
		g.RealFactors[i] = units.NoPrefixFactor
	}
	return g
}

// PolyStore holds the three polyphonic pools (spec §3: "mirror the first
// three excluding strings" — polyphonic is prohibited on string variables).
type PolyStore struct {
	Ints        []int64
	IntFactors  []float64
	Reals       []float64
	RealFactors []float64
}

func NewPolyStore(layout parser.PoolLayout) *PolyStore {
	p := &PolyStore{
		Ints:        make([]int64, layout.Ints),
		IntFactors:  make([]float64, layout.Ints),
		Reals:       make([]float64, layout.Reals),
		RealFactors: make([]float64, layout.Reals),
	}
	for i := range p.IntFactors {
		p.IntFactors[i] = units.NoPrefixFactor
	}
	for i := range p.RealFactors {
		p.RealFactors[i] = units.NoPrefixFactor
	}
	return p
}

// Reset zeroes a voice's polyphonic storage (spec §3: "zeroed on voice
// start").
func (p *PolyStore) Reset() {
	for i := range p.Ints {
		p.Ints[i] = 0
		p.IntFactors[i] = units.NoPrefixFactor
	}
	for i := range p.Reals {
		p.Reals[i] = 0
		p.RealFactors[i] = units.NoPrefixFactor
	}
}
