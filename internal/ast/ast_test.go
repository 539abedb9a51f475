package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nksplang/nksp/internal/units"
)

func TestNewIntLitRoundTrips(t *testing.T) {
	tr := NewTree()
	id := tr.NewIntLit(42, units.Hertz, 1e3, false)
	n := tr.Node(id)
	assert.Equal(t, KindIntLit, n.Kind)
	assert.Equal(t, int64(42), n.IntVal)
	assert.Equal(t, Int, tr.ExprType(id))
	assert.Equal(t, units.Hertz, tr.UnitType(id))
}

func TestNewBinArithCarriesConstAndFinal(t *testing.T) {
	tr := NewTree()
	l := tr.NewIntLit(1, units.None, units.NoPrefixFactor, false)
	r := tr.NewIntLit(2, units.None, units.NoPrefixFactor, true)
	id := tr.NewBinArith("+", l, r, Int, units.None, units.NoPrefixFactor, true, true)
	assert.True(t, tr.IsFinal(id))
	assert.True(t, tr.IsConstExpr(id))
}

func TestNewIfStoresChildren(t *testing.T) {
	tr := NewTree()
	cond := tr.NewIntLit(1, units.None, units.NoPrefixFactor, false)
	then := tr.NewStmtList(nil)
	els := tr.NewStmtList(nil)
	id := tr.NewIf(cond, then, els)
	n := tr.Node(id)
	assert.Equal(t, KindIf, n.Kind)
	assert.Equal(t, []NodeID{cond, then, els}, n.Children)
}

func TestArrayTypeHelpers(t *testing.T) {
	assert.True(t, IntArray.IsArray())
	assert.False(t, Int.IsArray())
	assert.Equal(t, Int, IntArray.ElementType())
	assert.Equal(t, Real, RealArray.ElementType())
	assert.Equal(t, String, StringArray.ElementType())
}
