package value

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nksplang/nksp/internal/ast"
	"github.com/nksplang/nksp/internal/units"
)

func TestZeroOfArraysAreUnitFactorOne(t *testing.T) {
	v := ZeroOf(ast.IntArray, 3)
	assert.Len(t, v.IntArr, 3)
	for _, f := range v.IntFactor {
		assert.Equal(t, units.NoPrefixFactor, f)
	}
}

func TestAsFloatAppliesFactor(t *testing.T) {
	v := Int(5, units.Number{Factor: 1e3})
	assert.Equal(t, 5000.0, v.AsFloat())
}

func TestRealEqualExactAndWithinTolerance(t *testing.T) {
	assert.True(t, RealEqual(1.0, 1.0))
	assert.True(t, RealEqual(1.0, 1.0+1e-12))
	assert.False(t, RealEqual(1.0, 1.1))
}

func TestRealEqualRelativeToleranceForLargeValues(t *testing.T) {
	a := 1e12
	b := a + 1 // well within a relative tolerance of 1e-9 for this magnitude
	assert.True(t, RealEqual(a, b))
}
