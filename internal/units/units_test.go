package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComposeFactor(t *testing.T) {
	assert.Equal(t, 1e3, ComposeFactor(Kilo))
	assert.Equal(t, 1e-3, ComposeFactor(Deci, Centi))
	assert.Equal(t, NoPrefixFactor, ComposeFactor())
}

func TestConvertFactorLossless(t *testing.T) {
	// 1000 at factor 1e-3 (ms) converted to factor 1 (s) is lossless: 1000*1e-3/1 = 1.
	assert.Equal(t, 1.0, ConvertFactor(1000, 1e-3, 1))
}

func TestConvertFactorRoundsWhenNeitherFactorDividesTheOther(t *testing.T) {
	// Neither 2 nor 3 evenly divides the other, so the result is rounded
	// rather than returned as an exact fraction: 1*2/3 = 0.667 -> 1.
	assert.Equal(t, 1.0, ConvertFactor(1, 2, 3))
}

func TestConvertFactorRoundsHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, 1.0, ConvertFactor(0.75, 2, 3))  // scaled = 0.5, rounds up
	assert.Equal(t, -1.0, ConvertFactor(-0.75, 2, 3)) // scaled = -0.5, rounds down
}

func TestConvertFactorSameFactorIsNoop(t *testing.T) {
	assert.Equal(t, 42.0, ConvertFactor(42, 1e3, 1e3))
}

func TestSmallerFactor(t *testing.T) {
	assert.Equal(t, 1e-3, SmallerFactor(1e-3, 1e3))
	assert.Equal(t, 1e-3, SmallerFactor(1e3, 1e-3))
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "Hz", Hertz.String())
	assert.Equal(t, "s", Seconds.String())
	assert.Equal(t, "B", Bel.String())
	assert.Equal(t, "", None.String())
}
