package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "error", Error.String())
	assert.Equal(t, "warning", Warning.String())
}

func TestCollectorAccumulatesAllKinds(t *testing.T) {
	c := NewCollector()
	c.Error("bad thing", CodeBlock{FirstLine: 1})
	c.Warning("minor thing", CodeBlock{FirstLine: 2})
	c.Elided(CodeBlock{FirstLine: 3})
	c.PatchVariable("$gain", CodeBlock{FirstLine: 4})

	assert.Len(t, c.Diagnostics, 2)
	assert.Len(t, c.ElidedSpans, 1)
	assert.Len(t, c.PatchVars, 1)
	assert.Equal(t, "$gain", c.PatchVars[0].Name)
}

func TestHasErrorsOnlyTrueForErrorKind(t *testing.T) {
	c := NewCollector()
	assert.False(t, c.HasErrors())
	c.Warning("minor thing", CodeBlock{})
	assert.False(t, c.HasErrors())
	c.Error("bad thing", CodeBlock{})
	assert.True(t, c.HasErrors())
}
