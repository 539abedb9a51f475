package preprocess

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nksplang/nksp/internal/diag"
)

func TestRunElidesInactiveBlock(t *testing.T) {
	src := []byte("before\nUSE_CODE_IF(FOO)\nhidden\nEND_USE_CODE\nafter\n")
	p := New(nil)
	sink := diag.NewCollector()
	out := p.Run(src, sink)

	assert.Equal(t, len(src), len(out), "byte offsets must stay stable")
	assert.NotContains(t, string(out), "hidden")
	assert.Contains(t, string(out), "before")
	assert.Contains(t, string(out), "after")
	assert.NotEmpty(t, sink.ElidedSpans)
}

func TestRunKeepsActiveConditionBlock(t *testing.T) {
	src := []byte("USE_CODE_IF(FOO)\nvisible\nEND_USE_CODE\n")
	p := New([]string{"FOO"})
	out := p.Run(src, diag.NewCollector())
	assert.Contains(t, string(out), "visible")
}

func TestRunSetConditionAffectsLaterBlock(t *testing.T) {
	src := []byte("SET_CONDITION(FOO)\nUSE_CODE_IF(FOO)\nvisible\nEND_USE_CODE\n")
	p := New(nil)
	out := p.Run(src, diag.NewCollector())
	assert.Contains(t, string(out), "visible")
}

func TestPatchSubstitutesScalarInitializer(t *testing.T) {
	src := []byte("declare patch $gain := 50")
	at := strings.Index(string(src), "50")
	locations := map[string]diag.CodeBlock{"gain": {FirstByte: at, Len: 2}}

	patched, original, err := Patch(src, locations, map[string]string{"gain": "99"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "declare patch $gain := 99", string(patched))
	assert.Equal(t, "50", original["gain"])
}

func TestPatchWithNoOverridesIsNoop(t *testing.T) {
	src := []byte("declare patch $gain := 50")
	patched, _, err := Patch(src, map[string]diag.CodeBlock{"gain": {FirstByte: 0, Len: 0}}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, src, patched)
}

func TestPatchRejectsArrayOverrideWithWrongElementCount(t *testing.T) {
	src := []byte("declare patch %a[3] := (1, 2, 3)")
	at := strings.Index(string(src), "(1, 2, 3)")
	locations := map[string]diag.CodeBlock{"a": {FirstByte: at, Len: len("(1, 2, 3)")}}
	declaredSize := map[string]int{"a": 3}

	_, _, err := Patch(src, locations, map[string]string{"a": "(1, 2)"}, declaredSize)
	require.Error(t, err)
}

func TestPatchAcceptsArrayOverrideWithMatchingElementCount(t *testing.T) {
	src := []byte("declare patch %a[3] := (1, 2, 3)")
	at := strings.Index(string(src), "(1, 2, 3)")
	locations := map[string]diag.CodeBlock{"a": {FirstByte: at, Len: len("(1, 2, 3)")}}
	declaredSize := map[string]int{"a": 3}

	patched, _, err := Patch(src, locations, map[string]string{"a": "(4, 5, 6)"}, declaredSize)
	require.NoError(t, err)
	assert.Contains(t, string(patched), "(4, 5, 6)")
}
