package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nksplang/nksp/internal/builtins"
	"github.com/nksplang/nksp/internal/diag"
)

func parse(t *testing.T, source string) (*Result, *diag.Collector) {
	t.Helper()
	sink := diag.NewCollector()
	ctx := NewContext(sink, builtins.NewRegistry(), builtins.NewVarRegistry())
	return Parse([]byte(source), ctx), sink
}

func TestParseSimpleHandler(t *testing.T) {
	res, sink := parse(t, `
on init
  declare $x := 5
end on
`)
	require.Empty(t, sink.Diagnostics)
	_, ok := res.Handlers["init"]
	assert.True(t, ok)
}

func TestParseUndeclaredVariableIsAnError(t *testing.T) {
	_, sink := parse(t, `
on init
  $y := 1
end on
`)
	require.NotEmpty(t, sink.Diagnostics)
	assert.Equal(t, diag.Error, sink.Diagnostics[0].Kind)
}

func TestParseAssignTypeMismatchIsAnError(t *testing.T) {
	_, sink := parse(t, `
on init
  declare $x := 5
  declare ~y := 1.0
  $x := ~y
end on
`)
	found := false
	for _, d := range sink.Diagnostics {
		if d.Kind == diag.Error {
			found = true
		}
	}
	assert.True(t, found)
}

func TestParseConstReassignmentIsAnError(t *testing.T) {
	_, sink := parse(t, `
on init
  declare const $x := 5
  $x := 6
end on
`)
	found := false
	for _, d := range sink.Diagnostics {
		if d.Kind == diag.Error {
			found = true
		}
	}
	assert.True(t, found)
}

func TestParsePatchVariableLocationRecorded(t *testing.T) {
	res, sink := parse(t, `
declare patch $gain := 50

on init
end on
`)
	require.Empty(t, sink.Diagnostics)
	_, ok := res.PatchVarLocations["$gain"]
	assert.True(t, ok)
}

func TestParseUnrecognizedHandlerIsOnlyAWarning(t *testing.T) {
	_, sink := parse(t, `
on bogus
end on
`)
	require.Len(t, sink.Diagnostics, 1)
	assert.Equal(t, diag.Warning, sink.Diagnostics[0].Kind)
}

func TestParseFunctionCallAndDeclaration(t *testing.T) {
	res, sink := parse(t, `
function double
  declare $x := 2
end function

on init
  call double
end on
`)
	require.Empty(t, sink.Diagnostics)
	_, ok := res.Functions["double"]
	assert.True(t, ok)
}
