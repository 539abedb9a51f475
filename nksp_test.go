package nksp

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nksplang/nksp/internal/vmexec"
)

func gatheredCounter(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			require.Len(t, f.Metric, 1)
			return f.Metric[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %q not found", name)
	return 0
}

func loadOK(t *testing.T, e *Engine, source string) *ParsedScript {
	t.Helper()
	script, err := e.LoadScript(source, nil)
	require.NoError(t, err)
	require.False(t, script.HasErrors(), "unexpected diagnostics: %+v", script.Diagnostics)
	t.Cleanup(script.Release)
	return script
}

func TestExitWithPlainInt(t *testing.T) {
	e := New(Options{ExitResultEnabled: true})
	script := loadOK(t, e, `
on init
  exit(42)
end on
`)
	ctx := e.CreateExecContext(script)
	status := e.Exec(script, ctx, "init")
	assert.Equal(t, vmexec.NotRunning, status)
	v, ok := ctx.ExitValue()
	require.True(t, ok)
	assert.Equal(t, int64(42), v.I)
}

func TestExitResultDisabledByDefault(t *testing.T) {
	e := New(Options{})
	script := loadOK(t, e, `
on init
  exit(42)
end on
`)
	ctx := e.CreateExecContext(script)
	e.Exec(script, ctx, "init")
	_, ok := ctx.ExitValue()
	assert.False(t, ok)
}

func TestGlobalDeclareInitializerRuns(t *testing.T) {
	e := New(Options{ExitResultEnabled: true})
	script := loadOK(t, e, `
declare $counter := 7

on init
  exit($counter)
end on
`)
	ctx := e.CreateExecContext(script)
	e.Exec(script, ctx, "init")
	v, ok := ctx.ExitValue()
	require.True(t, ok)
	assert.Equal(t, int64(7), v.I)
}

func TestIncDecMutatesVariable(t *testing.T) {
	e := New(Options{ExitResultEnabled: true})
	script := loadOK(t, e, `
on init
  declare $x := 10
  inc($x)
  inc($x)
  dec($x)
  exit($x)
end on
`)
	ctx := e.CreateExecContext(script)
	e.Exec(script, ctx, "init")
	v, _ := ctx.ExitValue()
	assert.Equal(t, int64(11), v.I)
}

func TestArraySortMutatesBackingStore(t *testing.T) {
	e := New(Options{ExitResultEnabled: true})
	script := loadOK(t, e, `
on init
  declare %a[3] := (3, 1, 2)
  sort(%a, 0)
  exit(%a[0])
end on
`)
	ctx := e.CreateExecContext(script)
	e.Exec(script, ctx, "init")
	v, _ := ctx.ExitValue()
	assert.Equal(t, int64(1), v.I)
}

func TestMetricsRegistererRecordsInstructionsAndSuspensions(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := New(Options{
		ExitResultEnabled:     true,
		AutoSuspendEnabled:    true,
		SoftInstructionBudget: 5,
		HardInstructionBudget: 8,
		MetricsRegisterer:     reg,
	})
	script := loadOK(t, e, `
declare $i := 0

on init
  while ($i < 1000)
    inc($i)
  end while
  exit($i)
end on
`)
	ctx := e.CreateExecContext(script)
	status := e.Exec(script, ctx, "init")
	require.Equal(t, vmexec.Suspended, status)

	assert.Greater(t, gatheredCounter(t, reg, "nksp_instructions_total"), 0.0)
	assert.Equal(t, 1.0, gatheredCounter(t, reg, "nksp_suspensions_total"))
	assert.Equal(t, 0.0, gatheredCounter(t, reg, "nksp_aborts_total"))
	assert.Equal(t, 1.0, gatheredCounter(t, reg, "nksp_cache_misses_total"))
}

func TestEngineWithoutMetricsRegistererRunsUnmetered(t *testing.T) {
	e := New(Options{ExitResultEnabled: true})
	script := loadOK(t, e, `
on init
  exit(1)
end on
`)
	ctx := e.CreateExecContext(script)
	assert.NotPanics(t, func() { e.Exec(script, ctx, "init") })
}

func TestWhileLoopBudgetSuspendsAndResumes(t *testing.T) {
	e := New(Options{
		ExitResultEnabled:     true,
		AutoSuspendEnabled:    true,
		SoftInstructionBudget: 5,
		HardInstructionBudget: 8,
	})
	script := loadOK(t, e, `
declare $i := 0

on init
  while ($i < 1000)
    inc($i)
  end while
  exit($i)
end on
`)
	ctx := e.CreateExecContext(script)

	status := e.Exec(script, ctx, "init")
	require.Equal(t, vmexec.Suspended, status)
	assert.Greater(t, ctx.SuspensionMicroseconds(), int64(0))

	for status == vmexec.Suspended {
		status = e.Exec(script, ctx, "init")
	}
	assert.Equal(t, vmexec.NotRunning, status)
	v, ok := ctx.ExitValue()
	require.True(t, ok)
	assert.Equal(t, int64(1000), v.I)
}

func TestSyncBlockSuppressesAutoSuspend(t *testing.T) {
	e := New(Options{
		ExitResultEnabled:     true,
		AutoSuspendEnabled:    true,
		SoftInstructionBudget: 2,
		HardInstructionBudget: 4,
	})
	script := loadOK(t, e, `
declare $i := 0

on init
  sync
    while ($i < 50)
      inc($i)
    end while
    exit($i)
  end sync
end on
`)
	ctx := e.CreateExecContext(script)
	status := e.Exec(script, ctx, "init")
	require.Equal(t, vmexec.NotRunning, status)
	v, _ := ctx.ExitValue()
	assert.Equal(t, int64(50), v.I)
}

func TestEventHandlerByName(t *testing.T) {
	e := New(Options{})
	script := loadOK(t, e, `
on init
end on

on note
end on
`)
	assert.True(t, e.EventHandlerByName(script, "init"))
	assert.True(t, e.EventHandlerByName(script, "note"))
	assert.False(t, e.EventHandlerByName(script, "release"))
}

func TestLoadScriptReportsDiagnosticsInsteadOfError(t *testing.T) {
	e := New(Options{})
	script, err := e.LoadScript(`
on init
  $undeclared := 5
end on
`, nil)
	require.NoError(t, err)
	defer script.Release()
	assert.True(t, script.HasErrors())
}

func TestPatchVariableOverride(t *testing.T) {
	e := New(Options{ExitResultEnabled: true})
	source := `
declare patch $gain := 50

on init
  exit($gain)
end on
`
	script := loadOK(t, e, source)
	assert.Contains(t, script.PatchVariableNames(), "$gain")

	overridden, err := e.LoadScript(source, map[string]string{"$gain": "99"})
	require.NoError(t, err)
	defer overridden.Release()
	require.False(t, overridden.HasErrors())

	ctx := e.CreateExecContext(overridden)
	e.Exec(overridden, ctx, "init")
	v, ok := ctx.ExitValue()
	require.True(t, ok)
	assert.Equal(t, int64(99), v.I)
}

func TestLoadScriptDedupesIdenticalSource(t *testing.T) {
	e := New(Options{})
	source := "on init\nend on\n"
	a, err := e.LoadScript(source, nil)
	require.NoError(t, err)
	defer a.Release()
	b, err := e.LoadScript(source, nil)
	require.NoError(t, err)
	defer b.Release()

	assert.Equal(t, 1, e.ByWildcardSource(source))
}

func TestRegisterIntVariableReadableAndWritable(t *testing.T) {
	e := New(Options{ExitResultEnabled: true})
	var stored int64 = 5
	e.RegisterIntVariable("$TEST_VAR", false,
		func() int64 { return stored },
		func(v int64) { stored = v })

	script := loadOK(t, e, `
on init
  $TEST_VAR := 123
  exit($TEST_VAR)
end on
`)
	ctx := e.CreateExecContext(script)
	e.Exec(script, ctx, "init")
	v, _ := ctx.ExitValue()
	assert.Equal(t, int64(123), v.I)
	assert.Equal(t, int64(123), stored)
}

func TestSignalAbortStopsExecutionWithError(t *testing.T) {
	e := New(Options{
		AutoSuspendEnabled:    true,
		SoftInstructionBudget: 1000,
		HardInstructionBudget: 2000,
	})
	script := loadOK(t, e, `
declare $i := 0

on init
  while (1 = 1)
    inc($i)
  end while
end on
`)
	ctx := e.CreateExecContext(script)
	ctx.SignalAbort()
	status := e.Exec(script, ctx, "init")
	assert.Equal(t, vmexec.Error, status)
}

func TestCallInvokesUserFunctionAndReturns(t *testing.T) {
	e := New(Options{ExitResultEnabled: true})
	script := loadOK(t, e, `
declare $result := 0

function doubleResult
  $result := $result * 2
end function

on init
  $result := 21
  call doubleResult
  exit($result)
end on
`)
	ctx := e.CreateExecContext(script)
	status := e.Exec(script, ctx, "init")
	assert.Equal(t, vmexec.NotRunning, status)
	v, ok := ctx.ExitValue()
	require.True(t, ok)
	assert.Equal(t, int64(42), v.I)
}

func TestSyntaxTokens(t *testing.T) {
	e := New(Options{})
	toks := e.SyntaxTokens("declare $x := 1")
	require.NotEmpty(t, toks)
	assert.Equal(t, "declare", toks[0].Text)
}
