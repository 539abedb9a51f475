package cache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nksplang/nksp/internal/metrics"
	"github.com/nksplang/nksp/internal/parser"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func countingCompiler(calls *int64) Compiler {
	return func(source string, overrides map[string]string) (*parser.Result, error) {
		atomic.AddInt64(calls, 1)
		return &parser.Result{}, nil
	}
}

func TestLoadCompilesOnlyOnce(t *testing.T) {
	var calls int64
	c := New(countingCompiler(&calls), nil)

	e1, err := c.Load("source a", nil)
	require.NoError(t, err)
	e2, err := c.Load("source a", nil)
	require.NoError(t, err)

	assert.Same(t, e1, e2)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestLoadDedupesConcurrentCallers(t *testing.T) {
	var calls int64
	c := New(countingCompiler(&calls), nil)

	const n = 32
	var wg sync.WaitGroup
	entries := make([]*Entry, n)
	errs := make([]error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			entries[i], errs[i] = c.Load("shared source", nil)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, entries[0], entries[i])
	}
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))

	for i := 0; i < n; i++ {
		entries[i].Release()
	}
}

func TestDifferentOverridesAreDifferentEntries(t *testing.T) {
	var calls int64
	c := New(countingCompiler(&calls), nil)

	a, err := c.Load("source", map[string]string{"x": "1"})
	require.NoError(t, err)
	b, err := c.Load("source", map[string]string{"x": "2"})
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, int64(2), atomic.LoadInt64(&calls))
}

func TestReleaseToZeroEvictsAndAllowsRecompile(t *testing.T) {
	var calls int64
	c := New(countingCompiler(&calls), nil)

	e1, err := c.Load("source", nil)
	require.NoError(t, err)
	e1.Release()

	e2, err := c.Load("source", nil)
	require.NoError(t, err)
	defer e2.Release()

	assert.Equal(t, int64(2), atomic.LoadInt64(&calls))
}

func TestReleaseWithOutstandingRefDoesNotEvict(t *testing.T) {
	var calls int64
	c := New(countingCompiler(&calls), nil)

	a, err := c.Load("source", nil)
	require.NoError(t, err)
	b, err := c.Load("source", nil) // second retain of the same entry
	require.NoError(t, err)
	assert.Same(t, a, b)

	a.Release()

	c2, err := c.Load("source", nil)
	require.NoError(t, err)
	assert.Same(t, b, c2)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))

	b.Release()
	c2.Release()
}

func TestByWildcardSourceIgnoresOverrides(t *testing.T) {
	var calls int64
	c := New(countingCompiler(&calls), nil)

	a, err := c.Load("source", map[string]string{"x": "1"})
	require.NoError(t, err)
	defer a.Release()
	b, err := c.Load("source", map[string]string{"x": "2"})
	require.NoError(t, err)
	defer b.Release()
	other, err := c.Load("different source", nil)
	require.NoError(t, err)
	defer other.Release()

	matches := c.ByWildcardSource("source")
	assert.Len(t, matches, 2)
}

func TestCompileErrorIsNotCached(t *testing.T) {
	var calls int64
	compile := func(source string, overrides map[string]string) (*parser.Result, error) {
		atomic.AddInt64(&calls, 1)
		return nil, fmt.Errorf("boom")
	}
	c := New(compile, nil)

	_, err := c.Load("source", nil)
	require.Error(t, err)
	_, err = c.Load("source", nil)
	require.Error(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&calls))
}

func TestLoadRecordsCacheHitAndMissMetrics(t *testing.T) {
	var calls int64
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	c := New(countingCompiler(&calls), m)

	e1, err := c.Load("source", nil)
	require.NoError(t, err)
	defer e1.Release()
	assert.Equal(t, 1.0, counterValue(t, m.CacheMisses))
	assert.Equal(t, 0.0, counterValue(t, m.CacheHits))

	e2, err := c.Load("source", nil)
	require.NoError(t, err)
	defer e2.Release()
	assert.Equal(t, 1.0, counterValue(t, m.CacheMisses))
	assert.Equal(t, 1.0, counterValue(t, m.CacheHits))
}

func TestNilMetricsIsSafeToUse(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.IncCacheHit()
		m.IncCacheMiss()
	})
}
