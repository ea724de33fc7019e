// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

// control_test.go — probes, config listeners and metric registration.
package control_test

import (
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-zstd/control"
)

func TestDebugProbes_DumpState(t *testing.T) {
	dp := control.NewDebugProbes()
	var calls int64
	dp.RegisterProbe("a", func() any { atomic.AddInt64(&calls, 1); return 1 })
	dp.RegisterProbe("b", func() any { return "two" })

	state := dp.DumpState()
	assert.Equal(t, map[string]any{"a": 1, "b": "two"}, state)
	assert.EqualValues(t, 1, atomic.LoadInt64(&calls))

	v, ok := dp.Probe("b")
	require.True(t, ok)
	assert.Equal(t, "two", v)

	dp.RegisterProbe("a", nil)
	_, ok = dp.Probe("a")
	assert.False(t, ok)
	assert.Len(t, dp.DumpState(), 1)
}

func TestConfigStore_ListenersSeeOnlyChanges(t *testing.T) {
	cs := control.NewConfigStore()
	var seen []map[string]any
	cs.OnReload(func(changed map[string]any) {
		// listeners may read the store
		_, _ = cs.Get("level")
		seen = append(seen, changed)
	})

	cs.SetConfig(map[string]any{"level": 3, "name": "x"})
	cs.SetConfig(map[string]any{"level": 3})
	cs.SetConfig(map[string]any{"level": 9})

	require.Len(t, seen, 2)
	assert.Equal(t, map[string]any{"level": 3, "name": "x"}, seen[0])
	assert.Equal(t, map[string]any{"level": 9}, seen[1])

	snap := cs.GetSnapshot()
	snap["level"] = 1
	v, ok := cs.Get("level")
	require.True(t, ok)
	assert.Equal(t, 9, v)
}

func TestConfigStore_ListenerAddedDuringReloadRunsNextTime(t *testing.T) {
	cs := control.NewConfigStore()
	var late int
	var once bool
	cs.OnReload(func(map[string]any) {
		if !once {
			once = true
			cs.OnReload(func(map[string]any) { late++ })
		}
	})

	cs.SetConfig(map[string]any{"level": 1})
	assert.Zero(t, late, "a listener registered mid-reload misses that reload")
	cs.SetConfig(map[string]any{"level": 2})
	assert.Equal(t, 1, late)
}

func TestMetrics_RegisterAndUnregister(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := control.NewMetrics(reg, "e1")
	require.NoError(t, err)

	m.JobsCreated.Inc()
	m.BytesConsumed.Add(42)
	m.InFlight.Set(3)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsCreated))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.BytesConsumed))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.InFlight))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 9, n)

	// a second engine gets its own label value
	m2, err := control.NewMetrics(reg, "e2")
	require.NoError(t, err)
	m2.JobsCreated.Inc()
	n, err = testutil.GatherAndCount(reg, "hioload_zstd_jobs_created_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	m.Unregister()
	m2.Unregister()
	n, err = testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMetrics_Unregistered(t *testing.T) {
	m, err := control.NewMetrics(nil, "solo")
	require.NoError(t, err)
	m.FlushWaits.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FlushWaits))
	m.Unregister()
}
