// control/debug.go
// Author: momentics <momentics@gmail.com>
//
// Runtime debug handler and probe reflector for internal inspection.

package control

import (
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/momentics/hioload-zstd/api"
)

// DebugProbes holds registered probe functions.
type DebugProbes struct {
	probes *xsync.Map[string, func() any]
}

// NewDebugProbes creates a probe registry.
func NewDebugProbes() *DebugProbes {
	return &DebugProbes{
		probes: xsync.NewMap[string, func() any](),
	}
}

// RegisterProbe inserts a named debug hook, replacing any previous one.
func (dp *DebugProbes) RegisterProbe(name string, fn func() any) {
	if fn == nil {
		dp.probes.Delete(name)
		return
	}
	dp.probes.Store(name, fn)
}

// Probe runs a single probe.
func (dp *DebugProbes) Probe(name string) (any, bool) {
	fn, ok := dp.probes.Load(name)
	if !ok {
		return nil, false
	}
	return fn(), true
}

// DumpState returns output of all probes.
func (dp *DebugProbes) DumpState() map[string]any {
	out := make(map[string]any, dp.probes.Size())
	dp.probes.Range(func(k string, fn func() any) bool {
		out[k] = fn()
		return true
	})
	return out
}

var _ api.Debug = (*DebugProbes)(nil)
