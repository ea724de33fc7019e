// Package api
// Author: momentics
//
// Live introspection of engines and pools.

package api

// Debug exposes named probes evaluated on demand.
type Debug interface {
	// DumpState evaluates every registered probe and returns the results
	// keyed by probe name.
	DumpState() map[string]any

	// RegisterProbe adds or replaces a probe; fn is called on every dump.
	RegisterProbe(name string, fn func() any)
}
