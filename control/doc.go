// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime control plane for compression engines: Prometheus metrics, live
// configuration with reload listeners, and debug probe registration.
//
// Provides concurrent-safe state handling primitives including:
//   - Snapshot config reads and merged updates with synchronous listeners
//   - Per-engine Prometheus counters and gauges
//   - State export through named debug probes
package control
