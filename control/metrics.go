// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Per-engine Prometheus collectors. Every engine registers its own set under
// a constant "engine" label; a nil registerer keeps them unregistered, which
// still lets callers and tests read the values.

package control

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hioload_zstd"

// Metrics holds the counters one engine updates.
type Metrics struct {
	JobsCreated   prometheus.Counter
	JobsCompleted prometheus.Counter
	JobsFailed    prometheus.Counter
	JobsDeferred  prometheus.Counter
	BytesConsumed prometheus.Counter
	BytesProduced prometheus.Counter
	SyncPoints    prometheus.Counter
	FlushWaits    prometheus.Counter
	InFlight      prometheus.Gauge

	reg        prometheus.Registerer
	registered []prometheus.Collector
}

// NewMetrics builds the collectors for engine and registers them with reg
// when reg is not nil.
func NewMetrics(reg prometheus.Registerer, engine string) (*Metrics, error) {
	labels := prometheus.Labels{"engine": engine}
	counter := func(subsystem, name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}
	m := &Metrics{
		JobsCreated:   counter("jobs", "created_total", "Jobs handed to a worker."),
		JobsCompleted: counter("jobs", "completed_total", "Jobs fully flushed to the caller."),
		JobsFailed:    counter("jobs", "failed_total", "Jobs that ended with an error."),
		JobsDeferred:  counter("jobs", "deferred_total", "Job submissions refused because no worker was free."),
		BytesConsumed: counter("stream", "consumed_bytes_total", "Input bytes compressed by finished jobs."),
		BytesProduced: counter("stream", "produced_bytes_total", "Compressed bytes flushed to the caller."),
		SyncPoints:    counter("stream", "sync_points_total", "Rsyncable boundaries found in the input."),
		FlushWaits:    counter("stream", "flush_waits_total", "Times the caller blocked waiting for output."),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "jobs",
			Name:        "in_flight",
			Help:        "Jobs submitted and not yet fully flushed.",
			ConstLabels: labels,
		}),
		reg: reg,
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				m.Unregister()
				return nil, err
			}
			continue
		}
		m.registered = append(m.registered, c)
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.JobsCreated, m.JobsCompleted, m.JobsFailed, m.JobsDeferred,
		m.BytesConsumed, m.BytesProduced, m.SyncPoints, m.FlushWaits, m.InFlight,
	}
}

// Unregister removes the collectors this Metrics registered.
func (m *Metrics) Unregister() {
	if m.reg == nil {
		return
	}
	for _, c := range m.registered {
		m.reg.Unregister(c)
	}
	m.registered = nil
}
