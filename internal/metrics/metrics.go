// Package metrics exposes the latest benchmark samples as Prometheus metrics.
package metrics

import (
	"github.com/appnet-org/wirebench/internal/bench"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	namespace = "wirebench"
)

// Recorder keeps one gauge set per client, overwritten every cycle.
type Recorder struct {
	registry *prometheus.Registry

	DataSizeKB             *prometheus.GaugeVec
	NetworkSeconds         *prometheus.GaugeVec
	DeserializationSeconds *prometheus.GaugeVec
	ClampedTotal           *prometheus.CounterVec
	FailuresTotal          *prometheus.CounterVec
	CyclesTotal            prometheus.Counter
}

// NewRecorder creates a Recorder with its own registry, including the Go
// and process collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		DataSizeKB: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "data_size_kb",
				Help:      "Response body size of the last call, in kilobytes",
			},
			[]string{"client"},
		),
		NetworkSeconds: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "network_seconds",
				Help:      "Time until response headers arrived in the last call",
			},
			[]string{"client"},
		),
		DeserializationSeconds: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "deserialization_seconds",
				Help:      "Time from response headers to a fully decoded response in the last call",
			},
			[]string{"client"},
		),
		ClampedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "clamped_total",
				Help:      "Samples flagged for a negative deserialization time",
			},
			[]string{"client"},
		),
		FailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "failures_total",
				Help:      "Calls that produced no sample",
			},
			[]string{"client"},
		),
		CyclesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycles_total",
				Help:      "Completed benchmark cycles",
			},
		),
	}

	r.registry.MustRegister(collectors.NewGoCollector())
	r.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.registry.MustRegister(
		r.DataSizeKB,
		r.NetworkSeconds,
		r.DeserializationSeconds,
		r.ClampedTotal,
		r.FailuresTotal,
		r.CyclesTotal,
	)
	return r
}

// Registry returns the registry the metrics are registered with.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Observe implements bench.Observer. A failed client's gauges are removed so
// a stale value is never scraped as current.
func (r *Recorder) Observe(c bench.Cycle) {
	r.CyclesTotal.Inc()

	for _, s := range c.Samples {
		r.DataSizeKB.WithLabelValues(s.Client).Set(s.DataSizeKB)
		r.NetworkSeconds.WithLabelValues(s.Client).Set(s.NetworkSeconds)
		r.DeserializationSeconds.WithLabelValues(s.Client).Set(s.DeserializationSeconds)
		if s.Clamped {
			r.ClampedTotal.WithLabelValues(s.Client).Inc()
		}
	}

	for _, f := range c.Failures {
		r.FailuresTotal.WithLabelValues(f.Client).Inc()
		r.DataSizeKB.DeleteLabelValues(f.Client)
		r.NetworkSeconds.DeleteLabelValues(f.Client)
		r.DeserializationSeconds.DeleteLabelValues(f.Client)
	}
}
