// Package metrics exposes a small Prometheus registry for the discovery
// engine: probe outcomes, phase durations, and the device count from the
// last completed run.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	registry *Registry
)

// Registry holds every metric this engine publishes.
type Registry struct {
	ProbeTotal     *prometheus.CounterVec
	PhaseDuration  *prometheus.HistogramVec
	DevicesLastRun prometheus.Gauge
}

// Get returns the global metrics registry, creating and registering it with
// the default Prometheus registerer on first use.
func Get() *Registry {
	once.Do(func() {
		registry = newRegistry()
	})
	return registry
}

func newRegistry() *Registry {
	r := &Registry{}

	r.ProbeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_probe_total",
		Help: "Total probe attempts by protocol and resulting status",
	}, []string{"protocol", "status"})

	r.PhaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "discovery_phase_duration_seconds",
		Help:    "Wall-clock duration of each engine phase",
		Buckets: prometheus.DefBuckets,
	}, []string{"phase"})

	r.DevicesLastRun = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "discovery_devices_last_snapshot",
		Help: "Number of devices present in the most recently written snapshot",
	})

	return r
}
