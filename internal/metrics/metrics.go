// Package metrics exposes Prometheus collectors for the supervised sidecar.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charliek/sidecarhost/internal/domain"
)

// Spawn results
const (
	ResultOK               = "ok"
	ResultResolutionFailed = "resolution_failed"
	ResultLaunchFailed     = "launch_failed"
	ResultAlreadyRunning   = "already_running"
)

// Exit reasons
const (
	ExitShutdown = "shutdown"
	ExitCrashed  = "crashed"
	ExitClean    = "clean"
)

// Metrics holds all Prometheus collectors for the sidecar host
type Metrics struct {
	up           prometheus.Gauge
	spawnsTotal  *prometheus.CounterVec
	linesTotal   *prometheus.CounterVec
	exitsTotal   *prometheus.CounterVec
	healthStatus prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a metrics instance registered on its own registry
func New(sidecar string) *Metrics {
	registry := prometheus.NewRegistry()
	labels := prometheus.Labels{"sidecar": sidecar}

	m := &Metrics{
		up: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "sidecar_up",
			Help:        "Whether a live sidecar handle is held (1) or not (0)",
			ConstLabels: labels,
		}),
		spawnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "sidecar_spawns_total",
				Help:        "Total number of spawn attempts by result",
				ConstLabels: labels,
			},
			[]string{"result"},
		),
		linesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "sidecar_output_lines_total",
				Help:        "Total number of output lines drained from the sidecar",
				ConstLabels: labels,
			},
			[]string{"stream"},
		),
		exitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "sidecar_exits_total",
				Help:        "Total number of sidecar exits by reason",
				ConstLabels: labels,
			},
			[]string{"reason"},
		),
		healthStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "sidecar_health_status",
			Help:        "Sidecar health: 1 healthy, 0 unhealthy, -1 unknown",
			ConstLabels: labels,
		}),
		registry: registry,
	}

	registry.MustRegister(
		m.up,
		m.spawnsTotal,
		m.linesTotal,
		m.exitsTotal,
		m.healthStatus,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.healthStatus.Set(-1)

	return m
}

// SpawnAttempt records the result of a spawn attempt
func (m *Metrics) SpawnAttempt(result string) {
	m.spawnsTotal.WithLabelValues(result).Inc()
}

// SetUp records whether a live handle is held
func (m *Metrics) SetUp(up bool) {
	if up {
		m.up.Set(1)
	} else {
		m.up.Set(0)
	}
}

// LineReceived counts one drained output line
func (m *Metrics) LineReceived(stream domain.Stream) {
	m.linesTotal.WithLabelValues(stream.String()).Inc()
}

// Exited records a sidecar exit
func (m *Metrics) Exited(reason string) {
	m.exitsTotal.WithLabelValues(reason).Inc()
}

// SetHealth records the latest health status
func (m *Metrics) SetHealth(status domain.HealthStatus) {
	switch status {
	case domain.HealthStatusHealthy:
		m.healthStatus.Set(1)
	case domain.HealthStatusUnhealthy:
		m.healthStatus.Set(0)
	default:
		m.healthStatus.Set(-1)
	}
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler serving the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// SpawnResult maps a spawn error to its result label
func SpawnResult(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, domain.ErrResolutionFailed):
		return ResultResolutionFailed
	case errors.Is(err, domain.ErrAlreadyRunning):
		return ResultAlreadyRunning
	default:
		return ResultLaunchFailed
	}
}
