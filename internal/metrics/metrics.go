// Package metrics provides the Prometheus implementation of
// server.MetricsCollector and the HTTP handler that exposes it.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gonzalop/miniftp/server"
)

// Collector is the Prometheus-backed server.MetricsCollector.
type Collector struct {
	reg *prometheus.Registry

	commandsTotal     *prometheus.CounterVec
	commandDuration   *prometheus.HistogramVec
	transfersTotal    *prometheus.CounterVec
	transferBytes     *prometheus.CounterVec
	transferDuration  *prometheus.HistogramVec
	connectionsTotal  *prometheus.CounterVec
	authAttemptsTotal *prometheus.CounterVec
	workersActive     prometheus.Gauge
	workersPending    prometheus.Gauge
}

var _ server.MetricsCollector = (*Collector)(nil)

// New registers the miniftpd metrics on a fresh registry. The registry also
// carries the Go runtime and process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry registers the miniftpd metrics on reg.
func NewWithRegistry(reg *prometheus.Registry) *Collector {
	f := promauto.With(reg)
	return &Collector{
		reg: reg,
		commandsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miniftpd_commands_total",
				Help: "Total number of control commands by verb and status",
			},
			[]string{"command", "status"},
		),
		commandDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "miniftpd_command_duration_milliseconds",
				Help: "Duration of control commands in milliseconds, transfers included",
				Buckets: []float64{0.1, 1, 10, 100, 1000, 10000},
			},
			[]string{"command"},
		),
		transfersTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miniftpd_transfers_total",
				Help: "Total number of data transfers by operation",
			},
			[]string{"operation"},
		),
		transferBytes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miniftpd_transfer_bytes_total",
				Help: "Total bytes written to data connections",
			},
			[]string{"operation"},
		),
		transferDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "miniftpd_transfer_duration_seconds",
				Help:    "Duration of data transfers in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"operation"},
		),
		connectionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miniftpd_connections_total",
				Help: "Control connections by admission result",
			},
			[]string{"result"},
		),
		authAttemptsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miniftpd_authentications_total",
				Help: "Login attempts by status",
			},
			[]string{"status"},
		),
		workersActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "miniftpd_workers_active",
			Help: "Sessions currently running on a worker",
		}),
		workersPending: f.NewGauge(prometheus.GaugeOpts{
			Name: "miniftpd_workers_pending",
			Help: "Accepted connections waiting for a worker",
		}),
	}
}

// Registry returns the registry the collector writes to.
func (c *Collector) Registry() *prometheus.Registry {
	return c.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{Registry: c.reg})
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}

func (c *Collector) RecordCommand(cmd string, success bool, duration time.Duration) {
	c.commandsTotal.WithLabelValues(cmd, status(success)).Inc()
	c.commandDuration.WithLabelValues(cmd).Observe(float64(duration.Microseconds()) / 1000)
}

func (c *Collector) RecordTransfer(operation string, bytes int64, duration time.Duration) {
	c.transfersTotal.WithLabelValues(operation).Inc()
	c.transferBytes.WithLabelValues(operation).Add(float64(bytes))
	c.transferDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordConnection counts by reason; accepted is implied by it.
func (c *Collector) RecordConnection(accepted bool, reason string) {
	if reason == "" {
		reason = strconv.FormatBool(accepted)
	}
	c.connectionsTotal.WithLabelValues(reason).Inc()
}

// RecordAuthentication counts by status only; user names are not labels.
func (c *Collector) RecordAuthentication(success bool, user string) {
	c.authAttemptsTotal.WithLabelValues(status(success)).Inc()
}

func (c *Collector) RecordWorkers(active, pending int) {
	c.workersActive.Set(float64(active))
	c.workersPending.Set(float64(pending))
}
