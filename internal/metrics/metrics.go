// Package metrics exports scan and polling events as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/configstore/internal/events"
	"github.com/roach88/configstore/internal/model"
)

const namespace = "configstore"

// Listener is an events.Listener that records metrics in its own registry.
type Listener struct {
	registry *prometheus.Registry

	scansTotal      *prometheus.CounterVec
	scanDuration    prometheus.Histogram
	deltasTotal     *prometheus.CounterVec
	entities        prometheus.Gauge
	lastScan        prometheus.Gauge
	pollingConfigs  *prometheus.CounterVec
	pollingInterval prometheus.Gauge
}

var _ events.Listener = (*Listener)(nil)

// NewListener creates a listener with a fresh registry.
func NewListener() *Listener {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Listener{
		registry: reg,
		scansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scans_total",
				Help:      "Total number of completed scans by trigger type",
			},
			[]string{"type"},
		),
		scanDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scan_duration_seconds",
				Help:      "Time from the actual start of a scan to its completion",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		deltasTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deltas_total",
				Help:      "Total number of entity changes detected by change type",
			},
			[]string{"type"},
		),
		entities: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "entities",
				Help:      "Number of entities in the latest snapshot",
			},
		),
		lastScan: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_scan_timestamp_seconds",
				Help:      "Completion time of the latest scan",
			},
		),
		pollingConfigs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "polling_configurations_total",
				Help:      "Total number of polling configurations by result",
			},
			[]string{"result"},
		),
		pollingInterval: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "polling_interval_seconds",
				Help:      "Interval of the applied polling configuration",
			},
		),
	}
}

// Registry returns the registry holding the listener's metrics.
func (l *Listener) Registry() *prometheus.Registry { return l.registry }

// Handler serves the registry in the Prometheus exposition format.
func (l *Listener) Handler() http.Handler {
	return promhttp.HandlerFor(l.registry, promhttp.HandlerOpts{Registry: l.registry})
}

func (l *Listener) PollingConfigurationApplied(e events.PollingConfigurationApplied) {
	l.pollingConfigs.WithLabelValues("applied").Inc()
	l.pollingInterval.Set(e.Configuration.Interval.Seconds())
}

func (l *Listener) PollingConfigurationErrorOccurred(e events.PollingConfigurationErrorOccurred) {
	l.pollingConfigs.WithLabelValues("rejected").Inc()
	l.pollingInterval.Set(0)
}

func (l *Listener) ScanCompleted(e events.ScanCompleted) {
	l.scansTotal.WithLabelValues(string(e.Request.Type)).Inc()
	l.scanDuration.Observe(e.Duration().Seconds())
	l.entities.Set(float64(e.Entities))
	l.lastScan.Set(float64(e.EndActual.UnixMilli()) / 1000)
	for _, t := range []model.ChangeType{model.ChangeAdd, model.ChangeUpdate, model.ChangeDelete} {
		if n := e.Changes[t]; n > 0 {
			l.deltasTotal.WithLabelValues(string(t)).Add(float64(n))
		}
	}
}
