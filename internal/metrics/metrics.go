// Package metrics holds the Prometheus collectors for the registry and the swap engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "semidex"

// Status label values.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Metrics groups all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	TradesTotal       *prometheus.CounterVec
	TradeDuration     prometheus.Histogram
	RegistryMutations *prometheus.CounterVec
	PairsTotal        prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TradesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trades_total",
				Help:      "Trades by direction and outcome",
			},
			[]string{"direction", "status"},
		),
		TradeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "trade_duration_seconds",
				Help:      "Time spent settling a trade",
				Buckets:   prometheus.DefBuckets,
			},
		),
		RegistryMutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registry_mutations_total",
				Help:      "Registry mutations by operation and outcome",
			},
			[]string{"operation", "status"},
		),
		PairsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pairs_total",
				Help:      "Pairs ever created, including removed ones",
			},
		),
	}
	reg.MustRegister(m.TradesTotal, m.TradeDuration, m.RegistryMutations, m.PairsTotal)
	return m
}

// ObserveTrade records the outcome of a trade that started at start.
func (m *Metrics) ObserveTrade(direction string, err error, start time.Time) {
	if m == nil {
		return
	}
	m.TradeDuration.Observe(time.Since(start).Seconds())
	m.TradesTotal.WithLabelValues(direction, status(err)).Inc()
}

// ObserveMutation records the outcome of a registry mutation.
func (m *Metrics) ObserveMutation(operation string, err error) {
	if m == nil {
		return
	}
	m.RegistryMutations.WithLabelValues(operation, status(err)).Inc()
}

// SetPairs publishes the registry's pair count.
func (m *Metrics) SetPairs(count uint64) {
	if m == nil {
		return
	}
	m.PairsTotal.Set(float64(count))
}

func status(err error) string {
	if err != nil {
		return StatusFailed
	}
	return StatusSuccess
}
