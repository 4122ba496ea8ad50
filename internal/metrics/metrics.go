// Package metrics exposes the Prometheus instruments. Counters are updated
// at the boundaries (intake, sequencer, engine); breaker states are scraped
// live through a collector.
package metrics

import (
	"net/http"

	"hedger/internal/pkg/circuit"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hedger"

var (
	SignalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "signals_total",
		Help:      "Inbound signals by admission outcome.",
	}, []string{"outcome"})

	OrderLegsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_legs_total",
		Help:      "Order legs placed, by role and terminal status.",
	}, []string{"role", "status"})

	ExitDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "exit_decisions_total",
		Help:      "Exit decisions that fired, by kind.",
	}, []string{"kind"})

	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "open_positions",
		Help:      "Positions currently under monitoring.",
	})

	RealizedPnLTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realized_pnl_points_total",
		Help:      "Cumulative realized P&L in premium points times quantity.",
	})

	RealizedLossTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realized_loss_points_total",
		Help:      "Cumulative realized losses in premium points times quantity.",
	})
)

// AddRealizedPnL records a settled position's P&L, split across the gain
// and loss counters so both stay monotonic.
func AddRealizedPnL(pnl float64) {
	if pnl >= 0 {
		RealizedPnLTotal.Add(pnl)
	} else {
		RealizedLossTotal.Add(-pnl)
	}
}

// breakerCollector reports each circuit breaker's state as a gauge:
// 0 closed, 1 half-open, 2 open.
type breakerCollector struct {
	registry *circuit.Registry
	desc     *prometheus.Desc
}

func NewBreakerCollector(registry *circuit.Registry) prometheus.Collector {
	return &breakerCollector{
		registry: registry,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "circuit_breaker_state"),
			"Circuit breaker state (0 closed, 1 half-open, 2 open).",
			[]string{"dependency"}, nil),
	}
}

func (c *breakerCollector) Describe(ch chan<- *prometheus.Desc) { ch <- c.desc }

func (c *breakerCollector) Collect(ch chan<- prometheus.Metric) {
	for name, state := range c.registry.States() {
		var v float64
		switch state {
		case circuit.StateHalfOpen:
			v = 1
		case circuit.StateOpen:
			v = 2
		}
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, v, name)
	}
}

// Handler serves the default registry for /metrics.
func Handler() http.Handler { return promhttp.Handler() }
