// Package metrics declares the Prometheus collectors the cycle orchestrator
// and execution engine publish, following the metrics middleware of
// GoPolymarket-polygate.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesTotal counts orchestrator ticks, labeled by outcome ("skipped",
	// "feasible", "unprofitable", "unprofitable_after_costs", "executed").
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbengine_cycles_total",
		Help: "Total cycle orchestrator ticks by outcome",
	}, []string{"outcome"})

	// CycleDuration records the wall-clock time of one tick, end to end.
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arbengine_cycle_duration_seconds",
		Help:    "Cycle orchestrator tick duration",
		Buckets: prometheus.DefBuckets,
	})

	// MispricingMagnitude records the KL-divergence/L1-distance magnitude of
	// each detected opportunity, whether or not it cleared the profit gate.
	MispricingMagnitude = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arbengine_mispricing_magnitude",
		Help:    "Detected opportunity mispricing magnitude",
		Buckets: prometheus.DefBuckets,
	}, []string{"metric"})

	// TradesTotal counts completed executions, labeled by final status.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbengine_trades_total",
		Help: "Total completed trade executions by status",
	}, []string{"status"})

	// ExposureUSD tracks the engine's current open-trade exposure.
	ExposureUSD = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arbengine_exposure_usd",
		Help: "Current open-trade exposure in USD",
	})

	// DiscoveryLatency records the wall-clock time of one background
	// dependency-discovery pass against the classifier.
	DiscoveryLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arbengine_discovery_latency_seconds",
		Help:    "Dependency discovery task duration",
		Buckets: prometheus.DefBuckets,
	})
)
