/*
Package metrics exposes Prometheus instrumentation for the engines.

Counters are registered on the default registry; the HTTP server mounts
promhttp at /metrics.
*/
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BillingRunsTotal counts committed billing runs, labeled by outcome
	// ("ok", "partial", "error").
	BillingRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gym",
		Subsystem: "billing",
		Name:      "runs_total",
		Help:      "Committed billing runs by outcome.",
	}, []string{"outcome"})

	// ChargesGeneratedTotal counts charges produced by previews, labeled by
	// charge type.
	ChargesGeneratedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gym",
		Subsystem: "billing",
		Name:      "charges_generated_total",
		Help:      "Charges produced by billing previews, by type.",
	}, []string{"type"})

	// ChargeCentsTotal accumulates generated charge amounts in cents.
	ChargeCentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gym",
		Subsystem: "billing",
		Name:      "charge_cents_total",
		Help:      "Total generated charge amounts in cents, by type.",
	}, []string{"type"})

	// ScheduleValidationsTotal counts schedule validations, labeled by
	// outcome ("ok", "conflict", "error").
	ScheduleValidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gym",
		Subsystem: "scheduling",
		Name:      "validations_total",
		Help:      "Schedule conflict validations by outcome.",
	}, []string{"outcome"})

	// RequestDuration observes HTTP handler latency.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gym",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route and method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})
)
