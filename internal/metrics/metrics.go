// Package metrics exposes Prometheus counters for the pricing pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SignalsCollected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "pricing_signals_collected_total", Help: "Price signals gathered, by source"},
		[]string{"source"},
	)
	TierFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "pricing_tier_failures_total", Help: "Collection tiers that contributed no signal, by reason"},
		[]string{"tier", "reason"},
	)
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "pricing_cache_lookups_total", Help: "MSRP cache lookups, by result"},
		[]string{"result"},
	)
	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "pricing_decisions_total", Help: "Pricing decisions, by outcome"},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(SignalsCollected, TierFailures, CacheLookups, Decisions)
}
