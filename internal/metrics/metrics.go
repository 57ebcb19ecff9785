// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics exposes the process-wide Prometheus collectors the core
// publishes: pool endpoint health, cache hit ratio, and subscriber counts.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry groups every collector the core registers. Callers that do not
// want Prometheus wiring can construct a Registry and simply never Register
// it with a prometheus.Registerer.
type Registry struct {
	EndpointAttempts  *prometheus.CounterVec
	EndpointFailures  *prometheus.CounterVec
	CacheHits         *prometheus.CounterVec
	CacheMisses       *prometheus.CounterVec
	Subscribers       *prometheus.GaugeVec
	TipHeight         prometheus.Gauge
	PushNotifications *prometheus.CounterVec
}

// NewRegistry builds a fresh set of collectors, unregistered.
func NewRegistry() *Registry {
	return &Registry{
		EndpointAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qtumd_node",
			Subsystem: "pool",
			Name:      "endpoint_attempts_total",
			Help:      "RPC attempts issued per node-pool endpoint.",
		}, []string{"endpoint"}),
		EndpointFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qtumd_node",
			Subsystem: "pool",
			Name:      "endpoint_failures_total",
			Help:      "RPC attempts that errored per node-pool endpoint.",
		}, []string{"endpoint"}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qtumd_node",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Cache hits per logical cache.",
		}, []string{"cache"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qtumd_node",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Cache misses per logical cache.",
		}, []string{"cache"}),
		Subscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "qtumd_node",
			Subsystem: "subscriptions",
			Name:      "subscribers",
			Help:      "Current subscriber count per topic.",
		}, []string{"topic"}),
		TipHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "qtumd_node",
			Subsystem: "tip",
			Name:      "height",
			Help:      "Current best-block height known to the core.",
		}),
		PushNotifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qtumd_node",
			Subsystem: "pushsub",
			Name:      "notifications_total",
			Help:      "Push-channel notifications processed per topic, after dedup.",
		}, []string{"topic"}),
	}
}

// MustRegister registers every collector against reg, panicking on failure
// (matching the package-init idiom Prometheus collectors commonly use).
func (r *Registry) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		r.EndpointAttempts,
		r.EndpointFailures,
		r.CacheHits,
		r.CacheMisses,
		r.Subscribers,
		r.TipHeight,
		r.PushNotifications,
	)
}
