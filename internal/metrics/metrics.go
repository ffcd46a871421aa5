// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics is the gateway-wide Prometheus registry, the re-homed
// version of the teacher's opt-in churn telemetry
// (internal/ratelimiter/telemetry/churn) generalized from accumulator
// churn counters to gateway request/upstream/cache/health counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every gateway metric behind one prometheus.Registerer,
// mirroring the teacher's churn.Exporter: one struct, constructed once,
// handed to every component that needs to observe something.
type Registry struct {
	reg *prometheus.Registry

	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	UpstreamLatency   *prometheus.HistogramVec
	CacheHitsTotal    *prometheus.CounterVec
	HealthCheckState  *prometheus.GaugeVec
	PluginErrorsTotal *prometheus.CounterVec
}

// New builds and registers the full metric set.
func New() *Registry {
	reg := prometheus.NewRegistry()
	m := &Registry{
		reg: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pingsix",
			Name:      "requests_total",
			Help:      "Total requests handled, labeled by route and status class.",
		}, []string{"route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pingsix",
			Name:      "request_duration_seconds",
			Help:      "Request handling latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		UpstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pingsix",
			Name:      "upstream_latency_seconds",
			Help:      "Upstream round-trip latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"upstream"}),
		CacheHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pingsix",
			Name:      "cache_hits_total",
			Help:      "Response cache outcomes, labeled hit/miss/bypass.",
		}, []string{"outcome"}),
		HealthCheckState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pingsix",
			Name:      "upstream_node_healthy",
			Help:      "1 if the upstream node is currently healthy, else 0.",
		}, []string{"upstream", "node"}),
		PluginErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pingsix",
			Name:      "plugin_errors_total",
			Help:      "Plugin hook errors, labeled by plugin name.",
		}, []string{"plugin"}),
	}
	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.UpstreamLatency,
		m.CacheHitsTotal,
		m.HealthCheckState,
		m.PluginErrorsTotal,
	)
	return m
}

// Handler returns the promhttp handler serving this registry's metrics,
// mounted on the admin listener.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
