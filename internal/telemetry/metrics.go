// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels how a reply fetch ended.
type Outcome string

const (
	OutcomePrimary  Outcome = "primary"
	OutcomeDegraded Outcome = "degraded"
	OutcomeFailed   Outcome = "failed"
)

// Title outcomes.
const (
	TitleDerived   = "derived"
	TitleTruncated = "truncated"
)

// =============================================================================
// METRICS
// =============================================================================

// Metrics holds the Prometheus collectors for one registry.
type Metrics struct {
	httpRequests   *prometheus.CounterVec
	fetches        *prometheus.CounterVec
	fetchLatency   *prometheus.HistogramVec
	titles         *prometheus.CounterVec
	downloads      *prometheus.CounterVec
	breakerChanges *prometheus.CounterVec

	mu      sync.Mutex
	summary Summary
}

// Summary is a snapshot of the local counters.
type Summary struct {
	Requests        int             `json:"requests"`
	Fetches         map[Outcome]int `json:"fetches"`
	Titles          map[string]int  `json:"titles"`
	Downloads       int             `json:"downloads"`
	AvgFetchLatency time.Duration   `json:"avg_fetch_latency_ns"`

	totalLatency time.Duration
	timedFetches int
}

// New registers the cortex collectors on reg. Use a fresh registry per
// Metrics; registering twice on the same registry panics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cortex",
			Name:      "http_requests_total",
			Help:      "HTTP API requests by route pattern and status code.",
		}, []string{"route", "code"}),
		fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cortex",
			Name:      "fetches_total",
			Help:      "Assistant reply fetches by outcome.",
		}, []string{"outcome"}),
		fetchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cortex",
			Name:      "fetch_duration_seconds",
			Help:      "Time to produce an assistant reply.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"outcome"}),
		titles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cortex",
			Name:      "titles_total",
			Help:      "Conversation titles by how they were produced.",
		}, []string{"outcome"}),
		downloads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cortex",
			Name:      "model_downloads_total",
			Help:      "Simulated model downloads by stage.",
		}, []string{"stage"}),
		breakerChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cortex",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state transitions.",
		}, []string{"name", "to"}),
		summary: newSummary(),
	}
}

func newSummary() Summary {
	return Summary{
		Fetches: make(map[Outcome]int),
		Titles:  make(map[string]int),
	}
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(route string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()

	m.mu.Lock()
	m.summary.Requests++
	m.mu.Unlock()
}

// ObserveFetch records a reply fetch and its latency.
func (m *Metrics) ObserveFetch(outcome Outcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(string(outcome)).Inc()
	m.fetchLatency.WithLabelValues(string(outcome)).Observe(elapsed.Seconds())

	m.mu.Lock()
	m.summary.Fetches[outcome]++
	m.summary.totalLatency += elapsed
	m.summary.timedFetches++
	m.mu.Unlock()
}

// ObserveTitle records how a title was produced.
func (m *Metrics) ObserveTitle(outcome string) {
	if m == nil {
		return
	}
	m.titles.WithLabelValues(outcome).Inc()

	m.mu.Lock()
	m.summary.Titles[outcome]++
	m.mu.Unlock()
}

// ObserveDownload records a download stage ("started" or "installed").
func (m *Metrics) ObserveDownload(stage string) {
	if m == nil {
		return
	}
	m.downloads.WithLabelValues(stage).Inc()

	if stage == "installed" {
		m.mu.Lock()
		m.summary.Downloads++
		m.mu.Unlock()
	}
}

// ObserveBreaker records a circuit breaker transition.
func (m *Metrics) ObserveBreaker(name, to string) {
	if m == nil {
		return
	}
	m.breakerChanges.WithLabelValues(name, to).Inc()
}

// Snapshot returns a copy of the local counters.
func (m *Metrics) Snapshot() Summary {
	if m == nil {
		return newSummary()
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := newSummary()
	out.Requests = m.summary.Requests
	out.Downloads = m.summary.Downloads
	for k, v := range m.summary.Fetches {
		out.Fetches[k] = v
	}
	for k, v := range m.summary.Titles {
		out.Titles[k] = v
	}
	if m.summary.timedFetches > 0 {
		out.AvgFetchLatency = m.summary.totalLatency / time.Duration(m.summary.timedFetches)
	}
	return out
}
