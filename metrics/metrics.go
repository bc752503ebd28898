// SPDX-License-Identifier: EPL-2.0

// Package metrics exposes Prometheus collectors for buffer pools, track
// sessions and decoding.
//
// Every method is safe on a nil *Metrics, so components take an optional
// *Metrics and call it unconditionally.
package metrics

import (
	"github.com/ik5/gapless/audio"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gapless"

// Metrics holds the collectors of one process.
type Metrics struct {
	poolAllocations *prometheus.CounterVec
	poolReuses      *prometheus.CounterVec
	poolReleases    *prometheus.CounterVec
	poolLeaks       *prometheus.CounterVec

	sessionsCreated prometheus.Counter
	sessionsActive  prometheus.Gauge
	requests        *prometheus.CounterVec
	repliesDropped  *prometheus.CounterVec
	buffersEmitted  prometheus.Counter
	handOffs        prometheus.Counter
	decodeErrors    *prometheus.CounterVec
}

var _ audio.PoolObserver = (*Metrics)(nil)

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{}
	m.initMetrics()

	if err := reg.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.poolAllocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_allocations_total",
			Help:      "Pool entries created, by kind",
		},
		[]string{"kind"},
	)
	m.poolReuses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_reuses_total",
			Help:      "Pool entries handed out again after a release, by kind",
		},
		[]string{"kind"},
	)
	m.poolReleases = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_releases_total",
			Help:      "Pool entries returned, by kind",
		},
		[]string{"kind"},
	)
	m.poolLeaks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_leak_suspected_total",
			Help:      "Allocations above the pool ceiling, by kind",
		},
		[]string{"kind"},
	)

	m.sessionsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_created_total",
		Help:      "Track sessions created, including replacement sessions",
	})
	m.sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Track sessions not yet destroyed",
	})
	m.requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_admitted_total",
			Help:      "Session requests admitted, by queue class",
		},
		[]string{"class"},
	)
	m.repliesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_dropped_total",
			Help:      "Replies discarded before delivery, by reason",
		},
		[]string{"reason"},
	)
	m.buffersEmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "buffers_emitted_total",
		Help:      "Decoded buffers delivered in replies",
	})
	m.handOffs = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "handoffs_total",
		Help:      "Completed replacement hand-offs",
	})
	m.decodeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Errors reported by sessions, by kind",
		},
		[]string{"kind"},
	)
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.poolAllocations,
		m.poolReuses,
		m.poolReleases,
		m.poolLeaks,
		m.sessionsCreated,
		m.sessionsActive,
		m.requests,
		m.repliesDropped,
		m.buffersEmitted,
		m.handOffs,
		m.decodeErrors,
	}
}

// Describe implements the prometheus.Collector interface.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

func (m *Metrics) Allocated(key audio.Key) {
	if m == nil {
		return
	}
	m.poolAllocations.WithLabelValues(key.Kind.String()).Inc()
}

func (m *Metrics) Reused(key audio.Key) {
	if m == nil {
		return
	}
	m.poolReuses.WithLabelValues(key.Kind.String()).Inc()
}

func (m *Metrics) Released(key audio.Key) {
	if m == nil {
		return
	}
	m.poolReleases.WithLabelValues(key.Kind.String()).Inc()
}

func (m *Metrics) LeakSuspected(key audio.Key, _ int) {
	if m == nil {
		return
	}
	m.poolLeaks.WithLabelValues(key.Kind.String()).Inc()
}

func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
	m.sessionsActive.Inc()
}

func (m *Metrics) SessionDestroyed() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}

// RequestAdmitted counts a request entering a session queue.
func (m *Metrics) RequestAdmitted(class string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(class).Inc()
}

// ReplyDropped counts a reply released instead of delivered: stale
// replacement replies and replies pending at teardown.
func (m *Metrics) ReplyDropped(reason string) {
	if m == nil {
		return
	}
	m.repliesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) BuffersEmitted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.buffersEmitted.Add(float64(n))
}

func (m *Metrics) HandOffCompleted() {
	if m == nil {
		return
	}
	m.handOffs.Inc()
}

// DecodeError counts an error reply. kind is a short label such as
// "io" or "invalid_frame".
func (m *Metrics) DecodeError(kind string) {
	if m == nil {
		return
	}
	m.decodeErrors.WithLabelValues(kind).Inc()
}
