// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels a finished session.
type Outcome string

const (
	OutcomeAccepted         Outcome = "accepted"
	OutcomeEmpty            Outcome = "empty"
	OutcomeDecodeError      Outcome = "decode_error"
	OutcomeMissingField     Outcome = "missing_field"
	OutcomeTypeMismatch     Outcome = "type_mismatch"
	OutcomePersistenceError Outcome = "persistence_error"
	OutcomeNetworkError     Outcome = "network_error"
)

var allOutcomes = []Outcome{
	OutcomeAccepted,
	OutcomeEmpty,
	OutcomeDecodeError,
	OutcomeMissingField,
	OutcomeTypeMismatch,
	OutcomePersistenceError,
	OutcomeNetworkError,
}

// Stats are the listener's lifetime counters. Fields are read with
// Load and are safe to read while the listener runs.
type Stats struct {
	Accepted          atomic.Uint64
	Empty             atomic.Uint64
	DecodeFailures    atomic.Uint64
	ValidationErrors  atomic.Uint64
	PersistenceErrors atomic.Uint64
	// NetworkErrors counts failed accepts and failed reads.
	NetworkErrors  atomic.Uint64
	ActiveSessions atomic.Int64
}

func (s *Stats) record(outcome Outcome) {
	switch outcome {
	case OutcomeAccepted:
		s.Accepted.Add(1)
	case OutcomeEmpty:
		s.Empty.Add(1)
	case OutcomeDecodeError:
		s.DecodeFailures.Add(1)
	case OutcomeMissingField, OutcomeTypeMismatch:
		s.ValidationErrors.Add(1)
	case OutcomePersistenceError:
		s.PersistenceErrors.Add(1)
	case OutcomeNetworkError:
		s.NetworkErrors.Add(1)
	}
}

// Metrics are the listener's Prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	sessions      *prometheus.CounterVec
	acceptErrors  prometheus.Counter
	active        prometheus.Gauge
	payloadBytes  prometheus.Histogram
	appendSeconds prometheus.Histogram
}

// NewMetrics creates the ingest collectors and registers them with
// registerer. It panics if registration fails, as
// prometheus.MustRegister does.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plantwatch",
			Subsystem: "ingest",
			Name:      "sessions_total",
			Help:      "Ingest sessions by outcome.",
		}, []string{"outcome"}),
		acceptErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "plantwatch",
			Subsystem: "ingest",
			Name:      "accept_errors_total",
			Help:      "Failed accepts on the ingest listener.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "plantwatch",
			Subsystem: "ingest",
			Name:      "active_sessions",
			Help:      "Ingest sessions currently running.",
		}),
		payloadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "plantwatch",
			Subsystem: "ingest",
			Name:      "payload_bytes",
			Help:      "Size of received ingest messages.",
			Buckets:   prometheus.ExponentialBuckets(64, 2, 8),
		}),
		appendSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "plantwatch",
			Subsystem: "ingest",
			Name:      "store_append_seconds",
			Help:      "Time to commit one reading to the store.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	registerer.MustRegister(
		m.sessions,
		m.acceptErrors,
		m.active,
		m.payloadBytes,
		m.appendSeconds,
	)

	// Pre-create every outcome series so rates are defined from zero.
	for _, outcome := range allOutcomes {
		m.sessions.WithLabelValues(string(outcome))
	}
	return m
}

func (m *Metrics) sessionStarted() {
	if m == nil {
		return
	}
	m.active.Inc()
}

func (m *Metrics) sessionFinished(outcome Outcome) {
	if m == nil {
		return
	}
	m.active.Dec()
	m.sessions.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) acceptFailed() {
	if m == nil {
		return
	}
	m.acceptErrors.Inc()
}

func (m *Metrics) payloadReceived(size int) {
	if m == nil {
		return
	}
	m.payloadBytes.Observe(float64(size))
}

func (m *Metrics) appendObserved(duration time.Duration) {
	if m == nil {
		return
	}
	m.appendSeconds.Observe(duration.Seconds())
}
