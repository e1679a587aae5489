// Package metrics exposes the engine's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScanOutcomes counts terminal scan results by outcome label
	// (recorded, duplicate, invalid, untrusted, offline, fetch_failed,
	// unparsable, inconsistent, not_enrolled, window_closed, storage_error).
	ScanOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asistencia_scan_outcomes_total",
		Help: "Terminal scan pipeline outcomes.",
	}, []string{"outcome"})

	// SessionsCreated counts sessions lazily created by the resolver.
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "asistencia_sessions_created_total",
		Help: "Sessions created on first scan preparation.",
	})

	// CredentialFetchSeconds times remote credential page fetches.
	CredentialFetchSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "asistencia_credential_fetch_seconds",
		Help:    "Duration of credential page fetches.",
		Buckets: prometheus.DefBuckets,
	})
)
