// Package metrics defines the Prometheus collectors shared by the session,
// scope, and HTTP layers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsIssued counts sessions created.
	SessionsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shelfkeeper_sessions_issued_total",
		Help: "Number of sessions issued.",
	})

	// SessionsRevoked counts sessions deleted by logout or revoke-all.
	SessionsRevoked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shelfkeeper_sessions_revoked_total",
		Help: "Number of sessions revoked explicitly.",
	})

	// SessionsSwept counts sessions removed by the expiry sweeper.
	SessionsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shelfkeeper_sessions_swept_total",
		Help: "Number of expired sessions removed by the background sweep.",
	})

	// ScopeDenials counts scope resolution rejections by reason code.
	ScopeDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shelfkeeper_scope_denials_total",
		Help: "Number of scope resolution denials by reason.",
	}, []string{"reason"})

	// AuditDropped counts audit events lost to a full queue or sink failure.
	AuditDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shelfkeeper_audit_dropped_total",
		Help: "Number of audit events dropped instead of blocking an operation.",
	})

	// RequestDuration observes HTTP handler latency.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shelfkeeper_http_request_duration_seconds",
		Help:    "HTTP request duration by method and status code.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "code"})
)
