// Package metrics exposes Prometheus collectors for the lunch bot.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Request Metrics
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lunchbot_requests_total",
			Help: "Total webhook requests by reply path and intent",
		},
		[]string{"path", "intent"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lunchbot_request_duration_seconds",
			Help:    "End-to-end gateway latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 4, 4.5, 5},
		},
		[]string{"path"},
	)

	EmergencyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lunchbot_emergency_total",
			Help: "Requests answered by the emergency path",
		},
		[]string{"reason"}, // "deadline", "panic", "error"
	)

	// Admission Metrics
	RateLimitDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lunchbot_rate_limit_denied_total",
			Help: "Requests denied by the per-user rate limiter",
		},
		[]string{"window"}, // "minute", "hour", "day"
	)

	// Intent Metrics
	IntentsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lunchbot_intents_total",
			Help: "Resolved intents by kind and source rule",
		},
		[]string{"kind", "source"},
	)

	// Remote Generator Metrics
	RemoteCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lunchbot_remote_calls_total",
			Help: "Remote generator calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	RemoteCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lunchbot_remote_call_duration_seconds",
			Help:    "Remote generator call latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 1.5, 2, 3},
		},
		[]string{"operation"},
	)

	BreakerCooldown = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lunchbot_breaker_cooldown",
			Help: "1 while the remote generator is cooling down, else 0",
		},
	)

	BreakerCooldownSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lunchbot_breaker_last_cooldown_seconds",
			Help: "Length of the most recent cooldown in seconds",
		},
	)

	CredentialRotations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lunchbot_credential_rotations_total",
			Help: "Credential rotations triggered by quota errors",
		},
	)

	ActiveCredential = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lunchbot_active_credential",
			Help: "Index of the credential currently in use",
		},
	)

	// Weather Metrics
	WeatherCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lunchbot_weather_cache_total",
			Help: "Weather memo lookups by result",
		},
		[]string{"result"}, // "hit", "miss", "stale"
	)

	WeatherBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lunchbot_weather_breaker_state",
			Help: "Weather provider breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"provider"},
	)

	// Session Metrics
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lunchbot_active_sessions",
			Help: "Sessions currently held in memory",
		},
	)

	// History Metrics
	HistoryWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lunchbot_history_writes_total",
			Help: "History log writes by result",
		},
		[]string{"result"},
	)
)
