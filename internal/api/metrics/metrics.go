// Package metrics defines and registers all custom Prometheus metrics for
// the 024 Global Connect portal. It is the single source of truth for metric
// names, labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on import;
// RegisterActiveSessions must be called once the session registry exists.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "portal"

// ── Session metrics ───────────────────────────────────────────────────────────

// LoginAttemptsTotal counts login submissions.
// Label:
//   - result: "success", "rejected", "transport" or "invalid"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// RegistrationsTotal counts registration submissions.
// Label:
//   - result: "success", "rejected" or "transport"
var RegistrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of registration attempts, by result.",
	},
	[]string{"result"},
)

// RefreshTotal counts access token refreshes.
// Labels:
//   - trigger: "explicit" (POST /auth/refresh), "guard" or "proxy"
//   - result: "success", "rejected" or "superseded" (logout won the race)
var RefreshTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_refresh_total",
		Help:      "Total number of token refreshes, by trigger and result.",
	},
	[]string{"trigger", "result"},
)

// LogoutTotal counts explicit logouts.
var LogoutTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logout_total",
		Help:      "Total number of logouts.",
	},
)

// GuardDecisionsTotal counts route guard outcomes.
// Label:
//   - decision: "allow", "deny", "forbidden_role" or "loading"
var GuardDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "guard_decisions_total",
		Help:      "Total number of route guard decisions, by outcome.",
	},
	[]string{"decision"},
)

// SubmissionsRejectedTotal counts submissions refused because the same
// operation was already in flight for the session.
// Label:
//   - op: "login" or "register"
var SubmissionsRejectedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submissions_in_flight_rejected_total",
		Help:      "Total number of duplicate submissions rejected while one was in flight.",
	},
	[]string{"op"},
)

// ── Proxy metrics ─────────────────────────────────────────────────────────────

// ProxyReplaysTotal counts backend requests replayed after a refresh.
// Label:
//   - result: "replayed" or "not_replayable"
var ProxyReplaysTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "proxy_replays_total",
		Help:      "Total number of proxied requests that hit a 401, by replay outcome.",
	},
	[]string{"result"},
)

// RegisterActiveSessions exposes the number of live session managers.
func RegisterActiveSessions(count func() int) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Current number of session managers held in memory.",
		},
		func() float64 { return float64(count()) },
	))
}
