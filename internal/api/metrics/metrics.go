// Package metrics defines and registers all custom Prometheus metrics for
// the reseller console API. It is the single source of truth for metric
// names, labels, and help strings.
//
// Metrics register with the default Prometheus registry at import time via
// promauto; the /metrics endpoint exposes them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "console"

// ── Auth metrics ──────────────────────────────────────────────────────────────

// LoginsTotal counts credential verification attempts.
// Label:
//   - result: "success" or "failure"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// TwoFactorAttemptsTotal counts one-time-code verification attempts.
// Label:
//   - result: "pass" or "fail"
var TwoFactorAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "twofactor_attempts_total",
		Help:      "Total number of one-time-code verification attempts, by result.",
	},
	[]string{"result"},
)

// SessionResolutionsTotal counts per-request auth state derivations in the
// HTTP middleware.
// Label:
//   - outcome: "authenticated", "awaiting_2fa", or "unauthenticated"
var SessionResolutionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_resolutions_total",
		Help:      "Total number of session resolutions, by outcome.",
	},
	[]string{"outcome"},
)

// SignOutBroadcastsTotal counts sign-out notices crossing the broadcast
// channel.
// Label:
//   - direction: "published" or "received"
var SignOutBroadcastsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "signout_broadcasts_total",
		Help:      "Total number of sign-out broadcast notices, by direction.",
	},
	[]string{"direction"},
)

// ── Audit metrics ─────────────────────────────────────────────────────────────

// OperationQueueDepth tracks the operations waiting in each audit worker
// channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var OperationQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "operation_queue_depth",
		Help:      "Current number of audit operations pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)
