// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package extensions

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status and outcome label values.
const (
	StatusSuccess          = "success"
	StatusError            = "error"
	StatusUnknownAction    = "unknown_action"
	StatusPermissionDenied = "permission_denied"

	OutcomeSuccess = "success"
	OutcomeTimeout = "timeout"
	OutcomeFailure = "failure"
	OutcomeClosed  = "closed"
)

// DispatchTotal counts inbound action dispatches.
// Use RegisterMetrics to register this with a Prometheus registry.
var DispatchTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "strata_extension_dispatch_total",
		Help: "Total number of actions dispatched through the action table",
	},
	[]string{"action", "status"},
)

// CallsTotal counts outbound calls to extensions by result.
var CallsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "strata_extension_calls_total",
		Help: "Total number of outbound calls to extensions",
	},
	[]string{"action", "outcome"},
)

// CallDuration observes how long callers waited on outbound calls.
var CallDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "strata_extension_call_duration_seconds",
		Help:    "Outbound extension call duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"action"},
)

// StaleResponses counts responses that arrived after their call resolved.
var StaleResponses = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "strata_extension_stale_responses_total",
		Help: "Responses discarded because their call had already resolved",
	},
)

// ExtensionsByState tracks how many extensions sit in each lifecycle state.
var ExtensionsByState = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "strata_extensions",
		Help: "Number of known extensions by lifecycle state",
	},
	[]string{"state"},
)

// RegisterMetrics registers extension host metrics with the given registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(DispatchTotal)
	reg.MustRegister(CallsTotal)
	reg.MustRegister(CallDuration)
	reg.MustRegister(StaleResponses)
	reg.MustRegister(ExtensionsByState)
}

// RecordDispatch increments the dispatch counter.
func RecordDispatch(action, status string) {
	DispatchTotal.WithLabelValues(action, status).Inc()
}

// RecordCall records the outcome and duration of one outbound call.
func RecordCall(action, outcome string, d time.Duration) {
	CallsTotal.WithLabelValues(action, outcome).Inc()
	CallDuration.WithLabelValues(action).Observe(d.Seconds())
}

// RecordTransition is a TransitionObserver that keeps ExtensionsByState
// current.
func RecordTransition(_ string, from, to State) {
	if from != stateAbsent {
		ExtensionsByState.WithLabelValues(from.String()).Dec()
	}
	ExtensionsByState.WithLabelValues(to.String()).Inc()
}
