package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookRequestsTotal counts Polar webhook deliveries by event type and HTTP status.
	WebhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "polar_bridge",
		Subsystem: "webhook",
		Name:      "requests_total",
		Help:      "Total Polar webhook requests by event type and HTTP status.",
	}, []string{"event_type", "status"})

	// WebhookHandlerFailures counts deliveries whose handler failed after verification.
	WebhookHandlerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "polar_bridge",
		Subsystem: "webhook",
		Name:      "handler_failures_total",
		Help:      "Verified webhook deliveries whose handler returned an error.",
	}, []string{"event_type"})

	// ReconcileOutcomes counts reconciler decisions per entity kind.
	ReconcileOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "polar_bridge",
		Subsystem: "reconcile",
		Name:      "outcomes_total",
		Help:      "Reconciler decisions (inserted, applied, stale) by entity kind.",
	}, []string{"kind", "outcome"})

	// ReconcileRetries counts reconciler transactions re-run after a lost insert
	// race or a deadlock.
	ReconcileRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "polar_bridge",
		Subsystem: "reconcile",
		Name:      "retries_total",
		Help:      "Reconciler transactions retried after a concurrent write conflict.",
	}, []string{"kind"})

	// NotificationsTotal counts notification emails by kind and result.
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "polar_bridge",
		Subsystem: "notify",
		Name:      "emails_total",
		Help:      "Subscription notification emails by kind and result.",
	}, []string{"kind", "result"})
)
