// Package metrics exposes Prometheus instruments for the moderation engine.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the instruments registered on one registry.
type Metrics struct {
	moderationActions       *prometheus.CounterVec
	sideEffectFailures      *prometheus.CounterVec
	subscriptionCheckErrors prometheus.Counter
	registrations           *prometheus.CounterVec
	pendingDeletions        prometheus.Gauge
	activeGroups            prometheus.Gauge
	moderationRecords       prometheus.Gauge
	users                   prometheus.Gauge
}

// New registers the instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		moderationActions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_moderation_actions_total",
			Help: "Messages removed by the moderation pipeline, by reason",
		}, []string{"reason"}),
		sideEffectFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_side_effect_failures_total",
			Help: "Failed moderation side effects, by action",
		}, []string{"action"}),
		subscriptionCheckErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "gatekeeper_subscription_check_errors_total",
			Help: "Subscription checks that failed and were treated as not subscribed",
		}),
		registrations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_registrations_total",
			Help: "Registration flow outcomes",
		}, []string{"outcome"}),
		pendingDeletions: f.NewGauge(prometheus.GaugeOpts{
			Name: "gatekeeper_pending_deletions",
			Help: "Warning messages waiting for their scheduled deletion",
		}),
		activeGroups: f.NewGauge(prometheus.GaugeOpts{
			Name: "gatekeeper_active_groups",
			Help: "Active groups under moderation",
		}),
		moderationRecords: f.NewGauge(prometheus.GaugeOpts{
			Name: "gatekeeper_moderation_records",
			Help: "Stored moderation records",
		}),
		users: f.NewGauge(prometheus.GaugeOpts{
			Name: "gatekeeper_users",
			Help: "Known private-chat users",
		}),
	}
}

// Handler serves the metrics gathered from g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) ModerationAction(reason string) {
	if m == nil {
		return
	}
	m.moderationActions.WithLabelValues(reason).Inc()
}

func (m *Metrics) SideEffectFailed(action string) {
	if m == nil {
		return
	}
	m.sideEffectFailures.WithLabelValues(action).Inc()
}

func (m *Metrics) SubscriptionCheckFailed() {
	if m == nil {
		return
	}
	m.subscriptionCheckErrors.Inc()
}

func (m *Metrics) Registration(outcome string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetPendingDeletions(n int) {
	if m == nil {
		return
	}
	m.pendingDeletions.Set(float64(n))
}

// ObserveStats copies store aggregates into gauges.
func (m *Metrics) ObserveStats(activeGroups, records, users int64) {
	if m == nil {
		return
	}
	m.activeGroups.Set(float64(activeGroups))
	m.moderationRecords.Set(float64(records))
	m.users.Set(float64(users))
}
