// Package metrics holds the Prometheus collectors shared by the api and worker binaries.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wacampaign"

// Metrics groups every collector the service exports
type Metrics struct {
	ContactsProcessed  *prometheus.CounterVec
	SendLatency        prometheus.Histogram
	TickDuration       prometheus.Histogram
	TicksSkipped       *prometheus.CounterVec
	TickErrors         prometheus.Counter
	CampaignsCompleted prometheus.Counter
	WebhookEvents      *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ContactsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "contacts_total",
			Help:      "Campaign contacts processed by the scheduler, by outcome.",
		}, []string{"outcome"}),
		SendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "send_latency_seconds",
			Help:      "Latency of provider send calls.",
			Buckets:   prometheus.DefBuckets,
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one scheduler tick, pacing included.",
			Buckets:   []float64{0.1, 1, 5, 15, 30, 60, 120, 300},
		}),
		TicksSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "ticks_skipped_total",
			Help:      "Ticks that did not run, by reason.",
		}, []string{"reason"}),
		TickErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "tick_errors_total",
			Help:      "Ticks aborted by an error.",
		}),
		CampaignsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "campaigns_completed_total",
			Help:      "Campaigns moved to completed after their last pending contact.",
		}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Webhook events by stage and result.",
		}, []string{"stage", "result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ContactsProcessed,
			m.SendLatency,
			m.TickDuration,
			m.TicksSkipped,
			m.TickErrors,
			m.CampaignsCompleted,
			m.WebhookEvents,
			m.HTTPRequests,
			m.HTTPDuration,
		)
	}

	return m
}
