// Package metrics exposes Prometheus collectors for the application.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "schoolhub"

// Metrics groups every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	RateLimited       prometheus.Counter
	SLABreaches       *prometheus.CounterVec
	EmailsQueued      *prometheus.CounterVec
	EmailsDelivered   *prometheus.CounterVec
	EmailEvents       *prometheus.CounterVec
	JobsProcessed     *prometheus.CounterVec
	PaymentEvents     *prometheus.CounterVec
	CouponRedemptions prometheus.Counter
	Enrollments       *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status"}),

		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),

		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the rate limiter.",
		}),

		SLABreaches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sla_breaches_total",
			Help:      "Support tickets alerted for a breached SLA clock.",
		}, []string{"priority", "clock"}),

		EmailsQueued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_queued_total",
			Help:      "Emails accepted by the queue, including suppressed ones.",
		}, []string{"category", "outcome"}),

		EmailsDelivered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_sent_total",
			Help:      "Emails handed to the provider by result.",
		}, []string{"provider", "result"}),

		EmailEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "email_events_total",
			Help:      "Delivery events reported by the email provider.",
		}, []string{"event"}),

		JobsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_processed_total",
			Help:      "Background tasks processed by type and result.",
		}, []string{"task", "result"}),

		PaymentEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_events_total",
			Help:      "Payment webhook events by type and outcome.",
		}, []string{"type", "outcome"}),

		CouponRedemptions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_redemptions_total",
			Help:      "Coupons redeemed at enrollment.",
		}),

		Enrollments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrollments_total",
			Help:      "Enrollments created by initial status.",
		}, []string{"status"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// JobResult records a processed background task.
func (m *Metrics) JobResult(task string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.JobsProcessed.WithLabelValues(task, result).Inc()
}
