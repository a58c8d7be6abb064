package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SubscriptionOutcomes counts subscribe requests by outcome label.
	SubscriptionOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsletter_subscription_outcomes_total",
		Help: "Total number of newsletter subscription requests by outcome",
	}, []string{"outcome"})

	// MailchimpRequestDuration tracks outbound list API calls. code is the
	// HTTP status, or "error" when no response was received.
	MailchimpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mailchimp_request_duration_seconds",
		Help:    "Duration of Mailchimp API requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "code"})
)
