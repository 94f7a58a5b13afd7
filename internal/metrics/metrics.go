package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	OrdersCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "adgrid_orders_created_total",
			Help: "Total number of payment orders created with the processor",
		},
	)

	OrderFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adgrid_order_failures_total",
			Help: "Total number of failed order creations by reason",
		},
		[]string{"reason"},
	)

	ProcessorRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "adgrid_processor_request_duration_seconds",
			Help:    "Duration of payment processor order requests",
			Buckets: prometheus.DefBuckets,
		},
	)

	VerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adgrid_payment_verifications_total",
			Help: "Total number of payment verifications by outcome",
		},
		[]string{"outcome"},
	)

	AdWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adgrid_ad_writes_total",
			Help: "Total number of ad writes by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adgrid_webhook_events_total",
			Help: "Total number of processor webhook events by type",
		},
		[]string{"event"},
	)
)

// Register registers all collectors with reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		OrdersCreatedTotal,
		OrderFailuresTotal,
		ProcessorRequestDuration,
		VerificationsTotal,
		AdWritesTotal,
		WebhookEventsTotal,
	)
}
