package prometheus

import "github.com/prometheus/client_golang/prometheus"

const (
	providerRequestBucketStart  = 0.05
	providerRequestBucketFactor = 2.0
	providerRequestBucketCount  = 12
)

const (
	insightsBucketStart  = 0.5
	insightsBucketFactor = 2.0
	insightsBucketCount  = 10
)

const (
	dispatchBucketStart  = 0.1
	dispatchBucketFactor = 2.5
	dispatchBucketCount  = 10
)

var ProviderRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "provider_request_duration_seconds",
		Help: "Time taken by a single vendor API request",
		Buckets: prometheus.ExponentialBuckets(
			providerRequestBucketStart,
			providerRequestBucketFactor,
			providerRequestBucketCount,
		),
	},
	[]string{"vendor", "op"},
)

var WebhookEventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Webhook events received, by vendor and event type",
	},
	[]string{"vendor", "event"},
)

var InsightsRequestDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name: "insights_request_duration_seconds",
		Help: "Time taken by a language-model insight request",
		Buckets: prometheus.ExponentialBuckets(
			insightsBucketStart,
			insightsBucketFactor,
			insightsBucketCount,
		),
	},
)

var DispatchBatchDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "dispatch_batch_duration_seconds",
		Help: "Time taken to process one dispatcher batch",
		Buckets: prometheus.ExponentialBuckets(
			dispatchBucketStart,
			dispatchBucketFactor,
			dispatchBucketCount,
		),
	},
	[]string{"kind"},
)

var RecordingArchiveDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "recording_archive_duration_seconds",
		Help: "Time taken to archive a call recording",
		Buckets: prometheus.ExponentialBuckets(
			providerRequestBucketStart,
			providerRequestBucketFactor,
			providerRequestBucketCount,
		),
	},
	[]string{"op"},
)

func init() {
	prometheus.MustRegister(ProviderRequestDuration)
	prometheus.MustRegister(WebhookEventsTotal)
	prometheus.MustRegister(InsightsRequestDuration)
	prometheus.MustRegister(DispatchBatchDuration)
	prometheus.MustRegister(RecordingArchiveDuration)
}
