package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	paperTransitionsTotal *prometheus.CounterVec
	uploadLatencySeconds  prometheus.Histogram
	uploadRejectedTotal   *prometheus.CounterVec
	broadcastRecipients   prometheus.Histogram
	auditWriteDropsTotal  prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "examflow_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "examflow_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "examflow_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		paperTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "examflow_paper_transitions_total",
			Help: "Paper lifecycle transitions applied, by event and resulting status.",
		}, []string{"event", "status"})

		uploadLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "examflow_upload_latency_seconds",
			Help:    "Latency distribution for paper uploads including blob storage.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "examflow_upload_rejected_total",
			Help: "Paper uploads rejected before any store write, by reason.",
		}, []string{"reason"})

		broadcastRecipients = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "examflow_broadcast_recipients",
			Help:    "Recipient count distribution for notification broadcasts.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		})

		auditWriteDropsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "examflow_audit_write_drops_total",
			Help: "Audit log writes that failed and were dropped.",
		})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			paperTransitionsTotal,
			uploadLatencySeconds,
			uploadRejectedTotal,
			broadcastRecipients,
			auditWriteDropsTotal,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// PaperTransitions exposes the counter for lifecycle transitions.
func PaperTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return paperTransitionsTotal
}

// UploadLatency exposes the histogram measuring upload durations.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatencySeconds
}

// UploadRejected exposes the counter for rejected uploads.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}

// BroadcastRecipients exposes the histogram of broadcast fan-out sizes.
func BroadcastRecipients() prometheus.Histogram {
	RegisterMetrics()
	return broadcastRecipients
}

// AuditWriteDrops exposes the counter for dropped audit writes.
func AuditWriteDrops() prometheus.Counter {
	RegisterMetrics()
	return auditWriteDropsTotal
}
