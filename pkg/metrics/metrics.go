// Package metrics provides Prometheus-based metrics recording for message
// processing, order transitions, notifications, and LLM calls.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the Prometheus collectors for the whole service.
type Recorder struct {
	messagesProcessed  *prometheus.CounterVec
	intentsClassified  *prometheus.CounterVec
	orderTransitions   *prometheus.CounterVec
	notificationsSent  *prometheus.CounterVec
	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec
}

//nolint:gochecknoglobals // Singleton recorder; promauto registers collectors once
var (
	defaultRecorder *Recorder
	recorderOnce    sync.Once
)

// Default returns the process-wide recorder, creating it on first use.
func Default() *Recorder {
	recorderOnce.Do(func() {
		defaultRecorder = newRecorder()
	})
	return defaultRecorder
}

func newRecorder() *Recorder {
	return &Recorder{
		messagesProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messages_processed_total",
				Help: "Total number of inbound messages processed by channel and outcome",
			},
			[]string{"channel", "outcome"},
		),
		intentsClassified: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intents_classified_total",
				Help: "Total number of intent classifications by label",
			},
			[]string{"label"},
		),
		orderTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_transitions_total",
				Help: "Total number of order status transitions by from/to state and result",
			},
			[]string{"from", "to", "result"},
		),
		notificationsSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_sent_total",
				Help: "Total number of outbound notifications by channel and status",
			},
			[]string{"channel", "status"},
		),
		llmRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_requests_total",
				Help: "Total number of LLM requests by model, purpose, and status",
			},
			[]string{"model", "purpose", "status", "error_type"},
		),
		llmRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_request_duration_seconds",
				Help:    "Duration of LLM requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model", "purpose"},
		),
	}
}

// IncMessageProcessed records one handled inbound message.
func (r *Recorder) IncMessageProcessed(channel, outcome string) {
	r.messagesProcessed.WithLabelValues(channel, outcome).Inc()
}

// IncIntentClassified records one classifier verdict.
func (r *Recorder) IncIntentClassified(label string) {
	r.intentsClassified.WithLabelValues(label).Inc()
}

// IncOrderTransition records one transition attempt.
// result is "applied", "guard_failed", or "invalid".
func (r *Recorder) IncOrderTransition(from, to, result string) {
	r.orderTransitions.WithLabelValues(from, to, result).Inc()
}

// IncNotificationSent records one dispatched notification.
func (r *Recorder) IncNotificationSent(channel, status string) {
	r.notificationsSent.WithLabelValues(channel, status).Inc()
}

// ObserveLLMRequest records metrics for a completed LLM request.
func (r *Recorder) ObserveLLMRequest(model, purpose string, success bool, errorType string, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}

	r.llmRequestsTotal.WithLabelValues(model, purpose, status, errorType).Inc()
	r.llmRequestDuration.WithLabelValues(model, purpose).Observe(duration.Seconds())
}
