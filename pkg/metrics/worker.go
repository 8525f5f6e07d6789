package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WorkerMetrics records prediction worker outcomes per model.
type WorkerMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	retries  *prometheus.CounterVec
}

// NewWorkerMetrics registers the worker metrics on the provided registerer.
func NewWorkerMetrics(reg prometheus.Registerer) *WorkerMetrics {
	if reg == nil {
		return &WorkerMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "prediction_duration_seconds",
		Help:    "End-to-end duration of prediction jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "prediction_success",
		Help: "Prediction jobs that reached completed.",
	}, []string{"model"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "prediction_failure",
		Help: "Prediction jobs that reached failed.",
	}, []string{"model"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "prediction_retries",
		Help: "Prediction attempts after the first.",
	}, []string{"model"})
	reg.MustRegister(duration, success, failure, retries)
	return &WorkerMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		retries:  retries,
	}
}

// ObserveDuration records the duration for the named model.
func (w *WorkerMetrics) ObserveDuration(model string, duration time.Duration) {
	if w == nil || w.duration == nil {
		return
	}
	w.duration.WithLabelValues(normalizeLabel(model)).Observe(duration.Seconds())
}

// IncSuccess increments the completed counter for the named model.
func (w *WorkerMetrics) IncSuccess(model string) {
	if w == nil || w.success == nil {
		return
	}
	w.success.WithLabelValues(normalizeLabel(model)).Inc()
}

// IncFailure increments the failed counter for the named model.
func (w *WorkerMetrics) IncFailure(model string) {
	if w == nil || w.failure == nil {
		return
	}
	w.failure.WithLabelValues(normalizeLabel(model)).Inc()
}

// IncRetry increments the retry counter for the named model.
func (w *WorkerMetrics) IncRetry(model string) {
	if w == nil || w.retries == nil {
		return
	}
	w.retries.WithLabelValues(normalizeLabel(model)).Inc()
}

func normalizeLabel(model string) string {
	if model == "" {
		return "unknown"
	}
	return model
}
