// Package metrics exposes Prometheus instrumentation for the upload pipeline.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry at zero cost.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upload outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Metrics holds the pipeline's collectors.
type Metrics struct {
	uploadsTotal       *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	callDuration       *prometheus.HistogramVec
	acceptedBytes      prometheus.Counter
}

// New registers the pipeline collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		uploadsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "carpin_uploads_total",
				Help: "Total number of uploads by upload type and outcome",
			},
			[]string{"type", "outcome"},
		),
		validationFailures: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "carpin_validation_failures_total",
				Help: "Total number of rejected archives by reason",
			},
			[]string{"reason"},
		),
		callDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "carpin_collaborator_call_duration_milliseconds",
				Help: "Duration of collaborator calls in milliseconds",
				Buckets: []float64{
					10,    // 10ms - local stores
					50,    // 50ms
					100,   // 100ms
					500,   // 500ms - small remote adds
					1000,  // 1s
					5000,  // 5s - synchronous replication
					30000, // 30s
					60000, // 60s - large archives
				},
			},
			[]string{"op", "status"},
		),
		acceptedBytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "carpin_accepted_bytes_total",
				Help: "Total archive bytes of accepted uploads",
			},
		),
	}
}

// ObserveUpload records the outcome of one upload.
func (m *Metrics) ObserveUpload(uploadType, outcome string, carBytes int) {
	if m == nil {
		return
	}
	m.uploadsTotal.WithLabelValues(uploadType, outcome).Inc()
	if outcome == OutcomeAccepted {
		m.acceptedBytes.Add(float64(carBytes))
	}
}

// ObserveValidationFailure records a rejected archive.
func (m *Metrics) ObserveValidationFailure(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.validationFailures.WithLabelValues(reason).Inc()
}

// ObserveCall records a collaborator call (replicate, backup, persist).
func (m *Metrics) ObserveCall(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.callDuration.WithLabelValues(op, status).Observe(float64(d.Milliseconds()))
}
