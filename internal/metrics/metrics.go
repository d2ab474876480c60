// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the exam and license pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ExamsScheduled      *prometheus.CounterVec
	ExamTransitions     *prometheus.CounterVec
	ExaminerAssignments *prometheus.CounterVec
	LicenseIssuance     *prometheus.CounterVec
	LicenseCollisions   prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ExamsScheduled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dlms_exams_scheduled_total",
			Help: "Exam schedules created, by exam type",
		}, []string{"exam_type"}),

		ExamTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dlms_exam_transitions_total",
			Help: "Exam schedule status transitions, by target status",
		}, []string{"exam_type", "status"}),

		ExaminerAssignments: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dlms_examiner_assignments_total",
			Help: "Examiner assignment attempts, by outcome",
		}, []string{"outcome"}), // outcome: "assigned", "none_available"

		LicenseIssuance: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dlms_license_issuance_total",
			Help: "License issuance calls, by outcome",
		}, []string{"outcome"}), // outcome: "issued", "already_issued", "missing_requirements", "error"

		LicenseCollisions: factory.NewCounter(prometheus.CounterOpts{
			Name: "dlms_license_number_collisions_total",
			Help: "Generated license numbers that already existed",
		}),
	}
}

func (m *Metrics) IncrementScheduled(examType string) {
	if m != nil {
		m.ExamsScheduled.WithLabelValues(examType).Inc()
	}
}

func (m *Metrics) IncrementTransition(examType, status string) {
	if m != nil {
		m.ExamTransitions.WithLabelValues(examType, status).Inc()
	}
}

func (m *Metrics) IncrementAssignment(outcome string) {
	if m != nil {
		m.ExaminerAssignments.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementIssuance(outcome string) {
	if m != nil {
		m.LicenseIssuance.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementCollision() {
	if m != nil {
		m.LicenseCollisions.Inc()
	}
}
