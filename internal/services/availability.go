// internal/services/availability.go
package services

import (
	"fmt"
	"math"
	"time"

	"github.com/javajoker/dlms-backend/internal/config"
	"github.com/javajoker/dlms-backend/internal/models"
)

type Availability struct {
	Available        bool     `json:"available"`
	Reason           string   `json:"reason,omitempty"`
	MinutesUntilExam *float64 `json:"minutes_until_exam,omitempty"`
}

// AvailabilityWindow decides whether an exam may be started now. Theory exams
// open as soon as they are approved. Practical exams open a fixed time before
// their slot and close a fixed time after it, both bounds inclusive.
type AvailabilityWindow struct {
	opensBefore time.Duration
	closesAfter time.Duration
	now         func() time.Time
}

func NewAvailabilityWindow(cfg config.ExamConfig, now func() time.Time) *AvailabilityWindow {
	if now == nil {
		now = time.Now
	}
	return &AvailabilityWindow{
		opensBefore: cfg.WindowOpensBefore,
		closesAfter: cfg.WindowClosesAfter,
		now:         now,
	}
}

func (w *AvailabilityWindow) Check(schedule *models.ExamSchedule) Availability {
	if schedule.Status == models.ExamStatusCompleted {
		return Availability{Reason: "exam already completed"}
	}

	if schedule.ExamType == models.ExamTypeTheory {
		if schedule.Status == models.ExamStatusApproved || schedule.Status == models.ExamStatusInProgress {
			return Availability{Available: true}
		}
		return Availability{Reason: fmt.Sprintf("exam is not available (status: %s)", schedule.Status)}
	}

	minutes := schedule.ScheduledAt.Sub(w.now()).Minutes()
	verdict := Availability{MinutesUntilExam: &minutes}

	switch {
	case schedule.Status != models.ExamStatusApproved:
		verdict.Reason = fmt.Sprintf("exam is not available (status: %s)", schedule.Status)
	case minutes > w.opensBefore.Minutes():
		verdict.Reason = fmt.Sprintf("exam not yet available, %d minutes remain", int(math.Ceil(minutes)))
	case minutes < -w.closesAfter.Minutes():
		verdict.Reason = "exam window has expired"
	default:
		verdict.Available = true
	}
	return verdict
}
