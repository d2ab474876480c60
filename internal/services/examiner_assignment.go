// internal/services/examiner_assignment.go
package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/dlms-backend/internal/metrics"
	"github.com/javajoker/dlms-backend/internal/models"
)

var ErrNoExaminerAvailable = errors.New("no active examiner available")

type ExaminerWorkload struct {
	ExaminerID uuid.UUID `json:"examiner_id"`
	FullName   string    `json:"full_name"`
	Email      string    `json:"email"`
	Active     bool      `json:"active"`
	Workload   int64     `json:"workload"`
}

// ExaminerAssigner picks the least busy active examiner for a practical exam.
// Workloads are counted fresh on every call. Two approvals running at the
// same instant can read the same counts and pick the same examiner; the
// resulting skew is at most one exam per concurrent approval.
type ExaminerAssigner struct {
	intn    func(n int) int
	metrics *metrics.Metrics
}

func NewExaminerAssigner(m *metrics.Metrics) *ExaminerAssigner {
	return &ExaminerAssigner{intn: rand.Intn, metrics: m}
}

// WithRand replaces the tie-breaking source.
func (a *ExaminerAssigner) WithRand(intn func(n int) int) *ExaminerAssigner {
	a.intn = intn
	return a
}

// Assign sets the examiner of a practical schedule without saving it.
func (a *ExaminerAssigner) Assign(ctx context.Context, tx *gorm.DB, schedule *models.ExamSchedule) (*ExaminerWorkload, error) {
	if schedule.ExamType != models.ExamTypePractical {
		return nil, fmt.Errorf("examiners are only assigned to practical exams")
	}

	loads, err := ExaminerWorkloads(ctx, tx, false)
	if err != nil {
		return nil, err
	}
	if len(loads) == 0 {
		a.metrics.IncrementAssignment("none_available")
		return nil, ErrNoExaminerAvailable
	}

	min := int64(math.MaxInt64)
	var tied []ExaminerWorkload
	for _, l := range loads {
		switch {
		case l.Workload < min:
			min = l.Workload
			tied = []ExaminerWorkload{l}
		case l.Workload == min:
			tied = append(tied, l)
		}
	}

	chosen := tied[a.intn(len(tied))]
	schedule.ExaminerID = &chosen.ExaminerID
	a.metrics.IncrementAssignment("assigned")
	return &chosen, nil
}

// ExaminerWorkloads lists examiners with their count of approved or scheduled
// practical exams. A missing active flag counts as active.
func ExaminerWorkloads(ctx context.Context, db *gorm.DB, includeInactive bool) ([]ExaminerWorkload, error) {
	var examiners []models.User
	query := db.WithContext(ctx).Where("role = ?", models.UserRoleExaminer)
	if !includeInactive {
		query = db.WithContext(ctx).Where("role = ? AND (is_active = ? OR is_active IS NULL)", models.UserRoleExaminer, true)
	}
	if err := query.Order("created_at ASC, id ASC").Find(&examiners).Error; err != nil {
		return nil, fmt.Errorf("failed to list examiners: %w", err)
	}
	if len(examiners) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, len(examiners))
	for i, e := range examiners {
		ids[i] = e.ID
	}

	var counts []struct {
		ExaminerID uuid.UUID
		Total      int64
	}
	err := db.WithContext(ctx).Model(&models.ExamSchedule{}).
		Select("examiner_id, COUNT(*) AS total").
		Where("examiner_id IN ? AND exam_type = ? AND status IN ?", ids, models.ExamTypePractical, models.WorkloadExamStatuses).
		Group("examiner_id").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count examiner workload: %w", err)
	}

	byID := make(map[uuid.UUID]int64, len(counts))
	for _, c := range counts {
		byID[c.ExaminerID] = c.Total
	}

	loads := make([]ExaminerWorkload, len(examiners))
	for i, e := range examiners {
		loads[i] = ExaminerWorkload{
			ExaminerID: e.ID,
			FullName:   e.FullName,
			Email:      e.Email,
			Active:     e.Active(),
			Workload:   byID[e.ID],
		}
	}
	return loads, nil
}
