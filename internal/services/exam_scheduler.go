// internal/services/exam_scheduler.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/dlms-backend/internal/apperror"
	"github.com/javajoker/dlms-backend/internal/database"
	"github.com/javajoker/dlms-backend/internal/events"
	"github.com/javajoker/dlms-backend/internal/metrics"
	"github.com/javajoker/dlms-backend/internal/models"
	"github.com/javajoker/dlms-backend/internal/utils"
)

type ScheduleExamRequest struct {
	ExamType models.ExamType `json:"exam_type" validate:"required,exam_type"`
	Date     string          `json:"date" validate:"required,exam_date"`
	Time     string          `json:"time" validate:"required,exam_time"`
	Location string          `json:"location" validate:"required,max=255"`
	Notes    string          `json:"notes,omitempty" validate:"max=2000"`
}

type EvaluationRequest struct {
	Score   *float64               `json:"score" validate:"omitempty,min=0,max=100"`
	Rubric  map[string]interface{} `json:"rubric,omitempty"`
	Remarks string                 `json:"remarks,omitempty" validate:"max=2000"`
}

type ScheduleSearchParams struct {
	utils.PaginationParams
	CandidateID *uuid.UUID
	ExaminerID  *uuid.UUID
	ExamType    *models.ExamType
	Status      *models.ExamStatus
}

// ExamScheduler owns the exam schedule state machine.
type ExamScheduler struct {
	db       *gorm.DB
	assigner *ExaminerAssigner
	events   *events.Dispatcher
	metrics  *metrics.Metrics
	location *time.Location
	now      func() time.Time
}

func NewExamScheduler(db *gorm.DB, assigner *ExaminerAssigner, dispatcher *events.Dispatcher, m *metrics.Metrics, location *time.Location) *ExamScheduler {
	if location == nil {
		location = time.UTC
	}
	return &ExamScheduler{
		db:       db,
		assigner: assigner,
		events:   dispatcher,
		metrics:  m,
		location: location,
		now:      time.Now,
	}
}

// ScheduleExam books an exam. Theory exams are approved immediately;
// practical exams wait for an admin.
func (s *ExamScheduler) ScheduleExam(ctx context.Context, candidateID uuid.UUID, req *ScheduleExamRequest) (*models.ExamSchedule, error) {
	if err := utils.Validate(req); err != nil {
		return nil, err
	}

	scheduledAt, err := time.ParseInLocation("2006-01-02 15:04", req.Date+" "+req.Time, s.location)
	if err != nil {
		return nil, apperror.Validationf("invalid exam date or time: %v", err)
	}

	var candidate models.User
	if err := s.db.WithContext(ctx).First(&candidate, "id = ?", candidateID).Error; err != nil {
		return nil, fetchError(err, "candidate")
	}
	if candidate.Role != models.UserRoleCandidate {
		return nil, apperror.Validation("only candidates can schedule exams")
	}

	schedule := &models.ExamSchedule{
		CandidateID: candidateID,
		ExamType:    req.ExamType,
		ScheduledAt: scheduledAt,
		Location:    req.Location,
		Notes:       req.Notes,
		Status:      models.ExamStatusScheduled,
		Result:      models.ExamOutcomePending,
	}
	if req.ExamType == models.ExamTypeTheory {
		now := s.now()
		schedule.Status = models.ExamStatusApproved
		schedule.ApprovedAt = &now
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := activeSchedule(tx, candidateID, req.ExamType)
		if err != nil {
			return err
		}
		if existing != nil {
			return s.conflict(existing)
		}
		return tx.Create(schedule).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost a race against a concurrent booking; the partial unique index caught it.
		existing, lookupErr := activeSchedule(s.db.WithContext(ctx), candidateID, req.ExamType)
		if lookupErr == nil && existing != nil {
			return nil, s.conflict(existing)
		}
		return nil, apperror.Conflict("an active exam of this type already exists", nil)
	}
	if err != nil {
		return nil, storageError("failed to schedule exam", err)
	}

	s.metrics.IncrementScheduled(string(schedule.ExamType))
	logrus.WithFields(logrus.Fields{
		"component":    "exam_scheduler",
		"schedule_id":  schedule.ID,
		"candidate_id": candidateID,
		"exam_type":    schedule.ExamType,
		"status":       schedule.Status,
	}).Info("Exam scheduled")

	message := fmt.Sprintf("Your %s exam is booked for %s at %s.", schedule.ExamType, s.formatSlot(schedule.ScheduledAt), schedule.Location)
	if schedule.Status == models.ExamStatusScheduled {
		message += " It is waiting for approval."
	}
	s.events.Notify(events.Notification{
		UserID:   candidateID,
		Title:    "Exam Scheduled",
		Message:  message,
		Severity: models.SeverityInfo,
		Link:     "/exams/" + schedule.ID.String(),
	})
	s.record(candidateID, "scheduled", schedule, nil)

	return schedule, nil
}

// Approve moves a scheduled exam to approved and, for practical exams,
// assigns the least busy examiner. Approving an approved exam only updates
// its message and fills in a missing examiner.
func (s *ExamScheduler) Approve(ctx context.Context, scheduleID, adminID uuid.UUID, message string) (*models.ExamSchedule, error) {
	var assigned *ExaminerWorkload
	var schedule models.ExamSchedule
	var approved bool

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockSchedule(tx, scheduleID, &schedule); err != nil {
			return err
		}

		if schedule.Status != models.ExamStatusApproved {
			if !schedule.CanTransition(models.ExamStatusApproved) {
				return transitionConflict(&schedule, models.ExamStatusApproved)
			}
			now := s.now()
			schedule.Status = models.ExamStatusApproved
			schedule.ApprovedAt = &now
			approved = true
		}
		if message != "" {
			schedule.AdminMessage = message
		}

		if schedule.ExamType == models.ExamTypePractical && schedule.ExaminerID == nil {
			workload, err := s.assigner.Assign(ctx, tx, &schedule)
			switch {
			case errors.Is(err, ErrNoExaminerAvailable):
				logrus.WithField("schedule_id", schedule.ID).Warn("No active examiner available, approving without one")
			case err != nil:
				return err
			default:
				assigned = workload
			}
		}

		return tx.Save(&schedule).Error
	})
	if err != nil {
		return nil, storageError("failed to approve exam", err)
	}

	// Re-approving an exam that already has everything it needs only
	// updates the admin message.
	if !approved && assigned == nil {
		return s.Get(ctx, schedule.ID)
	}
	if approved {
		s.metrics.IncrementTransition(string(schedule.ExamType), string(models.ExamStatusApproved))
	}

	notice := fmt.Sprintf("Your %s exam on %s has been approved.", schedule.ExamType, s.formatSlot(schedule.ScheduledAt))
	if assigned != nil {
		notice += " Your examiner is " + assigned.FullName + "."
		s.events.Notify(events.Notification{
			UserID:   assigned.ExaminerID,
			Title:    "New Exam Assignment",
			Message:  fmt.Sprintf("You have been assigned a practical exam on %s at %s.", s.formatSlot(schedule.ScheduledAt), schedule.Location),
			Severity: models.SeverityInfo,
			Link:     "/examiner/exams/" + schedule.ID.String(),
		})
	}
	if schedule.AdminMessage != "" {
		notice += " " + schedule.AdminMessage
	}
	s.events.Notify(events.Notification{
		UserID:   schedule.CandidateID,
		Title:    "Exam Approved",
		Message:  notice,
		Severity: models.SeveritySuccess,
		Link:     "/exams/" + schedule.ID.String(),
	})
	action := "approved"
	if !approved {
		action = "examiner_assigned"
	}
	s.record(adminID, action, &schedule, map[string]interface{}{"examiner_id": schedule.ExaminerID})

	return s.Get(ctx, schedule.ID)
}

func (s *ExamScheduler) Reject(ctx context.Context, scheduleID, adminID uuid.UUID, message string) (*models.ExamSchedule, error) {
	schedule, err := s.transition(ctx, scheduleID, models.ExamStatusRejected, func(tx *gorm.DB, schedule *models.ExamSchedule) error {
		schedule.AdminMessage = message
		return nil
	})
	if err != nil {
		return nil, err
	}

	notice := fmt.Sprintf("Your %s exam on %s was rejected.", schedule.ExamType, s.formatSlot(schedule.ScheduledAt))
	if message != "" {
		notice += " " + message
	}
	s.events.Notify(events.Notification{
		UserID:   schedule.CandidateID,
		Title:    "Exam Rejected",
		Message:  notice,
		Severity: models.SeverityWarning,
		Link:     "/exams/" + schedule.ID.String(),
	})
	s.record(adminID, "rejected", schedule, nil)
	return schedule, nil
}

// Complete records the examiner's evaluation of a practical exam and leaves
// the final result to an admin.
func (s *ExamScheduler) Complete(ctx context.Context, scheduleID uuid.UUID, evaluator Actor, req *EvaluationRequest) (*models.ExamSchedule, error) {
	if err := utils.Validate(req); err != nil {
		return nil, err
	}

	// The exam type never changes, so it can be checked outside the lock.
	current, err := s.Get(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if !evaluator.IsAdmin() && (current.ExaminerID == nil || *current.ExaminerID != evaluator.ID) {
		return nil, apperror.NotFound("exam")
	}
	if current.ExamType != models.ExamTypePractical {
		return nil, apperror.Validation("theory exams are completed by submitting answers")
	}

	schedule, err := s.transition(ctx, scheduleID, models.ExamStatusPendingApproval, func(tx *gorm.DB, schedule *models.ExamSchedule) error {
		if !evaluator.IsAdmin() && (schedule.ExaminerID == nil || *schedule.ExaminerID != evaluator.ID) {
			return apperror.NotFound("exam")
		}
		now := s.now()
		evaluatorID := evaluator.ID
		schedule.Evaluation = models.Evaluation{
			Score:       req.Score,
			Rubric:      req.Rubric,
			EvaluatorID: &evaluatorID,
			Remarks:     req.Remarks,
			EvaluatedAt: &now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Notify(events.Notification{
		UserID:   schedule.CandidateID,
		Title:    "Practical Exam Evaluated",
		Message:  "Your practical exam has been evaluated and is awaiting final approval.",
		Severity: models.SeverityInfo,
		Link:     "/exams/" + schedule.ID.String(),
	})
	s.record(evaluator.ID, "evaluated", schedule, map[string]interface{}{"score": req.Score})
	return schedule, nil
}

// FinalizeResult confirms the final score of an evaluated exam.
func (s *ExamScheduler) FinalizeResult(ctx context.Context, scheduleID, adminID uuid.UUID, score float64) (*models.ExamSchedule, error) {
	if score < 0 || score > 100 {
		return nil, apperror.Validationf("score must be between 0 and 100, got %v", score)
	}

	schedule, err := s.transition(ctx, scheduleID, models.ExamStatusCompleted, func(tx *gorm.DB, schedule *models.ExamSchedule) error {
		if schedule.Status != models.ExamStatusPendingApproval {
			return transitionConflict(schedule, models.ExamStatusCompleted)
		}
		now := s.now()
		finalScore := score
		schedule.Result = models.OutcomeForScore(score)
		schedule.Evaluation.Score = &finalScore
		schedule.CompletedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	title, severity := "Exam Passed", models.SeveritySuccess
	if schedule.Result == models.ExamOutcomeFail {
		title, severity = "Exam Not Passed", models.SeverityWarning
	}
	s.events.Notify(events.Notification{
		UserID:   schedule.CandidateID,
		Title:    title,
		Message:  fmt.Sprintf("Your %s exam score is %.2f (pass mark %.0f).", schedule.ExamType, score, models.PassMark),
		Severity: severity,
		Link:     "/eligibility",
	})
	s.record(adminID, "finalized", schedule, map[string]interface{}{"score": score, "result": schedule.Result})
	return schedule, nil
}

// Cancel abandons a started exam and records a zero-score cancelled result.
func (s *ExamScheduler) Cancel(ctx context.Context, scheduleID uuid.UUID, actor Actor) (*models.ExamSchedule, error) {
	schedule, err := s.transition(ctx, scheduleID, models.ExamStatusCancelled, func(tx *gorm.DB, schedule *models.ExamSchedule) error {
		if !actor.IsAdmin() && schedule.CandidateID != actor.ID {
			return apperror.NotFound("exam")
		}
		result := models.NewExamResult(schedule.CandidateID, schedule.ExamType, 0)
		result.ExamScheduleID = &schedule.ID
		result.Cancelled = true
		return tx.Create(result).Error
	})
	if err != nil {
		return nil, err
	}

	s.events.Notify(events.Notification{
		UserID:   schedule.CandidateID,
		Title:    "Exam Cancelled",
		Message:  fmt.Sprintf("Your %s exam on %s was cancelled.", schedule.ExamType, s.formatSlot(schedule.ScheduledAt)),
		Severity: models.SeverityWarning,
	})
	s.record(actor.ID, "cancelled", schedule, nil)
	return schedule, nil
}

// MarkNoShow records that the candidate did not attend an approved exam.
func (s *ExamScheduler) MarkNoShow(ctx context.Context, scheduleID, adminID uuid.UUID) (*models.ExamSchedule, error) {
	schedule, err := s.transition(ctx, scheduleID, models.ExamStatusNoShow, nil)
	if err != nil {
		return nil, err
	}

	s.events.Notify(events.Notification{
		UserID:   schedule.CandidateID,
		Title:    "Missed Exam",
		Message:  fmt.Sprintf("You did not attend your %s exam on %s. You can book a new one.", schedule.ExamType, s.formatSlot(schedule.ScheduledAt)),
		Severity: models.SeverityWarning,
	})
	s.record(adminID, "no_show", schedule, nil)
	return schedule, nil
}

func (s *ExamScheduler) Get(ctx context.Context, scheduleID uuid.UUID) (*models.ExamSchedule, error) {
	var schedule models.ExamSchedule
	if err := s.db.WithContext(ctx).Preload("Examiner").First(&schedule, "id = ?", scheduleID).Error; err != nil {
		return nil, fetchError(err, "exam")
	}
	return &schedule, nil
}

// GetForActor returns the schedule if the actor may see it.
func (s *ExamScheduler) GetForActor(ctx context.Context, scheduleID uuid.UUID, actor Actor) (*models.ExamSchedule, error) {
	schedule, err := s.Get(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	switch actor.Role {
	case models.UserRoleAdmin:
	case models.UserRoleExaminer:
		if schedule.ExaminerID == nil || *schedule.ExaminerID != actor.ID {
			return nil, apperror.NotFound("exam")
		}
	default:
		if schedule.CandidateID != actor.ID {
			return nil, apperror.NotFound("exam")
		}
	}
	return schedule, nil
}

func (s *ExamScheduler) ListForCandidate(ctx context.Context, candidateID uuid.UUID) ([]models.ExamSchedule, error) {
	var schedules []models.ExamSchedule
	err := s.db.WithContext(ctx).Preload("Examiner").
		Where("candidate_id = ?", candidateID).
		Order("scheduled_at DESC").
		Find(&schedules).Error
	if err != nil {
		return nil, storageError("failed to list exams", err)
	}
	return schedules, nil
}

func (s *ExamScheduler) Search(ctx context.Context, params ScheduleSearchParams) ([]models.ExamSchedule, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.ExamSchedule{})

	if params.CandidateID != nil {
		query = query.Where("candidate_id = ?", *params.CandidateID)
	}
	if params.ExaminerID != nil {
		query = query.Where("examiner_id = ?", *params.ExaminerID)
	}
	if params.ExamType != nil {
		query = query.Where("exam_type = ?", *params.ExamType)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, storageError("failed to count exams", err)
	}

	query = utils.ApplySort(query, params.PaginationParams, []string{"created_at", "scheduled_at", "status"})
	query = utils.ApplyPagination(query, params.PaginationParams)

	var schedules []models.ExamSchedule
	if err := query.Preload("Candidate").Preload("Examiner").Find(&schedules).Error; err != nil {
		return nil, 0, storageError("failed to list exams", err)
	}
	return schedules, total, nil
}

// transition loads the schedule under lock, checks the move is legal,
// applies mutate and saves. mutate may veto the move by returning an error.
func (s *ExamScheduler) transition(ctx context.Context, scheduleID uuid.UUID, next models.ExamStatus, mutate func(tx *gorm.DB, schedule *models.ExamSchedule) error) (*models.ExamSchedule, error) {
	var schedule models.ExamSchedule

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockSchedule(tx, scheduleID, &schedule); err != nil {
			return err
		}
		if !schedule.CanTransition(next) {
			return transitionConflict(&schedule, next)
		}
		if mutate != nil {
			if err := mutate(tx, &schedule); err != nil {
				return err
			}
		}
		schedule.Status = next
		return tx.Save(&schedule).Error
	})
	if err != nil {
		return nil, storageError("failed to update exam", err)
	}

	s.metrics.IncrementTransition(string(schedule.ExamType), string(next))
	logrus.WithFields(logrus.Fields{
		"component":   "exam_scheduler",
		"schedule_id": schedule.ID,
		"status":      next,
	}).Info("Exam status changed")
	return &schedule, nil
}

func (s *ExamScheduler) conflict(existing *models.ExamSchedule) error {
	local := existing.ScheduledAt.In(s.location)
	return apperror.Conflict(
		fmt.Sprintf("you already have an active %s exam", existing.ExamType),
		map[string]interface{}{
			"existing_exam": map[string]interface{}{
				"id":     existing.ID,
				"status": existing.Status,
				"date":   local.Format("2006-01-02"),
				"time":   local.Format("15:04"),
			},
		},
	)
}

func (s *ExamScheduler) formatSlot(t time.Time) string {
	return t.In(s.location).Format("2006-01-02 15:04")
}

func (s *ExamScheduler) record(userID uuid.UUID, action string, schedule *models.ExamSchedule, metadata map[string]interface{}) {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadata["exam_type"] = schedule.ExamType
	metadata["status"] = schedule.Status

	subject := schedule.ID
	s.events.Record(events.Activity{
		UserID:    &userID,
		Category:  "exam",
		Action:    action,
		SubjectID: &subject,
		Metadata:  metadata,
	})
}

func activeSchedule(db *gorm.DB, candidateID uuid.UUID, examType models.ExamType) (*models.ExamSchedule, error) {
	var existing models.ExamSchedule
	err := db.Where("candidate_id = ? AND exam_type = ? AND status IN ?", candidateID, examType, models.ActiveExamStatuses).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &existing, nil
}

func lockSchedule(tx *gorm.DB, scheduleID uuid.UUID, schedule *models.ExamSchedule) error {
	if err := database.ForUpdate(tx).First(schedule, "id = ?", scheduleID).Error; err != nil {
		return fetchError(err, "exam")
	}
	return nil
}

func transitionConflict(schedule *models.ExamSchedule, next models.ExamStatus) error {
	return apperror.Conflict(
		fmt.Sprintf("exam cannot move from %s to %s", schedule.Status, next),
		map[string]interface{}{"id": schedule.ID, "status": schedule.Status},
	)
}
