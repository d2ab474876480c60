// internal/services/exam_session.go
package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/dlms-backend/internal/apperror"
	"github.com/javajoker/dlms-backend/internal/events"
	"github.com/javajoker/dlms-backend/internal/metrics"
	"github.com/javajoker/dlms-backend/internal/models"
	"github.com/javajoker/dlms-backend/internal/questionbank"
	"github.com/javajoker/dlms-backend/internal/utils"
)

type SubmitResultRequest struct {
	Answers          []questionbank.Answer `json:"answers" validate:"required,min=1,dive"`
	TimeSpentSeconds int                   `json:"time_spent_seconds" validate:"min=0"`
	Language         string                `json:"language,omitempty" validate:"max=10"`
}

// ExamSitting is what a candidate receives when starting an exam.
type ExamSitting struct {
	Exam         *models.ExamSchedule          `json:"exam"`
	Language     string                        `json:"language"`
	Questions    []questionbank.PublicQuestion `json:"questions,omitempty"`
	Rubric       []questionbank.Criterion      `json:"rubric,omitempty"`
	Availability Availability                  `json:"availability"`
}

type AvailableExam struct {
	Exam         models.ExamSchedule `json:"exam"`
	Availability Availability        `json:"availability"`
}

type SubmissionResult struct {
	Result   *models.ExamResult   `json:"result"`
	Schedule *models.ExamSchedule `json:"exam"`
}

// ExamSessionService runs exam sittings: handing out questions inside the
// availability window and scoring submitted theory answers.
type ExamSessionService struct {
	db            *gorm.DB
	bank          *questionbank.Bank
	window        *AvailabilityWindow
	events        *events.Dispatcher
	metrics       *metrics.Metrics
	questionCount int

	mu  sync.Mutex
	rng *rand.Rand
}

func NewExamSessionService(db *gorm.DB, bank *questionbank.Bank, window *AvailabilityWindow, dispatcher *events.Dispatcher, m *metrics.Metrics, questionCount int) *ExamSessionService {
	return &ExamSessionService{
		db:            db,
		bank:          bank,
		window:        window,
		events:        dispatcher,
		metrics:       m,
		questionCount: questionCount,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *ExamSessionService) GetExamForTaking(ctx context.Context, scheduleID, candidateID uuid.UUID, language string) (*ExamSitting, error) {
	schedule, err := s.candidateSchedule(ctx, s.db.WithContext(ctx), scheduleID, candidateID)
	if err != nil {
		return nil, err
	}

	verdict := s.window.Check(schedule)
	if !verdict.Available {
		return nil, apperror.Unavailable(verdict.Reason).WithDetails(verdict)
	}

	sitting := &ExamSitting{
		Exam:         schedule,
		Language:     s.bank.Language(language),
		Availability: verdict,
	}
	if schedule.ExamType == models.ExamTypeTheory {
		ids, err := s.sittingQuestions(ctx, schedule)
		if err != nil {
			return nil, err
		}
		sitting.Questions = s.bank.Questions(language, ids)
	} else {
		sitting.Rubric = s.bank.Rubric()
	}
	return sitting, nil
}

// SubmitResult scores a theory sitting, records the result and completes the exam.
func (s *ExamSessionService) SubmitResult(ctx context.Context, scheduleID, candidateID uuid.UUID, req *SubmitResultRequest) (*SubmissionResult, error) {
	if err := utils.Validate(req); err != nil {
		return nil, err
	}

	var result *models.ExamResult
	var schedule *models.ExamSchedule
	var correct, total int
	var score float64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		schedule, err = s.candidateSchedule(ctx, tx, scheduleID, candidateID)
		if err != nil {
			return err
		}
		if schedule.ExamType != models.ExamTypeTheory {
			return apperror.Validation("practical exams are evaluated by an examiner")
		}
		verdict := s.window.Check(schedule)
		if !verdict.Available {
			return apperror.Unavailable(verdict.Reason).WithDetails(verdict)
		}
		if !schedule.CanTransition(models.ExamStatusCompleted) {
			return transitionConflict(schedule, models.ExamStatusCompleted)
		}

		correct, total, err = s.score(schedule.SittingQuestions, req.Answers)
		if err != nil {
			return err
		}
		score = math.Round(float64(correct)/float64(total)*100*100) / 100

		result = models.NewExamResult(candidateID, models.ExamTypeTheory, score)
		result.Language = s.bank.Language(req.Language)
		result.CorrectAnswers = correct
		result.TotalQuestions = total
		result.TimeSpentSeconds = req.TimeSpentSeconds
		result.ExamScheduleID = &schedule.ID
		if err := tx.Create(result).Error; err != nil {
			return err
		}

		now := s.window.now()
		finalScore := score
		schedule.Status = models.ExamStatusCompleted
		schedule.Result = models.OutcomeForScore(score)
		schedule.Evaluation.Score = &finalScore
		schedule.Evaluation.EvaluatedAt = &now
		schedule.CompletedAt = &now
		// Guard against a concurrent submission completing the same sitting.
		res := tx.Model(&models.ExamSchedule{}).
			Where("id = ? AND status = ?", schedule.ID, models.ExamStatusApproved).
			Updates(map[string]interface{}{
				"status":                  schedule.Status,
				"result":                  schedule.Result,
				"evaluation_score":        finalScore,
				"evaluation_evaluated_at": now,
				"completed_at":            now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperror.Conflict("exam was already submitted", map[string]interface{}{"id": schedule.ID})
		}
		return nil
	})
	if err != nil {
		return nil, storageError("failed to submit exam", err)
	}

	s.metrics.IncrementTransition(string(models.ExamTypeTheory), string(models.ExamStatusCompleted))
	logrus.WithFields(logrus.Fields{
		"component":    "exam_session",
		"schedule_id":  scheduleID,
		"candidate_id": candidateID,
		"score":        score,
		"passed":       result.Passed,
	}).Info("Theory exam submitted")

	title, severity := "Theory Exam Passed", models.SeveritySuccess
	if !result.Passed {
		title, severity = "Theory Exam Not Passed", models.SeverityWarning
	}
	s.events.Notify(events.Notification{
		UserID:   candidateID,
		Title:    title,
		Message:  fmt.Sprintf("You answered %d of %d questions correctly (%.2f%%).", correct, total, score),
		Severity: severity,
		Link:     "/eligibility",
	})
	subject := schedule.ID
	s.events.Record(events.Activity{
		UserID:    &candidateID,
		Category:  "exam",
		Action:    "submitted",
		SubjectID: &subject,
		Metadata:  map[string]interface{}{"score": score, "passed": result.Passed},
	})

	return &SubmissionResult{Result: result, Schedule: schedule}, nil
}

// sittingQuestions returns the question ids of the schedule's sitting,
// drawing them on the first call. Later calls get the same questions, so a
// sitting cannot be re-rolled by asking again.
func (s *ExamSessionService) sittingQuestions(ctx context.Context, schedule *models.ExamSchedule) ([]string, error) {
	if len(schedule.SittingQuestions) > 0 {
		return schedule.SittingQuestions, nil
	}

	s.mu.Lock()
	ids := models.StringList(s.bank.SampleIDs(s.questionCount, s.rng))
	s.mu.Unlock()

	db := s.db.WithContext(ctx)
	res := db.Model(&models.ExamSchedule{}).
		Where("id = ? AND sitting_questions IS NULL", schedule.ID).
		Update("sitting_questions", ids)
	if res.Error != nil {
		return nil, apperror.Internal("failed to start exam", res.Error)
	}
	if res.RowsAffected == 0 {
		// A concurrent request drew the questions first.
		var stored models.ExamSchedule
		if err := db.Select("id", "sitting_questions").First(&stored, "id = ?", schedule.ID).Error; err != nil {
			return nil, apperror.Internal("failed to load exam questions", err)
		}
		ids = stored.SittingQuestions
	}
	schedule.SittingQuestions = ids
	return ids, nil
}

// score counts correct answers against the questions handed out in the
// sitting. Questions left unanswered count as wrong.
func (s *ExamSessionService) score(served []string, answers []questionbank.Answer) (correct, total int, err error) {
	if len(served) == 0 {
		return 0, 0, apperror.Validation("exam questions have not been handed out yet")
	}
	inSitting := make(map[string]struct{}, len(served))
	for _, id := range served {
		inSitting[id] = struct{}{}
	}
	for _, a := range answers {
		if _, ok := inSitting[a.QuestionID]; !ok {
			return 0, 0, apperror.Validationf("question %s is not part of this exam", a.QuestionID)
		}
	}

	correct, err = s.bank.Correct(answers)
	if err != nil {
		return 0, 0, apperror.Validation(err.Error())
	}
	return correct, len(served), nil
}

// ListAvailableExams returns the candidate's open exams with the same verdict
// GetExamForTaking would give.
func (s *ExamSessionService) ListAvailableExams(ctx context.Context, candidateID uuid.UUID) ([]AvailableExam, error) {
	var schedules []models.ExamSchedule
	err := s.db.WithContext(ctx).Preload("Examiner").
		Where("candidate_id = ? AND status IN ?", candidateID, models.ActiveExamStatuses).
		Order("scheduled_at ASC").
		Find(&schedules).Error
	if err != nil {
		return nil, storageError("failed to list exams", err)
	}

	available := make([]AvailableExam, 0, len(schedules))
	for _, schedule := range schedules {
		available = append(available, AvailableExam{
			Exam:         schedule,
			Availability: s.window.Check(&schedule),
		})
	}
	return available, nil
}

func (s *ExamSessionService) candidateSchedule(ctx context.Context, db *gorm.DB, scheduleID, candidateID uuid.UUID) (*models.ExamSchedule, error) {
	var schedule models.ExamSchedule
	err := db.WithContext(ctx).Preload("Examiner").
		First(&schedule, "id = ? AND candidate_id = ?", scheduleID, candidateID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("exam")
	}
	if err != nil {
		return nil, apperror.Internal("failed to load exam", err)
	}
	return &schedule, nil
}
