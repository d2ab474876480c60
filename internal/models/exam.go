// internal/models/exam.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Evaluation is the examiner's record of a practical exam, embedded in the schedule row.
type Evaluation struct {
	Score       *float64   `json:"score,omitempty"`
	Rubric      JSONB      `json:"rubric,omitempty" gorm:"type:jsonb"`
	EvaluatorID *uuid.UUID `json:"evaluator_id,omitempty" gorm:"type:uuid"`
	Remarks     string     `json:"remarks,omitempty" gorm:"type:text"`
	EvaluatedAt *time.Time `json:"evaluated_at,omitempty"`
}

type ExamSchedule struct {
	BaseModel
	CandidateID  uuid.UUID   `json:"candidate_id" gorm:"type:uuid;not null;index"`
	ExamType     ExamType    `json:"exam_type" gorm:"type:varchar(20);not null;index"`
	ScheduledAt  time.Time   `json:"scheduled_at" gorm:"not null;index"`
	Location     string      `json:"location" gorm:"size:255;not null"`
	Notes        string      `json:"notes,omitempty" gorm:"type:text"`
	ExaminerID   *uuid.UUID  `json:"examiner_id,omitempty" gorm:"type:uuid;index"`
	Status       ExamStatus  `json:"status" gorm:"type:varchar(20);not null;index"`
	Result       ExamOutcome `json:"result" gorm:"type:varchar(10);not null;default:'pending'"`
	Evaluation   Evaluation  `json:"evaluation" gorm:"embedded;embeddedPrefix:evaluation_"`
	AdminMessage string      `json:"admin_message,omitempty" gorm:"type:text"`
	ApprovedAt   *time.Time  `json:"approved_at,omitempty"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`

	// Theory question ids handed out on the first sitting; answers are
	// scored against these only.
	SittingQuestions StringList `json:"-" gorm:"type:text"`

	// Relationships
	Candidate *User `json:"candidate,omitempty" gorm:"foreignKey:CandidateID"`
	Examiner  *User `json:"examiner,omitempty" gorm:"foreignKey:ExaminerID"`
}

// examTransitions lists the legal moves of the schedule state machine.
var examTransitions = map[ExamStatus][]ExamStatus{
	ExamStatusScheduled:       {ExamStatusApproved, ExamStatusRejected},
	ExamStatusApproved:        {ExamStatusPendingApproval, ExamStatusCompleted, ExamStatusCancelled, ExamStatusNoShow},
	ExamStatusInProgress:      {ExamStatusPendingApproval, ExamStatusCompleted, ExamStatusCancelled},
	ExamStatusPendingApproval: {ExamStatusCompleted, ExamStatusRejected},
}

// CanTransition reports whether the schedule may move from its current status to next.
// Practical exams reach completed only through pending_approval, and theory exams never
// pass through pending_approval.
func (e *ExamSchedule) CanTransition(next ExamStatus) bool {
	if e.ExamType == ExamTypePractical && next == ExamStatusCompleted &&
		(e.Status == ExamStatusApproved || e.Status == ExamStatusInProgress) {
		return false
	}
	if e.ExamType == ExamTypeTheory && next == ExamStatusPendingApproval {
		return false
	}
	for _, s := range examTransitions[e.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the schedule can no longer change.
func (e *ExamSchedule) IsTerminal() bool {
	return len(examTransitions[e.Status]) == 0
}

// IsActive reports whether the schedule counts against the one-active-exam rule.
func (e *ExamSchedule) IsActive() bool {
	for _, s := range ActiveExamStatuses {
		if e.Status == s {
			return true
		}
	}
	return false
}

type ExamResult struct {
	BaseModel
	CandidateID      uuid.UUID  `json:"candidate_id" gorm:"type:uuid;not null;index"`
	ExamType         ExamType   `json:"exam_type" gorm:"type:varchar(20);not null;index"`
	Language         string     `json:"language" gorm:"size:10;default:'en'"`
	Score            float64    `json:"score" gorm:"type:decimal(5,2);not null"`
	Passed           bool       `json:"passed" gorm:"not null;index"`
	CorrectAnswers   int        `json:"correct_answers"`
	TotalQuestions   int        `json:"total_questions"`
	TimeSpentSeconds int        `json:"time_spent_seconds"`
	ExamScheduleID   *uuid.UUID `json:"exam_schedule_id,omitempty" gorm:"type:uuid;index"`
	Cancelled        bool       `json:"cancelled" gorm:"default:false"`

	// Relationships
	ExamSchedule *ExamSchedule `json:"exam_schedule,omitempty" gorm:"foreignKey:ExamScheduleID"`
}

// NewExamResult builds a result whose Passed flag always agrees with its score.
func NewExamResult(candidateID uuid.UUID, examType ExamType, score float64) *ExamResult {
	return &ExamResult{
		CandidateID: candidateID,
		ExamType:    examType,
		Score:       score,
		Passed:      Passed(score),
		Language:    "en",
	}
}
