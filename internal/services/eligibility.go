// internal/services/eligibility.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/dlms-backend/internal/models"
)

type EligibilityStatus string

const (
	EligibilityLicenseIssued      EligibilityStatus = "license_issued"
	EligibilityEligibleForLicense EligibilityStatus = "eligible_for_license"
	EligibilityReadyForPayment    EligibilityStatus = "ready_for_payment"
	EligibilityNeedPracticalExam  EligibilityStatus = "need_practical_exam"
	EligibilityNeedTheoryExam     EligibilityStatus = "need_theory_exam"
)

type ResultSource string

const (
	SourceExamResult   ResultSource = "exam_result"
	SourceExamSchedule ResultSource = "exam_schedule"
)

// Defaults used when a practical pass is only recorded on its schedule and
// the evaluation is incomplete. They are display values, not recorded data.
const (
	DefaultPracticalScore   = 85.0
	PlaceholderExaminerName = "Assigned Examiner"
)

// ExamRecord is a passed exam in the same shape whichever table recorded it.
type ExamRecord struct {
	ExamID       *uuid.UUID      `json:"exam_id,omitempty"`
	ResultID     *uuid.UUID      `json:"result_id,omitempty"`
	Source       ResultSource    `json:"source"`
	ExamType     models.ExamType `json:"exam_type"`
	Score        float64         `json:"score"`
	Passed       bool            `json:"passed"`
	TakenAt      time.Time       `json:"taken_at"`
	Location     string          `json:"location,omitempty"`
	ExaminerName string          `json:"examiner_name,omitempty"`
}

// Summary converts the record into the snapshot stored on a license.
func (r *ExamRecord) Summary() models.ExamSummary {
	if r == nil {
		return models.ExamSummary{}
	}
	takenAt := r.TakenAt
	return models.ExamSummary{
		ExamID:   r.ExamID,
		Source:   string(r.Source),
		Score:    r.Score,
		TakenAt:  &takenAt,
		Examiner: r.ExaminerName,
	}
}

type Eligibility struct {
	CandidateID     uuid.UUID         `json:"candidate_id"`
	TheoryPassed    bool              `json:"theory_passed"`
	PracticalPassed bool              `json:"practical_passed"`
	PaymentVerified bool              `json:"payment_verified"`
	TheoryResult    *ExamRecord       `json:"theory_result,omitempty"`
	PracticalResult *ExamRecord       `json:"practical_result,omitempty"`
	Payment         *models.Payment   `json:"payment,omitempty"`
	License         *models.License   `json:"license,omitempty"`
	Status          EligibilityStatus `json:"status"`
}

// Missing names the exams that still have to be passed.
func (e *Eligibility) Missing() []string {
	var missing []string
	if !e.TheoryPassed {
		missing = append(missing, "theory_exam")
	}
	if !e.PracticalPassed {
		missing = append(missing, "practical_exam")
	}
	return missing
}

// ResolveEligibility reads where a candidate stands on the way to a license.
// It only reads, so it can run inside a caller's transaction.
func ResolveEligibility(ctx context.Context, db *gorm.DB, candidateID uuid.UUID) (*Eligibility, error) {
	db = db.WithContext(ctx)
	e := &Eligibility{CandidateID: candidateID}

	theory, err := passedExamResult(db, candidateID, models.ExamTypeTheory)
	if err != nil {
		return nil, err
	}

	practical, err := passedExamResult(db, candidateID, models.ExamTypePractical)
	if err != nil {
		return nil, err
	}
	if practical == nil {
		if practical, err = passedPracticalSchedule(db, candidateID); err != nil {
			return nil, err
		}
	}

	var payment models.Payment
	err = db.Where("candidate_id = ? AND status = ?", candidateID, models.PaymentStatusVerified).
		Order("reviewed_at DESC, created_at DESC").
		First(&payment).Error
	switch {
	case err == nil:
		e.Payment = &payment
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("failed to load verified payment: %w", err)
	}

	license, err := findLicense(db, candidateID)
	if err != nil {
		return nil, err
	}

	e.TheoryResult = theory
	e.PracticalResult = practical
	e.License = license
	e.TheoryPassed = theory != nil
	e.PracticalPassed = practical != nil
	e.PaymentVerified = e.Payment != nil

	switch {
	case e.License != nil:
		e.Status = EligibilityLicenseIssued
	case e.TheoryPassed && e.PracticalPassed && e.PaymentVerified:
		e.Status = EligibilityEligibleForLicense
	case e.TheoryPassed && e.PracticalPassed:
		e.Status = EligibilityReadyForPayment
	case e.TheoryPassed:
		e.Status = EligibilityNeedPracticalExam
	default:
		e.Status = EligibilityNeedTheoryExam
	}
	return e, nil
}

func passedExamResult(db *gorm.DB, candidateID uuid.UUID, examType models.ExamType) (*ExamRecord, error) {
	var result models.ExamResult
	err := db.Preload("ExamSchedule.Examiner").
		Where("candidate_id = ? AND exam_type = ? AND passed = ?", candidateID, examType, true).
		Order("created_at DESC").
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s exam result: %w", examType, err)
	}

	id := result.ID
	record := &ExamRecord{
		ExamID:   result.ExamScheduleID,
		ResultID: &id,
		Source:   SourceExamResult,
		ExamType: result.ExamType,
		Score:    result.Score,
		Passed:   result.Passed,
		TakenAt:  result.CreatedAt,
	}
	if s := result.ExamSchedule; s != nil {
		record.Location = s.Location
		if s.Examiner != nil {
			record.ExaminerName = s.Examiner.FullName
		}
	}
	return record, nil
}

// passedPracticalSchedule projects a completed, passed practical schedule
// into an ExamRecord for candidates whose pass was never written to exam_results.
func passedPracticalSchedule(db *gorm.DB, candidateID uuid.UUID) (*ExamRecord, error) {
	var schedule models.ExamSchedule
	err := db.Preload("Examiner").
		Where("candidate_id = ? AND exam_type = ? AND status = ? AND result = ?",
			candidateID, models.ExamTypePractical, models.ExamStatusCompleted, models.ExamOutcomePass).
		Order("completed_at DESC, scheduled_at DESC").
		First(&schedule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load practical exam schedule: %w", err)
	}

	id := schedule.ID
	record := &ExamRecord{
		ExamID:       &id,
		Source:       SourceExamSchedule,
		ExamType:     models.ExamTypePractical,
		Score:        DefaultPracticalScore,
		Passed:       true,
		TakenAt:      schedule.ScheduledAt,
		Location:     schedule.Location,
		ExaminerName: PlaceholderExaminerName,
	}
	if schedule.Evaluation.Score != nil {
		record.Score = *schedule.Evaluation.Score
	}
	switch {
	case schedule.Evaluation.EvaluatedAt != nil:
		record.TakenAt = *schedule.Evaluation.EvaluatedAt
	case schedule.CompletedAt != nil:
		record.TakenAt = *schedule.CompletedAt
	}
	if schedule.Examiner != nil && schedule.Examiner.FullName != "" {
		record.ExaminerName = schedule.Examiner.FullName
	}
	return record, nil
}

// findLicense returns the candidate's license, including revoked or
// soft-deleted ones, or nil when none was ever issued.
func findLicense(db *gorm.DB, candidateID uuid.UUID) (*models.License, error) {
	var license models.License
	err := db.Unscoped().Where("candidate_id = ?", candidateID).First(&license).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load license: %w", err)
	}
	return &license, nil
}

// EligibilityResolver exposes ResolveEligibility to handlers.
type EligibilityResolver struct {
	db *gorm.DB
}

func NewEligibilityResolver(db *gorm.DB) *EligibilityResolver {
	return &EligibilityResolver{db: db}
}

func (r *EligibilityResolver) Resolve(ctx context.Context, candidateID uuid.UUID) (*Eligibility, error) {
	e, err := ResolveEligibility(ctx, r.db, candidateID)
	if err != nil {
		return nil, storageError("failed to resolve eligibility", err)
	}
	return e, nil
}
