// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// BeforeCreate assigns the primary key in Go so that postgres and sqlite
// behave the same way.
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL (stored as text on sqlite)
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return fmt.Errorf("unsupported JSONB source type %T", value)
	}
}

// StringList is a list of strings stored as a JSON array. An empty list is
// stored as NULL.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return nil, nil
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (l *StringList) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, (*[]string)(l))
	case string:
		return json.Unmarshal([]byte(v), (*[]string)(l))
	default:
		return fmt.Errorf("unsupported StringList source type %T", value)
	}
}

// Enums
type UserRole string

const (
	UserRoleCandidate UserRole = "candidate"
	UserRoleExaminer  UserRole = "examiner"
	UserRoleAdmin     UserRole = "admin"
)

type ExamType string

const (
	ExamTypeTheory    ExamType = "theory"
	ExamTypePractical ExamType = "practical"
)

func (t ExamType) Valid() bool {
	return t == ExamTypeTheory || t == ExamTypePractical
}

type ExamStatus string

const (
	ExamStatusScheduled       ExamStatus = "scheduled"
	ExamStatusApproved        ExamStatus = "approved"
	ExamStatusInProgress      ExamStatus = "in_progress"
	ExamStatusPendingApproval ExamStatus = "pending_approval"
	ExamStatusCompleted       ExamStatus = "completed"
	ExamStatusRejected        ExamStatus = "rejected"
	ExamStatusCancelled       ExamStatus = "cancelled"
	ExamStatusNoShow          ExamStatus = "no_show"
)

// ActiveExamStatuses are the statuses that count against the
// one-active-exam-per-type rule.
var ActiveExamStatuses = []ExamStatus{
	ExamStatusScheduled,
	ExamStatusApproved,
	ExamStatusInProgress,
}

// WorkloadExamStatuses are the statuses that count towards an examiner's load.
var WorkloadExamStatuses = []ExamStatus{
	ExamStatusApproved,
	ExamStatusScheduled,
}

type ExamOutcome string

const (
	ExamOutcomePending ExamOutcome = "pending"
	ExamOutcomePass    ExamOutcome = "pass"
	ExamOutcomeFail    ExamOutcome = "fail"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusVerified PaymentStatus = "verified"
	PaymentStatusRejected PaymentStatus = "rejected"
)

type LicenseStatus string

const (
	LicenseStatusActive  LicenseStatus = "active"
	LicenseStatusRevoked LicenseStatus = "revoked"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// PassMark is the minimum score, inclusive, that passes an exam.
const PassMark = 74.0

// Passed reports whether score reaches the pass mark.
func Passed(score float64) bool {
	return score >= PassMark
}

// OutcomeForScore maps a final score to pass or fail.
func OutcomeForScore(score float64) ExamOutcome {
	if Passed(score) {
		return ExamOutcomePass
	}
	return ExamOutcomeFail
}
