// internal/models/license.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type Payment struct {
	BaseModel
	CandidateID     uuid.UUID     `json:"candidate_id" gorm:"type:uuid;not null;index"`
	Amount          float64       `json:"amount" gorm:"type:decimal(10,2);not null"`
	Currency        string        `json:"currency" gorm:"size:3;not null;default:'ETB'"`
	Method          string        `json:"method" gorm:"size:50;not null"`
	TransactionID   string        `json:"transaction_id" gorm:"size:255;index"`
	ReceiptRef      string        `json:"receipt_ref,omitempty" gorm:"size:500"`
	Status          PaymentStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	ReviewedBy      *uuid.UUID    `json:"reviewed_by,omitempty" gorm:"type:uuid"`
	ReviewedAt      *time.Time    `json:"reviewed_at,omitempty"`
	ReviewNote      string        `json:"review_note,omitempty" gorm:"type:text"`
	TheoryExamID    *uuid.UUID    `json:"theory_exam_id,omitempty" gorm:"type:uuid"`
	PracticalExamID *uuid.UUID    `json:"practical_exam_id,omitempty" gorm:"type:uuid"`

	// Relationships
	Candidate *User `json:"candidate,omitempty" gorm:"foreignKey:CandidateID"`
}

// ExamSummary is the snapshot of a passed exam embedded in a license.
type ExamSummary struct {
	ExamID   *uuid.UUID `json:"exam_id,omitempty" gorm:"type:uuid"`
	Source   string     `json:"source,omitempty" gorm:"size:20"`
	Score    float64    `json:"score" gorm:"type:decimal(5,2)"`
	TakenAt  *time.Time `json:"taken_at,omitempty"`
	Examiner string     `json:"examiner,omitempty" gorm:"size:150"`
}

type License struct {
	BaseModel
	CandidateID   uuid.UUID     `json:"candidate_id" gorm:"type:uuid;not null;uniqueIndex"`
	LicenseNumber string        `json:"license_number" gorm:"size:64;not null;uniqueIndex"`
	Class         string        `json:"class" gorm:"size:20;not null"`
	Status        LicenseStatus `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	IssueDate     time.Time     `json:"issue_date" gorm:"not null"`
	ExpiryDate    time.Time     `json:"expiry_date" gorm:"not null"`
	Theory        ExamSummary   `json:"theory" gorm:"embedded;embeddedPrefix:theory_"`
	Practical     ExamSummary   `json:"practical" gorm:"embedded;embeddedPrefix:practical_"`
	PaymentID     *uuid.UUID    `json:"payment_id,omitempty" gorm:"type:uuid"`
	IssuedBy      uuid.UUID     `json:"issued_by" gorm:"type:uuid;not null"`

	// Relationships
	Candidate *User `json:"candidate,omitempty" gorm:"foreignKey:CandidateID"`
}

// Expired reports whether the license is past its expiry date at t.
func (l *License) Expired(t time.Time) bool {
	return t.After(l.ExpiryDate)
}
