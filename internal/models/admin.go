// internal/models/admin.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type ActivityLog struct {
	BaseModel
	UserID    *uuid.UUID `json:"user_id" gorm:"type:uuid;index"`
	Category  string     `json:"category" gorm:"size:50;not null;index"`
	Action    string     `json:"action" gorm:"size:100;not null;index"`
	SubjectID *uuid.UUID `json:"subject_id" gorm:"type:uuid;index"`
	Metadata  JSONB      `json:"metadata" gorm:"type:jsonb"`
}

type Notification struct {
	BaseModel
	UserID  uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	Title   string     `json:"title" gorm:"size:255;not null"`
	Message string     `json:"message" gorm:"type:text;not null"`
	Type    Severity   `json:"type" gorm:"type:varchar(20);default:'info'"`
	Link    string     `json:"link,omitempty" gorm:"size:255"`
	Read    bool       `json:"read" gorm:"default:false;index"`
	ReadAt  *time.Time `json:"read_at,omitempty"`
}
