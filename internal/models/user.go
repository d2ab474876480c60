// internal/models/user.go
package models

type User struct {
	BaseModel
	FullName string   `json:"full_name" gorm:"size:150;not null"`
	Email    string   `json:"email" gorm:"uniqueIndex;size:255;not null"`
	Phone    string   `json:"phone,omitempty" gorm:"size:30"`
	Role     UserRole `json:"role" gorm:"type:varchar(20);not null;index"`
	// IsActive is nil for rows created before the flag existed; those count as active.
	IsActive *bool `json:"is_active,omitempty"`
	Profile  JSONB `json:"profile,omitempty" gorm:"type:jsonb"`
}

// Active reports whether the user is active, treating a missing flag as active.
func (u *User) Active() bool {
	return u.IsActive == nil || *u.IsActive
}
