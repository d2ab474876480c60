// internal/services/common.go
package services

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/dlms-backend/internal/apperror"
	"github.com/javajoker/dlms-backend/internal/models"
)

// Actor is the authenticated user performing an operation.
type Actor struct {
	ID   uuid.UUID
	Role models.UserRole
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.UserRoleAdmin
}

// fetchError turns a failed single-row lookup into NotFound or Internal.
func fetchError(err error, resource string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(resource)
	}
	return apperror.Internal("failed to load "+resource, err)
}

// storageError wraps err as Internal unless it already carries a kind.
func storageError(message string, err error) error {
	if _, ok := apperror.As(err); ok {
		return err
	}
	return apperror.Internal(message, err)
}
