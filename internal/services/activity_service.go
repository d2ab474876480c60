// internal/services/activity_service.go
package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/dlms-backend/internal/events"
	"github.com/javajoker/dlms-backend/internal/models"
	"github.com/javajoker/dlms-backend/internal/utils"
)

type ActivitySearchParams struct {
	utils.PaginationParams
	UserID    *uuid.UUID
	SubjectID *uuid.UUID
	Category  string
	Action    string
}

type ActivityService struct {
	db *gorm.DB
}

func NewActivityService(db *gorm.DB) *ActivityService {
	return &ActivityService{db: db}
}

// Log implements events.ActivityLogger.
func (s *ActivityService) Log(ctx context.Context, a events.Activity) error {
	entry := &models.ActivityLog{
		UserID:    a.UserID,
		Category:  a.Category,
		Action:    a.Action,
		SubjectID: a.SubjectID,
		Metadata:  models.JSONB(a.Metadata),
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

func (s *ActivityService) List(ctx context.Context, params ActivitySearchParams) ([]models.ActivityLog, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.ActivityLog{})
	if params.Category != "" {
		query = query.Where("category = ?", params.Category)
	}
	if params.Action != "" {
		query = query.Where("action = ?", params.Action)
	}
	if params.UserID != nil {
		query = query.Where("user_id = ?", *params.UserID)
	}
	if params.SubjectID != nil {
		query = query.Where("subject_id = ?", *params.SubjectID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, storageError("failed to count activity", err)
	}

	var logs []models.ActivityLog
	err := utils.ApplyPagination(query.Order("created_at DESC"), params.PaginationParams).Find(&logs).Error
	if err != nil {
		return nil, 0, storageError("failed to list activity", err)
	}
	return logs, total, nil
}
