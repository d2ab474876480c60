// internal/services/admin_service.go
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/dlms-backend/internal/apperror"
	"github.com/javajoker/dlms-backend/internal/events"
	"github.com/javajoker/dlms-backend/internal/models"
	"github.com/javajoker/dlms-backend/internal/utils"
)

type AdminService struct {
	db     *gorm.DB
	events *events.Dispatcher
}

type AdminDashboardStats struct {
	TotalCandidates     int64   `json:"total_candidates"`
	ActiveExaminers     int64   `json:"active_examiners"`
	PendingPractical    int64   `json:"pending_practical_approvals"`
	PendingEvaluations  int64   `json:"pending_evaluations"`
	ExamsThisMonth      int64   `json:"exams_this_month"`
	TheoryPassRate      float64 `json:"theory_pass_rate"`
	PendingPayments     int64   `json:"pending_payments"`
	VerifiedRevenue     float64 `json:"verified_revenue"`
	LicensesIssued      int64   `json:"licenses_issued"`
	LicensesThisMonth   int64   `json:"licenses_this_month"`
	UnassignedPractical int64   `json:"unassigned_practical_exams"`
}

type CreateUserRequest struct {
	FullName string          `json:"full_name" validate:"required,min=2,max=150"`
	Email    string          `json:"email" validate:"required,email,max=255"`
	Phone    string          `json:"phone,omitempty" validate:"max=30"`
	Role     models.UserRole `json:"role" validate:"required,oneof=candidate examiner admin"`
}

type SetActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func NewAdminService(db *gorm.DB, dispatcher *events.Dispatcher) *AdminService {
	return &AdminService{db: db, events: dispatcher}
}

// Dashboard Statistics
func (s *AdminService) GetDashboardStats(ctx context.Context) (*AdminDashboardStats, error) {
	stats := &AdminDashboardStats{}
	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	db := s.db.WithContext(ctx)

	queries := []*gorm.DB{
		db.Model(&models.User{}).Where("role = ?", models.UserRoleCandidate).Count(&stats.TotalCandidates),
		db.Model(&models.User{}).
			Where("role = ? AND (is_active = ? OR is_active IS NULL)", models.UserRoleExaminer, true).
			Count(&stats.ActiveExaminers),

		// Exam statistics
		db.Model(&models.ExamSchedule{}).
			Where("exam_type = ? AND status = ?", models.ExamTypePractical, models.ExamStatusScheduled).
			Count(&stats.PendingPractical),
		db.Model(&models.ExamSchedule{}).Where("status = ?", models.ExamStatusPendingApproval).Count(&stats.PendingEvaluations),
		db.Model(&models.ExamSchedule{}).Where("scheduled_at >= ?", monthStart).Count(&stats.ExamsThisMonth),
		db.Model(&models.ExamSchedule{}).
			Where("exam_type = ? AND status = ? AND examiner_id IS NULL", models.ExamTypePractical, models.ExamStatusApproved).
			Count(&stats.UnassignedPractical),

		// Payment statistics
		db.Model(&models.Payment{}).Where("status = ?", models.PaymentStatusPending).Count(&stats.PendingPayments),
		db.Model(&models.Payment{}).
			Where("status = ?", models.PaymentStatusVerified).
			Select("COALESCE(SUM(amount), 0)").Scan(&stats.VerifiedRevenue),

		// License statistics
		db.Model(&models.License{}).Count(&stats.LicensesIssued),
		db.Model(&models.License{}).Where("issue_date >= ?", monthStart).Count(&stats.LicensesThisMonth),
	}
	for _, q := range queries {
		if q.Error != nil {
			return nil, storageError("failed to load dashboard stats", q.Error)
		}
	}

	var theoryTotal, theoryPassed int64
	if err := db.Model(&models.ExamResult{}).Where("exam_type = ? AND cancelled = ?", models.ExamTypeTheory, false).Count(&theoryTotal).Error; err != nil {
		return nil, storageError("failed to load dashboard stats", err)
	}
	if err := db.Model(&models.ExamResult{}).Where("exam_type = ? AND passed = ?", models.ExamTypeTheory, true).Count(&theoryPassed).Error; err != nil {
		return nil, storageError("failed to load dashboard stats", err)
	}
	if theoryTotal > 0 {
		stats.TheoryPassRate = float64(theoryPassed) / float64(theoryTotal) * 100
	}

	return stats, nil
}

// CreateUser adds a user of any role. Emails are unique regardless of case.
func (s *AdminService) CreateUser(ctx context.Context, adminID uuid.UUID, req *CreateUserRequest) (*models.User, error) {
	if err := utils.Validate(req); err != nil {
		return nil, err
	}

	active := true
	user := &models.User{
		FullName: strings.TrimSpace(req.FullName),
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:    req.Phone,
		Role:     req.Role,
		IsActive: &active,
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperror.Conflict("a user with this email already exists", map[string]interface{}{"email": user.Email})
		}
		return nil, apperror.Internal("failed to create user", err)
	}

	logrus.WithFields(logrus.Fields{
		"component": "admin",
		"user_id":   user.ID,
		"role":      user.Role,
	}).Info("User created")

	subject := user.ID
	s.events.Record(events.Activity{
		UserID:    &adminID,
		Category:  "user",
		Action:    "created",
		SubjectID: &subject,
		Metadata:  map[string]interface{}{"role": user.Role},
	})
	return user, nil
}

func (s *AdminService) CreateExaminer(ctx context.Context, adminID uuid.UUID, req *CreateUserRequest) (*models.User, error) {
	req.Role = models.UserRoleExaminer
	return s.CreateUser(ctx, adminID, req)
}

// SetExaminerActive turns an examiner on or off for future assignments.
// Exams already assigned keep their examiner.
func (s *AdminService) SetExaminerActive(ctx context.Context, adminID, examinerID uuid.UUID, req *SetActiveRequest) (*models.User, error) {
	if err := utils.Validate(req); err != nil {
		return nil, err
	}

	var examiner models.User
	if err := s.db.WithContext(ctx).First(&examiner, "id = ? AND role = ?", examinerID, models.UserRoleExaminer).Error; err != nil {
		return nil, fetchError(err, "examiner")
	}

	if err := s.db.WithContext(ctx).Model(&examiner).Update("is_active", *req.Active).Error; err != nil {
		return nil, apperror.Internal("failed to update examiner", err)
	}
	examiner.IsActive = req.Active

	action := "deactivated"
	if *req.Active {
		action = "activated"
	}
	subject := examiner.ID
	s.events.Record(events.Activity{
		UserID:    &adminID,
		Category:  "examiner",
		Action:    action,
		SubjectID: &subject,
	})
	return &examiner, nil
}

// ListExaminers returns every examiner with the workload the assigner sees.
func (s *AdminService) ListExaminers(ctx context.Context, includeInactive bool) ([]ExaminerWorkload, error) {
	loads, err := ExaminerWorkloads(ctx, s.db, includeInactive)
	if err != nil {
		return nil, storageError("failed to list examiners", err)
	}
	if loads == nil {
		loads = []ExaminerWorkload{}
	}
	return loads, nil
}

func (s *AdminService) ListUsers(ctx context.Context, role *models.UserRole, params utils.PaginationParams) ([]models.User, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.User{})
	if role != nil {
		query = query.Where("role = ?", *role)
	}
	if params.Search != "" {
		like := "%" + strings.ToLower(params.Search) + "%"
		query = query.Where("(LOWER(full_name) LIKE ? OR LOWER(email) LIKE ?)", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, storageError("failed to count users", err)
	}

	query = utils.ApplySort(query, params, []string{"created_at", "full_name", "email"})
	query = utils.ApplyPagination(query, params)

	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		return nil, 0, storageError("failed to list users", err)
	}
	return users, total, nil
}
