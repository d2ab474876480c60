// internal/testutil/testutil.go

// Package testutil provides a migrated in-memory database and fixtures for tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/javajoker/dlms-backend/internal/database"
	"github.com/javajoker/dlms-backend/internal/models"
)

// NewDB opens a private in-memory sqlite database with the production schema.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(0)

	require.NoError(t, database.RunMigrations(db))

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

func CreateUser(t testing.TB, db *gorm.DB, role models.UserRole, name string) *models.User {
	t.Helper()

	active := true
	user := &models.User{
		FullName: name,
		Email:    fmt.Sprintf("%s.%s@example.test", strings.ToLower(strings.ReplaceAll(name, " ", ".")), uuid.NewString()[:8]),
		Role:     role,
		IsActive: &active,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func CreateCandidate(t testing.TB, db *gorm.DB) *models.User {
	return CreateUser(t, db, models.UserRoleCandidate, "Candidate")
}

func CreateExaminer(t testing.TB, db *gorm.DB, name string) *models.User {
	return CreateUser(t, db, models.UserRoleExaminer, name)
}

func CreateAdmin(t testing.TB, db *gorm.DB) *models.User {
	return CreateUser(t, db, models.UserRoleAdmin, "Admin")
}

// CreateSchedule inserts a schedule row directly, bypassing the scheduler rules.
func CreateSchedule(t testing.TB, db *gorm.DB, candidateID uuid.UUID, examType models.ExamType, status models.ExamStatus, at time.Time) *models.ExamSchedule {
	t.Helper()

	schedule := &models.ExamSchedule{
		CandidateID: candidateID,
		ExamType:    examType,
		ScheduledAt: at,
		Location:    "Addis Ababa Driving Center",
		Status:      status,
		Result:      models.ExamOutcomePending,
	}
	require.NoError(t, db.Create(schedule).Error)
	return schedule
}

// CreatePassedTheory records a passed theory exam result.
func CreatePassedTheory(t testing.TB, db *gorm.DB, candidateID uuid.UUID, score float64) *models.ExamResult {
	t.Helper()

	result := models.NewExamResult(candidateID, models.ExamTypeTheory, score)
	result.CorrectAnswers = int(score / 5)
	result.TotalQuestions = 20
	require.NoError(t, db.Create(result).Error)
	return result
}

// CreateCompletedPractical records a practical exam that only exists as a
// completed schedule with an embedded evaluation.
func CreateCompletedPractical(t testing.TB, db *gorm.DB, candidateID uuid.UUID, examinerID *uuid.UUID, score *float64) *models.ExamSchedule {
	t.Helper()

	evaluated := time.Now().Add(-time.Hour)
	schedule := &models.ExamSchedule{
		CandidateID: candidateID,
		ExamType:    models.ExamTypePractical,
		ScheduledAt: evaluated.Add(-time.Hour),
		Location:    "Bole Test Track",
		ExaminerID:  examinerID,
		Status:      models.ExamStatusCompleted,
		Result:      models.ExamOutcomePass,
		Evaluation: models.Evaluation{
			Score:       score,
			EvaluatedAt: &evaluated,
		},
		CompletedAt: &evaluated,
	}
	require.NoError(t, db.Create(schedule).Error)
	return schedule
}

func CreatePayment(t testing.TB, db *gorm.DB, candidateID uuid.UUID, status models.PaymentStatus) *models.Payment {
	t.Helper()

	payment := &models.Payment{
		CandidateID:   candidateID,
		Amount:        1500,
		Currency:      "ETB",
		Method:        "bank_transfer",
		TransactionID: "TX-" + uuid.NewString()[:8],
		Status:        status,
	}
	require.NoError(t, db.Create(payment).Error)
	return payment
}

func Float(v float64) *float64 {
	return &v
}
