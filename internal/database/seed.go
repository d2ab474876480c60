// internal/database/seed.go
package database

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/dlms-backend/internal/models"
)

type SeedUser struct {
	FullName string
	Email    string
}

type SeedOptions struct {
	Admin     SeedUser
	Examiners []SeedUser
}

func DefaultSeedOptions() SeedOptions {
	return SeedOptions{
		Admin: SeedUser{FullName: "System Administrator", Email: "admin@dlms.local"},
		Examiners: []SeedUser{
			{FullName: "Abebe Kebede", Email: "abebe.examiner@dlms.local"},
			{FullName: "Hana Tesfaye", Email: "hana.examiner@dlms.local"},
		},
	}
}

// SeedInitialData creates the admin and examiner accounts that do not exist yet.
// It is safe to run repeatedly.
func SeedInitialData(db *gorm.DB, opts SeedOptions) error {
	logrus.Info("Seeding initial data")

	if err := ensureUser(db, opts.Admin, models.UserRoleAdmin); err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}

	for _, examiner := range opts.Examiners {
		if err := ensureUser(db, examiner, models.UserRoleExaminer); err != nil {
			return fmt.Errorf("failed to seed examiner %s: %w", examiner.Email, err)
		}
	}

	logrus.Info("Initial data seeding completed")
	return nil
}

func ensureUser(db *gorm.DB, seed SeedUser, role models.UserRole) error {
	var existing models.User
	err := db.Where("email = ?", seed.Email).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	active := true
	user := &models.User{
		FullName: seed.FullName,
		Email:    seed.Email,
		Role:     role,
		IsActive: &active,
	}
	if err := db.Create(user).Error; err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{"email": seed.Email, "role": role}).Info("Seeded user")
	return nil
}
