// internal/services/license_number.go
package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/javajoker/dlms-backend/internal/metrics"
	"github.com/javajoker/dlms-backend/internal/models"
	"github.com/javajoker/dlms-backend/internal/utils"
)

const maxLicenseNumberAttempts = 10

// LicenseNumberGenerator builds numbers of the form
// {prefix}-{year}-{sequence:04d}{millis%10000:04d}{3 random letters}.
type LicenseNumberGenerator struct {
	prefix  string
	now     func() time.Time
	random  func() (string, error)
	metrics *metrics.Metrics
}

func NewLicenseNumberGenerator(prefix string, m *metrics.Metrics) *LicenseNumberGenerator {
	return &LicenseNumberGenerator{
		prefix:  prefix,
		now:     time.Now,
		random:  func() (string, error) { return utils.RandomString(utils.UpperAlpha, 3) },
		metrics: m,
	}
}

// Generate returns a number not yet used by any license. After
// maxLicenseNumberAttempts collisions it returns the millisecond fallback.
func (g *LicenseNumberGenerator) Generate(ctx context.Context, db *gorm.DB) (string, error) {
	db = db.WithContext(ctx)

	for attempt := 0; attempt < maxLicenseNumberAttempts; attempt++ {
		var count int64
		if err := db.Unscoped().Model(&models.License{}).Count(&count).Error; err != nil {
			return "", fmt.Errorf("failed to count licenses: %w", err)
		}

		suffix, err := g.random()
		if err != nil {
			return "", fmt.Errorf("failed to generate license suffix: %w", err)
		}

		now := g.now()
		number := fmt.Sprintf("%s-%d-%04d%04d%s", g.prefix, now.Year(), count+1, now.UnixMilli()%10000, suffix)

		var taken int64
		if err := db.Unscoped().Model(&models.License{}).Where("license_number = ?", number).Count(&taken).Error; err != nil {
			return "", fmt.Errorf("failed to check license number: %w", err)
		}
		if taken == 0 {
			return number, nil
		}
		g.metrics.IncrementCollision()
	}

	return g.Fallback(), nil
}

// Fallback returns {prefix}-{year}-{unixMillis}.
func (g *LicenseNumberGenerator) Fallback() string {
	now := g.now()
	return fmt.Sprintf("%s-%d-%d", g.prefix, now.Year(), now.UnixMilli())
}
