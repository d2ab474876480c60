// internal/services/license_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/javajoker/dlms-backend/internal/apperror"
	"github.com/javajoker/dlms-backend/internal/config"
	"github.com/javajoker/dlms-backend/internal/database"
	"github.com/javajoker/dlms-backend/internal/events"
	"github.com/javajoker/dlms-backend/internal/metrics"
	"github.com/javajoker/dlms-backend/internal/models"
	"github.com/javajoker/dlms-backend/internal/utils"
)

type IssueLicenseRequest struct {
	PaymentID uuid.UUID `json:"payment_id" validate:"required"`
	Class     string    `json:"class,omitempty" validate:"omitempty,license_class"`
}

// IssueResult is the outcome of an issuance call. AlreadyIssued is a
// success: repeating an issuance returns the license issued the first time.
type IssueResult struct {
	License       *models.License `json:"license"`
	AlreadyIssued bool            `json:"already_issued"`
}

type LicenseVerification struct {
	LicenseNumber string               `json:"license_number"`
	Valid         bool                 `json:"valid"`
	Expired       bool                 `json:"expired"`
	Status        models.LicenseStatus `json:"status"`
	Class         string               `json:"class"`
	HolderName    string               `json:"holder_name"`
	IssueDate     time.Time            `json:"issue_date"`
	ExpiryDate    time.Time            `json:"expiry_date"`
}

// issueTimeout bounds a shared issuance once no caller's context governs it.
const issueTimeout = 30 * time.Second

// LicenseService issues licenses at most once per candidate.
type LicenseService struct {
	db      *gorm.DB
	cfg     config.LicenseConfig
	numbers *LicenseNumberGenerator
	events  *events.Dispatcher
	metrics *metrics.Metrics
	now     func() time.Time

	// Collapses concurrent calls for one candidate inside this process.
	// The unique index on licenses.candidate_id covers other processes.
	inflight singleflight.Group
}

func NewLicenseService(db *gorm.DB, cfg config.LicenseConfig, dispatcher *events.Dispatcher, m *metrics.Metrics) *LicenseService {
	return &LicenseService{
		db:      db,
		cfg:     cfg,
		numbers: NewLicenseNumberGenerator(cfg.NumberPrefix, m),
		events:  dispatcher,
		metrics: m,
		now:     time.Now,
	}
}

// IssueLicense issues a license to an eligible candidate, or returns the one
// already issued.
func (s *LicenseService) IssueLicense(ctx context.Context, candidateID, adminID uuid.UUID, class string) (*IssueResult, error) {
	return s.issueShared(ctx, candidateID, adminID, class, nil)
}

// IssueForPayment issues the license a verified payment pays for.
func (s *LicenseService) IssueForPayment(ctx context.Context, adminID uuid.UUID, req *IssueLicenseRequest) (*IssueResult, error) {
	if err := utils.Validate(req); err != nil {
		return nil, err
	}

	var payment models.Payment
	if err := s.db.WithContext(ctx).First(&payment, "id = ?", req.PaymentID).Error; err != nil {
		return nil, fetchError(err, "payment")
	}

	existing, err := findLicense(s.db.WithContext(ctx), payment.CandidateID)
	if err != nil {
		return nil, storageError("failed to load license", err)
	}
	if existing != nil {
		s.metrics.IncrementIssuance("already_issued")
		return &IssueResult{License: existing, AlreadyIssued: true}, nil
	}

	if payment.Status != models.PaymentStatusVerified {
		return nil, apperror.Validationf("payment must be verified before a license is issued (status: %s)", payment.Status).
			WithDetails(map[string]interface{}{"payment_id": payment.ID, "status": payment.Status})
	}

	return s.issueShared(ctx, payment.CandidateID, adminID, req.Class, &payment.ID)
}

// issueShared joins the in-flight issuance for the candidate, if any. The
// shared work is detached from the caller that started it, so an aborted
// first request does not fail the callers waiting on the same result.
func (s *LicenseService) issueShared(ctx context.Context, candidateID, adminID uuid.UUID, class string, paymentID *uuid.UUID) (*IssueResult, error) {
	ch := s.inflight.DoChan(candidateID.String(), func() (interface{}, error) {
		workCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), issueTimeout)
		defer cancel()
		return s.issue(workCtx, candidateID, adminID, class, paymentID)
	})

	select {
	case <-ctx.Done():
		return nil, apperror.Internal("license issuance abandoned", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*IssueResult), nil
	}
}

func (s *LicenseService) issue(ctx context.Context, candidateID, adminID uuid.UUID, class string, paymentID *uuid.UUID) (*IssueResult, error) {
	if class == "" {
		class = s.cfg.DefaultClass
	}
	log := logrus.WithFields(logrus.Fields{
		"component":    "license_issuer",
		"candidate_id": candidateID,
		"admin_id":     adminID,
	})

	result, err := s.create(ctx, candidateID, adminID, class, paymentID, false)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Someone else inserted first, or the number was taken between check and insert.
		existing, lookupErr := findLicense(s.db.WithContext(ctx), candidateID)
		switch {
		case lookupErr != nil:
			err = lookupErr
		case existing != nil:
			log.WithField("license_number", existing.LicenseNumber).Info("License issued concurrently, returning existing license")
			result, err = &IssueResult{License: existing, AlreadyIssued: true}, nil
		default:
			s.metrics.IncrementCollision()
			result, err = s.create(ctx, candidateID, adminID, class, paymentID, true)
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				if existing, lookupErr := findLicense(s.db.WithContext(ctx), candidateID); lookupErr == nil && existing != nil {
					result, err = &IssueResult{License: existing, AlreadyIssued: true}, nil
				}
			}
		}
	}

	switch {
	case apperror.Is(err, apperror.KindMissingRequirements):
		s.metrics.IncrementIssuance("missing_requirements")
		return nil, err
	case err != nil:
		s.metrics.IncrementIssuance("error")
		return nil, storageError("failed to issue license", err)
	case result.AlreadyIssued:
		s.metrics.IncrementIssuance("already_issued")
		return result, nil
	}

	s.metrics.IncrementIssuance("issued")
	log.WithField("license_number", result.License.LicenseNumber).Info("License issued")

	license := result.License
	s.events.Notify(events.Notification{
		UserID:   candidateID,
		Title:    "License Issued",
		Message:  fmt.Sprintf("Your class %s driving license %s has been issued and is valid until %s.", license.Class, license.LicenseNumber, license.ExpiryDate.Format("2006-01-02")),
		Severity: models.SeveritySuccess,
		Link:     "/licenses/me",
	})
	subject := license.ID
	s.events.Record(events.Activity{
		UserID:    &adminID,
		Category:  "license",
		Action:    "issued",
		SubjectID: &subject,
		Metadata: map[string]interface{}{
			"candidate_id":   candidateID,
			"license_number": license.LicenseNumber,
			"class":          license.Class,
		},
	})
	return result, nil
}

// create runs the existence check, eligibility check and insert in one
// transaction. Unique violations are returned as gorm.ErrDuplicatedKey after
// the transaction has rolled back.
func (s *LicenseService) create(ctx context.Context, candidateID, adminID uuid.UUID, class string, paymentID *uuid.UUID, fallbackNumber bool) (*IssueResult, error) {
	var result *IssueResult

	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		existing, err := findLicense(tx, candidateID)
		if err != nil {
			return err
		}
		if existing != nil {
			result = &IssueResult{License: existing, AlreadyIssued: true}
			return nil
		}

		eligibility, err := ResolveEligibility(ctx, tx, candidateID)
		if err != nil {
			return err
		}
		if missing := eligibility.Missing(); len(missing) > 0 {
			return apperror.MissingRequirements(missing)
		}

		number := s.numbers.Fallback()
		if !fallbackNumber {
			if number, err = s.numbers.Generate(ctx, tx); err != nil {
				return err
			}
		}

		if paymentID == nil && eligibility.Payment != nil {
			paymentID = &eligibility.Payment.ID
		}

		issued := s.now()
		license := &models.License{
			CandidateID:   candidateID,
			LicenseNumber: number,
			Class:         class,
			Status:        models.LicenseStatusActive,
			IssueDate:     issued,
			ExpiryDate:    issued.Add(time.Duration(s.cfg.ValidityYears) * 365 * 24 * time.Hour),
			Theory:        eligibility.TheoryResult.Summary(),
			Practical:     eligibility.PracticalResult.Summary(),
			PaymentID:     paymentID,
			IssuedBy:      adminID,
		}
		if err := tx.Create(license).Error; err != nil {
			return err
		}
		result = &IssueResult{License: license}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *LicenseService) GetCandidateLicense(ctx context.Context, candidateID uuid.UUID) (*models.License, error) {
	var license models.License
	if err := s.db.WithContext(ctx).Preload("Candidate").First(&license, "candidate_id = ?", candidateID).Error; err != nil {
		return nil, fetchError(err, "license")
	}
	return &license, nil
}

// VerifyLicenseNumber is the public authenticity check for a license number.
func (s *LicenseService) VerifyLicenseNumber(ctx context.Context, number string) (*LicenseVerification, error) {
	var license models.License
	if err := s.db.WithContext(ctx).Preload("Candidate").First(&license, "license_number = ?", number).Error; err != nil {
		return nil, fetchError(err, "license")
	}

	expired := license.Expired(s.now())
	v := &LicenseVerification{
		LicenseNumber: license.LicenseNumber,
		Valid:         license.Status == models.LicenseStatusActive && !expired,
		Expired:       expired,
		Status:        license.Status,
		Class:         license.Class,
		IssueDate:     license.IssueDate,
		ExpiryDate:    license.ExpiryDate,
	}
	if license.Candidate != nil {
		v.HolderName = license.Candidate.FullName
	}
	return v, nil
}

func (s *LicenseService) List(ctx context.Context, params utils.PaginationParams) ([]models.License, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.License{})
	if params.Search != "" {
		query = query.Where("license_number LIKE ?", "%"+params.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, storageError("failed to count licenses", err)
	}

	query = utils.ApplySort(query, params, []string{"created_at", "issue_date", "expiry_date", "license_number"})
	query = utils.ApplyPagination(query, params)

	var licenses []models.License
	if err := query.Preload("Candidate").Find(&licenses).Error; err != nil {
		return nil, 0, storageError("failed to list licenses", err)
	}
	return licenses, total, nil
}
