// internal/services/payment_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"gorm.io/gorm"

	"github.com/javajoker/dlms-backend/internal/apperror"
	"github.com/javajoker/dlms-backend/internal/config"
	"github.com/javajoker/dlms-backend/internal/events"
	"github.com/javajoker/dlms-backend/internal/models"
	"github.com/javajoker/dlms-backend/internal/utils"
)

const PaymentMethodCard = "card"

type SubmitPaymentRequest struct {
	Amount        float64 `json:"amount,omitempty" validate:"omitempty,min=0.01"`
	Currency      string  `json:"currency,omitempty" validate:"omitempty,len=3"`
	Method        string  `json:"method" validate:"required,oneof=bank_transfer card mobile_money cash"`
	TransactionID string  `json:"transaction_id" validate:"required,max=255"`
	ReceiptRef    string  `json:"receipt_ref,omitempty" validate:"max=500"`
}

type ReviewPaymentRequest struct {
	Note string `json:"note,omitempty" validate:"max=2000"`
}

type RejectPaymentRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

type PaymentView struct {
	*models.Payment
	ReceiptURL string `json:"receipt_url,omitempty"`
}

// CardVerifier confirms card payments with the card processor.
type CardVerifier interface {
	Succeeded(ctx context.Context, paymentIntentID string) (bool, error)
}

type stripeVerifier struct{}

// NewStripeVerifier returns nil when no Stripe key is configured.
func NewStripeVerifier(secretKey string) CardVerifier {
	if secretKey == "" {
		return nil
	}
	stripe.Key = secretKey
	return stripeVerifier{}
}

func (stripeVerifier) Succeeded(ctx context.Context, paymentIntentID string) (bool, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := paymentintent.Get(paymentIntentID, params)
	if err != nil {
		return false, fmt.Errorf("failed to get payment intent: %w", err)
	}
	return pi.Status == stripe.PaymentIntentStatusSucceeded, nil
}

type PaymentService struct {
	db       *gorm.DB
	cfg      config.PaymentConfig
	storage  *StorageService
	verifier CardVerifier
	events   *events.Dispatcher
	now      func() time.Time
}

func NewPaymentService(db *gorm.DB, cfg config.PaymentConfig, storage *StorageService, verifier CardVerifier, dispatcher *events.Dispatcher) *PaymentService {
	return &PaymentService{
		db:       db,
		cfg:      cfg,
		storage:  storage,
		verifier: verifier,
		events:   dispatcher,
		now:      time.Now,
	}
}

// Submit records the license fee payment of a candidate who passed both exams.
func (s *PaymentService) Submit(ctx context.Context, candidateID uuid.UUID, req *SubmitPaymentRequest) (*models.Payment, error) {
	if err := utils.Validate(req); err != nil {
		return nil, err
	}

	payment := &models.Payment{
		CandidateID:   candidateID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Method:        req.Method,
		TransactionID: req.TransactionID,
		ReceiptRef:    req.ReceiptRef,
		Status:        models.PaymentStatusPending,
	}
	if payment.Amount == 0 {
		payment.Amount = s.cfg.LicenseFee
	}
	if payment.Currency == "" {
		payment.Currency = s.cfg.DefaultCurrency
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Payment
		err := tx.Where("candidate_id = ? AND status IN ?", candidateID,
			[]models.PaymentStatus{models.PaymentStatusPending, models.PaymentStatusVerified}).
			First(&existing).Error
		if err == nil {
			return apperror.Conflict(
				fmt.Sprintf("a %s payment already exists", existing.Status),
				map[string]interface{}{"payment_id": existing.ID, "status": existing.Status},
			)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		eligibility, err := ResolveEligibility(ctx, tx, candidateID)
		if err != nil {
			return err
		}
		if missing := eligibility.Missing(); len(missing) > 0 {
			return apperror.MissingRequirements(missing)
		}
		payment.TheoryExamID = eligibility.TheoryResult.ExamID
		payment.PracticalExamID = eligibility.PracticalResult.ExamID

		return tx.Create(payment).Error
	})
	if err != nil {
		return nil, storageError("failed to submit payment", err)
	}

	logrus.WithFields(logrus.Fields{
		"component":    "payment",
		"payment_id":   payment.ID,
		"candidate_id": candidateID,
		"method":       payment.Method,
	}).Info("Payment submitted")

	s.events.Notify(events.Notification{
		UserID:   candidateID,
		Title:    "Payment Submitted",
		Message:  fmt.Sprintf("Your payment of %.2f %s is waiting for verification.", payment.Amount, payment.Currency),
		Severity: models.SeverityInfo,
		Link:     "/payments/" + payment.ID.String(),
	})
	s.record(candidateID, "submitted", payment)
	return payment, nil
}

// Verify accepts a pending payment. Card payments must also have succeeded
// at the card processor when one is configured.
func (s *PaymentService) Verify(ctx context.Context, paymentID, adminID uuid.UUID, req *ReviewPaymentRequest) (*models.Payment, error) {
	if err := utils.Validate(req); err != nil {
		return nil, err
	}

	payment, err := s.load(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentStatusPending {
		return nil, reviewConflict(payment)
	}

	if payment.Method == PaymentMethodCard && s.verifier != nil {
		ok, err := s.verifier.Succeeded(ctx, payment.TransactionID)
		if err != nil {
			return nil, apperror.Internal("failed to confirm card payment", err)
		}
		if !ok {
			return nil, apperror.Validation("card payment has not succeeded")
		}
	}

	if err := s.review(ctx, payment, adminID, models.PaymentStatusVerified, req.Note); err != nil {
		return nil, err
	}

	s.events.Notify(events.Notification{
		UserID:   payment.CandidateID,
		Title:    "Payment Verified",
		Message:  "Your payment has been verified. Your license can now be issued.",
		Severity: models.SeveritySuccess,
		Link:     "/eligibility",
	})
	s.record(adminID, "verified", payment)
	return payment, nil
}

func (s *PaymentService) Reject(ctx context.Context, paymentID, adminID uuid.UUID, req *RejectPaymentRequest) (*models.Payment, error) {
	if err := utils.Validate(req); err != nil {
		return nil, err
	}

	payment, err := s.load(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentStatusPending {
		return nil, reviewConflict(payment)
	}

	if err := s.review(ctx, payment, adminID, models.PaymentStatusRejected, req.Reason); err != nil {
		return nil, err
	}

	s.events.Notify(events.Notification{
		UserID:   payment.CandidateID,
		Title:    "Payment Rejected",
		Message:  "Your payment was rejected: " + req.Reason,
		Severity: models.SeverityError,
		Link:     "/payments/" + payment.ID.String(),
	})
	s.record(adminID, "rejected", payment)
	return payment, nil
}

// Get returns a payment with a receipt link. Candidates only see their own.
func (s *PaymentService) Get(ctx context.Context, paymentID uuid.UUID, actor Actor) (*PaymentView, error) {
	payment, err := s.load(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && payment.CandidateID != actor.ID {
		return nil, apperror.NotFound("payment")
	}

	view := &PaymentView{Payment: payment}
	if view.ReceiptURL, err = s.storage.ReceiptURL(ctx, payment.ReceiptRef); err != nil {
		logrus.WithError(err).WithField("payment_id", payment.ID).Warn("Failed to sign receipt URL")
	}
	return view, nil
}

func (s *PaymentService) ListForCandidate(ctx context.Context, candidateID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	if err := s.db.WithContext(ctx).Where("candidate_id = ?", candidateID).Order("created_at DESC").Find(&payments).Error; err != nil {
		return nil, storageError("failed to list payments", err)
	}
	return payments, nil
}

func (s *PaymentService) List(ctx context.Context, status *models.PaymentStatus, params utils.PaginationParams) ([]models.Payment, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Payment{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, storageError("failed to count payments", err)
	}

	query = utils.ApplySort(query, params, []string{"created_at", "amount", "status"})
	query = utils.ApplyPagination(query, params)

	var payments []models.Payment
	if err := query.Preload("Candidate").Find(&payments).Error; err != nil {
		return nil, 0, storageError("failed to list payments", err)
	}
	return payments, total, nil
}

func (s *PaymentService) load(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.WithContext(ctx).First(&payment, "id = ?", paymentID).Error; err != nil {
		return nil, fetchError(err, "payment")
	}
	return &payment, nil
}

// review moves a pending payment to status. The status condition keeps two
// reviewers from both succeeding.
func (s *PaymentService) review(ctx context.Context, payment *models.Payment, adminID uuid.UUID, status models.PaymentStatus, note string) error {
	now := s.now()
	res := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", payment.ID, models.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":      status,
			"reviewed_by": adminID,
			"reviewed_at": now,
			"review_note": note,
		})
	if res.Error != nil {
		return apperror.Internal("failed to update payment", res.Error)
	}
	if res.RowsAffected == 0 {
		current, err := s.load(ctx, payment.ID)
		if err != nil {
			return err
		}
		return reviewConflict(current)
	}

	payment.Status = status
	payment.ReviewedBy = &adminID
	payment.ReviewedAt = &now
	payment.ReviewNote = note
	return nil
}

func (s *PaymentService) record(userID uuid.UUID, action string, payment *models.Payment) {
	subject := payment.ID
	s.events.Record(events.Activity{
		UserID:    &userID,
		Category:  "payment",
		Action:    action,
		SubjectID: &subject,
		Metadata: map[string]interface{}{
			"candidate_id": payment.CandidateID,
			"amount":       payment.Amount,
			"status":       payment.Status,
		},
	})
}

func reviewConflict(payment *models.Payment) error {
	return apperror.Conflict(
		fmt.Sprintf("payment is already %s", payment.Status),
		map[string]interface{}{"payment_id": payment.ID, "status": payment.Status},
	)
}
