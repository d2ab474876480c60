package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/javajoker/dlms-backend/internal/apperror"
	"github.com/javajoker/dlms-backend/internal/models"
	"github.com/javajoker/dlms-backend/internal/testutil"
	"github.com/javajoker/dlms-backend/internal/utils"
)

type mockCardVerifier struct {
	mock.Mock
}

func (m *mockCardVerifier) Succeeded(ctx context.Context, paymentIntentID string) (bool, error) {
	args := m.Called(ctx, paymentIntentID)
	return args.Bool(0), args.Error(1)
}

type PaymentServiceTestSuite struct {
	suite.Suite
	env       *testEnv
	ctx       context.Context
	verifier  *mockCardVerifier
	service   *PaymentService
	candidate *models.User
	admin     *models.User
}

func (suite *PaymentServiceTestSuite) SetupTest() {
	suite.env = newTestEnv(suite.T())
	suite.ctx = context.Background()
	suite.verifier = &mockCardVerifier{}
	storage, err := NewStorageService(suite.env.cfg.AWS)
	suite.Require().NoError(err)
	suite.service = NewPaymentService(suite.env.db, suite.env.cfg.Payment, storage, suite.verifier, suite.env.dispatcher)
	suite.candidate = testutil.CreateCandidate(suite.T(), suite.env.db)
	suite.admin = testutil.CreateAdmin(suite.T(), suite.env.db)
}

func (suite *PaymentServiceTestSuite) passBothExams() {
	testutil.CreatePassedTheory(suite.T(), suite.env.db, suite.candidate.ID, 90)
	testutil.CreateCompletedPractical(suite.T(), suite.env.db, suite.candidate.ID, nil, testutil.Float(80))
}

func (suite *PaymentServiceTestSuite) submit(method string) *models.Payment {
	payment, err := suite.service.Submit(suite.ctx, suite.candidate.ID, &SubmitPaymentRequest{
		Method:        method,
		TransactionID: "pi_123",
	})
	suite.Require().NoError(err)
	return payment
}

func (suite *PaymentServiceTestSuite) TestSubmitAppliesDefaultsAndLinksExams() {
	suite.passBothExams()

	payment := suite.submit("bank_transfer")
	suite.Equal(models.PaymentStatusPending, payment.Status)
	suite.Equal(1500.0, payment.Amount)
	suite.Equal("ETB", payment.Currency)
	suite.Nil(payment.TheoryExamID)
	suite.NotNil(payment.PracticalExamID)

	suite.env.dispatcher.Wait()
	suite.Contains(suite.env.emitter.titles(), "Payment Submitted")
}

func (suite *PaymentServiceTestSuite) TestSubmitRequiresBothExams() {
	testutil.CreatePassedTheory(suite.T(), suite.env.db, suite.candidate.ID, 90)

	_, err := suite.service.Submit(suite.ctx, suite.candidate.ID, &SubmitPaymentRequest{Method: "cash", TransactionID: "r-1"})
	suite.True(apperror.Is(err, apperror.KindMissingRequirements))
}

func (suite *PaymentServiceTestSuite) TestSubmitRejectsSecondOpenPayment() {
	suite.passBothExams()
	first := suite.submit("cash")

	_, err := suite.service.Submit(suite.ctx, suite.candidate.ID, &SubmitPaymentRequest{Method: "cash", TransactionID: "r-2"})
	suite.True(apperror.Is(err, apperror.KindConflict))
	appErr, _ := apperror.As(err)
	suite.Equal(first.ID, appErr.Details.(map[string]interface{})["payment_id"])
}

func (suite *PaymentServiceTestSuite) TestSubmitValidatesMethod() {
	_, err := suite.service.Submit(suite.ctx, suite.candidate.ID, &SubmitPaymentRequest{Method: "cheque", TransactionID: "r-1"})
	suite.True(apperror.Is(err, apperror.KindValidation))
}

func (suite *PaymentServiceTestSuite) TestVerifyAndRepeatVerify() {
	suite.passBothExams()
	payment := suite.submit("bank_transfer")

	verified, err := suite.service.Verify(suite.ctx, payment.ID, suite.admin.ID, &ReviewPaymentRequest{Note: "receipt ok"})
	suite.Require().NoError(err)
	suite.Equal(models.PaymentStatusVerified, verified.Status)
	suite.Equal(suite.admin.ID, *verified.ReviewedBy)

	_, err = suite.service.Verify(suite.ctx, payment.ID, suite.admin.ID, &ReviewPaymentRequest{})
	suite.True(apperror.Is(err, apperror.KindConflict))

	eligibility, err := ResolveEligibility(suite.ctx, suite.env.db, suite.candidate.ID)
	suite.Require().NoError(err)
	suite.Equal(EligibilityEligibleForLicense, eligibility.Status)

	suite.verifier.AssertNotCalled(suite.T(), "Succeeded", mock.Anything, mock.Anything)
}

func (suite *PaymentServiceTestSuite) TestCardPaymentsAreConfirmed() {
	suite.passBothExams()
	payment := suite.submit(PaymentMethodCard)

	suite.verifier.On("Succeeded", mock.Anything, "pi_123").Return(false, nil).Once()
	_, err := suite.service.Verify(suite.ctx, payment.ID, suite.admin.ID, &ReviewPaymentRequest{})
	suite.True(apperror.Is(err, apperror.KindValidation))

	suite.verifier.On("Succeeded", mock.Anything, "pi_123").Return(false, errors.New("stripe down")).Once()
	_, err = suite.service.Verify(suite.ctx, payment.ID, suite.admin.ID, &ReviewPaymentRequest{})
	suite.True(apperror.Is(err, apperror.KindInternal))

	suite.verifier.On("Succeeded", mock.Anything, "pi_123").Return(true, nil).Once()
	verified, err := suite.service.Verify(suite.ctx, payment.ID, suite.admin.ID, &ReviewPaymentRequest{})
	suite.Require().NoError(err)
	suite.Equal(models.PaymentStatusVerified, verified.Status)

	suite.verifier.AssertExpectations(suite.T())
}

func (suite *PaymentServiceTestSuite) TestRejectAllowsResubmission() {
	suite.passBothExams()
	payment := suite.submit("mobile_money")

	_, err := suite.service.Reject(suite.ctx, payment.ID, suite.admin.ID, &RejectPaymentRequest{})
	suite.True(apperror.Is(err, apperror.KindValidation))

	rejected, err := suite.service.Reject(suite.ctx, payment.ID, suite.admin.ID, &RejectPaymentRequest{Reason: "unreadable receipt"})
	suite.Require().NoError(err)
	suite.Equal(models.PaymentStatusRejected, rejected.Status)

	again := suite.submit("mobile_money")
	suite.NotEqual(payment.ID, again.ID)
}

func (suite *PaymentServiceTestSuite) TestGetHidesOtherCandidatesPayments() {
	suite.passBothExams()
	payment := suite.submit("cash")

	view, err := suite.service.Get(suite.ctx, payment.ID, Actor{ID: suite.candidate.ID, Role: models.UserRoleCandidate})
	suite.Require().NoError(err)
	suite.Equal(payment.ID, view.ID)
	suite.Empty(view.ReceiptURL)

	other := testutil.CreateCandidate(suite.T(), suite.env.db)
	_, err = suite.service.Get(suite.ctx, payment.ID, Actor{ID: other.ID, Role: models.UserRoleCandidate})
	suite.True(apperror.Is(err, apperror.KindNotFound))

	_, err = suite.service.Get(suite.ctx, payment.ID, Actor{ID: suite.admin.ID, Role: models.UserRoleAdmin})
	suite.NoError(err)
}

func (suite *PaymentServiceTestSuite) TestListByStatus() {
	suite.passBothExams()
	suite.submit("cash")
	testutil.CreatePayment(suite.T(), suite.env.db, testutil.CreateCandidate(suite.T(), suite.env.db).ID, models.PaymentStatusVerified)

	pending := models.PaymentStatusPending
	payments, total, err := suite.service.List(suite.ctx, &pending, utils.PaginationParams{Page: 1, Limit: 20})
	suite.Require().NoError(err)
	suite.EqualValues(1, total)
	suite.Len(payments, 1)
	suite.Equal(suite.candidate.ID, payments[0].CandidateID)

	mine, err := suite.service.ListForCandidate(suite.ctx, suite.candidate.ID)
	suite.Require().NoError(err)
	suite.Len(mine, 1)
}

func TestPaymentServiceSuite(t *testing.T) {
	suite.Run(t, new(PaymentServiceTestSuite))
}
