package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/javajoker/dlms-backend/internal/apperror"
	"github.com/javajoker/dlms-backend/internal/models"
	"github.com/javajoker/dlms-backend/internal/testutil"
	"github.com/javajoker/dlms-backend/internal/utils"
)

type AdminServiceTestSuite struct {
	suite.Suite
	env     *testEnv
	ctx     context.Context
	service *AdminService
	admin   *models.User
}

func (suite *AdminServiceTestSuite) SetupTest() {
	suite.env = newTestEnv(suite.T())
	suite.ctx = context.Background()
	suite.service = NewAdminService(suite.env.db, suite.env.dispatcher)
	suite.admin = testutil.CreateAdmin(suite.T(), suite.env.db)
}

func (suite *AdminServiceTestSuite) TestCreateExaminerNormalisesEmail() {
	examiner, err := suite.service.CreateExaminer(suite.ctx, suite.admin.ID, &CreateUserRequest{
		FullName: " Abebe Kebede ",
		Email:    "Abebe@Example.TEST",
		Role:     models.UserRoleCandidate,
	})
	suite.Require().NoError(err)
	suite.Equal(models.UserRoleExaminer, examiner.Role)
	suite.Equal("abebe@example.test", examiner.Email)
	suite.Equal("Abebe Kebede", examiner.FullName)
	suite.True(examiner.Active())

	_, err = suite.service.CreateUser(suite.ctx, suite.admin.ID, &CreateUserRequest{
		FullName: "Someone Else",
		Email:    "abebe@example.test",
		Role:     models.UserRoleCandidate,
	})
	suite.True(apperror.Is(err, apperror.KindConflict))
}

func (suite *AdminServiceTestSuite) TestCreateUserValidates() {
	_, err := suite.service.CreateUser(suite.ctx, suite.admin.ID, &CreateUserRequest{FullName: "X Y", Email: "not-an-email", Role: models.UserRoleAdmin})
	suite.True(apperror.Is(err, apperror.KindValidation))

	_, err = suite.service.CreateUser(suite.ctx, suite.admin.ID, &CreateUserRequest{FullName: "X Y", Email: "x@y.test", Role: "superuser"})
	suite.True(apperror.Is(err, apperror.KindValidation))
}

func (suite *AdminServiceTestSuite) TestSetExaminerActive() {
	examiner := testutil.CreateExaminer(suite.T(), suite.env.db, "Examiner One")
	off := false

	updated, err := suite.service.SetExaminerActive(suite.ctx, suite.admin.ID, examiner.ID, &SetActiveRequest{Active: &off})
	suite.Require().NoError(err)
	suite.False(updated.Active())

	active, err := suite.service.ListExaminers(suite.ctx, false)
	suite.Require().NoError(err)
	suite.Empty(active)

	all, err := suite.service.ListExaminers(suite.ctx, true)
	suite.Require().NoError(err)
	suite.Require().Len(all, 1)
	suite.False(all[0].Active)

	candidate := testutil.CreateCandidate(suite.T(), suite.env.db)
	_, err = suite.service.SetExaminerActive(suite.ctx, suite.admin.ID, candidate.ID, &SetActiveRequest{Active: &off})
	suite.True(apperror.Is(err, apperror.KindNotFound))

	_, err = suite.service.SetExaminerActive(suite.ctx, suite.admin.ID, examiner.ID, &SetActiveRequest{})
	suite.True(apperror.Is(err, apperror.KindValidation))
}

func (suite *AdminServiceTestSuite) TestDashboardStats() {
	candidate := testutil.CreateCandidate(suite.T(), suite.env.db)
	testutil.CreateExaminer(suite.T(), suite.env.db, "Examiner One")
	testutil.CreatePassedTheory(suite.T(), suite.env.db, candidate.ID, 90)
	failed := models.NewExamResult(candidate.ID, models.ExamTypeTheory, 40)
	suite.Require().NoError(suite.env.db.Create(failed).Error)
	testutil.CreatePayment(suite.T(), suite.env.db, candidate.ID, models.PaymentStatusVerified)
	testutil.CreatePayment(suite.T(), suite.env.db, testutil.CreateCandidate(suite.T(), suite.env.db).ID, models.PaymentStatusPending)

	stats, err := suite.service.GetDashboardStats(suite.ctx)
	suite.Require().NoError(err)
	suite.EqualValues(2, stats.TotalCandidates)
	suite.EqualValues(1, stats.ActiveExaminers)
	suite.EqualValues(1, stats.PendingPayments)
	suite.Equal(1500.0, stats.VerifiedRevenue)
	suite.Equal(50.0, stats.TheoryPassRate)
	suite.Zero(stats.LicensesIssued)
}

func (suite *AdminServiceTestSuite) TestListUsersSearchesWithinRole() {
	testutil.CreateUser(suite.T(), suite.env.db, models.UserRoleCandidate, "Hana Tesfaye")
	testutil.CreateUser(suite.T(), suite.env.db, models.UserRoleExaminer, "Hana Girma")

	role := models.UserRoleCandidate
	users, total, err := suite.service.ListUsers(suite.ctx, &role, utils.PaginationParams{Page: 1, Limit: 20, Search: "hana"})
	suite.Require().NoError(err)
	suite.EqualValues(1, total)
	suite.Require().Len(users, 1)
	suite.Equal("Hana Tesfaye", users[0].FullName)
}

func (suite *AdminServiceTestSuite) TestUpdateProfileMerges() {
	users := NewUserService(suite.env.db)
	user := testutil.CreateCandidate(suite.T(), suite.env.db)

	_, err := users.UpdateProfile(suite.ctx, user.ID, &UpdateUserProfileRequest{Profile: map[string]interface{}{"city": "Adama"}})
	suite.Require().NoError(err)
	updated, err := users.UpdateProfile(suite.ctx, user.ID, &UpdateUserProfileRequest{Phone: "+251911000000", Profile: map[string]interface{}{"lang": "am"}})
	suite.Require().NoError(err)

	suite.Equal("+251911000000", updated.Phone)
	suite.Equal("Adama", updated.Profile["city"])
	suite.Equal("am", updated.Profile["lang"])
}

func TestAdminServiceSuite(t *testing.T) {
	suite.Run(t, new(AdminServiceTestSuite))
}
