package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/javajoker/dlms-backend/internal/config"
	"github.com/javajoker/dlms-backend/internal/models"
	"github.com/javajoker/dlms-backend/internal/services"
	"github.com/javajoker/dlms-backend/internal/testutil"
	"github.com/javajoker/dlms-backend/internal/utils"
)

type CLITestSuite struct {
	suite.Suite
	db *gorm.DB
	rt *Runtime
}

func (suite *CLITestSuite) SetupTest() {
	suite.db = testutil.NewDB(suite.T())
	suite.rt = &Runtime{
		Config: &config.Config{
			Environment: "development",
			JWT:         config.JWTConfig{SecretKey: "cli-test-secret", AccessTokenTTL: 2},
		},
		OpenDB:  func(config.DatabaseConfig) (*gorm.DB, error) { return suite.db, nil },
		CloseDB: func(*gorm.DB) {},
	}
}

func (suite *CLITestSuite) run(args ...string) (string, error) {
	var out bytes.Buffer
	cmd := NewRootCommand(suite.rt)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func (suite *CLITestSuite) TestRejectsUnknownFormat() {
	_, err := suite.run("workload", "--format", "xml")
	suite.Error(err)
}

func (suite *CLITestSuite) TestMigrateIsRepeatable() {
	out, err := suite.run("migrate")
	suite.Require().NoError(err)
	suite.Contains(out, "Migrations applied")
}

func (suite *CLITestSuite) TestSeedCreatesAccountsOnce() {
	_, err := suite.run("seed", "--admin-email", "root@dlms.local")
	suite.Require().NoError(err)
	_, err = suite.run("seed", "--admin-email", "root@dlms.local")
	suite.Require().NoError(err)

	var admins, examiners int64
	suite.db.Model(&models.User{}).Where("role = ? AND email = ?", models.UserRoleAdmin, "root@dlms.local").Count(&admins)
	suite.db.Model(&models.User{}).Where("role = ?", models.UserRoleExaminer).Count(&examiners)
	suite.Equal(int64(1), admins)
	suite.Equal(int64(2), examiners)
}

func (suite *CLITestSuite) TestWorkloadTableAndJSON() {
	busy := testutil.CreateExaminer(suite.T(), suite.db, "Busy Examiner")
	testutil.CreateExaminer(suite.T(), suite.db, "Idle Examiner")
	candidate := testutil.CreateCandidate(suite.T(), suite.db)
	schedule := testutil.CreateSchedule(suite.T(), suite.db, candidate.ID, models.ExamTypePractical, models.ExamStatusApproved, suite.db.NowFunc())
	suite.Require().NoError(suite.db.Model(schedule).Update("examiner_id", busy.ID).Error)

	out, err := suite.run("workload")
	suite.Require().NoError(err)
	suite.Contains(out, "Busy Examiner")
	suite.Contains(out, "Idle Examiner")
	suite.Contains(out, "2 examiner(s)")

	out, err = suite.run("workload", "--format", "json")
	suite.Require().NoError(err)
	var loads []services.ExaminerWorkload
	suite.Require().NoError(json.Unmarshal([]byte(out), &loads))
	suite.Require().Len(loads, 2)
	for _, l := range loads {
		if l.ExaminerID == busy.ID {
			suite.Equal(int64(1), l.Workload)
		} else {
			suite.Equal(int64(0), l.Workload)
		}
	}
}

func (suite *CLITestSuite) TestEligibility() {
	candidate := testutil.CreateCandidate(suite.T(), suite.db)
	testutil.CreatePassedTheory(suite.T(), suite.db, candidate.ID, 82)

	out, err := suite.run("eligibility", candidate.ID.String())
	suite.Require().NoError(err)
	suite.Contains(out, string(services.EligibilityNeedPracticalExam))
	suite.Contains(out, "82.00")

	out, err = suite.run("eligibility", candidate.ID.String(), "--format", "json")
	suite.Require().NoError(err)
	var e services.Eligibility
	suite.Require().NoError(json.Unmarshal([]byte(out), &e))
	suite.True(e.TheoryPassed)
	suite.False(e.PracticalPassed)

	_, err = suite.run("eligibility", "nope")
	suite.Error(err)
}

func (suite *CLITestSuite) TestTokenUsesStoredRole() {
	examiner := testutil.CreateExaminer(suite.T(), suite.db, "Token Examiner")

	out, err := suite.run("token", examiner.ID.String())
	suite.Require().NoError(err)

	utils.SetJWTSecret("cli-test-secret")
	claims, err := utils.ValidateJWT(string(bytes.TrimSpace([]byte(out))))
	suite.Require().NoError(err)
	suite.Equal(examiner.ID.String(), claims.UserID)
	suite.Equal(string(models.UserRoleExaminer), claims.Role)
}

func (suite *CLITestSuite) TestTokenErrors() {
	_, err := suite.run("token", uuid.NewString())
	suite.ErrorContains(err, "not found")

	_, err = suite.run("token", uuid.NewString(), "--role", "superuser")
	suite.ErrorContains(err, "invalid role")

	suite.rt.Config.Environment = "production"
	_, err = suite.run("token", uuid.NewString(), "--role", "admin")
	suite.ErrorContains(err, "production")
}

func TestCLISuite(t *testing.T) {
	suite.Run(t, new(CLITestSuite))
}
