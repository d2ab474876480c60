package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/javajoker/dlms-backend/internal/config"
	"github.com/javajoker/dlms-backend/internal/i18n"
	"github.com/javajoker/dlms-backend/internal/models"
	"github.com/javajoker/dlms-backend/internal/questionbank"
	"github.com/javajoker/dlms-backend/internal/testutil"
	"github.com/javajoker/dlms-backend/internal/utils"
)

const routerBank = `
languages:
  en:
    - {id: a, category: signs, text: A?, options: [x, y], answer: 0}
    - {id: b, category: signs, text: B?, options: [x, y], answer: 1}
    - {id: c, category: rules, text: C?, options: [x, y], answer: 0}
    - {id: d, category: rules, text: D?, options: [x, y], answer: 1}
`

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

type RouterTestSuite struct {
	suite.Suite
	db        *gorm.DB
	app       *App
	now       time.Time
	candidate *models.User
	examiner  *models.User
	admin     *models.User
}

func (suite *RouterTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	suite.Require().NoError(i18n.Initialize("en"))
}

func (suite *RouterTestSuite) SetupTest() {
	suite.db = testutil.NewDB(suite.T())
	suite.now = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	bank, err := questionbank.Parse([]byte(routerBank))
	suite.Require().NoError(err)

	cfg := &config.Config{
		Environment: "test",
		JWT:         config.JWTConfig{SecretKey: "router-test-secret", AccessTokenTTL: 1},
		Payment:     config.PaymentConfig{DefaultCurrency: "ETB", LicenseFee: 1500},
		Exam: config.ExamConfig{
			TheoryQuestionCount: 4,
			WindowOpensBefore:   120 * time.Minute,
			WindowClosesAfter:   240 * time.Minute,
			Timezone:            "UTC",
		},
		License: config.LicenseConfig{NumberPrefix: "ETH", ValidityYears: 5, DefaultClass: "B"},
		I18n:    config.I18nConfig{DefaultLocale: "en"},
	}

	suite.app, err = Initialize(suite.db, cfg, Dependencies{
		Bank:     bank,
		Registry: prometheus.NewRegistry(),
		Now:      func() time.Time { return suite.now },
	})
	suite.Require().NoError(err)
	suite.T().Cleanup(suite.app.Dispatcher.Wait)

	suite.candidate = testutil.CreateCandidate(suite.T(), suite.db)
	suite.examiner = testutil.CreateExaminer(suite.T(), suite.db, "Examiner One")
	suite.admin = testutil.CreateAdmin(suite.T(), suite.db)
}

func (suite *RouterTestSuite) token(user *models.User) string {
	token, err := utils.GenerateJWT(user.ID, string(user.Role), 1)
	suite.Require().NoError(err)
	return token
}

func (suite *RouterTestSuite) do(method, path string, user *models.User, body interface{}) (int, envelope) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		suite.Require().NoError(err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+suite.token(user))
	}
	w := httptest.NewRecorder()
	suite.app.Engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" && bytes.HasPrefix(w.Body.Bytes(), []byte("{")) {
		suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w.Code, env
}

func (suite *RouterTestSuite) decode(env envelope, v interface{}) {
	suite.Require().NoError(json.Unmarshal(env.Data, v))
}

func (suite *RouterTestSuite) TestHealthAndMetrics() {
	code, _ := suite.do(http.MethodGet, "/health", nil, nil)
	suite.Equal(http.StatusOK, code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	suite.app.Engine.ServeHTTP(w, req)
	suite.Equal(http.StatusOK, w.Code)
}

func (suite *RouterTestSuite) TestAuthAndRoles() {
	code, env := suite.do(http.MethodGet, "/v1/exams/me", nil, nil)
	suite.Equal(http.StatusUnauthorized, code)
	suite.Equal("UNAUTHORIZED", env.Error.Code)

	code, env = suite.do(http.MethodGet, "/v1/admin/dashboard/stats", suite.candidate, nil)
	suite.Equal(http.StatusForbidden, code)
	suite.Equal("FORBIDDEN", env.Error.Code)

	code, _ = suite.do(http.MethodPost, "/v1/examiner/exams/"+uuid.NewString()+"/evaluate", suite.candidate, map[string]interface{}{})
	suite.Equal(http.StatusForbidden, code)

	code, _ = suite.do(http.MethodGet, "/v1/admin/dashboard/stats", suite.admin, nil)
	suite.Equal(http.StatusOK, code)
}

func (suite *RouterTestSuite) TestInvalidIDAndNotFound() {
	code, env := suite.do(http.MethodGet, "/v1/exams/not-a-uuid", suite.candidate, nil)
	suite.Equal(http.StatusBadRequest, code)
	suite.Equal("BAD_REQUEST", env.Error.Code)

	code, env = suite.do(http.MethodGet, "/v1/exams/"+uuid.NewString(), suite.candidate, nil)
	suite.Equal(http.StatusNotFound, code)
	suite.Equal("NOT_FOUND", env.Error.Code)
}

func (suite *RouterTestSuite) TestValidationErrorsCarryFields() {
	code, env := suite.do(http.MethodPost, "/v1/exams", suite.candidate, map[string]interface{}{
		"exam_type": "oral",
		"date":      "14/10/2026",
		"time":      "9am",
	})
	suite.Equal(http.StatusBadRequest, code)
	suite.Equal("VALIDATION_ERROR", env.Error.Code)
}

func (suite *RouterTestSuite) TestDuplicateActiveExamIsConflict() {
	body := map[string]interface{}{"exam_type": "practical", "date": "2026-10-20", "time": "10:00", "location": "Bole Test Track"}

	code, env := suite.do(http.MethodPost, "/v1/exams", suite.candidate, body)
	suite.Require().Equal(http.StatusCreated, code)
	var first models.ExamSchedule
	suite.decode(env, &first)

	code, env = suite.do(http.MethodPost, "/v1/exams", suite.candidate, body)
	suite.Equal(http.StatusBadRequest, code)
	suite.Equal("CONFLICT", env.Error.Code)
	existing := env.Error.Details["existing_exam"].(map[string]interface{})
	suite.Equal(first.ID.String(), existing["id"])
	suite.Equal("scheduled", existing["status"])
	suite.Equal("2026-10-20", existing["date"])
	suite.Equal("10:00", existing["time"])
}

func (suite *RouterTestSuite) TestPracticalNotYetAvailableIsForbidden() {
	code, env := suite.do(http.MethodPost, "/v1/exams", suite.candidate, map[string]interface{}{
		"exam_type": "practical", "date": "2026-10-14", "time": "12:00", "location": "Bole Test Track",
	})
	suite.Require().Equal(http.StatusCreated, code)
	var schedule models.ExamSchedule
	suite.decode(env, &schedule)

	code, _ = suite.do(http.MethodPut, "/v1/admin/exams/"+schedule.ID.String()+"/approve", suite.admin, map[string]interface{}{"message": "ok"})
	suite.Require().Equal(http.StatusOK, code)

	code, env = suite.do(http.MethodGet, "/v1/exams/"+schedule.ID.String()+"/take", suite.candidate, nil)
	suite.Equal(http.StatusForbidden, code)
	suite.Equal("UNAVAILABLE", env.Error.Code)
	suite.Contains(env.Error.Message, "180 minutes remain")
}

func (suite *RouterTestSuite) TestFullLicenseJourney() {
	// Theory: booked, taken and passed.
	code, env := suite.do(http.MethodPost, "/v1/exams", suite.candidate, map[string]interface{}{
		"exam_type": "theory", "date": "2026-10-14", "time": "09:30", "location": "Addis Ababa Driving Center",
	})
	suite.Require().Equal(http.StatusCreated, code, "%+v", env.Error)
	var theory models.ExamSchedule
	suite.decode(env, &theory)
	suite.Equal(models.ExamStatusApproved, theory.Status)

	code, env = suite.do(http.MethodGet, "/v1/exams/"+theory.ID.String()+"/take", suite.candidate, nil)
	suite.Require().Equal(http.StatusOK, code)
	suite.NotContains(string(env.Data), `"answer"`)

	code, env = suite.do(http.MethodPost, "/v1/exams/"+theory.ID.String()+"/submit", suite.candidate, map[string]interface{}{
		"answers": []map[string]interface{}{
			{"question_id": "a", "answer_index": 0},
			{"question_id": "b", "answer_index": 1},
			{"question_id": "c", "answer_index": 0},
			{"question_id": "d", "answer_index": 1},
		},
		"time_spent_seconds": 420,
	})
	suite.Require().Equal(http.StatusOK, code, "%+v", env.Error)
	var submitted struct {
		Score  float64 `json:"score"`
		Passed bool    `json:"passed"`
	}
	suite.decode(env, &submitted)
	suite.Equal(100.0, submitted.Score)
	suite.True(submitted.Passed)

	suite.requireEligibility("need_practical_exam")

	// Practical: booked, approved with an examiner, evaluated and finalised.
	code, env = suite.do(http.MethodPost, "/v1/exams", suite.candidate, map[string]interface{}{
		"exam_type": "practical", "date": "2026-10-14", "time": "10:00", "location": "Bole Test Track",
	})
	suite.Require().Equal(http.StatusCreated, code)
	var practical models.ExamSchedule
	suite.decode(env, &practical)

	code, env = suite.do(http.MethodPut, "/v1/admin/exams/"+practical.ID.String()+"/approve", suite.admin, nil)
	suite.Require().Equal(http.StatusOK, code, "%+v", env.Error)
	suite.decode(env, &practical)
	suite.Require().NotNil(practical.ExaminerID)
	suite.Equal(suite.examiner.ID, *practical.ExaminerID)

	code, env = suite.do(http.MethodPost, "/v1/examiner/exams/"+practical.ID.String()+"/evaluate", suite.examiner, map[string]interface{}{
		"score": 88, "remarks": "smooth",
	})
	suite.Require().Equal(http.StatusOK, code, "%+v", env.Error)

	code, env = suite.do(http.MethodPut, "/v1/admin/exams/"+practical.ID.String()+"/finalize", suite.admin, map[string]interface{}{"score": 88})
	suite.Require().Equal(http.StatusOK, code, "%+v", env.Error)

	suite.requireEligibility("ready_for_payment")

	// Payment: submitted and verified.
	code, env = suite.do(http.MethodPost, "/v1/payments", suite.candidate, map[string]interface{}{
		"method": "bank_transfer", "transaction_id": "CBE-778812",
	})
	suite.Require().Equal(http.StatusCreated, code, "%+v", env.Error)
	var payment models.Payment
	suite.decode(env, &payment)

	code, env = suite.do(http.MethodPost, "/v1/admin/licenses", suite.admin, map[string]interface{}{"payment_id": payment.ID})
	suite.Equal(http.StatusBadRequest, code)
	suite.Equal("VALIDATION_ERROR", env.Error.Code)

	code, env = suite.do(http.MethodPut, "/v1/admin/payments/"+payment.ID.String()+"/verify", suite.admin, nil)
	suite.Require().Equal(http.StatusOK, code, "%+v", env.Error)

	suite.requireEligibility("eligible_for_license")

	// License: issued once, repeat returns the same license.
	var issued struct {
		License       models.License `json:"license"`
		AlreadyIssued bool           `json:"already_issued"`
	}
	code, env = suite.do(http.MethodPost, "/v1/admin/licenses", suite.admin, map[string]interface{}{"payment_id": payment.ID})
	suite.Require().Equal(http.StatusOK, code, "%+v", env.Error)
	suite.decode(env, &issued)
	suite.False(issued.AlreadyIssued)
	suite.Regexp(`^ETH-\d{4}-.+`, issued.License.LicenseNumber)
	suite.Equal(88.0, issued.License.Practical.Score)
	number := issued.License.LicenseNumber

	code, env = suite.do(http.MethodPost, "/v1/admin/candidates/"+suite.candidate.ID.String()+"/license", suite.admin, nil)
	suite.Require().Equal(http.StatusOK, code, "%+v", env.Error)
	suite.decode(env, &issued)
	suite.True(issued.AlreadyIssued)
	suite.Equal(number, issued.License.LicenseNumber)

	suite.requireEligibility("license_issued")

	code, env = suite.do(http.MethodGet, "/v1/licenses/verify/"+number, nil, nil)
	suite.Require().Equal(http.StatusOK, code)
	var verification struct {
		Valid      bool   `json:"valid"`
		HolderName string `json:"holder_name"`
	}
	suite.decode(env, &verification)
	suite.True(verification.Valid)
	suite.Equal(suite.candidate.FullName, verification.HolderName)

	suite.app.Dispatcher.Wait()
	var notifications int64
	suite.Require().NoError(suite.db.Model(&models.Notification{}).Where("user_id = ?", suite.candidate.ID).Count(&notifications).Error)
	suite.GreaterOrEqual(notifications, int64(5))
}

func (suite *RouterTestSuite) TestIssueWithoutExamsNamesMissingRequirements() {
	code, env := suite.do(http.MethodPost, "/v1/admin/candidates/"+suite.candidate.ID.String()+"/license", suite.admin, map[string]interface{}{"class": "B"})
	suite.Equal(http.StatusBadRequest, code)
	suite.Equal("MISSING_REQUIREMENTS", env.Error.Code)
	suite.ElementsMatch([]interface{}{"theory_exam", "practical_exam"}, env.Error.Details["missing"])
}

func (suite *RouterTestSuite) requireEligibility(status string) {
	code, env := suite.do(http.MethodGet, "/v1/eligibility/me", suite.candidate, nil)
	suite.Require().Equal(http.StatusOK, code)
	var eligibility struct {
		Status string `json:"status"`
	}
	suite.decode(env, &eligibility)
	suite.Require().Equal(status, eligibility.Status, fmt.Sprintf("eligibility of %s", suite.candidate.ID))
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}
