package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/javajoker/dlms-backend/internal/i18n"
	"github.com/javajoker/dlms-backend/internal/models"
	"github.com/javajoker/dlms-backend/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := i18n.Initialize("en"); err != nil {
		panic(err)
	}
}

func TestNegotiateLanguage(t *testing.T) {
	cases := map[string]string{
		"":                        "en",
		"am-ET,am;q=0.9,en;q=0.8": "am",
		"fr-FR, en;q=0.5":         "en",
		"de":                      "en",
		"AM":                      "am",
		",;,-":                    "en",
	}
	for header, want := range cases {
		assert.Equal(t, want, negotiateLanguage(header, "en"), "header %q", header)
	}
}

func TestRateLimiterPerIP(t *testing.T) {
	rl := NewRateLimiter(rate.Every(time.Hour), 2)
	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2"))
}

func TestRateLimiterSweepsIdleVisitors(t *testing.T) {
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(rate.Every(time.Hour), 1)
	rl.now = func() time.Time { return now }

	rl.getVisitor("10.0.0.1")
	require.Len(t, rl.visitors, 1)

	now = now.Add(visitorTTL + 2*time.Minute)
	rl.getVisitor("10.0.0.2")
	assert.Len(t, rl.visitors, 1)
	assert.Contains(t, rl.visitors, "10.0.0.2")
}

func TestAuthAndRoles(t *testing.T) {
	utils.SetJWTSecret("middleware-test-secret")

	r := gin.New()
	r.Use(I18nMiddleware("en"))
	authed := r.Group("/", AuthRequired())
	authed.GET("/examiner", ExaminerRequired(), func(c *gin.Context) { c.Status(http.StatusOK) })
	authed.GET("/candidate", CandidateRequired(), func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(path, authorization string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	bearer := func(role models.UserRole) string {
		token, err := utils.GenerateJWT(uuid.New(), string(role), 1)
		require.NoError(t, err)
		return "Bearer " + token
	}

	assert.Equal(t, http.StatusUnauthorized, call("/examiner", ""))
	assert.Equal(t, http.StatusUnauthorized, call("/examiner", "Token abc"))
	assert.Equal(t, http.StatusUnauthorized, call("/examiner", "Bearer not-a-jwt"))

	assert.Equal(t, http.StatusOK, call("/examiner", bearer(models.UserRoleExaminer)))
	assert.Equal(t, http.StatusOK, call("/examiner", bearer(models.UserRoleAdmin)))
	assert.Equal(t, http.StatusForbidden, call("/examiner", bearer(models.UserRoleCandidate)))
	assert.Equal(t, http.StatusOK, call("/candidate", bearer(models.UserRoleCandidate)))
	assert.Equal(t, http.StatusForbidden, call("/candidate", bearer(models.UserRoleAdmin)))
}

func TestExtractResource(t *testing.T) {
	id := uuid.NewString()
	assert.Equal(t, "exams", extractResourceType("/v1/admin/exams/"+id+"/approve"))
	assert.Equal(t, "payments", extractResourceType("/v1/payments"))
	assert.Equal(t, "health", extractResourceType("/health"))
	assert.Equal(t, id, extractResourceID("/v1/admin/exams/"+id+"/approve"))
	assert.Equal(t, "", extractResourceID("/v1/payments/me"))
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://portal.dlms.local"}))
	r.GET("/v1/exams/me", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/v1/exams/me", nil)
	req.Header.Set("Origin", "https://portal.dlms.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://portal.dlms.local", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/v1/exams/me", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
