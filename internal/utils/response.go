// internal/utils/response.go
package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/dlms-backend/internal/apperror"
	"github.com/javajoker/dlms-backend/internal/i18n"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

func CreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{
		Success: true,
		Data:    data,
	})
}

func ErrorResponse(c *gin.Context, statusCode int, code, message string, details interface{}) {
	c.JSON(statusCode, APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func BadRequestResponse(c *gin.Context, message string, details interface{}) {
	lang := GetLangFromContext(c)
	if message == "" {
		message = i18n.T(lang, i18n.KeyValidationInvalid, "request")
	}
	ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", message, details)
}

func UnauthorizedResponse(c *gin.Context, message string) {
	lang := GetLangFromContext(c)
	if message == "" {
		message = i18n.T(lang, i18n.KeyAuthRequired)
	}
	ErrorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", message, nil)
}

func ForbiddenResponse(c *gin.Context, message string) {
	lang := GetLangFromContext(c)
	if message == "" {
		message = i18n.T(lang, i18n.KeyAdminAccessDenied)
	}
	ErrorResponse(c, http.StatusForbidden, "FORBIDDEN", message, nil)
}

type errorMapping struct {
	status int
	code   string
}

// ServiceErrorResponse maps these kinds onto the envelope. Conflicts are
// reported as 400 with the conflicting record in details.
var errorMappings = map[apperror.Kind]errorMapping{
	apperror.KindConflict:            {http.StatusBadRequest, "CONFLICT"},
	apperror.KindValidation:          {http.StatusBadRequest, "VALIDATION_ERROR"},
	apperror.KindMissingRequirements: {http.StatusBadRequest, "MISSING_REQUIREMENTS"},
	apperror.KindNotFound:            {http.StatusNotFound, "NOT_FOUND"},
	apperror.KindUnavailable:         {http.StatusForbidden, "UNAVAILABLE"},
}

// ServiceErrorResponse maps a service error onto the response envelope.
// Only internal errors are logged; the rest are expected outcomes.
func ServiceErrorResponse(c *gin.Context, err error) {
	appErr, ok := apperror.As(err)
	if ok {
		if m, known := errorMappings[appErr.Kind]; known {
			ErrorResponse(c, m.status, m.code, appErr.Message, appErr.Details)
			return
		}
	}

	logrus.WithError(err).WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.FullPath(),
	}).Error("Request failed")
	ErrorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR",
		i18n.T(GetLangFromContext(c), i18n.KeyInternalError), nil)
}

func PaginatedResponse(c *gin.Context, result PaginationResult) {
	SetPaginationHeaders(c, result)
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    result.Data,
		Meta: gin.H{
			"pagination": gin.H{
				"page":        result.Page,
				"limit":       result.Limit,
				"total":       result.Total,
				"total_pages": result.TotalPages,
			},
		},
	})
}

// Keys the middleware stores request state under.
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
	ContextLang   = "lang"
)

func contextString(c *gin.Context, key string) (string, bool) {
	v, exists := c.Get(key)
	if !exists {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func GetLangFromContext(c *gin.Context) string {
	if lang, ok := contextString(c, ContextLang); ok {
		return lang
	}
	return "en"
}

func GetUserIDFromContext(c *gin.Context) (string, bool) {
	return contextString(c, ContextUserID)
}

func GetUserRoleFromContext(c *gin.Context) (string, bool) {
	return contextString(c, ContextRole)
}
