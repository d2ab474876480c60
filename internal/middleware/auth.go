// internal/middleware/auth.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/dlms-backend/internal/i18n"
	"github.com/javajoker/dlms-backend/internal/models"
	"github.com/javajoker/dlms-backend/internal/utils"
)

func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := utils.GetLangFromContext(c)

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthRequired))
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidToken))
			c.Abort()
			return
		}

		claims, err := utils.ValidateJWT(parts[1])
		if err != nil {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthTokenExpired))
			c.Abort()
			return
		}

		c.Set(utils.ContextUserID, claims.UserID)
		c.Set(utils.ContextRole, claims.Role)
		c.Next()
	}
}

// RequireRoles lets the request through when the authenticated role is one
// of roles. It must run after AuthRequired.
func RequireRoles(deniedKey string, roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := utils.GetUserRoleFromContext(c)
		for _, r := range roles {
			if role == string(r) {
				c.Next()
				return
			}
		}
		utils.ForbiddenResponse(c, i18n.T(utils.GetLangFromContext(c), deniedKey))
		c.Abort()
	}
}

func AdminRequired() gin.HandlerFunc {
	return RequireRoles(i18n.KeyAdminAccessDenied, models.UserRoleAdmin)
}

// ExaminerRequired admits examiners and admins.
func ExaminerRequired() gin.HandlerFunc {
	return RequireRoles(i18n.KeyExaminerAccessDenied, models.UserRoleExaminer, models.UserRoleAdmin)
}

func CandidateRequired() gin.HandlerFunc {
	return RequireRoles(i18n.KeyCandidateOnly, models.UserRoleCandidate)
}
