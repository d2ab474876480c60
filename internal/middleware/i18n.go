// internal/middleware/i18n.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/dlms-backend/internal/i18n"
	"github.com/javajoker/dlms-backend/internal/utils"
)

// I18nMiddleware picks the response language from Accept-Language, falling
// back to defaultLang.
func I18nMiddleware(defaultLang string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(utils.ContextLang, negotiateLanguage(c.GetHeader("Accept-Language"), defaultLang))
		c.Next()
	}
}

// negotiateLanguage handles headers like "am-ET,am;q=0.9,en;q=0.8" by taking
// the first supported primary tag in the order given.
func negotiateLanguage(header, defaultLang string) string {
	for _, part := range strings.Split(header, ",") {
		tag := strings.TrimSpace(strings.Split(part, ";")[0])
		subtags := strings.FieldsFunc(tag, func(r rune) bool { return r == '-' || r == '_' })
		if len(subtags) == 0 {
			continue
		}
		primary := strings.ToLower(subtags[0])
		if i18n.Supports(primary) {
			return primary
		}
	}
	return defaultLang
}
