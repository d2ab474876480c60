// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Authentication
	KeyAuthRequired     = "auth.required"
	KeyAuthInvalidToken = "auth.invalid_token"
	KeyAuthTokenExpired = "auth.token_expired"

	// Access
	KeyAdminAccessDenied    = "admin.access_denied"
	KeyExaminerAccessDenied = "examiner.access_denied"
	KeyCandidateOnly        = "candidate.only"

	// Resources
	KeyUserNotFound    = "user.not_found"
	KeyExamNotFound    = "exam.not_found"
	KeyPaymentNotFound = "payment.not_found"
	KeyLicenseNotFound = "license.not_found"

	// Validation
	KeyValidationInvalid   = "validation.invalid"
	KeyValidationInvalidID = "validation.invalid_id"

	// Rate limiting
	KeyRateLimited = "rate.limited"

	// Server
	KeyInternalError = "server.internal_error"
)
