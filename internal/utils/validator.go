// internal/utils/validator.go
package utils

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/javajoker/dlms-backend/internal/apperror"
	"github.com/javajoker/dlms-backend/internal/models"
)

var validate *validator.Validate

var licenseClassPattern = regexp.MustCompile(`^[A-Z][0-9]?$`)

func init() {
	validate = validator.New()
	validate.RegisterValidation("exam_type", validateExamType)
	validate.RegisterValidation("exam_date", validateExamDate)
	validate.RegisterValidation("exam_time", validateExamTime)
	validate.RegisterValidation("license_class", validateLicenseClass)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// Validate checks s and converts failures into a validation error carrying
// per-field details.
func Validate(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	return apperror.Validation("invalid request").WithDetails(GetValidationErrors(err))
}

func validateExamType(fl validator.FieldLevel) bool {
	return models.ExamType(fl.Field().String()).Valid()
}

func validateExamDate(fl validator.FieldLevel) bool {
	_, err := time.Parse("2006-01-02", fl.Field().String())
	return err == nil
}

func validateExamTime(fl validator.FieldLevel) bool {
	_, err := time.Parse("15:04", fl.Field().String())
	return err == nil
}

// License classes are a letter optionally followed by a digit (A, B, C1, ...).
func validateLicenseClass(fl validator.FieldLevel) bool {
	return licenseClassPattern.MatchString(fl.Field().String())
}

// Validation tags for common fields
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   strings.ToLower(e.Field()),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return e.Field() + " must be at least " + e.Param()
	case "max":
		return e.Field() + " must be at most " + e.Param()
	case "exam_type":
		return "Exam type must be theory or practical"
	case "exam_date":
		return e.Field() + " must be a date in YYYY-MM-DD format"
	case "exam_time":
		return e.Field() + " must be a time in HH:MM format"
	case "license_class":
		return "License class must be a letter optionally followed by a digit"
	default:
		return e.Field() + " is invalid"
	}
}
