package validation

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	validate = validator.New()

	// Symbols are stored lowercase; provider payloads may carry either case.
	symbolPattern = regexp.MustCompile(`^[a-z0-9]{1,16}$`)
)

// ValidationError represents a validation error with field and message
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return strings.Join(messages, "; ")
}

func init() {
	validate.RegisterValidation("symbol", validateSymbol)
	validate.RegisterValidation("price", validatePrice)
	validate.RegisterValidation("observed_at", validateObservedAt)
}

// validateSymbol checks the normalized (lowercase) symbol form.
func validateSymbol(fl validator.FieldLevel) bool {
	symbol, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return symbolPattern.MatchString(symbol)
}

// validatePrice requires a finite, non-negative price.
func validatePrice(fl validator.FieldLevel) bool {
	price, ok := fl.Field().Interface().(float64)
	if !ok {
		return false
	}
	return price >= 0 && !math.IsNaN(price) && !math.IsInf(price, 0)
}

// validateObservedAt requires a set, non-future timestamp.
func validateObservedAt(fl validator.FieldLevel) bool {
	ts, ok := fl.Field().Interface().(time.Time)
	if !ok {
		return false
	}
	// Small allowance for provider clock skew.
	return !ts.IsZero() && !ts.After(time.Now().Add(5*time.Minute))
}

// ValidateStruct validates a struct using its validation tags.
func ValidateStruct(s interface{}) ValidationErrors {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var errors ValidationErrors
	if fieldErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range fieldErrors {
			errors = append(errors, ValidationError{
				Field:   fe.Field(),
				Message: messageFor(fe),
				Value:   fe.Value(),
			})
		}
	} else {
		errors = append(errors, ValidationError{Field: "struct", Message: err.Error()})
	}
	return errors
}

// messageFor maps a field error to a human-readable message.
func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "symbol":
		return "must be a lowercase alphanumeric symbol (max 16 chars)"
	case "price":
		return "must be a finite, non-negative number"
	case "observed_at":
		return "must be a set, non-future timestamp"
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// NormalizeSymbol lowercases and trims a symbol into its canonical form.
func NormalizeSymbol(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
