package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// FieldValidationError represents a validation error for a specific field
type FieldValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldValidationErrors represents multiple field validation errors
type FieldValidationErrors []FieldValidationError

// Error implements the error interface
func (e FieldValidationErrors) Error() string {
	var messages []string
	for _, err := range e {
		messages = append(messages, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return strings.Join(messages, "; ")
}

var (
	currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phoneRegex    = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
)

// NormalizeCurrency upper-cases and trims an ISO currency code
func NormalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

// ValidateCurrency checks the ISO 4217 shape of a currency code
func ValidateCurrency(currency string) error {
	if !currencyRegex.MatchString(currency) {
		return ValidationFailedError(ErrInvalidCurrency, fmt.Errorf("got %q", currency))
	}
	return nil
}

// ValidateAmount rejects zero and negative amounts and more than two decimals
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ValidationFailedError(ErrInvalidAmount, fmt.Errorf("got %s", amount.String()))
	}
	if !amount.Equal(amount.Round(2)) {
		return ValidationFailedError("Amount supports at most 2 decimal places", fmt.Errorf("got %s", amount.String()))
	}
	return nil
}

// ValidateCustomer checks the optional customer contact fields
func ValidateCustomer(email, phone string) error {
	var errs FieldValidationErrors
	if email != "" && !emailRegex.MatchString(email) {
		errs = append(errs, FieldValidationError{Field: "customer.email", Message: "invalid email format"})
	}
	if phone != "" && !phoneRegex.MatchString(phone) {
		errs = append(errs, FieldValidationError{Field: "customer.phone", Message: "invalid phone number format"})
	}
	if len(errs) > 0 {
		return ValidationFailedError("Invalid customer details", errs)
	}
	return nil
}
