package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents an application error
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// BadRequestError creates a 400 Bad Request error
func BadRequestError(message string, err error) *AppError {
	return NewAppError(http.StatusBadRequest, message, err)
}

// SignatureError creates a 401 error for webhook or callback payloads whose
// signature does not verify.
func SignatureError(message string, err error) *AppError {
	return NewAppError(http.StatusUnauthorized, message, err)
}

// NotFoundError creates a 404 Not Found error
func NotFoundError(message string, err error) *AppError {
	return NewAppError(http.StatusNotFound, message, err)
}

// ConflictError creates a 409 Conflict error
func ConflictError(message string, err error) *AppError {
	return NewAppError(http.StatusConflict, message, err)
}

// ValidationFailedError creates a 422 error for input rejected before any
// external call (malformed VPA, unsupported currency, bad amount).
func ValidationFailedError(message string, err error) *AppError {
	return NewAppError(http.StatusUnprocessableEntity, message, err)
}

// GatewayError creates a 502 error for provider API failures and timeouts.
func GatewayError(message string, err error) *AppError {
	return NewAppError(http.StatusBadGateway, message, err)
}

// ConfigurationError creates a 503 error for missing or rejected gateway
// credentials.
func ConfigurationError(message string, err error) *AppError {
	return NewAppError(http.StatusServiceUnavailable, message, err)
}

// GetAppError returns the first AppError in err's chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	return GetAppError(err) != nil
}

// WrapError wraps an error with additional context
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func hasCode(err error, code int) bool {
	if appErr := GetAppError(err); appErr != nil {
		return appErr.Code == code
	}
	return false
}

// IsNotFoundError checks if an error is a "not found" error
func IsNotFoundError(err error) bool { return hasCode(err, http.StatusNotFound) }

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool { return hasCode(err, http.StatusUnprocessableEntity) }

// IsSignatureError checks if an error is a signature verification failure
func IsSignatureError(err error) bool { return hasCode(err, http.StatusUnauthorized) }

// IsGatewayError checks if an error came from a provider call
func IsGatewayError(err error) bool { return hasCode(err, http.StatusBadGateway) }

// IsConfigurationError checks if an error is a gateway configuration error
func IsConfigurationError(err error) bool { return hasCode(err, http.StatusServiceUnavailable) }

// IsConflictError checks if an error is a conflict error
func IsConflictError(err error) bool { return hasCode(err, http.StatusConflict) }

// IsBadRequestError checks if an error is a bad request error
func IsBadRequestError(err error) bool { return hasCode(err, http.StatusBadRequest) }
