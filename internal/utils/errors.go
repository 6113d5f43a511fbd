// internal/utils/errors.go
package utils

import (
	"errors"
	"net/http"
)

// Domain-level errors used by the service layer to provide
// fine-grained failure reasons.
var (
	ErrInvalidEmail      = errors.New("invalid_email")
	ErrInvalidUserType   = errors.New("invalid_user_type")
	ErrEmailExists       = errors.New("email_exists")
	ErrEmailNotVerified  = errors.New("email_not_verified")
	ErrInvalidToken      = errors.New("invalid_token")
	ErrNotFound          = errors.New("not_found")
	ErrRateLimitExceeded = errors.New("rate_limit_exceeded")

	// For external service failures (Supabase, SendGrid, geolocation)
	ErrExternalServiceFailure = errors.New("external_service_failure")

	// Maintenance features need DB_URL
	ErrMaintenanceDisabled = errors.New("maintenance_disabled")
)

// AppError for structured error handling from services to controllers.
type AppError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HandleAppError centralizes responding to AppErrors.
func HandleAppError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		RespondErrorWithCode(w, appErr.StatusCode, appErr.Code, appErr.Message, nil, appErr.Err)
	} else {
		// Fallback for unexpected error types
		RespondErrorWithCode(w, http.StatusInternalServerError, ErrCodeInternal, "An unexpected error occurred", nil, err)
	}
}
