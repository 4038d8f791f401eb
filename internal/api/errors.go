package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/forge-api/internal/domain"
	"github.com/phrazzld/forge-api/internal/service"
	"github.com/phrazzld/forge-api/internal/service/auth"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized

	// Not found errors
	case errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, service.ErrProviderNotFound),
		errors.Is(err, service.ErrAccountNotFound),
		errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, service.ErrEmailExists),
		errors.Is(err, service.ErrProviderNameExists):
		return http.StatusConflict

	// Unprocessable: the provider exists but no integration backs it
	case errors.Is(err, service.ErrNoIntegration):
		return http.StatusUnprocessableEntity

	// Domain validation errors are client mistakes
	case isValidationError(err):
		return http.StatusBadRequest

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"

	case errors.Is(err, auth.ErrInvalidCredentials):
		return "Invalid credentials"

	case errors.Is(err, service.ErrTaskNotFound):
		return "Task not found"

	case errors.Is(err, service.ErrProviderNotFound):
		return "Provider not found"

	case errors.Is(err, service.ErrAccountNotFound):
		return "Account not found"

	case errors.Is(err, service.ErrUserNotFound):
		return "User not found"

	case errors.Is(err, service.ErrEmailExists):
		return "Email already exists"

	case errors.Is(err, service.ErrProviderNameExists):
		return "Provider name already exists"

	case errors.Is(err, service.ErrNoIntegration):
		return "No integration available for this provider"

	// Validation messages are written for users already, pass them through
	case isValidationError(err):
		return err.Error()

	default:
		return "An unexpected error occurred"
	}
}

// validationErrors lists the domain sentinels that indicate bad client
// input rather than a server fault.
var validationErrors = []error{
	domain.ErrEmptyTaskTitle,
	domain.ErrEmptyTaskType,
	domain.ErrInvalidPriority,
	domain.ErrInvalidTaskStatus,
	domain.ErrEmptyProviderName,
	domain.ErrEmptyProviderEndpoint,
	domain.ErrNoCompetencies,
	domain.ErrInvalidProviderStatus,
	domain.ErrEmptyAccountName,
	domain.ErrEmptyAccountCredentials,
	domain.ErrNegativeTokenLimit,
	domain.ErrInvalidAccountStatus,
	domain.ErrEmptyUserEmail,
	domain.ErrInvalidUserRole,
}

func isValidationError(err error) bool {
	for _, sentinel := range validationErrors {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
