package service

import (
	"errors"
	"fmt"
)

// Common sentinel errors for the service layer
var (
	// ErrTaskNotFound indicates that the task does not exist
	ErrTaskNotFound = errors.New("task not found")

	// ErrProviderNotFound indicates that the provider does not exist
	ErrProviderNotFound = errors.New("provider not found")

	// ErrAccountNotFound indicates that the provider account does not exist
	ErrAccountNotFound = errors.New("account not found")

	// ErrUserNotFound indicates that the user does not exist
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailExists indicates that a user with the given email already exists
	ErrEmailExists = errors.New("email already registered")

	// ErrProviderNameExists indicates that a provider with the given name already exists
	ErrProviderNameExists = errors.New("provider name already exists")

	// ErrNoIntegration indicates that no integration is registered for a provider
	ErrNoIntegration = errors.New("no integration registered for provider")
)

// ServiceError wraps errors from the service layer with operation context.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "create_task", "add_account")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// newServiceError wraps err with operation context, passing service
// sentinels through untouched so callers can match on them.
func newServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	for _, sentinel := range []error{
		ErrTaskNotFound,
		ErrProviderNotFound,
		ErrAccountNotFound,
		ErrUserNotFound,
		ErrEmailExists,
		ErrProviderNameExists,
		ErrNoIntegration,
	} {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}

	return &ServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
