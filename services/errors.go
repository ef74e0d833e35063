package services

import (
	"errors"
	"fmt"
)

var (
	ErrWorkflowNotFound  = errors.New("workflow not found")
	ErrPageNotFound      = errors.New("page not found")
	ErrInvalidTransition = errors.New("workflow is not pending approval")
	ErrUnauthorized      = errors.New("unauthorized")
)

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func newValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
