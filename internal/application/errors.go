package application

import (
	"errors"

	"github.com/oksasatya/go-task-manager/pkg/validation"
)

var (
	ErrEmailTaken         = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUserNotFound       = errors.New("user not found")
	ErrTaskNotFound       = errors.New("task not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidStatus      = errors.New("invalid task status")
)

// ValidationError carries per-field messages. It matches ErrInvalidInput
// and, when set, Cause.
type ValidationError struct {
	Fields map[string]string
	Cause  error
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return ErrInvalidInput.Error() + ": " + e.Cause.Error()
	}
	return ErrInvalidInput.Error()
}

func (e *ValidationError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrInvalidInput, e.Cause}
	}
	return []error{ErrInvalidInput}
}

// validate runs the struct's `validate` tags and converts failures into a
// *ValidationError.
func validate(in any) error {
	if err := validation.Struct(in); err != nil {
		return &ValidationError{Fields: validation.ToDetails(err)}
	}
	return nil
}
