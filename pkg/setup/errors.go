// Package setup provides the core types shared by every installation step:
// the error taxonomy, the uniform result envelope, the derived installation
// status and the interfaces of external collaborators.
package setup

import (
	"errors"
	"fmt"
)

// ErrorClass classifies a failure for reporting at an operation boundary.
type ErrorClass string

const (
	// ErrorClassValidation indicates missing or malformed caller input.
	// Always recoverable and never accompanied by a side effect.
	ErrorClassValidation ErrorClass = "validation"

	// ErrorClassPrecondition indicates an earlier step's artifact is missing
	// or invalid, e.g. schema install before connection config exists.
	ErrorClassPrecondition ErrorClass = "precondition"

	// ErrorClassConnectivity indicates a live probe to the relational store failed.
	ErrorClassConnectivity ErrorClass = "connectivity"

	// ErrorClassConflict indicates an identity uniqueness violation.
	ErrorClassConflict ErrorClass = "conflict"

	// ErrorClassConfiguration indicates the deployment declares no usable
	// account type or an unresolvable model.
	ErrorClassConfiguration ErrorClass = "configuration"

	// ErrorClassInternal covers everything else.
	ErrorClassInternal ErrorClass = "internal"
)

// Validate checks if the error class is known.
func (c ErrorClass) Validate() error {
	switch c {
	case ErrorClassValidation, ErrorClassPrecondition, ErrorClassConnectivity,
		ErrorClassConflict, ErrorClassConfiguration, ErrorClassInternal:
		return nil
	default:
		return fmt.Errorf("invalid error class: %s", c)
	}
}

// InstallError is a classified error with optional field context.
type InstallError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Field names the offending input field for validation errors.
	Field string `json:"field,omitempty"`

	// Err is the underlying cause.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *InstallError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Class, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Class, e.Message, e.Err.Error())
}

// Unwrap returns the underlying error for error chain inspection.
func (e *InstallError) Unwrap() error {
	return e.Err
}

// Is reports class equality so errors.Is works against sentinel values.
func (e *InstallError) Is(target error) bool {
	t, ok := target.(*InstallError)
	if !ok {
		return false
	}
	return e.Class == t.Class
}

// WithField attaches the offending input field.
func (e *InstallError) WithField(field string) *InstallError {
	e.Field = field
	return e
}

// NewValidationError creates a validation error for a caller input field.
func NewValidationError(field, message string) *InstallError {
	return &InstallError{Class: ErrorClassValidation, Message: message, Field: field}
}

// NewPreconditionError creates a precondition error.
func NewPreconditionError(message string, err error) *InstallError {
	return &InstallError{Class: ErrorClassPrecondition, Message: message, Err: err}
}

// NewConnectivityError creates a connectivity error.
func NewConnectivityError(message string, err error) *InstallError {
	return &InstallError{Class: ErrorClassConnectivity, Message: message, Err: err}
}

// NewConflictError creates a conflict error.
func NewConflictError(message string, err error) *InstallError {
	return &InstallError{Class: ErrorClassConflict, Message: message, Err: err}
}

// NewConfigurationError creates a configuration error.
func NewConfigurationError(message string, err error) *InstallError {
	return &InstallError{Class: ErrorClassConfiguration, Message: message, Err: err}
}

// NewInternalError creates an internal error.
func NewInternalError(message string, err error) *InstallError {
	return &InstallError{Class: ErrorClassInternal, Message: message, Err: err}
}

// ClassOf returns the class of err, or ErrorClassInternal when err is not classified.
func ClassOf(err error) ErrorClass {
	var e *InstallError
	if errors.As(err, &e) {
		return e.Class
	}
	return ErrorClassInternal
}

// IsValidation returns true if the error is classified as a validation error.
func IsValidation(err error) bool {
	return err != nil && ClassOf(err) == ErrorClassValidation
}

// IsPrecondition returns true if the error is classified as a precondition error.
func IsPrecondition(err error) bool {
	return err != nil && ClassOf(err) == ErrorClassPrecondition
}

// IsConnectivity returns true if the error is classified as a connectivity error.
func IsConnectivity(err error) bool {
	return err != nil && ClassOf(err) == ErrorClassConnectivity
}

// IsConflict returns true if the error is classified as a conflict.
func IsConflict(err error) bool {
	return err != nil && ClassOf(err) == ErrorClassConflict
}

// IsConfiguration returns true if the error is classified as a configuration error.
func IsConfiguration(err error) bool {
	return err != nil && ClassOf(err) == ErrorClassConfiguration
}
