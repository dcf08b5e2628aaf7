package errors

import (
	"errors"
	"fmt"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   err,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// GetCode returns the error code if it's an AppError, otherwise "UNKNOWN"
func GetCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Predefined error codes
const (
	// Fitting-stage failures. These are fatal to the fitting run: no
	// partial model may be published when one is raised.
	CodeFitDivergence     = "FIT_DIVERGENCE"
	CodeSamplerDivergence = "SAMPLER_DIVERGENCE"

	// Query-stage failures, local to the offending call.
	CodeInvalidQuery = "INVALID_QUERY"

	CodeConfigInvalid = "CONFIG_INVALID"
	CodeDatabaseError = "DATABASE_ERROR"
	CodeNotFound      = "NOT_FOUND"
	CodeInvalidInput  = "INVALID_INPUT"
	CodeInternalError = "INTERNAL_ERROR"
)

// FitDivergence reports a logistic optimizer that failed to converge.
func FitDivergence(message string) *AppError {
	return New(CodeFitDivergence, message)
}

// SamplerDivergence reports an MCMC run that produced no usable posterior.
func SamplerDivergence(partition, message string) *AppError {
	return New(CodeSamplerDivergence, fmt.Sprintf("partition %s: %s", partition, message))
}

// InvalidQuery reports malformed survival/quantile query inputs.
func InvalidQuery(message string) *AppError {
	return New(CodeInvalidQuery, message)
}

// IsFitDivergence checks for a logistic convergence failure.
func IsFitDivergence(err error) bool { return HasCode(err, CodeFitDivergence) }

// IsSamplerDivergence checks for an MCMC posterior failure.
func IsSamplerDivergence(err error) bool { return HasCode(err, CodeSamplerDivergence) }

// IsInvalidQuery checks for a rejected query.
func IsInvalidQuery(err error) bool { return HasCode(err, CodeInvalidQuery) }

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func DatabaseError(message string) *AppError {
	return New(CodeDatabaseError, message)
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}
