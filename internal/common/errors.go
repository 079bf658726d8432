package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")

	// ErrUnsupportedType marks a file whose extension the pipeline does not route.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrNoTemplateMatch marks text that no enabled template accepted.
	ErrNoTemplateMatch = errors.New("no matching template")
)

// ExtractionError is returned when the recognition engine or a required
// converter fails for a file.
type ExtractionError struct {
	Path  string
	Stage string // e.g. "tesseract", "pdftoppm", "heic"
	Cause error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s (%s): %v", e.Path, e.Stage, e.Cause)
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

// RelocationError is returned when a file could not be moved into place.
// The source file is untouched when this error is returned.
type RelocationError struct {
	Src   string
	Dest  string
	Cause error
}

func (e *RelocationError) Error() string {
	return fmt.Sprintf("move %s -> %s: %v", e.Src, e.Dest, e.Cause)
}

func (e *RelocationError) Unwrap() error { return e.Cause }

// QuarantineError wraps a failure to move a rejected file into the quarantine tree.
type QuarantineError struct {
	Path  string
	Cause error
}

func (e *QuarantineError) Error() string {
	return fmt.Sprintf("quarantine %s: %v", e.Path, e.Cause)
}

func (e *QuarantineError) Unwrap() error { return e.Cause }

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func UnavailableError(message string) error {
	return status.Error(codes.Unavailable, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}

func InternalErrorf(format string, args ...interface{}) error {
	return InternalError(fmt.Sprintf(format, args...))
}
