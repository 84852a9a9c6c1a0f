package common

import (
	"errors"
	"fmt"
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

// Error taxonomy shared by every stage. Per-file and per-chunk problems wrap
// ErrParse/ErrDecode/ErrMalformedResponse and are recovered locally; the rest abort.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrParse             = errors.New("parse error")
	ErrDecode            = errors.New("decode error")
	ErrMalformedResponse = errors.New("malformed response")
	ErrProvider          = errors.New("provider error")
	ErrEmptyResult       = errors.New("no tax data detected")
	ErrNoDocuments       = errors.New("extraction failed entirely")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// ParseErrorf builds an error that satisfies errors.Is(err, ErrParse).
func ParseErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrParse, fmt.Sprintf(format, args...))
}
