package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrParse                   = errors.New("parse error")
	ErrUnknownTerm             = errors.New("unknown term")
	ErrInvalidWeight           = errors.New("invalid weight")
	ErrCorruptIndexRecord      = errors.New("corrupt index record")
	ErrDictionaryInconsistency = errors.New("dictionary inconsistency")
	ErrDuplicateDocument       = errors.New("duplicate document id")
	ErrIndexNotReady           = errors.New("index not ready")
	ErrInvalidInput            = errors.New("invalid input")
	ErrInternal                = errors.New("internal error")
	ErrTimeout                 = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Corruptf reports a record that failed to decode or validate.
func Corruptf(format string, args ...any) *AppError {
	return Newf(ErrCorruptIndexRecord, http.StatusInternalServerError, format, args...)
}

// Parsef reports a malformed boolean expression.
func Parsef(format string, args ...any) *AppError {
	return Newf(ErrParse, http.StatusBadRequest, format, args...)
}

// InvalidWeightf reports a weighting computation that would not be finite.
func InvalidWeightf(format string, args ...any) *AppError {
	return Newf(ErrInvalidWeight, http.StatusUnprocessableEntity, format, args...)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrParse), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnknownTerm):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidWeight):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrIndexNotReady), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Is and As re-export the standard helpers so callers importing this package
// under the name errors keep a single import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }
