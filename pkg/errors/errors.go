package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrExtraction         = errors.New("content extraction failed")
	ErrOrderingViolation  = errors.New("insertion tokens out of order")
	ErrStorageIO          = errors.New("storage i/o failure")
	ErrDelimiterCollision = errors.New("identifier contains a reserved delimiter")
	ErrStoreClosed        = errors.New("index store closed")
	ErrStoreLocked        = errors.New("index store locked by another process")
	ErrEmptySegment       = errors.New("cannot write empty segment")
	ErrInvalidInput       = errors.New("invalid input")
	ErrTimeout            = errors.New("operation timed out")

	// ErrEmptyContent means the extractor produced nothing usable; callers
	// fall back to name-derived content.
	ErrEmptyContent = fmt.Errorf("%w: empty content", ErrExtraction)
	// ErrParseFailure means the item cannot be indexed at all.
	ErrParseFailure = fmt.Errorf("%w: parse failure", ErrExtraction)
)

// AppError is an error whose HTTP status and client-facing message are
// decided where it is raised.
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

// New wraps sentinel with a fixed status and message.
func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Newf is New with a formatted message.
func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// IsFallback reports whether an extraction error should degrade to
// name-only indexing instead of dropping the item.
func IsFallback(err error) bool {
	return errors.Is(err, ErrEmptyContent)
}

// HTTPStatusCode maps err to the status the HTTP surface answers with.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrDelimiterCollision):
		return http.StatusBadRequest
	case errors.Is(err, ErrStoreClosed), errors.Is(err, ErrStoreLocked), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
