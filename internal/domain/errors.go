package domain

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// AppError is the error type every account operation fails with. Status is the
// HTTP status the transport layer responds with; Message is safe to show to
// clients. Err holds the internal cause and is never serialized.
type AppError struct {
	Status  int
	Message string
	Errors  []string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithCause attaches the underlying failure.
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// WithErrors attaches per-field details shown in the envelope's errors list.
func (e *AppError) WithErrors(details ...string) *AppError {
	e.Errors = append(e.Errors, details...)
	return e
}

func newAppError(status int, message string) *AppError {
	return &AppError{Status: status, Message: message}
}

func ValidationError(message string) *AppError {
	return newAppError(http.StatusBadRequest, message)
}

func Conflict(message string) *AppError {
	return newAppError(http.StatusConflict, message)
}

func Unauthorized(message string) *AppError {
	return newAppError(http.StatusUnauthorized, message)
}

func NotFound(message string) *AppError {
	return newAppError(http.StatusNotFound, message)
}

func UploadError(message string) *AppError {
	return newAppError(http.StatusBadRequest, message)
}

func InternalError(message string) *AppError {
	return newAppError(http.StatusInternalServerError, message)
}

func TooManyRequests(message string) *AppError {
	return newAppError(http.StatusTooManyRequests, message)
}

// AsAppError finds an AppError in err's chain. Anything else becomes a 500
// carrying err as its cause.
func AsAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return InternalError("Something went wrong").WithCause(err)
}
