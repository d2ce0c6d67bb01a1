// Package controller maps handler errors to HTTP responses.
package controller

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/nimburion/devserver/pkg/middleware/requestid"
	"github.com/nimburion/devserver/pkg/observability/logger"
	"github.com/nimburion/devserver/pkg/server/router"
)

const unexpectedErrorMessage = "an unexpected error occurred"

// AppError is an error with an HTTP status and a message that is safe to show to clients.
type AppError struct {
	Status  int
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// ErrorResponse is the body written for every error response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// NewAppError creates an AppError with the given status, code and message.
func NewAppError(status int, code, message string, cause error) *AppError {
	return &AppError{Status: status, Code: code, Message: message, Cause: cause}
}

// NewValidationError reports a request body that failed field validation (400).
func NewValidationError(message string, cause error) *AppError {
	return NewAppError(http.StatusBadRequest, "validation_error", message, cause)
}

// NewBadRequestError reports a malformed request (400).
func NewBadRequestError(message string, cause error) *AppError {
	return NewAppError(http.StatusBadRequest, "bad_request", message, cause)
}

// NewNotFoundError reports a missing resource (404).
func NewNotFoundError(message string) *AppError {
	return NewAppError(http.StatusNotFound, "not_found", message, nil)
}

// NewUnsupportedMediaTypeError reports a body that is not JSON (415).
func NewUnsupportedMediaTypeError(message string, cause error) *AppError {
	return NewAppError(http.StatusUnsupportedMediaType, "unsupported_media_type", message, cause)
}

// NewPayloadTooLargeError reports a body over the size limit (413).
func NewPayloadTooLargeError(message string, cause error) *AppError {
	return NewAppError(http.StatusRequestEntityTooLarge, "request_too_large", message, cause)
}

// NewInternalError hides cause behind the generic 500 message.
func NewInternalError(cause error) *AppError {
	return NewAppError(http.StatusInternalServerError, "internal_server_error", unexpectedErrorMessage, cause)
}

// MapError converts any error into an AppError.
// Decoding failures become 400, unsupported payloads 415, oversized bodies 413,
// and everything unrecognised 500.
func MapError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var (
		syntaxErr   *json.SyntaxError
		typeErr     *json.UnmarshalTypeError
		maxBytesErr *http.MaxBytesError
	)
	switch {
	case errors.As(err, &maxBytesErr):
		return NewPayloadTooLargeError("request body is too large", err)
	case errors.Is(err, router.ErrUnsupportedContentType):
		return NewUnsupportedMediaTypeError("content type must be application/json", err)
	case errors.Is(err, router.ErrEmptyBody),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return NewBadRequestError("request body is empty or truncated", err)
	case errors.As(err, &syntaxErr):
		return NewBadRequestError("request body is not valid JSON", err)
	case errors.As(err, &typeErr):
		return NewBadRequestError("request body has a field of the wrong type", err)
	}
	return NewInternalError(err)
}

// ErrorHandler returns a router.ErrorHandler that logs err with the request id
// and renders it as an ErrorResponse, unless a response was already started.
func ErrorHandler(log logger.Logger) router.ErrorHandler {
	return func(c router.Context, err error) {
		appErr := MapError(err)
		reqLog := log.WithContext(c.Request().Context())

		fields := []any{
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"status", appErr.Status,
			"error", err.Error(),
		}
		if appErr.Status >= http.StatusInternalServerError {
			reqLog.Error("request error", fields...)
		} else {
			reqLog.Debug("request rejected", fields...)
		}

		if c.Response().Written() {
			return
		}
		if writeErr := writeError(c, appErr); writeErr != nil {
			reqLog.Error("failed to write error response", "error", writeErr)
		}
	}
}

func writeError(c router.Context, appErr *AppError) error {
	return c.JSON(appErr.Status, ErrorResponse{
		Error:     appErr.Code,
		Message:   appErr.Message,
		RequestID: requestid.FromContext(c),
	})
}
