package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
)

// APIError represents a structured API error response
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	TraceID    string      `json:"trace_id,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// ValidationError represents validation errors
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// ErrValidation creates a validation error with field details
func ErrValidation(field, message string) *APIError {
	return NewWithDetails(http.StatusBadRequest, string(ErrTypeValidation), "Request validation failed", ValidationError{
		Field:   field,
		Message: message,
	})
}

// NotFoundError creates a not found error with details
func NotFoundError(resource string) *APIError {
	return NewWithDetails(http.StatusNotFound, string(ErrTypeNotFound), fmt.Sprintf("%s not found", resource), resource)
}

// statusFor maps the application taxonomy onto HTTP statuses.
var statusFor = map[ErrorType]int{
	ErrTypeValidation:          http.StatusBadRequest,
	ErrTypeNotFound:            http.StatusNotFound,
	ErrTypeLedgerInconsistency: http.StatusUnprocessableEntity,
	ErrTypeSourceUnavailable:   http.StatusBadGateway,
	ErrTypeLayoutNotRecognized: http.StatusUnprocessableEntity,
	ErrTypeStorage:             http.StatusInternalServerError,
	ErrTypeConfig:              http.StatusInternalServerError,
}

// FromError converts any error into an APIError.
func FromError(err error) *APIError {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}

	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return New(http.StatusGatewayTimeout, "TIMEOUT", "The request took too long to process and was cancelled")
	}

	var appErr *AppError
	if stderrors.As(err, &appErr) {
		status, ok := statusFor[appErr.Type]
		if !ok {
			status = http.StatusInternalServerError
		}
		var details interface{}
		if len(appErr.Context) > 0 {
			details = appErr.Context
		}
		return NewWithDetails(status, string(appErr.Type), appErr.Error(), details)
	}

	return New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
}

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger  *slog.Logger
	traceID func(context.Context) string
}

// NewErrorHandler creates a new error handler. traceID may be nil.
func NewErrorHandler(logger *slog.Logger, traceID func(context.Context) string) *ErrorHandler {
	return &ErrorHandler{
		logger:  logger.With(slog.String("component", "error_handler")),
		traceID: traceID,
	}
}

// HandleError logs err and renders it as JSON
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	apiErr := FromError(err)
	if h.traceID != nil {
		apiErr.TraceID = h.traceID(r.Context())
	}

	level := slog.LevelWarn
	if apiErr.StatusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", apiErr.StatusCode),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	render.Render(w, r, apiErr)
}
