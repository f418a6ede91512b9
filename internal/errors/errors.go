package errors

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// Error codes carried in the error_code extension of problem responses
const (
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeInvalidColumn       = "INVALID_COLUMN"
	CodeColumnCountMismatch = "COLUMN_COUNT_MISMATCH"
	CodeEmptyPairing        = "EMPTY_PAIRING"
	CodeInvalidTable        = "INVALID_TABLE"
	CodeUnsupportedFormat   = "UNSUPPORTED_FORMAT"
	CodeEmptyFile           = "EMPTY_FILE"
	CodeTooManyRows         = "TOO_MANY_ROWS"
	CodeSheetNotFound       = "SHEET_NOT_FOUND"
	CodePayloadTooLarge     = "PAYLOAD_TOO_LARGE"
	CodeRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
	CodeNotFound            = "NOT_FOUND"
	CodeInternal            = "INTERNAL_SERVER_ERROR"
	CodeWebSocketUpgrade    = "WEBSOCKET_UPGRADE_FAILED"
)

// APIError represents a structured API error response
type APIError struct {
	StatusCode int    `json:"status_code"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
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

// ValidationError describes one rejected request field
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
func NewWithDetails(statusCode int, errorCode, message string, details any) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Predefined errors returned by the HTTP layer
var (
	ErrInvalidRequest    = New(http.StatusBadRequest, CodeInvalidRequest, "Invalid request format")
	ErrNotFound          = New(http.StatusNotFound, CodeNotFound, "Resource not found")
	ErrRateLimitExceeded = New(http.StatusTooManyRequests, CodeRateLimitExceeded, "Rate limit exceeded")
	ErrInternalServer    = New(http.StatusInternalServerError, CodeInternal, "Internal server error")
	ErrWebSocketUpgrade  = New(http.StatusBadRequest, CodeWebSocketUpgrade, "WebSocket upgrade failed")
)

// InvalidRequestWithError creates an invalid request error carrying err as details
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeInvalidRequest, "Invalid request format", err.Error())
}

// MissingField reports a required form or query field that was not sent
func MissingField(field string) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeValidationFailed, "Request validation failed",
		ValidationErrors{Errors: []ValidationError{{Field: field, Message: fmt.Sprintf("%s is required", field)}}})
}

// ValidationErrors groups the rejected fields of one request
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// NewValidationErrors creates validation errors from multiple fields
func NewValidationErrors(errs []ValidationError) *APIError {
	return NewWithDetails(
		http.StatusBadRequest,
		CodeValidationFailed,
		"Request validation failed",
		ValidationErrors{Errors: errs},
	)
}

// PayloadTooLarge reports a request body above limit bytes
func PayloadTooLarge(limit int64) *APIError {
	return NewWithDetails(http.StatusRequestEntityTooLarge, CodePayloadTooLarge,
		"Request body exceeds maximum allowed size", map[string]int64{"max_size": limit})
}
