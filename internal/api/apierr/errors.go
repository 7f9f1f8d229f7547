package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/avalon/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Error codes, one per error category
const (
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeValidation        = "VALIDATION_ERROR"
	CodeAuthorization     = "AUTHORIZATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeInfrastructure    = "INFRASTRUCTURE_ERROR"
	CodeInternalError     = "INTERNAL_ERROR"
	CodeUnsupportedAction = "UNSUPPORTED_ACTION"
)

const infrastructureMessage = "Service temporarily unavailable, retry the request"

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	status, apiErr := Convert(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: apiErr})
}

// Convert maps an error to its HTTP status and wire representation.
// Game rule errors keep their message; infrastructure details are not exposed.
func Convert(err error) (int, APIError) {
	var he *httpError
	if errors.As(err, &he) {
		return he.status, he.apiError
	}

	switch {
	case errors.Is(err, model.ErrInfrastructure):
		return http.StatusServiceUnavailable, APIError{Code: CodeInfrastructure, Message: infrastructureMessage, Retryable: true}
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest, APIError{Code: CodeValidation, Message: err.Error()}
	case errors.Is(err, model.ErrAuthorization):
		return http.StatusForbidden, APIError{Code: CodeAuthorization, Message: err.Error()}
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, APIError{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict, APIError{Code: CodeConflict, Message: err.Error()}
	default:
		return http.StatusInternalServerError, APIError{Code: CodeInternalError, Message: "Internal server error"}
	}
}

// NewInvalidRequestError creates an error for a malformed request body or parameter
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidRequest, Message: message}}
}

// NewUnsupportedActionError creates an error for an unknown websocket action
func NewUnsupportedActionError(action string) error {
	return &httpError{http.StatusBadRequest, APIError{Code: CodeUnsupportedAction, Message: "unsupported action: " + action}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{Code: CodeInternalError, Message: "Internal server error"}}
}
