package api

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/growth-engine/internal/errors"
	"github.com/growth-engine/internal/logging"
	"github.com/growth-engine/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// Common error codes
const (
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// respondServiceError maps err onto a status code and writes it. Server-side
// failures are logged and answered with a generic message.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := mapServiceError(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).WithError(err).Error("Request failed")
	}
	respondError(w, status, body.Code, body.Message, body.Details)
}

// mapServiceError maps categorized errors to HTTP status codes. Client
// errors keep their message and details.
func mapServiceError(err error) (int, *types.ServiceError) {
	catErr := apperrors.Categorize(err)
	switch {
	case catErr == nil:
		return http.StatusInternalServerError, internalError()
	case catErr.Category == apperrors.CategoryValidation:
		body := catErr.ToServiceError()
		body.Code = ErrCodeInvalidInput
		return catErr.StatusCode, body
	case catErr.Category == apperrors.CategoryNotFound:
		body := catErr.ToServiceError()
		body.Code = ErrCodeNotFound
		return http.StatusNotFound, body
	case catErr.Category == apperrors.CategoryDatabase, catErr.Category == apperrors.CategoryCache:
		return http.StatusServiceUnavailable, &types.ServiceError{
			Code:    ErrCodeServiceUnavailable,
			Message: "A backing store is unavailable",
		}
	default:
		return http.StatusInternalServerError, internalError()
	}
}

func internalError() *types.ServiceError {
	return &types.ServiceError{
		Code:    ErrCodeInternalError,
		Message: "An internal error occurred",
	}
}
