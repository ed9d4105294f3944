// Package errors provides the categorized error taxonomy shared by the engine
// and its remote-API collaborators.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/growth-engine/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryRateLimit represents transient throttling by the remote API
	CategoryRateLimit ErrorCategory = "rate_limit"
	// CategoryActionBlocked represents a remote block on actions (feedback_required, spam)
	CategoryActionBlocked ErrorCategory = "action_blocked"
	// CategoryCheckpoint represents a checkpoint challenge on the session
	CategoryCheckpoint ErrorCategory = "checkpoint"
	// CategoryAuthentication represents a missing or expired session
	CategoryAuthentication ErrorCategory = "authentication"
	// CategoryNotFound represents content or accounts that no longer exist
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryProvider represents generic status-coded remote failures
	CategoryProvider ErrorCategory = "provider"
	// CategoryDatabase represents database errors
	CategoryDatabase ErrorCategory = "database"
	// CategoryCache represents key-value store errors
	CategoryCache ErrorCategory = "cache"
	// CategoryValidation represents validation errors
	CategoryValidation ErrorCategory = "validation"
	// CategorySystem represents internal errors
	CategorySystem ErrorCategory = "system"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// Signal maps the error onto the block detector's signal vocabulary
func (e *CategorizedError) Signal() types.BlockSignal {
	switch e.Category {
	case CategoryCheckpoint:
		return types.SignalCheckpointRequired
	case CategoryActionBlocked:
		if spam, _ := e.Details["spam"].(bool); spam {
			return types.SignalSpamDetected
		}
		return types.SignalFeedbackRequired
	case CategoryRateLimit:
		return types.SignalRateLimited
	default:
		return types.SignalUnknown
	}
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// Remote API errors

// NewRateLimitedError creates a rate limited error (HTTP 429)
func NewRateLimitedError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryRateLimit,
		StatusCode: http.StatusTooManyRequests,
		Code:       "RATE_LIMITED",
		Message:    message,
	}
}

// NewActionBlockedError creates an action blocked error.
// spam marks blocks the remote API attributed to spam detection.
func NewActionBlockedError(message string, spam bool) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryActionBlocked,
		StatusCode: http.StatusBadRequest,
		Code:       "ACTION_BLOCKED",
		Message:    message,
		Details: map[string]interface{}{
			"spam": spam,
		},
	}
}

// NewCheckpointRequiredError creates a checkpoint required error
func NewCheckpointRequiredError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryCheckpoint,
		StatusCode: http.StatusBadRequest,
		Code:       "CHECKPOINT_REQUIRED",
		Message:    message,
	}
}

// NewNotAuthenticatedError creates a not authenticated error
func NewNotAuthenticatedError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuthentication,
		StatusCode: http.StatusUnauthorized,
		Code:       "NOT_AUTHENTICATED",
		Message:    message,
	}
}

// NewContentNotFoundError creates a content not found error
func NewContentNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "CONTENT_NOT_FOUND",
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewStatusError creates a generic status-coded remote failure
func NewStatusError(statusCode int, message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryProvider,
		StatusCode: statusCode,
		Code:       "REMOTE_STATUS",
		Message:    message,
		Details: map[string]interface{}{
			"status": statusCode,
		},
	}
}

// NewRemoteTimeoutError creates an error for a remote call that never answered
func NewRemoteTimeoutError(operation string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryProvider,
		StatusCode: http.StatusGatewayTimeout,
		Code:       "REMOTE_TIMEOUT",
		Message:    fmt.Sprintf("remote call timed out: %s", operation),
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// Storage and internal errors

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDatabase,
		StatusCode: http.StatusInternalServerError,
		Code:       "DATABASE_ERROR",
		Message:    fmt.Sprintf("database error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewCacheError creates a key-value store error
func NewCacheError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryCache,
		StatusCode: http.StatusInternalServerError,
		Code:       "CACHE_ERROR",
		Message:    fmt.Sprintf("state store error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewInvalidParameterError creates an invalid parameter error
func NewInvalidParameterError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_PARAMETER",
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusConflict,
		Code:       "CONFLICT",
		Message:    message,
	}
}

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// As finds the first CategorizedError in err's chain
func As(err error) (*CategorizedError, bool) {
	var catErr *CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr, true
	}
	return nil, false
}

func hasCategory(err error, category ErrorCategory) bool {
	catErr, ok := As(err)
	return ok && catErr.Category == category
}

// IsActionBlocked reports whether err is an action block
func IsActionBlocked(err error) bool {
	return hasCategory(err, CategoryActionBlocked)
}

// IsCheckpoint reports whether err is a checkpoint challenge
func IsCheckpoint(err error) bool {
	return hasCategory(err, CategoryCheckpoint)
}

// IsNotAuthenticated reports whether err means the session is gone
func IsNotAuthenticated(err error) bool {
	return hasCategory(err, CategoryAuthentication)
}

// IsContentNotFound reports whether err means the content was removed
func IsContentNotFound(err error) bool {
	return hasCategory(err, CategoryNotFound)
}

// IsRateLimited reports whether err is transient throttling
func IsRateLimited(err error) bool {
	return hasCategory(err, CategoryRateLimit)
}

// IsNonRetryable reports whether err is a structural failure the caller must
// handle with a state transition
func IsNonRetryable(err error) bool {
	catErr, ok := As(err)
	if !ok {
		return false
	}
	switch catErr.Category {
	case CategoryActionBlocked, CategoryCheckpoint, CategoryAuthentication:
		return true
	default:
		return false
	}
}

// IsBlock reports whether err should move the engine into cooldown
func IsBlock(err error) bool {
	return IsActionBlocked(err) || IsCheckpoint(err)
}

// StatusCode returns the HTTP-style status carried by err, if any
func StatusCode(err error) (int, bool) {
	catErr, ok := As(err)
	if !ok || catErr.StatusCode == 0 {
		return 0, false
	}
	return catErr.StatusCode, true
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	if catErr, ok := As(err); ok {
		return catErr
	}

	var svcErr *types.ServiceError
	if stderrors.As(err, &svcErr) {
		return &CategorizedError{
			Category:   CategorySystem,
			StatusCode: http.StatusInternalServerError,
			Code:       svcErr.Code,
			Message:    svcErr.Message,
			Details:    svcErr.Details,
		}
	}

	return NewInternalError("unexpected error", err)
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}
