package papi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Static errors for err113 compliance.
var (
	ErrConfigRequired       = errors.New("config is required")
	ErrAPIEndpointRequired  = errors.New("API endpoint is required")
	ErrNoCredentials        = errors.New("no credentials configured")
	ErrNoValidCredentials   = errors.New("no valid credentials available")
	ErrRedirectURIRequired  = errors.New("redirect URI is required for the authorization-code grant")
	ErrLimiterReset         = errors.New("rate limiter was reset while waiting")
	ErrNoMoreItems          = errors.New("no more items")
	ErrInvalidRetryConfig   = errors.New("invalid retry configuration")
	ErrRelationshipNotFound = errors.New("relationship not found")
	ErrNotIncluded          = errors.New("related resource not present in included set")
	ErrDocumentNotReady     = errors.New("rendered document not yet listed")
)

// Problem is a single server-reported error detail.
type Problem struct {
	Code   string `json:"code,omitempty"   yaml:"code,omitempty"`
	Title  string `json:"title"            yaml:"title"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
}

func (p Problem) String() string {
	if p.Detail == "" {
		return p.Title
	}

	return fmt.Sprintf("%s: %s", p.Title, p.Detail)
}

// APIError represents a non-2xx response from the API. It preserves the
// HTTP status, the parsed problem list, and the server-assigned request
// id so a failure can be correlated with server-side logs.
type APIError struct {
	Status    int       `json:"status"               yaml:"status"`
	RequestID string    `json:"request_id,omitempty" yaml:"request_id,omitempty"`
	Problems  []Problem `json:"errors,omitempty"     yaml:"errors,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	switch len(e.Problems) {
	case 0:
		return fmt.Sprintf("API error (status %d)", e.Status)
	case 1:
		return fmt.Sprintf("%s (status %d)", e.Problems[0], e.Status)
	default:
		return fmt.Sprintf("multiple errors (status %d): %v", e.Status, e.Problems)
	}
}

// StatusCode returns the HTTP status carried by the error.
func (e *APIError) StatusCode() int {
	return e.Status
}

// FirstProblem returns the first problem detail or nil.
func (e *APIError) FirstProblem() *Problem {
	if len(e.Problems) > 0 {
		return &e.Problems[0]
	}

	return nil
}

// AuthError is a 401 response or a failed identity exchange.
type AuthError struct {
	APIError
}

// ForbiddenError is a 403 response.
type ForbiddenError struct {
	APIError
}

// NotFoundError is a 404 response.
type NotFoundError struct {
	APIError
}

// ValidationError is a 422 response carrying field-level problems.
type ValidationError struct {
	APIError
}

// RateLimitError is a 429 response. RetryAfter carries the server-advised
// wait when the Retry-After header was present, zero otherwise.
type RateLimitError struct {
	APIError

	RetryAfter time.Duration `json:"retry_after,omitempty" yaml:"retry_after,omitempty"`
}

// NetworkError is a transport-level failure: the request never produced a
// usable HTTP response.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// TimeoutError is a NetworkError caused by a deadline expiry or abort of
// the in-flight call.
type TimeoutError struct {
	NetworkError
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout during %s %s: %v", e.Op, e.URL, e.Err)
}

// Unwrap exposes the embedded NetworkError so errors.As matches timeouts
// wherever a NetworkError is expected.
func (e *TimeoutError) Unwrap() error {
	return &e.NetworkError
}

// JobError is an asynchronous job that reached the error state.
type JobError struct {
	JobID  string
	Errors []Problem
}

// Error implements the error interface.
func (e *JobError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("job %s failed with no error details", e.JobID)
	}

	return fmt.Sprintf("job %s failed: %v", e.JobID, e.Errors)
}

// JobTimeoutError is a poll loop that gave up before the job reached a
// terminal state. LastStatus is the last non-terminal status observed.
type JobTimeoutError struct {
	JobID      string
	LastStatus JobStatus
}

// Error implements the error interface.
func (e *JobTimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for job %s (last status %q)", e.JobID, e.LastStatus)
}

// NewAPIError builds the typed error matching an HTTP status.
func NewAPIError(status int, requestID string, problems []Problem) error {
	base := APIError{Status: status, RequestID: requestID, Problems: problems}

	switch status {
	case http.StatusUnauthorized:
		return &AuthError{APIError: base}
	case http.StatusForbidden:
		return &ForbiddenError{APIError: base}
	case http.StatusNotFound:
		return &NotFoundError{APIError: base}
	case http.StatusUnprocessableEntity:
		return &ValidationError{APIError: base}
	case http.StatusTooManyRequests:
		return &RateLimitError{APIError: base}
	default:
		return &base
	}
}

// errorDocument is the wire shape of an API error body.
type errorDocument struct {
	Errors []Problem `json:"errors"`
}

// ParseProblems extracts the problem list from an error response body.
// A body that is not the documented error document yields no problems
// rather than a parse failure; the status alone still classifies.
func ParseProblems(data []byte) []Problem {
	var doc errorDocument

	if err := json.Unmarshal(data, &doc); err != nil {
		return nil
	}

	return doc.Errors
}

// StatusOf extracts the HTTP status carried by an error, if any.
func StatusOf(err error) (int, bool) {
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		return sc.StatusCode(), true
	}

	return 0, false
}

// IsAuth checks if the error is an authentication failure.
func IsAuth(err error) bool {
	var target *AuthError

	return errors.As(err, &target)
}

// IsForbidden checks if the error is a 403.
func IsForbidden(err error) bool {
	var target *ForbiddenError

	return errors.As(err, &target)
}

// IsNotFound checks if the error is a 404.
func IsNotFound(err error) bool {
	var target *NotFoundError

	return errors.As(err, &target)
}

// IsValidation checks if the error is a 422.
func IsValidation(err error) bool {
	var target *ValidationError

	return errors.As(err, &target)
}

// IsRateLimit checks if the error is a 429.
func IsRateLimit(err error) bool {
	var target *RateLimitError

	return errors.As(err, &target)
}

// IsNetwork checks if the error is a transport failure, including timeouts.
func IsNetwork(err error) bool {
	var target *NetworkError

	return errors.As(err, &target)
}

// IsTimeout checks if the error is a deadline expiry.
func IsTimeout(err error) bool {
	var target *TimeoutError

	return errors.As(err, &target)
}
