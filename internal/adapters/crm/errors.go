package crm

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel kinds for client errors.
var (
	ErrMissingTenant = errors.New("tenant id must not be empty")
	ErrAgencyOnly    = errors.New("operation requires an agency credential")
)

// AuthError means the token was rejected and the refresh path could not
// recover. Callers surface it as "not connected".
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authorization failed (status %d): %s", e.StatusCode, e.Message)
}

// RateLimitedError means the platform kept answering 429 after the retry
// budget was spent.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited by platform, retry after %s", e.RetryAfter)
}

// APIError carries a non-retryable platform error response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("platform error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("platform error %d: %s", e.StatusCode, e.Message)
}

// ValidationError means an upstream payload could not be decoded into the
// expected shape. The affected resource is skipped, not the whole snapshot.
type ValidationError struct {
	Resource string
	Cause    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("malformed %s payload: %v", e.Resource, e.Cause)
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// IsFatal reports whether err is one of the terminal error kinds that must
// reach the caller instead of producing a partial snapshot.
func IsFatal(err error) bool {
	var authErr *AuthError
	var apiErr *APIError
	return errors.As(err, &authErr) || errors.As(err, &apiErr)
}
