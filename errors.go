package gateway

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrRateLimited         = errors.New("gateway: too many requests")
	ErrInsufficientBalance = errors.New("gateway: insufficient balance")
	ErrQueueTimeout        = errors.New("gateway: queue timeout, system busy")
	ErrJobTimeout          = errors.New("gateway: job timed out")
	ErrAllBusy             = errors.New("gateway: all model providers are busy")
	ErrBlocked             = errors.New("gateway: blocked by safety filters")
	ErrEmptyResponse       = errors.New("gateway: empty response from provider")
	ErrUnknownProvider     = errors.New("gateway: no adapter registered for provider")
	ErrNotFound            = errors.New("gateway: not found")
)

// StatusError is a failed upstream call. Status 0 means the request
// never produced an HTTP response (network or decode failure).
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("gateway: provider call failed: %s", e.Message)
	}
	return fmt.Sprintf("gateway: provider returned %d: %s", e.Status, e.Message)
}

// Retryable reports whether the next fallback candidate may succeed.
// Rate limiting, server errors and transport failures are retryable;
// everything else (auth, bad request, content policy) is not.
func (e *StatusError) Retryable() bool {
	return e.Status == 0 || e.Status == 429 || e.Status >= 500
}

// GatewayError wraps an error with routing context.
type GatewayError struct {
	Err      error
	Provider string
	Model    string
	Attempts int
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway: provider=%s model=%s attempts=%d: %v",
		e.Provider, e.Model, e.Attempts, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if the error aborts the whole fallback chain.
func IsFatal(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return !se.Retryable()
	}
	return errors.Is(err, ErrBlocked) || errors.Is(err, ErrEmptyResponse)
}

// IsRetryable returns true if the error can be retried with another
// candidate. A per-call timeout counts as retryable: the next candidate
// may respond in time.
func IsRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return !IsFatal(err)
}
