// Package retry runs calls against Google APIs with exponential backoff on
// transient errors.
package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Policy controls how often and how patiently a call is retried.
type Policy struct {
	// Attempts is the total number of calls, including the first one.
	Attempts int
	// Backoff is the pause before the second attempt. It doubles after
	// every further failed attempt.
	Backoff time.Duration
}

// Default makes 3 attempts with 1s and 2s pauses in between.
var Default = Policy{Attempts: 3, Backoff: 1 * time.Second}

// Do runs fn with the Default policy.
func Do(ctx context.Context, fn func() error) error {
	return Default.Do(ctx, fn)
}

// Do executes fn with exponential backoff on retryable errors.
//
// Returns:
//   - nil if fn succeeds on any attempt
//   - the original error if it is not retryable
//   - ctx.Err() if the context is done while waiting
//   - a "max retries exceeded" error wrapping the last error otherwise
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.Backoff
	var lastErr error

	for i := 0; i < attempts; i++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		// Don't retry if error is not retryable (e.g., permission denied, not found)
		if !IsRetryable(err) {
			return err
		}

		// Don't sleep after the last attempt
		if i < attempts-1 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			backoff *= 2
		}
	}

	return fmt.Errorf("max retries exceeded (%d attempts), last error: %w", attempts, lastErr)
}

// IsRetryable determines if an error should trigger a retry.
//
// Retryable errors include:
//   - Rate limit errors (HTTP 429)
//   - Server failures (HTTP 500, 502, 503, 504)
//   - gRPC UNAVAILABLE, RESOURCE_EXHAUSTED and DEADLINE_EXCEEDED
//   - Errors containing "timeout", "deadline", "temporary" and similar
//
// Context cancellation and client errors (HTTP 400, 401, 403, 404) are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded:
			return true
		case codes.PermissionDenied, codes.Unauthenticated, codes.NotFound, codes.InvalidArgument:
			return false
		}
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 429, 500, 502, 503, 504:
			return true
		case 400, 401, 403, 404:
			return false
		}
	}

	errMsg := strings.ToLower(err.Error())
	transientIndicators := []string{
		"timeout",
		"timed out",
		"deadline",
		"temporary",
		"connection reset",
		"connection refused",
		"broken pipe",
	}

	for _, indicator := range transientIndicators {
		if strings.Contains(errMsg, indicator) {
			return true
		}
	}

	return false
}
