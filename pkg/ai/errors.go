// Package ai holds what the speech providers share: error classification and
// the retry/backoff policy used when a provider session has to be restarted.
package ai

import (
	"errors"
	"math"
	"math/rand"
	"time"
)

var (
	// ErrRecoverable marks a temporary provider failure, e.g. a dropped
	// network connection or a recognizer that ended its session early.
	ErrRecoverable = errors.New("recoverable speech provider error")

	// ErrFatal marks a failure that will not go away on retry, e.g. a denied
	// microphone permission or a missing API key.
	ErrFatal = errors.New("fatal speech provider error")
)

// RetryConfig configures exponential backoff for recoverable errors.
type RetryConfig struct {
	MaxRetries    int           // consecutive attempts before giving up
	InitialDelay  time.Duration // delay before the first retry
	MaxDelay      time.Duration // upper bound for any single delay
	BackoffFactor float64       // multiplier applied per attempt
	JitterPercent float32       // random jitter as a fraction of the delay (0.0-1.0)
}

// DefaultRetryConfig restarts quickly at first and backs off to a few seconds.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:    5,
	InitialDelay:  100 * time.Millisecond,
	MaxDelay:      5 * time.Second,
	BackoffFactor: 2.0,
	JitterPercent: 0,
}

// Delay returns the wait before retry number attempt (1-based):
// InitialDelay * BackoffFactor^(attempt-1), capped at MaxDelay, plus jitter.
func (c RetryConfig) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := c.BackoffFactor
	if factor < 1 {
		factor = 1
	}

	delay := float64(c.InitialDelay) * math.Pow(factor, float64(attempt-1))
	if c.MaxDelay > 0 && delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}

	if c.JitterPercent > 0 {
		jitterRange := delay * float64(c.JitterPercent)
		delay += (rand.Float64() - 0.5) * 2 * jitterRange
	}
	if delay < 0 {
		delay = float64(c.InitialDelay)
	}

	return time.Duration(delay)
}

// Exhausted reports whether attempt has gone past MaxRetries.
func (c RetryConfig) Exhausted(attempt int) bool {
	return attempt > c.MaxRetries
}

// IsRecoverable checks if an error is recoverable and should be retried.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrRecoverable)
}

// IsFatal checks if an error is fatal and should not be retried.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// RetryableError wraps an underlying error with retry classification.
type RetryableError struct {
	Underlying error
	Retryable  bool
	Message    string
}

func (e *RetryableError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Underlying == nil {
		return "speech provider error"
	}
	return e.Underlying.Error()
}

// Unwrap exposes both the classification sentinel and the cause.
func (e *RetryableError) Unwrap() []error {
	class := ErrFatal
	if e.Retryable {
		class = ErrRecoverable
	}
	if e.Underlying == nil {
		return []error{class}
	}
	return []error{class, e.Underlying}
}

// NewRecoverableError creates a recoverable error with context.
func NewRecoverableError(underlying error, message string) error {
	return &RetryableError{Underlying: underlying, Retryable: true, Message: message}
}

// NewFatalError creates a fatal error with context.
func NewFatalError(underlying error, message string) error {
	return &RetryableError{Underlying: underlying, Retryable: false, Message: message}
}
