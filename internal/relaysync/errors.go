package relaysync

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrNoSourceSession    = errors.New("no source session")
	ErrAdapterUnavailable = errors.New("adapter unavailable")
	ErrValidationFailed   = errors.New("validation failed")
	ErrRateLimited        = errors.New("rate limited")
	ErrAuthRequired       = errors.New("authentication required")
	ErrQueueTimeout       = errors.New("queue timeout")
	ErrQueueFull          = errors.New("queue full")
	ErrLimiterClosed      = errors.New("limiter closed")
	ErrUploadPartial      = errors.New("upload partially applied")
	ErrSyncInProgress     = errors.New("sync already in progress")
)

type ErrorClass string

const (
	ClassRateLimit ErrorClass = "RATE_LIMIT"
	ClassAuth      ErrorClass = "AUTH_ERROR"
	ClassNetwork   ErrorClass = "NETWORK_ERROR"
	ClassData      ErrorClass = "DATA_ERROR"
	ClassUnknown   ErrorClass = "UNKNOWN"
)

type RecoveryAction string

const (
	RecoverRetryAfterCooldown RecoveryAction = "retry_after_cooldown"
	RecoverRetryShortDelay    RecoveryAction = "retry_short_delay"
	RecoverReauthenticate     RecoveryAction = "reauthenticate"
	RecoverSkip               RecoveryAction = "skip"
	RecoverSurface            RecoveryAction = "surface"
)

type Recovery struct {
	Class  ErrorClass
	Action RecoveryAction
	Delay  time.Duration
}

type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "rate limited"
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "authentication required"
}

func (e *AuthError) Is(target error) bool {
	return target == ErrAuthRequired
}

type NetworkError struct {
	Message string
	Cause   error
}

func (e *NetworkError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "network error"
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}

type DataError struct {
	ThreadID string
	Message  string
}

func (e *DataError) Error() string {
	if e.ThreadID != "" {
		return fmt.Sprintf("bad thread data for %s: %s", e.ThreadID, e.Message)
	}
	return e.Message
}

func (e *DataError) Is(target error) bool {
	return target == ErrValidationFailed
}

const rateLimitCooldown = 60 * time.Second

// Classify maps an error to its class by inspecting structured error types
// first, falling back to message substrings only for errors raised outside
// this module.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassUnknown
	}
	var rateErr *RateLimitError
	if errors.As(err, &rateErr) || errors.Is(err, ErrRateLimited) {
		return ClassRateLimit
	}
	var authErr *AuthError
	if errors.As(err, &authErr) || errors.Is(err, ErrAuthRequired) || errors.Is(err, ErrAdapterUnavailable) || errors.Is(err, ErrNoSourceSession) {
		return ClassAuth
	}
	var dataErr *DataError
	if errors.As(err, &dataErr) || errors.Is(err, ErrValidationFailed) || errors.Is(err, ErrNotFound) {
		return ClassData
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) || errors.Is(err, ErrQueueTimeout) {
		return ClassNetwork
	}
	return classifyMessage(err.Error())
}

func classifyMessage(message string) ErrorClass {
	lowered := strings.ToLower(message)
	switch {
	case strings.Contains(lowered, "429") || strings.Contains(lowered, "rate limit") || strings.Contains(lowered, "too many requests"):
		return ClassRateLimit
	case strings.Contains(lowered, "401") || strings.Contains(lowered, "403") || strings.Contains(lowered, "unauthorized") || strings.Contains(lowered, "forbidden") || strings.Contains(lowered, "token"):
		return ClassAuth
	case strings.Contains(lowered, "network") || strings.Contains(lowered, "timeout") || strings.Contains(lowered, "connection") || strings.Contains(lowered, "fetch"):
		return ClassNetwork
	case strings.Contains(lowered, "validation") || strings.Contains(lowered, "invalid") || strings.Contains(lowered, "not found") || strings.Contains(lowered, "parse"):
		return ClassData
	default:
		return ClassUnknown
	}
}

// RecoveryFor returns the recovery directive for an error per the class
// matrix: rate limits cool down and retry, auth errors surface a
// re-authenticate action, network errors retry shortly, data errors skip
// the item, anything else surfaces the raw message.
func RecoveryFor(err error) Recovery {
	class := Classify(err)
	switch class {
	case ClassRateLimit:
		delay := rateLimitCooldown
		var rateErr *RateLimitError
		if errors.As(err, &rateErr) && rateErr.RetryAfter > 0 {
			delay = rateErr.RetryAfter
		}
		return Recovery{Class: class, Action: RecoverRetryAfterCooldown, Delay: delay}
	case ClassAuth:
		return Recovery{Class: class, Action: RecoverReauthenticate}
	case ClassNetwork:
		return Recovery{Class: class, Action: RecoverRetryShortDelay, Delay: 5 * time.Second}
	case ClassData:
		return Recovery{Class: class, Action: RecoverSkip}
	default:
		return Recovery{Class: ClassUnknown, Action: RecoverSurface}
	}
}

// Retryable reports whether the retry policy may attempt the operation again.
func Retryable(err error) bool {
	switch Classify(err) {
	case ClassAuth, ClassData:
		return false
	default:
		return true
	}
}
