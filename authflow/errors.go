package authflow

import (
	"errors"
	"fmt"
	"time"
)

// Terminal outcomes of a device authorization attempt. Denial, expiry and
// timeout are distinct conditions and are never conflated.
var (
	// ErrAuthorizationDenied means the resource owner refused the request.
	ErrAuthorizationDenied = errors.New("authorization declined by user")

	// ErrAuthorizationExpired means the device code expired before approval.
	ErrAuthorizationExpired = errors.New("device code expired")

	// ErrAuthorizationTimedOut means the caller's deadline elapsed first.
	ErrAuthorizationTimedOut = errors.New("authorization timed out")

	// ErrPollingFailed means repeated transient errors exhausted the
	// polling loop's error budget.
	ErrPollingFailed = errors.New("polling aborted after repeated errors")
)

// FlowError is the structured terminal failure of a polling loop. It carries
// enough detail for the caller to decide whether restarting the whole flow
// is worthwhile.
type FlowError struct {
	Err      error
	Attempts int
	Elapsed  time.Duration
	Cause    error
}

func (e *FlowError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%v after %d polls over %s: %v", e.Err, e.Attempts, e.Elapsed.Round(time.Millisecond), e.Cause)
	}
	return fmt.Sprintf("%v after %d polls over %s", e.Err, e.Attempts, e.Elapsed.Round(time.Millisecond))
}

// Unwrap exposes both the terminal condition and the underlying cause so
// errors.Is works against the sentinels above.
func (e *FlowError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}
