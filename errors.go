package driveflow

import (
	"fmt"

	"github.com/driveflow/driveflow/authflow"
	"github.com/driveflow/driveflow/hooks"
)

// Terminal authorization outcomes, re-exported so callers only need this
// package to classify failures with errors.Is.
var (
	ErrAuthorizationDenied   = authflow.ErrAuthorizationDenied
	ErrAuthorizationExpired  = authflow.ErrAuthorizationExpired
	ErrAuthorizationTimedOut = authflow.ErrAuthorizationTimedOut
	ErrPollingFailed         = authflow.ErrPollingFailed
)

// HookBlockedError means a registered hook vetoed the operation before it
// reached the provider.
type HookBlockedError struct {
	Event  hooks.Event
	Reason string
}

func (e *HookBlockedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("operation blocked by %s hook", e.Event)
	}
	return fmt.Sprintf("operation blocked by %s hook: %s", e.Event, e.Reason)
}

// NotificationError means the pre-authorization device-code notification
// could not be delivered. The resource owner never learned about the
// request, so the flow cannot proceed.
type NotificationError struct {
	Err error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("delivering device-code notification: %v", e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }
