// Package notify delivers out-of-band push notifications to the resource
// owner. The Sender enforces the push channel's pacing and payload limits
// and retries transient delivery failures with bounded backoff.
package notify

import (
	"fmt"

	"github.com/driveflow/driveflow/internal/retry"
)

// ContentType enumerates the push channel's payload formats.
type ContentType int

const (
	ContentText     ContentType = 1
	ContentHTML     ContentType = 2
	ContentMarkdown ContentType = 3
)

// Payload limits enforced locally before anything reaches the network.
const (
	MaxContentLength = 20000
	MaxSummaryLength = 100
	MaxURLLength     = 400
	MaxRecipients    = 100
)

// Message is one outbound notification.
type Message struct {
	Recipients  []string    `validate:"required,min=1,max=100,dive,required"`
	Content     string      `validate:"required,max=20000"`
	Summary     string      `validate:"omitempty,max=100"`
	ContentType ContentType `validate:"oneof=1 2 3"`
	URL         string      `validate:"omitempty,max=400"`
}

// Receipt is the push channel's acknowledgement of a delivered message.
type Receipt struct {
	MessageID string
}

// APIError is a structured error reported by the push service.
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("push service error %d: %s", e.Code, e.Msg)
}

// Push service error codes that indicate a broken request rather than a
// service hiccup. Retrying these can never succeed.
const (
	codeBadParam       = 1000
	codeBadAppToken    = 1001
	codeEmptyContent   = 1002
	codeBadRecipient   = 1003
	codeContentTooLong = 1004
)

// Retryable reports whether resending the identical message could succeed.
func (e *APIError) Retryable() bool {
	switch e.Code {
	case codeBadParam, codeBadAppToken, codeEmptyContent, codeBadRecipient, codeContentTooLong:
		return false
	default:
		return true
	}
}

// HTTPError reports a non-200 response from the push service.
type HTTPError struct {
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("push service returned HTTP %d", e.Status)
}

// Retryable reports whether the status indicates a transient server problem.
func (e *HTTPError) Retryable() bool {
	return retry.ClassifyStatus(e.Status) != retry.Terminal
}
