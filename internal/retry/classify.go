// Package retry classifies errors into retry categories for the
// authorization and notification retry loops.
package retry

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
)

// Class describes how a failed call should be handled by a retry loop.
type Class int

const (
	// Terminal errors must not be retried.
	Terminal Class = iota

	// Transient errors may be retried after the normal backoff.
	Transient

	// TransientNetwork errors may be retried, but the caller should
	// apply extra backoff since the network itself is unstable.
	TransientNetwork
)

// String returns a short name for the class, used in log fields.
func (c Class) String() string {
	switch c {
	case Transient:
		return "transient"
	case TransientNetwork:
		return "transient_network"
	default:
		return "terminal"
	}
}

// Classify maps a transport-level error to a retry class. Provider-reported
// protocol errors are the caller's business; anything Classify does not
// recognize as a connectivity problem is Terminal.
func Classify(err error) Class {
	if err == nil {
		return Terminal
	}

	// Deadlines and cancellations: a timed-out attempt is worth retrying,
	// an explicit cancellation is not.
	if errors.Is(err, context.DeadlineExceeded) {
		return TransientNetwork
	}
	if errors.Is(err, context.Canceled) {
		return Terminal
	}

	// Truncated reads usually mean the connection dropped mid-response.
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return TransientNetwork
	}

	// Connection-level syscall failures.
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ETIMEDOUT) {
		return TransientNetwork
	}

	// TLS handshake and record errors behave like connection failures.
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return TransientNetwork
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return TransientNetwork
	}

	// url.Error wraps everything the HTTP client produces and itself
	// satisfies net.Error, so it must be unwrapped before the generic
	// net.Error check or its cause is never inspected.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() || urlErr.Temporary() {
			return TransientNetwork
		}
		return Classify(urlErr.Err)
	}

	// net.Error covers timeouts from the dialer and the transport.
	var netErr net.Error
	if errors.As(err, &netErr) {
		return TransientNetwork
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return TransientNetwork
	}

	return Terminal
}

// ClassifyStatus maps an HTTP status code to a retry class. Server-side
// failures and throttling are transient; everything else is terminal.
func ClassifyStatus(status int) Class {
	switch {
	case status == http.StatusTooManyRequests:
		return Transient
	case status >= 500:
		return Transient
	default:
		return Terminal
	}
}
