package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
	"testing"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"nil", nil, Terminal},
		{"plain error", errors.New("boom"), Terminal},
		{"deadline exceeded", context.DeadlineExceeded, TransientNetwork},
		{"canceled", context.Canceled, Terminal},
		{"eof", io.EOF, TransientNetwork},
		{"unexpected eof", io.ErrUnexpectedEOF, TransientNetwork},
		{"connection reset", syscall.ECONNRESET, TransientNetwork},
		{"connection refused", syscall.ECONNREFUSED, TransientNetwork},
		{"broken pipe", syscall.EPIPE, TransientNetwork},
		{"syscall timeout", syscall.ETIMEDOUT, TransientNetwork},
		{"wrapped reset", fmt.Errorf("posting form: %w", syscall.ECONNRESET), TransientNetwork},
		{"net timeout", timeoutError{}, TransientNetwork},
		{"op error", &net.OpError{Op: "dial", Err: errors.New("refused")}, TransientNetwork},
		{"url error wrapping reset", &url.Error{Op: "Post", URL: "https://x", Err: syscall.ECONNRESET}, TransientNetwork},
		{"url error wrapping plain", &url.Error{Op: "Post", URL: "https://x", Err: errors.New("boom")}, Terminal},
		{"url error wrapping cancellation", &url.Error{Op: "Post", URL: "https://x", Err: context.Canceled}, Terminal},
		{"dns error", &net.DNSError{Err: "no such host", Name: "x", IsTimeout: false}, TransientNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Class
	}{
		{200, Terminal},
		{400, Terminal},
		{401, Terminal},
		{404, Terminal},
		{429, Transient},
		{500, Transient},
		{502, Transient},
		{503, Transient},
	}
	for _, tt := range tests {
		if got := ClassifyStatus(tt.status); got != tt.want {
			t.Errorf("ClassifyStatus(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestClassString(t *testing.T) {
	if s := Terminal.String(); s != "terminal" {
		t.Errorf("Terminal.String() = %q", s)
	}
	if s := Transient.String(); s != "transient" {
		t.Errorf("Transient.String() = %q", s)
	}
	if s := TransientNetwork.String(); s != "transient_network" {
		t.Errorf("TransientNetwork.String() = %q", s)
	}
}

// Classification must be stable under deep wrapping, since transport errors
// arrive wrapped by both the HTTP client and the calling layer.
func TestClassifyDeepWrap(t *testing.T) {
	inner := &net.OpError{Op: "read", Err: syscall.ECONNRESET}
	err := fmt.Errorf("polling token endpoint: %w", &url.Error{Op: "Post", URL: "https://x", Err: inner})
	if got := Classify(err); got != TransientNetwork {
		t.Errorf("Classify = %v, want TransientNetwork", got)
	}
}
