package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/driveflow/driveflow/internal/retry"
)

const (
	// DefaultMinSpacing is the minimum gap between two consecutive sends.
	DefaultMinSpacing = 500 * time.Millisecond

	defaultMaxAttempts = 3
	defaultBaseBackoff = 2 * time.Second
)

// Transport is the push channel the sender delivers through.
type Transport interface {
	Send(ctx context.Context, msg *Message) (*Receipt, error)
}

// Sender wraps a push transport with payload validation, rate limiting and
// bounded retries. The rate-limit cursor is shared across all callers of one
// Sender, so concurrent authorization flows still respect the channel limit.
type Sender struct {
	transport Transport
	log       zerolog.Logger
	validate  *validator.Validate

	minSpacing  time.Duration
	maxAttempts int
	baseBackoff time.Duration

	now   func() time.Time
	sleep func(time.Duration)

	mu       sync.Mutex
	lastSend time.Time
}

// SenderOption configures a Sender.
type SenderOption func(*Sender)

// WithMinSpacing overrides the minimum gap between consecutive sends.
func WithMinSpacing(d time.Duration) SenderOption {
	return func(s *Sender) {
		if d > 0 {
			s.minSpacing = d
		}
	}
}

// WithMaxAttempts overrides the delivery retry bound.
func WithMaxAttempts(n int) SenderOption {
	return func(s *Sender) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithSenderClock replaces the sender's time source and sleeper for tests.
func WithSenderClock(now func() time.Time, sleep func(time.Duration)) SenderOption {
	return func(s *Sender) {
		if now != nil {
			s.now = now
		}
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// NewSender creates a rate-limited sender over the given transport.
func NewSender(transport Transport, log zerolog.Logger, opts ...SenderOption) *Sender {
	s := &Sender{
		transport:   transport,
		log:         log,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		minSpacing:  DefaultMinSpacing,
		maxAttempts: defaultMaxAttempts,
		baseBackoff: defaultBaseBackoff,
		now:         time.Now,
		sleep:       time.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send validates, paces and delivers a message. Validation failures never
// reach the network. Transport failures and retryable service errors are
// retried with exponential backoff up to the attempt bound; broken-request
// service errors fail immediately.
func (s *Sender) Send(ctx context.Context, msg *Message) (*Receipt, error) {
	if err := s.validate.Struct(msg); err != nil {
		return nil, fmt.Errorf("invalid notification payload: %w", err)
	}

	s.pace()

	backoff := s.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		receipt, err := s.transport.Send(ctx, msg)
		if err == nil {
			s.log.Debug().Str("message_id", receipt.MessageID).Msg("notification delivered")
			return receipt, nil
		}
		lastErr = err

		if !sendRetryable(err) {
			return nil, fmt.Errorf("sending notification: %w", err)
		}
		s.log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", s.maxAttempts).
			Msg("notification delivery failed")
		if attempt < s.maxAttempts {
			s.sleep(backoff)
			backoff *= 2
		}
	}
	return nil, fmt.Errorf("sending notification after %d attempts: %w", s.maxAttempts, lastErr)
}

// pace enforces the minimum spacing between consecutive sends. The cursor is
// a single shared timestamp; the lock is held across the wait so concurrent
// senders queue up behind it rather than racing the cursor.
func (s *Sender) pace() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.lastSend.IsZero() {
		if wait := s.minSpacing - s.now().Sub(s.lastSend); wait > 0 {
			s.sleep(wait)
		}
	}
	s.lastSend = s.now()
}

func sendRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Retryable()
	}
	return retry.Classify(err) != retry.Terminal
}
