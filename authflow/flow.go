// Package authflow implements the OAuth 2.0 device authorization grant from
// the requester's side: device code acquisition with bounded transport
// retries, and the token polling state machine.
package authflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/driveflow/driveflow/internal/redact"
	"github.com/driveflow/driveflow/internal/retry"
	"github.com/driveflow/driveflow/provider"
)

const (
	// DefaultPollInterval applies when the provider does not specify one.
	DefaultPollInterval = 5 * time.Second

	// DefaultCodeExpiry applies when the provider omits expires_in.
	DefaultCodeExpiry = 10 * time.Minute

	defaultAcquireAttempts = 3
	defaultBaseBackoff     = 2 * time.Second
	defaultErrorBudget     = 3
)

// Flow drives a single device authorization attempt against a provider
// transport. A Flow is stateless across calls and safe for concurrent use.
type Flow struct {
	transport provider.Transport
	log       zerolog.Logger

	acquireAttempts int
	baseBackoff     time.Duration
	errorBudget     int

	now   func() time.Time
	sleep func(time.Duration)
}

// NewFlow creates a flow over the given transport.
func NewFlow(transport provider.Transport, log zerolog.Logger, opts ...Option) *Flow {
	f := &Flow{
		transport:       transport,
		log:             log,
		acquireAttempts: defaultAcquireAttempts,
		baseBackoff:     defaultBaseBackoff,
		errorBudget:     defaultErrorBudget,
		now:             time.Now,
		sleep:           time.Sleep,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// AcquireDeviceCode calls the provider's device-code endpoint. Transport
// failures are retried with exponential backoff up to the attempt bound;
// a response missing a required field is a protocol error and is never
// retried.
func (f *Flow) AcquireDeviceCode(ctx context.Context, scope string) (*DeviceGrant, error) {
	backoff := f.baseBackoff
	var lastErr error

	for attempt := 1; attempt <= f.acquireAttempts; attempt++ {
		auth, err := f.transport.DeviceCode(ctx, scope)
		if err == nil {
			return f.grantFromAuthorization(auth)
		}
		lastErr = err

		class := retry.Classify(err)
		if class == retry.Terminal {
			return nil, fmt.Errorf("acquiring device code: %w", err)
		}
		f.log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", f.acquireAttempts).
			Str("class", class.String()).
			Msg("device code request failed")
		if attempt < f.acquireAttempts {
			f.sleep(backoff)
			backoff *= 2
		}
	}
	return nil, fmt.Errorf("acquiring device code after %d attempts: %w", f.acquireAttempts, lastErr)
}

func (f *Flow) grantFromAuthorization(auth *provider.DeviceAuthorization) (*DeviceGrant, error) {
	switch {
	case auth.DeviceCode == "":
		return nil, &provider.ProtocolError{Field: "device_code"}
	case auth.UserCode == "":
		return nil, &provider.ProtocolError{Field: "user_code"}
	case auth.VerificationURL == "":
		return nil, &provider.ProtocolError{Field: "verification_url"}
	}

	expiry := DefaultCodeExpiry
	if auth.ExpiresIn > 0 {
		expiry = time.Duration(auth.ExpiresIn) * time.Second
	}
	interval := DefaultPollInterval
	if auth.Interval > 0 {
		interval = time.Duration(auth.Interval) * time.Second
	}

	f.log.Info().
		Str("user_code", auth.UserCode).
		Str("verification_url", auth.VerificationURL).
		Dur("code_expiry", expiry).
		Dur("poll_interval", interval).
		Msg("device code acquired")

	return &DeviceGrant{
		DeviceCode:      auth.DeviceCode,
		UserCode:        auth.UserCode,
		VerificationURL: auth.VerificationURL,
		CodeExpiry:      expiry,
		PollInterval:    interval,
	}, nil
}

// pollOnce makes one token-endpoint call and maps the result into the
// closed outcome set.
func (f *Flow) pollOnce(ctx context.Context, deviceCode string) outcome {
	payload, err := f.transport.DeviceToken(ctx, deviceCode)
	if err == nil {
		return outcome{kind: outcomeSuccess, payload: payload}
	}

	switch {
	case errors.Is(err, provider.ErrAuthorizationPending):
		return outcome{kind: outcomePending}
	case errors.Is(err, provider.ErrAuthorizationDeclined):
		return outcome{kind: outcomeDenied, err: err}
	case errors.Is(err, provider.ErrCodeExpired):
		return outcome{kind: outcomeExpired, err: err}
	}

	if retry.Classify(err) == retry.TransientNetwork {
		return outcome{kind: outcomeTransient, err: err, network: true}
	}
	return outcome{kind: outcomeTransient, err: err}
}

// Run polls the token endpoint until the flow reaches a terminal state. The
// wall-clock deadline is the smaller of the caller's timeout and the device
// code's own expiry; the deadline is checked once per iteration. Polling
// never runs faster than the provider-specified interval, network errors
// wait twice as long, and a Pending round-trip resets the consecutive-error
// budget. Three consecutive errors of any kind abort the loop.
func (f *Flow) Run(ctx context.Context, grant *DeviceGrant, timeout time.Duration) (*TokenResult, error) {
	interval := grant.PollInterval
	if interval < DefaultPollInterval {
		interval = DefaultPollInterval
	}

	window := grant.CodeExpiry
	if timeout > 0 && timeout < window {
		window = timeout
	}

	start := f.now()
	deadline := start.Add(window)
	strikes := 0
	polls := 0

	f.log.Info().
		Str("device_code", redact.Token(grant.DeviceCode)).
		Dur("interval", interval).
		Dur("window", window).
		Msg("waiting for user authorization")

	for {
		if !f.now().Before(deadline) {
			return nil, &FlowError{
				Err:      ErrAuthorizationTimedOut,
				Attempts: polls,
				Elapsed:  f.now().Sub(start),
			}
		}

		out := f.pollOnce(ctx, grant.DeviceCode)
		polls++

		switch out.kind {
		case outcomeSuccess:
			f.log.Info().Int("polls", polls).Msg("authorization granted")
			return newTokenResult(out.payload, f.now()), nil

		case outcomePending:
			// A pending answer is still a healthy round-trip.
			strikes = 0
			f.sleep(interval)

		case outcomeDenied:
			return nil, &FlowError{
				Err:      ErrAuthorizationDenied,
				Attempts: polls,
				Elapsed:  f.now().Sub(start),
			}

		case outcomeExpired:
			return nil, &FlowError{
				Err:      ErrAuthorizationExpired,
				Attempts: polls,
				Elapsed:  f.now().Sub(start),
			}

		case outcomeTransient:
			strikes++
			f.log.Warn().
				Err(out.err).
				Bool("network", out.network).
				Int("strikes", strikes).
				Int("budget", f.errorBudget).
				Msg("poll attempt failed")
			if strikes >= f.errorBudget {
				return nil, &FlowError{
					Err:      ErrPollingFailed,
					Attempts: polls,
					Elapsed:  f.now().Sub(start),
					Cause:    out.err,
				}
			}
			wait := interval
			if out.network {
				// Unstable networks get extra breathing room.
				wait *= 2
			}
			f.sleep(wait)
		}
	}
}

// Refresh exchanges a refresh token for a fresh token result.
func (f *Flow) Refresh(ctx context.Context, refreshToken string) (*TokenResult, error) {
	payload, err := f.transport.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}
	f.log.Info().Msg("access token refreshed")
	return newTokenResult(payload, f.now()), nil
}
