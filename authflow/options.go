package authflow

import "time"

// Option configures the authorization flow.
type Option func(*Flow)

// WithAcquireAttempts sets the retry bound for device code acquisition.
func WithAcquireAttempts(n int) Option {
	return func(f *Flow) {
		if n > 0 {
			f.acquireAttempts = n
		}
	}
}

// WithBaseBackoff sets the starting backoff for transport retries.
// The backoff doubles on each consecutive failure.
func WithBaseBackoff(d time.Duration) Option {
	return func(f *Flow) {
		if d > 0 {
			f.baseBackoff = d
		}
	}
}

// WithErrorBudget sets how many consecutive transient poll errors are
// tolerated before the loop aborts.
func WithErrorBudget(n int) Option {
	return func(f *Flow) {
		if n > 0 {
			f.errorBudget = n
		}
	}
}

// WithClock replaces the flow's time source and sleeper, letting tests drive
// the polling loop on a virtual clock.
func WithClock(now func() time.Time, sleep func(time.Duration)) Option {
	return func(f *Flow) {
		if now != nil {
			f.now = now
		}
		if sleep != nil {
			f.sleep = sleep
		}
	}
}
