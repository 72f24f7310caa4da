package hooks

import (
	"context"
	"fmt"
)

type bridgeKey struct{}

// chainActive reports whether the context is already inside an Await call,
// which happens when a hook itself triggers another asynchronous chain.
func chainActive(ctx context.Context) bool {
	return ctx.Value(bridgeKey{}) != nil
}

func withChainActive(ctx context.Context) context.Context {
	return context.WithValue(ctx, bridgeKey{}, struct{}{})
}

// Await runs an asynchronous chain from a blocking call site and returns its
// result. On the plain path the chain runs directly on the calling goroutine.
// When the call site is itself inside a running chain (re-entrant case, the
// context carries the in-flight marker), the chain runs on a dedicated
// goroutine and the caller blocks until it finishes. Both paths produce the
// same observable results: panics become failing results, and cancellation
// of the caller's context wins over a stuck chain.
func Await(ctx context.Context, run func(context.Context) *Result) *Result {
	if !chainActive(ctx) {
		return guarded(withChainActive(ctx), run)
	}

	done := make(chan *Result, 1)
	go func() {
		done <- guarded(withChainActive(ctx), run)
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return Fail(fmt.Sprintf("async hook chain abandoned: %v", ctx.Err()))
	}
}

// guarded invokes run with panic containment so both Await paths propagate a
// hook crash identically.
func guarded(ctx context.Context, run func(context.Context) *Result) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Fail(fmt.Sprintf("hook panicked: %v", r))
		}
	}()
	res = run(ctx)
	if res == nil {
		res = Succeed(nil)
	}
	return res
}
