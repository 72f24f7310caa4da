// Package hooks provides an ordered, short-circuiting lifecycle callback
// pipeline. Callers register synchronous or asynchronous callbacks against
// lifecycle events; the pipeline executes them in priority order and stops
// the chain as soon as one callback vetoes the operation.
package hooks

import "context"

// Event identifies a lifecycle point a hook can attach to.
type Event string

const (
	// BeforeAuthRequest fires before any authorization side effect.
	BeforeAuthRequest Event = "before_auth_request"

	// AfterAuthSuccess fires once a token has been obtained.
	AfterAuthSuccess Event = "after_auth_success"

	// AfterAuthFailure fires when the authorization flow fails terminally.
	AfterAuthFailure Event = "after_auth_failure"

	// BeforeResourceOperation fires before each resource-provider call.
	BeforeResourceOperation Event = "before_resource_operation"

	// AfterResourceOperation fires after each resource-provider call,
	// on both success and failure.
	AfterResourceOperation Event = "after_resource_operation"

	// BeforeMessageSend fires before an outbound notification.
	BeforeMessageSend Event = "before_message_send"

	// AfterMessageSend fires after an outbound notification attempt.
	AfterMessageSend Event = "after_message_send"
)

// Context is the value passed to every callback in a chain. It is shared
// read-only across the chain; callbacks that need to hand data to the next
// lifecycle stage must build a new Context rather than mutate one in flight.
type Context struct {
	Event    Event
	Data     map[string]any
	Metadata map[string]any
}

// NewContext builds a Context for an event, copying the supplied data map so
// later mutation by the caller cannot leak into a running chain.
func NewContext(event Event, data map[string]any) *Context {
	return &Context{
		Event:    event,
		Data:     copyMap(data),
		Metadata: make(map[string]any),
	}
}

// WithData returns a copy of the context carrying additional data entries.
// The receiver is left untouched.
func (c *Context) WithData(extra map[string]any) *Context {
	next := &Context{
		Event:    c.Event,
		Data:     copyMap(c.Data),
		Metadata: copyMap(c.Metadata),
	}
	for k, v := range extra {
		next.Data[k] = v
	}
	return next
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Result reports what a callback decided. A nil Result from a callback is
// treated as Succeed(nil).
type Result struct {
	Success  bool
	Continue bool
	Err      string
	Data     map[string]any
}

// Succeed builds a passing result that lets the chain continue.
func Succeed(data map[string]any) *Result {
	return &Result{Success: true, Continue: true, Data: data}
}

// Fail builds a failing result that halts the chain.
func Fail(reason string) *Result {
	return &Result{Success: false, Continue: false, Err: reason}
}

// Stop builds an explicit veto. Identical in effect to Fail; the distinction
// is that the callback intentionally blocked the operation rather than broke.
func Stop(reason string) *Result {
	return &Result{Success: false, Continue: false, Err: reason}
}

// Func is a hook callback. Returning a non-nil error, or panicking, converts
// to a Fail result and halts the chain.
type Func func(ctx context.Context, hc *Context) (*Result, error)

// ValueFunc adapts a callback that returns a bare value into a Func. The
// value is wrapped into an implicit Succeed result at the boundary, so
// chain logic only ever sees structured results.
func ValueFunc(fn func(ctx context.Context, hc *Context) (any, error)) Func {
	return func(ctx context.Context, hc *Context) (*Result, error) {
		v, err := fn(ctx, hc)
		if err != nil {
			return nil, err
		}
		return Succeed(map[string]any{"value": v}), nil
	}
}
