// Package driveflow lets an application obtain delegated access to a third
// party's cloud-storage account without any callback endpoint: it issues an
// OAuth device-code grant, notifies the resource owner over a push channel,
// and polls until the owner approves in a browser. Lifecycle hooks wrap
// every authorization and resource operation.
package driveflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/driveflow/driveflow/authflow"
	"github.com/driveflow/driveflow/hooks"
	"github.com/driveflow/driveflow/internal/redact"
	"github.com/driveflow/driveflow/notify"
	"github.com/driveflow/driveflow/provider"
)

// Client is the orchestration façade. It owns the hook pipeline, the device
// authorization flow and the notification sender, and is safe for concurrent
// use.
type Client struct {
	cfg      Config
	log      zerolog.Logger
	pipeline *hooks.Pipeline

	transport   provider.Transport
	pushChannel notify.Transport

	flow   *authflow.Flow
	sender *notify.Sender

	flowOpts   []authflow.Option
	senderOpts []notify.SenderOption
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client's logger. Components inherit it.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithPipeline injects a hook pipeline, typically one shared with other
// clients or pre-populated by tests.
func WithPipeline(p *hooks.Pipeline) Option {
	return func(c *Client) {
		if p != nil {
			c.pipeline = p
		}
	}
}

// WithTransport replaces the provider OAuth transport.
func WithTransport(t provider.Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithPushChannel replaces the push-notification transport.
func WithPushChannel(t notify.Transport) Option {
	return func(c *Client) { c.pushChannel = t }
}

// WithFlowOptions forwards options to the authorization flow.
func WithFlowOptions(opts ...authflow.Option) Option {
	return func(c *Client) { c.flowOpts = append(c.flowOpts, opts...) }
}

// WithSenderOptions forwards options to the notification sender.
func WithSenderOptions(opts ...notify.SenderOption) Option {
	return func(c *Client) { c.senderOpts = append(c.senderOpts, opts...) }
}

// New creates a Client from the configuration.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:      cfg,
		log:      zerolog.Nop(),
		pipeline: hooks.New(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.transport == nil {
		t, err := provider.NewNetdiskProvider(provider.NetdiskConfig{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			BaseURL:      cfg.ProviderBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("configuring provider transport: %w", err)
		}
		c.transport = t
	}
	if c.pushChannel == nil {
		t, err := notify.NewWxPusher(notify.WxPusherConfig{
			AppToken: cfg.PusherAppToken,
			BaseURL:  cfg.PusherBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("configuring push transport: %w", err)
		}
		c.pushChannel = t
	}

	c.flow = authflow.NewFlow(c.transport, c.log.With().Str("component", "authflow").Logger(), c.flowOpts...)
	c.sender = notify.NewSender(c.pushChannel, c.log.With().Str("component", "notify").Logger(), c.senderOpts...)

	return c, nil
}

// Hooks returns the client's hook pipeline.
func (c *Client) Hooks() *hooks.Pipeline { return c.pipeline }

// RegisterHook adds a synchronous lifecycle hook.
func (c *Client) RegisterHook(event hooks.Event, priority int, fn hooks.Func) (hooks.ID, error) {
	return c.pipeline.Register(event, priority, fn)
}

// RegisterAsyncHook adds an asynchronous lifecycle hook.
func (c *Client) RegisterAsyncHook(event hooks.Event, priority int, fn hooks.Func) (hooks.ID, error) {
	return c.pipeline.RegisterAsync(event, priority, fn)
}

// RegisterGlobalHook adds a synchronous hook under a caller-chosen name.
func (c *Client) RegisterGlobalHook(name string, priority int, fn hooks.Func) (hooks.ID, error) {
	return c.pipeline.RegisterGlobal(name, priority, fn)
}

// UnregisterHook removes a lifecycle hook.
func (c *Client) UnregisterHook(event hooks.Event, id hooks.ID) bool {
	return c.pipeline.Unregister(event, id)
}

// ClearHooks removes hooks for the given events, or all events.
func (c *Client) ClearHooks(events ...hooks.Event) {
	c.pipeline.Clear(events...)
}

// AccessRequest describes one delegated-access request.
type AccessRequest struct {
	// TargetID identifies the resource owner on the push channel.
	TargetID string

	// Scope overrides the configured default scope.
	Scope string

	// Timeout overrides the configured authorization timeout.
	Timeout time.Duration

	// HookData is merged into the data map every lifecycle hook sees.
	HookData map[string]any
}

// RequestAccess runs the full device authorization flow: lifecycle hooks,
// device code acquisition, owner notification, and token polling. It blocks
// until the flow reaches a terminal state.
//
// BEFORE hooks run before any provider side effect; a veto aborts the
// request with HookBlockedError. The device-code notification is mandatory:
// if the owner cannot be told about the request the flow fails. The success
// notification and AFTER hooks are best-effort and never override a token
// that was already granted.
func (c *Client) RequestAccess(ctx context.Context, req AccessRequest) (*authflow.TokenResult, error) {
	if req.TargetID == "" {
		return nil, fmt.Errorf("request access: target ID is required")
	}
	scope := req.Scope
	if scope == "" {
		scope = c.cfg.Scope
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.cfg.AuthTimeout
	}

	data := map[string]any{
		"target_id": req.TargetID,
		"scope":     scope,
		"timeout":   timeout,
	}
	for k, v := range req.HookData {
		data[k] = v
	}
	hc := c.newHookContext(hooks.BeforeAuthRequest, data)

	if err := c.runBeforeHooks(ctx, hooks.BeforeAuthRequest, hc); err != nil {
		return nil, err
	}

	log := c.log.With().Str("target_id", req.TargetID).Logger()
	log.Info().Str("scope", scope).Dur("timeout", timeout).Msg("starting device authorization")

	grant, err := c.flow.AcquireDeviceCode(ctx, scope)
	if err != nil {
		c.afterAuthFailure(ctx, hc, err)
		return nil, err
	}

	if err := c.notifyOwner(ctx, "auth_request", req.TargetID, func(ctx context.Context) error {
		_, err := c.sender.SendAuthRequest(ctx, req.TargetID, grant)
		return err
	}); err != nil {
		err = &NotificationError{Err: err}
		c.afterAuthFailure(ctx, hc, err)
		return nil, err
	}

	token, err := c.flow.Run(ctx, grant, timeout)
	if err != nil {
		c.afterAuthFailure(ctx, hc, err)
		return nil, err
	}

	// Best-effort: the owner already approved, a missed confirmation must
	// not unwind the grant.
	if err := c.notifyOwner(ctx, "auth_success", req.TargetID, func(ctx context.Context) error {
		_, err := c.sender.SendAuthSuccess(ctx, req.TargetID, token)
		return err
	}); err != nil {
		log.Warn().Err(err).Msg("success notification failed")
	}

	successCtx := c.nextHookContext(hc, hooks.AfterAuthSuccess, map[string]any{
		"access_token": redact.Token(token.AccessToken),
		"token_scope":  token.Scope,
		"expires_at":   token.ExpiresAt,
	})
	if res := c.pipeline.ExecuteSync(ctx, hooks.AfterAuthSuccess, successCtx); !res.Success {
		log.Warn().Str("reason", res.Err).Msg("after-auth-success hook reported failure")
	}

	log.Info().Time("expires_at", token.ExpiresAt).Msg("delegated access granted")
	return token, nil
}

// RefreshAccess exchanges a refresh token for a fresh token result.
func (c *Client) RefreshAccess(ctx context.Context, refreshToken string) (*authflow.TokenResult, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh access: refresh token is required")
	}
	return c.flow.Refresh(ctx, refreshToken)
}

// afterAuthFailure runs observation hooks for a failed flow. Hook problems
// are logged; they cannot suppress the original failure.
func (c *Client) afterAuthFailure(ctx context.Context, hc *hooks.Context, cause error) {
	failCtx := c.nextHookContext(hc, hooks.AfterAuthFailure, map[string]any{
		"error": cause.Error(),
	})
	if res := c.pipeline.ExecuteSync(ctx, hooks.AfterAuthFailure, failCtx); !res.Success {
		c.log.Warn().Str("reason", res.Err).Msg("after-auth-failure hook reported failure")
	}
}

// runBeforeHooks executes the synchronous then the asynchronous chain for a
// BEFORE event, translating a halt into HookBlockedError.
func (c *Client) runBeforeHooks(ctx context.Context, event hooks.Event, hc *hooks.Context) error {
	if res := c.pipeline.ExecuteSync(ctx, event, hc); !res.Continue {
		return &HookBlockedError{Event: event, Reason: res.Err}
	}
	if res := c.pipeline.ExecuteAsync(ctx, event, hc); !res.Continue {
		return &HookBlockedError{Event: event, Reason: res.Err}
	}
	return nil
}

// notifyOwner wraps one outbound notification with the message-send hooks.
func (c *Client) notifyOwner(ctx context.Context, kind, recipient string, send func(context.Context) error) error {
	hc := c.newHookContext(hooks.BeforeMessageSend, map[string]any{
		"kind":      kind,
		"recipient": recipient,
	})
	if res := c.pipeline.ExecuteSync(ctx, hooks.BeforeMessageSend, hc); !res.Continue {
		return &HookBlockedError{Event: hooks.BeforeMessageSend, Reason: res.Err}
	}

	err := send(ctx)

	after := map[string]any{}
	if err != nil {
		after["error"] = err.Error()
	}
	afterCtx := c.nextHookContext(hc, hooks.AfterMessageSend, after)
	if res := c.pipeline.ExecuteSync(ctx, hooks.AfterMessageSend, afterCtx); !res.Success {
		c.log.Warn().Str("reason", res.Err).Msg("after-message-send hook reported failure")
	}
	return err
}

func (c *Client) newHookContext(event hooks.Event, data map[string]any) *hooks.Context {
	hc := hooks.NewContext(event, data)
	hc.Metadata["request_id"] = uuid.NewString()
	return hc
}

// nextHookContext derives the context for the next lifecycle stage, keeping
// the metadata and copying rather than mutating the in-flight context.
func (c *Client) nextHookContext(prev *hooks.Context, event hooks.Event, extra map[string]any) *hooks.Context {
	next := prev.WithData(extra)
	next.Event = event
	return next
}
