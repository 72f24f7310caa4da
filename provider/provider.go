// Package provider defines the OAuth device-grant transport consumed by the
// authorization flow, and an HTTP implementation for netdisk-style providers.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Well-known provider error states for the device token endpoint.
var (
	// ErrAuthorizationPending means the user has not yet approved the request.
	ErrAuthorizationPending = errors.New("authorization pending")

	// ErrAuthorizationDeclined means the user explicitly refused the request.
	ErrAuthorizationDeclined = errors.New("authorization declined")

	// ErrCodeExpired means the device code is no longer valid.
	ErrCodeExpired = errors.New("device code expired")
)

// ProtocolError reports a provider response that violates the device-grant
// contract, such as a missing required field. Never retried.
type ProtocolError struct {
	Field string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("provider response missing required field %q", e.Field)
}

// APIError is a structured provider error that is neither pending, declined,
// nor expired.
type APIError struct {
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("provider error: %s", e.Code)
	}
	return fmt.Sprintf("provider error: %s: %s", e.Code, e.Description)
}

// DeviceAuthorization is the provider's answer to a device-code request.
type DeviceAuthorization struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURL string `json:"verification_url"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// TokenPayload is the provider's token response shape, shared by the device
// token and refresh endpoints.
type TokenPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
}

// Transport is the OAuth endpoint surface the authorization flow drives.
type Transport interface {
	// DeviceCode requests a new device authorization for the given scope.
	DeviceCode(ctx context.Context, scope string) (*DeviceAuthorization, error)

	// DeviceToken polls the token endpoint for the given device code. It
	// returns ErrAuthorizationPending, ErrAuthorizationDeclined or
	// ErrCodeExpired for the corresponding provider states.
	DeviceToken(ctx context.Context, deviceCode string) (*TokenPayload, error)

	// Refresh exchanges a refresh token for a new token payload.
	Refresh(ctx context.Context, refreshToken string) (*TokenPayload, error)
}
