package authflow

import (
	"time"

	"github.com/driveflow/driveflow/internal/redact"
	"github.com/driveflow/driveflow/provider"
)

// DeviceGrant is one in-flight device-code authorization attempt. It is
// created by AcquireDeviceCode, consumed by Run, and never persisted.
type DeviceGrant struct {
	// DeviceCode is the opaque provider-issued code used for polling.
	// Never log it in full.
	DeviceCode string

	// UserCode is the short code the resource owner types into a browser.
	UserCode string

	// VerificationURL is where the resource owner completes approval.
	VerificationURL string

	// CodeExpiry caps the polling window.
	CodeExpiry time.Duration

	// PollInterval is the provider-specified minimum spacing between polls.
	PollInterval time.Duration
}

// TokenResult is the terminal success value of a polling loop. Immutable
// once returned.
type TokenResult struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Valid reports whether the access token has not yet expired.
func (t *TokenResult) Valid() bool {
	return t != nil && t.AccessToken != "" && time.Now().Before(t.ExpiresAt)
}

// String renders the token with its secrets masked, so accidental
// formatting of a TokenResult never leaks credentials.
func (t *TokenResult) String() string {
	return "TokenResult(access_token=" + redact.Token(t.AccessToken) +
		", refresh_token=" + redact.Token(t.RefreshToken) +
		", expires_at=" + t.ExpiresAt.Format(time.RFC3339) + ")"
}

// newTokenResult builds a TokenResult from a provider payload, computing the
// absolute expiry from the local clock. Clock skew against the provider is
// an accepted risk.
func newTokenResult(payload *provider.TokenPayload, now time.Time) *TokenResult {
	tokenType := payload.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &TokenResult{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		TokenType:    tokenType,
		Scope:        payload.Scope,
		ExpiresAt:    now.Add(time.Duration(payload.ExpiresIn) * time.Second),
	}
}
