package driveflow

import (
	"fmt"
	"time"
)

// Default endpoints and limits. The push service default matches the public
// WxPusher deployment; provider endpoints have no sane default and must be
// configured.
const (
	DefaultPusherBaseURL = "https://wxpusher.zjiecode.com"
	DefaultAuthTimeout   = 5 * time.Minute
	DefaultScope         = "basic,netdisk"
)

// Config holds the static configuration of a Client.
type Config struct {
	// ClientID and ClientSecret identify the requesting application to
	// the storage provider's OAuth service.
	ClientID     string
	ClientSecret string

	// ProviderBaseURL is the root of the provider's OAuth service.
	ProviderBaseURL string

	// ResourceBaseURL is the root of the provider's resource API.
	ResourceBaseURL string

	// PusherAppToken authenticates against the push-notification service.
	PusherAppToken string

	// PusherBaseURL is the root of the push-notification service.
	PusherBaseURL string

	// Scope is the default authorization scope.
	Scope string

	// AuthTimeout bounds how long RequestAccess waits for the resource
	// owner, unless a per-request timeout is given.
	AuthTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.PusherBaseURL == "" {
		c.PusherBaseURL = DefaultPusherBaseURL
	}
	if c.Scope == "" {
		c.Scope = DefaultScope
	}
	if c.AuthTimeout <= 0 {
		c.AuthTimeout = DefaultAuthTimeout
	}
	return c
}

// Validate reports the first missing required field.
func (c Config) Validate() error {
	switch {
	case c.ClientID == "":
		return fmt.Errorf("config: client ID is required")
	case c.ClientSecret == "":
		return fmt.Errorf("config: client secret is required")
	case c.ProviderBaseURL == "":
		return fmt.Errorf("config: provider base URL is required")
	case c.ResourceBaseURL == "":
		return fmt.Errorf("config: resource base URL is required")
	case c.PusherAppToken == "":
		return fmt.Errorf("config: pusher app token is required")
	}
	return nil
}
