package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	deviceCodePath = "/oauth/2.0/device/code"
	tokenPath      = "/oauth/2.0/token"

	defaultTimeout = 30 * time.Second
)

// NetdiskProvider implements Transport against a netdisk-style OAuth service.
type NetdiskProvider struct {
	client       *http.Client
	clientID     string
	clientSecret string
	deviceURL    string
	tokenURL     string
}

// NetdiskConfig configures a NetdiskProvider.
type NetdiskConfig struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	HTTPClient   *http.Client
}

// NewNetdiskProvider creates a provider transport for the configured service.
func NewNetdiskProvider(cfg NetdiskConfig) (*NetdiskProvider, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("client secret is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	return &NetdiskProvider{
		client:       client,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		deviceURL:    baseURL + deviceCodePath,
		tokenURL:     baseURL + tokenPath,
	}, nil
}

// DeviceCode requests a new device authorization.
func (p *NetdiskProvider) DeviceCode(ctx context.Context, scope string) (*DeviceAuthorization, error) {
	data := url.Values{
		"response_type": {"device_code"},
		"client_id":     {p.clientID},
		"scope":         {scope},
	}

	body, err := p.post(ctx, p.deviceURL, data)
	if err != nil {
		return nil, err
	}

	var auth DeviceAuthorization
	if err := json.Unmarshal(body, &auth); err != nil {
		return nil, fmt.Errorf("parsing device code response: %w", err)
	}
	return &auth, nil
}

// DeviceToken polls the token endpoint for a device code.
func (p *NetdiskProvider) DeviceToken(ctx context.Context, deviceCode string) (*TokenPayload, error) {
	data := url.Values{
		"grant_type":    {"device_token"},
		"code":          {deviceCode},
		"client_id":     {p.clientID},
		"client_secret": {p.clientSecret},
	}
	return p.token(ctx, data)
}

// Refresh exchanges a refresh token for a fresh token payload.
func (p *NetdiskProvider) Refresh(ctx context.Context, refreshToken string) (*TokenPayload, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {p.clientID},
		"client_secret": {p.clientSecret},
	}
	return p.token(ctx, data)
}

func (p *NetdiskProvider) token(ctx context.Context, data url.Values) (*TokenPayload, error) {
	body, err := p.post(ctx, p.tokenURL, data)
	if err != nil {
		return nil, err
	}

	var payload TokenPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parsing token response: %w", err)
	}
	if payload.AccessToken == "" {
		return nil, &ProtocolError{Field: "access_token"}
	}
	return &payload, nil
}

// post sends a form request and returns the response body, mapping the
// provider's structured error states to sentinel errors.
func (p *NetdiskProvider) post(ctx context.Context, endpoint string, data url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
			return nil, fmt.Errorf("request failed: %s", resp.Status)
		}
		switch errResp.Error {
		case "authorization_pending":
			return nil, ErrAuthorizationPending
		case "authorization_declined", "access_denied":
			return nil, ErrAuthorizationDeclined
		case "expired_token":
			return nil, ErrCodeExpired
		default:
			return nil, &APIError{Code: errResp.Error, Description: errResp.ErrorDescription}
		}
	}

	// Some providers report device-grant states with a 200 status.
	var probe struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &probe); err == nil && probe.Error != "" {
		switch probe.Error {
		case "authorization_pending":
			return nil, ErrAuthorizationPending
		case "authorization_declined", "access_denied":
			return nil, ErrAuthorizationDeclined
		case "expired_token":
			return nil, ErrCodeExpired
		default:
			return nil, &APIError{Code: probe.Error, Description: probe.ErrorDescription}
		}
	}

	return body, nil
}
