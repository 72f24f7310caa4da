package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	sendMessagePath   = "/api/send/message"
	createQRCodePath  = "/api/fun/create/qrcode"
	scanQRCodeUIDPath = "/api/fun/scan-qrcode-uid"

	wxpusherTimeout = 30 * time.Second

	// The service reports success with code 1000 and success=true.
	wxpusherOK = 1000
)

// Subscription QR-code limits enforced by the push service.
const (
	DefaultQRCodeValidity = 30 * time.Minute
	MaxQRCodeValidity     = 30 * 24 * time.Hour
	MaxQRCodeExtra        = 64
)

// WxPusher is a Transport for the WxPusher-compatible push API.
type WxPusher struct {
	client    *http.Client
	appToken  string
	sendURL   string
	qrcodeURL string
	scanURL   string
}

// WxPusherConfig configures a WxPusher transport.
type WxPusherConfig struct {
	AppToken   string
	BaseURL    string
	HTTPClient *http.Client
}

// NewWxPusher creates a push transport for the configured service.
func NewWxPusher(cfg WxPusherConfig) (*WxPusher, error) {
	if cfg.AppToken == "" {
		return nil, fmt.Errorf("app token is required")
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
		client = &http.Client{Timeout: wxpusherTimeout}
	}
	return &WxPusher{
		client:    client,
		appToken:  cfg.AppToken,
		sendURL:   baseURL + sendMessagePath,
		qrcodeURL: baseURL + createQRCodePath,
		scanURL:   baseURL + scanQRCodeUIDPath,
	}, nil
}

// Send delivers one message through the push API.
func (w *WxPusher) Send(ctx context.Context, msg *Message) (*Receipt, error) {
	payload := struct {
		AppToken    string   `json:"appToken"`
		Content     string   `json:"content"`
		Summary     string   `json:"summary,omitempty"`
		ContentType int      `json:"contentType"`
		UIDs        []string `json:"uids"`
		URL         string   `json:"url,omitempty"`
	}{
		AppToken:    w.appToken,
		Content:     msg.Content,
		Summary:     msg.Summary,
		ContentType: int(msg.ContentType),
		UIDs:        msg.Recipients,
		URL:         msg.URL,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", w.sendURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{Status: resp.StatusCode}
	}

	var result struct {
		Code    int    `json:"code"`
		Msg     string `json:"msg"`
		Success bool   `json:"success"`
		Data    []struct {
			MessageID int64  `json:"messageId"`
			Status    string `json:"status"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("parsing send response: %w", err)
	}

	if result.Code != wxpusherOK || !result.Success {
		return nil, &APIError{Code: result.Code, Msg: result.Msg}
	}

	receipt := &Receipt{}
	if len(result.Data) > 0 {
		receipt.MessageID = strconv.FormatInt(result.Data[0].MessageID, 10)
	}
	return receipt, nil
}

// SubscriptionQRCode is a one-time code a new resource owner scans to
// subscribe to the push channel and obtain a recipient UID.
type SubscriptionQRCode struct {
	// Code identifies the QR code for scan-status polling.
	Code string

	// URL is the rendered QR-code image.
	URL string

	// ExpiresIn is the code's remaining validity in seconds.
	ExpiresIn int
}

// CreateSubscriptionQRCode requests a subscription QR code from the push
// service. extra rides along with the scan callback and is capped at 64
// characters; a non-positive validity falls back to 30 minutes.
func (w *WxPusher) CreateSubscriptionQRCode(ctx context.Context, extra string, validity time.Duration) (*SubscriptionQRCode, error) {
	if len(extra) > MaxQRCodeExtra {
		return nil, fmt.Errorf("qrcode extra exceeds %d characters", MaxQRCodeExtra)
	}
	if validity <= 0 {
		validity = DefaultQRCodeValidity
	}
	if validity > MaxQRCodeValidity {
		return nil, fmt.Errorf("qrcode validity exceeds %s", MaxQRCodeValidity)
	}

	payload := struct {
		AppToken  string `json:"appToken"`
		Extra     string `json:"extra,omitempty"`
		ValidTime int    `json:"validTime"`
	}{
		AppToken:  w.appToken,
		Extra:     extra,
		ValidTime: int(validity / time.Second),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding qrcode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", w.qrcodeURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating qrcode request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("creating subscription qrcode: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{Status: resp.StatusCode}
	}

	var result struct {
		Code    int    `json:"code"`
		Msg     string `json:"msg"`
		Success bool   `json:"success"`
		Data    struct {
			Code      string `json:"code"`
			URL       string `json:"url"`
			ExpiresIn int    `json:"expiresIn"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("parsing qrcode response: %w", err)
	}
	if result.Code != wxpusherOK || !result.Success {
		return nil, &APIError{Code: result.Code, Msg: result.Msg}
	}

	return &SubscriptionQRCode{
		Code:      result.Data.Code,
		URL:       result.Data.URL,
		ExpiresIn: result.Data.ExpiresIn,
	}, nil
}

// ScanStatus reports the UID of the user who scanned a subscription QR code.
// The service answers the data field either as a bare UID string or as an
// object; both shapes are accepted. An unscanned code comes back as an
// APIError from the service.
func (w *WxPusher) ScanStatus(ctx context.Context, qrcodeCode string) (string, error) {
	if qrcodeCode == "" {
		return "", fmt.Errorf("qrcode code is required")
	}

	endpoint := w.scanURL + "?" + url.Values{"code": {qrcodeCode}}.Encode()
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("creating scan-status request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("querying scan status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &HTTPError{Status: resp.StatusCode}
	}

	var result struct {
		Code    int             `json:"code"`
		Msg     string          `json:"msg"`
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("parsing scan-status response: %w", err)
	}
	if result.Code != wxpusherOK || !result.Success {
		return "", &APIError{Code: result.Code, Msg: result.Msg}
	}

	var uid string
	if err := json.Unmarshal(result.Data, &uid); err == nil {
		return uid, nil
	}
	var obj struct {
		UID string `json:"uid"`
	}
	if err := json.Unmarshal(result.Data, &obj); err == nil && obj.UID != "" {
		return obj.UID, nil
	}
	return "", fmt.Errorf("parsing scan-status response: unrecognized data shape")
}
