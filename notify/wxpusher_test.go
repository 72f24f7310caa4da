package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestWxPusherSend(t *testing.T) {
	var got struct {
		AppToken    string   `json:"appToken"`
		Content     string   `json:"content"`
		Summary     string   `json:"summary"`
		ContentType int      `json:"contentType"`
		UIDs        []string `json:"uids"`
		URL         string   `json:"url"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/send/message" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"code":1000,"msg":"ok","success":true,"data":[{"messageId":98765,"status":"sent"}]}`)); err != nil {
			t.Error(err)
		}
	}))
	defer srv.Close()

	pusher, err := NewWxPusher(WxPusherConfig{AppToken: "AT_test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewWxPusher: %v", err)
	}

	receipt, err := pusher.Send(context.Background(), &Message{
		Recipients:  []string{"UID_a", "UID_b"},
		Content:     "<b>hi</b>",
		Summary:     "hi",
		ContentType: ContentHTML,
		URL:         "https://example.com",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if receipt.MessageID != "98765" {
		t.Errorf("MessageID = %q, want 98765", receipt.MessageID)
	}

	if got.AppToken != "AT_test" {
		t.Errorf("appToken = %q", got.AppToken)
	}
	if got.ContentType != 2 {
		t.Errorf("contentType = %d, want 2", got.ContentType)
	}
	if len(got.UIDs) != 2 || got.UIDs[0] != "UID_a" {
		t.Errorf("uids = %v", got.UIDs)
	}
}

func TestWxPusherServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte(`{"code":1001,"msg":"appToken invalid","success":false}`)); err != nil {
			t.Error(err)
		}
	}))
	defer srv.Close()

	pusher, err := NewWxPusher(WxPusherConfig{AppToken: "AT_test", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	_, err = pusher.Send(context.Background(), &Message{Recipients: []string{"u"}, Content: "x", ContentType: ContentText})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Code != 1001 {
		t.Errorf("Code = %d, want 1001", apiErr.Code)
	}
	if apiErr.Retryable() {
		t.Error("code 1001 reported retryable")
	}
}

func TestWxPusherHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	pusher, err := NewWxPusher(WxPusherConfig{AppToken: "AT_test", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	_, err = pusher.Send(context.Background(), &Message{Recipients: []string{"u"}, Content: "x", ContentType: ContentText})
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("err = %v, want *HTTPError", err)
	}
	if httpErr.Status != http.StatusServiceUnavailable {
		t.Errorf("Status = %d", httpErr.Status)
	}
	if !httpErr.Retryable() {
		t.Error("503 reported non-retryable")
	}
}

func TestCreateSubscriptionQRCode(t *testing.T) {
	var got struct {
		AppToken  string `json:"appToken"`
		Extra     string `json:"extra"`
		ValidTime int    `json:"validTime"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/fun/create/qrcode" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if _, err := w.Write([]byte(`{"code":1000,"msg":"ok","success":true,"data":{"code":"qr-1","url":"https://wxpusher.zjiecode.com/qr/qr-1","expiresIn":1800}}`)); err != nil {
			t.Error(err)
		}
	}))
	defer srv.Close()

	pusher, err := NewWxPusher(WxPusherConfig{AppToken: "AT_test", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	qr, err := pusher.CreateSubscriptionQRCode(context.Background(), "tenant=acme", 30*time.Minute)
	if err != nil {
		t.Fatalf("CreateSubscriptionQRCode: %v", err)
	}
	if qr.Code != "qr-1" || qr.ExpiresIn != 1800 {
		t.Errorf("qr = %+v", qr)
	}
	if qr.URL == "" {
		t.Error("qr.URL is empty")
	}

	if got.AppToken != "AT_test" || got.Extra != "tenant=acme" {
		t.Errorf("payload = %+v", got)
	}
	if got.ValidTime != 1800 {
		t.Errorf("validTime = %d, want 1800", got.ValidTime)
	}
}

func TestCreateSubscriptionQRCodeLimits(t *testing.T) {
	pusher, err := NewWxPusher(WxPusherConfig{AppToken: "AT_test", BaseURL: "https://example.com"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := pusher.CreateSubscriptionQRCode(context.Background(), strings.Repeat("x", MaxQRCodeExtra+1), 0); err == nil {
		t.Error("oversized extra accepted")
	}
	if _, err := pusher.CreateSubscriptionQRCode(context.Background(), "", MaxQRCodeValidity+time.Hour); err == nil {
		t.Error("oversized validity accepted")
	}
}

func TestScanStatus(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantUID string
	}{
		{"bare uid string", `{"code":1000,"msg":"ok","success":true,"data":"UID_scanned"}`, "UID_scanned"},
		{"object data", `{"code":1000,"msg":"ok","success":true,"data":{"uid":"UID_obj","scanned":true}}`, "UID_obj"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/fun/scan-qrcode-uid" {
					t.Errorf("path = %s", r.URL.Path)
				}
				if got := r.URL.Query().Get("code"); got != "qr-1" {
					t.Errorf("code = %q", got)
				}
				if _, err := w.Write([]byte(tt.body)); err != nil {
					t.Error(err)
				}
			}))
			defer srv.Close()

			pusher, err := NewWxPusher(WxPusherConfig{AppToken: "AT_test", BaseURL: srv.URL})
			if err != nil {
				t.Fatal(err)
			}

			uid, err := pusher.ScanStatus(context.Background(), "qr-1")
			if err != nil {
				t.Fatalf("ScanStatus: %v", err)
			}
			if uid != tt.wantUID {
				t.Errorf("uid = %q, want %q", uid, tt.wantUID)
			}
		})
	}
}

func TestScanStatusNotScanned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte(`{"code":1001,"msg":"no scan yet","success":false}`)); err != nil {
			t.Error(err)
		}
	}))
	defer srv.Close()

	pusher, err := NewWxPusher(WxPusherConfig{AppToken: "AT_test", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	_, err = pusher.ScanStatus(context.Background(), "qr-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Code != 1001 {
		t.Errorf("Code = %d", apiErr.Code)
	}
}

func TestNewWxPusherValidation(t *testing.T) {
	if _, err := NewWxPusher(WxPusherConfig{BaseURL: "https://example.com"}); err == nil {
		t.Error("missing app token accepted")
	}
	if _, err := NewWxPusher(WxPusherConfig{AppToken: "AT_test"}); err == nil {
		t.Error("missing base URL accepted")
	}
}
