package notify

import (
	"context"
	"errors"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/driveflow/driveflow/authflow"
)

type fakeClock struct {
	t      time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.t = c.t.Add(d)
}

// spyTransport records deliveries and answers them from a script of errors,
// succeeding once the script runs out.
type spyTransport struct {
	errs  []error
	calls int
	sent  []*Message
}

func (s *spyTransport) Send(ctx context.Context, msg *Message) (*Receipt, error) {
	defer func() { s.calls++ }()
	s.sent = append(s.sent, msg)
	if s.calls < len(s.errs) && s.errs[s.calls] != nil {
		return nil, s.errs[s.calls]
	}
	return &Receipt{MessageID: "msg-1"}, nil
}

func validMessage() *Message {
	return &Message{
		Recipients:  []string{"UID_x"},
		Content:     "hello",
		ContentType: ContentText,
	}
}

func newTestSender(tr Transport, clock *fakeClock, opts ...SenderOption) *Sender {
	opts = append(opts, WithSenderClock(clock.now, clock.sleep))
	return NewSender(tr, zerolog.Nop(), opts...)
}

func TestSendDelivers(t *testing.T) {
	clock := newFakeClock()
	tr := &spyTransport{}
	s := newTestSender(tr, clock)

	receipt, err := s.Send(context.Background(), validMessage())
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if receipt.MessageID != "msg-1" {
		t.Errorf("MessageID = %q", receipt.MessageID)
	}
	if tr.calls != 1 {
		t.Errorf("calls = %d, want 1", tr.calls)
	}
}

func TestSendValidation(t *testing.T) {
	tests := []struct {
		name string
		msg  *Message
	}{
		{"no recipients", &Message{Content: "x", ContentType: ContentText}},
		{"empty recipient", &Message{Recipients: []string{""}, Content: "x", ContentType: ContentText}},
		{"empty content", &Message{Recipients: []string{"u"}, ContentType: ContentText}},
		{"content too long", &Message{Recipients: []string{"u"}, Content: strings.Repeat("x", MaxContentLength+1), ContentType: ContentText}},
		{"summary too long", &Message{Recipients: []string{"u"}, Content: "x", Summary: strings.Repeat("s", MaxSummaryLength+1), ContentType: ContentText}},
		{"bad content type", &Message{Recipients: []string{"u"}, Content: "x", ContentType: 9}},
		{"url too long", &Message{Recipients: []string{"u"}, Content: "x", ContentType: ContentText, URL: "https://" + strings.Repeat("a", MaxURLLength)}},
		{"too many recipients", &Message{Recipients: make([]string, MaxRecipients+1), Content: "x", ContentType: ContentText}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			tr := &spyTransport{}
			s := newTestSender(tr, clock)

			if _, err := s.Send(context.Background(), tt.msg); err == nil {
				t.Fatal("Send accepted an invalid message")
			}
			if tr.calls != 0 {
				t.Errorf("invalid message reached the transport (%d calls)", tr.calls)
			}
		})
	}
}

func TestSendPacing(t *testing.T) {
	clock := newFakeClock()
	tr := &spyTransport{}
	s := newTestSender(tr, clock)

	for i := 0; i < 5; i++ {
		if _, err := s.Send(context.Background(), validMessage()); err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
	}

	// The first send goes straight through; the four that follow each wait
	// out the full spacing because the virtual clock only moves in sleeps.
	if len(clock.sleeps) != 4 {
		t.Fatalf("sleeps = %v, want 4 waits", clock.sleeps)
	}
	for i, d := range clock.sleeps {
		if d != DefaultMinSpacing {
			t.Errorf("sleep[%d] = %v, want %v", i, d, DefaultMinSpacing)
		}
	}
}

func TestSendNoWaitAfterQuietPeriod(t *testing.T) {
	clock := newFakeClock()
	tr := &spyTransport{}
	s := newTestSender(tr, clock)

	if _, err := s.Send(context.Background(), validMessage()); err != nil {
		t.Fatal(err)
	}
	clock.t = clock.t.Add(time.Second)
	if _, err := s.Send(context.Background(), validMessage()); err != nil {
		t.Fatal(err)
	}
	if len(clock.sleeps) != 0 {
		t.Errorf("sleeps = %v, want none after a quiet second", clock.sleeps)
	}
}

func TestSendRetries(t *testing.T) {
	t.Run("transient transport errors retry with doubling backoff", func(t *testing.T) {
		clock := newFakeClock()
		tr := &spyTransport{errs: []error{syscall.ECONNRESET, &HTTPError{Status: 503}}}
		s := newTestSender(tr, clock)

		if _, err := s.Send(context.Background(), validMessage()); err != nil {
			t.Fatalf("Send: %v", err)
		}
		if tr.calls != 3 {
			t.Errorf("calls = %d, want 3", tr.calls)
		}
		want := []time.Duration{2 * time.Second, 4 * time.Second}
		if len(clock.sleeps) != len(want) {
			t.Fatalf("sleeps = %v, want %v", clock.sleeps, want)
		}
		for i := range want {
			if clock.sleeps[i] != want[i] {
				t.Errorf("sleep[%d] = %v, want %v", i, clock.sleeps[i], want[i])
			}
		}
	})

	t.Run("attempt bound", func(t *testing.T) {
		clock := newFakeClock()
		cause := &HTTPError{Status: 502}
		tr := &spyTransport{errs: []error{cause, cause, cause}}
		s := newTestSender(tr, clock)

		_, err := s.Send(context.Background(), validMessage())
		if err == nil {
			t.Fatal("want error after exhausted attempts")
		}
		if !errors.Is(err, cause) {
			t.Errorf("err = %v, want wrapped %v", err, cause)
		}
		if tr.calls != 3 {
			t.Errorf("calls = %d, want 3", tr.calls)
		}
	})

	t.Run("broken-request service errors fail immediately", func(t *testing.T) {
		for _, code := range []int{1000, 1001, 1002, 1003, 1004} {
			clock := newFakeClock()
			tr := &spyTransport{errs: []error{&APIError{Code: code, Msg: "bad"}}}
			s := newTestSender(tr, clock)

			if _, err := s.Send(context.Background(), validMessage()); err == nil {
				t.Fatalf("code %d: want error", code)
			}
			if tr.calls != 1 {
				t.Errorf("code %d: calls = %d, want 1", code, tr.calls)
			}
		}
	})

	t.Run("other service errors retry", func(t *testing.T) {
		clock := newFakeClock()
		tr := &spyTransport{errs: []error{&APIError{Code: 1234, Msg: "hiccup"}}}
		s := newTestSender(tr, clock)

		if _, err := s.Send(context.Background(), validMessage()); err != nil {
			t.Fatalf("Send: %v", err)
		}
		if tr.calls != 2 {
			t.Errorf("calls = %d, want 2", tr.calls)
		}
	})
}

func TestAuthMessages(t *testing.T) {
	clock := newFakeClock()
	tr := &spyTransport{}
	s := newTestSender(tr, clock)

	receipt, err := s.SendAuthRequest(context.Background(), "UID_x", testGrant())
	if err != nil {
		t.Fatalf("SendAuthRequest: %v", err)
	}
	if receipt == nil {
		t.Fatal("receipt is nil")
	}

	sent := tr.sent[0]
	if sent.ContentType != ContentHTML {
		t.Errorf("ContentType = %v, want HTML", sent.ContentType)
	}
	if !strings.Contains(sent.Content, "ABCD-1234") {
		t.Errorf("content missing user code: %q", sent.Content)
	}
	if !strings.Contains(sent.Content, "https://example.com/device") {
		t.Errorf("content missing verification URL: %q", sent.Content)
	}
	if !strings.Contains(sent.Content, "300 seconds") {
		t.Errorf("content missing expiry: %q", sent.Content)
	}

	if _, err := s.SendAuthSuccess(context.Background(), "UID_x", &authflow.TokenResult{AccessToken: "secret-access-token"}); err != nil {
		t.Fatalf("SendAuthSuccess: %v", err)
	}
	success := tr.sent[1]
	if strings.Contains(success.Content, "secret-access-token") {
		t.Errorf("success message leaked the raw token: %q", success.Content)
	}
}

func testGrant() *authflow.DeviceGrant {
	return &authflow.DeviceGrant{
		DeviceCode:      "dev-code-1234",
		UserCode:        "ABCD-1234",
		VerificationURL: "https://example.com/device",
		CodeExpiry:      5 * time.Minute,
		PollInterval:    5 * time.Second,
	}
}
