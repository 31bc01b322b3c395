package notification

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/queue-engine/internal/config"
	"github.com/spec-kit/queue-engine/internal/domain"
)

func TestWebhookSenderPostsEvent(t *testing.T) {
	var got webhookPayload
	var auth, key string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		key = r.Header.Get("Idempotency-Key")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sender := &WebhookSender{URL: server.URL, Token: "secret", Client: server.Client()}
	event := domain.NotificationEvent{ID: "n-1", TicketID: "t-1", Type: domain.NotificationYourTurn, Recipient: "chat-9", Message: "go"}
	if err := sender.Send(t.Context(), event); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if auth != "Bearer secret" || key != "n-1" {
		t.Fatalf("headers auth=%q key=%q", auth, key)
	}
	if got.TicketID != "t-1" || got.Type != "YOUR_TURN" || got.Recipient != "chat-9" || got.Attempt != 1 {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestWebhookSenderReportsRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	sender := &WebhookSender{URL: server.URL, Client: server.Client()}
	err := sender.Send(t.Context(), domain.NotificationEvent{ID: "n-1"})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected rejection error, got %v", err)
	}
}

func TestTelegramSenderUsesBotEndpoint(t *testing.T) {
	var path string
	var body map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	sender := &TelegramSender{APIBase: server.URL + "/", Token: "123:abc", Client: server.Client()}
	if err := sender.Send(t.Context(), domain.NotificationEvent{Recipient: "42", Message: "hello"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if path != "/bot123:abc/sendMessage" || body["chat_id"] != "42" || body["text"] != "hello" {
		t.Fatalf("path=%s body=%v", path, body)
	}
}

func TestTelegramSenderErrorsOmitToken(t *testing.T) {
	const token = "SECRET123:abc"

	unreachable := &TelegramSender{APIBase: "http://127.0.0.1:1", Token: token, Client: &http.Client{Timeout: time.Second}}
	err := unreachable.Send(t.Context(), domain.NotificationEvent{Recipient: "42", Message: "hello"})
	if err == nil {
		t.Fatalf("expected connection error")
	}
	if strings.Contains(err.Error(), token) || strings.Contains(err.Error(), "SECRET123") {
		t.Fatalf("error leaks bot token: %v", err)
	}

	echoing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad path "+r.URL.Path, http.StatusNotFound)
	}))
	defer echoing.Close()

	rejected := &TelegramSender{APIBase: echoing.URL, Token: token, Client: echoing.Client()}
	err = rejected.Send(t.Context(), domain.NotificationEvent{Recipient: "42", Message: "hello"})
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected rejection error, got %v", err)
	}
	if strings.Contains(err.Error(), token) {
		t.Fatalf("rejection error leaks bot token: %v", err)
	}
}

func TestNewSenderFallsBackToLog(t *testing.T) {
	tests := []config.NotificationConfig{
		{Channel: "log"},
		{Channel: "webhook"},
		{Channel: "telegram"},
		{Channel: "sms"},
	}
	for _, cfg := range tests {
		if _, ok := NewSender(cfg, zap.NewNop()).(*LogSender); !ok {
			t.Fatalf("channel %q without credentials should log", cfg.Channel)
		}
	}
	if _, ok := NewSender(config.NotificationConfig{Channel: "webhook", WebhookURL: "http://hook"}, zap.NewNop()).(*WebhookSender); !ok {
		t.Fatalf("expected webhook sender")
	}
}
