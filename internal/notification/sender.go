// Package notification holds the outbound channel adapters used by the
// delivery worker.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/queue-engine/internal/config"
	"github.com/spec-kit/queue-engine/internal/domain"
)

// Sender delivers one notification event over an external channel.
type Sender interface {
	Send(ctx context.Context, event domain.NotificationEvent) error
}

// NewSender picks the adapter named by cfg.Channel. Channels missing their
// credentials fall back to logging.
func NewSender(cfg config.NotificationConfig, logger *zap.Logger) Sender {
	client := &http.Client{Timeout: 5 * time.Second}
	switch cfg.Channel {
	case "webhook":
		if cfg.WebhookURL != "" {
			return &WebhookSender{URL: cfg.WebhookURL, Token: cfg.WebhookToken, Client: client}
		}
		logger.Warn("NOTIFY_WEBHOOK_URL not set; notifications will be logged")
	case "telegram":
		if cfg.TelegramToken != "" {
			return &TelegramSender{APIBase: cfg.TelegramAPI, Token: cfg.TelegramToken, Client: client}
		}
		logger.Warn("NOTIFY_TELEGRAM_TOKEN not set; notifications will be logged")
	}
	return &LogSender{Logger: logger}
}

// LogSender writes notifications to the service log.
type LogSender struct {
	Logger *zap.Logger
}

// Send implements Sender.
func (s *LogSender) Send(_ context.Context, event domain.NotificationEvent) error {
	s.Logger.Info("notification",
		zap.String("ticket_id", event.TicketID),
		zap.String("type", string(event.Type)),
		zap.String("recipient", event.Recipient),
		zap.String("message", event.Message))
	return nil
}

// WebhookSender posts notifications as JSON to an HTTP endpoint.
type WebhookSender struct {
	URL    string
	Token  string
	Client *http.Client
}

type webhookPayload struct {
	ID        string `json:"id"`
	TicketID  string `json:"ticket_id"`
	Type      string `json:"type"`
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
	Attempt   int    `json:"attempt"`
}

// Send implements Sender.
func (s *WebhookSender) Send(ctx context.Context, event domain.NotificationEvent) error {
	body, err := json.Marshal(webhookPayload{
		ID:        event.ID,
		TicketID:  event.TicketID,
		Type:      string(event.Type),
		Channel:   event.Channel,
		Recipient: event.Recipient,
		Message:   event.Message,
		Attempt:   event.Attempt + 1,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", event.ID)
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
	return do(s.Client, req)
}

// TelegramSender delivers messages through the Telegram Bot API. The
// recipient is the chat id.
type TelegramSender struct {
	APIBase string
	Token   string
	Client  *http.Client
}

// Send implements Sender.
func (s *TelegramSender) Send(ctx context.Context, event domain.NotificationEvent) error {
	body, err := json.Marshal(map[string]string{
		"chat_id": event.Recipient,
		"text":    event.Message,
	})
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(s.APIBase, "/"), s.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return s.redact(err)
	}
	req.Header.Set("Content-Type", "application/json")
	return s.redact(do(s.Client, req))
}

// redact keeps the bot token out of errors. They end up in last_error, the
// logs and the notification API responses.
func (s *TelegramSender) redact(err error) error {
	if err == nil {
		return nil
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = fmt.Errorf("%s telegram sendMessage: %w", urlErr.Op, urlErr.Err)
	}
	if s.Token == "" || !strings.Contains(err.Error(), s.Token) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), s.Token, "<redacted>"))
}

func do(client *http.Client, req *http.Request) error {
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("provider rejected request: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}
