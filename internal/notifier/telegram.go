package notifier

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// DefaultAPIBase is the Telegram Bot API root.
const DefaultAPIBase = "https://api.telegram.org"

// DefaultSendRetries is how many times a failed sendMessage is retried.
const DefaultSendRetries = 3

// TelegramNotifier sends messages via the Telegram Bot API.
type TelegramNotifier struct {
	BotToken string
	ChatID   string
	APIBase  string

	client     *resty.Client // sendMessage, with retry
	pollClient *resty.Client // getUpdates long poll
	log        logrus.FieldLogger
}

// NewTelegramNotifier creates a notifier with optional proxy support.
// Sends are retried with jittered exponential backoff on transport errors,
// 429 and 5xx responses.
func NewTelegramNotifier(botToken, chatID, proxyURL string, log logrus.FieldLogger) *TelegramNotifier {
	client := newClient(proxyURL).
		SetRetryCount(DefaultSendRetries).
		SetRetryWaitTime(time.Second).
		SetRetryMaxWaitTime(8 * time.Second).
		AddRetryCondition(retryable)
	client.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		if retryable(resp, nil) && resp.Request.Attempt <= DefaultSendRetries {
			log.WithFields(logrus.Fields{
				"status":  resp.StatusCode(),
				"attempt": resp.Request.Attempt,
			}).Warn("telegram send failed, retrying")
		}
		return nil
	})
	return &TelegramNotifier{
		BotToken:   botToken,
		ChatID:     chatID,
		APIBase:    DefaultAPIBase,
		client:     client,
		pollClient: newClient(proxyURL),
		log:        log,
	}
}

func newClient(proxyURL string) *resty.Client {
	client := resty.New()
	client.SetTimeout(35 * time.Second)
	if proxyURL != "" {
		client.SetProxy(proxyURL)
	}
	return client
}

func retryable(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return false
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func (t *TelegramNotifier) method(name string) string {
	return fmt.Sprintf("%s/bot%s/%s", t.APIBase, t.BotToken, name)
}

// Send sends a message to the configured chat, retrying transient failures.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"chat_id":    t.ChatID,
			"text":       text,
			"parse_mode": "HTML",
		}).
		Post(t.method("sendMessage"))
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("telegram API error: status %d after %d attempt(s), body: %s",
			resp.StatusCode(), resp.Request.Attempt, resp.String())
	}
	return nil
}
