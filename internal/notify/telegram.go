package notify

import (
	"context"
	"fmt"
	"net/http"
)

const telegramAPI = "https://api.telegram.org"

// TelegramSender posts alerts through the Telegram Bot API.
type TelegramSender struct {
	apiBase string
	token   string
	chatID  string
	client  *http.Client
}

// NewTelegramSender creates a TelegramSender for a bot token and chat.
func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		apiBase: telegramAPI,
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: sendTimeout},
	}
}

// Send implements Sender. Team names are sent as plain text so they are
// never parsed as markup.
func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	payload := map[string]any{
		"chat_id":                  t.chatID,
		"text":                     title + "\n" + message,
		"disable_web_page_preview": true,
	}
	if err := postJSON(ctx, t.client, url, payload); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	return nil
}

// Name implements Sender.
func (t *TelegramSender) Name() string { return "telegram" }
