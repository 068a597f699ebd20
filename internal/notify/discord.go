package notify

import (
	"context"
	"fmt"
	"net/http"
)

// discordColor is the embed accent colour.
const discordColor = 0x2E8B57

// DiscordSender posts alerts to a Discord webhook as a single embed.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for webhookURL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: sendTimeout},
	}
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

// Send implements Sender.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	payload := map[string][]discordEmbed{
		"embeds": {{Title: title, Description: message, Color: discordColor}},
	}
	if err := postJSON(ctx, d.client, d.webhookURL, payload); err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}

// Name implements Sender.
func (d *DiscordSender) Name() string { return "discord" }
