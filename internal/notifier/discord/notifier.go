// Package discord posts alerts to a Discord webhook.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/aleister1102/hostpulse/internal/common/errors"
	"github.com/aleister1102/hostpulse/internal/models"
	"github.com/rs/zerolog"
)

const (
	// Username shown as the webhook author
	Username = "hostpulse"

	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 4096
)

// Embed colours per alert kind
const (
	ColorLowStorage = 0xF0AD4E
	ColorHighCPU    = 0xD9534F
	ColorUpdate     = 0x5BC0DE
	ColorDefault    = 0x2B2D31
)

// Notifier sends alerts to one webhook
type Notifier struct {
	webhookURL string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewNotifier creates a webhook sink. httpClient may be nil.
func NewNotifier(webhookURL string, httpClient *http.Client, logger zerolog.Logger) (*Notifier, error) {
	if _, err := url.ParseRequestURI(webhookURL); err != nil {
		return nil, errors.NewValidationError("discord_webhook_url", webhookURL, "invalid webhook URL")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger.With().Str("module", "DiscordNotifier").Logger(),
	}, nil
}

// BuildPayload renders an alert as a webhook message
func BuildPayload(alert models.Alert) (MessagePayload, error) {
	embed, err := NewEmbedBuilder().
		WithTitle(alert.Title).
		WithDescription(alert.Body).
		WithColor(colorFor(alert.Kind)).
		WithTimestamp(alert.At).
		WithFooter(string(alert.Kind)).
		Build()
	if err != nil {
		return MessagePayload{}, err
	}
	return MessagePayload{Username: Username, Embeds: []Embed{embed}}, nil
}

func colorFor(kind models.AlertKind) int {
	switch kind {
	case models.AlertLowStorage:
		return ColorLowStorage
	case models.AlertHighCPU:
		return ColorHighCPU
	case models.AlertUpdate:
		return ColorUpdate
	default:
		return ColorDefault
	}
}

// Notify posts the alert as a JSON embed
func (n *Notifier) Notify(ctx context.Context, alert models.Alert) error {
	payload, err := BuildPayload(alert)
	if err != nil {
		return errors.WrapError(err, "failed to build discord payload")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.WrapError(err, "failed to marshal discord payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return errors.WrapError(err, "failed to create discord request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return errors.WrapError(err, "failed to send discord notification")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		return fmt.Errorf("discord notification failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	n.logger.Debug().Int("status_code", resp.StatusCode).Str("alert_key", alert.Key).Msg("Discord notification sent")
	return nil
}
