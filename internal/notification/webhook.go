package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// WebhookNotifier POSTs alerts as JSON to an HTTP endpoint (Slack-style
// relays, Discord bridges, custom collectors).
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// webhookPayload is the JSON body of every webhook call.
type webhookPayload struct {
	Source     string `json:"source"`
	Level      string `json:"level"`
	Title      string `json:"title"`
	Message    string `json:"message"`
	Instrument string `json:"instrument,omitempty"`
	CycleID    string `json:"cycle_id,omitempty"`
	TS         string `json:"ts"`
}

// NewWebhookNotifier creates a notifier posting to url.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{url: url, client: &http.Client{Timeout: 10 * time.Second}}
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	at := alert.At
	if at.IsZero() {
		at = time.Now()
	}
	body, err := json.Marshal(webhookPayload{
		Source:     "tradeloop",
		Level:      string(alert.Level),
		Title:      alert.Title,
		Message:    alert.Message,
		Instrument: alert.Instrument,
		CycleID:    alert.CycleID,
		TS:         at.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("webhook: unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	log.Printf("[webhook] %s alert delivered: %s", alert.Level, alert.Title)
	return nil
}
