package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

// DefaultTelegramAPI is the Bot API base URL.
const DefaultTelegramAPI = "https://api.telegram.org"

// TelegramNotifier posts alerts to a chat through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

// NewTelegramNotifier creates a notifier for the bot token (from @BotFather)
// and target chat, group or channel ID.
func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  DefaultTelegramAPI,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// WithAPIBase points the notifier at a different Bot API host.
func (t *TelegramNotifier) WithAPIBase(base string) *TelegramNotifier {
	t.apiBase = strings.TrimRight(base, "/")
	return t
}

var levelIcon = map[AlertLevel]string{
	AlertInfo:     "ℹ️",
	AlertWarning:  "⚠️",
	AlertCritical: "🚨",
}

// formatMessage renders alert as MarkdownV2.
func formatMessage(alert Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s*\n\n%s", levelIcon[alert.Level], escapeMarkdown(alert.Title), escapeMarkdown(alert.Message))
	if alert.CycleID != "" {
		fmt.Fprintf(&b, "\n\n`%s`", escapeMarkdown(alert.CycleID))
	}
	return b.String()
}

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(map[string]any{
		"chat_id":    t.chatID,
		"text":       formatMessage(alert),
		"parse_mode": "MarkdownV2",
	})
	if err != nil {
		return fmt.Errorf("telegram: marshal: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	defer resp.Body.Close()

	// The Bot API answers {"ok":false,"description":...} on rejection.
	var out struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode != http.StatusOK || (decodeErr == nil && !out.OK) {
		return fmt.Errorf("telegram: status %d: %s", resp.StatusCode, out.Description)
	}

	log.Printf("[telegram] %s alert delivered: %s", alert.Level, alert.Title)
	return nil
}

// escapeMarkdown escapes the characters MarkdownV2 reserves.
func escapeMarkdown(s string) string {
	const reserved = "_*[]()~`>#+-=|{}.!\\"
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(reserved, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
