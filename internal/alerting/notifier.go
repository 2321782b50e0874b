package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"torn-alert-watcher/internal/catalog"
)

// Notification is one rendered alert ready for delivery.
type Notification struct {
	Title    string
	Emoji    string
	Severity catalog.Severity
	Lines    []string
}

// Notifier delivers notifications. Send failures are logged by callers and
// never retried synchronously.
type Notifier interface {
	Notify(ctx context.Context, subjectID string, note Notification) error
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify posts the rendered message via sendMessage.
func (n *TelegramNotifier) Notify(ctx context.Context, subjectID string, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(subjectID, note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram responded %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().
		Str("subject", subjectID).
		Str("title", note.Title).
		Str("severity", note.Severity.String()).
		Msg("alert sent")
	return nil
}

func renderMessage(subjectID string, note Notification) string {
	builder := strings.Builder{}
	if note.Emoji != "" {
		builder.WriteString(note.Emoji)
		builder.WriteString(" ")
	}
	builder.WriteString(note.Title)
	if subjectID != "" {
		builder.WriteString(fmt.Sprintf(" [%s]", subjectID))
	}
	if note.Severity > catalog.SeverityInfo {
		builder.WriteString(fmt.Sprintf(" (%s)", note.Severity))
	}
	for _, line := range note.Lines {
		builder.WriteString("\n")
		builder.WriteString(line)
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
