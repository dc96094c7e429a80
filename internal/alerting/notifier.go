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

	"drift-health-alerts/internal/engine"
	"drift-health-alerts/internal/summary"
)

// maxRenderedReasons caps the reason list handed to rendering.
const maxRenderedReasons = 3

// Notification 封装一次告警的完整上下文。
type Notification struct {
	BusinessID     string
	BusinessName   string
	Cycle          time.Time
	PreviousStatus engine.Status
	Status         engine.Status
	Direction      engine.Direction
	MRIScore       int
	Reasons        []engine.Reason
	Summary        summary.Summary
	Channels       []string
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器。
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

// Notify 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
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
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram 返回 ok=false")
		}
	}

	n.logger.Info().
		Str("business_id", note.BusinessID).
		Str("status", string(note.Status.Normalize())).
		Str("channels", strings.Join(note.Channels, ",")).
		Msg("告警已发送 (Telegram)")
	return nil
}

// renderMessage builds the plain-text alert body. Status renders
// normalized (three-state) and at most three reasons are shown.
func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[Business Health Alert]\n")
	if note.BusinessName != "" {
		builder.WriteString(fmt.Sprintf("Business: %s\n", note.BusinessName))
	}
	builder.WriteString(fmt.Sprintf("Cycle: %s UTC\n", note.Cycle.UTC().Format(time.RFC3339)))

	status := note.Status.Normalize()
	if prev := note.PreviousStatus.Normalize(); prev != "" && prev != status {
		builder.WriteString(fmt.Sprintf("Status: %s -> %s\n", prev, status))
	} else {
		builder.WriteString(fmt.Sprintf("Status: %s\n", status))
	}

	builder.WriteString(fmt.Sprintf("Health score: %d/100 (%s)\n", note.MRIScore, note.Direction))
	builder.WriteString(note.Summary.Headline + "\n")

	reasons := note.Reasons
	if len(reasons) > maxRenderedReasons {
		reasons = reasons[:maxRenderedReasons]
	}
	for _, reason := range reasons {
		builder.WriteString(fmt.Sprintf("- %s: %s\n", reason.Code, reason.Detail))
	}

	if note.Summary.Impact.EstMonthlyCents != nil {
		builder.WriteString(fmt.Sprintf("Est. monthly impact: %s\n", summary.FormatCents(*note.Summary.Impact.EstMonthlyCents)))
	}
	for _, step := range note.Summary.NextSteps {
		builder.WriteString(fmt.Sprintf("Next: %s\n", step))
	}
	if note.Summary.DetailsPath != "" {
		builder.WriteString(fmt.Sprintf("Details: %s\n", note.Summary.DetailsPath))
	}
	if len(note.Channels) > 0 {
		builder.WriteString(fmt.Sprintf("Channels: %s\n", strings.Join(note.Channels, ",")))
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
