// Package notify reports retirements and session summaries to the
// interviewer over Telegram.
package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/interview-ranker/internal/models"
	"go.uber.org/zap"
)

// Sender is the part of tgbotapi.BotAPI the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Notifier struct {
	api    Sender
	chatID int64
	logger *zap.Logger
}

// NewTelegram connects to the Bot API with token.
func NewTelegram(token string, chatID int64, logger *zap.Logger) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return New(api, chatID, logger), nil
}

func New(api Sender, chatID int64, logger *zap.Logger) *Notifier {
	return &Notifier{
		api:    api,
		chatID: chatID,
		logger: logger,
	}
}

func (n *Notifier) SessionStarted(ctx context.Context, session models.SessionInfo) {
	n.sendMarkdown(fmt.Sprintf("*Call started* `%s`", escapeMarkdown(session.ID)), session.ID)
}

// RatingApplied only speaks up when the rating retired something.
func (n *Notifier) RatingApplied(ctx context.Context, event models.RatingEvent) {
	if len(event.Retired) == 0 {
		return
	}
	n.sendMarkdown(formatRetired(event), event.SessionID)
}

func (n *Notifier) SessionEnded(ctx context.Context, summary models.SessionSummary) {
	n.sendMarkdown(formatSummary(summary), summary.ID)
}

func formatRetired(event models.RatingEvent) string {
	var b strings.Builder
	b.WriteString("*Retired:*\n")
	for _, q := range event.Retired {
		fmt.Fprintf(&b, "\\#%d %s _%s_\n", q.ID, escapeMarkdown(q.Text), escapeMarkdown(fmt.Sprintf("(%.1f, %+.1f)", q.Score, q.Delta())))
	}
	return b.String()
}

func formatSummary(summary models.SessionSummary) string {
	var b strings.Builder
	b.WriteString("*Call summary*\n")
	fmt.Fprintf(&b, "Asked: %d, answered: %d\n\n", len(summary.Asked), len(summary.Answered))
	for i, q := range summary.Questions {
		line := fmt.Sprintf("%d. %s %.1f", i+1, q.Text, q.Score)
		if q.Status == models.StatusRetired {
			line += " (retired)"
		}
		b.WriteString(escapeMarkdown(line))
		b.WriteString("\n")
	}
	return b.String()
}

// escapeMarkdown escapes special characters for MarkdownV2
func escapeMarkdown(text string) string {
	specialChars := []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	escaped := text
	for _, char := range specialChars {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}

func (n *Notifier) sendMarkdown(text, sessionID string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	if _, err := n.api.Send(msg); err != nil {
		n.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", n.chatID),
			zap.String("session_id", sessionID))
	}
}
