package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram/bot"

	"github.com/set-night/interviewcoach/internal/config"
	"github.com/set-night/interviewcoach/internal/domain"
)

// TelegramLogger mirrors notable events into topics of an operator chat.
// It is silent when no log chat is configured.
type TelegramLogger struct {
	bot *bot.Bot
	cfg *config.Config
}

func NewTelegramLogger(b *bot.Bot, cfg *config.Config) *TelegramLogger {
	return &TelegramLogger{bot: b, cfg: cfg}
}

type LogType string

const (
	LogTypeError     LogType = "error"
	LogTypeInterview LogType = "interview"
)

func (l *TelegramLogger) Log(logType LogType, message string) {
	if l == nil || l.cfg.LogTelegramChatID == 0 {
		return
	}
	topicID := l.topicID(logType)
	if topicID == 0 {
		return
	}

	if len([]rune(message)) > MaxMessageLen {
		message = string([]rune(message)[:MaxMessageLen-20]) + "\n\n... (truncated)"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := l.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          l.cfg.LogTelegramChatID,
		Text:            message,
		ParseMode:       "Markdown",
		MessageThreadID: topicID,
	})
	if err != nil {
		slog.Error("failed to send telegram log", "type", logType, "error", err)
	}
}

func (l *TelegramLogger) LogError(err error, where string) {
	text := strings.ReplaceAll(err.Error(), "`", "'")
	msg := fmt.Sprintf("❌ *Error*\n\n*Context:* %s\n*Error:* `%s`\n*Time:* %s",
		EscapeMarkdown(where), text, time.Now().Format("2006-01-02 15:04:05"))
	l.Log(LogTypeError, msg)
}

func (l *TelegramLogger) LogInterview(owner string, t domain.Transcript) {
	msg := fmt.Sprintf("🎤 *Interview finished*\n\n*Owner:* `%s`\n*Transcript:* %d\n*Messages:* %d\n*Reason:* %s\n*Plan:* %s",
		owner, t.ID, t.MessagesCount, t.CompletionReason, EscapeMarkdown(planSummary(t)))
	l.Log(LogTypeInterview, msg)
}

func planSummary(t domain.Transcript) string {
	if t.InterviewPlan != nil && t.InterviewPlan.Summary != "" {
		return t.InterviewPlan.Summary
	}
	return "-"
}

func (l *TelegramLogger) topicID(logType LogType) int {
	switch logType {
	case LogTypeError:
		return l.cfg.LogTopicError
	case LogTypeInterview:
		return l.cfg.LogTopicInterview
	default:
		return 0
	}
}
