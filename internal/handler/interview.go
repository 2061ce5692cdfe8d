package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/set-night/interviewcoach/internal/config"
	"github.com/set-night/interviewcoach/internal/domain"
	"github.com/set-night/interviewcoach/internal/interview"
	"github.com/set-night/interviewcoach/internal/telegram"
)

func (h *Handler) handleInterview(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	placeholder, _ := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   "🧠 Готовлю план интервью...",
	})

	cancel := telegram.StartTyping(ctx, b, chatID)
	c, err := h.coach.StartInterview(ctx)
	cancel()
	if err != nil {
		h.fail(ctx, b, chatID, "start interview", err)
		return
	}

	text := greetingText(c.Snapshot())
	if placeholder != nil {
		if err := telegram.EditLongMessage(ctx, b, chatID, placeholder.ID, text); err == nil {
			return
		}
	}
	if err := telegram.SendLongMessage(ctx, b, chatID, text, nil); err != nil {
		h.fail(ctx, b, chatID, "send greeting", err)
	}
}

// greetingText shows context warnings above the interviewer's first message.
func greetingText(s interview.Snapshot) string {
	var sb strings.Builder
	for _, w := range s.Context.Warnings {
		sb.WriteString("⚠️ " + w + "\n")
	}
	if sb.Len() > 0 {
		sb.WriteString("\n")
	}
	for _, m := range s.Messages {
		if m.IsGreeting {
			sb.WriteString(m.Text)
			break
		}
	}
	return sb.String()
}

// handleAnswer sends the user's message as the next interview turn.
func (h *Handler) handleAnswer(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID
	text := update.Message.Text

	if n := len([]rune(strings.TrimSpace(text))); n > config.MaxMessageLen {
		telegram.SendText(ctx, b, chatID, fmt.Sprintf("Сообщение слишком длинное: %d символов, максимум %d.", n, config.MaxMessageLen))
		return
	}

	c, err := h.coach.Session(ctx)
	if err != nil {
		h.fail(ctx, b, chatID, "load session", err)
		return
	}

	cancel := telegram.StartTyping(ctx, b, chatID)
	reply, err := c.Send(ctx, fmt.Sprintf("tg_%d", update.Message.ID), text)
	cancel()
	if err != nil {
		h.turnFailed(ctx, b, chatID, c, err)
		return
	}
	h.sendReply(ctx, b, chatID, reply)
}

func (h *Handler) handleRetryCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.answerCallback(ctx, b, update)
	chatID := callbackChatID(update)
	if chatID == 0 {
		return
	}

	c, err := h.coach.Session(ctx)
	if err != nil {
		h.fail(ctx, b, chatID, "load session", err)
		return
	}

	cancel := telegram.StartTyping(ctx, b, chatID)
	reply, err := c.Retry(ctx)
	cancel()
	if err != nil {
		h.turnFailed(ctx, b, chatID, c, err)
		return
	}
	h.sendReply(ctx, b, chatID, reply)
}

func (h *Handler) sendReply(ctx context.Context, b *bot.Bot, chatID int64, reply *domain.Message) {
	var markup models.ReplyMarkup
	if reply.IsCompletionSuggested {
		markup = telegram.EndInterviewKeyboard()
	}
	if err := telegram.SendLongMessage(ctx, b, chatID, reply.Text, markup); err != nil {
		h.fail(ctx, b, chatID, "send reply", err)
	}
}

// turnFailed offers a retry button when the provider call failed in a way
// that may succeed again. Rejected submissions get the usual error text.
func (h *Handler) turnFailed(ctx context.Context, b *bot.Bot, chatID int64, c *interview.Controller, err error) {
	e, ok := domain.AsError(err)
	if !ok || !e.CanRetry() {
		h.fail(ctx, b, chatID, "interview turn", err)
		return
	}
	turnErr := c.Snapshot().Error
	if turnErr == nil || !turnErr.CanRetry {
		h.fail(ctx, b, chatID, "interview turn", err)
		return
	}
	if e.Kind == domain.KindInternal {
		h.tgLogger.LogError(err, "interview turn")
	}
	_, sendErr := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        "⚠️ " + turnErr.Message,
		ReplyMarkup: telegram.RetryKeyboard(),
	})
	if sendErr != nil {
		h.fail(ctx, b, chatID, "interview turn", err)
	}
}

func (h *Handler) handleEnd(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.endInterview(ctx, b, update.Message.Chat.ID)
}

func (h *Handler) handleEndCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.answerCallback(ctx, b, update)
	if chatID := callbackChatID(update); chatID != 0 {
		h.endInterview(ctx, b, chatID)
	}
}

func (h *Handler) endInterview(ctx context.Context, b *bot.Bot, chatID int64) {
	t, err := h.coach.EndInterview(ctx)
	if err != nil {
		h.fail(ctx, b, chatID, "end interview", err)
		return
	}
	h.tgLogger.LogInterview(domain.OwnerFrom(ctx), t)

	text := fmt.Sprintf("🏁 Интервью завершено\n\nСообщений: %d\nВопросов задано: %d\nЗапись #%d сохранена в /history.",
		t.MessagesCount, t.QuestionsAsked, t.ID)
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: telegram.FeedbackKeyboard(),
	}); err != nil {
		h.fail(ctx, b, chatID, "send summary", err)
	}
}
