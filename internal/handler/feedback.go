package handler

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/set-night/interviewcoach/internal/domain"
	"github.com/set-night/interviewcoach/internal/telegram"
)

func (h *Handler) handleFeedback(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.sendFeedback(ctx, b, update.Message.Chat.ID)
}

func (h *Handler) handleFeedbackCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.answerCallback(ctx, b, update)
	if chatID := callbackChatID(update); chatID != 0 {
		h.sendFeedback(ctx, b, chatID)
	}
}

// sendFeedback analyses the latest finished interview. Repeated requests
// reuse the stored analysis.
func (h *Handler) sendFeedback(ctx context.Context, b *bot.Bot, chatID int64) {
	cancel := telegram.StartTyping(ctx, b, chatID)
	fb, err := h.coach.LatestFeedback(ctx)
	cancel()
	if err != nil {
		h.fail(ctx, b, chatID, "feedback", err)
		return
	}
	if err := telegram.SendLongMessage(ctx, b, chatID, "📊 *Разбор интервью*\n\n"+fb.Text, nil); err != nil {
		h.fail(ctx, b, chatID, "send feedback", err)
	}
}

// handleCover writes a cover letter from the stored job and résumé.
func (h *Handler) handleCover(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	cancel := telegram.StartTyping(ctx, b, chatID)
	reply, err := h.coach.CoverLetter(ctx, domain.Context{}, nil)
	cancel()
	if err != nil {
		h.fail(ctx, b, chatID, "cover letter", err)
		return
	}
	if err := telegram.SendLongMessage(ctx, b, chatID, reply.Message, nil); err != nil {
		h.fail(ctx, b, chatID, "send cover letter", err)
	}
}
