package handler

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/set-night/interviewcoach/internal/telegram"
)

// Register registers all command and callback handlers on the bot instance.
func (h *Handler) Register() {
	// Commands
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, h.handleStart)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypePrefix, h.handleStart)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/job", bot.MatchTypePrefix, h.handleJob)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/resume", bot.MatchTypePrefix, h.handleResume)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/context", bot.MatchTypePrefix, h.handleContext)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/interview", bot.MatchTypePrefix, h.handleInterview)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/end", bot.MatchTypePrefix, h.handleEnd)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/feedback", bot.MatchTypePrefix, h.handleFeedback)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/cover", bot.MatchTypePrefix, h.handleCover)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/provider", bot.MatchTypePrefix, h.handleProvider)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/key", bot.MatchTypePrefix, h.handleKey)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/history", bot.MatchTypePrefix, h.handleHistory)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/costs", bot.MatchTypePrefix, h.handleCosts)

	// Interview callbacks
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, telegram.CallbackEndInterview, bot.MatchTypeExact, h.handleEndCallback)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, telegram.CallbackRetryTurn, bot.MatchTypeExact, h.handleRetryCallback)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, telegram.CallbackFeedback, bot.MatchTypeExact, h.handleFeedbackCallback)

	// Settings and history callbacks
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, telegram.CallbackProvider, bot.MatchTypePrefix, h.handleProviderCallback)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, telegram.CallbackHistoryPage+"_", bot.MatchTypePrefix, h.handleHistoryPage)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, telegram.CallbackNoop, bot.MatchTypeExact, h.answerCallback)

	// Everything else that is not a command is an interview answer or a résumé file.
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "", bot.MatchTypePrefix, h.HandleMessage)
}

// HandleMessage routes plain text and documents. It also serves as the
// bot's default handler, since document messages carry no text.
func (h *Handler) HandleMessage(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	if msg.Document != nil {
		h.handleDocument(ctx, b, update)
		return
	}
	if msg.Text == "" || isCommand(msg.Text) {
		return
	}
	if msg.Chat.Type != "private" {
		return
	}
	h.handleAnswer(ctx, b, update)
}

func (h *Handler) answerCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: update.CallbackQuery.ID,
	})
}

// callbackChatID is the chat of the message a button was attached to.
func callbackChatID(update *models.Update) int64 {
	cq := update.CallbackQuery
	if cq == nil || cq.Message.Message == nil {
		return 0
	}
	return cq.Message.Message.Chat.ID
}
