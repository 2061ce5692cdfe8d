package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/set-night/interviewcoach/internal/service"
	"github.com/set-night/interviewcoach/internal/telegram"
)

const historyPageSize = 5

func (h *Handler) handleHistory(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	arg := commandArg(update.Message.Text)
	if arg == "clear" {
		if err := h.coach.ClearHistory(ctx); err != nil {
			h.fail(ctx, b, chatID, "clear history", err)
			return
		}
		telegram.SendText(ctx, b, chatID, "🗑 История интервью очищена.")
		return
	}

	entries, stats, err := h.coach.History(ctx, service.HistoryQuery{Search: arg, Sort: service.SortByDate, Desc: true})
	if err != nil {
		h.fail(ctx, b, chatID, "load history", err)
		return
	}
	if len(entries) == 0 {
		telegram.SendText(ctx, b, chatID, "Пока нет завершённых интервью. Начните с /interview.")
		return
	}

	text, markup := historyPage(entries, stats, 0)
	params := &bot.SendMessageParams{ChatID: chatID, Text: text}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	if _, err := b.SendMessage(ctx, params); err != nil {
		slog.Error("send history", "chat_id", chatID, "error", err)
	}
}

func (h *Handler) handleHistoryPage(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.answerCallback(ctx, b, update)
	chatID := callbackChatID(update)
	if chatID == 0 {
		return
	}
	page, err := strconv.Atoi(strings.TrimPrefix(update.CallbackQuery.Data, telegram.CallbackHistoryPage+"_"))
	if err != nil {
		return
	}

	entries, stats, err := h.coach.History(ctx, service.HistoryQuery{Sort: service.SortByDate, Desc: true})
	if err != nil {
		h.fail(ctx, b, chatID, "load history", err)
		return
	}
	text, markup := historyPage(entries, stats, page)
	params := &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: update.CallbackQuery.Message.Message.ID,
		Text:      text,
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	if _, err := b.EditMessageText(ctx, params); err != nil {
		slog.Warn("edit history page", "chat_id", chatID, "error", err)
	}
}

// historyPage renders one page of the list. The keyboard is nil when
// everything fits on a single page.
func historyPage(entries []service.HistoryEntry, stats service.HistoryStats, page int) (string, *models.InlineKeyboardMarkup) {
	pages := (len(entries) + historyPageSize - 1) / historyPageSize
	if pages == 0 {
		pages = 1
	}
	page = max(0, min(page, pages-1))

	var sb strings.Builder
	fmt.Fprintf(&sb, "📚 Интервью: %d, сообщений: %d, в среднем %.1f\n", stats.Total, stats.TotalMessages, stats.AvgMessages)

	start := page * historyPageSize
	end := min(start+historyPageSize, len(entries))
	for _, e := range entries[start:end] {
		fmt.Fprintf(&sb, "\n#%d · %s · %s\n", e.ID, e.Date, e.Status)
		fmt.Fprintf(&sb, "Сообщений: %d, вопросов: %d", e.MessagesCount, e.QuestionsAsked)
		if e.HasFeedback {
			sb.WriteString(" · есть разбор")
		}
		sb.WriteString("\n")
		if e.Preview != "" {
			sb.WriteString("«" + e.Preview + "»\n")
		}
	}

	if pages == 1 {
		return sb.String(), nil
	}
	return sb.String(), telegram.InlineKeyboard(telegram.PaginationRow(page, pages, telegram.CallbackHistoryPage))
}
