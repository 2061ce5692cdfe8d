package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/set-night/interviewcoach/internal/domain"
	"github.com/set-night/interviewcoach/internal/telegram"
)

func providerTitle(p domain.Provider) string {
	if p == domain.ProviderOpenRouter {
		return "OpenRouter"
	}
	return "Gemini"
}

func (h *Handler) handleProvider(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	if arg := commandArg(update.Message.Text); arg != "" {
		s, err := h.coach.SetProvider(ctx, arg)
		if err != nil {
			h.fail(ctx, b, chatID, "set provider", err)
			return
		}
		telegram.SendText(ctx, b, chatID, "✅ Провайдер: "+providerTitle(s.Provider))
		return
	}

	s, err := h.coach.Settings(ctx)
	if err != nil {
		h.fail(ctx, b, chatID, "load settings", err)
		return
	}
	text := fmt.Sprintf("🤖 Текущий провайдер: %s", providerTitle(s.Provider))
	if s.Model != "" {
		text += "\nМодель: " + s.Model
	}
	_, err = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: telegram.ProviderKeyboard(string(s.Provider)),
	})
	if err != nil {
		slog.Error("send provider menu", "chat_id", chatID, "error", err)
	}
}

func (h *Handler) handleProviderCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	if cq == nil {
		return
	}
	chatID := callbackChatID(update)
	name := strings.TrimPrefix(cq.Data, telegram.CallbackProvider)

	s, err := h.coach.SetProvider(ctx, name)
	if err != nil {
		b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: cq.ID,
			Text:            errorText(err),
			ShowAlert:       true,
		})
		return
	}
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: cq.ID,
		Text:            "Провайдер: " + providerTitle(s.Provider),
	})
	if chatID == 0 {
		return
	}
	_, err = b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      chatID,
		MessageID:   cq.Message.Message.ID,
		Text:        "🤖 Текущий провайдер: " + providerTitle(s.Provider),
		ReplyMarkup: telegram.ProviderKeyboard(string(s.Provider)),
	})
	if err != nil {
		slog.Warn("edit provider menu", "chat_id", chatID, "error", err)
	}
}

// handleKey stores a personal API key and removes the message carrying it.
func (h *Handler) handleKey(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	fields := strings.Fields(commandArg(update.Message.Text))
	if len(fields) != 2 {
		telegram.SendText(ctx, b, chatID, "Формат: /key <gemini|openrouter> <ключ>")
		return
	}

	if _, err := b.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    chatID,
		MessageID: update.Message.ID,
	}); err != nil {
		slog.Warn("delete key message", "chat_id", chatID, "error", err)
	}

	s, err := h.coach.SetAPIKey(ctx, fields[0], fields[1])
	if err != nil {
		h.fail(ctx, b, chatID, "set api key", err)
		return
	}
	p, _ := domain.ParseProvider(fields[0])
	masked := s.Redacted().GeminiAPIKey
	if p == domain.ProviderOpenRouter {
		masked = s.Redacted().OpenRouterAPIKey
	}
	telegram.SendText(ctx, b, chatID, fmt.Sprintf("🔑 Ключ %s сохранён: %s", providerTitle(p), masked))
}

func (h *Handler) handleCosts(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	if commandArg(update.Message.Text) == "reset" {
		if err := h.coach.ResetCosts(ctx); err != nil {
			h.fail(ctx, b, chatID, "reset costs", err)
			return
		}
		telegram.SendText(ctx, b, chatID, "🧹 Статистика расходов сброшена.")
		return
	}

	stats, err := h.coach.Costs(ctx)
	if err != nil {
		h.fail(ctx, b, chatID, "load costs", err)
		return
	}
	telegram.SendText(ctx, b, chatID, costsText(stats))
}

func costsText(s domain.CostStats) string {
	var sb strings.Builder
	sb.WriteString("💰 Расходы на AI\n\n")
	fmt.Fprintf(&sb, "Запросов: %d\n", s.RequestsCount)
	fmt.Fprintf(&sb, "Токенов: %d\n", s.TotalTokens)
	fmt.Fprintf(&sb, "Стоимость: $%s (≈ %s ₽)", s.TotalCostUSD.StringFixed(4), s.TotalCostRUB.StringFixed(2))
	if s.LastUpdated != nil {
		fmt.Fprintf(&sb, "\nОбновлено: %s", s.LastUpdated.Format("02.01.2006 15:04"))
	}
	sb.WriteString("\n\nСбросить: /costs reset")
	return sb.String()
}
