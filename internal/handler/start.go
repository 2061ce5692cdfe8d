package handler

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/set-night/interviewcoach/internal/telegram"
)

const helpText = `👋 Привет! Я помогу подготовиться к собеседованию.

*Подготовка*
/job <текст или ссылка> - описание вакансии
/resume <текст> - резюме (или пришлите PDF файлом)
/context - что уже сохранено

*Интервью*
/interview - начать новое интервью
Просто отвечайте на вопросы сообщениями.
/end - завершить интервью
/feedback - разбор последнего интервью
/cover - сопроводительное письмо

*Настройки*
/provider - выбрать AI провайдера
/key <провайдер> <ключ> - свой API ключ
/history - прошлые интервью
/costs - расходы на запросы`

func (h *Handler) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	if err := telegram.SendLongMessage(ctx, b, update.Message.Chat.ID, helpText, nil); err != nil {
		h.fail(ctx, b, update.Message.Chat.ID, "start", err)
	}
}
