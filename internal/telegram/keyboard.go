package telegram

import (
	"fmt"

	"github.com/go-telegram/bot/models"
)

// Callback data used by the bot's inline buttons.
const (
	CallbackEndInterview = "end_interview"
	CallbackRetryTurn    = "retry_turn"
	CallbackFeedback     = "feedback_last"
	CallbackProvider     = "provider_"
	CallbackHistoryPage  = "history"
	CallbackNoop         = "noop"
)

func InlineButton(text, callbackData string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{Text: text, CallbackData: callbackData}
}

func InlineKeyboard(rows ...[]models.InlineKeyboardButton) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func ButtonRow(buttons ...models.InlineKeyboardButton) []models.InlineKeyboardButton {
	return buttons
}

// EndInterviewKeyboard is attached to a reply in which the interviewer
// offers to wrap up.
func EndInterviewKeyboard() *models.InlineKeyboardMarkup {
	return InlineKeyboard(ButtonRow(InlineButton("🏁 Завершить", CallbackEndInterview)))
}

// RetryKeyboard lets the user resend a turn that failed.
func RetryKeyboard() *models.InlineKeyboardMarkup {
	return InlineKeyboard(ButtonRow(
		InlineButton("🔄 Повторить", CallbackRetryTurn),
		InlineButton("🏁 Завершить", CallbackEndInterview),
	))
}

// FeedbackKeyboard is sent with the end-of-interview summary.
func FeedbackKeyboard() *models.InlineKeyboardMarkup {
	return InlineKeyboard(ButtonRow(InlineButton("📊 Получить разбор", CallbackFeedback)))
}

// ProviderKeyboard marks the active provider with a check.
func ProviderKeyboard(active string) *models.InlineKeyboardMarkup {
	label := func(name, title string) string {
		if name == active {
			return "✅ " + title
		}
		return title
	}
	return InlineKeyboard(ButtonRow(
		InlineButton(label("gemini", "Gemini"), CallbackProvider+"gemini"),
		InlineButton(label("openrouter", "OpenRouter"), CallbackProvider+"openrouter"),
	))
}

// PaginationRow creates a row with prev/next buttons around the page counter.
func PaginationRow(currentPage, totalPages int, callbackPrefix string) []models.InlineKeyboardButton {
	var row []models.InlineKeyboardButton
	if currentPage > 0 {
		row = append(row, InlineButton("⬅️", fmt.Sprintf("%s_%d", callbackPrefix, currentPage-1)))
	}
	row = append(row, InlineButton(fmt.Sprintf("%d/%d", currentPage+1, totalPages), CallbackNoop))
	if currentPage < totalPages-1 {
		row = append(row, InlineButton("➡️", fmt.Sprintf("%s_%d", callbackPrefix, currentPage+1)))
	}
	return row
}
