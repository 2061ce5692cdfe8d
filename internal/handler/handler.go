package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode"

	"github.com/go-telegram/bot"

	"github.com/set-night/interviewcoach/internal/config"
	"github.com/set-night/interviewcoach/internal/domain"
	"github.com/set-night/interviewcoach/internal/service"
	"github.com/set-night/interviewcoach/internal/telegram"
)

// Handler holds all dependencies needed by command and callback handlers.
type Handler struct {
	bot        *bot.Bot
	cfg        *config.Config
	coach      *service.CoachService
	tgLogger   *telegram.TelegramLogger
	httpClient *http.Client
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Bot        *bot.Bot
	Cfg        *config.Config
	Coach      *service.CoachService
	TgLogger   *telegram.TelegramLogger
	HTTPClient *http.Client
}

func New(deps Deps) *Handler {
	return &Handler{
		bot:        deps.Bot,
		cfg:        deps.Cfg,
		coach:      deps.Coach,
		tgLogger:   deps.TgLogger,
		httpClient: deps.HTTPClient,
	}
}

// commandArg returns the text after the command word, e.g. the URL in
// "/job https://...".
func commandArg(text string) string {
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		return strings.TrimSpace(text[i:])
	}
	return ""
}

func isCommand(text string) bool {
	return strings.HasPrefix(text, "/")
}

// errorText turns a use-case failure into a message for the chat.
func errorText(err error) string {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return "Нет активного интервью. Начните его командой /interview."
	case errors.Is(err, domain.ErrSessionCompleted):
		return "Интервью уже завершено. Новое можно начать командой /interview."
	case errors.Is(err, domain.ErrRequestInFlight):
		return "⏳ Дождитесь ответа на предыдущий запрос."
	case errors.Is(err, domain.ErrSessionFaulted):
		return "⚠️ Последний ответ не получен. Нажмите «Повторить» или начните заново: /interview."
	case errors.Is(err, domain.ErrTranscriptNotFound):
		return "Пока нет завершённых интервью."
	case errors.Is(err, domain.ErrEmptyInput):
		return "Сообщение пустое."
	case errors.Is(err, domain.ErrInvalidTransition):
		return "Сейчас это действие недоступно."
	}
	if e, ok := domain.AsError(err); ok && e.Kind != domain.KindInternal {
		return "❌ " + e.Message
	}
	return "❌ Произошла ошибка. Попробуйте позже."
}

// fail reports err to the chat and mirrors unexpected failures to the
// operator log.
func (h *Handler) fail(ctx context.Context, b *bot.Bot, chatID int64, where string, err error) {
	if domain.KindOf(err) == domain.KindInternal && !isExpected(err) {
		h.tgLogger.LogError(err, where)
	}
	telegram.SendText(ctx, b, chatID, errorText(err))
}

func isExpected(err error) bool {
	for _, target := range []error{
		domain.ErrSessionNotFound,
		domain.ErrSessionCompleted,
		domain.ErrRequestInFlight,
		domain.ErrSessionFaulted,
		domain.ErrTranscriptNotFound,
		domain.ErrEmptyInput,
		domain.ErrInvalidTransition,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
