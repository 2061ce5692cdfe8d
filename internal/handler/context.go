package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/set-night/interviewcoach/internal/config"
	"github.com/set-night/interviewcoach/internal/domain"
	"github.com/set-night/interviewcoach/internal/repository"
	"github.com/set-night/interviewcoach/internal/telegram"
)

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func (h *Handler) handleJob(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	arg := commandArg(update.Message.Text)

	switch {
	case arg == "":
		telegram.SendText(ctx, b, chatID, "Пришлите описание вакансии или ссылку на неё:\n/job <текст или ссылка>")
	case isURL(arg) && !strings.ContainsAny(arg, " \n"):
		cancel := telegram.StartTyping(ctx, b, chatID)
		job, err := h.coach.ImportJobURL(ctx, arg)
		cancel()
		if err != nil {
			h.fail(ctx, b, chatID, "import job", err)
			return
		}
		title := job.Position
		if title == "" {
			title = "вакансия"
		}
		telegram.SendText(ctx, b, chatID, fmt.Sprintf("✅ Вакансия загружена: %s (%d символов)", title, len([]rune(job.Text))))
	default:
		if err := h.coach.SaveJob(ctx, repository.JobData{Text: arg}); err != nil {
			h.fail(ctx, b, chatID, "save job", err)
			return
		}
		telegram.SendText(ctx, b, chatID, fmt.Sprintf("✅ Описание вакансии сохранено (%d символов)", len([]rune(arg))))
	}
}

func (h *Handler) handleResume(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	arg := commandArg(update.Message.Text)
	if arg == "" {
		telegram.SendText(ctx, b, chatID, "Пришлите текст резюме командой /resume <текст> или PDF файлом.")
		return
	}
	if err := h.coach.SaveResume(ctx, repository.ResumeData{Text: arg}); err != nil {
		h.fail(ctx, b, chatID, "save resume", err)
		return
	}
	telegram.SendText(ctx, b, chatID, fmt.Sprintf("✅ Резюме сохранено (%d символов)", len([]rune(arg))))
}

// handleDocument imports a PDF résumé sent as a file.
func (h *Handler) handleDocument(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	chatID := msg.Chat.ID
	doc := msg.Document

	if doc.MimeType != "application/pdf" && !strings.HasSuffix(strings.ToLower(doc.FileName), ".pdf") {
		telegram.SendText(ctx, b, chatID, "Поддерживаются только PDF файлы.")
		return
	}

	cancel := telegram.StartTyping(ctx, b, chatID)
	defer cancel()

	data, err := telegram.DownloadFile(ctx, b, h.httpClient, doc.FileID, config.MaxUploadSize)
	if errors.Is(err, telegram.ErrFileTooLarge) {
		telegram.SendText(ctx, b, chatID, "Файл слишком большой. Максимум 10 МБ.")
		return
	}
	if err != nil {
		slog.Error("download resume", "chat_id", chatID, "error", err)
		h.fail(ctx, b, chatID, "download resume", err)
		return
	}

	resume, err := h.coach.ImportResumePDF(ctx, bytes.NewReader(data), doc.FileName)
	if err != nil {
		h.fail(ctx, b, chatID, "import resume", err)
		return
	}
	telegram.SendText(ctx, b, chatID, fmt.Sprintf("✅ Резюме из %s сохранено (%d символов)", doc.FileName, len([]rune(resume.Text))))
}

func (h *Handler) handleContext(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	dc, v, err := h.coach.Context(ctx)
	if err != nil {
		h.fail(ctx, b, chatID, "load context", err)
		return
	}
	telegram.SendText(ctx, b, chatID, contextSummary(dc, v))
}

func contextSummary(dc domain.Context, v domain.ContextValidation) string {
	var sb strings.Builder
	sb.WriteString("📋 Контекст интервью\n\n")
	if v.HasJob {
		fmt.Fprintf(&sb, "✅ Вакансия: %d символов", len([]rune(dc.JobText)))
		if pos := dc.PositionName(); pos != "" {
			fmt.Fprintf(&sb, " (%s)", pos)
		}
		sb.WriteString("\n")
	} else {
		sb.WriteString("❌ Вакансия не загружена\n")
	}
	if v.HasResume {
		fmt.Fprintf(&sb, "✅ Резюме: %d символов\n", len([]rune(dc.ResumeText)))
	} else {
		sb.WriteString("❌ Резюме не загружено\n")
	}
	for _, w := range v.Warnings {
		sb.WriteString("\n⚠️ " + w)
	}
	return sb.String()
}
