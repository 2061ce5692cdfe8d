package service

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/set-night/interviewcoach/internal/domain"
)

var pdfMagic = []byte("%PDF-")

// ExtractResumeText reads a PDF résumé and returns its plain text.
func ExtractResumeText(r io.Reader, limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", fmt.Errorf("read resume: %w", err)
	}
	if int64(len(data)) > limit {
		return "", domain.NewValidation(fmt.Sprintf("file is larger than %d MB", limit>>20))
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return "", domain.NewValidation("file is not a PDF document")
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", domain.NewError(domain.KindParse, domain.CodeParse, "Не удалось прочитать PDF", err)
	}
	content, err := reader.GetPlainText()
	if err != nil {
		return "", domain.NewError(domain.KindParse, domain.CodeParse, "Не удалось извлечь текст из PDF", err)
	}

	var b strings.Builder
	if _, err := io.Copy(&b, content); err != nil {
		return "", fmt.Errorf("copy pdf text: %w", err)
	}
	text := normalizeText(b.String())
	if text == "" {
		return "", domain.NewValidation("PDF contains no extractable text")
	}
	return text, nil
}
