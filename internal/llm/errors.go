package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/set-night/interviewcoach/internal/domain"
)

// apiError is a non-2xx answer or a provider-reported failure.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

// classify normalises any backend failure into the error taxonomy.
// Already classified errors pass through untouched.
func classify(b backend, err error) *domain.Error {
	if e, ok := domain.AsError(err); ok {
		return e
	}

	name := b.displayName()
	status := 0
	var ae *apiError
	if errors.As(err, &ae) {
		status = ae.Status
	}
	msg := err.Error()
	lower := strings.ToLower(msg)

	e := &domain.Error{Cause: err, Details: []string{msg}}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden ||
		strings.Contains(msg, "API key") || strings.Contains(lower, "api_key_invalid"):
		e.Kind, e.Code = domain.KindProviderAuth, domain.CodeInvalidAPIKey
		e.Message = "Неверный API ключ " + name
	case status == http.StatusTooManyRequests || strings.Contains(lower, "quota"):
		e.Kind, e.Code = domain.KindProviderQuota, domain.CodeQuotaExceeded
		e.Message = quotaMessage(b.provider(), name)
	case strings.Contains(lower, "safety"):
		e.Kind, e.Code = domain.KindProviderSafety, domain.CodeSafetyBlocked
		e.Message = "Запрос заблокирован системой безопасности " + name
	case isTimeout(err) || strings.Contains(lower, "timeout"):
		e.Kind, e.Code = domain.KindTimeout, domain.CodeTimeout
		e.Message = "Таймаут запроса к " + name + " API"
	case status == http.StatusBadRequest:
		e.Kind, e.Code = domain.KindProvider, domain.CodeBadRequest
		e.Message = "Некорректный запрос к " + name + " API"
	default:
		e.Kind, e.Code = domain.KindProvider, domain.ProviderErrorCode(b.provider())
		e.Message = "Ошибка при обращении к " + name + " API"
	}
	return e
}

func quotaMessage(p domain.Provider, name string) string {
	if p == domain.ProviderGemini {
		return "Превышена квота " + name + " API. Попробуйте позже или смените модель на Flash"
	}
	return "Превышена квота " + name + " API. Попробуйте позже"
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
