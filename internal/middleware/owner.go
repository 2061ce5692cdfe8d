package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/interviewcoach/internal/domain"
)

// ClientIDHeader identifies one browser tab or API consumer.
const ClientIDHeader = "X-Client-ID"

const maxClientIDLen = 128

// ChatOwner is the storage partition of a Telegram chat.
func ChatOwner(chatID int64) string {
	return "tg:" + strconv.FormatInt(chatID, 10)
}

// Owner returns middleware that scopes storage to the chat of the update.
func Owner() bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if id := chatID(update); id != 0 {
				ctx = domain.WithOwner(ctx, ChatOwner(id))
			}
			next(ctx, b, update)
		}
	}
}

// ClientID scopes storage to the X-Client-ID header, or the default owner.
func ClientID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := strings.TrimSpace(r.Header.Get(ClientIDHeader))
		if owner == "" || len(owner) > maxClientIDLen || strings.HasPrefix(owner, "tg:") {
			owner = domain.DefaultOwner
		}
		next.ServeHTTP(w, r.WithContext(domain.WithOwner(r.Context(), owner)))
	})
}

// CORS allows the configured frontend origin. Preflight requests get an
// empty 200.
func CORS(origin string) func(http.Handler) http.Handler {
	if origin == "" {
		origin = "*"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+ClientIDHeader)
			if origin != "*" {
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Add("Vary", "Origin")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Chain applies middlewares so that the first one is outermost.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func chatID(update *models.Update) int64 {
	switch {
	case update.Message != nil:
		return update.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.Message.Message != nil:
		return update.CallbackQuery.Message.Message.Chat.ID
	}
	return 0
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":   false,
		"error":     message,
		"errorCode": code,
	})
}
