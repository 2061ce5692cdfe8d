package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/interviewcoach/internal/domain"
)

const rateLimitedText = "⏳ Слишком много запросов. Подождите немного."

type window struct {
	start time.Time
	count int
}

// Limiter is a fixed-window request counter keyed by owner.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	period  time.Duration
	now     func() time.Time
	windows map[string]*window
}

// NewLimiter allows limit requests per period. A non-positive limit disables it.
func NewLimiter(limit int, period time.Duration) *Limiter {
	return &Limiter{
		limit:   limit,
		period:  period,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

// Allow counts one request for key and reports whether it is within the limit.
func (l *Limiter) Allow(key string) bool {
	if l == nil || l.limit <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.period {
		w = &window{start: now}
		l.windows[key] = w
	}
	w.count++
	return w.count <= l.limit
}

// Cleanup drops expired windows and returns how many were removed.
func (l *Limiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for k, w := range l.windows {
		if now.Sub(w.start) >= l.period {
			delete(l.windows, k)
			removed++
		}
	}
	return removed
}

// RateLimit returns middleware that enforces per-minute rate limits.
func RateLimit(l *Limiter) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			// Only rate limit messages (not callbacks or other updates)
			if update.Message == nil {
				next(ctx, b, update)
				return
			}

			id := update.Message.Chat.ID
			if !l.Allow("tg:" + strconv.FormatInt(id, 10)) {
				slog.Debug("rate limited", "chat_id", id, "limit", l.limit)
				b.SendMessage(ctx, &bot.SendMessageParams{
					ChatID: id,
					Text:   rateLimitedText,
				})
				return
			}

			next(ctx, b, update)
		}
	}
}

// HTTPRateLimit limits requests per client id. Run it after ClientID.
func HTTPRateLimit(l *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || isHealth(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			owner := domain.OwnerFrom(r.Context())
			if !l.Allow(owner) {
				slog.Debug("rate limited", "client_id", owner, "limit", l.limit)
				w.Header().Set("Retry-After", strconv.Itoa(int(l.period.Seconds())))
				writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", rateLimitedText)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isHealth(path string) bool {
	return path == "/health" || path == "/api/health"
}
