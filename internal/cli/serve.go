package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/spf13/cobra"

	"github.com/set-night/interviewcoach/internal/config"
	"github.com/set-night/interviewcoach/internal/handler"
	"github.com/set-night/interviewcoach/internal/httpapi"
	"github.com/set-night/interviewcoach/internal/middleware"
	"github.com/set-night/interviewcoach/internal/service"
	"github.com/set-night/interviewcoach/internal/telegram"
)

const limiterCleanupInterval = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, plus the Telegram bot when BOT_TOKEN is set",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	limiter := middleware.NewLimiter(cfg.RateLimitPerMinute, time.Minute)

	go a.sessions.Run(ctx, config.SessionSweepInterval)

	// Drop expired rate limit windows
	go func() {
		ticker := time.NewTicker(limiterCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := limiter.Cleanup(); n > 0 {
					slog.Debug("rate limit windows removed", "count", n)
				}
			}
		}
	}()

	api := httpapi.NewServer(a.coach, httpapi.Options{
		Production:  cfg.IsProduction(),
		FrontendURL: cfg.FrontendURL,
		Limiter:     limiter,
		Version:     version,
	})
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting http server", "port", cfg.Port, "env", cfg.AppEnv, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if cfg.BotEnabled() {
		b, err := newBot(ctx, cfg, a.coach, limiter)
		if err != nil {
			return err
		}
		go b.Start(ctx)
	} else {
		slog.Info("BOT_TOKEN not set, telegram bot disabled")
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	slog.Info("server stopped gracefully")
	return nil
}

// newBot creates the Telegram front-end and registers its handlers.
func newBot(ctx context.Context, cfg *config.Config, coach *service.CoachService, limiter *middleware.Limiter) (*bot.Bot, error) {
	// Handler pointer for use in default handler closure
	var h *handler.Handler

	opts := []bot.Option{
		bot.WithMiddlewares(
			middleware.Recover(),
			middleware.Logging(),
			middleware.RateLimit(limiter),
			middleware.Owner(),
		),
		bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if h == nil {
				return
			}
			h.HandleMessage(ctx, b, update)
		}),
	}

	b, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	me, err := b.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("get bot info: %w", err)
	}
	slog.Info("bot info retrieved", "id", me.ID, "username", me.Username)

	if cfg.DropPendingUpdates {
		if _, err := b.DeleteWebhook(ctx, &bot.DeleteWebhookParams{DropPendingUpdates: true}); err != nil {
			slog.Warn("failed to drop pending updates", "error", err)
		}
	}

	h = handler.New(handler.Deps{
		Bot:      b,
		Cfg:      cfg,
		Coach:    coach,
		TgLogger: telegram.NewTelegramLogger(b, cfg),
	})
	h.Register()
	return b, nil
}
