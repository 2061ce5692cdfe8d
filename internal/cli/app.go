package cli

import (
	"context"
	"fmt"
	"io/fs"

	interviewcoach "github.com/set-night/interviewcoach"
	"github.com/set-night/interviewcoach/internal/chat"
	"github.com/set-night/interviewcoach/internal/config"
	"github.com/set-night/interviewcoach/internal/interview"
	"github.com/set-night/interviewcoach/internal/llm"
	"github.com/set-night/interviewcoach/internal/prompt"
	"github.com/set-night/interviewcoach/internal/repository"
	"github.com/set-night/interviewcoach/internal/service"
)

// app is the wired service graph shared by the commands.
type app struct {
	repo     *repository.Repository
	sessions *interview.Manager
	coach    *service.CoachService
}

// openApp opens storage and builds every service. Postgres is migrated
// before use.
func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if cfg.StoreDriver == "postgres" {
		if _, err := migrateUp(cfg.DatabaseURL); err != nil {
			return nil, err
		}
	}
	store, err := repository.Open(ctx, cfg.StoreDriver, cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	repo := repository.New(store)

	templates, err := prompt.Load(cfg.PromptsFile)
	if err != nil {
		repo.Close()
		return nil, err
	}
	prompts := prompt.NewBuilder(templates)

	referer := cfg.FrontendURL
	if referer == "*" {
		referer = ""
	}
	selector := llm.NewSelector(llm.SelectorConfig{
		GeminiKey:            cfg.GeminiKey,
		OpenRouterCatalogKey: cfg.OpenRouterKey,
		GeminiBaseURL:        cfg.GeminiBaseURL,
		OpenRouterBaseURL:    cfg.OpenRouterBaseURL,
		Referer:              referer,
	}, prompts)

	costs := service.NewCostTracker(repo, selector, cfg.USDToRUB)
	chatSvc := chat.NewService(selector, costs, chat.WithClosingLine(prompts.CompletionFallback()))
	sessions := interview.NewManager(chatSvc, repo, prompts, config.SessionIdleTTL)

	var fetchOpts []service.FetcherOption
	if cfg.JobFetchAllowPrivate {
		fetchOpts = append(fetchOpts, service.WithPrivateNetworks())
	}

	coach := service.NewCoachService(service.CoachDeps{
		Repo:     repo,
		Chat:     chatSvc,
		Sessions: sessions,
		Jobs:     service.NewJobPageFetcher(fetchOpts...),
		Costs:    costs,
		Models:   selector,
		MaxPDF:   config.MaxUploadSize,
	})
	return &app{repo: repo, sessions: sessions, coach: coach}, nil
}

func (a *app) Close() error {
	return a.repo.Close()
}

func migrateUp(databaseURL string) (repository.MigrationStatus, error) {
	migrationsFS, err := fs.Sub(interviewcoach.MigrationsFS, "migrations")
	if err != nil {
		return repository.MigrationStatus{}, fmt.Errorf("load embedded migrations: %w", err)
	}
	return repository.RunMigrations(databaseURL, migrationsFS)
}
