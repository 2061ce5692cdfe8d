package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/set-night/interviewcoach/internal/config"
	"github.com/set-night/interviewcoach/internal/domain"
	"github.com/set-night/interviewcoach/internal/prompt"
)

// SelectorConfig carries process-wide provider settings.
type SelectorConfig struct {
	// GeminiKey is the default credential for the primary provider.
	GeminiKey string
	// OpenRouterCatalogKey is only used to list models, never for chat.
	OpenRouterCatalogKey string
	GeminiBaseURL        string
	OpenRouterBaseURL    string
	Referer              string
	HTTPClient           *http.Client
}

// Selector picks a provider client per request. Backends hold no
// credentials; the key travels in the returned client only.
type Selector struct {
	defaultKey string
	prompts    *prompt.Builder
	gemini     *geminiBackend
	openrouter *openRouterBackend
}

func NewSelector(cfg SelectorConfig, prompts *prompt.Builder) *Selector {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.RequestTimeout}
	}
	return &Selector{
		defaultKey: cfg.GeminiKey,
		prompts:    prompts,
		gemini:     newGeminiBackend(cfg.GeminiBaseURL, httpClient),
		openrouter: newOpenRouterBackend(cfg.OpenRouterBaseURL, cfg.Referer, cfg.OpenRouterCatalogKey, httpClient),
	}
}

// Select returns a client bound to the provider and key in settings. The
// process default key applies to the primary provider only.
func (s *Selector) Select(settings domain.Settings) (Client, error) {
	prompts := s.prompts.With(settings.Prompts)
	switch settings.Provider {
	case domain.ProviderGemini, "":
		key := settings.GeminiAPIKey
		if key == "" {
			key = s.defaultKey
		}
		return newClient(s.gemini, key, prompts), nil
	case domain.ProviderOpenRouter:
		return newClient(s.openrouter, settings.OpenRouterAPIKey, prompts), nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, settings.Provider)
	}
}

// Models lists the models a provider offers.
func (s *Selector) Models(ctx context.Context, p domain.Provider) ([]domain.AIModel, error) {
	switch p {
	case domain.ProviderGemini, "":
		return GeminiModels(), nil
	case domain.ProviderOpenRouter:
		models, err := s.openrouter.ListModels(ctx)
		if err != nil {
			return nil, fmt.Errorf("list openrouter models: %w", err)
		}
		return models, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, p)
	}
}

// Prompts exposes the shared prompt builder.
func (s *Selector) Prompts() *prompt.Builder {
	return s.prompts
}

// CachedPrice looks a model up in the last fetched OpenRouter catalogue
// without touching the network. Prices are USD per 1M tokens.
func (s *Selector) CachedPrice(model string) (promptPrice, completionPrice float64, ok bool) {
	m, ok := s.openrouter.cache.Lookup(model)
	if !ok {
		return 0, 0, false
	}
	return m.PromptPrice, m.CompletionPrice, true
}
