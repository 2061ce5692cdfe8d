package domain

import (
	"fmt"
	"strings"
)

// Provider is the closed set of LLM back ends.
type Provider string

const (
	ProviderGemini     Provider = "gemini"
	ProviderOpenRouter Provider = "openrouter"
)

// ParseProvider accepts the canonical names and the primary/alternate aliases.
// An empty value selects the primary provider.
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "gemini", "primary", "google":
		return ProviderGemini, nil
	case "openrouter", "alternate":
		return ProviderOpenRouter, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
}

type Mode string

const (
	ModeInterview Mode = "interview"
	ModePlanning  Mode = "planning"
)

func (m Mode) Valid() bool {
	return m == ModeInterview || m == ModePlanning
}

// PromptOverrides replaces built-in prompt templates for one owner.
// Empty fields keep the built-in text.
type PromptOverrides struct {
	Interview    string `json:"interview,omitempty"`
	Continuation string `json:"continuation,omitempty"`
	Feedback     string `json:"feedback,omitempty"`
	CoverLetter  string `json:"coverLetter,omitempty"`
}

// Settings are the per-request LLM options. Nil pointers mean "use the
// default for the call", which differs between chat modes and operations.
type Settings struct {
	Provider         Provider        `json:"provider"`
	Model            string          `json:"model,omitempty"`
	Temperature      *float64        `json:"temperature,omitempty"`
	MaxTokens        *int            `json:"maxTokens,omitempty"`
	GeminiAPIKey     string          `json:"geminiApiKey,omitempty"`
	OpenRouterAPIKey string          `json:"openrouterApiKey,omitempty"`
	Prompts          PromptOverrides `json:"prompts,omitempty"`
}

// RawSettings is the wire shape accepted from clients before normalisation.
type RawSettings struct {
	Provider         string          `json:"provider"`
	Model            string          `json:"model"`
	Temperature      *float64        `json:"temperature"`
	MaxTokens        *int            `json:"maxTokens"`
	GeminiAPIKey     string          `json:"geminiApiKey"`
	OpenRouterAPIKey string          `json:"openrouterApiKey"`
	Prompts          PromptOverrides `json:"prompts"`
}

// Normalize validates raw client settings once at the boundary.
func (r RawSettings) Normalize() (Settings, error) {
	p, err := ParseProvider(r.Provider)
	if err != nil {
		return Settings{}, NewValidation(err.Error())
	}
	var details []string
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		details = append(details, "temperature must be between 0 and 2")
	}
	if r.MaxTokens != nil && (*r.MaxTokens < 1 || *r.MaxTokens > 8192) {
		details = append(details, "maxTokens must be between 1 and 8192")
	}
	if len(details) > 0 {
		return Settings{}, NewValidation(details...)
	}
	return Settings{
		Provider:         p,
		Model:            strings.TrimSpace(r.Model),
		Temperature:      r.Temperature,
		MaxTokens:        r.MaxTokens,
		GeminiAPIKey:     strings.TrimSpace(r.GeminiAPIKey),
		OpenRouterAPIKey: strings.TrimSpace(r.OpenRouterAPIKey),
		Prompts:          r.Prompts,
	}, nil
}

// APIKey returns the per-request key for the selected provider.
func (s Settings) APIKey() string {
	if s.Provider == ProviderOpenRouter {
		return s.OpenRouterAPIKey
	}
	return s.GeminiAPIKey
}

// Merge overlays non-empty fields of o on top of s.
func (s Settings) Merge(o Settings) Settings {
	if o.Provider != "" {
		s.Provider = o.Provider
	}
	if o.Model != "" {
		s.Model = o.Model
	}
	if o.Temperature != nil {
		s.Temperature = o.Temperature
	}
	if o.MaxTokens != nil {
		s.MaxTokens = o.MaxTokens
	}
	if o.GeminiAPIKey != "" {
		s.GeminiAPIKey = o.GeminiAPIKey
	}
	if o.OpenRouterAPIKey != "" {
		s.OpenRouterAPIKey = o.OpenRouterAPIKey
	}
	if o.Prompts.Interview != "" {
		s.Prompts.Interview = o.Prompts.Interview
	}
	if o.Prompts.Continuation != "" {
		s.Prompts.Continuation = o.Prompts.Continuation
	}
	if o.Prompts.Feedback != "" {
		s.Prompts.Feedback = o.Prompts.Feedback
	}
	if o.Prompts.CoverLetter != "" {
		s.Prompts.CoverLetter = o.Prompts.CoverLetter
	}
	return s
}

// Redacted hides API keys for responses.
func (s Settings) Redacted() Settings {
	s.GeminiAPIKey = mask(s.GeminiAPIKey)
	s.OpenRouterAPIKey = mask(s.OpenRouterAPIKey)
	return s
}

func mask(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
