package llm

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/set-night/interviewcoach/internal/config"
	"github.com/set-night/interviewcoach/internal/domain"
	"github.com/set-night/interviewcoach/internal/prompt"
)

// Options configure one provider call. Nil sampling fields take the
// default of the operation being performed.
type Options struct {
	Model        string
	Temperature  *float64
	MaxTokens    *int
	SystemPrompt string
	History      []domain.Message
}

// Reply is a successful, non-empty provider answer.
type Reply struct {
	Message   string       `json:"message"`
	Model     string       `json:"model"`
	Timestamp time.Time    `json:"timestamp"`
	Usage     domain.Usage `json:"usage"`
}

// Client is the provider-neutral contract. Every error it returns is a
// *domain.Error classified at this boundary.
type Client interface {
	Name() domain.Provider
	SendMessage(ctx context.Context, message string, opts Options) (*Reply, error)
	PlanInterview(ctx context.Context, c domain.Context, opts Options) (*domain.InterviewPlan, error)
	SendChatMessage(ctx context.Context, message string, history []domain.Message, plan *domain.InterviewPlan, opts Options) (*Reply, error)
	GenerateFeedback(ctx context.Context, messages []domain.Message, c domain.Context, opts Options) (*Reply, error)
	GenerateCoverLetter(ctx context.Context, c domain.Context, opts Options) (*Reply, error)
	TestConnection(ctx context.Context, opts Options) (*Reply, error)
}

const (
	minTemperature = 0.0
	maxTemperature = 2.0
	minTokens      = 1
	maxTokens      = 8192
)

// request is what a backend sends after defaults and clamping are applied.
type request struct {
	Model        string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
	History      []domain.Message
	Message      string
}

type backend interface {
	provider() domain.Provider
	displayName() string
	defaultModel() string
	// fallbackModel returns the model to try once when model is quota
	// limited, or "" when there is none.
	fallbackModel(model string) string
	generate(ctx context.Context, apiKey string, req request) (*Reply, error)
}

// client binds a backend to one credential. It is built per request and
// never mutated, so keys cannot leak between callers.
type client struct {
	backend backend
	apiKey  string
	prompts *prompt.Builder
	now     func() time.Time
}

func newClient(b backend, apiKey string, prompts *prompt.Builder) *client {
	return &client{backend: b, apiKey: apiKey, prompts: prompts, now: time.Now}
}

func (c *client) Name() domain.Provider {
	return c.backend.provider()
}

func (c *client) SendMessage(ctx context.Context, message string, opts Options) (*Reply, error) {
	return c.send(ctx, message, opts, 0.7, 1000)
}

func (c *client) send(ctx context.Context, message string, opts Options, defTemp float64, defTokens int) (*Reply, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return nil, classify(c.backend, domain.ErrMissingAPIKey)
	}

	req := request{
		Model:        opts.Model,
		Temperature:  clampTemperature(valueOr(opts.Temperature, defTemp)),
		MaxTokens:    clampTokens(valueOr(opts.MaxTokens, defTokens)),
		SystemPrompt: opts.SystemPrompt,
		History:      opts.History,
		Message:      message,
	}
	if req.Model == "" {
		req.Model = c.backend.defaultModel()
	}

	reply, err := c.attempt(ctx, req)
	if err == nil {
		return reply, nil
	}

	original := classify(c.backend, err)
	if original.Kind != domain.KindProviderQuota {
		return nil, original
	}
	alt := c.backend.fallbackModel(req.Model)
	if alt == "" || alt == req.Model {
		return nil, original
	}

	slog.Warn("quota exceeded, trying fallback model",
		"provider", c.backend.provider(), "model", req.Model, "fallback", alt)
	req.Model = alt
	if reply, err := c.attempt(ctx, req); err == nil {
		return reply, nil
	}
	return nil, original
}

func (c *client) attempt(ctx context.Context, req request) (*Reply, error) {
	reply, err := c.backend.generate(ctx, c.apiKey, req)
	if err != nil {
		return nil, err
	}
	reply.Message = strings.TrimSpace(reply.Message)
	if reply.Message == "" {
		return nil, domain.ErrEmptyResponse
	}
	if reply.Model == "" {
		reply.Model = req.Model
	}
	if reply.Timestamp.IsZero() {
		reply.Timestamp = c.now().UTC()
	}
	return reply, nil
}

// PlanInterview builds the fixed five-question plan locally. It makes no
// network call.
func (c *client) PlanInterview(_ context.Context, dc domain.Context, opts Options) (*domain.InterviewPlan, error) {
	system := c.prompts.Interview(dc)
	model := opts.Model
	if model == "" {
		model = c.backend.defaultModel()
	}
	return &domain.InterviewPlan{
		Summary:      domain.DefaultPlanSummary,
		Questions:    domain.DefaultPlanQuestions(),
		SystemPrompt: system,
		Model:        model,
		Usage:        &domain.Usage{PromptTokens: utf8.RuneCountInString(system)},
	}, nil
}

var speakerPrefix = regexp.MustCompile(`(?i)^(Интервьюер|Аня|AI|Assistant):\s*`)

func (c *client) SendChatMessage(ctx context.Context, message string, history []domain.Message, plan *domain.InterviewPlan, opts Options) (*Reply, error) {
	opts.SystemPrompt = c.prompts.ChatSystemPrompt(history, plan, message)
	opts.History = nil

	reply, err := c.send(ctx, message, opts, 0.8, 1000)
	if err != nil {
		return nil, err
	}
	reply.Message = strings.TrimSpace(speakerPrefix.ReplaceAllString(reply.Message, ""))
	if reply.Message == "" {
		return nil, classify(c.backend, domain.ErrEmptyResponse)
	}
	return reply, nil
}

func (c *client) GenerateFeedback(ctx context.Context, messages []domain.Message, dc domain.Context, opts Options) (*Reply, error) {
	opts.SystemPrompt = c.prompts.Feedback(messages, dc)
	opts.History = nil
	return c.send(ctx, c.prompts.FeedbackRequest(), opts, config.FeedbackTemperature, config.FeedbackMaxTokens)
}

func (c *client) GenerateCoverLetter(ctx context.Context, dc domain.Context, opts Options) (*Reply, error) {
	opts.SystemPrompt = c.prompts.CoverLetter(dc)
	opts.History = nil
	return c.send(ctx, c.prompts.CoverLetterRequest(), opts, config.CoverLetterTemperature, config.CoverLetterMaxTokens)
}

// TestConnection sends a short check message. Sampling settings from opts are
// ignored so the check stays cheap.
func (c *client) TestConnection(ctx context.Context, opts Options) (*Reply, error) {
	system, message := c.prompts.ConnectionTest()
	return c.send(ctx, message, Options{Model: opts.Model, SystemPrompt: system},
		config.CheckTemperature, config.CheckMaxTokens)
}

func valueOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

func clampTemperature(t float64) float64 {
	return max(minTemperature, min(maxTemperature, t))
}

func clampTokens(n int) int {
	return max(minTokens, min(maxTokens, n))
}
