package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/set-night/interviewcoach/internal/config"
	"github.com/set-night/interviewcoach/internal/domain"
	"github.com/set-night/interviewcoach/internal/llm"
	"github.com/set-night/interviewcoach/internal/prompt"
)

// ClientSelector resolves per-request settings into a provider client.
type ClientSelector interface {
	Select(settings domain.Settings) (llm.Client, error)
}

// UsageRecorder receives token usage of every successful provider call.
type UsageRecorder interface {
	Record(ctx context.Context, model string, usage domain.Usage) error
}

// Sleeper waits between retry attempts. It returns early with the context
// error when ctx is cancelled.
type Sleeper func(ctx context.Context, d time.Duration) error

func contextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type Request struct {
	Message  string                `json:"message"`
	Context  domain.Context        `json:"context"`
	History  []domain.Message      `json:"conversationHistory"`
	Settings domain.Settings       `json:"-"`
	Mode     domain.Mode           `json:"mode"`
	Plan     *domain.InterviewPlan `json:"interviewPlan"`
}

// Reply is the data part of a successful chat envelope.
type Reply struct {
	Message               string                `json:"message"`
	Timestamp             time.Time             `json:"timestamp"`
	Mode                  domain.Mode           `json:"mode"`
	Model                 string                `json:"model"`
	Usage                 domain.Usage          `json:"usage"`
	IsCompletionSuggested bool                  `json:"isCompletionSuggested"`
	InterviewPlan         *domain.InterviewPlan `json:"interviewPlan,omitempty"`
	Plan                  map[string]any        `json:"plan,omitempty"`
	PlanText              string                `json:"planText,omitempty"`
}

type Service struct {
	selector    ClientSelector
	usage       UsageRecorder
	sleep       Sleeper
	maxAttempts int
	backoff     time.Duration
	timeout     time.Duration
	closing     string
}

type Option func(*Service)

func WithSleeper(s Sleeper) Option {
	return func(svc *Service) { svc.sleep = s }
}

func WithBackoff(unit time.Duration) Option {
	return func(svc *Service) { svc.backoff = unit }
}

// WithAttemptTimeout sets the deadline applied to each provider call.
func WithAttemptTimeout(d time.Duration) Option {
	return func(svc *Service) { svc.timeout = d }
}

// WithClosingLine sets the reply used when the interviewer answered with
// the completion marker alone.
func WithClosingLine(line string) Option {
	return func(svc *Service) {
		if strings.TrimSpace(line) != "" {
			svc.closing = line
		}
	}
}

func NewService(selector ClientSelector, usage UsageRecorder, opts ...Option) *Service {
	s := &Service{
		selector:    selector,
		usage:       usage,
		sleep:       contextSleep,
		maxAttempts: config.MaxAttempts,
		backoff:     config.BackoffUnit,
		timeout:     config.RequestTimeout,
		closing:     prompt.Default().CompletionFallback,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Chat runs one orchestrated chat turn: validate, select, retry, post-process.
func (s *Service) Chat(ctx context.Context, req Request) (*Reply, error) {
	if req.Mode == "" {
		req.Mode = domain.ModeInterview
	}
	if err := Validate(req); err != nil {
		return nil, err
	}

	client, err := s.client(req.Settings)
	if err != nil {
		return nil, err
	}

	opts := optionsFor(req.Settings, req.Mode)
	slog.Info("chat request",
		"mode", req.Mode,
		"provider", client.Name(),
		"message_length", len(req.Message),
		"history_length", len(req.History),
		"has_plan", req.Plan != nil,
	)

	var reply *llm.Reply
	err = s.retry(ctx, string(req.Mode), func(actx context.Context) error {
		var callErr error
		reply, callErr = client.SendChatMessage(actx, req.Message, req.History, req.Plan, opts)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, reply)

	out := &Reply{
		Message:   reply.Message,
		Timestamp: reply.Timestamp,
		Mode:      req.Mode,
		Model:     reply.Model,
		Usage:     reply.Usage,
	}
	if len(req.History) == 0 && req.Plan != nil {
		out.InterviewPlan = req.Plan
	}

	switch req.Mode {
	case domain.ModeInterview:
		out.Message, out.IsCompletionSuggested = DetectCompletion(reply.Message)
		if out.Message == "" {
			out.Message = s.closing
			out.IsCompletionSuggested = true
		}
	case domain.ModePlanning:
		ex := ExtractJSONObject(reply.Message)
		out.PlanText = ex.Text
		if ex.OK() {
			out.Plan = ex.Object
		} else {
			slog.Warn("no JSON plan found in planning reply", "model", reply.Model)
		}
	}
	return out, nil
}

// retry makes up to maxAttempts calls, waiting attempt*backoff between
// them. Every error is retried; the last one is returned.
func (s *Service) retry(ctx context.Context, op string, call func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		actx, cancel := context.WithTimeout(ctx, s.timeout)
		lastErr = call(actx)
		cancel()
		if lastErr == nil {
			return nil
		}

		slog.Warn("provider attempt failed", "op", op, "attempt", attempt, "error", lastErr)
		if attempt == s.maxAttempts {
			break
		}
		if err := s.sleep(ctx, time.Duration(attempt)*s.backoff); err != nil {
			break
		}
	}
	return lastErr
}

// Plan builds the interview plan for a context. Plans are local, so no
// retry or usage accounting applies.
func (s *Service) Plan(ctx context.Context, c domain.Context, settings domain.Settings) (*domain.InterviewPlan, error) {
	client, err := s.client(settings)
	if err != nil {
		return nil, err
	}
	opts := optionsWithDefaults(settings, config.PlanTemperature, config.PlanMaxTokens)
	plan, err := client.PlanInterview(ctx, c, opts)
	if err != nil {
		return nil, fmt.Errorf("plan interview: %w", err)
	}
	slog.Info("interview plan generated",
		"provider", client.Name(),
		"has_job", strings.TrimSpace(c.JobText) != "",
		"has_resume", strings.TrimSpace(c.ResumeText) != "",
		"questions", len(plan.Questions),
	)
	return plan, nil
}

func (s *Service) Feedback(ctx context.Context, messages []domain.Message, c domain.Context, settings domain.Settings) (*llm.Reply, error) {
	if len(messages) == 0 {
		return nil, domain.NewValidation("Messages are required")
	}
	client, err := s.client(settings)
	if err != nil {
		return nil, err
	}
	return s.once(ctx, func(actx context.Context) (*llm.Reply, error) {
		return client.GenerateFeedback(actx, messages, c, optionsWithDefaults(settings, config.FeedbackTemperature, config.FeedbackMaxTokens))
	})
}

func (s *Service) CoverLetter(ctx context.Context, c domain.Context, settings domain.Settings) (*llm.Reply, error) {
	if strings.TrimSpace(c.JobText) == "" {
		return nil, domain.NewValidation("Отсутствуют данные о вакансии")
	}
	client, err := s.client(settings)
	if err != nil {
		return nil, err
	}
	return s.once(ctx, func(actx context.Context) (*llm.Reply, error) {
		return client.GenerateCoverLetter(actx, c, optionsWithDefaults(settings, config.CoverLetterTemperature, config.CoverLetterMaxTokens))
	})
}

func (s *Service) TestConnection(ctx context.Context, settings domain.Settings) (*llm.Reply, error) {
	client, err := s.client(settings)
	if err != nil {
		return nil, err
	}
	return s.once(ctx, func(actx context.Context) (*llm.Reply, error) {
		return client.TestConnection(actx, llm.Options{Model: settings.Model})
	})
}

func (s *Service) once(ctx context.Context, call func(context.Context) (*llm.Reply, error)) (*llm.Reply, error) {
	actx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	reply, err := call(actx)
	if err != nil {
		return nil, err
	}
	s.record(ctx, reply)
	return reply, nil
}

func (s *Service) client(settings domain.Settings) (llm.Client, error) {
	client, err := s.selector.Select(settings)
	if err != nil {
		return nil, domain.NewValidation(err.Error())
	}
	return client, nil
}

func (s *Service) record(ctx context.Context, reply *llm.Reply) {
	if s.usage == nil || reply == nil {
		return
	}
	if err := s.usage.Record(ctx, reply.Model, reply.Usage); err != nil {
		slog.Warn("failed to record usage", "model", reply.Model, "error", err)
	}
}

func optionsFor(settings domain.Settings, mode domain.Mode) llm.Options {
	if mode == domain.ModePlanning {
		return optionsWithDefaults(settings, config.PlanningTemperature, config.PlanningMaxTokens)
	}
	return optionsWithDefaults(settings, config.InterviewTemperature, config.InterviewMaxTokens)
}

func optionsWithDefaults(settings domain.Settings, temp float64, tokens int) llm.Options {
	opts := llm.Options{
		Model:       settings.Model,
		Temperature: settings.Temperature,
		MaxTokens:   settings.MaxTokens,
	}
	if opts.Temperature == nil {
		opts.Temperature = &temp
	}
	if opts.MaxTokens == nil {
		opts.MaxTokens = &tokens
	}
	return opts
}
