package chat

import (
	"context"
	"sync"
	"time"

	"github.com/set-night/interviewcoach/internal/domain"
	"github.com/set-night/interviewcoach/internal/llm"
)

// fakeClient answers from a scripted queue of replies and errors.
type fakeClient struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	calls   int
	opts    []llm.Options
}

func (f *fakeClient) next() (*llm.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	text := "ok"
	if i < len(f.replies) {
		text = f.replies[i]
	}
	return &llm.Reply{
		Message:   text,
		Model:     "fake-model",
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Usage:     domain.Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3},
	}, nil
}

func (f *fakeClient) Name() domain.Provider { return domain.ProviderGemini }

func (f *fakeClient) SendMessage(_ context.Context, _ string, opts llm.Options) (*llm.Reply, error) {
	f.opts = append(f.opts, opts)
	return f.next()
}

func (f *fakeClient) PlanInterview(_ context.Context, c domain.Context, opts llm.Options) (*domain.InterviewPlan, error) {
	return &domain.InterviewPlan{Summary: domain.DefaultPlanSummary, Questions: domain.DefaultPlanQuestions(), SystemPrompt: "plan for " + c.JobText, Model: opts.Model}, nil
}

func (f *fakeClient) SendChatMessage(_ context.Context, _ string, _ []domain.Message, _ *domain.InterviewPlan, opts llm.Options) (*llm.Reply, error) {
	f.opts = append(f.opts, opts)
	return f.next()
}

func (f *fakeClient) GenerateFeedback(_ context.Context, _ []domain.Message, _ domain.Context, opts llm.Options) (*llm.Reply, error) {
	f.opts = append(f.opts, opts)
	return f.next()
}

func (f *fakeClient) GenerateCoverLetter(_ context.Context, _ domain.Context, opts llm.Options) (*llm.Reply, error) {
	f.opts = append(f.opts, opts)
	return f.next()
}

func (f *fakeClient) TestConnection(_ context.Context, opts llm.Options) (*llm.Reply, error) {
	f.opts = append(f.opts, opts)
	return f.next()
}

type fakeSelector struct {
	client *fakeClient
}

func (s fakeSelector) Select(settings domain.Settings) (llm.Client, error) {
	if settings.Provider != "" && settings.Provider != domain.ProviderGemini && settings.Provider != domain.ProviderOpenRouter {
		return nil, domain.ErrUnknownProvider
	}
	return s.client, nil
}

type recordingSleeper struct {
	waits []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

type usageLog struct {
	mu      sync.Mutex
	records []domain.Usage
}

func (u *usageLog) Record(_ context.Context, _ string, usage domain.Usage) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.records = append(u.records, usage)
	return nil
}
