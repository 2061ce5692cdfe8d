package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/set-night/interviewcoach/internal/chat"
	"github.com/set-night/interviewcoach/internal/domain"
	"github.com/set-night/interviewcoach/internal/interview"
	"github.com/set-night/interviewcoach/internal/llm"
	"github.com/set-night/interviewcoach/internal/repository"
)

// ModelLister lists the models a provider offers.
type ModelLister interface {
	Models(ctx context.Context, p domain.Provider) ([]domain.AIModel, error)
}

// CoachService holds the use cases shared by the HTTP API and the bot.
// Every call is scoped to the owner stored in ctx.
type CoachService struct {
	repo     *repository.Repository
	chat     *chat.Service
	sessions *interview.Manager
	jobs     *JobPageFetcher
	costs    *CostTracker
	models   ModelLister
	maxPDF   int64
	now      func() time.Time
}

type CoachDeps struct {
	Repo     *repository.Repository
	Chat     *chat.Service
	Sessions *interview.Manager
	Jobs     *JobPageFetcher
	Costs    *CostTracker
	Models   ModelLister
	MaxPDF   int64
}

func NewCoachService(d CoachDeps) *CoachService {
	return &CoachService{
		repo:     d.Repo,
		chat:     d.Chat,
		sessions: d.Sessions,
		jobs:     d.Jobs,
		costs:    d.Costs,
		models:   d.Models,
		maxPDF:   d.MaxPDF,
		now:      time.Now,
	}
}

// isMasked reports whether a key is a redacted echo of a stored key.
func isMasked(key string) bool {
	return strings.Contains(key, "****")
}

// normalizeOverride validates request settings. Unset provider and masked
// keys stay empty so they do not override stored values.
func normalizeOverride(raw domain.RawSettings) (domain.Settings, error) {
	s, err := raw.Normalize()
	if err != nil {
		return domain.Settings{}, err
	}
	if strings.TrimSpace(raw.Provider) == "" {
		s.Provider = ""
	}
	if isMasked(s.GeminiAPIKey) {
		s.GeminiAPIKey = ""
	}
	if isMasked(s.OpenRouterAPIKey) {
		s.OpenRouterAPIKey = ""
	}
	return s, nil
}

// ResolveSettings overlays request settings on the stored ones.
func (s *CoachService) ResolveSettings(ctx context.Context, raw *domain.RawSettings) (domain.Settings, error) {
	stored, err := s.repo.Settings(ctx)
	if err != nil {
		return domain.Settings{}, err
	}
	if raw == nil {
		return stored, nil
	}
	override, err := normalizeOverride(*raw)
	if err != nil {
		return domain.Settings{}, err
	}
	return stored.Merge(override), nil
}

func (s *CoachService) Settings(ctx context.Context) (domain.Settings, error) {
	return s.repo.Settings(ctx)
}

// SaveSettings replaces stored settings. Masked keys keep their stored value.
func (s *CoachService) SaveSettings(ctx context.Context, raw domain.RawSettings) (domain.Settings, error) {
	next, err := raw.Normalize()
	if err != nil {
		return domain.Settings{}, err
	}
	stored, err := s.repo.Settings(ctx)
	if err != nil {
		return domain.Settings{}, err
	}
	if isMasked(next.GeminiAPIKey) {
		next.GeminiAPIKey = stored.GeminiAPIKey
	}
	if isMasked(next.OpenRouterAPIKey) {
		next.OpenRouterAPIKey = stored.OpenRouterAPIKey
	}
	if err := s.repo.SaveSettings(ctx, next); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	return next, nil
}

// SetProvider switches the stored provider and keeps everything else.
func (s *CoachService) SetProvider(ctx context.Context, name string) (domain.Settings, error) {
	p, err := domain.ParseProvider(name)
	if err != nil {
		return domain.Settings{}, domain.NewValidation(err.Error())
	}
	stored, err := s.repo.Settings(ctx)
	if err != nil {
		return domain.Settings{}, err
	}
	if stored.Provider != p {
		stored.Model = ""
	}
	stored.Provider = p
	if err := s.repo.SaveSettings(ctx, stored); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	return stored, nil
}

// SetAPIKey stores a personal key for one provider.
func (s *CoachService) SetAPIKey(ctx context.Context, name, key string) (domain.Settings, error) {
	p, err := domain.ParseProvider(name)
	if err != nil {
		return domain.Settings{}, domain.NewValidation(err.Error())
	}
	key = strings.TrimSpace(key)
	if key == "" || isMasked(key) {
		return domain.Settings{}, domain.NewValidation("API key is required")
	}
	stored, err := s.repo.Settings(ctx)
	if err != nil {
		return domain.Settings{}, err
	}
	if p == domain.ProviderOpenRouter {
		stored.OpenRouterAPIKey = key
	} else {
		stored.GeminiAPIKey = key
	}
	if err := s.repo.SaveSettings(ctx, stored); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	return stored, nil
}

// contextOr returns dc, or the stored context when dc carries no material.
func (s *CoachService) contextOr(ctx context.Context, dc domain.Context) (domain.Context, error) {
	if strings.TrimSpace(dc.JobText) != "" || strings.TrimSpace(dc.ResumeText) != "" {
		return dc, nil
	}
	return s.repo.Context(ctx)
}

func (s *CoachService) Context(ctx context.Context) (domain.Context, domain.ContextValidation, error) {
	dc, err := s.repo.Context(ctx)
	if err != nil {
		return domain.Context{}, domain.ContextValidation{}, err
	}
	return dc, dc.Validate(), nil
}

func (s *CoachService) SaveJob(ctx context.Context, job repository.JobData) error {
	if err := s.repo.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

func (s *CoachService) SaveResume(ctx context.Context, resume repository.ResumeData) error {
	if err := s.repo.SaveResume(ctx, resume); err != nil {
		return fmt.Errorf("save resume: %w", err)
	}
	return nil
}

// ImportJobURL downloads a posting and stores it as the job context.
func (s *CoachService) ImportJobURL(ctx context.Context, url string) (repository.JobData, error) {
	page, err := s.jobs.Fetch(ctx, url)
	if err != nil {
		return repository.JobData{}, err
	}
	job := repository.JobData{Text: page.Text, Position: page.Title, Company: page.Company, URL: page.URL}
	if err := s.SaveJob(ctx, job); err != nil {
		return repository.JobData{}, err
	}
	slog.Info("job imported", "url", page.URL, "length", len(page.Text))
	return job, nil
}

// ImportResumePDF extracts a PDF résumé and stores its text.
func (s *CoachService) ImportResumePDF(ctx context.Context, r io.Reader, fileName string) (repository.ResumeData, error) {
	text, err := ExtractResumeText(r, s.maxPDF)
	if err != nil {
		return repository.ResumeData{}, err
	}
	resume := repository.ResumeData{Text: text, FileName: fileName}
	if err := s.SaveResume(ctx, resume); err != nil {
		return repository.ResumeData{}, err
	}
	return resume, nil
}

func (s *CoachService) PlanInterview(ctx context.Context, dc domain.Context, raw *domain.RawSettings) (*domain.InterviewPlan, error) {
	settings, err := s.ResolveSettings(ctx, raw)
	if err != nil {
		return nil, err
	}
	dc, err = s.contextOr(ctx, dc)
	if err != nil {
		return nil, err
	}
	return s.chat.Plan(ctx, dc, settings)
}

func (s *CoachService) Chat(ctx context.Context, req chat.Request, raw *domain.RawSettings) (*chat.Reply, error) {
	settings, err := s.ResolveSettings(ctx, raw)
	if err != nil {
		return nil, err
	}
	req.Settings = settings
	if req.Context, err = s.contextOr(ctx, req.Context); err != nil {
		return nil, err
	}
	return s.chat.Chat(ctx, req)
}

func (s *CoachService) Feedback(ctx context.Context, messages []domain.Message, dc domain.Context, raw *domain.RawSettings) (*llm.Reply, error) {
	settings, err := s.ResolveSettings(ctx, raw)
	if err != nil {
		return nil, err
	}
	if dc, err = s.contextOr(ctx, dc); err != nil {
		return nil, err
	}
	return s.chat.Feedback(ctx, messages, dc, settings)
}

// TranscriptFeedback returns the cached analysis of a transcript or
// generates and caches it. The bool reports a cache hit.
func (s *CoachService) TranscriptFeedback(ctx context.Context, id int64, refresh bool) (*domain.Feedback, bool, error) {
	if !refresh {
		cached, err := s.repo.Feedback(ctx, id)
		if err != nil {
			return nil, false, fmt.Errorf("load feedback: %w", err)
		}
		if cached != nil {
			return cached, true, nil
		}
	}

	t, err := s.repo.Transcript(ctx, id)
	if err != nil {
		return nil, false, err
	}
	dc, err := s.repo.Context(ctx)
	if err != nil {
		return nil, false, err
	}
	settings, err := s.repo.Settings(ctx)
	if err != nil {
		return nil, false, err
	}

	reply, err := s.chat.Feedback(ctx, t.Messages, dc, settings)
	if err != nil {
		return nil, false, err
	}
	fb := domain.Feedback{
		TranscriptID: id,
		Text:         reply.Message,
		Model:        reply.Model,
		Usage:        reply.Usage,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.SaveFeedback(ctx, fb); err != nil {
		return nil, false, fmt.Errorf("save feedback: %w", err)
	}
	return &fb, false, nil
}

// LatestFeedback analyses the most recent transcript.
func (s *CoachService) LatestFeedback(ctx context.Context) (*domain.Feedback, error) {
	t, err := s.repo.LatestTranscript(ctx)
	if err != nil {
		return nil, err
	}
	fb, _, err := s.TranscriptFeedback(ctx, t.ID, false)
	return fb, err
}

// CoverLetter generates a letter and keeps the latest one.
func (s *CoachService) CoverLetter(ctx context.Context, dc domain.Context, raw *domain.RawSettings) (*llm.Reply, error) {
	settings, err := s.ResolveSettings(ctx, raw)
	if err != nil {
		return nil, err
	}
	if dc, err = s.contextOr(ctx, dc); err != nil {
		return nil, err
	}
	reply, err := s.chat.CoverLetter(ctx, dc, settings)
	if err != nil {
		return nil, err
	}
	letter := domain.CoverLetter{Text: reply.Message, Model: reply.Model, CreatedAt: s.now().UTC()}
	if err := s.repo.SaveCoverLetter(ctx, letter); err != nil {
		return nil, fmt.Errorf("save cover letter: %w", err)
	}
	return reply, nil
}

func (s *CoachService) LastCoverLetter(ctx context.Context) (*domain.CoverLetter, error) {
	return s.repo.CoverLetter(ctx)
}

func (s *CoachService) TestConnection(ctx context.Context, raw *domain.RawSettings) (*llm.Reply, error) {
	settings, err := s.ResolveSettings(ctx, raw)
	if err != nil {
		return nil, err
	}
	return s.chat.TestConnection(ctx, settings)
}

func (s *CoachService) Models(ctx context.Context, provider string) ([]domain.AIModel, error) {
	p, err := domain.ParseProvider(provider)
	if err != nil {
		return nil, domain.NewValidation(err.Error())
	}
	return s.models.Models(ctx, p)
}

func (s *CoachService) History(ctx context.Context, q HistoryQuery) ([]HistoryEntry, HistoryStats, error) {
	list, err := s.repo.Transcripts(ctx)
	if err != nil {
		return nil, HistoryStats{}, err
	}
	ids, err := s.repo.FeedbackIDs(ctx)
	if err != nil {
		return nil, HistoryStats{}, err
	}
	withFeedback := make(map[int64]bool, len(ids))
	for _, id := range ids {
		withFeedback[id] = true
	}
	entries, stats := QueryHistory(list, q, withFeedback)
	return entries, stats, nil
}

func (s *CoachService) Transcript(ctx context.Context, id int64) (domain.Transcript, error) {
	return s.repo.Transcript(ctx, id)
}

func (s *CoachService) ClearHistory(ctx context.Context) error {
	if err := s.repo.ClearTranscripts(ctx); err != nil {
		return fmt.Errorf("clear transcripts: %w", err)
	}
	return nil
}

func (s *CoachService) Costs(ctx context.Context) (domain.CostStats, error) {
	return s.costs.Stats(ctx)
}

func (s *CoachService) ResetCosts(ctx context.Context) error {
	return s.costs.Reset(ctx)
}

// StartInterview begins a session from the stored context and settings.
func (s *CoachService) StartInterview(ctx context.Context) (*interview.Controller, error) {
	dc, err := s.repo.Context(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := s.repo.Settings(ctx)
	if err != nil {
		return nil, err
	}
	return s.sessions.Begin(ctx, domain.OwnerFrom(ctx), dc, settings)
}

func (s *CoachService) Session(ctx context.Context) (*interview.Controller, error) {
	return s.sessions.Get(domain.OwnerFrom(ctx))
}

// EndInterview finishes the current session. The completed session stays
// readable until the next one starts.
func (s *CoachService) EndInterview(ctx context.Context) (domain.Transcript, error) {
	c, err := s.Session(ctx)
	if err != nil {
		return domain.Transcript{}, err
	}
	return c.End(ctx)
}

// IsNotFound reports lookups of a missing session or transcript.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrSessionNotFound) || errors.Is(err, domain.ErrTranscriptNotFound)
}

func (s *CoachService) Job(ctx context.Context) (repository.JobData, error) {
	return s.repo.Job(ctx)
}
