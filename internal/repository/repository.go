package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/set-night/interviewcoach/internal/domain"
)

// Storage keys, one JSON blob each.
const (
	KeyJob            = "jobData"
	KeyResume         = "resumeData"
	KeySettings       = "ai-coach-settings"
	KeyTranscripts    = "interviews"
	KeyFeedbackPrefix = "feedback_"
	KeyCostStats      = "ai-coach-cost-stats"
	KeyCoverLetter    = "coverLetter"
)

// JobData is the stored job posting. Older records use description/title.
type JobData struct {
	Text        string    `json:"text,omitempty"`
	Description string    `json:"description,omitempty"`
	Position    string    `json:"position,omitempty"`
	Title       string    `json:"title,omitempty"`
	Company     string    `json:"company,omitempty"`
	URL         string    `json:"url,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (j JobData) body() string {
	if j.Text != "" {
		return j.Text
	}
	return j.Description
}

func (j JobData) position() string {
	if j.Position != "" {
		return j.Position
	}
	return j.Title
}

type ResumeData struct {
	Text      string    `json:"text,omitempty"`
	Content   string    `json:"content,omitempty"`
	FileName  string    `json:"fileName,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (r ResumeData) body() string {
	if r.Text != "" {
		return r.Text
	}
	return r.Content
}

// Repository maps typed records onto the store. The owner of every call is
// taken from the context.
type Repository struct {
	store Store
	now   func() time.Time

	// transcriptMu serialises read-modify-write of transcript lists so ids
	// stay unique.
	transcriptMu sync.Mutex
	lastID       int64
}

func New(store Store) *Repository {
	return &Repository{store: store, now: time.Now}
}

func (r *Repository) Close() error {
	return r.store.Close()
}

func (r *Repository) load(ctx context.Context, key string, v any) (bool, error) {
	raw, err := r.store.Get(ctx, domain.OwnerFrom(ctx), key)
	if err != nil {
		return false, err
	}
	if len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (r *Repository) save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return r.store.Set(ctx, domain.OwnerFrom(ctx), key, raw)
}

// Context reads the job and résumé snapshot. Missing records are empty.
func (r *Repository) Context(ctx context.Context) (domain.Context, error) {
	var job JobData
	if _, err := r.load(ctx, KeyJob, &job); err != nil {
		return domain.Context{}, fmt.Errorf("load job: %w", err)
	}
	var resume ResumeData
	if _, err := r.load(ctx, KeyResume, &resume); err != nil {
		return domain.Context{}, fmt.Errorf("load resume: %w", err)
	}
	return domain.Context{
		JobText:    job.body(),
		ResumeText: resume.body(),
		JobTitle:   job.position(),
		Company:    job.Company,
	}, nil
}

func (r *Repository) Job(ctx context.Context) (JobData, error) {
	var job JobData
	_, err := r.load(ctx, KeyJob, &job)
	return job, err
}

func (r *Repository) SaveJob(ctx context.Context, job JobData) error {
	job.UpdatedAt = r.now().UTC()
	if job.Text == "" {
		job.Text = job.Description
	}
	job.Description = ""
	return r.save(ctx, KeyJob, job)
}

func (r *Repository) Resume(ctx context.Context) (ResumeData, error) {
	var resume ResumeData
	_, err := r.load(ctx, KeyResume, &resume)
	return resume, err
}

func (r *Repository) SaveResume(ctx context.Context, resume ResumeData) error {
	resume.UpdatedAt = r.now().UTC()
	if resume.Text == "" {
		resume.Text = resume.Content
	}
	resume.Content = ""
	return r.save(ctx, KeyResume, resume)
}

func (r *Repository) Settings(ctx context.Context) (domain.Settings, error) {
	var s domain.Settings
	if _, err := r.load(ctx, KeySettings, &s); err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return s, nil
}

func (r *Repository) SaveSettings(ctx context.Context, s domain.Settings) error {
	return r.save(ctx, KeySettings, s)
}

// AppendTranscript assigns a creation-time id that is unique and strictly
// increasing, then stores the transcript.
func (r *Repository) AppendTranscript(ctx context.Context, t domain.Transcript) (domain.Transcript, error) {
	r.transcriptMu.Lock()
	defer r.transcriptMu.Unlock()

	list, err := r.Transcripts(ctx)
	if err != nil {
		return domain.Transcript{}, err
	}

	id := r.now().UnixMilli()
	if id <= r.lastID {
		id = r.lastID + 1
	}
	for _, existing := range list {
		if id <= existing.ID {
			id = existing.ID + 1
		}
	}
	r.lastID = id
	t.ID = id

	list = append(list, t)
	if err := r.save(ctx, KeyTranscripts, list); err != nil {
		return domain.Transcript{}, fmt.Errorf("save transcripts: %w", err)
	}
	return t, nil
}

func (r *Repository) Transcripts(ctx context.Context) ([]domain.Transcript, error) {
	list := []domain.Transcript{}
	if _, err := r.load(ctx, KeyTranscripts, &list); err != nil {
		return nil, fmt.Errorf("load transcripts: %w", err)
	}
	return list, nil
}

func (r *Repository) Transcript(ctx context.Context, id int64) (domain.Transcript, error) {
	list, err := r.Transcripts(ctx)
	if err != nil {
		return domain.Transcript{}, err
	}
	for _, t := range list {
		if t.ID == id {
			return t, nil
		}
	}
	return domain.Transcript{}, domain.ErrTranscriptNotFound
}

// LatestTranscript returns the most recently created transcript.
func (r *Repository) LatestTranscript(ctx context.Context) (domain.Transcript, error) {
	list, err := r.Transcripts(ctx)
	if err != nil {
		return domain.Transcript{}, err
	}
	if len(list) == 0 {
		return domain.Transcript{}, domain.ErrTranscriptNotFound
	}
	latest := list[0]
	for _, t := range list[1:] {
		if t.ID > latest.ID {
			latest = t
		}
	}
	return latest, nil
}

// ClearTranscripts removes every transcript and its cached feedback.
func (r *Repository) ClearTranscripts(ctx context.Context) error {
	r.transcriptMu.Lock()
	defer r.transcriptMu.Unlock()

	owner := domain.OwnerFrom(ctx)
	keys, err := r.store.Keys(ctx, owner, KeyFeedbackPrefix)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := r.store.Delete(ctx, owner, k); err != nil {
			return err
		}
	}
	return r.store.Delete(ctx, owner, KeyTranscripts)
}

func feedbackKey(id int64) string {
	return KeyFeedbackPrefix + strconv.FormatInt(id, 10)
}

// Feedback returns the cached analysis for a transcript, or nil.
func (r *Repository) Feedback(ctx context.Context, id int64) (*domain.Feedback, error) {
	var fb domain.Feedback
	ok, err := r.load(ctx, feedbackKey(id), &fb)
	if err != nil || !ok {
		return nil, err
	}
	return &fb, nil
}

func (r *Repository) SaveFeedback(ctx context.Context, fb domain.Feedback) error {
	return r.save(ctx, feedbackKey(fb.TranscriptID), fb)
}

// FeedbackIDs lists transcript ids that have cached feedback.
func (r *Repository) FeedbackIDs(ctx context.Context) ([]int64, error) {
	keys, err := r.store.Keys(ctx, domain.OwnerFrom(ctx), KeyFeedbackPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(keys))
	for _, k := range keys {
		id, err := strconv.ParseInt(strings.TrimPrefix(k, KeyFeedbackPrefix), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *Repository) CostStats(ctx context.Context) (domain.CostStats, error) {
	var s domain.CostStats
	if _, err := r.load(ctx, KeyCostStats, &s); err != nil {
		return domain.CostStats{}, fmt.Errorf("load cost stats: %w", err)
	}
	return s, nil
}

func (r *Repository) SaveCostStats(ctx context.Context, s domain.CostStats) error {
	return r.save(ctx, KeyCostStats, s)
}

func (r *Repository) ResetCostStats(ctx context.Context) error {
	return r.store.Delete(ctx, domain.OwnerFrom(ctx), KeyCostStats)
}

func (r *Repository) CoverLetter(ctx context.Context) (*domain.CoverLetter, error) {
	var cl domain.CoverLetter
	ok, err := r.load(ctx, KeyCoverLetter, &cl)
	if err != nil || !ok {
		return nil, err
	}
	return &cl, nil
}

func (r *Repository) SaveCoverLetter(ctx context.Context, cl domain.CoverLetter) error {
	return r.save(ctx, KeyCoverLetter, cl)
}
