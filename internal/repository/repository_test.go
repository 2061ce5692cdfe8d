package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/set-night/interviewcoach/internal/domain"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestStoreContract(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			v, err := s.Get(ctx, "a", "missing")
			if err != nil || v != nil {
				t.Fatalf("missing key: got %q, %v", v, err)
			}

			if err := s.Set(ctx, "a", "k", []byte("one")); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if err := s.Set(ctx, "a", "k", []byte("two")); err != nil {
				t.Fatalf("Set: %v", err)
			}
			v, _ = s.Get(ctx, "a", "k")
			if string(v) != "two" {
				t.Errorf("last write should win, got %q", v)
			}

			if v, _ := s.Get(ctx, "b", "k"); v != nil {
				t.Errorf("owners must not share keys, got %q", v)
			}

			s.Set(ctx, "a", "feedback_2", []byte("x"))
			s.Set(ctx, "a", "feedback_1", []byte("x"))
			keys, err := s.Keys(ctx, "a", "feedback_")
			if err != nil {
				t.Fatalf("Keys: %v", err)
			}
			if len(keys) != 2 || keys[0] != "feedback_1" || keys[1] != "feedback_2" {
				t.Errorf("Keys = %v", keys)
			}

			if err := s.Delete(ctx, "a", "k"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if v, _ := s.Get(ctx, "a", "k"); v != nil {
				t.Errorf("deleted key still present: %q", v)
			}
			if err := s.Delete(ctx, "a", "never-set"); err != nil {
				t.Errorf("deleting a missing key: %v", err)
			}
		})
	}
}

func TestRepositoryContext(t *testing.T) {
	repo := New(NewMemoryStore())
	ctx := domain.WithOwner(context.Background(), "client-1")

	dc, err := repo.Context(ctx)
	if err != nil {
		t.Fatalf("Context: %v", err)
	}
	if dc != (domain.Context{}) {
		t.Errorf("empty store should give empty context, got %+v", dc)
	}

	if err := repo.SaveJob(ctx, JobData{Description: "Go developer", Title: "Backend", Company: "Acme"}); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}
	if err := repo.SaveResume(ctx, ResumeData{Content: "Five years of Go"}); err != nil {
		t.Fatalf("SaveResume: %v", err)
	}

	dc, _ = repo.Context(ctx)
	if dc.JobText != "Go developer" || dc.JobTitle != "Backend" || dc.Company != "Acme" {
		t.Errorf("job not mapped: %+v", dc)
	}
	if dc.ResumeText != "Five years of Go" {
		t.Errorf("resume not mapped: %+v", dc)
	}

	other, _ := repo.Context(domain.WithOwner(context.Background(), "client-2"))
	if other.JobText != "" {
		t.Errorf("context leaked across owners")
	}
}

func TestAppendTranscriptIDs(t *testing.T) {
	repo := New(NewMemoryStore())
	fixed := time.UnixMilli(1_700_000_000_000)
	repo.now = func() time.Time { return fixed }
	ctx := context.Background()

	var last int64
	for i := 0; i < 5; i++ {
		tr, err := repo.AppendTranscript(ctx, domain.Transcript{MessagesCount: i})
		if err != nil {
			t.Fatalf("AppendTranscript: %v", err)
		}
		if tr.ID <= last {
			t.Fatalf("id %d not greater than %d", tr.ID, last)
		}
		last = tr.ID
	}
	if first, _ := repo.Transcripts(ctx); first[0].ID != fixed.UnixMilli() {
		t.Errorf("first id should be creation time, got %d", first[0].ID)
	}

	got, err := repo.Transcript(ctx, last)
	if err != nil || got.MessagesCount != 4 {
		t.Errorf("Transcript(%d) = %+v, %v", last, got, err)
	}
	latest, _ := repo.LatestTranscript(ctx)
	if latest.ID != last {
		t.Errorf("LatestTranscript = %d, want %d", latest.ID, last)
	}
	if _, err := repo.Transcript(ctx, 1); !errors.Is(err, domain.ErrTranscriptNotFound) {
		t.Errorf("unknown id: %v", err)
	}
}

func TestClearTranscriptsDropsFeedback(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			repo := New(s)
			ctx := context.Background()

			tr, _ := repo.AppendTranscript(ctx, domain.Transcript{})
			if err := repo.SaveFeedback(ctx, domain.Feedback{TranscriptID: tr.ID, Text: "good"}); err != nil {
				t.Fatalf("SaveFeedback: %v", err)
			}
			fb, err := repo.Feedback(ctx, tr.ID)
			if err != nil || fb == nil || fb.Text != "good" {
				t.Fatalf("Feedback = %+v, %v", fb, err)
			}
			ids, _ := repo.FeedbackIDs(ctx)
			if len(ids) != 1 || ids[0] != tr.ID {
				t.Errorf("FeedbackIDs = %v", ids)
			}

			if err := repo.ClearTranscripts(ctx); err != nil {
				t.Fatalf("ClearTranscripts: %v", err)
			}
			list, _ := repo.Transcripts(ctx)
			if len(list) != 0 {
				t.Errorf("transcripts not cleared: %d", len(list))
			}
			if fb, _ := repo.Feedback(ctx, tr.ID); fb != nil {
				t.Errorf("feedback not cleared")
			}
		})
	}
}

func TestSettingsAndCoverLetter(t *testing.T) {
	repo := New(NewMemoryStore())
	ctx := context.Background()

	s, err := repo.Settings(ctx)
	if err != nil || s.Provider != "" {
		t.Fatalf("default settings = %+v, %v", s, err)
	}
	temp := 0.4
	if err := repo.SaveSettings(ctx, domain.Settings{Provider: domain.ProviderOpenRouter, Temperature: &temp}); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	s, _ = repo.Settings(ctx)
	if s.Provider != domain.ProviderOpenRouter || s.Temperature == nil || *s.Temperature != 0.4 {
		t.Errorf("settings round trip: %+v", s)
	}

	if cl, _ := repo.CoverLetter(ctx); cl != nil {
		t.Errorf("expected no cover letter")
	}
	repo.SaveCoverLetter(ctx, domain.CoverLetter{Text: "Dear team"})
	if cl, _ := repo.CoverLetter(ctx); cl == nil || cl.Text != "Dear team" {
		t.Errorf("cover letter = %+v", cl)
	}
}
