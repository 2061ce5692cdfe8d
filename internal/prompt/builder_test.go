package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/set-night/interviewcoach/internal/domain"
)

func history(n int) []domain.Message {
	out := make([]domain.Message, 0, n)
	now := time.Now()
	for i := 0; i < n; i++ {
		sender := domain.SenderUser
		if i%2 == 1 {
			sender = domain.SenderAI
		}
		out = append(out, domain.NewMessage(sender, fmt.Sprintf("msg-%02d", i), now))
	}
	return out
}

func TestInterviewFallbacks(t *testing.T) {
	b := NewBuilder(Default())
	got := b.Interview(domain.Context{})
	if !strings.Contains(got, "ВАКАНСИЯ: Общее собеседование") {
		t.Errorf("missing job fallback:\n%s", got)
	}
	if !strings.Contains(got, "РЕЗЮМЕ: Резюме не предоставлено") {
		t.Errorf("missing resume fallback:\n%s", got)
	}

	got = b.Interview(domain.Context{JobText: "Go developer", ResumeText: "5 years of Go"})
	if !strings.Contains(got, "ВАКАНСИЯ: Go developer") || !strings.Contains(got, "РЕЗЮМЕ: 5 years of Go") {
		t.Errorf("context not substituted:\n%s", got)
	}
}

func TestChatSystemPromptFirstTurnUsesPlan(t *testing.T) {
	b := NewBuilder(Default())
	plan := &domain.InterviewPlan{SystemPrompt: "PLAN PROMPT"}

	if got := b.ChatSystemPrompt(nil, plan, "hello"); got != "PLAN PROMPT" {
		t.Errorf("first turn = %q, want plan prompt verbatim", got)
	}
	got := b.ChatSystemPrompt(nil, nil, "hello")
	if !strings.Contains(got, "ПОСЛЕДНЕЕ СООБЩЕНИЕ КАНДИДАТА: hello") {
		t.Errorf("no plan should fall back to continuation prompt:\n%s", got)
	}
}

func TestContinuationKeepsLastTenMessages(t *testing.T) {
	b := NewBuilder(Default())
	got := b.ChatSystemPrompt(history(14), &domain.InterviewPlan{SystemPrompt: "PLAN"}, "latest")

	if strings.Contains(got, "PLAN") {
		t.Error("plan prompt must only be used on the first turn")
	}
	for i := 0; i < 4; i++ {
		if strings.Contains(got, fmt.Sprintf("msg-%02d", i)) {
			t.Errorf("msg-%02d should be outside the window", i)
		}
	}
	for i := 4; i < 14; i++ {
		if !strings.Contains(got, fmt.Sprintf("msg-%02d", i)) {
			t.Errorf("msg-%02d missing from window", i)
		}
	}
	if !strings.Contains(got, "Кандидат: msg-04") || !strings.Contains(got, "Интервьюер: msg-05") {
		t.Errorf("role labels missing:\n%s", got)
	}
}

func TestGreeting(t *testing.T) {
	b := NewBuilder(Default())
	if got := b.Greeting(""); !strings.Contains(got, "на позицию интересующую вас позицию.") {
		t.Errorf("Greeting(\"\") = %q", got)
	}
	if got := b.Greeting("Backend Engineer"); !strings.Contains(got, "на позицию Backend Engineer.") {
		t.Errorf("Greeting = %q", got)
	}
}

func TestFeedbackAndCoverLetter(t *testing.T) {
	b := NewBuilder(Default())
	msgs := history(2)
	fb := b.Feedback(msgs, domain.Context{})
	if !strings.Contains(fb, "Информация о вакансии не предоставлена") {
		t.Error("feedback prompt missing job fallback")
	}
	if !strings.Contains(fb, "ДИАЛОГ: Кандидат: msg-00\nИнтервьюер: msg-01") {
		t.Errorf("feedback dialogue not rendered:\n%s", fb)
	}

	cl := b.CoverLetter(domain.Context{JobText: "SRE"})
	if !strings.Contains(cl, "ВАКАНСИЯ: SRE") || !strings.Contains(cl, "РЕЗЮМЕ: Резюме не предоставлено") {
		t.Errorf("cover letter prompt:\n%s", cl)
	}
}

func TestOverrides(t *testing.T) {
	b := NewBuilder(Default()).With(domain.PromptOverrides{Interview: "custom {jobText}"})
	if got := b.Interview(domain.Context{JobText: "QA engineer"}); got != "custom QA engineer" {
		t.Errorf("override = %q", got)
	}
	if got := b.Greeting("X"); !strings.Contains(got, "Аня") {
		t.Error("non-overridden template changed")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	if err := os.WriteFile(path, []byte("greeting: \"Hi, {position}\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	tmpl, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := NewBuilder(tmpl).Greeting("Go"); got != "Hi, Go" {
		t.Errorf("Greeting = %q", got)
	}
	if tmpl.Interview == "" {
		t.Error("embedded templates lost after overlay")
	}

	if tmpl.CompletionFallback == "" || strings.Contains(tmpl.CompletionFallback, "INTERVIEW_COMPLETE") {
		t.Errorf("completion fallback = %q", tmpl.CompletionFallback)
	}

	closing := filepath.Join(t.TempDir(), "closing.yaml")
	if err := os.WriteFile(closing, []byte("completion_fallback: \"Bye\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	tmpl, err = Load(closing)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := NewBuilder(tmpl).CompletionFallback(); got != "Bye" {
		t.Errorf("CompletionFallback = %q", got)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
