package prompt

import (
	"strings"

	"github.com/set-night/interviewcoach/internal/config"
	"github.com/set-night/interviewcoach/internal/domain"
)

// HistoryWindow is how many trailing messages the continuation prompt carries.
const HistoryWindow = config.HistoryWindow

// Builder renders prompts for both providers from one set of templates.
type Builder struct {
	t Templates
}

func NewBuilder(t Templates) *Builder {
	return &Builder{t: t}
}

// With returns a builder whose templates are overridden per owner.
func (b *Builder) With(o domain.PromptOverrides) *Builder {
	return &Builder{t: b.t.Merge(Templates{
		Interview:    o.Interview,
		Continuation: o.Continuation,
		Feedback:     o.Feedback,
		CoverLetter:  o.CoverLetter,
	})}
}

func (b *Builder) Templates() Templates {
	return b.t
}

// RoleLabel is the speaker name used when a message is rendered into a prompt.
func RoleLabel(s domain.Sender) string {
	if s == domain.SenderUser {
		return "Кандидат"
	}
	return "Интервьюер"
}

// Transcript renders messages as "<role>: <text>" lines.
func Transcript(messages []domain.Message) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, RoleLabel(m.Sender)+": "+m.Text)
	}
	return strings.Join(lines, "\n")
}

func (b *Builder) Interview(c domain.Context) string {
	return fill(b.t.Interview, map[string]string{
		"jobText":    orDefault(c.JobText, b.t.Fallbacks.InterviewJob),
		"resumeText": orDefault(c.ResumeText, b.t.Fallbacks.InterviewResume),
	})
}

// Continuation condenses the last HistoryWindow messages and the new message.
func (b *Builder) Continuation(history []domain.Message, message string) string {
	if len(history) > HistoryWindow {
		history = history[len(history)-HistoryWindow:]
	}
	return fill(b.t.Continuation, map[string]string{
		"conversation": Transcript(history),
		"message":      message,
	})
}

// ChatSystemPrompt uses the plan prompt verbatim on the first turn and the
// condensed continuation prompt on every other turn.
func (b *Builder) ChatSystemPrompt(history []domain.Message, plan *domain.InterviewPlan, message string) string {
	if len(history) == 0 && plan != nil && plan.SystemPrompt != "" {
		return plan.SystemPrompt
	}
	return b.Continuation(history, message)
}

func (b *Builder) Feedback(messages []domain.Message, c domain.Context) string {
	return fill(b.t.Feedback, map[string]string{
		"jobText":      orDefault(c.JobText, b.t.Fallbacks.Job),
		"resumeText":   orDefault(c.ResumeText, b.t.Fallbacks.Resume),
		"conversation": Transcript(messages),
	})
}

func (b *Builder) FeedbackRequest() string {
	return b.t.FeedbackRequest
}

func (b *Builder) CoverLetter(c domain.Context) string {
	return fill(b.t.CoverLetter, map[string]string{
		"jobText":    orDefault(c.JobText, b.t.Fallbacks.Job),
		"resumeText": orDefault(c.ResumeText, b.t.Fallbacks.CoverLetterResume),
	})
}

func (b *Builder) CoverLetterRequest() string {
	return b.t.CoverLetterRequest
}

// ConnectionTest returns the system prompt and message of the connection test.
func (b *Builder) ConnectionTest() (system, message string) {
	return b.t.CheckSystem, b.t.CheckMessage
}

func (b *Builder) Greeting(position string) string {
	return fill(b.t.Greeting, map[string]string{
		"position": orDefault(position, b.t.Fallbacks.Position),
	})
}

// CompletionFallback is the closing line used when the interviewer's reply
// held nothing but the completion marker.
func (b *Builder) CompletionFallback() string {
	return b.t.CompletionFallback
}

func fill(tmpl string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
