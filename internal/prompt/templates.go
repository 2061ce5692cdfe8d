package prompt

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Fallbacks fill placeholders when the context is empty.
type Fallbacks struct {
	InterviewJob      string `yaml:"interview_job"`
	InterviewResume   string `yaml:"interview_resume"`
	Job               string `yaml:"job"`
	Resume            string `yaml:"resume"`
	CoverLetterResume string `yaml:"cover_letter_resume"`
	Position          string `yaml:"position"`
}

// Templates holds every prompt text. Placeholders are {jobText},
// {resumeText}, {conversation}, {message} and {position}.
type Templates struct {
	Interview          string    `yaml:"interview"`
	Continuation       string    `yaml:"continuation"`
	Feedback           string    `yaml:"feedback"`
	CoverLetter        string    `yaml:"cover_letter"`
	Greeting           string    `yaml:"greeting"`
	CompletionFallback string    `yaml:"completion_fallback"`
	FeedbackRequest    string    `yaml:"feedback_request"`
	CoverLetterRequest string    `yaml:"cover_letter_request"`
	CheckSystem        string    `yaml:"check_system"`
	CheckMessage       string    `yaml:"check_message"`
	Fallbacks          Fallbacks `yaml:"fallbacks"`
}

// Default returns the embedded templates.
func Default() Templates {
	var t Templates
	if err := yaml.Unmarshal(defaultYAML, &t); err != nil {
		panic(fmt.Sprintf("parse embedded prompts: %v", err))
	}
	return t
}

// Load reads the embedded templates and overlays the file at path, if any.
func Load(path string) (Templates, error) {
	t := Default()
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Templates{}, fmt.Errorf("read prompts file: %w", err)
	}
	var override Templates
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Templates{}, fmt.Errorf("parse prompts file: %w", err)
	}
	return t.Merge(override), nil
}

// Merge returns t with every non-empty field of o applied.
func (t Templates) Merge(o Templates) Templates {
	pick := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	pick(&t.Interview, o.Interview)
	pick(&t.Continuation, o.Continuation)
	pick(&t.Feedback, o.Feedback)
	pick(&t.CoverLetter, o.CoverLetter)
	pick(&t.Greeting, o.Greeting)
	pick(&t.CompletionFallback, o.CompletionFallback)
	pick(&t.FeedbackRequest, o.FeedbackRequest)
	pick(&t.CoverLetterRequest, o.CoverLetterRequest)
	pick(&t.CheckSystem, o.CheckSystem)
	pick(&t.CheckMessage, o.CheckMessage)
	pick(&t.Fallbacks.InterviewJob, o.Fallbacks.InterviewJob)
	pick(&t.Fallbacks.InterviewResume, o.Fallbacks.InterviewResume)
	pick(&t.Fallbacks.Job, o.Fallbacks.Job)
	pick(&t.Fallbacks.Resume, o.Fallbacks.Resume)
	pick(&t.Fallbacks.CoverLetterResume, o.Fallbacks.CoverLetterResume)
	pick(&t.Fallbacks.Position, o.Fallbacks.Position)
	return t
}
