package domain

import (
	"strings"
	"unicode"
)

// MinContextLength is the number of non-whitespace characters a job or
// résumé text needs to count as present.
const MinContextLength = 10

const (
	WarningNoJob    = "Нет информации о вакансии - будут общие вопросы"
	WarningNoResume = "Нет резюме - фокус на вакансии и общих вопросах"
)

// Context is the job and résumé material an interview is tailored to.
type Context struct {
	JobText    string `json:"jobText"`
	ResumeText string `json:"resumeText"`
	JobTitle   string `json:"jobTitle,omitempty"`
	Company    string `json:"company,omitempty"`
}

type ContextValidation struct {
	HasJob     bool     `json:"hasJob"`
	HasResume  bool     `json:"hasResume"`
	Warnings   []string `json:"warnings"`
	CanProceed bool     `json:"canProceed"`
}

// Validate never blocks an interview; missing material only produces warnings.
func (c Context) Validate() ContextValidation {
	v := ContextValidation{
		HasJob:     present(c.JobText),
		HasResume:  present(c.ResumeText),
		Warnings:   []string{},
		CanProceed: true,
	}
	if !v.HasJob {
		v.Warnings = append(v.Warnings, WarningNoJob)
	}
	if !v.HasResume {
		v.Warnings = append(v.Warnings, WarningNoResume)
	}
	return v
}

func present(s string) bool {
	n := 0
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		n++
		if n >= MinContextLength {
			return true
		}
	}
	return false
}

// PositionName is the job title if known, else the first non-empty line of the job text.
func (c Context) PositionName() string {
	if t := strings.TrimSpace(c.JobTitle); t != "" {
		return t
	}
	for _, line := range strings.Split(c.JobText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if r := []rune(line); len(r) > 80 {
			return ""
		}
		return line
	}
	return ""
}
