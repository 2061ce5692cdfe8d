package chat

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/set-night/interviewcoach/internal/config"
	"github.com/set-night/interviewcoach/internal/domain"
)

// Validate checks a chat request before any provider call is made. All
// problems are reported together.
func Validate(req Request) error {
	var details []string

	if strings.TrimSpace(req.Message) == "" {
		details = append(details, "Message is required and must be a non-empty string")
	}
	if utf8.RuneCountInString(req.Message) > config.MaxMessageLen {
		details = append(details, fmt.Sprintf("Message is too long (max %d characters)", config.MaxMessageLen))
	}
	if req.Mode != "" && !req.Mode.Valid() {
		details = append(details, `Mode must be either "planning" or "interview"`)
	}
	for i, m := range req.History {
		if !m.Sender.Valid() {
			details = append(details, fmt.Sprintf("Conversation history entry %d has invalid sender %q", i, m.Sender))
		}
	}

	if len(details) > 0 {
		return domain.NewValidation(details...)
	}
	return nil
}
