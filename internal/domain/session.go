package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderAI
}

type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Message is one chat entry. Messages are never edited after they are appended.
type Message struct {
	ID                    string    `json:"id"`
	Text                  string    `json:"text"`
	Sender                Sender    `json:"sender"`
	Timestamp             time.Time `json:"timestamp"`
	Model                 string    `json:"model,omitempty"`
	Usage                 *Usage    `json:"usage,omitempty"`
	IsCompletionSuggested bool      `json:"isCompletionSuggested,omitempty"`
	IsGreeting            bool      `json:"isGreeting,omitempty"`
}

// NewMessageID returns "<prefix>_<unix millis>_<random>". The random part comes
// from a v4 UUID, so two ids minted in the same millisecond still differ.
func NewMessageID(prefix string, now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s_%d_%s", prefix, now.UnixMilli(), random[:12])
}

func NewMessage(sender Sender, text string, now time.Time) Message {
	return Message{
		ID:        NewMessageID(string(sender), now),
		Text:      text,
		Sender:    sender,
		Timestamp: now.UTC(),
	}
}

type CompletionReason string

const (
	CompletionAISuggested   CompletionReason = "ai_suggested"
	CompletionUserRequested CompletionReason = "user_requested"
)

// Transcript is the persisted record of a finished interview.
type Transcript struct {
	ID               int64             `json:"id"`
	Messages         []Message         `json:"messages"`
	InterviewPlan    *InterviewPlan    `json:"interviewPlan"`
	StartedAt        time.Time         `json:"startedAt"`
	EndedAt          time.Time         `json:"endedAt"`
	Status           string            `json:"status"`
	MessagesCount    int               `json:"messagesCount"`
	QuestionsAsked   int               `json:"questionsAsked"`
	CompletionReason CompletionReason  `json:"completionReason"`
	Context          ContextValidation `json:"context"`
}

// Feedback is the cached post-interview analysis for one transcript.
type Feedback struct {
	TranscriptID int64     `json:"transcriptId"`
	Text         string    `json:"text"`
	Model        string    `json:"model"`
	Usage        Usage     `json:"usage"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CoverLetter is the last generated letter for an owner.
type CoverLetter struct {
	Text      string    `json:"text"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"createdAt"`
}
