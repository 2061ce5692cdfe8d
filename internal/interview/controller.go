package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/set-night/interviewcoach/internal/chat"
	"github.com/set-night/interviewcoach/internal/domain"
	"github.com/set-night/interviewcoach/internal/prompt"
)

// errUnanswered marks a repeated message id whose turn failed and may be
// sent again.
var errUnanswered = errors.New("message not answered")

// WarningNoPlan is recorded when planning fails and the interview
// continues without a plan.
const WarningNoPlan = "Не удалось составить план интервью - будут общие вопросы"

// Backend is the orchestration layer a session talks to.
type Backend interface {
	Plan(ctx context.Context, c domain.Context, settings domain.Settings) (*domain.InterviewPlan, error)
	Chat(ctx context.Context, req chat.Request) (*chat.Reply, error)
}

// TranscriptSink persists finished interviews and assigns their ids.
type TranscriptSink interface {
	AppendTranscript(ctx context.Context, t domain.Transcript) (domain.Transcript, error)
}

type Progress struct {
	QuestionsAsked           int                     `json:"questionsAsked"`
	CanComplete              bool                    `json:"canComplete"`
	IsAISuggestingCompletion bool                    `json:"isAISuggestingCompletion"`
	CompletionReason         domain.CompletionReason `json:"completionReason,omitempty"`
}

// TurnError is the recoverable failure of the last user turn.
type TurnError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	CanRetry bool   `json:"canRetry"`
}

func newTurnError(err error) *TurnError {
	if e, ok := domain.AsError(err); ok {
		return &TurnError{Code: e.Code, Message: e.Message, CanRetry: e.CanRetry()}
	}
	return &TurnError{Code: domain.CodeInternal, Message: "Ошибка подключения к серверу", CanRetry: true}
}

// Snapshot is a read-only copy of session state.
type Snapshot struct {
	ID           string                   `json:"id"`
	Phase        Phase                    `json:"phase"`
	Messages     []domain.Message         `json:"messages"`
	Plan         *domain.InterviewPlan    `json:"interviewPlan"`
	Progress     Progress                 `json:"progress"`
	Context      domain.ContextValidation `json:"context"`
	Error        *TurnError               `json:"error,omitempty"`
	InFlight     bool                     `json:"isLoading"`
	TranscriptID int64                    `json:"transcriptId,omitempty"`
	StartedAt    time.Time                `json:"startedAt"`
}

// Controller drives one interview session. Operations are serialised by
// mu, which is released while a provider call is outstanding; inFlight
// rejects any submission made in that window.
type Controller struct {
	mu       sync.Mutex
	id       string
	owner    string
	backend  Backend
	sink     TranscriptSink
	prompts  *prompt.Builder
	settings domain.Settings
	now      func() time.Time

	phase        Phase
	dc           domain.Context
	validation   domain.ContextValidation
	plan         *domain.InterviewPlan
	messages     []domain.Message
	seen         map[string]struct{}
	progress     Progress
	inFlight     bool
	pending      *domain.Message
	turnErr      *TurnError
	startedAt    time.Time
	lastActive   time.Time
	transcriptID int64
}

func NewController(owner string, backend Backend, sink TranscriptSink, prompts *prompt.Builder, settings domain.Settings) *Controller {
	now := time.Now()
	return &Controller{
		id:         uuid.NewString(),
		owner:      owner,
		backend:    backend,
		sink:       sink,
		prompts:    prompts,
		settings:   settings,
		now:        time.Now,
		phase:      PhaseInitializing,
		seen:       make(map[string]struct{}),
		startedAt:  now,
		lastActive: now,
	}
}

func (c *Controller) ID() string { return c.id }

func (c *Controller) ownerCtx(ctx context.Context) context.Context {
	return domain.WithOwner(ctx, c.owner)
}

// fire applies ev to the current phase.
func (c *Controller) fire(ev Event) error {
	next, err := Transition(c.phase, ev)
	if err != nil {
		return err
	}
	if next != c.phase {
		slog.Debug("session phase changed", "session_id", c.id, "from", c.phase, "to", next, "event", ev)
	}
	c.phase = next
	return nil
}

// Start validates the context, requests a plan and posts the greeting.
// A failed plan is not fatal: the session proceeds without one.
func (c *Controller) Start(ctx context.Context, dc domain.Context) error {
	c.mu.Lock()
	if c.phase != PhaseInitializing {
		c.mu.Unlock()
		return fmt.Errorf("start session: %w", domain.ErrInvalidTransition)
	}
	c.dc = dc
	c.validation = dc.Validate()
	if err := c.fire(EventContextRead); err != nil {
		c.mu.Unlock()
		return err
	}
	c.inFlight = true
	settings := c.settings
	c.mu.Unlock()

	plan, planErr := c.backend.Plan(c.ownerCtx(ctx), dc, settings)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	c.lastActive = c.now()

	if planErr != nil || plan == nil {
		slog.Warn("planning failed, proceeding without plan", "session_id", c.id, "error", planErr)
		c.plan = nil
		c.validation.Warnings = append(c.validation.Warnings, WarningNoPlan)
		if err := c.fire(EventPlanFailed); err != nil {
			return err
		}
	} else {
		c.plan = plan
		if err := c.fire(EventPlanReady); err != nil {
			return err
		}
	}

	greeting := domain.NewMessage(domain.SenderAI, c.prompts.Greeting(dc.PositionName()), c.now())
	greeting.ID = domain.NewMessageID("greeting", c.now())
	greeting.IsGreeting = true
	c.appendLocked(greeting)
	return nil
}

// Append adds m unless a message with the same id is already present.
// It reports whether the message was added.
func (c *Controller) Append(m domain.Message) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseCompleted {
		return false, domain.ErrSessionCompleted
	}
	if !m.Sender.Valid() {
		return false, domain.NewValidation(fmt.Sprintf("invalid sender %q", m.Sender))
	}
	return c.appendLocked(m), nil
}

func (c *Controller) appendLocked(m domain.Message) bool {
	if _, dup := c.seen[m.ID]; dup {
		return false
	}
	c.seen[m.ID] = struct{}{}
	c.messages = append(c.messages, m)
	if m.Sender == domain.SenderAI {
		c.progress.QuestionsAsked++
	}
	return true
}

// history is the conversation sent with a turn: every message before the
// one being answered, without the synthetic greeting.
func (c *Controller) history(before int) []domain.Message {
	out := make([]domain.Message, 0, before)
	for _, m := range c.messages[:before] {
		if m.IsGreeting {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (c *Controller) checkInput() error {
	switch {
	case c.phase == PhaseCompleted:
		return domain.ErrSessionCompleted
	case c.phase == PhaseError:
		return domain.ErrSessionFaulted
	case c.inFlight:
		return domain.ErrRequestInFlight
	}
	return nil
}

// Send appends the user's message once and asks the backend for the next
// interviewer turn. On failure the user message stays, no AI message is
// added and a retryable error is recorded.
//
// A non-empty id names the message on the client side. Sending an id that
// is already in the session returns the reply it got, or retries its turn
// if that failed, and never appends the message twice.
func (c *Controller) Send(ctx context.Context, id, text string) (*domain.Message, error) {
	text = strings.TrimSpace(text)

	c.mu.Lock()
	if _, dup := c.seen[id]; id != "" && dup {
		reply, err := c.replayLocked(id)
		c.mu.Unlock()
		if errors.Is(err, errUnanswered) {
			return c.Retry(ctx)
		}
		return reply, err
	}
	if text == "" {
		c.mu.Unlock()
		return nil, domain.ErrEmptyInput
	}
	if err := c.checkInput(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if err := c.fire(EventUserSend); err != nil {
		c.mu.Unlock()
		return nil, err
	}

	user := domain.NewMessage(domain.SenderUser, text, c.now())
	if id != "" {
		user.ID = id
	}
	before := len(c.messages)
	c.appendLocked(user)
	req := c.requestLocked(user, before)
	c.mu.Unlock()

	return c.exchange(ctx, user, req)
}

// replayLocked resolves a repeated user message id to the interviewer
// reply that followed it.
func (c *Controller) replayLocked(id string) (*domain.Message, error) {
	for i, m := range c.messages {
		if m.ID != id {
			continue
		}
		if m.Sender != domain.SenderUser {
			return nil, domain.NewValidation(fmt.Sprintf("message id %q is already taken", id))
		}
		if i+1 < len(c.messages) && c.messages[i+1].Sender == domain.SenderAI {
			reply := c.messages[i+1]
			return &reply, nil
		}
		break
	}
	switch {
	case c.inFlight:
		return nil, domain.ErrRequestInFlight
	case c.pending != nil && c.pending.ID == id:
		return nil, errUnanswered
	}
	return nil, fmt.Errorf("replay message %s: %w", id, domain.ErrInvalidTransition)
}

// Retry re-sends the last unanswered user message without appending it again.
func (c *Controller) Retry(ctx context.Context) (*domain.Message, error) {
	c.mu.Lock()
	if err := c.checkInput(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if c.pending == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("retry turn: %w", domain.ErrInvalidTransition)
	}
	if err := c.fire(EventUserSend); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	user := *c.pending
	before := len(c.messages)
	for i, m := range c.messages {
		if m.ID == user.ID {
			before = i
			break
		}
	}
	req := c.requestLocked(user, before)
	c.mu.Unlock()

	return c.exchange(ctx, user, req)
}

func (c *Controller) requestLocked(user domain.Message, before int) chat.Request {
	c.inFlight = true
	c.turnErr = nil
	c.lastActive = c.now()
	return chat.Request{
		Message:  user.Text,
		Context:  c.dc,
		History:  c.history(before),
		Settings: c.settings,
		Mode:     domain.ModeInterview,
		Plan:     c.plan,
	}
}

func (c *Controller) exchange(ctx context.Context, user domain.Message, req chat.Request) (*domain.Message, error) {
	reply, err := c.backend.Chat(c.ownerCtx(ctx), req)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	c.lastActive = c.now()

	if err != nil {
		c.pending = &user
		c.turnErr = newTurnError(err)
		if ferr := c.fire(EventReplyFailed); ferr != nil {
			return nil, errors.Join(err, ferr)
		}
		slog.Warn("interview turn failed", "session_id", c.id, "error", err)
		return nil, err
	}
	if err := c.fire(EventReplyOK); err != nil {
		return nil, err
	}

	ai := domain.Message{
		ID:                    domain.NewMessageID("ai", c.now()),
		Text:                  reply.Message,
		Sender:                domain.SenderAI,
		Timestamp:             c.now().UTC(),
		Model:                 reply.Model,
		Usage:                 &reply.Usage,
		IsCompletionSuggested: reply.IsCompletionSuggested,
	}
	c.appendLocked(ai)
	c.pending = nil
	if reply.IsCompletionSuggested {
		c.progress.IsAISuggestingCompletion = true
		c.progress.CanComplete = true
	}
	return &ai, nil
}

// End persists exactly one transcript and freezes the session. If the
// transcript cannot be stored the session moves to the error phase.
func (c *Controller) End(ctx context.Context) (domain.Transcript, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase == PhaseCompleted {
		return domain.Transcript{}, domain.ErrSessionCompleted
	}
	if c.inFlight {
		return domain.Transcript{}, domain.ErrRequestInFlight
	}
	if _, err := Transition(c.phase, EventEnd); err != nil {
		return domain.Transcript{}, err
	}

	reason := domain.CompletionUserRequested
	if c.progress.IsAISuggestingCompletion {
		reason = domain.CompletionAISuggested
	}
	now := c.now().UTC()
	startedAt := c.startedAt.UTC()
	if len(c.messages) > 0 {
		startedAt = c.messages[0].Timestamp
	}
	messages := make([]domain.Message, len(c.messages))
	copy(messages, c.messages)

	t := domain.Transcript{
		Messages:         messages,
		InterviewPlan:    c.plan,
		StartedAt:        startedAt,
		EndedAt:          now,
		Status:           string(PhaseCompleted),
		MessagesCount:    len(messages),
		QuestionsAsked:   c.progress.QuestionsAsked,
		CompletionReason: reason,
		Context:          c.validation,
	}

	saved, err := c.sink.AppendTranscript(c.ownerCtx(ctx), t)
	if err != nil {
		c.turnErr = newTurnError(err)
		if ferr := c.fire(EventFault); ferr != nil {
			return domain.Transcript{}, errors.Join(err, ferr)
		}
		return domain.Transcript{}, fmt.Errorf("save transcript: %w", err)
	}

	if err := c.fire(EventEnd); err != nil {
		return domain.Transcript{}, err
	}
	c.progress.CanComplete = true
	c.progress.CompletionReason = reason
	c.transcriptID = saved.ID
	c.lastActive = c.now()
	slog.Info("interview completed",
		"session_id", c.id,
		"transcript_id", saved.ID,
		"messages", saved.MessagesCount,
		"reason", reason,
	)
	return saved, nil
}

// ClearError drops the turn error flag. A session in the error phase
// resumes interviewing if it had started, otherwise it restarts.
func (c *Controller) ClearError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turnErr = nil
	if c.phase != PhaseError {
		return nil
	}
	if len(c.messages) > 0 {
		return c.fire(EventRecover)
	}
	return c.fire(EventRestart)
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	messages := make([]domain.Message, len(c.messages))
	copy(messages, c.messages)
	validation := c.validation
	validation.Warnings = append([]string(nil), c.validation.Warnings...)

	var turnErr *TurnError
	if c.turnErr != nil {
		e := *c.turnErr
		turnErr = &e
	}
	return Snapshot{
		ID:           c.id,
		Phase:        c.phase,
		Messages:     messages,
		Plan:         c.plan,
		Progress:     c.progress,
		Context:      validation,
		Error:        turnErr,
		InFlight:     c.inFlight,
		TranscriptID: c.transcriptID,
		StartedAt:    c.startedAt,
	}
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Controller) idleSince() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive, c.inFlight
}
