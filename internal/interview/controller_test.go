package interview

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/set-night/interviewcoach/internal/chat"
	"github.com/set-night/interviewcoach/internal/domain"
	"github.com/set-night/interviewcoach/internal/prompt"
)

type fakeBackend struct {
	mu       sync.Mutex
	planErr  error
	replies  []chat.Reply
	errs     []error
	requests []chat.Request
	owners   []string
	block    chan struct{}
	entered  chan struct{}
}

func (f *fakeBackend) Plan(_ context.Context, c domain.Context, _ domain.Settings) (*domain.InterviewPlan, error) {
	if f.planErr != nil {
		return nil, f.planErr
	}
	return &domain.InterviewPlan{
		Summary:      domain.DefaultPlanSummary,
		Questions:    domain.DefaultPlanQuestions(),
		SystemPrompt: "plan:" + c.JobText,
	}, nil
}

func (f *fakeBackend) Chat(ctx context.Context, req chat.Request) (*chat.Reply, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.requests)
	f.requests = append(f.requests, req)
	f.owners = append(f.owners, domain.OwnerFrom(ctx))
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	reply := chat.Reply{Message: "Следующий вопрос", Model: "fake"}
	if i < len(f.replies) {
		reply = f.replies[i]
	}
	return &reply, nil
}

type memorySink struct {
	mu          sync.Mutex
	transcripts []domain.Transcript
	err         error
}

func (s *memorySink) AppendTranscript(_ context.Context, t domain.Transcript) (domain.Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return domain.Transcript{}, s.err
	}
	t.ID = int64(len(s.transcripts) + 1)
	s.transcripts = append(s.transcripts, t)
	return t, nil
}

var errProvider = &domain.Error{Kind: domain.KindTimeout, Code: domain.CodeTimeout, Message: "Таймаут"}

func startedController(t *testing.T, b *fakeBackend, sink *memorySink) *Controller {
	t.Helper()
	c := NewController("owner-1", b, sink, prompt.NewBuilder(prompt.Default()), domain.Settings{})
	if err := c.Start(context.Background(), domain.Context{JobText: "Senior Go Developer\nRemote"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return c
}

func countAI(msgs []domain.Message) int {
	n := 0
	for _, m := range msgs {
		if m.Sender == domain.SenderAI {
			n++
		}
	}
	return n
}

func TestStartPostsGreeting(t *testing.T) {
	c := startedController(t, &fakeBackend{}, &memorySink{})
	snap := c.Snapshot()

	if snap.Phase != PhaseInterviewing {
		t.Fatalf("phase = %s", snap.Phase)
	}
	if snap.Plan == nil || len(snap.Plan.Questions) != 5 {
		t.Errorf("plan = %+v", snap.Plan)
	}
	if len(snap.Messages) != 1 || !snap.Messages[0].IsGreeting || snap.Messages[0].Sender != domain.SenderAI {
		t.Fatalf("messages = %+v", snap.Messages)
	}
	if !strings.Contains(snap.Messages[0].Text, "на позицию Senior Go Developer.") {
		t.Errorf("greeting = %q", snap.Messages[0].Text)
	}
	if snap.Progress.QuestionsAsked != 1 {
		t.Errorf("questionsAsked = %d", snap.Progress.QuestionsAsked)
	}
	if !snap.Context.HasJob || snap.Context.HasResume || !snap.Context.CanProceed {
		t.Errorf("context = %+v", snap.Context)
	}
}

func TestPlanFailureIsSoft(t *testing.T) {
	c := startedController(t, &fakeBackend{planErr: errors.New("boom")}, &memorySink{})
	snap := c.Snapshot()

	if snap.Phase != PhaseInterviewing {
		t.Fatalf("phase = %s, want interviewing", snap.Phase)
	}
	if snap.Plan != nil {
		t.Error("plan should be nil")
	}
	found := false
	for _, w := range snap.Context.Warnings {
		if w == WarningNoPlan {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v", snap.Context.Warnings)
	}
}

func TestSendAppendsTurnAndCountsQuestions(t *testing.T) {
	b := &fakeBackend{}
	c := startedController(t, b, &memorySink{})

	for _, text := range []string{"Готов", "  Пять лет на Go  "} {
		if _, err := c.Send(context.Background(), "", text); err != nil {
			t.Fatalf("Send(%q): %v", text, err)
		}
	}
	snap := c.Snapshot()
	if len(snap.Messages) != 5 {
		t.Fatalf("messages = %d, want 5", len(snap.Messages))
	}
	if snap.Progress.QuestionsAsked != countAI(snap.Messages) {
		t.Errorf("questionsAsked = %d, ai messages = %d", snap.Progress.QuestionsAsked, countAI(snap.Messages))
	}
	if snap.Messages[3].Text != "Пять лет на Go" {
		t.Errorf("user text not trimmed: %q", snap.Messages[3].Text)
	}

	first, second := b.requests[0], b.requests[1]
	if len(first.History) != 0 || first.Plan == nil {
		t.Errorf("first turn should carry the plan and no history: %+v", first)
	}
	if len(second.History) != 2 || second.History[0].Text != "Готов" {
		t.Errorf("second turn history = %+v", second.History)
	}
	for _, h := range second.History {
		if h.IsGreeting {
			t.Error("greeting sent as history")
		}
	}
	if b.owners[0] != "owner-1" {
		t.Errorf("owner = %q", b.owners[0])
	}
}

func TestSendRejectsBlankInput(t *testing.T) {
	b := &fakeBackend{}
	c := startedController(t, b, &memorySink{})
	if _, err := c.Send(context.Background(), "", "  \n "); !errors.Is(err, domain.ErrEmptyInput) {
		t.Errorf("err = %v", err)
	}
	if len(b.requests) != 0 || len(c.Snapshot().Messages) != 1 {
		t.Error("blank input changed state")
	}
}

func TestSendFailureKeepsUserMessageOnce(t *testing.T) {
	b := &fakeBackend{errs: []error{errProvider}}
	c := startedController(t, b, &memorySink{})

	if _, err := c.Send(context.Background(), "", "Мой ответ"); !errors.Is(err, errProvider) {
		t.Fatalf("err = %v", err)
	}
	snap := c.Snapshot()
	if snap.Phase != PhaseInterviewing {
		t.Errorf("phase = %s", snap.Phase)
	}
	if len(snap.Messages) != 2 || snap.Messages[1].Sender != domain.SenderUser {
		t.Fatalf("messages = %+v", snap.Messages)
	}
	if snap.Error == nil || snap.Error.Code != domain.CodeTimeout || !snap.Error.CanRetry {
		t.Errorf("error = %+v", snap.Error)
	}

	ai, err := c.Retry(context.Background())
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	snap = c.Snapshot()
	if len(snap.Messages) != 3 || snap.Messages[2].ID != ai.ID {
		t.Fatalf("messages after retry = %+v", snap.Messages)
	}
	if snap.Error != nil {
		t.Error("error flag not cleared")
	}
	if b.requests[1].Message != "Мой ответ" || len(b.requests[1].History) != 0 {
		t.Errorf("retry request = %+v", b.requests[1])
	}
	if _, err := c.Retry(context.Background()); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("retry without pending turn: %v", err)
	}
}

func TestSendRepeatedIDIsAnsweredOnce(t *testing.T) {
	b := &fakeBackend{}
	c := startedController(t, b, &memorySink{})

	first, err := c.Send(context.Background(), "tg_17", "Мой ответ")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	again, err := c.Send(context.Background(), "tg_17", "Мой ответ")
	if err != nil {
		t.Fatalf("repeated Send: %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("repeated Send reply = %s, want %s", again.ID, first.ID)
	}
	if len(b.requests) != 1 {
		t.Errorf("provider calls = %d, want 1", len(b.requests))
	}
	if n := len(c.Snapshot().Messages); n != 3 {
		t.Errorf("messages = %d, want 3", n)
	}
}

func TestSendRepeatedIDRetriesFailedTurn(t *testing.T) {
	b := &fakeBackend{errs: []error{errProvider}}
	c := startedController(t, b, &memorySink{})

	if _, err := c.Send(context.Background(), "msg-1", "Мой ответ"); !errors.Is(err, errProvider) {
		t.Fatalf("err = %v", err)
	}
	ai, err := c.Send(context.Background(), "msg-1", "Мой ответ")
	if err != nil {
		t.Fatalf("repeated Send: %v", err)
	}
	snap := c.Snapshot()
	if len(snap.Messages) != 3 || snap.Messages[1].ID != "msg-1" || snap.Messages[2].ID != ai.ID {
		t.Fatalf("messages = %+v", snap.Messages)
	}
	if len(b.requests) != 2 || len(b.requests[1].History) != 0 {
		t.Errorf("requests = %+v", b.requests)
	}
}

func TestSendRejectsIDOfAIMessage(t *testing.T) {
	c := startedController(t, &fakeBackend{}, &memorySink{})
	greetingID := c.Snapshot().Messages[0].ID

	_, err := c.Send(context.Background(), greetingID, "ответ")
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("err = %v, want validation", err)
	}
	if n := len(c.Snapshot().Messages); n != 1 {
		t.Errorf("messages = %d, want 1", n)
	}
}

func TestConcurrentSubmissionRejected(t *testing.T) {
	b := &fakeBackend{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	c := startedController(t, b, &memorySink{})

	done := make(chan error, 1)
	go func() {
		_, err := c.Send(context.Background(), "", "first")
		done <- err
	}()
	<-b.entered

	if _, err := c.Send(context.Background(), "", "second"); !errors.Is(err, domain.ErrRequestInFlight) {
		t.Errorf("second send err = %v", err)
	}
	if _, err := c.End(context.Background()); !errors.Is(err, domain.ErrRequestInFlight) {
		t.Errorf("end while in flight err = %v", err)
	}
	if !c.Snapshot().InFlight {
		t.Error("snapshot should report in-flight")
	}

	close(b.block)
	if err := <-done; err != nil {
		t.Fatalf("first send: %v", err)
	}
	if got := len(c.Snapshot().Messages); got != 3 {
		t.Errorf("messages = %d, want 3", got)
	}
}

func TestAppendIsIdempotent(t *testing.T) {
	c := startedController(t, &fakeBackend{}, &memorySink{})
	m := domain.NewMessage(domain.SenderAI, "hi", time.Now())

	added, err := c.Append(m)
	if err != nil || !added {
		t.Fatalf("first append = %v, %v", added, err)
	}
	before := c.Snapshot()
	added, err = c.Append(m)
	if err != nil || added {
		t.Fatalf("second append = %v, %v", added, err)
	}
	after := c.Snapshot()
	if len(after.Messages) != len(before.Messages) || after.Progress.QuestionsAsked != before.Progress.QuestionsAsked {
		t.Error("duplicate append changed state")
	}
}

func TestEndPersistsOneTranscriptAndFreezes(t *testing.T) {
	sink := &memorySink{}
	c := startedController(t, &fakeBackend{}, sink)
	if _, err := c.Send(context.Background(), "", "ответ"); err != nil {
		t.Fatal(err)
	}

	tr, err := c.End(context.Background())
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if len(sink.transcripts) != 1 {
		t.Fatalf("transcripts = %d", len(sink.transcripts))
	}
	snap := c.Snapshot()
	if tr.MessagesCount != len(snap.Messages) || tr.MessagesCount != 3 {
		t.Errorf("messagesCount = %d, messages = %d", tr.MessagesCount, len(snap.Messages))
	}
	if tr.CompletionReason != domain.CompletionUserRequested || tr.Status != "completed" {
		t.Errorf("transcript = %+v", tr)
	}
	if !tr.StartedAt.Equal(snap.Messages[0].Timestamp) {
		t.Error("startedAt should be the first message timestamp")
	}
	if snap.Phase != PhaseCompleted || snap.TranscriptID != tr.ID {
		t.Errorf("snapshot = %+v", snap)
	}

	if _, err := c.Send(context.Background(), "", "ещё"); !errors.Is(err, domain.ErrSessionCompleted) {
		t.Errorf("send after end: %v", err)
	}
	if _, err := c.Append(domain.NewMessage(domain.SenderUser, "x", time.Now())); !errors.Is(err, domain.ErrSessionCompleted) {
		t.Errorf("append after end: %v", err)
	}
	if _, err := c.End(context.Background()); !errors.Is(err, domain.ErrSessionCompleted) {
		t.Errorf("second end: %v", err)
	}
	if len(sink.transcripts) != 1 || len(c.Snapshot().Messages) != 3 {
		t.Error("completed session was mutated")
	}
}

func TestEndAfterAISuggestion(t *testing.T) {
	b := &fakeBackend{replies: []chat.Reply{{Message: "Спасибо!", IsCompletionSuggested: true}}}
	c := startedController(t, b, &memorySink{})
	if _, err := c.Send(context.Background(), "", "ответ"); err != nil {
		t.Fatal(err)
	}
	if p := c.Snapshot().Progress; !p.IsAISuggestingCompletion || !p.CanComplete {
		t.Errorf("progress = %+v", p)
	}
	tr, err := c.End(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if tr.CompletionReason != domain.CompletionAISuggested {
		t.Errorf("reason = %s", tr.CompletionReason)
	}
}

func TestEndPersistenceFailureFaultsSession(t *testing.T) {
	sink := &memorySink{err: errors.New("disk full")}
	c := startedController(t, &fakeBackend{}, sink)

	if _, err := c.End(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if c.Phase() != PhaseError {
		t.Fatalf("phase = %s", c.Phase())
	}
	if _, err := c.Send(context.Background(), "", "hi"); !errors.Is(err, domain.ErrSessionFaulted) {
		t.Errorf("send while faulted: %v", err)
	}

	if err := c.ClearError(); err != nil {
		t.Fatal(err)
	}
	if c.Phase() != PhaseInterviewing {
		t.Fatalf("phase after clear = %s", c.Phase())
	}
	sink.err = nil
	if _, err := c.End(context.Background()); err != nil {
		t.Fatalf("End after recovery: %v", err)
	}
}

func TestStartTwiceRejected(t *testing.T) {
	c := startedController(t, &fakeBackend{}, &memorySink{})
	if err := c.Start(context.Background(), domain.Context{}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("err = %v", err)
	}
}

func TestMessageIDsUnique(t *testing.T) {
	c := startedController(t, &fakeBackend{}, &memorySink{})
	for i := 0; i < 20; i++ {
		if _, err := c.Send(context.Background(), "", "x"); err != nil {
			t.Fatal(err)
		}
	}
	seen := map[string]bool{}
	for _, m := range c.Snapshot().Messages {
		if seen[m.ID] {
			t.Fatalf("duplicate id %s", m.ID)
		}
		seen[m.ID] = true
	}
}
