package chat

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/set-night/interviewcoach/internal/domain"
)

var (
	errAttempt1 = &domain.Error{Kind: domain.KindTimeout, Code: domain.CodeTimeout, Message: "first"}
	errAttempt2 = &domain.Error{Kind: domain.KindProviderQuota, Code: domain.CodeQuotaExceeded, Message: "second"}
	errAttempt3 = &domain.Error{Kind: domain.KindProvider, Code: "GEMINI_ERROR", Message: "third"}
)

func newTestService(client *fakeClient) (*Service, *recordingSleeper, *usageLog) {
	sl := &recordingSleeper{}
	usage := &usageLog{}
	svc := NewService(fakeSelector{client: client}, usage,
		WithSleeper(sl.sleep),
		WithBackoff(time.Second),
		WithAttemptTimeout(time.Second),
	)
	return svc, sl, usage
}

func TestChatValidationMakesNoCall(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"empty", Request{Message: ""}},
		{"blank", Request{Message: "   \n\t"}},
		{"too long", Request{Message: strings.Repeat("я", 5001)}},
		{"bad mode", Request{Message: "hi", Mode: "chitchat"}},
		{"bad history", Request{Message: "hi", History: []domain.Message{{ID: "1", Text: "x", Sender: "robot"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{}
			svc, _, _ := newTestService(client)
			_, err := svc.Chat(context.Background(), tt.req)
			if !domain.IsValidation(err) {
				t.Fatalf("err = %v, want validation", err)
			}
			if client.calls != 0 {
				t.Errorf("provider called %d times", client.calls)
			}
		})
	}
}

func TestChatMaxLengthAccepted(t *testing.T) {
	svc, _, _ := newTestService(&fakeClient{})
	if _, err := svc.Chat(context.Background(), Request{Message: strings.Repeat("я", 5000)}); err != nil {
		t.Fatalf("5000 characters should be accepted: %v", err)
	}
}

func TestChatRetrySucceedsOnThirdAttempt(t *testing.T) {
	client := &fakeClient{errs: []error{errAttempt1, errAttempt2}, replies: []string{"", "", "Третья попытка"}}
	svc, sl, _ := newTestService(client)

	reply, err := svc.Chat(context.Background(), Request{Message: "hi"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply.Message != "Третья попытка" {
		t.Errorf("message = %q", reply.Message)
	}
	if client.calls != 3 {
		t.Errorf("attempts = %d, want 3", client.calls)
	}
	if want := []time.Duration{time.Second, 2 * time.Second}; !reflect.DeepEqual(sl.waits, want) {
		t.Errorf("backoff = %v, want %v", sl.waits, want)
	}
}

func TestChatRetryExhaustedSurfacesLastError(t *testing.T) {
	client := &fakeClient{errs: []error{errAttempt1, errAttempt2, errAttempt3}}
	svc, sl, usage := newTestService(client)

	_, err := svc.Chat(context.Background(), Request{Message: "hi"})
	if !errors.Is(err, errAttempt3) {
		t.Fatalf("err = %v, want last attempt error", err)
	}
	if client.calls != 3 {
		t.Errorf("attempts = %d, want 3", client.calls)
	}
	if len(sl.waits) != 2 {
		t.Errorf("waits = %v, want 2 sleeps", sl.waits)
	}
	if len(usage.records) != 0 {
		t.Error("usage recorded for failed call")
	}
}

func TestChatRetryStopsWhenContextCancelled(t *testing.T) {
	client := &fakeClient{errs: []error{errAttempt1, errAttempt2, errAttempt3}}
	svc := NewService(fakeSelector{client: client}, nil, WithSleeper(func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}))

	_, err := svc.Chat(context.Background(), Request{Message: "hi"})
	if !errors.Is(err, errAttempt1) {
		t.Fatalf("err = %v", err)
	}
	if client.calls != 1 {
		t.Errorf("attempts = %d, want 1", client.calls)
	}
}

func TestChatInterviewStripsSentinel(t *testing.T) {
	client := &fakeClient{replies: []string{"Спасибо за ответы! [Interview_Complete] Есть вопросы? [INTERVIEW_COMPLETE]"}}
	svc, _, usage := newTestService(client)

	reply, err := svc.Chat(context.Background(), Request{Message: "hi", Mode: domain.ModeInterview})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if strings.Contains(strings.ToLower(reply.Message), "interview_complete") {
		t.Errorf("sentinel left in %q", reply.Message)
	}
	if !reply.IsCompletionSuggested {
		t.Error("completion not flagged")
	}
	if len(usage.records) != 1 || usage.records[0].TotalTokens != 3 {
		t.Errorf("usage = %+v", usage.records)
	}
	if *client.opts[0].Temperature != 0.7 || *client.opts[0].MaxTokens != 1000 {
		t.Errorf("interview defaults = %v/%v", *client.opts[0].Temperature, *client.opts[0].MaxTokens)
	}
}

func TestChatInterviewSentinelOnlyReply(t *testing.T) {
	for _, text := range []string{"[INTERVIEW_COMPLETE]", "  \n[interview_complete]\n "} {
		client := &fakeClient{replies: []string{text}}
		svc := NewService(fakeSelector{client: client}, &usageLog{}, WithClosingLine("Спасибо, на этом всё."))

		reply, err := svc.Chat(context.Background(), Request{Message: "hi", Mode: domain.ModeInterview})
		if err != nil {
			t.Fatalf("Chat(%q): %v", text, err)
		}
		if reply.Message != "Спасибо, на этом всё." {
			t.Errorf("Chat(%q) message = %q", text, reply.Message)
		}
		if !reply.IsCompletionSuggested {
			t.Errorf("Chat(%q) completion not flagged", text)
		}
	}

	client := &fakeClient{replies: []string{"[INTERVIEW_COMPLETE]"}}
	svc, _, _ := newTestService(client)
	reply, err := svc.Chat(context.Background(), Request{Message: "hi", Mode: domain.ModeInterview})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if strings.TrimSpace(reply.Message) == "" {
		t.Error("default closing line is empty")
	}
}

func TestChatEchoesPlanOnFirstTurnOnly(t *testing.T) {
	plan := &domain.InterviewPlan{SystemPrompt: "prompt"}
	svc, _, _ := newTestService(&fakeClient{})

	first, err := svc.Chat(context.Background(), Request{Message: "hi", Plan: plan})
	if err != nil {
		t.Fatal(err)
	}
	if first.InterviewPlan != plan {
		t.Error("plan not echoed on first turn")
	}

	history := []domain.Message{domain.NewMessage(domain.SenderUser, "hi", time.Now())}
	next, err := svc.Chat(context.Background(), Request{Message: "again", Plan: plan, History: history})
	if err != nil {
		t.Fatal(err)
	}
	if next.InterviewPlan != nil {
		t.Error("plan echoed after first turn")
	}
}

func TestChatPlanningExtractsJSON(t *testing.T) {
	client := &fakeClient{replies: []string{`План: {"a":1,"b":[2,3]} готов`, "просто текст"}}
	svc, _, _ := newTestService(client)

	reply, err := svc.Chat(context.Background(), Request{Message: "plan", Mode: domain.ModePlanning})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"a": float64(1), "b": []any{float64(2), float64(3)}}
	if !reflect.DeepEqual(reply.Plan, want) {
		t.Errorf("plan = %v, want %v", reply.Plan, want)
	}
	if reply.PlanText != `План: {"a":1,"b":[2,3]} готов` {
		t.Errorf("planText = %q", reply.PlanText)
	}
	if *client.opts[0].Temperature != 0.3 || *client.opts[0].MaxTokens != 2000 {
		t.Error("planning defaults not applied")
	}

	reply, err = svc.Chat(context.Background(), Request{Message: "plan", Mode: domain.ModePlanning})
	if err != nil {
		t.Fatalf("unparseable plan must not fail: %v", err)
	}
	if reply.Plan != nil || reply.PlanText != "просто текст" {
		t.Errorf("reply = %+v", reply)
	}
}

func TestChatUnknownProviderIsValidation(t *testing.T) {
	svc, _, _ := newTestService(&fakeClient{})
	_, err := svc.Chat(context.Background(), Request{Message: "hi", Settings: domain.Settings{Provider: "nope"}})
	if !domain.IsValidation(err) {
		t.Errorf("err = %v", err)
	}
}

func TestFeedbackRequiresMessages(t *testing.T) {
	client := &fakeClient{}
	svc, _, _ := newTestService(client)
	if _, err := svc.Feedback(context.Background(), nil, domain.Context{}, domain.Settings{}); !domain.IsValidation(err) {
		t.Errorf("err = %v", err)
	}
	msgs := []domain.Message{domain.NewMessage(domain.SenderUser, "hi", time.Now())}
	if _, err := svc.Feedback(context.Background(), msgs, domain.Context{}, domain.Settings{}); err != nil {
		t.Fatal(err)
	}
	if *client.opts[0].Temperature != 0.3 || *client.opts[0].MaxTokens != 2000 {
		t.Error("feedback defaults not applied")
	}
}

func TestCoverLetterRequiresJob(t *testing.T) {
	client := &fakeClient{}
	svc, _, _ := newTestService(client)
	_, err := svc.CoverLetter(context.Background(), domain.Context{ResumeText: "cv"}, domain.Settings{})
	e, ok := domain.AsError(err)
	if !ok || e.Kind != domain.KindValidation || e.Message != "Отсутствуют данные о вакансии" {
		t.Fatalf("err = %v", err)
	}
	if client.calls != 0 {
		t.Error("provider called without job text")
	}

	temp := 1.2
	if _, err := svc.CoverLetter(context.Background(), domain.Context{JobText: "Go dev"}, domain.Settings{Temperature: &temp}); err != nil {
		t.Fatal(err)
	}
	if *client.opts[0].Temperature != 1.2 || *client.opts[0].MaxTokens != 1500 {
		t.Error("settings override or default not applied")
	}
}

func TestPlan(t *testing.T) {
	svc, _, _ := newTestService(&fakeClient{})
	plan, err := svc.Plan(context.Background(), domain.Context{JobText: "SRE"}, domain.Settings{Model: "m"})
	if err != nil {
		t.Fatal(err)
	}
	if plan.SystemPrompt != "plan for SRE" || plan.Model != "m" || len(plan.Questions) != 5 {
		t.Errorf("plan = %+v", plan)
	}
}
