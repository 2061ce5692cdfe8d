package service

import (
	"testing"
	"time"

	"github.com/set-night/interviewcoach/internal/domain"
)

func transcript(id int64, day int, texts ...string) domain.Transcript {
	t := domain.Transcript{
		ID:        id,
		StartedAt: time.Date(2024, time.March, day, 10, 0, 0, 0, time.UTC),
	}
	for i, text := range texts {
		sender := domain.SenderAI
		if i%2 == 1 {
			sender = domain.SenderUser
		}
		t.Messages = append(t.Messages, domain.Message{Text: text, Sender: sender})
	}
	t.MessagesCount = len(t.Messages)
	return t
}

func historyFixture() []domain.Transcript {
	return []domain.Transcript{
		transcript(1, 1, "Привет", "Я пишу на Go"),
		transcript(2, 15, "Привет", "Kubernetes", "Хорошо", "Docker", "Ещё", "Да"),
		transcript(3, 7, "a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k"),
	}
}

func TestInterviewStatus(t *testing.T) {
	tests := map[int]string{0: StatusShort, 4: StatusShort, 5: StatusGood, 9: StatusGood, 10: StatusCompleted, 25: StatusCompleted}
	for n, want := range tests {
		if got := InterviewStatus(n); got != want {
			t.Errorf("InterviewStatus(%d) = %s, want %s", n, got, want)
		}
	}
}

func TestFilterHistory(t *testing.T) {
	list := historyFixture()

	if got := FilterHistory(list, "15.03.2024"); len(got) != 1 || got[0].ID != 2 {
		t.Errorf("date search = %v", ids(got))
	}
	if got := FilterHistory(list, "kubernetes"); len(got) != 1 || got[0].ID != 2 {
		t.Errorf("content search = %v", ids(got))
	}
	if got := FilterHistory(list, "  "); len(got) != 3 {
		t.Errorf("blank search should keep all, got %v", ids(got))
	}
}

func TestSortHistory(t *testing.T) {
	list := historyFixture()
	SortHistory(list, SortByDate, true)
	if got := ids(list); got != [3]int64{2, 3, 1} {
		t.Errorf("date desc = %v", got)
	}
	SortHistory(list, SortByMessages, false)
	if got := ids(list); got != [3]int64{1, 2, 3} {
		t.Errorf("messages asc = %v", got)
	}
}

func TestQueryHistory(t *testing.T) {
	entries, stats := QueryHistory(historyFixture(), HistoryQuery{Sort: SortByMessages, Desc: true}, map[int64]bool{3: true})
	if len(entries) != 3 || entries[0].ID != 3 {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].Status != StatusCompleted || !entries[0].HasFeedback || entries[0].Date != "07.03.2024" {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[2].Preview != "Я пишу на Go" {
		t.Errorf("preview = %q", entries[2].Preview)
	}
	if stats.Total != 3 || stats.TotalMessages != 19 || stats.AvgMessages != 6.3 {
		t.Errorf("stats = %+v", stats)
	}
}

func ids(list []domain.Transcript) [3]int64 {
	var out [3]int64
	for i := 0; i < len(list) && i < 3; i++ {
		out[i] = list[i].ID
	}
	return out
}
