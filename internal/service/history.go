package service

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/set-night/interviewcoach/internal/domain"
)

type HistorySort string

const (
	SortByDate     HistorySort = "date"
	SortByMessages HistorySort = "messages"
)

const (
	StatusCompleted = "Завершено"
	StatusGood      = "Хорошо"
	StatusShort     = "Короткое"
)

const historyDateLayout = "02.01.2006"

// HistoryQuery filters and orders the transcript list.
type HistoryQuery struct {
	Search string
	Sort   HistorySort
	Desc   bool
}

type HistoryStats struct {
	Total         int     `json:"total"`
	TotalMessages int     `json:"totalMessages"`
	AvgMessages   float64 `json:"avgMessages"`
}

// HistoryEntry is a transcript summary for list views.
type HistoryEntry struct {
	ID             int64  `json:"id"`
	StartedAt      string `json:"startedAt"`
	Date           string `json:"date"`
	MessagesCount  int    `json:"messagesCount"`
	QuestionsAsked int    `json:"questionsAsked"`
	Status         string `json:"status"`
	Preview        string `json:"preview"`
	HasFeedback    bool   `json:"hasFeedback"`
	Reason         string `json:"completionReason"`
}

// InterviewStatus labels a transcript by how long it ran.
func InterviewStatus(messages int) string {
	switch {
	case messages >= 10:
		return StatusCompleted
	case messages >= 5:
		return StatusGood
	default:
		return StatusShort
	}
}

func messageCount(t domain.Transcript) int {
	if t.MessagesCount > 0 {
		return t.MessagesCount
	}
	return len(t.Messages)
}

// FilterHistory keeps transcripts whose date (dd.mm.yyyy) or any message
// contains the search text.
func FilterHistory(list []domain.Transcript, search string) []domain.Transcript {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return append([]domain.Transcript(nil), list...)
	}
	var out []domain.Transcript
	for _, t := range list {
		if strings.Contains(t.StartedAt.Format(historyDateLayout), search) {
			out = append(out, t)
			continue
		}
		for _, m := range t.Messages {
			if strings.Contains(strings.ToLower(m.Text), search) {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// SortHistory orders in place. Ties keep their relative order.
func SortHistory(list []domain.Transcript, by HistorySort, desc bool) {
	less := func(i, j int) bool {
		if by == SortByMessages {
			return messageCount(list[i]) < messageCount(list[j])
		}
		return list[i].StartedAt.Before(list[j].StartedAt)
	}
	sort.SliceStable(list, func(i, j int) bool {
		if desc {
			return less(j, i)
		}
		return less(i, j)
	})
}

func ComputeHistoryStats(list []domain.Transcript) HistoryStats {
	s := HistoryStats{Total: len(list)}
	for _, t := range list {
		s.TotalMessages += messageCount(t)
	}
	if s.Total > 0 {
		s.AvgMessages = math.Round(float64(s.TotalMessages)/float64(s.Total)*10) / 10
	}
	return s
}

// QueryHistory applies search and sort and builds list entries. Stats are
// computed over the filtered set.
func QueryHistory(list []domain.Transcript, q HistoryQuery, withFeedback map[int64]bool) ([]HistoryEntry, HistoryStats) {
	filtered := FilterHistory(list, q.Search)
	by := q.Sort
	if by != SortByMessages {
		by = SortByDate
	}
	SortHistory(filtered, by, q.Desc)

	entries := make([]HistoryEntry, 0, len(filtered))
	for _, t := range filtered {
		n := messageCount(t)
		entries = append(entries, HistoryEntry{
			ID:             t.ID,
			StartedAt:      t.StartedAt.Format(time.RFC3339),
			Date:           t.StartedAt.Format(historyDateLayout),
			MessagesCount:  n,
			QuestionsAsked: t.QuestionsAsked,
			Status:         InterviewStatus(n),
			Preview:        preview(t),
			HasFeedback:    withFeedback[t.ID],
			Reason:         string(t.CompletionReason),
		})
	}
	return entries, ComputeHistoryStats(filtered)
}

// preview is the first candidate answer, shortened.
func preview(t domain.Transcript) string {
	for _, m := range t.Messages {
		if m.Sender != domain.SenderUser {
			continue
		}
		r := []rune(strings.TrimSpace(m.Text))
		if len(r) > 100 {
			return string(r[:100]) + "…"
		}
		return string(r)
	}
	return ""
}
