package telegram

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitMessageShort(t *testing.T) {
	parts := SplitMessage("привет", 10)
	if len(parts) != 1 || parts[0] != "привет" {
		t.Fatalf("parts = %q", parts)
	}
}

func TestSplitMessagePrefersParagraphs(t *testing.T) {
	first := strings.Repeat("а", 30)
	second := strings.Repeat("б", 30)
	text := first + "\n\n" + second

	parts := SplitMessage(text, 40)
	if len(parts) != 2 {
		t.Fatalf("parts = %d: %q", len(parts), parts)
	}
	if parts[0] != first+"\n\n" || parts[1] != second {
		t.Errorf("parts = %q", parts)
	}
}

func TestSplitMessageRespectsLimit(t *testing.T) {
	text := strings.Repeat("слово ", 2000)
	parts := SplitMessage(text, MaxMessageLen)
	if len(parts) < 3 {
		t.Fatalf("parts = %d", len(parts))
	}
	if strings.Join(parts, "") != text {
		t.Error("parts do not add up to the original text")
	}
	for i, p := range parts {
		if n := utf8.RuneCountInString(p); n > MaxMessageLen {
			t.Errorf("part %d has %d runes", i, n)
		}
	}
}

func TestSplitMessageReopensCodeBlock(t *testing.T) {
	code := strings.Repeat("x := 1\n", 20)
	text := "Пример:\n```\n" + code + "```\nГотово."

	parts := SplitMessage(text, 60)
	if len(parts) < 2 {
		t.Fatalf("parts = %d", len(parts))
	}
	for i, p := range parts {
		if strings.Count(p, fence)%2 != 0 {
			t.Errorf("part %d has unbalanced fences: %q", i, p)
		}
		if utf8.RuneCountInString(p) > 60 {
			t.Errorf("part %d too long: %d", i, utf8.RuneCountInString(p))
		}
	}
	if !strings.HasPrefix(parts[1], fence+"\n") {
		t.Errorf("second part does not reopen the block: %q", parts[1])
	}
}

func TestFixMarkdown(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Хороший ответ.", "Хороший ответ."},
		{"double asterisks", "**Итог:** отлично", "*Итог:* отлично"},
		{"unclosed block", "```go\nfmt.Println()", "```go\nfmt.Println()\n```"},
		{"unclosed inline", "используйте `make", "используйте `make`"},
		{"dangling star", "5 * 3 = 15", `5 \* 3 = 15`},
		{"dangling underscore", "поле user_id", `поле user\_id`},
		{"underscore in code", "поле `user_id`", "поле `user_id`"},
		{"star in block", "```\na * b\n```", "```\na * b\n```"},
		{"balanced", "*важно* и _тоже_", "*важно* и _тоже_"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FixMarkdown(tt.in); got != tt.want {
				t.Errorf("FixMarkdown(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEscapeMarkdown(t *testing.T) {
	got := EscapeMarkdown("Go_dev *senior* [remote] `k8s`")
	want := "Go\\_dev \\*senior\\* \\[remote] \\`k8s\\`"
	if got != want {
		t.Errorf("EscapeMarkdown = %q, want %q", got, want)
	}
}

func TestPaginationRow(t *testing.T) {
	row := PaginationRow(0, 3, CallbackHistoryPage)
	if len(row) != 2 || row[1].CallbackData != "history_1" {
		t.Errorf("first page row = %+v", row)
	}
	row = PaginationRow(2, 3, CallbackHistoryPage)
	if len(row) != 2 || row[0].CallbackData != "history_1" || row[1].Text != "3/3" {
		t.Errorf("last page row = %+v", row)
	}
}

func TestProviderKeyboard(t *testing.T) {
	kb := ProviderKeyboard("openrouter")
	row := kb.InlineKeyboard[0]
	if row[0].Text != "Gemini" || row[1].Text != "✅ OpenRouter" {
		t.Errorf("row = %+v", row)
	}
	if row[1].CallbackData != "provider_openrouter" {
		t.Errorf("callback = %q", row[1].CallbackData)
	}
}
