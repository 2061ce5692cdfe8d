package chat

import (
	"reflect"
	"testing"
)

func TestDetectCompletion(t *testing.T) {
	tests := []struct {
		in        string
		want      string
		suggested bool
	}{
		{"Расскажите о проекте.", "Расскажите о проекте.", false},
		{"Отлично! [INTERVIEW_COMPLETE]", "Отлично!", true},
		{"[interview_complete] Спасибо", "Спасибо", true},
		{"Думаю, мы можем Завершить интервью.", "Думаю, мы можем Завершить интервью.", true},
		{"У меня достаточно информации", "У меня достаточно информации", true},
	}
	for _, tt := range tests {
		got, suggested := DetectCompletion(tt.in)
		if got != tt.want || suggested != tt.suggested {
			t.Errorf("DetectCompletion(%q) = %q, %v; want %q, %v", tt.in, got, suggested, tt.want, tt.suggested)
		}
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]any
	}{
		{"embedded", `prefix text {"a":1,"b":[2,3]} suffix`, map[string]any{"a": float64(1), "b": []any{float64(2), float64(3)}}},
		{"no object", "nothing to see", nil},
		{"broken", `{"a": 1,`, nil},
		{"braces in strings", `x {"s":"}{","n":{"k":true}} y {"other":1}`, map[string]any{"s": "}{", "n": map[string]any{"k": true}}},
		{"array only", `[1,2,3]`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractJSONObject(tt.in)
			if got.Text != tt.in {
				t.Errorf("Text = %q", got.Text)
			}
			if !reflect.DeepEqual(got.Object, tt.want) {
				t.Errorf("Object = %v, want %v", got.Object, tt.want)
			}
			if got.OK() != (tt.want != nil) {
				t.Errorf("OK = %v", got.OK())
			}
		})
	}
}
