package chat

import (
	"encoding/json"
	"regexp"
	"strings"
)

// CompletionSentinel is the marker the interviewer prompt asks the model to
// append when it is ready to wrap up.
const CompletionSentinel = "[INTERVIEW_COMPLETE]"

var (
	sentinelRe     = regexp.MustCompile(`(?i)\[interview_complete\]`)
	completionCues = []string{"завершить", "закончить", "достаточно"}
)

// DetectCompletion reports whether the reply suggests ending the interview
// and returns the text with every case variant of the sentinel removed.
func DetectCompletion(text string) (clean string, suggested bool) {
	lower := strings.ToLower(text)
	suggested = sentinelRe.MatchString(text)
	for _, cue := range completionCues {
		if strings.Contains(lower, cue) {
			suggested = true
			break
		}
	}
	return StripSentinel(text), suggested
}

func StripSentinel(text string) string {
	return strings.TrimSpace(sentinelRe.ReplaceAllString(text, ""))
}

// Extracted is the outcome of a best-effort JSON extraction. Object is nil
// when the text held no parseable object; Text is always the input.
type Extracted struct {
	Object map[string]any
	Text   string
}

func (e Extracted) OK() bool {
	return e.Object != nil
}

// ExtractJSONObject finds the first top-level {...} in free text and parses
// it. It never fails; a miss leaves Object nil.
func ExtractJSONObject(text string) Extracted {
	out := Extracted{Text: text}
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return out
	}

	if end := matchBrace(text, start); end > start {
		if obj, ok := parseObject(text[start : end+1]); ok {
			out.Object = obj
			return out
		}
	}
	// Fall back to the widest span, first '{' to last '}'.
	if end := strings.LastIndexByte(text, '}'); end > start {
		if obj, ok := parseObject(text[start : end+1]); ok {
			out.Object = obj
		}
	}
	return out
}

// matchBrace returns the index of the brace closing the one at start,
// skipping braces inside JSON strings, or -1.
func matchBrace(s string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func parseObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}
