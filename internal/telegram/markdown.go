package telegram

import (
	"strings"
	"unicode/utf8"
)

const fence = "```"

// SplitMessage splits text into parts of at most maxLen runes. A cut
// prefers a blank line, then a line break, then a space. A code block
// left open by a cut is closed at the end of the part and reopened in
// the next one.
func SplitMessage(text string, maxLen int) []string {
	if maxLen <= 0 || utf8.RuneCountInString(text) <= maxLen {
		return []string{text}
	}

	var parts []string
	runes := []rune(text)
	open := false
	for len(runes) > 0 {
		head := ""
		if open {
			head = fence + "\n"
		}
		room := maxLen - utf8.RuneCountInString(head)
		if len(runes) <= room {
			parts = append(parts, head+string(runes))
			break
		}

		// leave space to close a code block
		room -= len(fence) + 1
		if room < 1 {
			room = 1
		}
		cut := cutPoint(runes[:room])
		part := head + string(runes[:cut])
		open = strings.Count(part, fence)%2 == 1
		if open {
			part += "\n" + fence
		}
		parts = append(parts, part)
		runes = runes[cut:]
	}
	return parts
}

func cutPoint(chunk []rune) int {
	s := string(chunk)
	floor := len(chunk) / 2
	for _, sep := range []string{"\n\n", "\n", " "} {
		i := strings.LastIndex(s, sep)
		if i < 0 {
			continue
		}
		at := utf8.RuneCountInString(s[:i]) + utf8.RuneCountInString(sep)
		if at > floor {
			return at
		}
	}
	return len(chunk)
}

// FixMarkdown repairs model output for Telegram's legacy Markdown:
// double asterisks become single ones, unclosed code is closed and a
// dangling emphasis marker is escaped.
func FixMarkdown(text string) string {
	text = outsideCode(text, func(s string) string {
		return strings.ReplaceAll(s, "**", "*")
	})
	if strings.Count(text, fence)%2 != 0 {
		text += "\n" + fence
	}
	text = fixInlineCode(text)
	text = escapeDangling(text, '*')
	return escapeDangling(text, '_')
}

// outsideCode applies fn to the parts of text outside fenced blocks.
func outsideCode(text string, fn func(string) string) string {
	chunks := strings.Split(text, fence)
	for i := 0; i < len(chunks); i += 2 {
		chunks[i] = fn(chunks[i])
	}
	return strings.Join(chunks, fence)
}

func fixInlineCode(text string) string {
	var b strings.Builder
	inBlock := false
	inlineOpen := false

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if i+2 < len(runes) && string(runes[i:i+3]) == fence {
			if inlineOpen {
				b.WriteRune('`')
				inlineOpen = false
			}
			inBlock = !inBlock
			b.WriteString(fence)
			i += 2
			continue
		}
		if !inBlock && runes[i] == '`' {
			inlineOpen = !inlineOpen
		}
		b.WriteRune(runes[i])
	}
	if inlineOpen {
		b.WriteRune('`')
	}
	return b.String()
}

// escapeDangling escapes the last marker outside code when the markers
// are unbalanced.
func escapeDangling(text string, marker rune) string {
	runes := []rune(text)
	count, last := 0, -1
	inBlock, inInline := false, false
	for i := 0; i < len(runes); i++ {
		switch {
		case i+2 < len(runes) && string(runes[i:i+3]) == fence:
			inBlock = !inBlock
			i += 2
		case inBlock:
		case runes[i] == '`':
			inInline = !inInline
		case inInline:
		case runes[i] == '\\':
			i++
		case runes[i] == marker:
			count++
			last = i
		}
	}
	if count%2 == 0 {
		return text
	}
	return string(runes[:last]) + `\` + string(runes[last:])
}

var escaper = strings.NewReplacer(`_`, `\_`, `*`, `\*`, "`", "\\`", `[`, `\[`)

// EscapeMarkdown makes user supplied text safe inside a legacy Markdown message.
func EscapeMarkdown(s string) string {
	return escaper.Replace(s)
}
