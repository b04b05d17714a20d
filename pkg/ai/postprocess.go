package ai

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// answerMarkers are checked in order; the first one present wins and the
// text after its last occurrence is kept.
var answerMarkers = []string{"專業分析：", "分析：", "Analysis:", "回答：", "答案：", "Answer:", "回應："}

const minAnswerRunes = 10

var (
	emojiRun   = regexp.MustCompile(`([📊🔹✅⚠️💡🎯🔍📈📉🚀⭐🌟]+)\s*([📊🔹✅⚠️💡🎯🔍📈📉🚀⭐🌟]+)`)
	boldSpan   = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	ruleLine   = regexp.MustCompile(`[-=]{3,}`)
	blankLines = regexp.MustCompile(`\n{3,}`)
)

// ExtractAnswer strips the echoed prompt, any reasoning block and the text
// before the answer marker. ok is false when what remains is too short to
// be an answer.
func ExtractAnswer(raw, prompt string) (string, bool) {
	text := strings.TrimSpace(strings.TrimPrefix(raw, prompt))
	text = stripThinking(text)

	for _, m := range answerMarkers {
		if i := strings.LastIndex(text, m); i >= 0 {
			text = strings.TrimSpace(text[i+len(m):])
			break
		}
	}

	if utf8.RuneCountInString(text) < minAnswerRunes {
		return "", false
	}
	return text, true
}

// stripThinking drops a reasoning block, keeping what follows the first
// </think>. Text is left alone unless both tags are present.
func stripThinking(text string) string {
	if !strings.Contains(text, "<think>") {
		return text
	}
	if i := strings.Index(text, "</think>"); i >= 0 {
		return strings.TrimSpace(text[i+len("</think>"):])
	}
	return text
}

// CleanFormat normalizes markdown-heavy model output for display.
func CleanFormat(text string) string {
	text = emojiRun.ReplaceAllString(text, "$1")
	text = boldSpan.ReplaceAllString(text, "$1")
	text = ruleLine.ReplaceAllString(text, "")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// ContainsCJK reports whether text has any CJK unified ideograph.
func ContainsCJK(text string) bool {
	for _, r := range text {
		if r >= '一' && r <= '鿿' {
			return true
		}
	}
	return false
}
