// Package highlight locates trigger words inside message content and wraps
// them with markdown emphasis for delivery.
package highlight

import (
	"strings"
	"unicode"
)

const marker = "**"

// Escape backslash-escapes markdown-significant characters so inserted
// emphasis markers cannot be confused with user content.
func Escape(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch r {
		case '\\', '*', '_', '~', '`', '|':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Emphasize escapes text and bolds the first complete case-insensitive
// occurrence of word. The scan tracks a cursor against the word: the first
// matching rune records a start offset, completing the word inserts the
// markers, and any mismatch resets the cursor without retrying the current
// rune. If the word never completes the escaped text is returned unchanged.
func Emphasize(text, word string) string {
	escaped := Escape(text)
	target := []rune(strings.ToLower(word))
	if len(target) == 0 {
		return escaped
	}

	runes := []rune(escaped)
	position := 0
	start := -1

	for i, r := range runes {
		if unicode.ToLower(r) != target[position] {
			position = 0
			start = -1
			continue
		}
		if position == 0 {
			start = i
		}
		if position == len(target)-1 {
			var b strings.Builder
			b.WriteString(string(runes[:start]))
			b.WriteString(marker)
			b.WriteString(string(runes[start : i+1]))
			b.WriteString(marker)
			b.WriteString(string(runes[i+1:]))
			return b.String()
		}
		position++
	}
	return escaped
}
