// Package textproc normalizes candidate memory text and extracts lexical search terms.
package textproc

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MaxQueryRunes bounds the query prefix used for keyword extraction.
	MaxQueryRunes = 120
	// MinKeywordRunes is exclusive: keywords must be longer than this.
	MinKeywordRunes = 2
)

var (
	nonWord     = regexp.MustCompile(`[^\p{L}\p{N}_]+`)
	triggerRe   = regexp.MustCompile(`(?i)\b(remember|save (this|that)|note to self|store this|keep in mind)\b`)
	triggerHead = regexp.MustCompile(`(?i)^\s*(can\s+you\s+)?remember(\s+that)?\s*`)
)

// Normalize trims s and collapses every whitespace run to a single space.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Keywords returns up to max significant lowercase words from the start of query.
func Keywords(query string, max int) []string {
	if utf8.RuneCountInString(query) > MaxQueryRunes {
		query = string([]rune(query)[:MaxQueryRunes])
	}
	words := Words(query)
	if max >= 0 && len(words) > max {
		words = words[:max]
	}
	return words
}

// Words splits s into lowercase words longer than MinKeywordRunes.
func Words(s string) []string {
	var words []string
	for _, w := range nonWord.Split(strings.ToLower(s), -1) {
		if utf8.RuneCountInString(w) > MinKeywordRunes {
			words = append(words, w)
		}
	}
	return words
}

// WantsMemory reports whether the message explicitly asks to be remembered.
func WantsMemory(msg string) bool {
	return triggerRe.MatchString(msg)
}

// StripTrigger removes a leading "(can you) remember (that)" from msg.
// The original message is returned when nothing would remain.
func StripTrigger(msg string) string {
	stripped := strings.TrimSpace(triggerHead.ReplaceAllString(msg, ""))
	if stripped == "" {
		return strings.TrimSpace(msg)
	}
	return stripped
}

// Ellipsis marks text cut by Truncate.
const Ellipsis = "..."

// Truncate shortens s to at most n runes, appending Ellipsis when cut.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + Ellipsis
}
