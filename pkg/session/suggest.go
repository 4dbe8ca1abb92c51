package session

import (
	"strings"
	"unicode"

	"github.com/odaihq/odai-server/pkg/tools"
)

const (
	titleMaxLen    = 48
	maxSuggestions = 3
)

// DeriveTitle turns the first user message into a short chat title.
func DeriveTitle(prompt string) string {
	title := strings.Join(strings.Fields(prompt), " ")
	if title == "" {
		return "New Chat"
	}
	// Cut at the first sentence end when there is one.
	if idx := strings.IndexAny(title, ".?!\n"); idx > 0 {
		title = title[:idx]
	}
	if len(title) > titleMaxLen {
		cut := title[:titleMaxLen]
		if idx := strings.LastIndex(cut, " "); idx > titleMaxLen/2 {
			cut = cut[:idx]
		}
		title = cut + "..."
	}
	r := []rune(title)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// SuggestPrompts returns follow-up prompts for a new chat, drawn from
// the capability sample prompts. Prompts too similar to what the user
// already asked are skipped.
func SuggestPrompts(userText string) []string {
	lower := strings.ToLower(userText)
	var prompts []string
	for _, p := range tools.SamplePrompts() {
		if overlaps(lower, strings.ToLower(p)) {
			continue
		}
		prompts = append(prompts, p)
		if len(prompts) == maxSuggestions {
			break
		}
	}
	return prompts
}

// overlaps reports whether the two texts share a word of 5+ letters,
// a cheap proxy for "asks about the same thing".
func overlaps(a, b string) bool {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(a, func(r rune) bool { return !unicode.IsLetter(r) }) {
		if len(w) >= 5 {
			words[w] = true
		}
	}
	for _, w := range strings.FieldsFunc(b, func(r rune) bool { return !unicode.IsLetter(r) }) {
		if len(w) >= 5 && words[w] {
			return true
		}
	}
	return false
}
