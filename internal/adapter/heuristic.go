package adapter

import (
	"strings"
	"unicode"
)

// IsGenuinelyLive decides whether a YouTube channel reporting itself as live
// is actually broadcasting. Scheduled streams and premieres also carry the
// raw live flag, so the flag is only trusted when there is more than one
// viewer, the title contains none of the scheduled keywords, and the title
// neither starts nor ends with the word "live". This is a heuristic.
func IsGenuinelyLive(rawLive bool, viewers int, title string, keywords []string) bool {
	if !rawLive || viewers <= 1 {
		return false
	}

	lower := strings.ToLower(strings.TrimSpace(title))
	for _, kw := range keywords {
		if kw = strings.ToLower(kw); kw != "" && strings.Contains(lower, kw) {
			return false
		}
	}

	return !startsWithWord(lower, "live") && !endsWithWord(lower, "live")
}

func startsWithWord(s, word string) bool {
	if !strings.HasPrefix(s, word) {
		return false
	}
	rest := []rune(s[len(word):])
	return len(rest) == 0 || !isWordRune(rest[0])
}

func endsWithWord(s, word string) bool {
	if !strings.HasSuffix(s, word) {
		return false
	}
	head := []rune(s[:len(s)-len(word)])
	return len(head) == 0 || !isWordRune(head[len(head)-1])
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
