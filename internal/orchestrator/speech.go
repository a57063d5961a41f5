package orchestrator

import (
	"strings"
	"unicode"
)

// sanitizeForSpeech strips emoji, markdown markers and stray symbols that a
// speech synthesizer would read aloud literally, and collapses the
// whitespace left behind.
func sanitizeForSpeech(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	for _, r := range text {
		switch {
		case r == '*' || r == '_' || r == '#' || r == '`' || r == '~':
			// markdown markers
		case unicode.IsSymbol(r) && r > unicode.MaxASCII:
			// emoji and pictographs
		case unicode.In(r, unicode.So, unicode.Sk):
		case r == '️' || r == '‍':
			// variation selectors and zero-width joiners left over from emoji
		default:
			b.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// hasNonASCII reports whether text contains any code point outside the
// ASCII range. This is the reply-language heuristic only; it is an accepted
// approximation (transliterated scripts defeat it) and is never used in
// place of translation-time language detection.
func hasNonASCII(text string) bool {
	for _, r := range text {
		if r > unicode.MaxASCII {
			return true
		}
	}
	return false
}
