package reasoning

import (
	"encoding/json"
	"regexp"
	"strings"
)

// messageFieldRE extracts the message field from structured text when a
// full JSON parse fails (truncated or mangled payloads).
var messageFieldRE = regexp.MustCompile(`"message"\s*:\s*"((?:[^"\\]|\\.)*)"`)

// Sanitize guards against structured payloads leaking into user-visible
// text. Text containing both a brace and the substring "message" is treated
// as suspected JSON leakage: the message field is extracted via a full parse
// first, then a regex fallback. Text that matches neither passes through
// unchanged. Translation can reintroduce the leak pattern, so callers run
// this once after formatting and again immediately before send.
func Sanitize(text string) string {
	if !strings.Contains(text, "{") || !strings.Contains(text, "message") {
		return text
	}

	jsonText := strings.TrimSpace(text)
	if m := fenceRE.FindStringSubmatch(jsonText); m != nil {
		jsonText = strings.TrimSpace(m[1])
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(jsonText), &parsed); err == nil {
		if msg, ok := parsed["message"].(string); ok && msg != "" {
			return msg
		}
	}

	if m := messageFieldRE.FindStringSubmatch(text); m != nil {
		var unescaped string
		if err := json.Unmarshal([]byte(`"`+m[1]+`"`), &unescaped); err == nil {
			return unescaped
		}
		return m[1]
	}

	return text
}
