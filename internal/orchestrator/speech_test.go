package orchestrator

import "testing"

func TestSanitizeForSpeech(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "See a doctor soon.", "See a doctor soon."},
		{"markdown", "**Bold** and _italic_ and `code`", "Bold and italic and code"},
		{"emoji banner", "🚨 EMERGENCY: go now", "EMERGENCY: go now"},
		{"warning sign", "⚠️ This looks like dengue.", "This looks like dengue."},
		{"collapse whitespace", "a   b\n\nc", "a b c"},
		{"devanagari kept", "मुझे बुखार है", "मुझे बुखार है"},
		{"only symbols", "🚨⚠️", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeForSpeech(tt.in); got != tt.want {
				t.Errorf("sanitizeForSpeech(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestHasNonASCII(t *testing.T) {
	if hasNonASCII("hello doctor 123") {
		t.Error("pure ASCII flagged")
	}
	if !hasNonASCII("बुखार") {
		t.Error("Devanagari not flagged")
	}
	if !hasNonASCII("fever ইদানীং") {
		t.Error("mixed script not flagged")
	}
}
