package reasoning

import "testing"

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "full json leak",
			in:   `{"type":"question","message":"How long have you had fever?"}`,
			want: "How long have you had fever?",
		},
		{
			name: "fenced json leak",
			in:   "```json\n{\"type\":\"question\",\"message\":\"Any other symptoms?\"}\n```",
			want: "Any other symptoms?",
		},
		{
			name: "truncated json falls back to regex",
			in:   `{"type":"question","message":"Is the pain sharp?","condition`,
			want: "Is the pain sharp?",
		},
		{
			name: "escaped quotes in regex path",
			in:   `{"message":"She said \"help\" twice","cond`,
			want: `She said "help" twice`,
		},
		{
			name: "plain text untouched",
			in:   "How many days has the fever lasted?",
			want: "How many days has the fever lasted?",
		},
		{
			name: "brace without message field untouched",
			in:   "Temperature was {high} yesterday",
			want: "Temperature was {high} yesterday",
		},
		{
			name: "message word without brace untouched",
			in:   "Please send a message to your doctor",
			want: "Please send a message to your doctor",
		},
		{
			name: "unparseable leak passes through",
			in:   "some {garbled message without extractable field",
			want: "some {garbled message without extractable field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
