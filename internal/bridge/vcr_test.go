package bridge

import (
	"context"
	"testing"

	"github.com/nidaan-ai/triage-gateway/internal/testutil"
)

// Replays a recorded provider interaction instead of mocking the wire
// format by hand.
func TestTranslateAgainstRecordedProvider(t *testing.T) {
	r, cleanup := testutil.NewVCRRecorder(t, "translate")
	defer cleanup()

	c := NewClient("test-key", WithHTTPClient(testutil.VCRHTTPClient(r)))

	got, err := c.Translate(context.Background(), "I have had a fever for three days", "en-IN", "hi-IN")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != "मुझे तीन दिन से बुखार है" {
		t.Errorf("translated = %q", got)
	}
}
