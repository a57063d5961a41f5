package ingress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nidaan-ai/triage-gateway/internal/dedup"
	"github.com/nidaan-ai/triage-gateway/internal/domain"
)

type fakeProcessor struct {
	msgs []domain.InboundMessage
	err  error
}

func (f *fakeProcessor) Process(_ context.Context, msg domain.InboundMessage) error {
	f.msgs = append(f.msgs, msg)
	return f.err
}

type fakeMedia struct {
	data []byte
	err  error
}

func (f *fakeMedia) DownloadMedia(_ context.Context, _ string) ([]byte, error) {
	return f.data, f.err
}

type fakeNotifier struct {
	texts []string
}

func (f *fakeNotifier) SendText(_ context.Context, _, body string) error {
	f.texts = append(f.texts, body)
	return nil
}

type failingCache struct{}

func (failingCache) Register(context.Context, string) (bool, error) {
	return false, errors.New("cache down")
}

func newTestHandler(t *testing.T) (*Handler, *fakeProcessor, *fakeMedia, *fakeNotifier) {
	t.Helper()
	cache, err := dedup.New(dedup.DriverMemory)
	if err != nil {
		t.Fatalf("dedup.New: %v", err)
	}
	proc := &fakeProcessor{}
	media := &fakeMedia{data: []byte("OggS....")}
	notifier := &fakeNotifier{}
	h := NewHandler("open-sesame", proc, media, notifier, cache, slog.New(slog.NewTextHandler(io.Discard, nil)))
	// Synchronous dispatch keeps assertions deterministic.
	h.dispatch = func(work func(ctx context.Context)) {
		work(context.Background())
	}
	return h, proc, media, notifier
}

func textEnvelope(msgID, from, body string) string {
	return fmt.Sprintf(`{
		"object": "whatsapp_business_account",
		"entry": [{"id": "e1", "changes": [{"field": "messages", "value": {
			"messaging_product": "whatsapp",
			"contacts": [{"wa_id": %q, "profile": {"name": "Asha"}}],
			"messages": [{"id": %q, "from": %q, "timestamp": "1700000000", "type": "text", "text": {"body": %q}}]
		}}]}]
	}`, from, msgID, from, body)
}

func post(h *Handler, payload string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	h.Receive(rec, req)
	return rec
}

func TestVerifyHandshake(t *testing.T) {
	h, _, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=open-sesame&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	h.Verify(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "12345" {
		t.Errorf("challenge = %q", rec.Body.String())
	}
}

func TestVerifyRejectsBadToken(t *testing.T) {
	h, _, _, _ := newTestHandler(t)

	for _, url := range []string{
		"/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=1",
		"/webhook?hub.mode=unsubscribe&hub.verify_token=open-sesame&hub.challenge=1",
		"/webhook",
	} {
		req := httptest.NewRequest(http.MethodGet, url, nil)
		rec := httptest.NewRecorder()
		h.Verify(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s: status = %d, want 403", url, rec.Code)
		}
	}
}

func TestReceiveTextMessage(t *testing.T) {
	h, proc, _, _ := newTestHandler(t)

	rec := post(h, textEnvelope("wamid.A", "+911234", "I have a headache"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(proc.msgs) != 1 {
		t.Fatalf("processed = %d, want 1", len(proc.msgs))
	}
	got := proc.msgs[0]
	if got.Kind != domain.MessageKindText || got.Text != "I have a headache" {
		t.Errorf("msg = %+v", got)
	}
	if got.DisplayName != "Asha" {
		t.Errorf("display name = %q", got.DisplayName)
	}
}

func TestReceiveDuplicateSkipped(t *testing.T) {
	h, proc, _, _ := newTestHandler(t)

	post(h, textEnvelope("wamid.DUP", "+911234", "hello"))
	post(h, textEnvelope("wamid.DUP", "+911234", "hello"))

	if len(proc.msgs) != 1 {
		t.Errorf("processed = %d, want 1 (redelivery suppressed)", len(proc.msgs))
	}
}

func TestReceiveAudioMessage(t *testing.T) {
	h, proc, media, _ := newTestHandler(t)
	media.data = []byte{0x4F, 0x67, 0x67, 0x53, 0x00}

	payload := `{
		"object": "whatsapp_business_account",
		"entry": [{"changes": [{"value": {
			"messages": [{"id": "wamid.V", "from": "+911234", "type": "audio", "audio": {"id": "media-9", "mime_type": "audio/ogg"}}]
		}}]}]
	}`
	post(h, payload)

	if len(proc.msgs) != 1 {
		t.Fatalf("processed = %d", len(proc.msgs))
	}
	if proc.msgs[0].Kind != domain.MessageKindAudio || len(proc.msgs[0].Audio) != 5 {
		t.Errorf("msg = %+v", proc.msgs[0])
	}
}

func TestReceiveAudioDownloadFailure(t *testing.T) {
	h, proc, media, notifier := newTestHandler(t)
	media.err = errors.New("expired media url")

	payload := `{"entry": [{"changes": [{"value": {
		"messages": [{"id": "wamid.F", "from": "+911234", "type": "audio", "audio": {"id": "media-9"}}]
	}}]}]}`
	rec := post(h, payload)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, webhook must still ack", rec.Code)
	}
	if len(proc.msgs) != 0 {
		t.Error("failed download must not reach the pipeline")
	}
	if len(notifier.texts) != 1 {
		t.Errorf("notices = %v", notifier.texts)
	}
}

func TestReceiveUnsupportedKind(t *testing.T) {
	h, proc, _, notifier := newTestHandler(t)

	payload := `{"entry": [{"changes": [{"value": {
		"messages": [{"id": "wamid.I", "from": "+911234", "type": "image"}]
	}}]}]}`
	post(h, payload)

	if len(proc.msgs) != 0 {
		t.Error("unsupported kind must not reach the pipeline")
	}
	if len(notifier.texts) != 1 || notifier.texts[0] != capabilityNotice {
		t.Errorf("notices = %v", notifier.texts)
	}
}

func TestReceiveStatusOnlyAck(t *testing.T) {
	h, proc, _, notifier := newTestHandler(t)

	payload := `{"entry": [{"changes": [{"value": {
		"statuses": [{"id": "wamid.S", "status": "delivered"}]
	}}]}]}`
	rec := post(h, payload)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if len(proc.msgs) != 0 || len(notifier.texts) != 0 {
		t.Error("status receipts trigger no work")
	}
}

func TestReceiveMalformedBody(t *testing.T) {
	h, _, _, _ := newTestHandler(t)

	rec := post(h, `{"entry": [`)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, malformed payloads still get 200", rec.Code)
	}
}

// blockingMedia holds DownloadMedia until released, signalling when the
// download starts.
type blockingMedia struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingMedia) DownloadMedia(_ context.Context, _ string) ([]byte, error) {
	close(b.started)
	<-b.release
	return []byte("OggS...."), nil
}

type signallingProcessor struct {
	done chan domain.InboundMessage
}

func (p *signallingProcessor) Process(_ context.Context, msg domain.InboundMessage) error {
	p.done <- msg
	return nil
}

func TestReceiveAcksBeforeMediaDownload(t *testing.T) {
	cache, err := dedup.New(dedup.DriverMemory)
	if err != nil {
		t.Fatalf("dedup.New: %v", err)
	}
	media := &blockingMedia{started: make(chan struct{}), release: make(chan struct{})}
	proc := &signallingProcessor{done: make(chan domain.InboundMessage, 1)}
	h := NewHandler("open-sesame", proc, media, &fakeNotifier{}, cache, slog.New(slog.NewTextHandler(io.Discard, nil)))

	payload := `{"entry": [{"changes": [{"value": {
		"messages": [{"id": "wamid.B", "from": "+911234", "type": "audio", "audio": {"id": "media-1"}}]
	}}]}]}`

	// Receive must return while the download is still pending.
	rec := post(h, payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	select {
	case <-media.started:
	case <-time.After(2 * time.Second):
		t.Fatal("download never started")
	}
	close(media.release)

	select {
	case msg := <-proc.done:
		if msg.Kind != domain.MessageKindAudio || len(msg.Audio) == 0 {
			t.Errorf("msg = %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("turn never ran after download completed")
	}
}

func TestReceiveDedupFailureProcessesAnyway(t *testing.T) {
	h, proc, _, _ := newTestHandler(t)
	h.dedup = failingCache{}

	post(h, textEnvelope("wamid.C", "+911234", "fever"))

	if len(proc.msgs) != 1 {
		t.Error("unreachable dedup cache must not drop messages")
	}
}
