package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nidaan-ai/triage-gateway/internal/audiostore"
	"github.com/nidaan-ai/triage-gateway/internal/convstore"
	"github.com/nidaan-ai/triage-gateway/internal/domain"
)

func newTestAPI(t *testing.T) (*chi.Mux, *convstore.Store, *audiostore.Store) {
	t.Helper()
	store, err := convstore.Open(filepath.Join(t.TempDir(), "conv.db"))
	if err != nil {
		t.Fatalf("convstore.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	audio := audiostore.New()
	h := NewHandler(store, audio, slog.New(slog.NewTextHandler(io.Discard, nil)))

	r := chi.NewRouter()
	h.Mount(r)
	return r, store, audio
}

func seed(t *testing.T, store *convstore.Store, sender string, status domain.ConversationStatus) {
	t.Helper()
	err := store.Append(context.Background(), convstore.AppendParams{
		Sender: sender,
		Message: domain.RecordMessage{
			Role:      domain.RoleUser,
			Content:   "I have a fever",
			Timestamp: time.Now(),
		},
		Status: status,
	})
	if err != nil {
		t.Fatalf("seed append: %v", err)
	}
}

func get(r http.Handler, url string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	return rec
}

func TestListConversations(t *testing.T) {
	r, store, _ := newTestAPI(t)
	seed(t, store, "+911111", "")
	seed(t, store, "+912222", domain.StatusEmergency)

	rec := get(r, "/api/conversations")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Conversations []*domain.ConversationRecord `json:"conversations"`
		Total         int                          `json:"total"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 {
		t.Errorf("total = %d", resp.Total)
	}
}

func TestListFilterByStatus(t *testing.T) {
	r, store, _ := newTestAPI(t)
	seed(t, store, "+911111", "")
	seed(t, store, "+912222", domain.StatusEmergency)

	rec := get(r, "/api/conversations?status=emergency")
	var resp struct {
		Conversations []*domain.ConversationRecord `json:"conversations"`
	}
	json.NewDecoder(rec.Body).Decode(&resp)

	if len(resp.Conversations) != 1 || resp.Conversations[0].Sender != "+912222" {
		t.Errorf("filtered = %+v", resp.Conversations)
	}
}

func TestListRejectsUnknownStatus(t *testing.T) {
	r, _, _ := newTestAPI(t)
	if rec := get(r, "/api/conversations?status=archived"); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetConversation(t *testing.T) {
	r, store, _ := newTestAPI(t)
	seed(t, store, "+911111", "")

	list, err := store.List(context.Background(), convstore.ListOptions{})
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %d", err, len(list))
	}

	rec := get(r, "/api/conversations/"+list[0].ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var record domain.ConversationRecord
	if err := json.NewDecoder(rec.Body).Decode(&record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record.Sender != "+911111" || len(record.Messages) != 1 {
		t.Errorf("record = %+v", record)
	}
}

func TestGetConversationNotFound(t *testing.T) {
	r, _, _ := newTestAPI(t)
	if rec := get(r, "/api/conversations/no-such-id"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGetAudio(t *testing.T) {
	r, _, audio := newTestAPI(t)
	id := audio.Put([]byte{0xFF, 0xFB, 0x90}, "audio/mpeg")

	rec := get(r, "/api/audio/"+id)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("content type = %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-store" {
		t.Errorf("cache control = %q", cc)
	}
	if rec.Body.Len() != 3 {
		t.Errorf("body length = %d", rec.Body.Len())
	}
}

func TestGetAudioExpired(t *testing.T) {
	r, _, _ := newTestAPI(t)
	if rec := get(r, "/api/audio/unknown"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
