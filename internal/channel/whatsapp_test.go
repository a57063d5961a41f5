package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/12345/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth header = %q", got)
		}
		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		if payload["type"] != "text" {
			t.Errorf("type = %v", payload["type"])
		}
		if payload["to"] != "+919900112233" {
			t.Errorf("to = %v", payload["to"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]string{{"id": "wamid.out1"}},
		})
	}))
	defer srv.Close()

	c := NewClient("tok", "12345", WithBaseURL(srv.URL))
	if err := c.SendText(context.Background(), "+919900112233", "How many days?"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
}

func TestSendAudio_UploadThenSend(t *testing.T) {
	var sawUpload, sawSend bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/12345/media":
			sawUpload = true
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Fatalf("parse multipart: %v", err)
			}
			if got := r.FormValue("messaging_product"); got != "whatsapp" {
				t.Errorf("messaging_product = %q", got)
			}
			if got := r.FormValue("type"); got != "audio/ogg" {
				t.Errorf("mime = %q", got)
			}
			json.NewEncoder(w).Encode(map[string]string{"id": "media-42"})
		case "/12345/messages":
			sawSend = true
			var payload map[string]any
			json.NewDecoder(r.Body).Decode(&payload)
			audio, _ := payload["audio"].(map[string]any)
			if audio["id"] != "media-42" {
				t.Errorf("audio id = %v, want uploaded handle", audio["id"])
			}
			json.NewEncoder(w).Encode(map[string]any{
				"messages": []map[string]string{{"id": "wamid.out2"}},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient("tok", "12345", WithBaseURL(srv.URL))
	if err := c.SendAudio(context.Background(), "+919900112233", []byte("OggS...."), "audio/ogg"); err != nil {
		t.Fatalf("SendAudio: %v", err)
	}
	if !sawUpload || !sawSend {
		t.Errorf("upload=%v send=%v, want both", sawUpload, sawSend)
	}
}

func TestDownloadMedia(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/media-7":
			json.NewEncoder(w).Encode(map[string]string{"url": srv.URL + "/cdn/blob-7"})
		case "/cdn/blob-7":
			if got := r.Header.Get("Authorization"); got != "Bearer tok" {
				t.Errorf("download must reuse bearer credential, got %q", got)
			}
			w.Write([]byte("opus-bytes"))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient("tok", "12345", WithBaseURL(srv.URL))
	data, err := c.DownloadMedia(context.Background(), "media-7")
	if err != nil {
		t.Fatalf("DownloadMedia: %v", err)
	}
	if string(data) != "opus-bytes" {
		t.Errorf("data = %q", data)
	}
}

func TestSendText_ErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad token"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient("bad", "12345", WithBaseURL(srv.URL))
	if err := c.SendText(context.Background(), "+1", "hi"); err == nil {
		t.Error("want error on non-200")
	}
}
