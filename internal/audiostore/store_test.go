package audiostore

import (
	"testing"
	"time"
)

func TestPutGet(t *testing.T) {
	s := New()

	id := s.Put([]byte{0xFF, 0xFB, 0x01}, "audio/mpeg")
	if id == "" {
		t.Fatal("empty id")
	}

	data, mime, ok := s.Get(id)
	if !ok {
		t.Fatal("blob not found")
	}
	if mime != "audio/mpeg" {
		t.Errorf("mime = %q", mime)
	}
	if len(data) != 3 {
		t.Errorf("data = %v", data)
	}
}

func TestGetUnknown(t *testing.T) {
	s := New()
	if _, _, ok := s.Get("nope"); ok {
		t.Error("unknown id should not be found")
	}
}

func TestExpiry(t *testing.T) {
	current := time.Now()
	s := New(WithClock(func() time.Time { return current }))

	id := s.Put([]byte("audio"), "audio/ogg")

	current = current.Add(4 * time.Minute)
	if _, _, ok := s.Get(id); !ok {
		t.Fatal("blob expired too early")
	}

	current = current.Add(2 * time.Minute)
	if _, _, ok := s.Get(id); ok {
		t.Error("blob should be expired after the TTL")
	}
}

func TestDistinctIDs(t *testing.T) {
	s := New()
	a := s.Put([]byte("a"), "audio/mpeg")
	b := s.Put([]byte("b"), "audio/mpeg")
	if a == b {
		t.Error("ids must be unique")
	}
}
