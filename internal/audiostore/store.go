// Package audiostore holds synthesized audio just long enough for the
// messaging channel to fetch it. Entries expire after a short TTL and are
// swept opportunistically on access.
package audiostore

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long a stored blob stays fetchable.
const DefaultTTL = 5 * time.Minute

type entry struct {
	data      []byte
	mimeType  string
	createdAt time.Time
}

// Store is an in-memory ephemeral audio store.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// Option configures the store.
type Option func(*Store)

// WithTTL overrides the entry TTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithClock overrides the time source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]entry),
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put stores audio bytes and returns an opaque ID.
func (s *Store) Put(data []byte, mimeType string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()

	id := uuid.New().String()
	s.entries[id] = entry{data: data, mimeType: mimeType, createdAt: s.now()}
	return id
}

// Get returns the audio for id, or ok=false when missing or expired.
func (s *Store) Get(id string) (data []byte, mimeType string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()

	e, found := s.entries[id]
	if !found {
		return nil, "", false
	}
	return e.data, e.mimeType, true
}

func (s *Store) sweepLocked() {
	cutoff := s.now().Add(-s.ttl)
	for id, e := range s.entries {
		if e.createdAt.Before(cutoff) {
			delete(s.entries, id)
		}
	}
}
