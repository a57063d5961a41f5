// Package session keeps the per-sender rolling conversation window used as
// reasoning context. Sessions are bounded (oldest turns dropped past the
// cap) and expire 24 hours after the turn that produced them; expired turns
// are filtered lazily on every read rather than actively swept.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nidaan-ai/triage-gateway/internal/domain"
)

const (
	// DefaultMaxTurns bounds a sender's rolling window.
	DefaultMaxTurns = 20

	// DefaultExpiry is how long a turn remains usable as context.
	DefaultExpiry = 24 * time.Hour
)

// Store is the per-sender conversation window.
type Store interface {
	// Turns returns the sender's unexpired turns, oldest first.
	Turns(ctx context.Context, sender string) ([]domain.SessionTurn, error)

	// Append adds a turn, dropping the oldest once the cap is exceeded.
	Append(ctx context.Context, sender string, turn domain.SessionTurn) error

	// LastLanguage returns the most recent turn language for the sender, or
	// "" when no unexpired turn carries one.
	LastLanguage(ctx context.Context, sender string) (string, error)

	// Clear discards the sender's session.
	Clear(ctx context.Context, sender string) error
}

// DriverType selects a store backend.
type DriverType string

const (
	DriverMemory DriverType = "memory"
	DriverRedis  DriverType = "redis"
)

// ErrInvalidConfig is returned when a driver is missing required options.
var ErrInvalidConfig = errors.New("session: invalid configuration")

// ErrInvalidDriver is returned for an unknown driver type.
var ErrInvalidDriver = errors.New("session: unknown driver type")

type storeConfig struct {
	maxTurns    int
	expiry      time.Duration
	redisClient *redis.Client
	now         func() time.Time
}

// Option configures a store created by New.
type Option func(*storeConfig)

// WithMaxTurns overrides the rolling-window cap.
func WithMaxTurns(n int) Option {
	return func(c *storeConfig) {
		c.maxTurns = n
	}
}

// WithExpiry overrides the per-turn expiry window.
func WithExpiry(d time.Duration) Option {
	return func(c *storeConfig) {
		c.expiry = d
	}
}

// WithRedisClient supplies the client for the redis driver.
func WithRedisClient(client *redis.Client) Option {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithClock overrides the time source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(c *storeConfig) {
		c.now = now
	}
}

// New creates a Store for the given driver type.
func New(driver DriverType, opts ...Option) (Store, error) {
	cfg := &storeConfig{
		maxTurns: DefaultMaxTurns,
		expiry:   DefaultExpiry,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	switch driver {
	case DriverMemory:
		return &memoryStore{
			sessions: make(map[string][]domain.SessionTurn),
			maxTurns: cfg.maxTurns,
			expiry:   cfg.expiry,
			now:      cfg.now,
		}, nil

	case DriverRedis:
		if cfg.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return &redisStore{
			client:   cfg.redisClient,
			maxTurns: cfg.maxTurns,
			expiry:   cfg.expiry,
			now:      cfg.now,
		}, nil

	default:
		return nil, ErrInvalidDriver
	}
}

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]domain.SessionTurn
	maxTurns int
	expiry   time.Duration
	now      func() time.Time
}

func (s *memoryStore) Turns(_ context.Context, sender string) ([]domain.SessionTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validLocked(sender), nil
}

// validLocked filters out expired turns and writes the pruned slice back.
// Callers must hold the write lock.
func (s *memoryStore) validLocked(sender string) []domain.SessionTurn {
	entries, ok := s.sessions[sender]
	if !ok {
		return nil
	}

	cutoff := s.now().Add(-s.expiry)
	valid := entries[:0:0]
	for _, e := range entries {
		if e.Timestamp.After(cutoff) {
			valid = append(valid, e)
		}
	}

	if len(valid) != len(entries) {
		if len(valid) == 0 {
			delete(s.sessions, sender)
		} else {
			s.sessions[sender] = valid
		}
	}

	out := make([]domain.SessionTurn, len(valid))
	copy(out, valid)
	return out
}

func (s *memoryStore) Append(_ context.Context, sender string, turn domain.SessionTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.validLocked(sender)
	entries = append(entries, turn)
	if len(entries) > s.maxTurns {
		entries = entries[len(entries)-s.maxTurns:]
	}
	s.sessions[sender] = entries
	return nil
}

func (s *memoryStore) LastLanguage(ctx context.Context, sender string) (string, error) {
	turns, err := s.Turns(ctx, sender)
	if err != nil {
		return "", err
	}
	return lastLanguage(turns), nil
}

func (s *memoryStore) Clear(_ context.Context, sender string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sender)
	return nil
}

func lastLanguage(turns []domain.SessionTurn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Language != "" {
			return turns[i].Language
		}
	}
	return ""
}

// redisStore keeps each sender's window as a JSON blob with the expiry as
// the key TTL, refreshed on every append.
type redisStore struct {
	client   *redis.Client
	maxTurns int
	expiry   time.Duration
	now      func() time.Time
}

func key(sender string) string {
	return "session:" + sender
}

func (s *redisStore) load(ctx context.Context, sender string) ([]domain.SessionTurn, error) {
	raw, err := s.client.Get(ctx, key(sender)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var turns []domain.SessionTurn
	if err := json.Unmarshal(raw, &turns); err != nil {
		return nil, err
	}

	cutoff := s.now().Add(-s.expiry)
	valid := turns[:0:0]
	for _, t := range turns {
		if t.Timestamp.After(cutoff) {
			valid = append(valid, t)
		}
	}
	return valid, nil
}

func (s *redisStore) Turns(ctx context.Context, sender string) ([]domain.SessionTurn, error) {
	return s.load(ctx, sender)
}

func (s *redisStore) Append(ctx context.Context, sender string, turn domain.SessionTurn) error {
	turns, err := s.load(ctx, sender)
	if err != nil {
		return err
	}

	turns = append(turns, turn)
	if len(turns) > s.maxTurns {
		turns = turns[len(turns)-s.maxTurns:]
	}

	raw, err := json.Marshal(turns)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key(sender), raw, s.expiry).Err()
}

func (s *redisStore) LastLanguage(ctx context.Context, sender string) (string, error) {
	turns, err := s.load(ctx, sender)
	if err != nil {
		return "", err
	}
	return lastLanguage(turns), nil
}

func (s *redisStore) Clear(ctx context.Context, sender string) error {
	return s.client.Del(ctx, key(sender)).Err()
}
