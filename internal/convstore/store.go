// Package convstore persists dashboard-facing conversation records in
// SQLite. One record per sender per rolling 24h activity window; a sender
// who returns after a day of silence starts a new record.
package convstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nidaan-ai/triage-gateway/internal/domain"
)

// activityWindow is how long a record keeps accepting new messages.
const activityWindow = 24 * time.Hour

// ErrNotFound is returned by Get for unknown conversation IDs.
var ErrNotFound = errors.New("conversation not found")

// Store is a SQLite-backed conversation record store.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open opens (or creates) the database at path and initializes the schema.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA foreign_keys = ON`,
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	store := &Store{db: db, now: time.Now}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
id TEXT PRIMARY KEY,
sender TEXT NOT NULL,
display_name TEXT,
messages TEXT NOT NULL,
status TEXT NOT NULL,
language TEXT,
last_diagnosis TEXT,
created_at TIMESTAMP NOT NULL,
updated_at TIMESTAMP NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_sender ON conversations(sender, updated_at)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_status ON conversations(status)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// AppendParams describes one message to record.
type AppendParams struct {
	Sender      string
	DisplayName string
	Message     domain.RecordMessage
	Language    string
	Assessment  *domain.TriageAssessment
	Status      domain.ConversationStatus
}

type row struct {
	ID            string    `db:"id"`
	Sender        string    `db:"sender"`
	DisplayName   string    `db:"display_name"`
	Messages      string    `db:"messages"`
	Status        string    `db:"status"`
	Language      string    `db:"language"`
	LastDiagnosis *string   `db:"last_diagnosis"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// Append adds a message to the sender's active record within the activity
// window, creating a fresh record when none qualifies. Status transitions
// honor the sticky-emergency rule.
func (s *Store) Append(ctx context.Context, p AppendParams) error {
	cutoff := s.now().Add(-activityWindow)

	var existing row
	err := s.db.GetContext(ctx, &existing,
		`SELECT id, sender, display_name, messages, status, language, last_diagnosis, created_at, updated_at
		 FROM conversations
		 WHERE sender = ? AND status IN ('active', 'emergency') AND updated_at >= ?
		 ORDER BY updated_at DESC LIMIT 1`,
		p.Sender, cutoff)

	if err == sql.ErrNoRows {
		return s.insert(ctx, p)
	}
	if err != nil {
		return fmt.Errorf("failed to look up conversation: %w", err)
	}

	var messages []domain.RecordMessage
	if err := json.Unmarshal([]byte(existing.Messages), &messages); err != nil {
		return fmt.Errorf("failed to unmarshal messages: %w", err)
	}
	messages = append(messages, p.Message)

	messagesJSON, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}

	status := domain.MergeStatus(domain.ConversationStatus(existing.Status), p.Status)

	displayName := existing.DisplayName
	if p.DisplayName != "" && (displayName == "" || displayName == "Unknown") {
		displayName = p.DisplayName
	}

	language := existing.Language
	if p.Language != "" {
		language = p.Language
	}

	diagnosisJSON := existing.LastDiagnosis
	if p.Assessment != nil {
		raw, err := json.Marshal(p.Assessment)
		if err != nil {
			return fmt.Errorf("failed to marshal diagnosis: %w", err)
		}
		encoded := string(raw)
		diagnosisJSON = &encoded
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE conversations
		 SET messages = ?, status = ?, display_name = ?, language = ?, last_diagnosis = ?, updated_at = ?
		 WHERE id = ?`,
		string(messagesJSON), string(status), displayName, language, diagnosisJSON, s.now(), existing.ID)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	return nil
}

func (s *Store) insert(ctx context.Context, p AppendParams) error {
	messagesJSON, err := json.Marshal([]domain.RecordMessage{p.Message})
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}

	status := p.Status
	if status == "" {
		status = domain.StatusActive
	}
	displayName := p.DisplayName
	if displayName == "" {
		displayName = "Unknown"
	}
	language := p.Language
	if language == "" {
		language = "en-IN"
	}

	var diagnosisJSON *string
	if p.Assessment != nil {
		raw, err := json.Marshal(p.Assessment)
		if err != nil {
			return fmt.Errorf("failed to marshal diagnosis: %w", err)
		}
		encoded := string(raw)
		diagnosisJSON = &encoded
	}

	now := s.now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, sender, display_name, messages, status, language, last_diagnosis, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), p.Sender, displayName, string(messagesJSON), string(status), language, diagnosisJSON, now, now)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

// Get returns a record by ID.
func (s *Store) Get(ctx context.Context, id string) (*domain.ConversationRecord, error) {
	var r row
	err := s.db.GetContext(ctx, &r,
		`SELECT id, sender, display_name, messages, status, language, last_diagnosis, created_at, updated_at
		 FROM conversations WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return r.toRecord()
}

// ListOptions filters List results.
type ListOptions struct {
	Status domain.ConversationStatus
	Limit  int
}

// List returns records newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*domain.ConversationRecord, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	var rows []row
	var err error
	if opts.Status != "" {
		err = s.db.SelectContext(ctx, &rows,
			`SELECT id, sender, display_name, messages, status, language, last_diagnosis, created_at, updated_at
			 FROM conversations WHERE status = ? ORDER BY updated_at DESC LIMIT ?`,
			string(opts.Status), limit)
	} else {
		err = s.db.SelectContext(ctx, &rows,
			`SELECT id, sender, display_name, messages, status, language, last_diagnosis, created_at, updated_at
			 FROM conversations ORDER BY updated_at DESC LIMIT ?`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	records := make([]*domain.ConversationRecord, 0, len(rows))
	for _, r := range rows {
		rec, err := r.toRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r row) toRecord() (*domain.ConversationRecord, error) {
	var messages []domain.RecordMessage
	if err := json.Unmarshal([]byte(r.Messages), &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal messages: %w", err)
	}

	rec := &domain.ConversationRecord{
		ID:          r.ID,
		Sender:      r.Sender,
		DisplayName: r.DisplayName,
		Messages:    messages,
		Status:      domain.ConversationStatus(r.Status),
		Language:    r.Language,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}

	if r.LastDiagnosis != nil && *r.LastDiagnosis != "" {
		var diag domain.TriageAssessment
		if err := json.Unmarshal([]byte(*r.LastDiagnosis), &diag); err != nil {
			return nil, fmt.Errorf("failed to unmarshal diagnosis: %w", err)
		}
		rec.LastDiagnosis = &diag
	}
	return rec, nil
}
