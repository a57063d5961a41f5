// Package domain holds the core types shared across the triage pipeline.
package domain

import "time"

// MessageKind classifies an inbound channel message.
type MessageKind string

const (
	MessageKindText        MessageKind = "text"
	MessageKindAudio       MessageKind = "audio"
	MessageKindUnsupported MessageKind = "unsupported"
)

// InboundMessage is a decoded webhook message. Immutable once received.
type InboundMessage struct {
	// ID is the provider-assigned message ID, used for deduplication.
	ID string

	// Sender is the stable channel identity (phone number).
	Sender string

	// DisplayName is the contact name reported by the channel, if any.
	DisplayName string

	Kind MessageKind

	// Text is set for text messages.
	Text string

	// Audio is the raw media bytes for audio messages.
	Audio []byte
}

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// SessionTurn is one entry in a sender's rolling conversation window.
// Content is always English-normalized.
type SessionTurn struct {
	Role      Role
	Content   string
	Timestamp time.Time

	// Language is the source language of this turn (BCP-47, e.g. "hi-IN").
	Language string

	// Diagnosis is set on assistant turns that delivered a triage assessment.
	Diagnosis *TriageAssessment
}

// Severity is the clinical urgency classification.
type Severity string

const (
	SeverityEmergency Severity = "emergency"
	SeverityUrgent    Severity = "urgent"
	SeverityRoutine   Severity = "routine"
)

// Valid reports whether s is one of the three defined severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityEmergency, SeverityUrgent, SeverityRoutine:
		return true
	}
	return false
}

// TriageAssessment is the structured payload of a diagnosis result.
type TriageAssessment struct {
	Condition         string   `json:"condition"`
	Severity          Severity `json:"severity"`
	Confidence        float64  `json:"confidence"`
	RecommendedAction string   `json:"recommended_action"`
	SpecialistNeeded  string   `json:"specialist_needed"`
	RedFlags          []string `json:"red_flags"`
	HomeCare          string   `json:"home_care,omitempty"`
}

// ResultKind tags a ReasoningResult.
type ResultKind string

const (
	ResultQuestion  ResultKind = "question"
	ResultDiagnosis ResultKind = "diagnosis"
)

// ReasoningResult is the normalized output of the reasoning engine: either a
// follow-up question or a full triage assessment.
type ReasoningResult struct {
	Kind    ResultKind
	Message string

	// Assessment is set only when Kind is ResultDiagnosis.
	Assessment *TriageAssessment
}

// PatientContext is optional demographic context passed to the reasoning
// engine alongside the symptom text.
type PatientContext struct {
	Age    int
	Gender string
}

// ConversationStatus is the dashboard-facing status of a durable record.
type ConversationStatus string

const (
	StatusActive    ConversationStatus = "active"
	StatusCompleted ConversationStatus = "completed"
	StatusEmergency ConversationStatus = "emergency"
)

// MergeStatus applies the status transition rule: emergency is sticky and is
// never downgraded; completed overrides active.
func MergeStatus(current, next ConversationStatus) ConversationStatus {
	if current == StatusEmergency {
		return StatusEmergency
	}
	if next == "" {
		return current
	}
	return next
}

// RecordMessage is one message inside a durable ConversationRecord.
type RecordMessage struct {
	Role         Role      `json:"role"`
	Content      string    `json:"content"`
	OriginalText string    `json:"original_text,omitempty"`
	EnglishText  string    `json:"english_text,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Language     string    `json:"language,omitempty"`
	AudioRef     string    `json:"audio_ref,omitempty"`
}

// ConversationRecord is the durable, dashboard-facing log of a sender's
// conversation within one 24h activity window.
type ConversationRecord struct {
	ID            string             `json:"id"`
	Sender        string             `json:"sender"`
	DisplayName   string             `json:"display_name"`
	Messages      []RecordMessage    `json:"messages"`
	Status        ConversationStatus `json:"status"`
	Language      string             `json:"language"`
	LastDiagnosis *TriageAssessment  `json:"last_diagnosis,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}
