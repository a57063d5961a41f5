// Canonical error types for the triage pipeline.
package domain

import (
	"errors"
	"fmt"
)

// ErrorType categorizes a pipeline failure. The category decides how the
// orchestrator reacts: inbound-understanding failures abort the turn with a
// retry message, outbound-enrichment failures degrade to text-only delivery.
type ErrorType string

const (
	// ErrorTypeDuplicateMessage indicates a message ID already processed.
	ErrorTypeDuplicateMessage ErrorType = "duplicate_message"

	// ErrorTypeUnsupportedKind indicates a message kind the bot cannot handle.
	ErrorTypeUnsupportedKind ErrorType = "unsupported_kind"

	// ErrorTypeEmptyTranscript indicates STT returned no usable text.
	ErrorTypeEmptyTranscript ErrorType = "empty_transcript"

	// ErrorTypeReasoningParse indicates the engine output could not be parsed.
	ErrorTypeReasoningParse ErrorType = "reasoning_parse"

	// ErrorTypeTranslationInbound indicates source-to-English translation
	// failed. Fatal for the turn: no English text may be fabricated.
	ErrorTypeTranslationInbound ErrorType = "translation_inbound"

	// ErrorTypeTranslationOutbound indicates English-to-reply translation
	// failed. Non-fatal: the English text is sent instead.
	ErrorTypeTranslationOutbound ErrorType = "translation_outbound"

	// ErrorTypeSpeechSynthesis indicates TTS failed. Audio is skipped.
	ErrorTypeSpeechSynthesis ErrorType = "speech_synthesis"

	// ErrorTypeAudioUpload indicates the media upload failed. Audio is skipped.
	ErrorTypeAudioUpload ErrorType = "audio_upload"

	// ErrorTypeAudioSend indicates the audio message send failed.
	ErrorTypeAudioSend ErrorType = "audio_send"

	// ErrorTypePersistence indicates a durable-store write failed. Logged,
	// never surfaced to the user.
	ErrorTypePersistence ErrorType = "persistence"

	// ErrorTypeReasoning indicates the reasoning engine call itself failed.
	ErrorTypeReasoning ErrorType = "reasoning"
)

// PipelineError is a categorized pipeline failure.
type PipelineError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError creates a categorized pipeline error wrapping err.
func NewPipelineError(t ErrorType, message string, err error) *PipelineError {
	return &PipelineError{Type: t, Message: message, Err: err}
}

// IsErrorType reports whether err is a PipelineError of the given type.
func IsErrorType(err error, t ErrorType) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Type == t
	}
	return false
}

// Fatal reports whether this error aborts the turn. Inbound-understanding
// failures are fatal; everything else is absorbed with a fallback.
func (e *PipelineError) Fatal() bool {
	switch e.Type {
	case ErrorTypeEmptyTranscript, ErrorTypeTranslationInbound, ErrorTypeReasoning:
		return true
	}
	return false
}
