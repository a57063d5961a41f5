// Package orchestrator drives one inbound turn through the conversation
// pipeline: transcription, translation to English, reasoning, localization,
// speech synthesis and delivery, with session and durable-record updates as
// side effects.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nidaan-ai/triage-gateway/internal/bridge"
	"github.com/nidaan-ai/triage-gateway/internal/convstore"
	"github.com/nidaan-ai/triage-gateway/internal/domain"
	"github.com/nidaan-ai/triage-gateway/internal/reasoning"
	"github.com/nidaan-ai/triage-gateway/internal/session"
	"github.com/nidaan-ai/triage-gateway/internal/sniff"
)

const (
	apologyRetryAudio = "Sorry, I could not hear that clearly. Please try sending your message again."
	apologyGeneric    = "Sorry, something went wrong while processing your message. Please try again."
)

// SpeechBridge is the slice of the language bridge the orchestrator needs.
type SpeechBridge interface {
	SpeechToText(ctx context.Context, audio []byte, languageHint string) (*bridge.Transcription, error)
	Translate(ctx context.Context, text, source, target string) (string, error)
	TextToSpeech(ctx context.Context, text, target string) ([][]byte, error)
}

// Analyzer produces a reasoning result from an English message and context.
type Analyzer interface {
	Analyze(ctx context.Context, englishMessage string, priorTurns []domain.SessionTurn, patient *domain.PatientContext) (*domain.ReasoningResult, error)
}

// Deliverer sends outbound messages through the channel.
type Deliverer interface {
	SendText(ctx context.Context, to, body string) error
	SendAudio(ctx context.Context, to string, data []byte, mimeType string) error
}

// Recorder appends messages to the durable conversation record.
type Recorder interface {
	Append(ctx context.Context, p convstore.AppendParams) error
}

// AudioStore keeps synthesized audio fetchable for a short window.
type AudioStore interface {
	Put(data []byte, mimeType string) string
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithFallbackLanguage sets the reply language used for non-ASCII text from
// senders with no session history. Defaults to Hindi.
func WithFallbackLanguage(code string) Option {
	return func(o *Orchestrator) {
		o.fallbackLanguage = code
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// Orchestrator is the conversation pipeline core.
type Orchestrator struct {
	bridge   SpeechBridge
	analyzer Analyzer
	deliver  Deliverer
	sessions session.Store
	recorder Recorder
	audio    AudioStore

	fallbackLanguage string
	logger           *slog.Logger
	tracer           trace.Tracer
}

// New wires the pipeline.
func New(b SpeechBridge, analyzer Analyzer, deliver Deliverer, sessions session.Store, recorder Recorder, audio AudioStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		bridge:           b,
		analyzer:         analyzer,
		deliver:          deliver,
		sessions:         sessions,
		recorder:         recorder,
		audio:            audio,
		fallbackLanguage: "hi-IN",
		logger:           slog.Default(),
		tracer:           otel.Tracer("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Process runs one inbound turn to completion. Fatal inbound failures lead
// to a best-effort apology to the sender; the error is returned for logging
// either way. There is no synchronous channel back to the webhook caller.
func (o *Orchestrator) Process(ctx context.Context, msg domain.InboundMessage) error {
	ctx, span := o.tracer.Start(ctx, "pipeline.process")
	span.SetAttributes(attribute.String("message.kind", string(msg.Kind)))
	defer span.End()

	err := o.processTurn(ctx, msg)
	if err != nil {
		span.RecordError(err)
		o.logger.Error("turn failed",
			slog.String("sender", msg.Sender),
			slog.String("message_id", msg.ID),
			slog.String("error", err.Error()),
		)
		o.sendApology(ctx, msg.Sender, err)
	}
	return err
}

func (o *Orchestrator) sendApology(ctx context.Context, sender string, cause error) {
	text := apologyGeneric
	if errors.Is(cause, bridge.ErrEmptyTranscript) {
		text = apologyRetryAudio
	}
	if err := o.deliver.SendText(ctx, sender, text); err != nil {
		o.logger.Error("apology delivery failed", slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) processTurn(ctx context.Context, msg domain.InboundMessage) error {
	now := time.Now()

	// Steps 1-3: understand the inbound message. Failures here are fatal
	// for the turn; no English text is ever fabricated.
	originalText, englishText, turnLanguage, replyLanguage, err := o.understand(ctx, msg)
	if err != nil {
		return err
	}

	// Step 4: record the user turn. Persistence is a fire-and-forget side
	// effect; the reply must never depend on it succeeding.
	userTurn := domain.SessionTurn{
		Role:      domain.RoleUser,
		Content:   englishText,
		Timestamp: now,
		Language:  turnLanguage,
	}

	// Step 5: prior turns are fetched before appending the current one so
	// the new message is not duplicated in the reasoning context.
	priorTurns, err := o.sessions.Turns(ctx, msg.Sender)
	if err != nil {
		o.logger.Warn("session read failed", slog.String("error", err.Error()))
		priorTurns = nil
	}
	if err := o.sessions.Append(ctx, msg.Sender, userTurn); err != nil {
		o.logger.Warn("session append failed", slog.String("error", err.Error()))
	}
	o.record(ctx, convstore.AppendParams{
		Sender:      msg.Sender,
		DisplayName: msg.DisplayName,
		Message: domain.RecordMessage{
			Role:         domain.RoleUser,
			Content:      originalText,
			OriginalText: originalText,
			EnglishText:  englishText,
			Timestamp:    now,
			Language:     turnLanguage,
		},
		Language: turnLanguage,
	})

	result, err := o.analyzer.Analyze(ctx, englishText, priorTurns, nil)
	if err != nil {
		return err
	}

	// Step 6: branch on the result kind.
	responseText := reasoning.Sanitize(result.Message)
	status := domain.ConversationStatus("")
	if result.Kind == domain.ResultDiagnosis {
		responseText = reasoning.Sanitize(formatTriageMessage(result.Message, result.Assessment))
		if result.Assessment.Severity == domain.SeverityEmergency {
			status = domain.StatusEmergency
		} else {
			status = domain.StatusCompleted
		}
	}

	// Step 7: the assistant turn enters the session in English.
	assistantTurn := domain.SessionTurn{
		Role:      domain.RoleAssistant,
		Content:   responseText,
		Timestamp: time.Now(),
		Language:  turnLanguage,
	}
	if result.Kind == domain.ResultDiagnosis {
		assistantTurn.Diagnosis = result.Assessment
	}
	if err := o.sessions.Append(ctx, msg.Sender, assistantTurn); err != nil {
		o.logger.Warn("session append failed", slog.String("error", err.Error()))
	}

	// Step 8: localize. Outbound translation failure falls back to English.
	localized := responseText
	if !bridge.IsEnglish(replyLanguage) {
		translated, err := o.bridge.Translate(ctx, responseText, bridge.EnglishCode, replyLanguage)
		if err != nil {
			o.logger.Warn("outbound translation failed, sending English",
				slog.String("target", replyLanguage),
				slog.String("error", err.Error()),
			)
		} else {
			localized = translated
		}
	}

	// Steps 9-10: audio is best-effort from here on.
	audioRef := o.synthesizeAndSend(ctx, msg.Sender, localized, replyLanguage)

	// Step 11: the text reply always goes out, re-guarded right before
	// send because translation can reintroduce the leak pattern.
	finalText := reasoning.Sanitize(localized)
	if err := o.deliver.SendText(ctx, msg.Sender, finalText); err != nil {
		return fmt.Errorf("text delivery failed: %w", err)
	}

	// Step 12: persist the assistant turn after delivery so the audio ref
	// reflects what was actually sent.
	o.record(ctx, convstore.AppendParams{
		Sender: msg.Sender,
		Message: domain.RecordMessage{
			Role:        domain.RoleAssistant,
			Content:     finalText,
			EnglishText: responseText,
			Timestamp:   time.Now(),
			Language:    replyLanguage,
			AudioRef:    audioRef,
		},
		Language:   replyLanguage,
		Assessment: result.Assessment,
		Status:     status,
	})

	return nil
}

// understand resolves the inbound message into original text, English text
// and the turn/reply languages.
func (o *Orchestrator) understand(ctx context.Context, msg domain.InboundMessage) (originalText, englishText, turnLanguage, replyLanguage string, err error) {
	switch msg.Kind {
	case domain.MessageKindAudio:
		ctx, span := o.tracer.Start(ctx, "pipeline.transcribe")
		defer span.End()

		transcription, sttErr := o.bridge.SpeechToText(ctx, msg.Audio, "")
		if sttErr != nil {
			if errors.Is(sttErr, bridge.ErrEmptyTranscript) {
				return "", "", "", "", domain.NewPipelineError(domain.ErrorTypeEmptyTranscript, "no usable speech", sttErr)
			}
			return "", "", "", "", domain.NewPipelineError(domain.ErrorTypeEmptyTranscript, "transcription failed", sttErr)
		}

		originalText = transcription.Transcript
		turnLanguage = transcription.LanguageCode
		replyLanguage = turnLanguage

		englishText = originalText
		if !bridge.IsEnglish(turnLanguage) {
			englishText, err = o.bridge.Translate(ctx, originalText, turnLanguage, bridge.EnglishCode)
			if err != nil {
				return "", "", "", "", domain.NewPipelineError(domain.ErrorTypeTranslationInbound, "inbound translation failed", err)
			}
		}
		return originalText, englishText, turnLanguage, replyLanguage, nil

	default: // text
		originalText = msg.Text

		// Reply-language decision: a local heuristic, deliberately distinct
		// from translation-time detection.
		if hasNonASCII(originalText) {
			last, lerr := o.sessions.LastLanguage(ctx, msg.Sender)
			if lerr != nil || last == "" || bridge.IsEnglish(last) {
				replyLanguage = o.fallbackLanguage
			} else {
				replyLanguage = last
			}
			turnLanguage = replyLanguage

			englishText, err = o.bridge.Translate(ctx, originalText, bridge.AutoCode, bridge.EnglishCode)
			if err != nil {
				return "", "", "", "", domain.NewPipelineError(domain.ErrorTypeTranslationInbound, "inbound translation failed", err)
			}
		} else {
			replyLanguage = bridge.EnglishCode
			turnLanguage = bridge.EnglishCode
			englishText = originalText
		}
		return originalText, englishText, turnLanguage, replyLanguage, nil
	}
}

// synthesizeAndSend attempts the voice reply: synthesize, sniff the format,
// stash the blob for the dashboard, upload and send. Every failure is
// absorbed; text delivery never waits on audio. Returns the stored audio
// ref, or "" when no audio was sent.
func (o *Orchestrator) synthesizeAndSend(ctx context.Context, sender, localized, replyLanguage string) string {
	ctx, span := o.tracer.Start(ctx, "pipeline.speech")
	defer span.End()

	speakable := sanitizeForSpeech(localized)
	if speakable == "" {
		return ""
	}

	chunks, err := o.bridge.TextToSpeech(ctx, speakable, replyLanguage)
	if err != nil {
		o.logger.Warn("speech synthesis failed, skipping audio", slog.String("error", err.Error()))
		return ""
	}

	var blob []byte
	for _, chunk := range chunks {
		blob = append(blob, chunk...)
	}
	if len(blob) == 0 {
		return ""
	}

	format := sniff.Sniff(blob)
	ref := o.audio.Put(blob, format.MIME)

	if err := o.deliver.SendAudio(ctx, sender, blob, format.MIME); err != nil {
		o.logger.Warn("audio delivery failed, continuing with text",
			slog.String("mime", format.MIME),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return ref
}

// record appends to the durable conversation log, absorbing failures.
func (o *Orchestrator) record(ctx context.Context, p convstore.AppendParams) {
	if err := o.recorder.Append(ctx, p); err != nil {
		o.logger.Error("durable record write failed",
			slog.String("sender", p.Sender),
			slog.String("error", err.Error()),
		)
	}
}
