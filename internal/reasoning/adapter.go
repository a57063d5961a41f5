package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/nidaan-ai/triage-gateway/internal/domain"
)

const (
	// defaultContextTokenBudget caps the prior-turn context sent to the
	// engine. Oldest turns are dropped first when the budget is exceeded.
	defaultContextTokenBudget = 4096

	defaultQuestionFallback = "Could you tell me more about your symptoms?"
	defaultDiagnosisPreface = "Based on the information you provided:"
	defaultAction           = "Visit your nearest health center."
	defaultSpecialist       = "General Physician"
)

// fenceRE matches a markdown code fence, optionally tagged json.
var fenceRE = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// AdapterOption configures the adapter.
type AdapterOption func(*Adapter)

// WithContextTokenBudget overrides the prior-turn token budget.
func WithContextTokenBudget(n int) AdapterOption {
	return func(a *Adapter) {
		a.tokenBudget = n
	}
}

// WithAdapterLogger sets the logger.
func WithAdapterLogger(logger *slog.Logger) AdapterOption {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// Adapter drives the reasoning engine and normalizes its free-text output
// into a tagged Question/Diagnosis result.
type Adapter struct {
	engine      Engine
	logger      *slog.Logger
	tokenBudget int

	codecOnce sync.Once
	codec     tokenizer.Codec
	codecErr  error
}

// NewAdapter creates an adapter around the given engine.
func NewAdapter(engine Engine, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		engine:      engine,
		logger:      slog.Default(),
		tokenBudget: defaultContextTokenBudget,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// countTokens approximates the engine's token count for s. Tokenizer load
// failures degrade to a character-based estimate rather than failing the
// turn.
func (a *Adapter) countTokens(s string) int {
	a.codecOnce.Do(func() {
		a.codec, a.codecErr = tokenizer.Get(tokenizer.Cl100kBase)
	})
	if a.codecErr != nil {
		return len(s) / 4
	}
	ids, _, err := a.codec.Encode(s)
	if err != nil {
		return len(s) / 4
	}
	return len(ids)
}

// buildMessages assembles the ordered message list: prior turns oldest
// first, trimmed from the front to the token budget, then the new user
// message.
func (a *Adapter) buildMessages(englishMessage string, priorTurns []domain.SessionTurn, patient *domain.PatientContext) []Message {
	userMessage := englishMessage
	if patient != nil && (patient.Age > 0 || patient.Gender != "") {
		var parts []string
		if patient.Age > 0 {
			parts = append(parts, fmt.Sprintf("Age: %d", patient.Age))
		}
		if patient.Gender != "" {
			parts = append(parts, fmt.Sprintf("Gender: %s", patient.Gender))
		}
		userMessage = fmt.Sprintf("Patient: %s\nSymptoms: %s", strings.Join(parts, ", "), englishMessage)
	}

	history := make([]Message, 0, len(priorTurns))
	for _, turn := range priorTurns {
		history = append(history, Message{Role: string(turn.Role), Content: turn.Content})
	}

	budget := a.tokenBudget - a.countTokens(userMessage)
	used := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		n := a.countTokens(history[i].Content)
		if used+n > budget {
			break
		}
		used += n
		start = i
	}
	if start > 0 {
		a.logger.Debug("trimmed reasoning context",
			slog.Int("dropped_turns", start),
			slog.Int("kept_turns", len(history)-start),
		)
	}

	messages := append([]Message{}, history[start:]...)
	return append(messages, Message{Role: "user", Content: userMessage})
}

// Analyze sends the English message plus prior turns to the engine and
// normalizes the answer. The engine owns severity judgment entirely; the
// adapter only coerces malformed fields, never re-derives severity.
func (a *Adapter) Analyze(ctx context.Context, englishMessage string, priorTurns []domain.SessionTurn, patient *domain.PatientContext) (*domain.ReasoningResult, error) {
	messages := a.buildMessages(englishMessage, priorTurns, patient)

	raw, err := a.engine.Complete(ctx, triageSystemPrompt, messages)
	if err != nil {
		return nil, domain.NewPipelineError(domain.ErrorTypeReasoning, "engine call failed", err)
	}
	raw = strings.TrimSpace(raw)

	result := a.parse(raw)

	if result.Kind == domain.ResultDiagnosis {
		a.logger.Info("triage assessment",
			slog.String("engine", a.engine.Name()),
			slog.String("condition", result.Assessment.Condition),
			slog.String("severity", string(result.Assessment.Severity)),
			slog.Float64("confidence", result.Assessment.Confidence),
		)
	} else {
		a.logger.Info("follow-up question", slog.String("engine", a.engine.Name()))
	}

	return result, nil
}

// parse applies the parsing policy: strip fences, fall back to a Question
// carrying the raw text verbatim when the output is not JSON, gate on the
// type field, and coerce diagnosis fields to safe values. Parsing into a
// generic map keeps one malformed field (condition as a number, red_flags
// as a string) from poisoning the whole object.
func (a *Adapter) parse(raw string) *domain.ReasoningResult {
	jsonText := raw
	if m := fenceRE.FindStringSubmatch(raw); m != nil {
		jsonText = strings.TrimSpace(m[1])
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(jsonText), &parsed); err != nil {
		// A malformed diagnosis must never be forwarded as structured, so
		// the raw text becomes a plain follow-up question.
		a.logger.Warn("reasoning output not parseable, degrading to question",
			slog.String("engine", a.engine.Name()),
		)
		return &domain.ReasoningResult{Kind: domain.ResultQuestion, Message: raw}
	}

	if parsed["type"] != "diagnosis" {
		return &domain.ReasoningResult{
			Kind:    domain.ResultQuestion,
			Message: fieldString(parsed, "message", defaultQuestionFallback),
		}
	}

	severity := domain.Severity(fieldString(parsed, "severity", ""))
	if !severity.Valid() {
		// Missing or unknown severity must never read as low-risk.
		severity = domain.SeverityUrgent
	}

	confidence := 0.5
	if f, ok := parsed["confidence"].(float64); ok {
		confidence = f
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 1 {
			confidence = 1
		}
	}

	var redFlags []string
	if arr, ok := parsed["red_flags"].([]any); ok {
		for _, v := range arr {
			if s, ok := v.(string); ok {
				redFlags = append(redFlags, s)
			}
		}
	}

	assessment := &domain.TriageAssessment{
		Condition:         fieldString(parsed, "condition", "Unknown"),
		Severity:          severity,
		Confidence:        confidence,
		RecommendedAction: fieldString(parsed, "recommended_action", defaultAction),
		SpecialistNeeded:  fieldString(parsed, "specialist_needed", defaultSpecialist),
		RedFlags:          redFlags,
		HomeCare:          fieldString(parsed, "home_care", ""),
	}

	return &domain.ReasoningResult{
		Kind:       domain.ResultDiagnosis,
		Message:    fieldString(parsed, "message", defaultDiagnosisPreface),
		Assessment: assessment,
	}
}

// fieldString returns the string value of key, or fallback when the field is
// missing, null, empty, or not a string.
func fieldString(m map[string]any, key, fallback string) string {
	if s, ok := m[key].(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	return fallback
}
