// Package ingress terminates the messaging channel's webhook: subscription
// verification, envelope parsing, dedup and handoff to the pipeline.
//
// The webhook contract is ack-first. The channel retries on anything other
// than a prompt 200, and a retry storm is worse than a silently dropped
// turn, so the POST handler always acknowledges and pushes real work onto a
// detached goroutine.
package ingress

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/nidaan-ai/triage-gateway/internal/dedup"
	"github.com/nidaan-ai/triage-gateway/internal/domain"
)

const capabilityNotice = "I can only understand text and voice messages right now. Please describe your symptoms in words or send a voice note."

// turnBudget bounds one background pipeline turn, covering transcription,
// two translations, reasoning and delivery.
const turnBudget = 60 * time.Second

// Processor runs one inbound turn.
type Processor interface {
	Process(ctx context.Context, msg domain.InboundMessage) error
}

// MediaFetcher resolves a channel media ID into bytes.
type MediaFetcher interface {
	DownloadMedia(ctx context.Context, mediaID string) ([]byte, error)
}

// Notifier sends plain text back to a sender outside the pipeline.
type Notifier interface {
	SendText(ctx context.Context, to, body string) error
}

// Handler serves the webhook endpoints.
type Handler struct {
	verifyToken string
	processor   Processor
	media       MediaFetcher
	notifier    Notifier
	dedup       dedup.Cache
	logger      *slog.Logger

	// dispatch is swapped out in tests to run turns synchronously.
	dispatch func(work func(ctx context.Context))
}

func NewHandler(verifyToken string, processor Processor, media MediaFetcher, notifier Notifier, cache dedup.Cache, logger *slog.Logger) *Handler {
	h := &Handler{
		verifyToken: verifyToken,
		processor:   processor,
		media:       media,
		notifier:    notifier,
		dedup:       cache,
		logger:      logger,
	}
	h.dispatch = func(work func(ctx context.Context)) {
		// The webhook request context is gone by the time the turn runs,
		// so it gets its own detached, bounded one.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), turnBudget)
			defer cancel()
			work(ctx)
		}()
	}
	return h
}

func (h *Handler) process(ctx context.Context, msg domain.InboundMessage) {
	if err := h.processor.Process(ctx, msg); err != nil {
		h.logger.Error("pipeline turn failed",
			slog.String("message_id", msg.ID),
			slog.String("error", err.Error()),
		)
	}
}

// Verify handles the subscription handshake. The challenge is echoed only
// when both the mode and the token match.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == h.verifyToken {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(q.Get("hub.challenge")))
		return
	}
	h.logger.Warn("webhook verification rejected", slog.String("mode", q.Get("hub.mode")))
	w.WriteHeader(http.StatusForbidden)
}

// Receive handles inbound event envelopes. It always answers 200; failures
// are logged, never surfaced to the channel.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	defer w.WriteHeader(http.StatusOK)

	var env envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		h.logger.Warn("undecodable webhook payload", slog.String("error", err.Error()))
		return
	}

	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			h.handleChange(r.Context(), change.Value)
		}
	}
}

func (h *Handler) handleChange(ctx context.Context, v changeValue) {
	// Delivery receipts and read statuses carry no messages; they are
	// acknowledged and nothing else.
	if len(v.Messages) == 0 {
		return
	}

	names := make(map[string]string, len(v.Contacts))
	for _, c := range v.Contacts {
		names[c.WaID] = c.Profile.Name
	}

	for _, m := range v.Messages {
		h.handleMessage(ctx, m, names[m.From])
	}
}

func (h *Handler) handleMessage(ctx context.Context, m inboundEvent, displayName string) {
	fresh, err := h.dedup.Register(ctx, m.ID)
	if err != nil {
		// Dedup is best effort. An unreachable cache must not drop the
		// message; the worst case is a repeated reply.
		h.logger.Warn("dedup check failed, processing anyway",
			slog.String("message_id", m.ID),
			slog.String("error", err.Error()),
		)
	} else if !fresh {
		h.logger.Info("duplicate message skipped", slog.String("message_id", m.ID))
		return
	}

	msg := domain.InboundMessage{
		ID:          m.ID,
		Sender:      m.From,
		DisplayName: displayName,
	}

	switch m.Type {
	case "text":
		if m.Text == nil || m.Text.Body == "" {
			return
		}
		msg.Kind = domain.MessageKindText
		msg.Text = m.Text.Body
		h.dispatch(func(ctx context.Context) {
			h.process(ctx, msg)
		})

	case "audio":
		if m.Audio == nil {
			return
		}
		// The download is two provider round trips, so it happens after
		// the ack, inside the turn budget.
		mediaID := m.Audio.ID
		h.dispatch(func(ctx context.Context) {
			data, err := h.media.DownloadMedia(ctx, mediaID)
			if err != nil {
				h.logger.Error("media download failed",
					slog.String("message_id", msg.ID),
					slog.String("media_id", mediaID),
					slog.String("error", err.Error()),
				)
				if nerr := h.notifier.SendText(ctx, msg.Sender, "Sorry, I could not receive your voice message. Please try again."); nerr != nil {
					h.logger.Error("notice delivery failed", slog.String("error", nerr.Error()))
				}
				return
			}
			msg.Kind = domain.MessageKindAudio
			msg.Audio = data
			h.process(ctx, msg)
		})

	default:
		// Images, documents, stickers, locations. The sender is told what
		// the assistant can handle instead of being ignored.
		h.logger.Info("unsupported message kind",
			slog.String("message_id", m.ID),
			slog.String("kind", m.Type),
		)
		if err := h.notifier.SendText(ctx, m.From, capabilityNotice); err != nil {
			h.logger.Error("notice delivery failed", slog.String("error", err.Error()))
		}
	}
}
