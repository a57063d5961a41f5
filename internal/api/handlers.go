// Package api serves the read-only dashboard endpoints: conversation
// records and ephemeral reply audio.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nidaan-ai/triage-gateway/internal/audiostore"
	"github.com/nidaan-ai/triage-gateway/internal/convstore"
	"github.com/nidaan-ai/triage-gateway/internal/domain"
)

// Handler serves the dashboard API.
type Handler struct {
	conversations *convstore.Store
	audio         *audiostore.Store
	logger        *slog.Logger
}

func NewHandler(conversations *convstore.Store, audio *audiostore.Store, logger *slog.Logger) *Handler {
	return &Handler{conversations: conversations, audio: audio, logger: logger}
}

// Mount registers the routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/api/conversations", h.listConversations)
	r.Get("/api/conversations/{id}", h.getConversation)
	r.Get("/api/audio/{id}", h.getAudio)
}

type listResponse struct {
	Conversations []*domain.ConversationRecord `json:"conversations"`
	Total         int                          `json:"total"`
}

func (h *Handler) listConversations(w http.ResponseWriter, r *http.Request) {
	opts := convstore.ListOptions{}

	if status := r.URL.Query().Get("status"); status != "" {
		s := domain.ConversationStatus(status)
		if s != domain.StatusActive && s != domain.StatusCompleted && s != domain.StatusEmergency {
			http.Error(w, "unknown status filter", http.StatusBadRequest)
			return
		}
		opts.Status = s
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		opts.Limit = n
	}

	records, err := h.conversations.List(r.Context(), opts)
	if err != nil {
		h.logger.Error("conversation list failed", slog.String("error", err.Error()))
		http.Error(w, "conversation lookup failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, listResponse{Conversations: records, Total: len(records)})
}

func (h *Handler) getConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := h.conversations.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, convstore.ErrNotFound) {
			http.Error(w, "conversation not found", http.StatusNotFound)
			return
		}
		h.logger.Error("conversation get failed", slog.String("id", id), slog.String("error", err.Error()))
		http.Error(w, "conversation lookup failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, record)
}

func (h *Handler) getAudio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	data, mimeType, ok := h.audio.Get(id)
	if !ok {
		// Expired and never-existed look identical to the caller.
		http.Error(w, "audio not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	// Replies are ephemeral; nothing downstream should hold on to them.
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding failed", http.StatusInternalServerError)
	}
}
