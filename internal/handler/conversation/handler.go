package conversation

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/fernwake/questlog/backend/internal/analysis/ratelimit"
	"github.com/fernwake/questlog/backend/internal/middleware"
	"github.com/fernwake/questlog/backend/internal/model/chat"
	exchangeService "github.com/fernwake/questlog/backend/internal/service/exchange"
	sessionService "github.com/fernwake/questlog/backend/internal/service/session"
	summaryService "github.com/fernwake/questlog/backend/internal/service/summary"
	"github.com/fernwake/questlog/backend/internal/store"
	"github.com/fernwake/questlog/backend/pkg/utils"
)

// Handler exposes the session lifecycle over HTTP.
type Handler struct {
	sessions      *sessionService.Service
	exchange      *exchangeService.Service
	summaries     *summaryService.Service
	conversations store.ConversationStore

	mu       sync.Mutex
	attempts map[string]int // consecutive rate-limited sends per user
}

// New creates the conversation handler.
func New(sessions *sessionService.Service, exchange *exchangeService.Service, summaries *summaryService.Service, conversations store.ConversationStore) *Handler {
	return &Handler{
		sessions:      sessions,
		exchange:      exchange,
		summaries:     summaries,
		conversations: conversations,
		attempts:      make(map[string]int),
	}
}

// RegisterRoutes mounts the conversation routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleStartSession)
	r.Post("/session/message", h.handleSendMessage)
	r.Post("/session/end", h.handleEndSession)
	r.Delete("/session", h.handleResetSession)
	r.Get("/conversations", h.handleListConversations)
}

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Mode           string `json:"mode"`
		ConversationID string `json:"conversationId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mode, err := chat.ParseMode(payload.Mode)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.sessions.Start(r.Context(), middleware.UserID(r.Context()), mode, payload.ConversationID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Mode    string `json:"mode"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mode, err := chat.ParseMode(payload.Mode)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.Message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	userID := middleware.UserID(r.Context())
	session, err := h.sessions.Start(r.Context(), userID, mode, "")
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	updated, err := h.exchange.Send(r.Context(), session, payload.Message)
	if err != nil {
		if errors.Is(err, exchangeService.ErrModelCall) && ratelimit.IsRateLimited(err.Error(), 0) {
			wait := ratelimit.SuggestedWaitMinutes(h.bumpAttempts(userID))
			utils.RespondJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":       "the companion is catching its breath; please try again shortly",
				"waitMinutes": wait,
			})
			return
		}
		h.respondServiceError(w, err)
		return
	}

	h.clearAttempts(userID)
	utils.RespondJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mode, err := chat.ParseMode(payload.Mode)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.sessions.Start(r.Context(), middleware.UserID(r.Context()), mode, "")
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	entry, err := h.summaries.SaveConversation(r.Context(), session)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to save conversation")
		return
	}

	// The stored title/summary changed; the cached copy is now stale.
	h.sessions.Reset(r.Context(), mode)

	utils.RespondJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleResetSession(w http.ResponseWriter, r *http.Request) {
	mode, err := chat.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.sessions.Reset(r.Context(), mode)
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (h *Handler) handleListConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.conversations.ListConversations(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	if conversations == nil {
		conversations = []chat.Conversation{}
	}
	utils.RespondJSON(w, http.StatusOK, conversations)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sessionService.ErrAuthRequired):
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, sessionService.ErrConversationNotFound):
		utils.RespondError(w, http.StatusNotFound, "conversation not found")
	case errors.Is(err, exchangeService.ErrModelCall):
		utils.RespondError(w, http.StatusBadGateway, "reply generation failed")
	default:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) bumpAttempts(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attempts[userID]++
	return h.attempts[userID]
}

func (h *Handler) clearAttempts(userID string) {
	h.mu.Lock()
	delete(h.attempts, userID)
	h.mu.Unlock()
}
