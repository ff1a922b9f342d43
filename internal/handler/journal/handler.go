package journal

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fernwake/questlog/backend/internal/cache"
	"github.com/fernwake/questlog/backend/internal/middleware"
	"github.com/fernwake/questlog/backend/internal/model/chat"
	summaryService "github.com/fernwake/questlog/backend/internal/service/summary"
	"github.com/fernwake/questlog/backend/internal/store"
	"github.com/fernwake/questlog/backend/pkg/utils"
)

// Handler exposes journal history and guided-prompt generation.
type Handler struct {
	journal   store.JournalStore
	summaries *summaryService.Service
	sessions  *cache.SessionCache
}

// New creates the journal handler.
func New(journal store.JournalStore, summaries *summaryService.Service, sessions *cache.SessionCache) *Handler {
	return &Handler{
		journal:   journal,
		summaries: summaries,
		sessions:  sessions,
	}
}

// RegisterRoutes mounts the journal routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/journal/entries", h.handleListEntries)
	r.Get("/journal/prompt", h.handleActivePrompt)
	r.Post("/journal/prompt", h.handleGeneratePrompt)
	r.Delete("/journal/prompt", h.handleClearPrompt)
}

func (h *Handler) handleListEntries(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			utils.RespondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	entries, err := h.journal.ListEntries(r.Context(), middleware.UserID(r.Context()), limit)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to list journal entries")
		return
	}
	if entries == nil {
		entries = []chat.JournalEntry{}
	}
	utils.RespondJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleActivePrompt(w http.ResponseWriter, r *http.Request) {
	prompt := h.sessions.ActiveJournalPrompt(r.Context())
	if prompt == nil {
		utils.RespondError(w, http.StatusNotFound, "no active journal prompt")
		return
	}
	utils.RespondJSON(w, http.StatusOK, prompt)
}

// handleGeneratePrompt creates a fresh guided prompt and makes it the active
// one. Generation falls back to the default prompt, so this never fails for
// model reasons.
func (h *Handler) handleGeneratePrompt(w http.ResponseWriter, r *http.Request) {
	prompt := h.summaries.GenerateJournalPrompt(r.Context())
	if err := h.sessions.SetActiveJournalPrompt(r.Context(), &prompt); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to store journal prompt")
		return
	}
	utils.RespondJSON(w, http.StatusOK, prompt)
}

func (h *Handler) handleClearPrompt(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.ClearActiveJournalPrompt(r.Context()); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to clear journal prompt")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
