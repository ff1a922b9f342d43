package handler

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fernwake/questlog/backend/internal/cache"
	"github.com/fernwake/questlog/backend/internal/handler/conversation"
	"github.com/fernwake/questlog/backend/internal/handler/journal"
	"github.com/fernwake/questlog/backend/internal/handler/stream"
	"github.com/fernwake/questlog/backend/internal/middleware"
	"github.com/fernwake/questlog/backend/internal/model/chat"
	exchangeService "github.com/fernwake/questlog/backend/internal/service/exchange"
	sessionService "github.com/fernwake/questlog/backend/internal/service/session"
	summaryService "github.com/fernwake/questlog/backend/internal/service/summary"
	"github.com/fernwake/questlog/backend/internal/store"
	"github.com/fernwake/questlog/backend/pkg/utils"
)

// Deps bundles the services the router wires to routes.
type Deps struct {
	Sessions      *sessionService.Service
	Exchange      *exchangeService.Service
	Summaries     *summaryService.Service
	Conversations store.ConversationStore
	Journal       store.JournalStore
	SessionCache  *cache.SessionCache
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	conversationHandler := conversation.New(deps.Sessions, deps.Exchange, deps.Summaries, deps.Conversations)
	journalHandler := journal.New(deps.Journal, deps.Summaries, deps.SessionCache)
	streamHandler := stream.New(deps.Sessions, deps.Exchange)

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.RequireUser)

		conversationHandler.RegisterRoutes(api)
		journalHandler.RegisterRoutes(api)

		api.Get("/stream/{mode}", func(w http.ResponseWriter, r *http.Request) {
			mode, err := chat.ParseMode(chi.URLParam(r, "mode"))
			if err != nil {
				utils.RespondError(w, http.StatusBadRequest, err.Error())
				return
			}

			userMessage := r.URL.Query().Get("message")
			if userMessage == "" {
				utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
				return
			}

			if err := streamHandler.HandleStreamRequest(r.Context(), w, middleware.UserID(r.Context()), mode, userMessage); err != nil {
				log.Printf("[stream] error handling request: %v", err)
			}
		})
	})

	return r
}
