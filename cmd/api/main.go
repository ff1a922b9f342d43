package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fernwake/questlog/backend/internal/cache"
	"github.com/fernwake/questlog/backend/internal/config"
	"github.com/fernwake/questlog/backend/internal/handler"
	"github.com/fernwake/questlog/backend/internal/service/ai"
	"github.com/fernwake/questlog/backend/internal/service/exchange"
	"github.com/fernwake/questlog/backend/internal/service/session"
	"github.com/fernwake/questlog/backend/internal/service/summary"
	"github.com/fernwake/questlog/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// The database of record: Postgres when configured, in-memory otherwise.
	var conversations store.ConversationStore
	var journal store.JournalStore
	if cfg.Store.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer pg.Close()
		conversations, journal = pg, pg
		log.Println("conversation store: postgres")
	} else {
		mem := store.NewMemoryStore()
		conversations, journal = mem, mem
		log.Println("conversation store: in-memory (set DATABASE_URL for persistence)")
	}

	// Two-tier session cache: SQLite persisted tier under the memory tier.
	local, err := cache.NewLocal(ctx, cfg.Cache.Path)
	if err != nil {
		log.Fatalf("failed to open local cache: %v", err)
	}
	defer local.Close()
	sessionCache := cache.NewSessionCache(cache.NewMemory(cfg.Cache.MemoryTTL), local)

	if !cfg.AI.Enabled() {
		log.Fatal("Ark credentials missing: set ARK_API_KEY + ARK_MODEL, or AK/SK")
	}
	aiService, err := ai.NewService(ctx, cfg.AI)
	if err != nil {
		log.Fatalf("failed to initialize AI service: %v", err)
	}
	log.Println("AI service initialized successfully")

	summaryService := summary.NewService(aiService, conversations, journal, cfg.Summary.Timeout)
	sessionService := session.NewService(conversations, sessionCache, aiService.Prompts())
	exchangeService := exchange.NewService(aiService, conversations, sessionCache, summaryService)

	router := handler.NewRouter(handler.Deps{
		Sessions:      sessionService,
		Exchange:      exchangeService,
		Summaries:     summaryService,
		Conversations: conversations,
		Journal:       journal,
		SessionCache:  sessionCache,
	})

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Questlog backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
