package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fernwake/questlog/backend/internal/cache"
	"github.com/fernwake/questlog/backend/internal/middleware"
	"github.com/fernwake/questlog/backend/internal/model/chat"
	"github.com/fernwake/questlog/backend/internal/service/ai"
	exchangeService "github.com/fernwake/questlog/backend/internal/service/exchange"
	sessionService "github.com/fernwake/questlog/backend/internal/service/session"
	summaryService "github.com/fernwake/questlog/backend/internal/service/summary"
	"github.com/fernwake/questlog/backend/internal/store"
)

type stubGenerator struct {
	reply string
	err   error
}

func (g *stubGenerator) Reply(ctx context.Context, req ai.ReplyRequest) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func (g *stubGenerator) Complete(ctx context.Context, system, user string) (string, error) {
	return `{"title": "A Quiet Evening", "summary": "We talked."}`, nil
}

func setupRouter(gen *stubGenerator) (*chi.Mux, *store.MemoryStore) {
	st := store.NewMemoryStore()
	sessions := cache.NewSessionCache(cache.NewMemory(30*time.Minute), cache.NewMemoryKV())

	summaries := summaryService.NewService(gen, st, st, time.Second)
	sessionSvc := sessionService.NewService(st, sessions, ai.NewModePromptManager())
	exchangeSvc := exchangeService.NewService(gen, st, sessions, summaries)

	handler := New(sessionSvc, exchangeSvc, summaries, st)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireUser)
		handler.RegisterRoutes(r)
	})
	return r, st
}

func doJSON(r http.Handler, method, path, userID string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestStartSessionRequiresUser(t *testing.T) {
	r, _ := setupRouter(&stubGenerator{reply: "hello"})

	resp := doJSON(r, http.MethodPost, "/session", "", map[string]string{"mode": "story"})

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestStartSessionInvalidMode(t *testing.T) {
	r, _ := setupRouter(&stubGenerator{reply: "hello"})

	resp := doJSON(r, http.MethodPost, "/session", "user-1", map[string]string{"mode": "karaoke"})

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestStartSessionSeedsOpening(t *testing.T) {
	r, _ := setupRouter(&stubGenerator{reply: "hello"})

	resp := doJSON(r, http.MethodPost, "/session", "user-1", map[string]string{"mode": "journal"})

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var session chat.Session
	if err := json.Unmarshal(resp.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if len(session.Messages) != 1 {
		t.Fatalf("expected 1 seeded message, got %d", len(session.Messages))
	}
	if session.Messages[0].Role != chat.RoleAssistant {
		t.Fatalf("expected assistant opening, got %q", session.Messages[0].Role)
	}
}

func TestStartSessionUnknownConversation(t *testing.T) {
	r, _ := setupRouter(&stubGenerator{reply: "hello"})

	resp := doJSON(r, http.MethodPost, "/session", "user-1", map[string]string{
		"mode":           "story",
		"conversationId": "no-such-id",
	})

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestSendMessageAppendsReply(t *testing.T) {
	r, _ := setupRouter(&stubGenerator{reply: "and then the dragon spoke"})

	resp := doJSON(r, http.MethodPost, "/session/message", "user-1", map[string]string{
		"mode":    "story",
		"message": "I open the door",
	})

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var session chat.Session
	if err := json.Unmarshal(resp.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	last := session.Messages[len(session.Messages)-1]
	if last.Role != chat.RoleAssistant || last.Content != "and then the dragon spoke" {
		t.Fatalf("unexpected last message: %+v", last)
	}
}

func TestSendMessageEmptyBody(t *testing.T) {
	r, _ := setupRouter(&stubGenerator{reply: "hello"})

	resp := doJSON(r, http.MethodPost, "/session/message", "user-1", map[string]string{
		"mode": "story",
	})

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestSendMessageRateLimited(t *testing.T) {
	gen := &stubGenerator{err: errors.New("rate limit exceeded, try again later")}
	r, _ := setupRouter(gen)

	resp := doJSON(r, http.MethodPost, "/session/message", "user-1", map[string]string{
		"mode":    "action",
		"message": "charge!",
	})

	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.Code)
	}
	var body struct {
		WaitMinutes int `json:"waitMinutes"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.WaitMinutes != 1 {
		t.Fatalf("expected 1 minute wait on first attempt, got %d", body.WaitMinutes)
	}

	// A second consecutive failure stretches the suggested wait.
	resp = doJSON(r, http.MethodPost, "/session/message", "user-1", map[string]string{
		"mode":    "action",
		"message": "charge again!",
	})
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.Code)
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.WaitMinutes != 2 {
		t.Fatalf("expected 2 minute wait on second attempt, got %d", body.WaitMinutes)
	}
}

func TestSendMessageModelFailure(t *testing.T) {
	gen := &stubGenerator{err: errors.New("upstream exploded")}
	r, _ := setupRouter(gen)

	resp := doJSON(r, http.MethodPost, "/session/message", "user-1", map[string]string{
		"mode":    "story",
		"message": "hello?",
	})

	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.Code)
	}
}

func TestEndSessionSavesAndResets(t *testing.T) {
	r, st := setupRouter(&stubGenerator{reply: "a fine tale"})

	doJSON(r, http.MethodPost, "/session/message", "user-1", map[string]string{
		"mode":    "story",
		"message": "once upon a time",
	})

	resp := doJSON(r, http.MethodPost, "/session/end", "user-1", map[string]string{"mode": "story"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	convos, err := st.ListConversations(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if len(convos) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(convos))
	}
	if convos[0].Title != "A Quiet Evening" {
		t.Fatalf("expected generated title, got %q", convos[0].Title)
	}

	// Ending the session clears the cache, so the next start creates afresh.
	resp = doJSON(r, http.MethodPost, "/session", "user-1", map[string]string{"mode": "story"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var session chat.Session
	if err := json.Unmarshal(resp.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.ID == convos[0].ID {
		t.Fatal("expected a fresh session after ending the previous one")
	}
}

func TestResetSessionClearsCache(t *testing.T) {
	r, _ := setupRouter(&stubGenerator{reply: "hello"})

	var first chat.Session
	resp := doJSON(r, http.MethodPost, "/session", "user-1", map[string]string{"mode": "journal"})
	if err := json.Unmarshal(resp.Body.Bytes(), &first); err != nil {
		t.Fatalf("decode session: %v", err)
	}

	resp = doJSON(r, http.MethodDelete, "/session?mode=journal", "user-1", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var second chat.Session
	resp = doJSON(r, http.MethodPost, "/session", "user-1", map[string]string{"mode": "journal"})
	if err := json.Unmarshal(resp.Body.Bytes(), &second); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("expected a new session after reset")
	}
}

func TestListConversationsEmpty(t *testing.T) {
	r, _ := setupRouter(&stubGenerator{reply: "hello"})

	resp := doJSON(r, http.MethodGet, "/conversations", "user-1", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var convos []chat.Conversation
	if err := json.Unmarshal(resp.Body.Bytes(), &convos); err != nil {
		t.Fatalf("decode conversations: %v", err)
	}
	if len(convos) != 0 {
		t.Fatalf("expected no conversations, got %d", len(convos))
	}
}
