package summary

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fernwake/questlog/backend/internal/model/chat"
	"github.com/fernwake/questlog/backend/internal/service/ai"
	"github.com/fernwake/questlog/backend/internal/store"
)

// stubGenerator answers Complete calls from a canned script.
type stubGenerator struct {
	complete func(system, user string) (string, error)
	delay    time.Duration
}

func (s *stubGenerator) Reply(context.Context, ai.ReplyRequest) (string, error) {
	return "", errors.New("not used")
}

func (s *stubGenerator) Complete(ctx context.Context, system, user string) (string, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.complete(system, user)
}

func testSession(t *testing.T, st *store.MemoryStore, mode chat.Mode) *chat.Session {
	t.Helper()
	conv, err := st.CreateConversation(context.Background(), "u1", mode, "")
	if err != nil {
		t.Fatalf("CreateConversation err: %v", err)
	}

	session := conv.ToSession()
	now := time.Now().UTC()
	session.Messages = []chat.Message{
		{Role: chat.RoleAssistant, Content: "What chapter are we in today?", CreatedAt: now},
		{Role: chat.RoleUser, Content: "I finally asked for the promotion.", CreatedAt: now},
	}
	return session
}

func TestGenerateParsesJSONOutput(t *testing.T) {
	gen := &stubGenerator{complete: func(system, _ string) (string, error) {
		if strings.Contains(system, "short titles") {
			return `{"title": "The Promotion Ask"}`, nil
		}
		return "```json\n{\"summary\": \"You talked about asking for a promotion.\"}\n```", nil
	}}
	svc := NewService(gen, store.NewMemoryStore(), store.NewMemoryStore(), time.Second)

	result := svc.Generate(context.Background(), nil)
	if result.Title != "The Promotion Ask" {
		t.Fatalf("unexpected title: %q", result.Title)
	}
	if result.Summary != "You talked about asking for a promotion." {
		t.Fatalf("unexpected summary: %q", result.Summary)
	}
}

func TestGenerateTimeoutYieldsEmptyFields(t *testing.T) {
	gen := &stubGenerator{
		delay:    5 * time.Second,
		complete: func(string, string) (string, error) { return "never", nil },
	}
	svc := NewService(gen, store.NewMemoryStore(), store.NewMemoryStore(), 20*time.Millisecond)

	started := time.Now()
	result := svc.Generate(context.Background(), nil)
	if result.Title != "" || result.Summary != "" {
		t.Fatalf("expected empty result on timeout, got %+v", result)
	}
	if time.Since(started) > 2*time.Second {
		t.Fatal("generation did not respect the timeout race")
	}
}

func TestGenerateProseFallsBackToRawText(t *testing.T) {
	gen := &stubGenerator{complete: func(string, string) (string, error) {
		return "You reflected on a hard week and chose one next step.", nil
	}}
	svc := NewService(gen, store.NewMemoryStore(), store.NewMemoryStore(), time.Second)

	result := svc.Generate(context.Background(), nil)
	if result.Summary != "You reflected on a hard week and chose one next step." {
		t.Fatalf("expected raw text as summary, got %q", result.Summary)
	}
}

func TestSaveConversationPersistsAndLinksEntry(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	session := testSession(t, st, chat.ModeStory)

	gen := &stubGenerator{complete: func(system, _ string) (string, error) {
		if strings.Contains(system, "short titles") {
			return `{"title": "The Promotion Ask"}`, nil
		}
		return `{"summary": "You talked about asking for a promotion."}`, nil
	}}
	svc := NewService(gen, st, st, time.Second)

	entry, err := svc.SaveConversation(ctx, session)
	if err != nil {
		t.Fatalf("SaveConversation err: %v", err)
	}
	if entry.ConversationID != session.ID {
		t.Fatal("entry not linked to originating conversation")
	}

	conv, err := st.GetConversation(ctx, session.ID, "u1")
	if err != nil || conv == nil {
		t.Fatalf("GetConversation: %v, %v", conv, err)
	}
	if conv.Title != "The Promotion Ask" {
		t.Fatalf("title not persisted: %q", conv.Title)
	}
	if conv.Summary == "" {
		t.Fatal("summary not persisted")
	}

	entries, err := st.ListEntries(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("ListEntries err: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 journal entry for story mode, got %d", len(entries))
	}
}

func TestSaveConversationJournalModeSkipsEntry(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	session := testSession(t, st, chat.ModeJournal)

	gen := &stubGenerator{complete: func(system, _ string) (string, error) {
		if strings.Contains(system, "short titles") {
			return `{"title": "Tuesday Reflections"}`, nil
		}
		return `{"summary": "You journaled about the week."}`, nil
	}}
	svc := NewService(gen, st, st, time.Second)

	if _, err := svc.SaveConversation(ctx, session); err != nil {
		t.Fatalf("SaveConversation err: %v", err)
	}

	entries, err := st.ListEntries(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("ListEntries err: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("journal mode with usable summary should not duplicate entries, got %d", len(entries))
	}
}

func TestSaveConversationDirectSaveFallback(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	session := testSession(t, st, chat.ModeSideQuest)

	gen := &stubGenerator{complete: func(string, string) (string, error) {
		return "", errors.New("model unavailable")
	}}
	svc := NewService(gen, st, st, time.Second)

	entry, err := svc.SaveConversation(ctx, session)
	if err != nil {
		t.Fatalf("SaveConversation err: %v", err)
	}
	if entry.Title == "" {
		t.Fatal("fallback entry must carry a title")
	}
	if entry.Content != fallbackEntryContent {
		t.Fatalf("expected placeholder content, got %q", entry.Content)
	}

	entries, _ := st.ListEntries(ctx, "u1", 10)
	if len(entries) != 1 {
		t.Fatal("direct save must still write an entry")
	}
}

func TestGenerateJournalPrompt(t *testing.T) {
	gen := &stubGenerator{complete: func(string, string) (string, error) {
		return `{"title": "Unexpected Kindness", "prompt": "Who surprised you recently?", "instructions": ["Describe the moment.", "Say what it changed."]}`, nil
	}}
	svc := NewService(gen, store.NewMemoryStore(), store.NewMemoryStore(), time.Second)

	prompt := svc.GenerateJournalPrompt(context.Background())
	if prompt.Title != "Unexpected Kindness" {
		t.Fatalf("unexpected prompt title: %q", prompt.Title)
	}
	if len(prompt.Instructions) != 2 {
		t.Fatalf("unexpected instruction count: %d", len(prompt.Instructions))
	}
}

func TestGenerateJournalPromptFallsBackToDefault(t *testing.T) {
	gen := &stubGenerator{complete: func(string, string) (string, error) {
		return "I would rather write a poem today.", nil
	}}
	svc := NewService(gen, store.NewMemoryStore(), store.NewMemoryStore(), time.Second)

	prompt := svc.GenerateJournalPrompt(context.Background())
	if prompt.Title != chat.DefaultJournalPrompt.Title {
		t.Fatalf("expected default prompt, got %+v", prompt)
	}
}

func TestTranscriptUnwrapsUserContent(t *testing.T) {
	transcript := Transcript([]chat.Message{
		{Role: chat.RoleUser, Content: `{"message":"I feel stuck","brevity":"short"}`},
		{Role: chat.RoleAssistant, Content: "What is keeping you there?"},
	})
	if strings.Contains(transcript, "brevity") {
		t.Fatalf("transcript leaked JSON envelope: %q", transcript)
	}
	if !strings.Contains(transcript, "User: I feel stuck") {
		t.Fatalf("transcript missing inner message: %q", transcript)
	}
}
