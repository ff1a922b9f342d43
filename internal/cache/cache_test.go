package cache

import (
	"context"
	"testing"
	"time"

	"github.com/fernwake/questlog/backend/internal/model/chat"
)

func sampleSession(userID string, mode chat.Mode) *chat.Session {
	now := time.Now().UTC()
	return &chat.Session{
		ID:        "conv-1",
		UserID:    userID,
		Mode:      mode,
		Messages:  []chat.Message{{ID: "m1", Role: chat.RoleAssistant, Content: "Welcome back.", CreatedAt: now}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSessionCachePutGet(t *testing.T) {
	ctx := context.Background()
	sc := NewSessionCache(NewMemory(30*time.Minute), NewMemoryKV())

	sc.Put(ctx, sampleSession("u1", chat.ModeStory))

	got := sc.Get(ctx, chat.ModeStory, "u1")
	if got == nil {
		t.Fatal("expected cache hit")
	}
	if got.UserID != "u1" || got.Mode != chat.ModeStory {
		t.Fatalf("unexpected session: %+v", got)
	}
	if len(got.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got.Messages))
	}
}

func TestSessionCacheOwnerMismatchEvicts(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	sc := NewSessionCache(NewMemory(30*time.Minute), kv)

	sc.Put(ctx, sampleSession("u1", chat.ModeStory))

	// Different user must never see u1's session, and the entry must go away.
	if got := sc.Get(ctx, chat.ModeStory, "u2"); got != nil {
		t.Fatalf("expected miss for mismatched owner, got %+v", got)
	}

	raw, err := kv.GetValue(ctx, sessionKey(chat.ModeStory))
	if err != nil {
		t.Fatalf("GetValue err: %v", err)
	}
	if raw != "" {
		t.Fatal("expected mismatched entry to be evicted from persisted tier")
	}
}

func TestSessionCacheCorruptEntryEvicts(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	sc := NewSessionCache(NewMemory(30*time.Minute), kv)

	if err := kv.SetValue(ctx, sessionKey(chat.ModeAction), "{not json"); err != nil {
		t.Fatalf("SetValue err: %v", err)
	}

	if got := sc.Get(ctx, chat.ModeAction, "u1"); got != nil {
		t.Fatalf("expected miss for corrupt entry, got %+v", got)
	}

	raw, _ := kv.GetValue(ctx, sessionKey(chat.ModeAction))
	if raw != "" {
		t.Fatal("expected corrupt entry to be deleted")
	}
}

func TestSessionCachePromotesLocalHit(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	memory := NewMemory(30 * time.Minute)
	sc := NewSessionCache(memory, kv)

	sc.Put(ctx, sampleSession("u1", chat.ModeJournal))
	memory.Clear(chat.ModeJournal)

	if got := sc.Get(ctx, chat.ModeJournal, "u1"); got == nil {
		t.Fatal("expected local-tier hit")
	}
	if got := memory.Get(chat.ModeJournal, "u1"); got == nil {
		t.Fatal("expected local hit to promote into memory tier")
	}
}

func TestMemoryFreshnessWindow(t *testing.T) {
	memory := NewMemory(10 * time.Minute)
	base := time.Now().UTC()
	memory.now = func() time.Time { return base }

	memory.Put(sampleSession("u1", chat.ModeStory))

	memory.now = func() time.Time { return base.Add(11 * time.Minute) }
	if got := memory.Get(chat.ModeStory, "u1"); got != nil {
		t.Fatal("expected stale memory entry to read as a miss")
	}
}

func TestSessionCacheClear(t *testing.T) {
	ctx := context.Background()
	sc := NewSessionCache(NewMemory(30*time.Minute), NewMemoryKV())

	sc.Put(ctx, sampleSession("u1", chat.ModeSideQuest))
	sc.Clear(ctx, chat.ModeSideQuest)

	if got := sc.Get(ctx, chat.ModeSideQuest, "u1"); got != nil {
		t.Fatal("expected miss after clear")
	}
}

func TestJournalPromptRoundTrip(t *testing.T) {
	ctx := context.Background()
	sc := NewSessionCache(NewMemory(30*time.Minute), NewMemoryKV())

	if got := sc.ActiveJournalPrompt(ctx); got != nil {
		t.Fatal("expected no active prompt initially")
	}

	prompt := chat.DefaultJournalPrompt
	if err := sc.SetActiveJournalPrompt(ctx, &prompt); err != nil {
		t.Fatalf("SetActiveJournalPrompt err: %v", err)
	}

	got := sc.ActiveJournalPrompt(ctx)
	if got == nil || got.Title != prompt.Title {
		t.Fatalf("unexpected active prompt: %+v", got)
	}

	if err := sc.ClearActiveJournalPrompt(ctx); err != nil {
		t.Fatalf("ClearActiveJournalPrompt err: %v", err)
	}
	if got := sc.ActiveJournalPrompt(ctx); got != nil {
		t.Fatal("expected prompt cleared")
	}
}
