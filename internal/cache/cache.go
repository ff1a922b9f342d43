package cache

import (
	"context"
	"encoding/json"
	"log"

	"github.com/fernwake/questlog/backend/internal/metrics"
	"github.com/fernwake/questlog/backend/internal/model/chat"
)

const (
	journalPromptKey = "journal:activePrompt"
	storyGreetedKey  = "flag:storyGreeted"
)

// KeyValue is the persisted cache tier contract. Local implements it with
// SQLite; tests use MemoryKV.
type KeyValue interface {
	GetValue(ctx context.Context, key string) (string, error)
	SetValue(ctx context.Context, key, value string) error
	DeleteValue(ctx context.Context, key string) error
}

// SessionCache layers the in-process memory tier over the persisted tier.
// The memory tier is consulted first; local hits promote into memory. Writes
// go to the persisted tier first, then memory, so a crash never leaves the
// memory tier ahead of the persisted one.
type SessionCache struct {
	memory *Memory
	local  KeyValue
}

// NewSessionCache wires the two tiers together.
func NewSessionCache(memory *Memory, local KeyValue) *SessionCache {
	return &SessionCache{memory: memory, local: local}
}

// Get returns the current session for (mode, userID), or nil. Entries that
// fail validation (wrong owner, wrong mode, corrupt payload) are evicted and
// never surfaced.
func (c *SessionCache) Get(ctx context.Context, mode chat.Mode, userID string) *chat.Session {
	if session := c.memory.Get(mode, userID); session != nil {
		metrics.CacheHits.WithLabelValues("memory").Inc()
		return session
	}

	raw, err := c.local.GetValue(ctx, sessionKey(mode))
	if err != nil {
		log.Printf("[cache] local read failed for mode=%s: %v", mode, err)
		return nil
	}
	if raw == "" {
		metrics.CacheMisses.Inc()
		return nil
	}

	var session chat.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		log.Printf("[cache] evicting corrupt entry for mode=%s: %v", mode, err)
		c.evict(ctx, mode, "corrupt")
		return nil
	}

	if session.UserID != userID {
		c.evict(ctx, mode, "owner")
		return nil
	}
	if session.Mode != mode {
		// Cross-mode contamination would hand one journey's transcript to
		// another; treat it as corruption.
		c.evict(ctx, mode, "mode")
		return nil
	}

	metrics.CacheHits.WithLabelValues("local").Inc()
	c.memory.Put(&session)
	return session.Clone()
}

// Put writes the session through both tiers. A persisted-tier failure is
// logged but does not block the memory update.
func (c *SessionCache) Put(ctx context.Context, session *chat.Session) {
	payload, err := json.Marshal(session)
	if err != nil {
		log.Printf("[cache] marshal session failed: %v", err)
	} else if err := c.local.SetValue(ctx, sessionKey(session.Mode), string(payload)); err != nil {
		log.Printf("[cache] local write failed for mode=%s: %v", session.Mode, err)
	}

	c.memory.Put(session)
}

// Clear drops the current session for a mode from both tiers.
func (c *SessionCache) Clear(ctx context.Context, mode chat.Mode) {
	c.memory.Clear(mode)
	if err := c.local.DeleteValue(ctx, sessionKey(mode)); err != nil {
		log.Printf("[cache] local clear failed for mode=%s: %v", mode, err)
	}
}

func (c *SessionCache) evict(ctx context.Context, mode chat.Mode, reason string) {
	metrics.CacheEvictions.WithLabelValues(reason).Inc()
	c.memory.Clear(mode)
	if err := c.local.DeleteValue(ctx, sessionKey(mode)); err != nil {
		log.Printf("[cache] evict failed for mode=%s: %v", mode, err)
	}
}

// ActiveJournalPrompt returns the cached guided-journal prompt, or nil.
func (c *SessionCache) ActiveJournalPrompt(ctx context.Context) *chat.JournalPrompt {
	raw, err := c.local.GetValue(ctx, journalPromptKey)
	if err != nil || raw == "" {
		return nil
	}

	var prompt chat.JournalPrompt
	if err := json.Unmarshal([]byte(raw), &prompt); err != nil {
		return nil
	}
	return &prompt
}

// SetActiveJournalPrompt stores the prompt driving the current guided flow.
func (c *SessionCache) SetActiveJournalPrompt(ctx context.Context, prompt *chat.JournalPrompt) error {
	payload, err := json.Marshal(prompt)
	if err != nil {
		return err
	}
	return c.local.SetValue(ctx, journalPromptKey, string(payload))
}

// ClearActiveJournalPrompt drops the cached prompt.
func (c *SessionCache) ClearActiveJournalPrompt(ctx context.Context) error {
	return c.local.DeleteValue(ctx, journalPromptKey)
}

// StoryGreeted reports whether the user has already seen the full story-mode
// opening at least once.
func (c *SessionCache) StoryGreeted(ctx context.Context) bool {
	raw, err := c.local.GetValue(ctx, storyGreetedKey)
	return err == nil && raw == "1"
}

// MarkStoryGreeted records the one-time story greeting flag.
func (c *SessionCache) MarkStoryGreeted(ctx context.Context) {
	if err := c.local.SetValue(ctx, storyGreetedKey, "1"); err != nil {
		log.Printf("[cache] mark story greeted failed: %v", err)
	}
}
