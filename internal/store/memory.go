package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fernwake/questlog/backend/internal/model/chat"
)

// MemoryStore is an in-process ConversationStore/JournalStore for local runs
// and tests.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*chat.Conversation
	entries       map[string][]chat.JournalEntry

	// FailWrites makes best-effort write operations report failure, for
	// exercising the optimistic-update path in tests.
	FailWrites bool
}

// NewMemoryStore bootstraps an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*chat.Conversation),
		entries:       make(map[string][]chat.JournalEntry),
	}
}

// CreateConversation provisions a conversation in memory.
func (s *MemoryStore) CreateConversation(_ context.Context, userID string, mode chat.Mode, title string) (*chat.Conversation, error) {
	now := time.Now().UTC()
	conv := &chat.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Mode:      mode,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.conversations[conv.ID] = conv
	s.mu.Unlock()

	copied := *conv
	return &copied, nil
}

// ListConversations returns the user's conversations, newest activity first.
func (s *MemoryStore) ListConversations(_ context.Context, userID string) ([]chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var conversations []chat.Conversation
	for _, conv := range s.conversations {
		if conv.UserID != userID {
			continue
		}
		copied := *conv
		copied.Messages = nil
		conversations = append(conversations, copied)
	}

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})
	return conversations, nil
}

// GetConversation returns (nil, nil) when absent or not owned by userID.
func (s *MemoryStore) GetConversation(_ context.Context, id, userID string) (*chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok || conv.UserID != userID {
		return nil, nil
	}

	copied := *conv
	copied.Messages = make([]chat.Message, len(conv.Messages))
	copy(copied.Messages, conv.Messages)
	return &copied, nil
}

// AppendMessage appends a message and touches updatedAt.
func (s *MemoryStore) AppendMessage(_ context.Context, conversationID string, role chat.Role, content string) bool {
	if s.FailWrites {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return false
	}

	now := time.Now().UTC()
	conv.Messages = append(conv.Messages, chat.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: now,
	})
	conv.UpdatedAt = now
	return true
}

// UpdateTitle sets the conversation title.
func (s *MemoryStore) UpdateTitle(_ context.Context, conversationID, title string) bool {
	return s.update(conversationID, func(conv *chat.Conversation) { conv.Title = title })
}

// UpdateSummary sets the conversation summary.
func (s *MemoryStore) UpdateSummary(_ context.Context, conversationID, summary string) bool {
	return s.update(conversationID, func(conv *chat.Conversation) { conv.Summary = summary })
}

func (s *MemoryStore) update(conversationID string, apply func(*chat.Conversation)) bool {
	if s.FailWrites {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return false
	}
	apply(conv)
	conv.UpdatedAt = time.Now().UTC()
	return true
}

// CreateEntry stores a journal entry.
func (s *MemoryStore) CreateEntry(_ context.Context, entry *chat.JournalEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.entries[entry.UserID] = append(s.entries[entry.UserID], *entry)
	s.mu.Unlock()
	return nil
}

// ListEntries returns the user's journal entries, newest first.
func (s *MemoryStore) ListEntries(_ context.Context, userID string, limit int) ([]chat.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]chat.JournalEntry, len(s.entries[userID]))
	copy(entries, s.entries[userID])

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
