package store

import (
	"context"

	"github.com/fernwake/questlog/backend/internal/model/chat"
)

// ConversationStore is the remote database of record for conversations.
// Both PostgresStore and MemoryStore implement this interface.
//
// Write operations that return bool are best-effort from the caller's point
// of view: the in-memory session is updated optimistically before the remote
// write is confirmed, and a false result must never undo local state.
type ConversationStore interface {
	// CreateConversation provisions a new conversation row. Callers must not
	// assume a conversation exists until this returns.
	CreateConversation(ctx context.Context, userID string, mode chat.Mode, title string) (*chat.Conversation, error)

	// ListConversations returns the user's conversations ordered by most
	// recently updated first, without message bodies.
	ListConversations(ctx context.Context, userID string) ([]chat.Conversation, error)

	// GetConversation returns (nil, nil) when the conversation does not exist
	// or is not owned by userID. That nil is the canonical not-found signal.
	GetConversation(ctx context.Context, id, userID string) (*chat.Conversation, error)

	// AppendMessage appends a message and touches the conversation's
	// updated_at. Returns false on failure instead of an error so callers
	// decide whether a failed append is fatal.
	AppendMessage(ctx context.Context, conversationID string, role chat.Role, content string) bool

	UpdateTitle(ctx context.Context, conversationID, title string) bool
	UpdateSummary(ctx context.Context, conversationID, summary string) bool
}

// JournalStore persists journal entries derived from conversations.
type JournalStore interface {
	CreateEntry(ctx context.Context, entry *chat.JournalEntry) error
	ListEntries(ctx context.Context, userID string, limit int) ([]chat.JournalEntry, error)
}
