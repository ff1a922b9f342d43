package store

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fernwake/questlog/backend/internal/metrics"
	"github.com/fernwake/questlog/backend/internal/model/chat"
)

// PostgresStore backs the conversation and journal stores with PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store with a pgx connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	store := &PostgresStore{pool: pool}
	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS conversations (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		mode TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		summary TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id, updated_at DESC);

	CREATE TABLE IF NOT EXISTS messages (
		id UUID PRIMARY KEY,
		conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);

	CREATE TABLE IF NOT EXISTS journal_entries (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		conversation_id UUID REFERENCES conversations(id) ON DELETE SET NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_journal_entries_user ON journal_entries(user_id, created_at DESC);
	`)
	return err
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateConversation inserts a new conversation row.
func (s *PostgresStore) CreateConversation(ctx context.Context, userID string, mode chat.Mode, title string) (*chat.Conversation, error) {
	conv := &chat.Conversation{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO conversations (id, user_id, mode, title)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, mode, title, coalesce(summary, ''), created_at, updated_at
	`, uuid.NewString(), userID, string(mode), title).Scan(
		&conv.ID,
		&conv.UserID,
		&conv.Mode,
		&conv.Title,
		&conv.Summary,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// ListConversations returns the user's conversations, newest activity first.
func (s *PostgresStore) ListConversations(ctx context.Context, userID string) ([]chat.Conversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, mode, coalesce(title, ''), coalesce(summary, ''), created_at, updated_at
		FROM conversations
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []chat.Conversation
	for rows.Next() {
		var conv chat.Conversation
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.Mode, &conv.Title, &conv.Summary, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

// GetConversation fetches one conversation with its message history.
// Returns (nil, nil) when absent or owned by someone else.
func (s *PostgresStore) GetConversation(ctx context.Context, id, userID string) (*chat.Conversation, error) {
	conv := &chat.Conversation{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, mode, coalesce(title, ''), coalesce(summary, ''), created_at, updated_at
		FROM conversations
		WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(
		&conv.ID,
		&conv.UserID,
		&conv.Mode,
		&conv.Title,
		&conv.Summary,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, role, content, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var msg chat.Message
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		conv.Messages = append(conv.Messages, msg)
	}
	return conv, rows.Err()
}

// AppendMessage stores one message and touches the conversation. Best-effort:
// failures are logged and reported as false, never escalated.
func (s *PostgresStore) AppendMessage(ctx context.Context, conversationID string, role chat.Role, content string) bool {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		logWriteFailure("append message", err)
		return false
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, role, content)
		VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), conversationID, string(role), content); err != nil {
		logWriteFailure("append message", err)
		return false
	}

	if _, err := tx.Exec(ctx, `
		UPDATE conversations SET updated_at = now() WHERE id = $1
	`, conversationID); err != nil {
		logWriteFailure("touch conversation", err)
		return false
	}

	if err := tx.Commit(ctx); err != nil {
		logWriteFailure("append message commit", err)
		return false
	}
	return true
}

// UpdateTitle sets the conversation title.
func (s *PostgresStore) UpdateTitle(ctx context.Context, conversationID, title string) bool {
	return s.updateField(ctx, "title", conversationID, title)
}

// UpdateSummary sets the conversation summary.
func (s *PostgresStore) UpdateSummary(ctx context.Context, conversationID, summary string) bool {
	return s.updateField(ctx, "summary", conversationID, summary)
}

func (s *PostgresStore) updateField(ctx context.Context, column, conversationID, value string) bool {
	// column is one of two fixed identifiers, never caller input.
	query := `UPDATE conversations SET ` + column + ` = $1, updated_at = now() WHERE id = $2`
	if _, err := s.pool.Exec(ctx, query, value, conversationID); err != nil {
		logWriteFailure("update "+column, err)
		return false
	}
	return true
}

// CreateEntry inserts a journal entry.
func (s *PostgresStore) CreateEntry(ctx context.Context, entry *chat.JournalEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	var conversationID *string
	if entry.ConversationID != "" {
		conversationID = &entry.ConversationID
	}

	return s.pool.QueryRow(ctx, `
		INSERT INTO journal_entries (id, user_id, title, content, conversation_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, entry.ID, entry.UserID, entry.Title, entry.Content, conversationID).Scan(&entry.CreatedAt)
}

// ListEntries returns the user's journal entries, newest first.
func (s *PostgresStore) ListEntries(ctx context.Context, userID string, limit int) ([]chat.JournalEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, title, content, coalesce(conversation_id, ''), created_at
		FROM journal_entries
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []chat.JournalEntry
	for rows.Next() {
		var entry chat.JournalEntry
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Title, &entry.Content, &entry.ConversationID, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func logWriteFailure(op string, err error) {
	metrics.StoreWriteFailures.Inc()
	log.Printf("[store] %s failed: %v", op, err)
}
