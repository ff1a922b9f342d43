package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/fernwake/questlog/backend/internal/cache"
	"github.com/fernwake/questlog/backend/internal/model/chat"
	"github.com/fernwake/questlog/backend/internal/service/ai"
	"github.com/fernwake/questlog/backend/internal/store"
)

var (
	// ErrAuthRequired means no user is present. Terminal for the attempt;
	// callers surface it, they do not retry.
	ErrAuthRequired = errors.New("authentication required")

	// ErrConversationNotFound means an explicitly requested conversation is
	// absent or owned by someone else. Distinct from generic failures so the
	// UI can offer "create new" instead of "retry".
	ErrConversationNotFound = errors.New("conversation not found")
)

// Service decides whether a request resumes the cached session, loads a
// specific remote conversation, or starts a fresh one.
type Service struct {
	conversations store.ConversationStore
	sessions      *cache.SessionCache
	prompts       *ai.ModePromptManager
	group         singleflight.Group
	now           func() time.Time
}

// NewService wires the session initializer.
func NewService(conversations store.ConversationStore, sessions *cache.SessionCache, prompts *ai.ModePromptManager) *Service {
	return &Service{
		conversations: conversations,
		sessions:      sessions,
		prompts:       prompts,
		now:           time.Now,
	}
}

// Start resolves the session for (mode, user). With an explicit
// conversationID it loads that conversation or fails with
// ErrConversationNotFound. Without one it serves the cached current session
// when valid, otherwise creates a new conversation seeded with the mode's
// opening message. Concurrent calls for the same (mode, user) are collapsed
// into one create.
func (s *Service) Start(ctx context.Context, userID string, mode chat.Mode, conversationID string) (*chat.Session, error) {
	if userID == "" {
		return nil, ErrAuthRequired
	}

	if conversationID != "" {
		return s.loadExplicit(ctx, userID, mode, conversationID)
	}

	key := string(mode) + "|" + userID
	result, err, _ := s.group.Do(key, func() (interface{}, error) {
		return s.resumeOrCreate(ctx, userID, mode)
	})
	if err != nil {
		return nil, err
	}
	return result.(*chat.Session), nil
}

// loadExplicit resolves a specific remote conversation, seeding an opening
// message when the stored history is empty.
func (s *Service) loadExplicit(ctx context.Context, userID string, mode chat.Mode, conversationID string) (*chat.Session, error) {
	conv, err := s.conversations.GetConversation(ctx, conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}

	session := conv.ToSession()
	if len(session.Messages) == 0 {
		s.seedOpening(ctx, session)
	}

	s.sessions.Put(ctx, session)
	return session, nil
}

func (s *Service) resumeOrCreate(ctx context.Context, userID string, mode chat.Mode) (*chat.Session, error) {
	if cached := s.sessions.Get(ctx, mode, userID); cached != nil {
		// Side-quest sessions are only reused once they carry at least one
		// message; an empty cached one falls through to a fresh create.
		if mode != chat.ModeSideQuest || len(cached.Messages) > 0 {
			log.Printf("[session] resumed cached session=%s mode=%s", cached.ID, mode)
			return cached, nil
		}
	}

	conv, err := s.conversations.CreateConversation(ctx, userID, mode, "")
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	session := conv.ToSession()
	s.seedOpening(ctx, session)
	s.sessions.Put(ctx, session)

	log.Printf("[session] created conversation=%s mode=%s", session.ID, mode)
	return session, nil
}

// seedOpening appends the mode's opening assistant message locally and
// best-effort persists it remotely.
func (s *Service) seedOpening(ctx context.Context, session *chat.Session) {
	firstVisit := false
	if session.Mode == chat.ModeStory {
		firstVisit = !s.sessions.StoryGreeted(ctx)
	}

	opening := s.prompts.OpeningMessage(session.Mode, firstVisit)
	session.Append(chat.Message{
		ID:        uuid.NewString(),
		Role:      chat.RoleAssistant,
		Content:   opening,
		CreatedAt: s.now().UTC(),
	})

	if !s.conversations.AppendMessage(ctx, session.ID, chat.RoleAssistant, opening) {
		log.Printf("[session] opening message not persisted for conversation=%s", session.ID)
	}

	if firstVisit {
		s.sessions.MarkStoryGreeted(ctx)
	}
}

// Reset clears the current session for a mode so the next Start begins fresh.
func (s *Service) Reset(ctx context.Context, mode chat.Mode) {
	s.sessions.Clear(ctx, mode)
}
