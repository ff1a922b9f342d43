package exchange

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/fernwake/questlog/backend/internal/cache"
	"github.com/fernwake/questlog/backend/internal/metrics"
	"github.com/fernwake/questlog/backend/internal/model/chat"
	"github.com/fernwake/questlog/backend/internal/service/ai"
	"github.com/fernwake/questlog/backend/internal/service/summary"
	"github.com/fernwake/questlog/backend/internal/store"
)

// ErrModelCall marks a failed reply generation. Unlike best-effort store
// writes, this fails the send.
var ErrModelCall = errors.New("model call failed")

// journalSummaryThreshold is the message count past which a journal-mode
// send opportunistically summarizes the exchange in the background.
const journalSummaryThreshold = 4

// Service runs the send pipeline: optimistic local append, best-effort
// remote persist, model call, assistant append.
type Service struct {
	generator     ai.Generator
	conversations store.ConversationStore
	sessions      *cache.SessionCache
	summaries     *summary.Service
	now           func() time.Time

	// runAsync dispatches background work; replaced in tests to run inline.
	runAsync func(fn func())
}

// NewService wires the exchange engine. summaries may be nil, which disables
// opportunistic journal summarization.
func NewService(generator ai.Generator, conversations store.ConversationStore, sessions *cache.SessionCache, summaries *summary.Service) *Service {
	return &Service{
		generator:     generator,
		conversations: conversations,
		sessions:      sessions,
		summaries:     summaries,
		now:           time.Now,
		runAsync:      func(fn func()) { go fn() },
	}
}

// Send appends the user's message, generates the assistant's reply, and
// returns the updated session. Prior messages are never mutated; the cache
// reflects the user message before the model is called, so the UI shows the
// send even if the reply fails.
func (s *Service) Send(ctx context.Context, session *chat.Session, text string) (*chat.Session, error) {
	if session == nil {
		return nil, errors.New("no active session")
	}

	working := session.Clone()

	userMsg := chat.Message{
		ID:        uuid.NewString(),
		Role:      chat.RoleUser,
		Content:   text,
		CreatedAt: s.now().UTC(),
	}
	working.Append(userMsg)
	s.sessions.Put(ctx, working)

	if !s.conversations.AppendMessage(ctx, working.ID, chat.RoleUser, text) {
		log.Printf("[exchange] user message not persisted for conversation=%s", working.ID)
	}

	var journalPrompt *chat.JournalPrompt
	if working.Mode == chat.ModeJournal {
		journalPrompt = s.sessions.ActiveJournalPrompt(ctx)
	}

	reply, err := s.generator.Reply(ctx, ai.ReplyRequest{
		Mode:          working.Mode,
		History:       working.Messages[:len(working.Messages)-1],
		UserText:      userMsg.DisplayText(),
		Brevity:       userMsg.Brevity(),
		JournalPrompt: journalPrompt,
	})
	if err != nil {
		metrics.ModelCalls.WithLabelValues("reply", "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrModelCall, err)
	}
	metrics.ModelCalls.WithLabelValues("reply", "ok").Inc()

	working.Append(chat.Message{
		ID:        uuid.NewString(),
		Role:      chat.RoleAssistant,
		Content:   reply,
		CreatedAt: s.now().UTC(),
	})
	s.sessions.Put(ctx, working)

	if !s.conversations.AppendMessage(ctx, working.ID, chat.RoleAssistant, reply) {
		log.Printf("[exchange] assistant message not persisted for conversation=%s", working.ID)
	}

	if s.summaries != nil && working.Mode == chat.ModeJournal && len(working.Messages) > journalSummaryThreshold {
		snapshot := working.Clone()
		s.runAsync(func() {
			bgCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			s.summaries.SummarizeExchange(bgCtx, snapshot)
		})
	}

	return working, nil
}
