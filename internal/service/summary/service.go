package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/fernwake/questlog/backend/internal/metrics"
	"github.com/fernwake/questlog/backend/internal/model/chat"
	"github.com/fernwake/questlog/backend/internal/service/ai"
	"github.com/fernwake/questlog/backend/internal/store"
	"github.com/fernwake/questlog/backend/pkg/utils"
)

// fallbackEntryContent is written by the direct-save path when model output
// is unusable, so the user's save action never silently no-ops.
const fallbackEntryContent = "This conversation was saved before a summary could be generated. Open it to revisit the full exchange."

const titleSystemPrompt = `You turn conversations into short titles. Respond with a JSON object of the form {"title": "..."}. The title must be at most eight words, evocative but concrete, with no quotation marks inside it.`

const summarySystemPrompt = `You summarize conversations for a personal journal. Respond with a JSON object of the form {"summary": "..."}. The summary is one short paragraph in second person ("you talked about..."), capturing what was discussed and any decision or feeling that stood out.`

const journalPromptSystemPrompt = `You design guided journaling prompts. Respond with a JSON object of the form {"title": "...", "prompt": "...", "instructions": ["...", "..."]}. The prompt is a single reflective question; instructions are two to four small steps for answering it.`

// Result is the outcome of summarizing a conversation. Empty fields mean the
// corresponding model call failed or timed out.
type Result struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// Service derives titles, summaries and journal prompts from conversations
// and writes them back to the stores.
type Service struct {
	generator     ai.Generator
	conversations store.ConversationStore
	journal       store.JournalStore
	timeout       time.Duration
}

// NewService wires the summary generator. timeout bounds each model call;
// zero means the 10s default.
func NewService(generator ai.Generator, conversations store.ConversationStore, journal store.JournalStore, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		generator:     generator,
		conversations: conversations,
		journal:       journal,
		timeout:       timeout,
	}
}

// Generate derives a title and summary via two sequential model calls, each
// raced against the timeout. A lost race leaves that field empty rather than
// blocking; Generate never returns an error for a timeout alone.
func (s *Service) Generate(ctx context.Context, messages []chat.Message) Result {
	transcript := Transcript(messages)
	result := Result{}

	result.Title = s.completeField(ctx, "title", titleSystemPrompt, transcript)
	result.Summary = s.completeField(ctx, "summary", summarySystemPrompt, transcript)

	return result
}

func (s *Service) completeField(ctx context.Context, field, system, transcript string) string {
	raw, err := utils.WithTimeout(ctx, s.timeout, func(raceCtx context.Context) (string, error) {
		return s.generator.Complete(raceCtx, system, transcript)
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, utils.ErrTimedOut) {
			outcome = "timeout"
		}
		metrics.ModelCalls.WithLabelValues(field, outcome).Inc()
		log.Printf("[summary] %s generation failed: %v", field, err)
		return ""
	}

	metrics.ModelCalls.WithLabelValues(field, "ok").Inc()
	return parseField(raw, field)
}

// parseField pulls the named string out of the model's JSON output. When no
// parseable object is present, prose summaries are kept as-is so a model
// that ignored the format does not lose the user's summary; for any other
// field an unparseable answer counts as no answer.
func parseField(raw, field string) string {
	object, ok := ExtractJSONObject(raw)
	if !ok {
		if field == "summary" {
			return strings.TrimSpace(raw)
		}
		return ""
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(object), &payload); err != nil {
		if field == "summary" {
			return strings.TrimSpace(raw)
		}
		return ""
	}

	if value, ok := payload[field].(string); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return ""
}

// SaveConversation generates title and summary for a finished (or ongoing)
// session, persists them on the conversation record, and, for modes other
// than plain journal, writes a standalone journal entry pointing back at the
// conversation. When generation is unusable it falls back to a minimal
// direct-save entry.
func (s *Service) SaveConversation(ctx context.Context, session *chat.Session) (*chat.JournalEntry, error) {
	result := s.Generate(ctx, session.Messages)

	title := result.Title
	if title == "" {
		title = defaultTitle(session.Mode)
	}

	if !s.conversations.UpdateTitle(ctx, session.ID, title) {
		log.Printf("[summary] title update failed for conversation=%s", session.ID)
	}
	if result.Summary != "" && !s.conversations.UpdateSummary(ctx, session.ID, result.Summary) {
		log.Printf("[summary] summary update failed for conversation=%s", session.ID)
	}

	fallback := result.Summary == ""
	content := result.Summary
	if fallback {
		content = fallbackEntryContent
	}

	entry := &chat.JournalEntry{
		UserID:         session.UserID,
		Title:          title,
		Content:        content,
		ConversationID: session.ID,
	}

	// Journal-mode conversations already live in the journal history; only
	// the other modes need a standalone entry to be discoverable there.
	if session.Mode != chat.ModeJournal || fallback {
		if err := s.journal.CreateEntry(ctx, entry); err != nil {
			return nil, fmt.Errorf("failed to save journal entry: %w", err)
		}
		metrics.SummariesSaved.WithLabelValues(fmt.Sprintf("%t", fallback)).Inc()
	}

	return entry, nil
}

// SummarizeExchange writes a best-effort journal entry for an in-flight
// journal conversation. Failures are logged and swallowed; this must never
// fail the send that triggered it.
func (s *Service) SummarizeExchange(ctx context.Context, session *chat.Session) {
	result := s.Generate(ctx, session.Messages)
	if result.Summary == "" {
		log.Printf("[summary] opportunistic summary unusable for conversation=%s", session.ID)
		return
	}

	title := result.Title
	if title == "" {
		title = defaultTitle(session.Mode)
	}

	entry := &chat.JournalEntry{
		UserID:         session.UserID,
		Title:          title,
		Content:        result.Summary,
		ConversationID: session.ID,
	}
	if err := s.journal.CreateEntry(ctx, entry); err != nil {
		log.Printf("[summary] opportunistic entry save failed: %v", err)
		return
	}
	metrics.SummariesSaved.WithLabelValues("false").Inc()

	if !s.conversations.UpdateSummary(ctx, session.ID, result.Summary) {
		log.Printf("[summary] summary update failed for conversation=%s", session.ID)
	}
}

// GenerateJournalPrompt asks the model for a fresh guided-writing prompt,
// falling back to the fixed default when the call fails, times out, or emits
// something unusable.
func (s *Service) GenerateJournalPrompt(ctx context.Context) chat.JournalPrompt {
	raw, err := utils.WithTimeout(ctx, s.timeout, func(raceCtx context.Context) (string, error) {
		return s.generator.Complete(raceCtx, journalPromptSystemPrompt, "Generate one journaling prompt for today.")
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, utils.ErrTimedOut) {
			outcome = "timeout"
		}
		metrics.ModelCalls.WithLabelValues("prompt", outcome).Inc()
		log.Printf("[summary] journal prompt generation failed: %v", err)
		return chat.DefaultJournalPrompt
	}
	metrics.ModelCalls.WithLabelValues("prompt", "ok").Inc()

	object, ok := ExtractJSONObject(raw)
	if !ok {
		return chat.DefaultJournalPrompt
	}

	var prompt chat.JournalPrompt
	if err := json.Unmarshal([]byte(object), &prompt); err != nil || prompt.Prompt == "" {
		return chat.DefaultJournalPrompt
	}
	if prompt.Title == "" {
		prompt.Title = chat.DefaultJournalPrompt.Title
	}
	return prompt
}

// Transcript renders messages as plain dialogue for summarization input.
// JSON-wrapped user content contributes its inner message only.
func Transcript(messages []chat.Message) string {
	var builder strings.Builder
	for _, msg := range messages {
		speaker := "User"
		if msg.Role == chat.RoleAssistant {
			speaker = "Companion"
		}
		builder.WriteString(speaker)
		builder.WriteString(": ")
		builder.WriteString(msg.DisplayText())
		builder.WriteString("\n")
	}
	return builder.String()
}

func defaultTitle(mode chat.Mode) string {
	switch mode {
	case chat.ModeStory:
		return "A Chapter of Your Story"
	case chat.ModeSideQuest:
		return "A Side Quest"
	case chat.ModeAction:
		return "A Challenge Attempted"
	default:
		return "A Journal Conversation"
	}
}
