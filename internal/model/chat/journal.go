package chat

import "time"

// JournalEntry is a persisted, user-visible record distinct from a
// conversation, optionally linked back to the conversation that produced it.
type JournalEntry struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	ConversationID string    `json:"conversationId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// JournalPrompt is a generated guided-writing prompt.
type JournalPrompt struct {
	Title        string   `json:"title"`
	Prompt       string   `json:"prompt"`
	Instructions []string `json:"instructions"`
}

// DefaultJournalPrompt is served whenever prompt generation fails or times
// out, so the guided journal flow always has something to offer.
var DefaultJournalPrompt = JournalPrompt{
	Title:  "A Moment Worth Keeping",
	Prompt: "What is one moment from today you want to remember, and why did it matter?",
	Instructions: []string{
		"Describe the moment in plain detail, as if setting a scene.",
		"Name what you felt while it was happening.",
		"Write one sentence about what it tells you about what you value.",
	},
}
