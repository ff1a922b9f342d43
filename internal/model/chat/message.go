package chat

import (
	"encoding/json"
	"strings"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// wrappedContent is the JSON envelope some clients use to attach a brevity
// preference to the raw user text.
type wrappedContent struct {
	Message string `json:"message"`
	Brevity string `json:"brevity,omitempty"`
}

// DisplayText returns the user-visible text of the message. Content may be a
// JSON wrapper carrying the actual text in a "message" field; rendering and
// summarization must use the inner text, not the raw envelope.
func (m Message) DisplayText() string {
	trimmed := strings.TrimSpace(m.Content)
	if !strings.HasPrefix(trimmed, "{") {
		return m.Content
	}

	var wrapped wrappedContent
	if err := json.Unmarshal([]byte(trimmed), &wrapped); err != nil {
		return m.Content
	}
	if wrapped.Message == "" {
		return m.Content
	}
	return wrapped.Message
}

// Brevity returns the brevity preference from a JSON-wrapped message, if any.
func (m Message) Brevity() string {
	trimmed := strings.TrimSpace(m.Content)
	if !strings.HasPrefix(trimmed, "{") {
		return ""
	}

	var wrapped wrappedContent
	if err := json.Unmarshal([]byte(trimmed), &wrapped); err != nil {
		return ""
	}
	return wrapped.Brevity
}
