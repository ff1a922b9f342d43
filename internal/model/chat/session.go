package chat

import "time"

// Session is the working, UI-facing view of one conversation. Messages are
// append-only in chronological order and are never edited in place.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Mode      Mode      `json:"mode"`
	Title     string    `json:"title,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a copy with its own message slice, so an in-flight mutation
// never aliases a session already handed to a caller.
func (s *Session) Clone() *Session {
	copied := *s
	copied.Messages = make([]Message, len(s.Messages))
	copy(copied.Messages, s.Messages)
	return &copied
}

// Append returns nothing and mutates the receiver; callers working on a
// Clone keep the append-only guarantee for previously returned sessions.
func (s *Session) Append(msg Message) {
	s.Messages = append(s.Messages, msg)
	s.UpdatedAt = msg.CreatedAt
}

// LastAssistantText returns the display text of the latest assistant turn.
func (s *Session) LastAssistantText() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i].DisplayText()
		}
	}
	return ""
}
