package chat

import "time"

// Conversation is the database-of-record shape of a conversation.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Mode      Mode      `json:"mode"`
	Title     string    `json:"title,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	Messages  []Message `json:"messages,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ToSession maps a stored conversation into the session shape served to the UI.
func (c *Conversation) ToSession() *Session {
	messages := make([]Message, len(c.Messages))
	copy(messages, c.Messages)

	return &Session{
		ID:        c.ID,
		UserID:    c.UserID,
		Mode:      c.Mode,
		Title:     c.Title,
		Summary:   c.Summary,
		Messages:  messages,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
