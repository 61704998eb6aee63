package apitypes

import "time"

// Session is the conversation envelope binding a user to an agent for the
// lifetime of the conversation.
type Session struct {
	SessionID string    `json:"session_id"`
	AgentSlug string    `json:"agent_slug"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionMessage is a durable, append-only record of one turn's worth of
// conversation content.
type SessionMessage struct {
	ID          int64          `json:"id"`
	SessionID   string         `json:"session_id"`
	Role        MessageRole    `json:"role"`
	Content     string         `json:"content"`
	Attachments []Attachment   `json:"attachments,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}
