package model

import "time"

// DefaultSessionTitle is the title of the implicit per-user session.
const DefaultSessionTitle = "Default"

// Role is the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Conversational reports whether r may appear in durable or rolling history.
func (r Role) Conversational() bool {
	return r == RoleUser || r == RoleAssistant
}

// Session is a durable chat session.
type Session struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is an append-only chat message in a session.
type Message struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Entry is one rolling-history item.
type Entry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Caller is the authenticated identity a request runs as.
type Caller struct {
	UserID     string
	Privileged bool
}
