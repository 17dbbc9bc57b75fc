package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one turn of a conversation. Messages are never edited once stored.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// Sources is the evidence block the answer was grounded on.
	Sources string `json:"sources,omitempty"`
	// Thought is the exact prompt sent to the generator.
	Thought string `json:"thought,omitempty"`
}

// TitiRequest is the body of POST /titi.
type TitiRequest struct {
	Selection      string `json:"selection"`
	Instruction    string `json:"instruction"`
	ConversationID string `json:"conversation_id,omitempty"`
	Mode           string `json:"mode,omitempty"`
}

// TitiResponse is the result of one pipeline run.
type TitiResponse struct {
	ConversationID string `json:"conversation_id"`
	Thought        string `json:"thought"`
	Answer         string `json:"answer"`
	Sources        string `json:"sources"`
	Error          string `json:"error,omitempty"`
}
