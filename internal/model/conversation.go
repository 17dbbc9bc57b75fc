// Package model defines data structures for the research assistant.
package model

import (
	"time"
)

// DefaultTitle is the title of a conversation before its first user turn.
const DefaultTitle = "Nueva investigación"

// UntitledLabel is shown in listings for records without a title.
const UntitledLabel = "Sin título"

// Conversation is the durable record of one research thread.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

// Summary returns the listing view of the conversation.
func (c *Conversation) Summary() ConversationSummary {
	title := c.Title
	if title == "" {
		title = UntitledLabel
	}
	return ConversationSummary{
		ID:        c.ID,
		Title:     title,
		UpdatedAt: c.UpdatedAt,
	}
}

// ConversationSummary is one entry of GET /conversations.
type ConversationSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversationResponse is the response of POST /conversations/new.
type NewConversationResponse struct {
	ConversationID string `json:"conversation_id"`
}

// DeleteConversationResponse is the response of DELETE /conversations/{id}.
type DeleteConversationResponse struct {
	Status string `json:"status"`
}
