package model

import (
	"time"
)

// EventType represents the type of conversation event.
type EventType string

const (
	EventTypeGenerationFailed EventType = "generation_failed"
	EventTypeQueryFallback    EventType = "query_fallback"
	EventTypeSearchFailed     EventType = "search_failed"
	EventTypeEmptyEvidence    EventType = "empty_evidence"
	EventTypeDeleted          EventType = "deleted"
)

// ConversationEvent is a journal entry describing something that happened
// to a conversation outside of its message list.
type ConversationEvent struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Type           EventType      `json:"type"`
	Reason         string         `json:"reason"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// TurnRecord is the journal form of an appended message.
type TurnRecord struct {
	ConversationID string `json:"conversation_id"`
	Message
}
