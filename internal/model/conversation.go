// Package model defines the API and event payloads of the chat service.
package model

import (
	"time"
)

// Conversation is the API view of a conversation session.
type Conversation struct {
	ID          string            `json:"id"`
	TenantID    string            `json:"tenant_id"`
	UserID      string            `json:"user_id"`
	Mode        string            `json:"mode"`
	Window      []Message         `json:"window"`
	WindowStart int               `json:"window_start"`
	LogLength   int               `json:"log_length"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// CreateConversationRequest is the request to start a conversation.
type CreateConversationRequest struct {
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
	HasMore       bool           `json:"has_more"`
}
