package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a conversation log entry as published and returned by the API.
type Message struct {
	ID             string `json:"id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	TenantID       string `json:"tenant_id,omitempty"`

	Role    Role   `json:"role"`
	Content string `json:"content"`

	// Mode is the conversation mode after the turn that produced the message.
	Mode string `json:"mode,omitempty"`

	// LLM metadata, assistant messages only.
	Model      *string `json:"model,omitempty"`
	TokensIn   *int    `json:"tokens_in,omitempty"`
	TokensOut  *int    `json:"tokens_out,omitempty"`
	LatencyMs  *int64  `json:"latency_ms,omitempty"`
	StopReason *string `json:"stop_reason,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`

	// JetStream sequence, set once published.
	Sequence uint64 `json:"sequence,omitempty"`
}

// SendMessageRequest is the request to run one conversation turn.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessageResponse is the result of a turn.
type SendMessageResponse struct {
	Message *Message `json:"message"`
	Mode    string   `json:"mode"`
}

// ListMessagesResponse is the conversation log.
type ListMessagesResponse struct {
	Messages    []Message `json:"messages"`
	Mode        string    `json:"mode"`
	WindowStart int       `json:"window_start"`
}

// TokenEvent represents a streaming token event.
type TokenEvent struct {
	Token string `json:"token"`
	Index int    `json:"index"`
}

// MessageCompleteEvent represents a message completion event.
type MessageCompleteEvent struct {
	Message  Message `json:"message"`
	Mode     string  `json:"mode"`
	Sequence uint64  `json:"sequence"`
}

// ErrorEvent represents an error event.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
