package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names a conversation event.
type EventType string

const (
	// EventTypeModeTransition is published when a turn moves the conversation to
	// another mode.
	EventTypeModeTransition EventType = "mode_transition"
	// EventTypeError is published when a turn fails.
	EventTypeError EventType = "error"
)

// ConversationEvent is a non-message record on the conversation stream.
type ConversationEvent struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	TenantID       string         `json:"tenant_id"`
	Type           EventType      `json:"type"`
	Reason         string         `json:"reason"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	Sequence       uint64         `json:"sequence,omitempty"`
}

// NewModeTransitionEvent records a move between two modes.
func NewModeTransitionEvent(tenantID, conversationID, from, to string) *ConversationEvent {
	return newEvent(tenantID, conversationID, EventTypeModeTransition,
		fmt.Sprintf("%s -> %s", from, to),
		map[string]any{"from": from, "to": to})
}

// NewErrorEvent records a failed turn.
func NewErrorEvent(tenantID, conversationID, mode string, cause error) *ConversationEvent {
	return newEvent(tenantID, conversationID, EventTypeError, cause.Error(),
		map[string]any{"mode": mode})
}

func newEvent(tenantID, conversationID string, typ EventType, reason string, metadata map[string]any) *ConversationEvent {
	return &ConversationEvent{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		TenantID:       tenantID,
		Type:           typ,
		Reason:         reason,
		Metadata:       metadata,
		CreatedAt:      time.Now(),
	}
}
