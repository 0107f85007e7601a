package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/chat-chain/internal/model"
)

const (
	// StreamName is the name of the chat stream.
	StreamName = "CHAT_CHAIN"

	// SubjectPrefix is the prefix for conversation messages and events.
	SubjectPrefix = "chain"

	// CommentPrefix is the prefix for registered comments.
	CommentPrefix = "comments"
)

// Publisher is the JetStream surface the stream manager needs.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// StreamManager handles JetStream stream operations.
type StreamManager struct {
	client    *Client
	publisher Publisher
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client, publisher: client.JetStream()}
}

// EnsureStream creates the chat stream unless it exists.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	if _, err := js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name: StreamName,
		Subjects: []string{
			fmt.Sprintf("%s.>", SubjectPrefix),
			fmt.Sprintf("%s.>", CommentPrefix),
		},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		MaxBytes:    10 * 1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		DenyDelete:  true,
		DenyPurge:   true,
		Description: "Chat turns, conversation events and registered comments",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// MessageSubject returns the subject for a message.
func MessageSubject(tenantID, conversationID string, role model.Role) string {
	return fmt.Sprintf("%s.%s.%s.msg.%s", SubjectPrefix, tenantID, conversationID, role)
}

// EventSubject returns the subject for an event.
func EventSubject(tenantID, conversationID string, eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.%s.event.%s", SubjectPrefix, tenantID, conversationID, eventType)
}

// CommentSubject returns the subject for a comment registered in a session.
func CommentSubject(session string) string {
	return fmt.Sprintf("%s.%s", CommentPrefix, session)
}

// PublishMessage publishes a message and returns its stream sequence.
func (m *StreamManager) PublishMessage(ctx context.Context, msg *model.Message) (uint64, error) {
	seq, err := m.publish(ctx, MessageSubject(msg.TenantID, msg.ConversationID, msg.Role), msg)
	if err != nil {
		return 0, fmt.Errorf("failed to publish message: %w", err)
	}
	return seq, nil
}

// PublishEvent publishes an event and returns its stream sequence.
func (m *StreamManager) PublishEvent(ctx context.Context, event *model.ConversationEvent) (uint64, error) {
	seq, err := m.publish(ctx, EventSubject(event.TenantID, event.ConversationID, event.Type), event)
	if err != nil {
		return 0, fmt.Errorf("failed to publish event: %w", err)
	}
	return seq, nil
}

// PublishComment publishes a registered comment and returns its stream sequence.
func (m *StreamManager) PublishComment(ctx context.Context, session string, comment any) (uint64, error) {
	seq, err := m.publish(ctx, CommentSubject(session), comment)
	if err != nil {
		return 0, fmt.Errorf("failed to publish comment: %w", err)
	}
	return seq, nil
}

func (m *StreamManager) publish(ctx context.Context, subject string, v any) (uint64, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("marshal: %w", err)
	}

	ack, err := m.publisher.Publish(ctx, subject, data)
	if err != nil {
		return 0, err
	}
	return ack.Sequence, nil
}
