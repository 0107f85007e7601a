package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-chain/internal/chain"
	"github.com/capitalize-ai/chat-chain/internal/llm"
	"github.com/capitalize-ai/chat-chain/internal/model"
	"github.com/capitalize-ai/chat-chain/pkg/logger"
	"github.com/capitalize-ai/chat-chain/pkg/metrics"
)

// Dispatcher runs the mode logic of one turn.
type Dispatcher interface {
	HandleMessage(ctx context.Context, c *chain.Conversation, message string) ([]chain.Message, int, error)
}

// Publisher records messages and events.
type Publisher interface {
	PublishMessage(ctx context.Context, msg *model.Message) (uint64, error)
	PublishEvent(ctx context.Context, event *model.ConversationEvent) (uint64, error)
}

// TokenCallback is called for each token during streaming.
type TokenCallback func(token string, index int) error

// MessageConfig holds the answer model settings.
type MessageConfig struct {
	// Model is the answer model; empty selects the provider default.
	Model string
}

// MessageService runs conversation turns: dispatch, fit the token budget, generate the
// answer and record it.
type MessageService struct {
	conversations *ConversationService
	dispatcher    Dispatcher
	answerer      llm.Client
	budget        *llm.Budget
	publisher     Publisher
	cfg           MessageConfig
	logger        *logger.Logger
}

// NewMessageService creates a message service. budget and publisher may be nil.
func NewMessageService(
	conversations *ConversationService,
	dispatcher Dispatcher,
	answerer llm.Client,
	budget *llm.Budget,
	publisher Publisher,
	cfg MessageConfig,
	log *logger.Logger,
) *MessageService {
	if log == nil {
		log = logger.NewNop()
	}
	return &MessageService{
		conversations: conversations,
		dispatcher:    dispatcher,
		answerer:      answerer,
		budget:        budget,
		publisher:     publisher,
		cfg:           cfg,
		logger:        log,
	}
}

// Send runs one turn and returns the assistant reply.
func (s *MessageService) Send(ctx context.Context, tenantID, conversationID string, req *model.SendMessageRequest) (*model.SendMessageResponse, error) {
	reply, err := s.turn(ctx, tenantID, conversationID, req.Content, nil)
	if err != nil {
		return nil, err
	}
	return &model.SendMessageResponse{Message: reply, Mode: reply.Mode}, nil
}

// SendWithStream runs one turn and streams the answer tokens to onToken.
func (s *MessageService) SendWithStream(ctx context.Context, tenantID, conversationID string, req *model.SendMessageRequest, onToken TokenCallback) (*model.Message, error) {
	if onToken == nil {
		onToken = func(string, int) error { return nil }
	}
	return s.turn(ctx, tenantID, conversationID, req.Content, onToken)
}

func (s *MessageService) turn(ctx context.Context, tenantID, conversationID, content string, onToken TokenCallback) (*model.Message, error) {
	var reply *model.Message

	err := s.conversations.WithConversation(ctx, tenantID, conversationID, func(c *chain.Conversation) error {
		log := s.logger.WithSession(c.Session, c.ModeName()).With(zap.String("tenant_id", tenantID))
		before := c.ModeName()

		s.publishMessage(ctx, log, &model.Message{
			ID:             uuid.Must(uuid.NewV7()).String(),
			ConversationID: conversationID,
			TenantID:       tenantID,
			Role:           model.RoleUser,
			Content:        content,
			Mode:           before,
			CreatedAt:      time.Now(),
		})
		metrics.MessagesTotal.WithLabelValues(tenantID, string(model.RoleUser)).Inc()

		messages, limit, err := s.dispatcher.HandleMessage(ctx, c, content)
		if err != nil {
			log.Error("turn failed", zap.Error(err))
			s.publishEvent(ctx, log, model.NewErrorEvent(tenantID, conversationID, before, err))
			return fmt.Errorf("handle message: %w", err)
		}

		if after := c.ModeName(); after != before {
			s.publishEvent(ctx, log, model.NewModeTransitionEvent(tenantID, conversationID, before, after))
		}

		resp, err := s.answer(ctx, chain.ToChatMessages(messages), limit, onToken)
		if err != nil {
			log.Error("answer failed", zap.Error(err))
			s.publishEvent(ctx, log, model.NewErrorEvent(tenantID, conversationID, c.ModeName(), err))
			return err
		}

		c.Append(chain.AssistantMessage(resp.Content))

		reply = &model.Message{
			ID:             uuid.Must(uuid.NewV7()).String(),
			ConversationID: conversationID,
			TenantID:       tenantID,
			Role:           model.RoleAssistant,
			Content:        resp.Content,
			Mode:           c.ModeName(),
			Model:          &resp.Model,
			TokensIn:       &resp.TokensIn,
			TokensOut:      &resp.TokensOut,
			LatencyMs:      &resp.LatencyMs,
			StopReason:     &resp.StopReason,
			CreatedAt:      time.Now(),
		}
		reply.Sequence = s.publishMessage(ctx, log, reply)
		metrics.MessagesTotal.WithLabelValues(tenantID, string(model.RoleAssistant)).Inc()

		log.Debug("turn complete",
			zap.String("mode", c.ModeName()),
			zap.Int("log_length", len(c.Log)),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// answer fits messages into the budget and calls the answer model.
func (s *MessageService) answer(ctx context.Context, messages []llm.ChatMessage, limit int, onToken TokenCallback) (*llm.CompletionResponse, error) {
	if s.budget != nil {
		fitted, remaining, err := s.budget.Fit(messages)
		if err != nil {
			return nil, fmt.Errorf("token budget: %w", err)
		}
		messages = fitted
		limit = min(limit, remaining)
	}

	req := &llm.CompletionRequest{
		Model:     s.cfg.Model,
		Messages:  messages,
		MaxTokens: limit,
	}

	var (
		resp *llm.CompletionResponse
		err  error
	)
	if onToken != nil {
		req.Stream = true
		resp, err = s.answerer.CompleteStream(ctx, req, func(token string, index int) error {
			return onToken(token, index)
		})
	} else {
		resp, err = s.answerer.Complete(ctx, req)
	}
	if err != nil {
		metrics.RecordLLMStream(s.modelLabel(), "error", 0, 0, 0)
		return nil, fmt.Errorf("answer generation failed: %w", err)
	}

	metrics.RecordLLMStream(resp.Model, "success", float64(resp.LatencyMs)/1000.0, resp.TokensIn, resp.TokensOut)
	return resp, nil
}

func (s *MessageService) modelLabel() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return s.answerer.Name()
}

// publishMessage records msg on the stream. Publishing is best effort: the turn has
// already been applied to the conversation.
func (s *MessageService) publishMessage(ctx context.Context, log *logger.Logger, msg *model.Message) uint64 {
	if s.publisher == nil {
		return 0
	}
	seq, err := s.publisher.PublishMessage(ctx, msg)
	if err != nil {
		log.Warn("failed to publish message", zap.String("role", string(msg.Role)), zap.Error(err))
		return 0
	}
	return seq
}

func (s *MessageService) publishEvent(ctx context.Context, log *logger.Logger, event *model.ConversationEvent) {
	if s.publisher == nil {
		return
	}
	if _, err := s.publisher.PublishEvent(ctx, event); err != nil {
		log.Warn("failed to publish event", zap.String("type", string(event.Type)), zap.Error(err))
	}
}
