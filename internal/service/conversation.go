// Package service runs conversation turns on top of the mode graph and publishes
// their results.
package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-chain/internal/chain"
	"github.com/capitalize-ai/chat-chain/internal/model"
	"github.com/capitalize-ai/chat-chain/pkg/logger"
	"github.com/capitalize-ai/chat-chain/pkg/metrics"
)

// ErrConversationNotFound is returned for unknown, expired or foreign conversations.
var ErrConversationNotFound = errors.New("conversation not found")

// DefaultSessionTTL is how long an idle conversation is kept.
const DefaultSessionTTL = time.Hour

// session is a conversation with its owner. mu serializes turns.
type session struct {
	mu        sync.Mutex
	conv      *chain.Conversation
	tenantID  string
	userID    string
	createdAt time.Time
	updatedAt time.Time
	metadata  map[string]string
}

func (s *session) view() *model.Conversation {
	lo, hi := s.conv.PartialLogRange.Bounds(len(s.conv.Log))
	return &model.Conversation{
		ID:          s.conv.Session,
		TenantID:    s.tenantID,
		UserID:      s.userID,
		Mode:        s.conv.ModeName(),
		Window:      toModelMessages(s.conv.Log[lo:hi]),
		WindowStart: lo,
		LogLength:   len(s.conv.Log),
		CreatedAt:   s.createdAt,
		UpdatedAt:   s.updatedAt,
		Metadata:    s.metadata,
	}
}

func toModelMessages(messages []chain.Message) []model.Message {
	out := make([]model.Message, len(messages))
	for i, m := range messages {
		out[i] = model.Message{Role: model.Role(m.Role), Content: m.Content}
	}
	return out
}

// ConversationService holds conversation sessions in memory. Idle sessions expire.
type ConversationService struct {
	graph    *chain.Graph
	sessions *cache.Cache
	ttl      time.Duration
	logger   *logger.Logger
}

// NewConversationService creates a conversation service whose conversations start in
// the graph's entry mode.
func NewConversationService(graph *chain.Graph, ttl time.Duration, log *logger.Logger) *ConversationService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &ConversationService{
		graph:    graph,
		sessions: cache.New(ttl, 10*time.Minute),
		ttl:      ttl,
		logger:   log,
	}
}

// Create starts a conversation.
func (s *ConversationService) Create(ctx context.Context, tenantID, userID string, req *model.CreateConversationRequest) (*model.Conversation, error) {
	id := uuid.Must(uuid.NewV7()).String()

	conv, err := s.graph.NewConversation(id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sess := &session{
		conv:      conv,
		tenantID:  tenantID,
		userID:    userID,
		createdAt: now,
		updatedAt: now,
		metadata:  req.Metadata,
	}
	s.sessions.Set(id, sess, cache.DefaultExpiration)

	metrics.ConversationsTotal.WithLabelValues(tenantID).Inc()
	s.logger.Info("conversation created",
		zap.String("conversation_id", id),
		zap.String("tenant_id", tenantID),
		zap.String("mode", conv.ModeName()),
	)

	return sess.view(), nil
}

func (s *ConversationService) lookup(tenantID, conversationID string) (*session, error) {
	x, found := s.sessions.Get(conversationID)
	if !found {
		return nil, ErrConversationNotFound
	}
	sess := x.(*session)
	if sess.tenantID != tenantID {
		return nil, ErrConversationNotFound
	}
	return sess, nil
}

// Get returns the conversation view.
func (s *ConversationService) Get(ctx context.Context, tenantID, conversationID string) (*model.Conversation, error) {
	sess, err := s.lookup(tenantID, conversationID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(), nil
}

// Messages returns the full conversation log.
func (s *ConversationService) Messages(ctx context.Context, tenantID, conversationID string) (*model.ListMessagesResponse, error) {
	sess, err := s.lookup(tenantID, conversationID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	lo, _ := sess.conv.PartialLogRange.Bounds(len(sess.conv.Log))
	return &model.ListMessagesResponse{
		Messages:    toModelMessages(sess.conv.Log),
		Mode:        sess.conv.ModeName(),
		WindowStart: lo,
	}, nil
}

// List returns the tenant's conversations, newest first.
func (s *ConversationService) List(ctx context.Context, tenantID string, limit, offset int) (*model.ListConversationsResponse, error) {
	var sessions []*session
	for _, item := range s.sessions.Items() {
		if sess := item.Object.(*session); sess.tenantID == tenantID {
			sessions = append(sessions, sess)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].createdAt.After(sessions[j].createdAt)
	})

	total := len(sessions)
	start := min(offset, total)
	end := min(start+limit, total)

	convs := make([]model.Conversation, 0, end-start)
	for _, sess := range sessions[start:end] {
		sess.mu.Lock()
		convs = append(convs, *sess.view())
		sess.mu.Unlock()
	}

	return &model.ListConversationsResponse{
		Conversations: convs,
		Total:         total,
		HasMore:       end < total,
	}, nil
}

// Delete drops a conversation.
func (s *ConversationService) Delete(ctx context.Context, tenantID, conversationID string) error {
	if _, err := s.lookup(tenantID, conversationID); err != nil {
		return err
	}
	s.sessions.Delete(conversationID)

	s.logger.Info("conversation deleted",
		zap.String("conversation_id", conversationID),
		zap.String("tenant_id", tenantID),
	)
	return nil
}

// WithConversation runs fn holding the conversation's turn lock and refreshes the
// session expiry afterwards.
func (s *ConversationService) WithConversation(ctx context.Context, tenantID, conversationID string, fn func(c *chain.Conversation) error) error {
	sess, err := s.lookup(tenantID, conversationID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	err = fn(sess.conv)

	sess.updatedAt = time.Now()
	s.sessions.Set(conversationID, sess, cache.DefaultExpiration)

	return err
}
