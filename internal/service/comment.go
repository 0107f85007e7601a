package service

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-chain/internal/modes/chatty"
	"github.com/capitalize-ai/chat-chain/pkg/logger"
)

// CommentPublisher stores comments and returns their stream sequence.
type CommentPublisher interface {
	PublishComment(ctx context.Context, session string, comment any) (uint64, error)
}

// CommentRecorder registers chatty comments on the stream. The stream sequence is the
// reference given to the user.
type CommentRecorder struct {
	publisher CommentPublisher
	logger    *logger.Logger
}

// NewCommentRecorder creates a comment recorder.
func NewCommentRecorder(publisher CommentPublisher, log *logger.Logger) *CommentRecorder {
	if log == nil {
		log = logger.NewNop()
	}
	return &CommentRecorder{publisher: publisher, logger: log}
}

// Register publishes the comment.
func (r *CommentRecorder) Register(ctx context.Context, c chatty.Comment) (string, error) {
	seq, err := r.publisher.PublishComment(ctx, c.Session, c)
	if err != nil {
		return "", err
	}

	ref := strconv.FormatUint(seq, 10)
	r.logger.Info("comment registered",
		zap.String("session", c.Session),
		zap.String("reference", ref),
	)
	return ref, nil
}
