package knowledge

import (
	"context"

	"github.com/capitalize-ai/chat-chain/pkg/metrics"
)

// Service matches a question and composes the prompt in one call. It satisfies the
// augmenter used by knowledge side effects.
type Service struct {
	matcher  *Matcher
	composer *Composer
	bar      float64
}

// NewService combines a matcher and a composer.
func NewService(matcher *Matcher, composer *Composer) *Service {
	return &Service{matcher: matcher, composer: composer, bar: composer.cfg.KnowledgeBar}
}

// Augment returns the knowledge-grounded system prompt for question.
func (s *Service) Augment(ctx context.Context, collection, question string) (string, error) {
	k, err := s.matcher.MatchCollection(ctx, collection, question)
	if err != nil {
		return "", err
	}

	if collection == "" {
		collection = s.matcher.cfg.DefaultCollection
	}
	metrics.RecordKnowledge(collection, len(k.Accepted(s.bar)))

	return s.composer.Compose(ctx, k)
}
