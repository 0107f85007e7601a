package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-chain/pkg/logger"
	"github.com/capitalize-ai/chat-chain/pkg/tracing"
)

// DefaultMaxKnowledge is the number of parts requested from the searcher.
const DefaultMaxKnowledge = 5

// ErrNoSearcher is returned when the matcher is missing its embedder or searcher.
var ErrNoSearcher = errors.New("knowledge matcher has no searcher")

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher runs a vector similarity search over a collection. Results are ordered by
// score, highest first.
type Searcher interface {
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]ScoredPoint, error)
}

// MatcherConfig configures a Matcher.
type MatcherConfig struct {
	DefaultCollection string
	MaxKnowledge      int
}

// Matcher finds the knowledge parts closest to a question.
type Matcher struct {
	embedder Embedder
	searcher Searcher
	cfg      MatcherConfig
	logger   *logger.Logger
	tracer   trace.Tracer
}

// NewMatcher creates a matcher.
func NewMatcher(embedder Embedder, searcher Searcher, cfg MatcherConfig, log *logger.Logger) *Matcher {
	if cfg.MaxKnowledge <= 0 {
		cfg.MaxKnowledge = DefaultMaxKnowledge
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Matcher{
		embedder: embedder,
		searcher: searcher,
		cfg:      cfg,
		logger:   log,
		tracer:   tracing.Tracer("chat-chain/knowledge"),
	}
}

// Match searches the default collection.
func (m *Matcher) Match(ctx context.Context, question string) (Knowledge, error) {
	return m.MatchCollection(ctx, "", question)
}

// MatchCollection embeds the trimmed question and searches collection. An empty
// collection selects the default one.
func (m *Matcher) MatchCollection(ctx context.Context, collection, question string) (Knowledge, error) {
	if m.embedder == nil || m.searcher == nil {
		return Knowledge{}, ErrNoSearcher
	}
	if collection == "" {
		collection = m.cfg.DefaultCollection
	}

	ctx, span := m.tracer.Start(ctx, "knowledge.Match", trace.WithAttributes(
		attribute.String("knowledge.collection", collection),
	))
	defer span.End()

	vector, err := m.embedder.Embed(ctx, strings.TrimSpace(question))
	if err != nil {
		span.RecordError(err)
		return Knowledge{}, fmt.Errorf("embed question: %w", err)
	}

	points, err := m.searcher.Search(ctx, collection, vector, m.cfg.MaxKnowledge)
	if err != nil {
		span.RecordError(err)
		return Knowledge{}, fmt.Errorf("search %s: %w", collection, err)
	}

	k := reduce(points)
	span.SetAttributes(attribute.Int("knowledge.matched", len(k.MatchedParts)))
	m.logger.Debug("matched knowledge",
		zap.String("collection", collection),
		zap.Int("parts", len(k.MatchedParts)),
		zap.Int("tags", k.PartsTags.Len()),
	)

	return k, nil
}
