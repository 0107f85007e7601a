package knowledge

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-chain/pkg/logger"
	"github.com/capitalize-ai/chat-chain/pkg/tracing"
)

// Prompt defaults.
const (
	DefaultIntro = "You are a helpful chat assistant"

	DefaultKnowledgePrompt = "Your only source of knowledge is following text and you should" +
		" ploitely decline to answer any question not from the following text: "

	DefaultNoKnowledgePrompt = "User has asked a question you didn't understand or don't have" +
		" the knowledge to answer. Apologise to user and reply explaining you didn't" +
		" understand or know answer."

	DefaultEndingPrompt = "End the your messages with: "

	DefaultKnowledgeBar = 0.80
)

// TagPromptFinder looks up the ending fragments registered for tags. Tags without a
// fragment are absent from the result.
type TagPromptFinder interface {
	Find(ctx context.Context, tags []string) (map[string]string, error)
}

// ComposerConfig holds the prompt templates and the acceptance bar.
type ComposerConfig struct {
	Intro             string
	KnowledgePrompt   string
	NoKnowledgePrompt string
	EndingPrompt      string
	KnowledgeBar      float64
}

// DefaultComposerConfig returns the stock templates.
func DefaultComposerConfig() ComposerConfig {
	return ComposerConfig{
		Intro:             DefaultIntro,
		KnowledgePrompt:   DefaultKnowledgePrompt,
		NoKnowledgePrompt: DefaultNoKnowledgePrompt,
		EndingPrompt:      DefaultEndingPrompt,
		KnowledgeBar:      DefaultKnowledgeBar,
	}
}

// Composer builds the system prompt for a knowledge answer.
type Composer struct {
	tags   TagPromptFinder
	cfg    ComposerConfig
	logger *logger.Logger
	tracer trace.Tracer
}

// NewComposer creates a composer. tags may be nil, in which case no ending fragment
// is ever added.
func NewComposer(tags TagPromptFinder, cfg ComposerConfig, log *logger.Logger) *Composer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Composer{
		tags:   tags,
		cfg:    cfg,
		logger: log,
		tracer: tracing.Tracer("chat-chain/knowledge"),
	}
}

// Compose returns the intro, then at most one tag ending fragment, then the accepted
// knowledge. Without accepted knowledge it returns the intro followed by the
// no-knowledge instruction, and the tag store is not queried.
func (c *Composer) Compose(ctx context.Context, k Knowledge) (string, error) {
	ctx, span := c.tracer.Start(ctx, "knowledge.Compose")
	defer span.End()

	accepted := k.Accepted(c.cfg.KnowledgeBar)
	span.SetAttributes(attribute.Int("knowledge.accepted", len(accepted)))

	var b strings.Builder
	b.WriteString(c.cfg.Intro)

	if len(accepted) == 0 {
		c.logger.Debug("no knowledge above bar", zap.Float64("bar", c.cfg.KnowledgeBar))
		b.WriteString(" ")
		b.WriteString(c.cfg.NoKnowledgePrompt)
		return b.String(), nil
	}

	if fragment, tag, err := c.ending(ctx, k.PartsTags.MostCommon()); err != nil {
		span.RecordError(err)
		return "", err
	} else if tag != "" {
		c.logger.Debug("adding ending fragment", zap.String("tag", tag))
		b.WriteString(" ")
		b.WriteString(c.cfg.EndingPrompt)
		b.WriteString(fragment)
	}

	contents := make([]string, len(accepted))
	for i, p := range accepted {
		contents[i] = p.Content
	}
	b.WriteString(" ")
	b.WriteString(c.cfg.KnowledgePrompt)
	b.WriteString(strings.Join(contents, " "))

	return b.String(), nil
}

// ending returns the fragment of the first ranked tag that has one.
func (c *Composer) ending(ctx context.Context, ranked []string) (string, string, error) {
	if c.tags == nil || len(ranked) == 0 {
		return "", "", nil
	}

	fragments, err := c.tags.Find(ctx, ranked)
	if err != nil {
		return "", "", fmt.Errorf("find tag prompts: %w", err)
	}

	for _, tag := range ranked {
		if fragment, ok := fragments[tag]; ok {
			return fragment, tag, nil
		}
	}
	return "", "", nil
}
