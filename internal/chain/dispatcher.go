package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-chain/internal/llm"
	"github.com/capitalize-ai/chat-chain/pkg/logger"
	"github.com/capitalize-ai/chat-chain/pkg/metrics"
	"github.com/capitalize-ai/chat-chain/pkg/tracing"
)

const (
	// DefaultResponseTokenLimit is the answer budget returned with every turn.
	DefaultResponseTokenLimit = 300

	// ClassificationTemperature keeps classification answers close to deterministic.
	ClassificationTemperature = 0.2

	// FallbackPrompt is sent when no option matches the classification answer.
	FallbackPrompt = "You are a chatbot. You didn't understand what user had told you." +
		" Request user to rephrase the message."
)

var (
	// ErrNoClassifier is returned when the dispatcher has no model to classify with.
	ErrNoClassifier = errors.New("dispatcher has no classifier")

	// ErrNoMode is returned for a conversation without a current mode.
	ErrNoMode = errors.New("conversation has no mode")
)

// DispatcherConfig holds the dispatcher's model settings.
type DispatcherConfig struct {
	// Model is the classification model; empty selects the provider default.
	Model string

	// ClassificationMaxTokens caps the classification answer; zero selects the
	// provider default.
	ClassificationMaxTokens int
}

// Dispatcher runs one conversation turn: classify, pick an option, run its side effect.
type Dispatcher struct {
	classifier llm.Client
	augmenter  Augmenter
	cfg        DispatcherConfig
	logger     *logger.Logger
	tracer     trace.Tracer
}

// NewDispatcher creates a dispatcher. augmenter may be nil when no mode uses a
// knowledge side effect.
func NewDispatcher(classifier llm.Client, augmenter Augmenter, cfg DispatcherConfig, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.NewNop()
	}
	return &Dispatcher{
		classifier: classifier,
		augmenter:  augmenter,
		cfg:        cfg,
		logger:     log,
		tracer:     tracing.Tracer("chat-chain/chain"),
	}
}

// HandleMessage appends message to the conversation log, classifies it with the
// current mode's prompt and runs the first matching option's side effect. It returns
// the messages for the answer call and the response token limit. Classification and
// side-effect failures are returned as is; nothing is retried.
func (d *Dispatcher) HandleMessage(ctx context.Context, c *Conversation, message string) ([]Message, int, error) {
	if c.Mode == nil {
		return nil, 0, ErrNoMode
	}
	if d.classifier == nil {
		return nil, 0, ErrNoClassifier
	}

	mode := c.Mode
	log := d.logger.WithSession(c.Session, mode.Name)

	ctx, span := d.tracer.Start(ctx, "chain.HandleMessage", trace.WithAttributes(
		attribute.String("chain.session", c.Session),
		attribute.String("chain.mode", mode.Name),
	))
	defer span.End()

	log.Debug("handling message", zap.String("message", message))

	c.Append(UserMessage(message))

	prompt := mode.Render(message, c.RenderWindow())
	log.Debug("compiled mode prompt", zap.String("prompt", prompt))

	response, err := d.classify(ctx, mode, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "classification failed")
		metrics.RecordTurn(mode.Name, metrics.OutcomeError)
		return nil, 0, err
	}
	log.Debug("model response", zap.String("response", response))

	messages := []Message{SystemMessage(FallbackPrompt)}
	outcome := metrics.OutcomeFallback

	for i, opt := range mode.Options {
		if !opt.Condition(response) {
			continue
		}

		log.Debug("option condition is truthy, executing side effect",
			zap.Int("option", i),
			zap.Stringer("kind", opt.SideEffect.Kind),
		)
		span.SetAttributes(attribute.Int("chain.option", i))

		messages, err = d.exec(ctx, opt.SideEffect, c, message, response)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "side effect failed")
			metrics.RecordTurn(mode.Name, metrics.OutcomeError)
			return nil, 0, err
		}
		outcome = metrics.OutcomeMatched
		break
	}

	if outcome == metrics.OutcomeFallback {
		log.Debug("no options matched model response, falling back to rephrase request")
	}

	if c.Mode != mode {
		log.Info("mode changed",
			zap.String("from", mode.Name),
			zap.String("to", c.ModeName()),
		)
		metrics.RecordTransition(mode.Name, c.ModeName())
	}

	metrics.RecordTurn(mode.Name, outcome)
	span.SetAttributes(attribute.String("chain.outcome", outcome))

	log.Debug("final messages",
		zap.Int("count", len(messages)),
		zap.Int("response_token_limit", DefaultResponseTokenLimit),
	)

	return messages, DefaultResponseTokenLimit, nil
}

func (d *Dispatcher) classify(ctx context.Context, mode *Mode, prompt string) (string, error) {
	ctx, span := d.tracer.Start(ctx, "chain.classify")
	defer span.End()

	start := time.Now()
	resp, err := d.classifier.Complete(ctx, &llm.CompletionRequest{
		Model:       d.cfg.Model,
		Messages:    []llm.ChatMessage{{Role: llm.RoleSystem, Content: prompt}},
		MaxTokens:   d.cfg.ClassificationMaxTokens,
		Temperature: ClassificationTemperature,
	})
	metrics.RecordClassification(mode.Name, time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("classification in mode %s: %w", mode.Name, err)
	}
	return resp.Content, nil
}

func (d *Dispatcher) exec(ctx context.Context, effect SideEffect, c *Conversation, message, response string) ([]Message, error) {
	ctx, span := d.tracer.Start(ctx, "chain.sideEffect", trace.WithAttributes(
		attribute.String("chain.side_effect", effect.Kind.String()),
	))
	defer span.End()

	return effect.Exec(ctx, d.augmenter, c, message, response)
}
