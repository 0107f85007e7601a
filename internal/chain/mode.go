package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoAugmenter is returned when a knowledge side effect runs without an augmenter.
	ErrNoAugmenter = errors.New("knowledge side effect requires an augmenter")

	// ErrInvalidSideEffect is returned for a zero or malformed side effect.
	ErrInvalidSideEffect = errors.New("invalid side effect")
)

// Mode is a conversational state: a classification prompt and the options that
// interpret its answer. A Mode must not be changed once conversations reference it.
type Mode struct {
	// Name identifies the mode in logs and in graph lookups.
	Name string

	// Prompt is the classification template. {message} is replaced with the user
	// message and {conversation} with the rendered log window.
	Prompt string

	// Options are evaluated in order; the first whose condition holds wins.
	Options []ModeOption
}

// Render fills the prompt placeholders in a single pass, so placeholder text inside
// the substituted values is left alone.
func (m *Mode) Render(message, conversation string) string {
	return strings.NewReplacer(
		"{message}", message,
		"{conversation}", conversation,
	).Replace(m.Prompt)
}

// Condition tests the raw classification answer.
type Condition func(response string) bool

// Equals matches an answer exactly.
func Equals(want string) Condition {
	return func(response string) bool {
		return response == want
	}
}

// ModeOption pairs a condition with the side effect to run when it holds.
type ModeOption struct {
	Condition  Condition
	SideEffect SideEffect
}

// Option is shorthand for a ModeOption literal.
func Option(cond Condition, effect SideEffect) ModeOption {
	return ModeOption{Condition: cond, SideEffect: effect}
}

// SideEffectKind tags the SideEffect variant.
type SideEffectKind int

const (
	KindKnowledge SideEffectKind = iota + 1
	KindTransaction
)

func (k SideEffectKind) String() string {
	switch k {
	case KindKnowledge:
		return "knowledge"
	case KindTransaction:
		return "transaction"
	default:
		return fmt.Sprintf("SideEffectKind(%d)", int(k))
	}
}

// TransactionFunc is scripted work run as a side effect. It may transition the
// conversation to another mode.
type TransactionFunc func(ctx context.Context, c *Conversation, message, response string) ([]Message, error)

// Augmenter composes a knowledge-grounded system prompt for a question.
type Augmenter interface {
	Augment(ctx context.Context, collection, question string) (string, error)
}

// SideEffect is the unit of work run for a matched option. Exactly one of the
// variant fields is meaningful, selected by Kind.
type SideEffect struct {
	Kind SideEffectKind

	// Collection is the knowledge collection queried by KindKnowledge.
	Collection string

	// Transaction is the work run by KindTransaction.
	Transaction TransactionFunc
}

// Knowledge returns a side effect that answers from the given knowledge collection.
func Knowledge(collection string) SideEffect {
	return SideEffect{Kind: KindKnowledge, Collection: collection}
}

// Transaction returns a side effect that runs fn.
func Transaction(fn TransactionFunc) SideEffect {
	return SideEffect{Kind: KindTransaction, Transaction: fn}
}

// Exec runs the side effect and returns the messages for the answer call.
func (s SideEffect) Exec(ctx context.Context, aug Augmenter, c *Conversation, message, response string) ([]Message, error) {
	switch s.Kind {
	case KindKnowledge:
		if aug == nil {
			return nil, ErrNoAugmenter
		}
		prompt, err := aug.Augment(ctx, s.Collection, message)
		if err != nil {
			return nil, fmt.Errorf("knowledge augmentation: %w", err)
		}
		return []Message{SystemMessage(prompt), UserMessage(message)}, nil

	case KindTransaction:
		if s.Transaction == nil {
			return nil, fmt.Errorf("%w: transaction is nil", ErrInvalidSideEffect)
		}
		return s.Transaction(ctx, c, message, response)

	default:
		return nil, fmt.Errorf("%w: kind %s", ErrInvalidSideEffect, s.Kind)
	}
}

func (s SideEffect) validate() error {
	switch s.Kind {
	case KindKnowledge:
		return nil
	case KindTransaction:
		if s.Transaction == nil {
			return fmt.Errorf("%w: transaction is nil", ErrInvalidSideEffect)
		}
		return nil
	default:
		return fmt.Errorf("%w: kind %s", ErrInvalidSideEffect, s.Kind)
	}
}
