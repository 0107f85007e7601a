package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

var (
	// ErrUnsupportedModel is returned when token accounting is requested for a model
	// outside the supported chat families.
	ErrUnsupportedModel = errors.New("token counting is not implemented for model")

	// ErrPromptTooLarge is returned when messages cannot be shrunk under the prompt cap.
	ErrPromptTooLarge = errors.New("prompt does not fit the token budget")
)

// Default budget values.
const (
	DefaultPromptCap     = 2500
	DefaultContextWindow = 4096
	DefaultMaxResponse   = 500
)

// TokenCounter measures a rendered message list in model tokens.
type TokenCounter interface {
	Count(messages []ChatMessage) int
}

// chatMLCounter counts tokens the way chat-ML frames messages: every message costs
// four framing tokens plus its encoded role and content, and the reply is primed with
// two more.
type chatMLCounter struct {
	encode func(text string) int
}

// NewTokenCounter returns a counter for model. Only the gpt-3.5-turbo and gpt-4
// families are supported.
func NewTokenCounter(model string) (TokenCounter, error) {
	if !strings.HasPrefix(model, "gpt-3.5-turbo") && !strings.HasPrefix(model, "gpt-4") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedModel, model)
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to load token encoding: %w", err)
		}
	}

	return &chatMLCounter{
		encode: func(text string) int {
			return len(enc.Encode(text, nil, nil))
		},
	}, nil
}

func (c *chatMLCounter) Count(messages []ChatMessage) int {
	n := 0
	for _, m := range messages {
		n += 4
		n += c.encode(m.Role)
		n += c.encode(m.Content)
	}
	return n + 2
}

// Budget fits a message list into a model context window.
type Budget struct {
	Counter       TokenCounter
	PromptCap     int
	ContextWindow int
	MaxResponse   int
}

// NewBudget returns a budget with the default caps.
func NewBudget(counter TokenCounter) *Budget {
	return &Budget{
		Counter:       counter,
		PromptCap:     DefaultPromptCap,
		ContextWindow: DefaultContextWindow,
		MaxResponse:   DefaultMaxResponse,
	}
}

// Fit shrinks the first system message until the whole list measures within
// PromptCap, re-measuring the shrunk list on every iteration. It returns the fitted
// copy and the number of tokens left for the response.
func (b *Budget) Fit(messages []ChatMessage) ([]ChatMessage, int, error) {
	out := make([]ChatMessage, len(messages))
	copy(out, messages)

	prompt := -1
	for i, m := range out {
		if m.Role == RoleSystem {
			prompt = i
			break
		}
	}

	count := b.Counter.Count(out)
	for count > b.PromptCap {
		if prompt < 0 || out[prompt].Content == "" {
			return nil, 0, fmt.Errorf("%w: %d tokens over a cap of %d", ErrPromptTooLarge, count, b.PromptCap)
		}
		out[prompt].Content = truncatePrompt(out[prompt].Content, count, b.PromptCap)
		count = b.Counter.Count(out)
	}

	limit := min(b.ContextWindow-count, b.MaxResponse)
	if limit < 1 {
		return nil, 0, fmt.Errorf("%w: no room left for a response", ErrPromptTooLarge)
	}

	return out, limit, nil
}

// truncatePrompt keeps the share of words the cap allows relative to the measured
// count, always dropping at least one word.
func truncatePrompt(prompt string, count, limit int) string {
	words := strings.Split(prompt, " ")
	keep := len(words) * limit / count
	if keep >= len(words) {
		keep = len(words) - 1
	}
	return strings.Join(words[:keep], " ")
}
