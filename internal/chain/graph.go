package chain

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownMode is returned when a mode name is not registered in the graph.
	ErrUnknownMode = errors.New("unknown mode")

	// ErrDuplicateMode is returned when two modes share a name.
	ErrDuplicateMode = errors.New("duplicate mode")
)

// Graph registers the modes of a deployment and resolves transitions by name, so
// modes can reference each other (including cycles) without initialization order
// mattering. Build it once, then share it read-only.
type Graph struct {
	entry   string
	modes   map[string]*Mode
	targets map[string]struct{}
}

// NewGraph creates an empty graph whose conversations start in the entry mode.
func NewGraph(entry string) *Graph {
	return &Graph{
		entry:   entry,
		modes:   make(map[string]*Mode),
		targets: make(map[string]struct{}),
	}
}

// Add registers modes.
func (g *Graph) Add(modes ...*Mode) error {
	for _, m := range modes {
		if m == nil || m.Name == "" {
			return fmt.Errorf("%w: mode without a name", ErrUnknownMode)
		}
		if _, exists := g.modes[m.Name]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateMode, m.Name)
		}
		g.modes[m.Name] = m
	}
	return nil
}

// Mode looks up a registered mode.
func (g *Graph) Mode(name string) (*Mode, error) {
	m, ok := g.modes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMode, name)
	}
	return m, nil
}

// Entry returns the mode new conversations start in.
func (g *Graph) Entry() (*Mode, error) {
	return g.Mode(g.entry)
}

// Names lists the registered modes in lexical order.
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.modes))
	for name := range g.modes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewConversation starts a conversation in the entry mode.
func (g *Graph) NewConversation(session string) (*Conversation, error) {
	entry, err := g.Entry()
	if err != nil {
		return nil, err
	}
	return NewConversation(session, entry), nil
}

// Goto returns a transaction that runs build and, when it succeeds, moves the
// conversation to the target mode. With fresh set the window restarts at the user
// message of the current turn. A failed build leaves the conversation untouched.
func (g *Graph) Goto(target string, fresh bool, build TransactionFunc) TransactionFunc {
	g.targets[target] = struct{}{}

	return func(ctx context.Context, c *Conversation, message, response string) ([]Message, error) {
		next, err := g.Mode(target)
		if err != nil {
			return nil, err
		}

		messages, err := build(ctx, c, message, response)
		if err != nil {
			return nil, err
		}

		c.EnterMode(next, fresh)
		return messages, nil
	}
}

// Validate checks that the entry mode and every Goto target are registered and that
// every option is well formed.
func (g *Graph) Validate() error {
	var errs []error

	if _, err := g.Entry(); err != nil {
		errs = append(errs, fmt.Errorf("entry: %w", err))
	}

	for target := range g.targets {
		if _, ok := g.modes[target]; !ok {
			errs = append(errs, fmt.Errorf("transition target: %w: %s", ErrUnknownMode, target))
		}
	}

	for _, name := range g.Names() {
		m := g.modes[name]
		if len(m.Options) == 0 {
			errs = append(errs, fmt.Errorf("mode %s has no options", name))
		}
		for i, opt := range m.Options {
			if opt.Condition == nil {
				errs = append(errs, fmt.Errorf("mode %s option %d has no condition", name, i))
			}
			if err := opt.SideEffect.validate(); err != nil {
				errs = append(errs, fmt.Errorf("mode %s option %d: %w", name, i, err))
			}
		}
	}

	return errors.Join(errs...)
}
