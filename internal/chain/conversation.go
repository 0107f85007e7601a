package chain

import (
	"strings"
)

// LogRange is the slice of a conversation log relevant to the current mode.
// A nil End is open: the window grows with the log.
type LogRange struct {
	Start int  `json:"start"`
	End   *int `json:"end,omitempty"`
}

// OpenRange returns a range from start through the end of the log.
func OpenRange(start int) LogRange {
	return LogRange{Start: start}
}

// ClosedRange returns the range [start, end).
func ClosedRange(start, end int) LogRange {
	return LogRange{Start: start, End: &end}
}

// IsOpen reports whether the range tracks the end of the log.
func (r LogRange) IsOpen() bool {
	return r.End == nil
}

// Bounds resolves the range against a log of length n. The result is always a valid
// slice window: 0 <= lo <= hi <= n.
func (r LogRange) Bounds(n int) (lo, hi int) {
	hi = n
	if r.End != nil && *r.End < n {
		hi = max(*r.End, 0)
	}
	lo = min(max(r.Start, 0), hi)
	return lo, hi
}

// Conversation is the per-session state of a chain. It is not safe for concurrent
// use; callers process one turn at a time per conversation.
type Conversation struct {
	Mode            *Mode     `json:"-"`
	Session         string    `json:"session"`
	Log             []Message `json:"log"`
	PartialLogRange LogRange  `json:"partial_log_range"`
}

// NewConversation starts a conversation with an empty log in the entry mode.
func NewConversation(session string, entry *Mode) *Conversation {
	return &Conversation{
		Mode:            entry,
		Session:         session,
		Log:             []Message{},
		PartialLogRange: OpenRange(0),
	}
}

// Append adds a message to the end of the log.
func (c *Conversation) Append(m Message) {
	c.Log = append(c.Log, m)
}

// Window returns the log entries inside PartialLogRange.
func (c *Conversation) Window() []Message {
	lo, hi := c.PartialLogRange.Bounds(len(c.Log))
	return c.Log[lo:hi]
}

// RenderWindow renders the window as "role: content" lines in log order.
func (c *Conversation) RenderWindow() string {
	window := c.Window()
	lines := make([]string, len(window))
	for i, m := range window {
		lines[i] = string(m.Role) + ": " + m.Content
	}
	return strings.Join(lines, "\n")
}

// WindowStart returns the first message of the window, typically the user message
// that opened the current mode.
func (c *Conversation) WindowStart() (Message, bool) {
	window := c.Window()
	if len(window) == 0 {
		return Message{}, false
	}
	return window[0], true
}

// ResetWindow opens a fresh window at the most recently appended message.
func (c *Conversation) ResetWindow() {
	c.PartialLogRange = OpenRange(max(len(c.Log)-1, 0))
}

// EnterMode switches the conversation to m. With fresh set the window is reset first
// so the new mode only reasons over messages from the current turn onward.
func (c *Conversation) EnterMode(m *Mode, fresh bool) {
	if fresh {
		c.ResetWindow()
	}
	c.Mode = m
}

// ModeName returns the current mode's name, or "" when unset.
func (c *Conversation) ModeName() string {
	if c.Mode == nil {
		return ""
	}
	return c.Mode.Name
}
