package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogRangeBounds(t *testing.T) {
	tests := []struct {
		name   string
		r      LogRange
		n      int
		wantLo int
		wantHi int
	}{
		{name: "open from start", r: OpenRange(0), n: 4, wantLo: 0, wantHi: 4},
		{name: "open from middle", r: OpenRange(2), n: 4, wantLo: 2, wantHi: 4},
		{name: "open on empty log", r: OpenRange(0), n: 0, wantLo: 0, wantHi: 0},
		{name: "closed", r: ClosedRange(1, 3), n: 5, wantLo: 1, wantHi: 3},
		{name: "closed past end", r: ClosedRange(1, 9), n: 5, wantLo: 1, wantHi: 5},
		{name: "start past end", r: OpenRange(7), n: 5, wantLo: 5, wantHi: 5},
		{name: "negative start", r: OpenRange(-3), n: 2, wantLo: 0, wantHi: 2},
		{name: "end before start", r: ClosedRange(3, 1), n: 5, wantLo: 1, wantHi: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi := tt.r.Bounds(tt.n)
			assert.Equal(t, tt.wantLo, lo)
			assert.Equal(t, tt.wantHi, hi)
		})
	}
}

func TestConversationWindowTracksGrowth(t *testing.T) {
	c := NewConversation("s1", &Mode{Name: "lobby"})
	c.Append(UserMessage("hi"))
	c.Append(AssistantMessage("hello"))
	c.PartialLogRange = OpenRange(1)

	assert.Equal(t, "assistant: hello", c.RenderWindow())

	c.Append(UserMessage("my name is Sam"))
	assert.Equal(t, "assistant: hello\nuser: my name is Sam", c.RenderWindow())

	first, ok := c.WindowStart()
	assert.True(t, ok)
	assert.Equal(t, AssistantMessage("hello"), first)
}

func TestConversationEnterMode(t *testing.T) {
	lobby := &Mode{Name: "lobby"}
	details := &Mode{Name: "details"}

	c := NewConversation("s1", lobby)
	c.Append(UserMessage("a"))
	c.Append(AssistantMessage("b"))
	c.Append(UserMessage("c"))

	c.EnterMode(details, false)
	assert.Same(t, details, c.Mode)
	assert.Equal(t, OpenRange(0), c.PartialLogRange)

	c.EnterMode(lobby, true)
	assert.Same(t, lobby, c.Mode)
	assert.Equal(t, OpenRange(2), c.PartialLogRange)
	assert.True(t, c.PartialLogRange.IsOpen())
	assert.Equal(t, "user: c", c.RenderWindow())
}

func TestNewConversationIsEmpty(t *testing.T) {
	c := NewConversation("s1", nil)
	assert.Empty(t, c.Log)
	assert.Equal(t, "", c.RenderWindow())
	assert.Equal(t, "", c.ModeName())

	_, ok := c.WindowStart()
	assert.False(t, ok)

	c.ResetWindow()
	assert.Equal(t, OpenRange(0), c.PartialLogRange)
}
