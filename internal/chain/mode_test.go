package chain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingAugmenter struct{ err error }

func (a failingAugmenter) Augment(ctx context.Context, collection, question string) (string, error) {
	return "", a.err
}

func TestSideEffectExec(t *testing.T) {
	ctx := context.Background()
	c := NewConversation("s1", &Mode{Name: "m"})

	t.Run("knowledge", func(t *testing.T) {
		aug := &fakeAugmenter{}
		messages, err := Knowledge("docs").Exec(ctx, aug, c, "what is it?", "0")
		require.NoError(t, err)
		assert.Equal(t, []Message{SystemMessage("knowledge prompt"), UserMessage("what is it?")}, messages)
		assert.Equal(t, "docs", aug.collection)
	})

	t.Run("knowledge failure is wrapped", func(t *testing.T) {
		boom := errors.New("search down")
		_, err := Knowledge("docs").Exec(ctx, failingAugmenter{err: boom}, c, "q", "0")
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "knowledge augmentation")
	})

	t.Run("transaction", func(t *testing.T) {
		messages, err := Transaction(noop).Exec(ctx, nil, c, "q", "1")
		require.NoError(t, err)
		assert.Equal(t, []Message{SystemMessage("ok")}, messages)
	})

	t.Run("nil transaction", func(t *testing.T) {
		_, err := SideEffect{Kind: KindTransaction}.Exec(ctx, nil, c, "q", "1")
		assert.ErrorIs(t, err, ErrInvalidSideEffect)
	})

	t.Run("zero value", func(t *testing.T) {
		_, err := SideEffect{}.Exec(ctx, nil, c, "q", "1")
		assert.ErrorIs(t, err, ErrInvalidSideEffect)
	})
}

func TestEquals(t *testing.T) {
	cond := Equals("1")
	assert.True(t, cond("1"))
	assert.False(t, cond(" 1"))
	assert.False(t, cond("1\n"))
}
