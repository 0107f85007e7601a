package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePartWriter struct {
	collection string
	docs       []EmbeddedDocument
}

func (w *fakePartWriter) Write(ctx context.Context, collection string, docs []EmbeddedDocument) ([]string, error) {
	w.collection = collection
	w.docs = docs
	ids := make([]string, len(docs))
	for i := range docs {
		ids[i] = string(rune('a' + i))
	}
	return ids, nil
}

type fakeTagWriter map[string]string

func (w fakeTagWriter) SetTagPrompt(ctx context.Context, tag, prompt string) error {
	w[tag] = prompt
	return nil
}

func TestIngesterAddParts(t *testing.T) {
	parts := &fakePartWriter{}
	in := NewIngester(&fakeEmbedder{}, parts, fakeTagWriter{}, "knowledge", nil)

	ids, err := in.AddParts(context.Background(), "", []Document{
		{Content: "  Algebra comes from al-jabr. ", Tags: []string{"math"}},
		{Content: "Euclid wrote the Elements."},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, ids)
	assert.Equal(t, "knowledge", parts.collection)
	require.Len(t, parts.docs, 2)
	assert.Equal(t, "Algebra comes from al-jabr.", parts.docs[0].Content)
	assert.Equal(t, []string{"math"}, parts.docs[0].Tags)
	assert.Equal(t, []float32{0.1, 0.2}, parts.docs[0].Vector)
}

func TestIngesterAddPartsIsAllOrNothing(t *testing.T) {
	parts := &fakePartWriter{}

	in := NewIngester(&fakeEmbedder{}, parts, nil, "knowledge", nil)
	_, err := in.AddParts(context.Background(), "docs", []Document{{Content: "ok"}, {Content: "   "}})
	assert.ErrorIs(t, err, ErrEmptyDocument)
	assert.Nil(t, parts.docs)

	boom := errors.New("embedding service down")
	in = NewIngester(&fakeEmbedder{err: boom}, parts, nil, "knowledge", nil)
	_, err = in.AddParts(context.Background(), "docs", []Document{{Content: "ok"}})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, parts.docs)
}

func TestIngesterSetTagPrompt(t *testing.T) {
	tags := fakeTagWriter{}
	in := NewIngester(nil, nil, tags, "knowledge", nil)

	require.NoError(t, in.SetTagPrompt(context.Background(), " faq ", "Have a nice day"))
	assert.Equal(t, fakeTagWriter{"faq": "Have a nice day"}, tags)

	assert.Error(t, in.SetTagPrompt(context.Background(), " ", "x"))
}
