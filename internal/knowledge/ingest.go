package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-chain/pkg/logger"
)

// ErrEmptyDocument is returned for a document without content.
var ErrEmptyDocument = errors.New("knowledge document has no content")

// Document is a knowledge part before embedding.
type Document struct {
	Content string
	Tags    []string
}

// EmbeddedDocument is a document with its content vector.
type EmbeddedDocument struct {
	Document
	Vector []float32
}

// PartWriter stores embedded documents in a collection and returns their IDs.
type PartWriter interface {
	Write(ctx context.Context, collection string, docs []EmbeddedDocument) ([]string, error)
}

// TagPromptWriter registers the ending fragment of a tag.
type TagPromptWriter interface {
	SetTagPrompt(ctx context.Context, tag, prompt string) error
}

// Ingester loads knowledge parts and tag prompts.
type Ingester struct {
	embedder          Embedder
	parts             PartWriter
	tags              TagPromptWriter
	defaultCollection string
	logger            *logger.Logger
}

// NewIngester creates an ingester. Empty collections go to defaultCollection.
func NewIngester(embedder Embedder, parts PartWriter, tags TagPromptWriter, defaultCollection string, log *logger.Logger) *Ingester {
	if log == nil {
		log = logger.NewNop()
	}
	return &Ingester{
		embedder:          embedder,
		parts:             parts,
		tags:              tags,
		defaultCollection: defaultCollection,
		logger:            log,
	}
}

// AddParts embeds docs and stores them. Nothing is stored unless every document
// embeds.
func (i *Ingester) AddParts(ctx context.Context, collection string, docs []Document) ([]string, error) {
	if collection == "" {
		collection = i.defaultCollection
	}

	embedded := make([]EmbeddedDocument, 0, len(docs))
	for n, doc := range docs {
		doc.Content = strings.TrimSpace(doc.Content)
		if doc.Content == "" {
			return nil, fmt.Errorf("document %d: %w", n, ErrEmptyDocument)
		}
		vector, err := i.embedder.Embed(ctx, doc.Content)
		if err != nil {
			return nil, fmt.Errorf("embed document %d: %w", n, err)
		}
		embedded = append(embedded, EmbeddedDocument{Document: doc, Vector: vector})
	}

	ids, err := i.parts.Write(ctx, collection, embedded)
	if err != nil {
		return nil, fmt.Errorf("store parts: %w", err)
	}

	i.logger.Info("knowledge parts added",
		zap.String("collection", collection),
		zap.Int("count", len(ids)),
	)
	return ids, nil
}

// SetTagPrompt registers prompt as the ending fragment of tag.
func (i *Ingester) SetTagPrompt(ctx context.Context, tag, prompt string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return errors.New("tag cannot be empty")
	}
	if err := i.tags.SetTagPrompt(ctx, tag, prompt); err != nil {
		return fmt.Errorf("set tag prompt %s: %w", tag, err)
	}
	i.logger.Info("tag prompt set", zap.String("tag", tag))
	return nil
}
