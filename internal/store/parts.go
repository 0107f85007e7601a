package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/capitalize-ai/chat-chain/internal/knowledge"
)

// KnowledgePart is a stored knowledge fragment with its embedding.
type KnowledgePart struct {
	ID         uuid.UUID                   `gorm:"type:uuid;primaryKey"`
	Collection string                      `gorm:"index;not null"`
	Content    string                      `gorm:"type:text;not null"`
	Tags       datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	Embedding  pgvector.Vector             `gorm:"type:vector(1536)"`
	CreatedAt  time.Time
}

// BeforeCreate assigns an ID to new parts.
func (p *KnowledgePart) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

type scoredPart struct {
	KnowledgePart
	Similarity float64
}

func (s scoredPart) point() knowledge.ScoredPoint {
	return knowledge.ScoredPoint{
		ID:      s.ID.String(),
		Score:   s.Similarity,
		Content: s.Content,
		Tags:    []string(s.Tags),
	}
}

// PartStore searches knowledge parts by cosine similarity.
type PartStore struct {
	db *gorm.DB
}

// NewPartStore creates a part store.
func NewPartStore(db *gorm.DB) *PartStore {
	return &PartStore{db: db}
}

// Create stores parts.
func (s *PartStore) Create(ctx context.Context, parts ...*KnowledgePart) error {
	if len(parts) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(parts).Error
}

// Write stores embedded documents in collection in one transaction.
func (s *PartStore) Write(ctx context.Context, collection string, docs []knowledge.EmbeddedDocument) ([]string, error) {
	parts := newParts(collection, docs)
	if err := s.Create(ctx, parts...); err != nil {
		return nil, fmt.Errorf("create knowledge parts: %w", err)
	}

	ids := make([]string, len(parts))
	for i, p := range parts {
		ids[i] = p.ID.String()
	}
	return ids, nil
}

func newParts(collection string, docs []knowledge.EmbeddedDocument) []*KnowledgePart {
	parts := make([]*KnowledgePart, len(docs))
	for i, doc := range docs {
		parts[i] = &KnowledgePart{
			ID:         uuid.New(),
			Collection: collection,
			Content:    doc.Content,
			Tags:       datatypes.JSONSlice[string](doc.Tags),
			Embedding:  pgvector.NewVector(doc.Vector),
		}
	}
	return parts
}

// Search returns the parts of collection closest to vector, highest similarity first.
func (s *PartStore) Search(ctx context.Context, collection string, vector []float32, limit int) ([]knowledge.ScoredPoint, error) {
	if limit <= 0 {
		limit = knowledge.DefaultMaxKnowledge
	}

	var rows []scoredPart
	err := s.db.WithContext(ctx).
		Model(&KnowledgePart{}).
		Select("knowledge_parts.*, 1 - (embedding <=> ?) as similarity", pgvector.NewVector(vector)).
		Where("collection = ?", collection).
		Order("similarity DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("search knowledge parts: %w", err)
	}

	points := make([]knowledge.ScoredPoint, len(rows))
	for i, row := range rows {
		points[i] = row.point()
	}
	return points, nil
}
