package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// TagPrompt is the ending fragment registered for a tag.
type TagPrompt struct {
	Tag    string `gorm:"primaryKey"`
	Prompt string `gorm:"type:text;not null"`
}

// TagPromptStore reads tag prompts.
type TagPromptStore struct {
	db *gorm.DB
}

// NewTagPromptStore creates a tag prompt store.
func NewTagPromptStore(db *gorm.DB) *TagPromptStore {
	return &TagPromptStore{db: db}
}

// Find returns the fragments registered for tags, keyed by tag.
func (s *TagPromptStore) Find(ctx context.Context, tags []string) (map[string]string, error) {
	if len(tags) == 0 {
		return map[string]string{}, nil
	}

	var rows []TagPrompt
	if err := s.db.WithContext(ctx).Where("tag IN ?", tags).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find tag prompts: %w", err)
	}

	return tagPromptMap(rows), nil
}

// Upsert stores or replaces a tag prompt.
func (s *TagPromptStore) Upsert(ctx context.Context, tp *TagPrompt) error {
	return s.db.WithContext(ctx).Save(tp).Error
}

// SetTagPrompt upserts the fragment of tag.
func (s *TagPromptStore) SetTagPrompt(ctx context.Context, tag, prompt string) error {
	if err := s.Upsert(ctx, &TagPrompt{Tag: tag, Prompt: prompt}); err != nil {
		return fmt.Errorf("upsert tag prompt: %w", err)
	}
	return nil
}

func tagPromptMap(rows []TagPrompt) map[string]string {
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Tag] = row.Prompt
	}
	return out
}
