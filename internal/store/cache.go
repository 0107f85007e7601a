package store

import (
	"context"
	"errors"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/capitalize-ai/chat-chain/internal/knowledge"
)

// CachedTagPrompts caches tag prompt lookups per tag. Tags known to have no
// fragment are cached too.
type CachedTagPrompts struct {
	next  knowledge.TagPromptFinder
	cache *cache.Cache
}

// NewCachedTagPrompts wraps next with a cache whose entries expire after ttl.
func NewCachedTagPrompts(next knowledge.TagPromptFinder, ttl time.Duration) *CachedTagPrompts {
	return &CachedTagPrompts{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

type cachedPrompt struct {
	prompt string
	found  bool
}

// Find serves cached tags and asks the wrapped finder for the rest.
func (c *CachedTagPrompts) Find(ctx context.Context, tags []string) (map[string]string, error) {
	out := make(map[string]string, len(tags))
	var missing []string

	for _, tag := range tags {
		x, ok := c.cache.Get(tag)
		if !ok {
			missing = append(missing, tag)
			continue
		}
		if entry := x.(cachedPrompt); entry.found {
			out[tag] = entry.prompt
		}
	}

	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := c.next.Find(ctx, missing)
	if err != nil {
		return nil, err
	}

	for _, tag := range missing {
		prompt, found := fetched[tag]
		c.cache.Set(tag, cachedPrompt{prompt: prompt, found: found}, cache.DefaultExpiration)
		if found {
			out[tag] = prompt
		}
	}
	return out, nil
}

// ErrReadOnly is returned by SetTagPrompt when the wrapped finder cannot write.
var ErrReadOnly = errors.New("tag prompt store is read-only")

// SetTagPrompt writes through to the wrapped store and drops the cached entry.
func (c *CachedTagPrompts) SetTagPrompt(ctx context.Context, tag, prompt string) error {
	w, ok := c.next.(knowledge.TagPromptWriter)
	if !ok {
		return ErrReadOnly
	}
	if err := w.SetTagPrompt(ctx, tag, prompt); err != nil {
		return err
	}
	c.Invalidate(tag)
	return nil
}

// Invalidate drops a cached tag.
func (c *CachedTagPrompts) Invalidate(tag string) {
	c.cache.Delete(tag)
}
