package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"assessment-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// ContentLoader fetches assessment content from a backing store.
type ContentLoader interface {
	LoadContent(ctx context.Context, assessmentID string) (domain.Content, error)
}

// ContentCache keeps validated assessment content in process for a TTL.
// Content that fails validation is never cached, so a broken answer key is
// reported on every open instead of being scored against.
type ContentCache struct {
	loader ContentLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu      sync.RWMutex
	entries map[string]contentEntry
	rnd     *rand.Rand
}

type contentEntry struct {
	content   domain.Content
	expiresAt time.Time
}

func NewContentCache(loader ContentLoader, ttl time.Duration) *ContentCache {
	return &ContentCache{
		loader:  loader,
		ttl:     ttl,
		clock:   time.Now,
		entries: make(map[string]contentEntry),
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *ContentCache) GetContent(ctx context.Context, assessmentID string) (domain.Content, error) {
	if content, ok := c.fresh(assessmentID); ok {
		return content, nil
	}
	result, err, _ := c.sf.Do(assessmentID, func() (interface{}, error) {
		if content, ok := c.fresh(assessmentID); ok {
			return content, nil
		}
		return c.load(ctx, assessmentID)
	})
	if err != nil {
		return domain.Content{}, err
	}
	return result.(domain.Content), nil
}

func (c *ContentCache) load(ctx context.Context, assessmentID string) (domain.Content, error) {
	content, err := c.loader.LoadContent(ctx, assessmentID)
	if err != nil {
		return domain.Content{}, err
	}
	if err := content.Validate(); err != nil {
		return domain.Content{}, fmt.Errorf("assessment %s: %w", assessmentID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[assessmentID] = contentEntry{content: content, expiresAt: c.clock().Add(c.expiryLocked())}
	return content, nil
}

func (c *ContentCache) fresh(assessmentID string) (domain.Content, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[assessmentID]
	if !ok || !c.clock().Before(entry.expiresAt) {
		return domain.Content{}, false
	}
	return entry.content, true
}

// expiryLocked spreads expirations by up to a tenth of the TTL.
func (c *ContentCache) expiryLocked() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	return c.ttl + time.Duration(c.rnd.Int63n(int64(c.ttl)/10+1))
}
