package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"assessment-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ContentLoader fetches assessment content from a backing store (e.g., Postgres).
type ContentLoader interface {
	LoadContent(ctx context.Context, assessmentID string) (domain.Content, error)
}

// ContentCache caches assessment content in Redis and falls back to a loader on cache miss.
// Content is stored as JSON: SET assessment:{assessmentID}:content {json} EX ttl
type ContentCache struct {
	client *redis.Client
	loader ContentLoader
	ttl    time.Duration
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand
}

func NewContentCache(client *redis.Client, loader ContentLoader, ttl time.Duration) *ContentCache {
	return &ContentCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *ContentCache) GetContent(ctx context.Context, assessmentID string) (domain.Content, error) {
	if content, ok := c.cached(ctx, assessmentID); ok {
		return content, nil
	}

	result, err, _ := c.sf.Do(assessmentID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if content, ok := c.cached(ctx, assessmentID); ok {
			return content, nil
		}

		content, err := c.loader.LoadContent(ctx, assessmentID)
		if err != nil {
			return domain.Content{}, err
		}
		if err := content.Validate(); err != nil {
			return domain.Content{}, fmt.Errorf("assessment %s: %w", assessmentID, err)
		}

		if data, err := json.Marshal(content); err == nil {
			// best-effort: a failed write only costs another load
			_ = c.client.Set(ctx, c.key(assessmentID), data, c.ttlWithJitter()).Err()
		}
		return content, nil
	})
	if err != nil {
		return domain.Content{}, err
	}
	return result.(domain.Content), nil
}

// Invalidate removes cached content for an assessment so the next open
// reloads it, e.g. after the assessment was re-seeded.
func (c *ContentCache) Invalidate(ctx context.Context, assessmentID string) error {
	return c.client.Del(ctx, c.key(assessmentID)).Err()
}

func (c *ContentCache) cached(ctx context.Context, assessmentID string) (domain.Content, bool) {
	data, err := c.client.Get(ctx, c.key(assessmentID)).Bytes()
	if err != nil {
		return domain.Content{}, false
	}
	var content domain.Content
	if err := json.Unmarshal(data, &content); err != nil {
		return domain.Content{}, false
	}
	return content, true
}

func (c *ContentCache) key(assessmentID string) string {
	return "assessment:" + assessmentID + ":content"
}

func (c *ContentCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
