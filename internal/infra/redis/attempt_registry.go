package redis

import (
	"context"
	"sync"
	"time"

	"assessment-service/internal/app"
	"github.com/redis/go-redis/v9"
)

// AttemptRegistry is a Redis-aware implementation of app.AttemptRegistry.
// Notes:
//   - Live attempts are kept in a local map; their countdowns run in this process.
//   - Redis holds a liveness key per attempt whose TTL ends shortly after the
//     deadline, so other instances and dashboards can list running sessions.
type AttemptRegistry struct {
	client *redis.Client
	grace  time.Duration

	mu       sync.RWMutex
	attempts map[string]*app.Attempt
}

func NewAttemptRegistry(client *redis.Client, grace time.Duration) *AttemptRegistry {
	return &AttemptRegistry{
		client:   client,
		grace:    grace,
		attempts: make(map[string]*app.Attempt),
	}
}

func (r *AttemptRegistry) GetOrAdd(attempt *app.Attempt) (*app.Attempt, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.attempts[attempt.SessionID()]; ok {
		return existing, false
	}
	r.attempts[attempt.SessionID()] = attempt
	// best-effort liveness marker
	_ = r.client.Set(context.Background(), r.key(attempt.SessionID()), attempt.UserID(), r.ttl(attempt)).Err()
	return attempt, true
}

func (r *AttemptRegistry) Get(sessionID string) (*app.Attempt, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	attempt, ok := r.attempts[sessionID]
	return attempt, ok
}

func (r *AttemptRegistry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.attempts[sessionID]; !ok {
		return
	}
	delete(r.attempts, sessionID)
	_ = r.client.Del(context.Background(), r.key(sessionID)).Err()
}

// SessionIDs lists the attempts running in this process.
func (r *AttemptRegistry) SessionIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.attempts))
	for id := range r.attempts {
		ids = append(ids, id)
	}
	return ids
}

// Live reports whether any instance marked the session as live.
func (r *AttemptRegistry) Live(ctx context.Context, sessionID string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(sessionID)).Result()
	return n > 0, err
}

// ttl is computed before the deadline is resolved, so it covers a full
// default window plus grace.
func (r *AttemptRegistry) ttl(attempt *app.Attempt) time.Duration {
	window := attempt.Content().Assessment.Duration
	if window <= 0 {
		window = app.DefaultDuration
	}
	return window + r.grace
}

func (r *AttemptRegistry) key(sessionID string) string {
	return "assessment:attempt:" + sessionID
}
