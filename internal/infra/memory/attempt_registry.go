package memory

import (
	"sync"

	"assessment-service/internal/app"
)

// AttemptRegistry is an in-memory implementation of app.AttemptRegistry.
type AttemptRegistry struct {
	mu       sync.RWMutex
	attempts map[string]*app.Attempt
}

func NewAttemptRegistry() *AttemptRegistry {
	return &AttemptRegistry{
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
	delete(r.attempts, sessionID)
}

func (r *AttemptRegistry) SessionIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.attempts))
	for id := range r.attempts {
		ids = append(ids, id)
	}
	return ids
}

// Len reports how many attempts are live.
func (r *AttemptRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.attempts)
}
