package app

import (
	"context"
	"fmt"
	"time"

	"assessment-service/internal/domain"
)

// DefaultDuration is the length of an assessment window.
const DefaultDuration = 40 * time.Minute

// Window is the resolved start and deadline of a session.
type Window struct {
	Start    time.Time
	Deadline time.Time
	// Restarted is set when a stale start was overwritten.
	Restarted bool
}

// DeadlineManager establishes or recovers a session window on load.
type DeadlineManager struct {
	sessions SessionRepository
	duration time.Duration
	now      func() time.Time
}

func NewDeadlineManager(sessions SessionRepository, duration time.Duration, now func() time.Time) *DeadlineManager {
	if duration <= 0 {
		duration = DefaultDuration
	}
	if now == nil {
		now = time.Now
	}
	return &DeadlineManager{sessions: sessions, duration: duration, now: now}
}

// Resolve computes the window for session. A session that was never started,
// or whose deadline already passed, gets a fresh window starting now and the
// new start is persisted. The returned window is usable even when the error
// is non-nil; the error only reports that persisting the start failed.
func (m *DeadlineManager) Resolve(ctx context.Context, session domain.Session, duration time.Duration) (Window, error) {
	if duration <= 0 {
		duration = m.duration
	}
	now := m.now()

	if session.StartedAt != nil {
		deadline := session.StartedAt.Add(duration)
		if !deadline.Before(now) {
			return Window{Start: *session.StartedAt, Deadline: deadline}, nil
		}
	}

	w := Window{Start: now, Deadline: now.Add(duration), Restarted: session.StartedAt != nil}
	if err := m.sessions.SetStartedAt(ctx, session.ID, now); err != nil {
		return w, fmt.Errorf("persist session start: %w", err)
	}
	return w, nil
}
