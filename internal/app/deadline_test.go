package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"assessment-service/internal/infra/memory"
)

func TestDeadlineFirstAccessStartsWindow(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.PutSession(domain.Session{ID: "s1", UserID: "u1", AssessmentID: "a1"})
	clock := newFakeClock()
	manager := app.NewDeadlineManager(store, 0, clock.Now)

	session, _ := store.GetSession(ctx, "s1")
	w, err := manager.Resolve(ctx, session, 0)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !w.Deadline.Equal(w.Start.Add(40 * time.Minute)) {
		t.Fatalf("expected deadline = start + 40m, got start %v deadline %v", w.Start, w.Deadline)
	}
	if !w.Start.Equal(clock.Now()) || w.Restarted {
		t.Fatalf("expected fresh start at now, got %+v", w)
	}

	stored, _ := store.GetSession(ctx, "s1")
	if stored.StartedAt == nil || !stored.StartedAt.Equal(w.Start) {
		t.Fatalf("expected start persisted, got %v", stored.StartedAt)
	}
}

func TestDeadlineResumesRunningSession(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	clock := newFakeClock()
	started := clock.Now().Add(-10 * time.Minute)
	store.PutSession(domain.Session{ID: "s1", UserID: "u1", AssessmentID: "a1", StartedAt: &started})
	manager := app.NewDeadlineManager(store, 0, clock.Now)

	session, _ := store.GetSession(ctx, "s1")
	w, err := manager.Resolve(ctx, session, 0)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !w.Start.Equal(started) || !w.Deadline.Equal(started.Add(40*time.Minute)) {
		t.Fatalf("expected stored window, got %+v", w)
	}
}

func TestDeadlineExpiredSessionIsReset(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	clock := newFakeClock()
	stale := clock.Now().Add(-2 * time.Hour)
	store.PutSession(domain.Session{ID: "s1", UserID: "u1", AssessmentID: "a1", StartedAt: &stale})
	manager := app.NewDeadlineManager(store, 0, clock.Now)

	session, _ := store.GetSession(ctx, "s1")
	w, err := manager.Resolve(ctx, session, 0)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !w.Restarted || !w.Start.Equal(clock.Now()) {
		t.Fatalf("expected window restarted at now, got %+v", w)
	}
	if !w.Deadline.Equal(clock.Now().Add(40 * time.Minute)) {
		t.Fatalf("expected fresh 40 minute window, got %v", w.Deadline)
	}
	stored, _ := store.GetSession(ctx, "s1")
	if stored.StartedAt.Equal(stale) {
		t.Fatalf("expected stale start to be overwritten")
	}
}

func TestDeadlineCustomDuration(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.PutSession(domain.Session{ID: "s1"})
	clock := newFakeClock()
	manager := app.NewDeadlineManager(store, 40*time.Minute, clock.Now)

	w, _ := manager.Resolve(ctx, domain.Session{ID: "s1"}, 15*time.Minute)
	if w.Deadline.Sub(w.Start) != 15*time.Minute {
		t.Fatalf("expected per-assessment duration, got %v", w.Deadline.Sub(w.Start))
	}
}

func TestDeadlinePersistFailureKeepsBestEffortWindow(t *testing.T) {
	store := &flakyStore{Store: memory.NewStore(), startFailures: 1}
	clock := newFakeClock()
	manager := app.NewDeadlineManager(store, 0, clock.Now)

	w, err := manager.Resolve(context.Background(), domain.Session{ID: "s1"}, 0)
	if !errors.Is(err, errStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if !w.Deadline.Equal(clock.Now().Add(40 * time.Minute)) {
		t.Fatalf("expected usable window, got %+v", w)
	}
}
