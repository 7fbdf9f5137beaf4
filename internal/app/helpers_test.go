package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"assessment-service/internal/infra/memory"
)

var errStorage = errors.New("storage unavailable")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeTicker struct {
	ch      chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }

func (f *fakeTicker) Stop() { f.once.Do(func() { close(f.stopped) }) }

// tickerFactory hands out fake tickers and exposes them to the test.
type tickerFactory struct {
	created chan *fakeTicker
}

func newTickerFactory() *tickerFactory {
	return &tickerFactory{created: make(chan *fakeTicker, 4)}
}

func (f *tickerFactory) New(time.Duration) app.Ticker {
	tk := &fakeTicker{ch: make(chan time.Time, 1), stopped: make(chan struct{})}
	f.created <- tk
	return tk
}

func (f *tickerFactory) next(t *testing.T) *fakeTicker {
	t.Helper()
	select {
	case tk := <-f.created:
		return tk
	case <-time.After(2 * time.Second):
		t.Fatalf("countdown ticker was not created")
		return nil
	}
}

type staticIdentity string

func (s staticIdentity) CurrentUserID(context.Context) (string, bool) {
	return string(s), s != ""
}

// flakyStore fails selected writes a fixed number of times.
type flakyStore struct {
	*memory.Store
	mu             sync.Mutex
	upsertFailures int
	scoreFailures  int
	answerFailures int
	startFailures  int
	upserts        int
}

func (f *flakyStore) UpsertSubmission(ctx context.Context, sub domain.Submission) error {
	f.mu.Lock()
	if f.upsertFailures > 0 {
		f.upsertFailures--
		f.mu.Unlock()
		return errStorage
	}
	f.upserts++
	f.mu.Unlock()
	return f.Store.UpsertSubmission(ctx, sub)
}

func (f *flakyStore) SetScore(ctx context.Context, sessionID string, score *int) error {
	f.mu.Lock()
	if f.scoreFailures > 0 {
		f.scoreFailures--
		f.mu.Unlock()
		return errStorage
	}
	f.mu.Unlock()
	return f.Store.SetScore(ctx, sessionID, score)
}

func (f *flakyStore) SaveAnswer(ctx context.Context, answer domain.Answer) error {
	f.mu.Lock()
	if f.answerFailures > 0 {
		f.answerFailures--
		f.mu.Unlock()
		return errStorage
	}
	f.mu.Unlock()
	return f.Store.SaveAnswer(ctx, answer)
}

func (f *flakyStore) SetStartedAt(ctx context.Context, sessionID string, startedAt time.Time) error {
	f.mu.Lock()
	if f.startFailures > 0 {
		f.startFailures--
		f.mu.Unlock()
		return errStorage
	}
	f.mu.Unlock()
	return f.Store.SetStartedAt(ctx, sessionID, startedAt)
}

func (f *flakyStore) upsertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upserts
}

type harness struct {
	store    *flakyStore
	clock    *fakeClock
	tickers  *tickerFactory
	registry *memory.AttemptRegistry
	service  *app.AssessmentService
}

func newHarness(t *testing.T, identity app.IdentityResolver) *harness {
	t.Helper()
	store := &flakyStore{Store: memory.NewStore()}
	store.PutContent(scenarioContent(true))
	store.PutSession(domain.Session{ID: "s1", UserID: "u1", AssessmentID: "a1"})

	h := &harness{
		store:    store,
		clock:    newFakeClock(),
		tickers:  newTickerFactory(),
		registry: memory.NewAttemptRegistry(),
	}
	h.service = app.NewAssessmentService(app.Repositories{
		Sessions:    store,
		Content:     memory.NewContentCache(store, time.Minute),
		Answers:     store,
		Submissions: store,
	}, h.registry, app.Options{
		Now:       h.clock.Now,
		NewTicker: h.tickers.New,
		Identity:  identity,
	})
	return h
}

// open opens s1 and returns the countdown ticker so no goroutine is left
// racing with the test.
func (h *harness) open(t *testing.T) (*app.Attempt, *fakeTicker) {
	t.Helper()
	a, err := h.service.Open(context.Background(), "s1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { h.service.Close("s1") })
	return a, h.tickers.next(t)
}

// scenarioContent is a 3-question assessment with correct choices [1, 2, 1].
func scenarioContent(autoGradable bool) domain.Content {
	one, two := 1, 2
	choices := []string{"A", "B", "C", "D"}
	return domain.Content{
		Assessment: domain.Assessment{ID: "a1", Title: "SPI", Kind: "spi", AutoGradable: autoGradable},
		Questions: []domain.Question{
			{ID: "q1", Prompt: "first", Choices: choices, CorrectChoice: &one, Position: 1},
			{ID: "q2", Prompt: "second", Choices: choices, CorrectChoice: &two, Position: 2},
			{ID: "q3", Prompt: "third", Choices: choices, CorrectChoice: &one, Position: 3},
		},
	}
}

func waitForEvent(t *testing.T, ch <-chan domain.Event, typ domain.EventType) domain.Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("event channel closed before %s", typ)
			}
			if ev.Type == typ {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event", typ)
		}
	}
}
