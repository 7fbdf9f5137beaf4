package app

import (
	"context"
	"sync"
	"time"

	"assessment-service/internal/domain"
)

// Attempt is the live, in-memory state of one assessment session.
type Attempt struct {
	sessionID    string
	assessmentID string
	userID       string
	content      domain.Content
	now          func() time.Time

	mu            sync.RWMutex
	state         domain.SessionState
	answers       *AnswerStore
	nav           *Navigator
	window        Window
	timedOut      bool
	submission    *domain.Submission
	subscribers   map[chan domain.Event]struct{}
	stopCountdown context.CancelFunc
}

// NewAttempt builds an attempt in the loading state. userID is the
// authenticated user that opened it and may be empty.
func NewAttempt(session domain.Session, userID string, content domain.Content, now func() time.Time) *Attempt {
	if now == nil {
		now = time.Now
	}
	return &Attempt{
		sessionID:    session.ID,
		assessmentID: session.AssessmentID,
		userID:       userID,
		content:      content,
		now:          now,
		state:        domain.StateLoading,
		answers:      NewAnswerStore(),
		nav:          NewNavigator(len(content.Questions)),
		subscribers:  make(map[chan domain.Event]struct{}),
	}
}

func (a *Attempt) SessionID() string { return a.sessionID }

func (a *Attempt) AssessmentID() string { return a.assessmentID }

func (a *Attempt) UserID() string { return a.userID }

func (a *Attempt) Content() domain.Content { return a.content }

func (a *Attempt) State() domain.SessionState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

func (a *Attempt) Deadline() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.window.Deadline
}

// Submission returns the stored submission once the attempt is submitted.
func (a *Attempt) Submission() (domain.Submission, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.submission == nil {
		return domain.Submission{}, false
	}
	return *a.submission, true
}

// Snapshot returns a copy of the current client-visible state.
func (a *Attempt) Snapshot() domain.Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshotLocked()
}

func (a *Attempt) loadAnswers(answers []domain.Answer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.answers.Load(answers)
}

func (a *Attempt) start(w Window) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.window = w
	a.timedOut = false
	a.state = domain.StateInProgress
	a.broadcastLocked(domain.Event{Type: domain.EventState, State: a.state})
}

func (a *Attempt) restoreSubmitted(sub domain.Submission) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.submission = &sub
	a.state = domain.StateSubmitted
	for id, v := range sub.Answers {
		a.answers.Record(id, v)
		a.answers.Confirm(id, v)
	}
}

func (a *Attempt) setCountdown(cancel context.CancelFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopCountdown = cancel
}

// markTimedOut records that the countdown reached the deadline. Answers are
// refused from then on; only a submission or a fresh window clears it.
func (a *Attempt) markTimedOut() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.timedOut = true
}

// takeExpiredWindow returns the window of an attempt whose forced submission
// failed and clears the flag, so only one caller restarts it.
func (a *Attempt) takeExpiredWindow() (Window, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.timedOut || a.state != domain.StateInProgress {
		return Window{}, false
	}
	a.timedOut = false
	return a.window, true
}

// StopCountdown cancels the running countdown, if any.
func (a *Attempt) StopCountdown() {
	a.mu.Lock()
	cancel := a.stopCountdown
	a.stopCountdown = nil
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (a *Attempt) question(id string) (domain.Question, bool) {
	for _, q := range a.content.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return domain.Question{}, false
}

// record stores value as pending for questionID, or for the current
// question when questionID is empty. Recording never moves the index.
func (a *Attempt) record(questionID string, value domain.AnswerValue) (domain.Question, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != domain.StateInProgress || a.timedOut {
		return domain.Question{}, domain.ErrSessionLocked
	}
	if questionID == "" {
		if len(a.content.Questions) == 0 {
			return domain.Question{}, domain.ErrQuestionNotFound
		}
		questionID = a.content.Questions[a.nav.Index()].ID
	}
	q, ok := a.question(questionID)
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err := validateAnswer(q, value); err != nil {
		return domain.Question{}, err
	}
	a.answers.Record(q.ID, value)
	return q, nil
}

func (a *Attempt) confirm(questionID string, value domain.AnswerValue) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.answers.Confirm(questionID, value)
}

func (a *Attempt) rollback(questionID string, value domain.AnswerValue) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.answers.Rollback(questionID, value)
}

// Move is a navigation command.
type Move string

const (
	MoveNext Move = "next"
	MovePrev Move = "prev"
	MoveJump Move = "jump"
)

func (a *Attempt) navigate(move Move, index int) domain.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch move {
	case MoveNext:
		a.nav.Advance()
	case MovePrev:
		a.nav.Retreat()
	case MoveJump:
		a.nav.JumpTo(index)
	}
	return a.snapshotLocked()
}

// beginSubmit moves the attempt to submitting and returns the answers to
// submit. Manual submissions with gaps need confirmed; timeouts never do.
func (a *Attempt) beginSubmit(req SubmitRequest) (map[string]domain.AnswerValue, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case domain.StateSubmitted:
		return nil, domain.ErrAlreadySubmitted
	case domain.StateSubmitting:
		return nil, domain.ErrSubmissionInProgress
	case domain.StateLoading:
		return nil, domain.ErrSessionLocked
	}

	answers := a.answers.Snapshot()
	total := len(a.content.Questions)
	if req.Reason != domain.ReasonTimeout && !req.Confirmed && len(answers) < total {
		return nil, &domain.UnansweredError{Answered: len(answers), Total: total}
	}

	a.state = domain.StateSubmitting
	a.broadcastLocked(domain.Event{Type: domain.EventState, State: a.state})
	return answers, nil
}

func (a *Attempt) abortSubmit(message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != domain.StateSubmitting {
		return
	}
	a.state = domain.StateInProgress
	a.broadcastLocked(domain.Event{Type: domain.EventState, State: a.state})
	a.broadcastLocked(domain.Event{Type: domain.EventNotice, Message: message})
}

func (a *Attempt) completeSubmit(sub domain.Submission) {
	a.mu.Lock()
	a.submission = &sub
	a.state = domain.StateSubmitted
	a.broadcastLocked(domain.Event{Type: domain.EventSubmitted, State: a.state, Submission: &sub})
	cancel := a.stopCountdown
	a.stopCountdown = nil
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (a *Attempt) notify(message string) {
	a.Publish(domain.Event{Type: domain.EventNotice, Message: message})
}

// Publish pushes an event to all subscribers.
func (a *Attempt) Publish(ev domain.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.broadcastLocked(ev)
}

// Subscribe returns a channel of events seeded with the current state.
// The caller must invoke the returned cancel function to avoid leaks.
func (a *Attempt) Subscribe() (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, 16)

	a.mu.Lock()
	a.subscribers[ch] = struct{}{}
	ch <- domain.Event{Type: domain.EventState, State: a.state}
	a.mu.Unlock()

	cancel := func() {
		a.mu.Lock()
		if _, ok := a.subscribers[ch]; ok {
			delete(a.subscribers, ch)
			close(ch)
		}
		a.mu.Unlock()
	}
	return ch, cancel
}

func (a *Attempt) broadcastLocked(ev domain.Event) {
	for ch := range a.subscribers {
		select {
		case ch <- ev:
		default:
			// Slow subscriber: drop the oldest event so the newest gets through.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

func (a *Attempt) snapshotLocked() domain.Snapshot {
	answers := a.answers.Snapshot()
	snap := domain.Snapshot{
		SessionID:    a.sessionID,
		AssessmentID: a.assessmentID,
		State:        a.state,
		Index:        a.nav.Index(),
		Total:        a.nav.Total(),
		Answers:      answers,
		Pending:      a.answers.Pending(),
		Answered:     len(answers),
		Deadline:     a.window.Deadline,
	}
	if snap.Total > 0 {
		snap.QuestionID = a.content.Questions[snap.Index].ID
	}
	if a.state == domain.StateInProgress || a.state == domain.StateSubmitting {
		snap.Remaining = Remaining(a.window.Deadline, a.now())
	}
	return snap
}
