package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"assessment-service/internal/domain"
	"go.uber.org/zap"
)

// Options tunes an AssessmentService. Zero values get sensible defaults.
type Options struct {
	Duration     time.Duration
	TickInterval time.Duration
	Now          func() time.Time
	NewTicker    func(time.Duration) Ticker
	Identity     IdentityResolver
	Publisher    EventPublisher
	Metrics      Metrics
	Logger       *zap.Logger
}

// AssessmentService contains the timed assessment use cases.
type AssessmentService struct {
	repos       Repositories
	attempts    AttemptRegistry
	deadlines   *DeadlineManager
	countdown   *Countdown
	coordinator *SubmissionCoordinator
	identity    IdentityResolver
	metrics     Metrics
	logger      *zap.Logger
	now         func() time.Time
}

func NewAssessmentService(repos Repositories, attempts AttemptRegistry, opts Options) *AssessmentService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Identity == nil {
		opts.Identity = noIdentity{}
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &AssessmentService{
		repos:     repos,
		attempts:  attempts,
		deadlines: NewDeadlineManager(repos.Sessions, opts.Duration, opts.Now),
		countdown: NewCountdown(opts.TickInterval, opts.Now, opts.NewTicker),
		coordinator: NewSubmissionCoordinator(
			repos.Sessions, repos.Submissions, opts.Identity, opts.Publisher, opts.Metrics, opts.Logger, opts.Now,
		),
		identity: opts.Identity,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		now:      opts.Now,
	}
}

// Open loads a session for the authenticated user, resuming the live
// attempt when one exists. A never started or expired, unsubmitted session
// gets a fresh window and a running countdown.
func (s *AssessmentService) Open(ctx context.Context, sessionID string) (*Attempt, error) {
	userID, _ := s.identity.CurrentUserID(ctx)
	if a, ok := s.attempts.Get(sessionID); ok {
		if userID != "" && a.UserID() != "" && a.UserID() != userID {
			return nil, domain.ErrForbidden
		}
		s.restartExpired(ctx, a)
		return a, nil
	}

	session, err := s.repos.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if userID != "" && session.UserID != "" && session.UserID != userID {
		return nil, domain.ErrForbidden
	}

	content, err := s.repos.Content.GetContent(ctx, session.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("load assessment: %w", err)
	}
	if userID == "" {
		userID = session.UserID
	}
	attempt := NewAttempt(session, userID, content, s.now)

	sub, err := s.repos.Submissions.GetSubmission(ctx, sessionID)
	switch {
	case err == nil:
		attempt.restoreSubmitted(sub)
		return attempt, nil
	case !errors.Is(err, domain.ErrSubmissionNotFound):
		return nil, fmt.Errorf("load submission: %w", err)
	}

	saved, err := s.repos.Answers.ListAnswers(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	attempt.loadAnswers(saved)

	live, added := s.attempts.GetOrAdd(attempt)
	if !added {
		return live, nil
	}

	s.metrics.AttemptOpened()
	s.resume(ctx, attempt, session)
	return attempt, nil
}

// restartExpired gives a live attempt whose forced submission failed a fresh
// window, the same way an expired session is treated on load.
func (s *AssessmentService) restartExpired(ctx context.Context, a *Attempt) {
	w, ok := a.takeExpiredWindow()
	if !ok {
		return
	}
	start := w.Start
	session := domain.Session{ID: a.SessionID(), UserID: a.UserID(), AssessmentID: a.AssessmentID(), StartedAt: &start}
	a.StopCountdown()
	s.resume(ctx, a, session)
}

// resume resolves the deadline of session and starts the countdown.
func (s *AssessmentService) resume(ctx context.Context, a *Attempt, session domain.Session) {
	log := s.logger.With(zap.String("session_id", a.SessionID()))
	window, err := s.deadlines.Resolve(ctx, session, a.Content().Assessment.Duration)
	if err != nil {
		log.Warn("deadline not persisted, using best-effort window", zap.Error(err))
	}
	a.start(window)
	if err != nil {
		a.notify("could not save your start time; the timer may reset on reload")
	}
	if window.Restarted {
		log.Info("expired session restarted", zap.Time("deadline", window.Deadline))
	}
	s.startCountdown(a)
}

func (s *AssessmentService) startCountdown(a *Attempt) {
	ctx, cancel := context.WithCancel(context.Background())
	a.setCountdown(cancel)
	deadline := a.Deadline()

	go s.countdown.Run(ctx, deadline,
		func(remaining int) {
			a.Publish(domain.Event{Type: domain.EventTick, Remaining: remaining})
		},
		func() {
			a.markTimedOut()
			_, err := s.Submit(context.WithoutCancel(ctx), a.SessionID(), SubmitRequest{Reason: domain.ReasonTimeout})
			if err != nil {
				s.logger.Error("forced submission failed", zap.String("session_id", a.SessionID()), zap.Error(err))
			}
		},
	)
}

func (s *AssessmentService) attempt(sessionID string) (*Attempt, error) {
	a, ok := s.attempts.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotOpen
	}
	return a, nil
}

// Answer records value for questionID (the current question when empty).
// The value is pending until the write succeeds and is rolled back if it fails.
func (s *AssessmentService) Answer(ctx context.Context, sessionID, questionID string, value domain.AnswerValue) (domain.Snapshot, error) {
	a, err := s.attempt(sessionID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	q, err := a.record(questionID, value)
	if err != nil {
		return domain.Snapshot{}, err
	}

	answer := domain.Answer{SessionID: sessionID, QuestionID: q.ID, Value: value}
	if err := s.repos.Answers.SaveAnswer(ctx, answer); err != nil {
		a.rollback(q.ID, value)
		a.notify("your answer could not be saved; please try again")
		s.logger.Warn("save answer failed", zap.String("session_id", sessionID), zap.String("question_id", q.ID), zap.Error(err))
		return a.Snapshot(), fmt.Errorf("save answer: %w", err)
	}
	a.confirm(q.ID, value)
	return a.Snapshot(), nil
}

// Navigate moves the current question index.
func (s *AssessmentService) Navigate(_ context.Context, sessionID string, move Move, index int) (domain.Snapshot, error) {
	a, err := s.attempt(sessionID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return a.navigate(move, index), nil
}

// Submit runs the submission coordinator for a live attempt.
func (s *AssessmentService) Submit(ctx context.Context, sessionID string, req SubmitRequest) (domain.Submission, error) {
	a, err := s.attempt(sessionID)
	if err != nil {
		return domain.Submission{}, err
	}
	sub, err := s.coordinator.Submit(ctx, a, req)
	if err != nil {
		return domain.Submission{}, err
	}
	s.attempts.Remove(sessionID)
	s.metrics.AttemptClosed()
	return sub, nil
}

// Snapshot returns the current view of a live attempt.
func (s *AssessmentService) Snapshot(_ context.Context, sessionID string) (domain.Snapshot, error) {
	a, err := s.attempt(sessionID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return a.Snapshot(), nil
}

// Close stops tracking a live attempt without submitting it. The persisted
// start is kept, so the next Open resumes the same window.
func (s *AssessmentService) Close(sessionID string) {
	a, ok := s.attempts.Get(sessionID)
	if !ok {
		return
	}
	a.StopCountdown()
	s.attempts.Remove(sessionID)
	s.metrics.AttemptClosed()
}

// Shutdown closes every live attempt of this process.
func (s *AssessmentService) Shutdown() {
	for _, id := range s.attempts.SessionIDs() {
		s.Close(id)
	}
}

// Subscribe returns the event stream of a live attempt.
func (s *AssessmentService) Subscribe(_ context.Context, sessionID string) (<-chan domain.Event, func(), error) {
	a, err := s.attempt(sessionID)
	if err != nil {
		return nil, nil, err
	}
	events, cancel := a.Subscribe()
	return events, cancel, nil
}
