package app

import (
	"context"
	"time"

	"assessment-service/internal/domain"
)

// SessionRepository reads and updates session rows.
type SessionRepository interface {
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)
	SetStartedAt(ctx context.Context, sessionID string, startedAt time.Time) error
	SetScore(ctx context.Context, sessionID string, score *int) error
}

// ContentRepository loads assessment content (from cache/backing store).
type ContentRepository interface {
	GetContent(ctx context.Context, assessmentID string) (domain.Content, error)
}

// AnswerRepository persists per-question answers so attempts can be resumed.
type AnswerRepository interface {
	ListAnswers(ctx context.Context, sessionID string) ([]domain.Answer, error)
	SaveAnswer(ctx context.Context, answer domain.Answer) error
}

// SubmissionRepository stores one submission per session.
// UpsertSubmission must replace an existing row with the same session id.
type SubmissionRepository interface {
	UpsertSubmission(ctx context.Context, submission domain.Submission) error
	GetSubmission(ctx context.Context, sessionID string) (domain.Submission, error)
}

// AttemptRegistry abstracts where live attempts are tracked (in-memory, Redis, etc).
type AttemptRegistry interface {
	GetOrAdd(attempt *Attempt) (*Attempt, bool)
	Get(sessionID string) (*Attempt, bool)
	Remove(sessionID string)
	SessionIDs() []string
}

// EventPublisher fans submission results out to other consumers.
type EventPublisher interface {
	PublishSubmission(ctx context.Context, submission domain.Submission) error
}

// IdentityResolver returns the authenticated user carried by ctx, if any.
type IdentityResolver interface {
	CurrentUserID(ctx context.Context) (string, bool)
}

// Metrics receives operational counters from the service.
type Metrics interface {
	SubmissionRecorded(reason domain.SubmitReason, status domain.SubmissionStatus, took time.Duration)
	SubmissionFailed(reason domain.SubmitReason)
	AttemptOpened()
	AttemptClosed()
}

// Repositories groups the storage collaborators of the service.
type Repositories struct {
	Sessions    SessionRepository
	Content     ContentRepository
	Answers     AnswerRepository
	Submissions SubmissionRepository
}

type nopMetrics struct{}

func (nopMetrics) SubmissionRecorded(domain.SubmitReason, domain.SubmissionStatus, time.Duration) {}
func (nopMetrics) SubmissionFailed(domain.SubmitReason)                                        {}
func (nopMetrics) AttemptOpened()                                                              {}
func (nopMetrics) AttemptClosed()                                                              {}

type nopPublisher struct{}

func (nopPublisher) PublishSubmission(context.Context, domain.Submission) error { return nil }

type noIdentity struct{}

func (noIdentity) CurrentUserID(context.Context) (string, bool) { return "", false }
