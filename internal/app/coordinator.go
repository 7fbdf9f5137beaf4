package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"assessment-service/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SubmitRequest is the single entry point for manual and deadline submissions.
type SubmitRequest struct {
	Reason domain.SubmitReason
	// Confirmed acknowledges unanswered questions on manual submission.
	Confirmed bool
}

// SubmissionCoordinator reconciles an attempt's answers into one submission.
type SubmissionCoordinator struct {
	sessions    SessionRepository
	submissions SubmissionRepository
	identity    IdentityResolver
	publisher   EventPublisher
	metrics     Metrics
	logger      *zap.Logger
	now         func() time.Time
}

func NewSubmissionCoordinator(
	sessions SessionRepository,
	submissions SubmissionRepository,
	identity IdentityResolver,
	publisher EventPublisher,
	metrics Metrics,
	logger *zap.Logger,
	now func() time.Time,
) *SubmissionCoordinator {
	if identity == nil {
		identity = noIdentity{}
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &SubmissionCoordinator{
		sessions:    sessions,
		submissions: submissions,
		identity:    identity,
		publisher:   publisher,
		metrics:     metrics,
		logger:      logger,
		now:         now,
	}
}

// SubmissionID derives the stable submission id of a session.
func SubmissionID(sessionID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("submission:"+sessionID)).String()
}

// Submit writes the attempt's submission. On a write failure the attempt
// returns to in progress with its answers intact and the error is returned
// for the caller to retry.
func (c *SubmissionCoordinator) Submit(ctx context.Context, a *Attempt, req SubmitRequest) (domain.Submission, error) {
	if req.Reason == "" {
		req.Reason = domain.ReasonManual
	}
	started := c.now()
	log := c.logger.With(zap.String("session_id", a.SessionID()), zap.String("reason", string(req.Reason)))

	answers, err := a.beginSubmit(req)
	if err != nil {
		return domain.Submission{}, err
	}

	assessmentID, userID, err := c.resolveIDs(ctx, a)
	if err != nil {
		log.Warn("submission aborted", zap.Error(err))
		c.metrics.SubmissionFailed(req.Reason)
		a.abortSubmit("could not identify the assessment or user; please retry")
		return domain.Submission{}, err
	}

	content := a.Content()
	sub := domain.Submission{
		ID:           SubmissionID(a.SessionID()),
		AssessmentID: assessmentID,
		UserID:       userID,
		SessionID:    a.SessionID(),
		Answers:      answers,
		Status:       domain.StatusUngraded,
		Reason:       req.Reason,
		SubmittedAt:  c.now().UTC(),
	}
	if content.Assessment.AutoGradable {
		score := ScoreAnswers(content.Questions, answers)
		sub.AutoScore = &score
		sub.Status = domain.StatusGraded
	}

	if err := c.submissions.UpsertSubmission(ctx, sub); err != nil {
		return c.fail(a, log, req, fmt.Errorf("upsert submission: %w", err))
	}
	if err := c.sessions.SetScore(ctx, sub.SessionID, sub.AutoScore); err != nil {
		return c.fail(a, log, req, fmt.Errorf("update session score: %w", err))
	}

	a.completeSubmit(sub)
	c.metrics.SubmissionRecorded(req.Reason, sub.Status, c.now().Sub(started))
	log.Info("submission stored",
		zap.String("assessment_id", sub.AssessmentID),
		zap.Int("answered", len(answers)),
		zap.Int("total", len(content.Questions)),
		zap.String("status", string(sub.Status)))

	if err := c.publisher.PublishSubmission(context.WithoutCancel(ctx), sub); err != nil {
		log.Warn("publish submission event", zap.Error(err))
	}
	return sub, nil
}

func (c *SubmissionCoordinator) fail(a *Attempt, log *zap.Logger, req SubmitRequest, err error) (domain.Submission, error) {
	log.Error("submission write failed", zap.Error(err))
	c.metrics.SubmissionFailed(req.Reason)
	a.abortSubmit("saving your submission failed; your answers are kept, please retry")
	return domain.Submission{}, err
}

// resolveIDs prefers ids cached on the attempt and the authenticated
// identity, falling back to the session row.
func (c *SubmissionCoordinator) resolveIDs(ctx context.Context, a *Attempt) (string, string, error) {
	assessmentID := a.AssessmentID()
	userID, _ := c.identity.CurrentUserID(ctx)
	if userID == "" {
		userID = a.UserID()
	}
	if assessmentID != "" && userID != "" {
		return assessmentID, userID, nil
	}

	session, err := c.sessions.GetSession(ctx, a.SessionID())
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return "", "", fmt.Errorf("%w: %v", domain.ErrMissingIdentifier, err)
	}
	if assessmentID == "" {
		assessmentID = session.AssessmentID
	}
	if userID == "" {
		userID = session.UserID
	}
	if assessmentID == "" || userID == "" {
		return "", "", domain.ErrMissingIdentifier
	}
	return assessmentID, userID, nil
}
