package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when no session row exists for an id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrAssessmentNotFound indicates the assessment content could not be loaded.
	ErrAssessmentNotFound = errors.New("assessment not found")
	// ErrQuestionNotFound indicates an answer referenced an unknown question.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidChoice indicates a choice outside the question's choice list.
	ErrInvalidChoice = errors.New("choice out of range")
	// ErrInvalidContent marks assessment content that cannot be served or scored.
	ErrInvalidContent = errors.New("invalid assessment content")
	// ErrSubmissionNotFound is returned when a session has not been submitted.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrForbidden is returned when a session is opened by a user other than its owner.
	ErrForbidden = errors.New("session belongs to another user")
	// ErrMissingIdentifier means the assessment or user id could not be resolved.
	ErrMissingIdentifier = errors.New("missing assessment or user identifier")
	// ErrUnansweredQuestions asks the caller to confirm a submission with gaps.
	ErrUnansweredQuestions = errors.New("some questions are unanswered")
	// ErrAlreadySubmitted rejects changes to a session whose submission is stored.
	ErrAlreadySubmitted = errors.New("session already submitted")
	// ErrSubmissionInProgress is returned to a second concurrent submit.
	ErrSubmissionInProgress = errors.New("submission in progress")
	// ErrSessionNotOpen is returned for sessions without a live attempt.
	ErrSessionNotOpen = errors.New("session is not open")
	// ErrSessionLocked rejects edits while submitting or after submission.
	ErrSessionLocked = errors.New("session no longer accepts answers")
)

// UnansweredError carries the counts behind ErrUnansweredQuestions.
type UnansweredError struct {
	Answered int
	Total    int
}

func (e *UnansweredError) Error() string {
	return fmt.Sprintf("%d of %d questions are unanswered", e.Total-e.Answered, e.Total)
}

func (e *UnansweredError) Unwrap() error {
	return ErrUnansweredQuestions
}
