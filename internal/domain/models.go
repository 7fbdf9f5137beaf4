package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// SessionState is the client-visible lifecycle of one assessment attempt.
type SessionState string

const (
	StateLoading    SessionState = "loading"
	StateInProgress SessionState = "in_progress"
	StateSubmitting SessionState = "submitting"
	StateSubmitted  SessionState = "submitted"
)

// SubmissionStatus tells whether a submission already carries a final score.
type SubmissionStatus string

const (
	StatusUngraded SubmissionStatus = "ungraded"
	StatusGraded   SubmissionStatus = "graded"
)

// SubmitReason distinguishes user initiated submissions from deadline forced ones.
type SubmitReason string

const (
	ReasonManual  SubmitReason = "manual"
	ReasonTimeout SubmitReason = "timeout"
)

// Session identifies one user's attempt at an assessment.
type Session struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	AssessmentID string     `json:"assessmentId"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	Score        *int       `json:"score,omitempty"`
}

// Assessment is the parent of a set of questions.
type Assessment struct {
	ID           string        `json:"id" yaml:"id"`
	Title        string        `json:"title" yaml:"title"`
	Kind         string        `json:"kind" yaml:"kind"`
	AutoGradable bool          `json:"autoGradable" yaml:"autoGradable"`
	Duration     time.Duration `json:"duration,omitempty" yaml:"duration"`
}

// Question is static content; CorrectChoice is 1-based when set.
type Question struct {
	ID            string   `json:"id" yaml:"id"`
	Prompt        string   `json:"prompt" yaml:"prompt"`
	Choices       []string `json:"choices,omitempty" yaml:"choices"`
	CorrectChoice *int     `json:"correctChoice,omitempty" yaml:"correctChoice"`
	Position      int      `json:"position" yaml:"position"`
}

// Content bundles an assessment with its ordered questions.
type Content struct {
	Assessment Assessment `json:"assessment" yaml:"assessment"`
	Questions  []Question `json:"questions" yaml:"questions"`
}

// AnswerValue is a raw response: either a numeric choice or free text.
type AnswerValue struct {
	Choice *int
	Text   *string
}

// ChoiceAnswer builds a numeric answer.
func ChoiceAnswer(choice int) AnswerValue {
	return AnswerValue{Choice: &choice}
}

// TextAnswer builds a free text answer.
func TextAnswer(text string) AnswerValue {
	return AnswerValue{Text: &text}
}

// IsSet reports whether the value holds a response.
func (v AnswerValue) IsSet() bool {
	return v.Choice != nil || v.Text != nil
}

// Equal compares two values strictly: a choice never equals a text.
func (v AnswerValue) Equal(o AnswerValue) bool {
	switch {
	case v.Choice != nil && o.Choice != nil:
		return *v.Choice == *o.Choice
	case v.Text != nil && o.Text != nil:
		return *v.Text == *o.Text
	default:
		return !v.IsSet() && !o.IsSet()
	}
}

func (v AnswerValue) String() string {
	switch {
	case v.Choice != nil:
		return strconv.Itoa(*v.Choice)
	case v.Text != nil:
		return *v.Text
	default:
		return ""
	}
}

func (v AnswerValue) MarshalJSON() ([]byte, error) {
	switch {
	case v.Choice != nil:
		return json.Marshal(*v.Choice)
	case v.Text != nil:
		return json.Marshal(*v.Text)
	default:
		return []byte("null"), nil
	}
}

func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*v = AnswerValue{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v.Text = &s
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("answer must be an integer choice or a string")
	}
	v.Choice = &n
	return nil
}

// Answer joins a session and a question.
type Answer struct {
	SessionID  string      `json:"sessionId"`
	QuestionID string      `json:"questionId"`
	Value      AnswerValue `json:"value"`
}

// Submission is the single consolidated result record of a session.
type Submission struct {
	ID           string                 `json:"id"`
	AssessmentID string                 `json:"assessmentId"`
	UserID       string                 `json:"userId"`
	SessionID    string                 `json:"sessionId"`
	Answers      map[string]AnswerValue `json:"answers"`
	AutoScore    *int                   `json:"autoScore,omitempty"`
	Status       SubmissionStatus       `json:"status"`
	Reason       SubmitReason           `json:"reason"`
	SubmittedAt  time.Time              `json:"submittedAt"`
}

// Snapshot is a read-only view of an attempt handed to clients.
type Snapshot struct {
	SessionID    string                 `json:"sessionId"`
	AssessmentID string                 `json:"assessmentId"`
	State        SessionState           `json:"state"`
	Index        int                    `json:"index"`
	Total        int                    `json:"total"`
	QuestionID   string                 `json:"questionId,omitempty"`
	Answers      map[string]AnswerValue `json:"answers"`
	Pending      []string               `json:"pending,omitempty"`
	Answered     int                    `json:"answered"`
	Deadline     time.Time              `json:"deadline"`
	Remaining    int                    `json:"remaining"`
}

// EventType names the kind of event pushed to attempt subscribers.
type EventType string

const (
	EventTick      EventType = "tick"
	EventState     EventType = "state"
	EventSubmitted EventType = "submitted"
	EventNotice    EventType = "notice"
)

// Event is pushed to subscribers of an attempt.
type Event struct {
	Type       EventType    `json:"type"`
	Remaining  int          `json:"remaining,omitempty"`
	State      SessionState `json:"state,omitempty"`
	Submission *Submission  `json:"submission,omitempty"`
	Message    string       `json:"message,omitempty"`
}
