package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"assessment-service/internal/domain"
)

// Store is an in-memory backing store implementing the app repositories.
// It backs demo mode and tests.
type Store struct {
	mu          sync.RWMutex
	content     map[string]domain.Content
	sessions    map[string]domain.Session
	answers     map[string]map[string]domain.Answer
	submissions map[string]domain.Submission
}

func NewStore() *Store {
	return &Store{
		content:     make(map[string]domain.Content),
		sessions:    make(map[string]domain.Session),
		answers:     make(map[string]map[string]domain.Answer),
		submissions: make(map[string]domain.Submission),
	}
}

// PutContent stores an assessment and its questions.
func (s *Store) PutContent(c domain.Content) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content[c.Assessment.ID] = c
}

// PutSession stores or replaces a session row.
func (s *Store) PutSession(session domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
}

func (s *Store) LoadContent(_ context.Context, assessmentID string) (domain.Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.content[assessmentID]
	if !ok {
		return domain.Content{}, domain.ErrAssessmentNotFound
	}
	questions := append([]domain.Question(nil), c.Questions...)
	sort.SliceStable(questions, func(i, j int) bool { return questions[i].Position < questions[j].Position })
	c.Questions = questions
	return c, nil
}

func (s *Store) GetSession(_ context.Context, sessionID string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *Store) SetStartedAt(_ context.Context, sessionID string, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.StartedAt = &startedAt
	s.sessions[sessionID] = session
	return nil
}

func (s *Store) SetScore(_ context.Context, sessionID string, score *int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if score != nil {
		v := *score
		score = &v
	}
	session.Score = score
	s.sessions[sessionID] = session
	return nil
}

func (s *Store) ListAnswers(_ context.Context, sessionID string) ([]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Answer, 0, len(s.answers[sessionID]))
	for _, a := range s.answers[sessionID] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

func (s *Store) SaveAnswer(_ context.Context, answer domain.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bySession, ok := s.answers[answer.SessionID]
	if !ok {
		bySession = make(map[string]domain.Answer)
		s.answers[answer.SessionID] = bySession
	}
	if !answer.Value.IsSet() {
		delete(bySession, answer.QuestionID)
		return nil
	}
	bySession[answer.QuestionID] = answer
	return nil
}

// UpsertSubmission replaces any submission with the same session id,
// keeping the id of the first row.
func (s *Store) UpsertSubmission(_ context.Context, sub domain.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.submissions[sub.SessionID]; ok {
		sub.ID = existing.ID
	}
	answers := make(map[string]domain.AnswerValue, len(sub.Answers))
	for k, v := range sub.Answers {
		answers[k] = v
	}
	sub.Answers = answers
	s.submissions[sub.SessionID] = sub
	return nil
}

func (s *Store) GetSubmission(_ context.Context, sessionID string) (domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[sessionID]
	if !ok {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	return sub, nil
}

// SubmissionCount returns the number of stored submissions.
func (s *Store) SubmissionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.submissions)
}
