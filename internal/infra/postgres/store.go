package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"assessment-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Store implements the app repositories on top of a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// LoadContent loads an assessment and its questions ordered by position.
func (s *Store) LoadContent(ctx context.Context, assessmentID string) (domain.Content, error) {
	var (
		content  domain.Content
		duration int
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, kind, auto_gradable, duration_seconds FROM assessments WHERE id=$1`, assessmentID,
	).Scan(&content.Assessment.ID, &content.Assessment.Title, &content.Assessment.Kind, &content.Assessment.AutoGradable, &duration)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Content{}, domain.ErrAssessmentNotFound
	}
	if err != nil {
		return domain.Content{}, fmt.Errorf("load assessment: %w", err)
	}
	content.Assessment.Duration = time.Duration(duration) * time.Second

	rows, err := s.pool.Query(ctx,
		`SELECT id, prompt, choices, correct_choice, position FROM questions WHERE assessment_id=$1 ORDER BY position, id`, assessmentID)
	if err != nil {
		return domain.Content{}, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			q       domain.Question
			choices []byte
		)
		if err := rows.Scan(&q.ID, &q.Prompt, &choices, &q.CorrectChoice, &q.Position); err != nil {
			return domain.Content{}, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(choices, &q.Choices); err != nil {
			return domain.Content{}, fmt.Errorf("unmarshal choices: %w", err)
		}
		content.Questions = append(content.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return domain.Content{}, fmt.Errorf("load questions: %w", err)
	}
	return content, nil
}

// PutContent inserts or replaces an assessment and its questions.
func (s *Store) PutContent(ctx context.Context, content domain.Content) error {
	return s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		a := content.Assessment
		if _, err := tx.Exec(ctx, `
			INSERT INTO assessments (id, title, kind, auto_gradable, duration_seconds)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, kind=EXCLUDED.kind,
				auto_gradable=EXCLUDED.auto_gradable, duration_seconds=EXCLUDED.duration_seconds`,
			a.ID, a.Title, a.Kind, a.AutoGradable, int(a.Duration/time.Second)); err != nil {
			return fmt.Errorf("upsert assessment: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE assessment_id=$1`, a.ID); err != nil {
			return fmt.Errorf("clear questions: %w", err)
		}
		for _, q := range content.Questions {
			choices := q.Choices
			if choices == nil {
				choices = []string{}
			}
			data, err := json.Marshal(choices)
			if err != nil {
				return fmt.Errorf("marshal choices: %w", err)
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO questions (id, assessment_id, position, prompt, choices, correct_choice)
				VALUES ($1, $2, $3, $4, $5::jsonb, $6)`,
				q.ID, a.ID, q.Position, q.Prompt, string(data), q.CorrectChoice); err != nil {
				return fmt.Errorf("insert question %s: %w", q.ID, err)
			}
		}
		return nil
	})
}

// CreateSession inserts a session row that has not been started yet.
func (s *Store) CreateSession(ctx context.Context, session domain.Session) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (id, user_id, assessment_id, started_at, score) VALUES ($1, $2, $3, $4, $5)`,
		session.ID, session.UserID, session.AssessmentID, session.StartedAt, session.Score)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	session := domain.Session{ID: sessionID}
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, assessment_id, started_at, score FROM sessions WHERE id=$1`, sessionID,
	).Scan(&session.UserID, &session.AssessmentID, &session.StartedAt, &session.Score)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

func (s *Store) SetStartedAt(ctx context.Context, sessionID string, startedAt time.Time) error {
	return s.updateSession(ctx, `UPDATE sessions SET started_at=$2 WHERE id=$1`, sessionID, startedAt)
}

func (s *Store) SetScore(ctx context.Context, sessionID string, score *int) error {
	return s.updateSession(ctx, `UPDATE sessions SET score=$2 WHERE id=$1`, sessionID, score)
}

func (s *Store) updateSession(ctx context.Context, sql, sessionID string, value interface{}) error {
	tag, err := s.pool.Exec(ctx, sql, sessionID, value)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *Store) ListAnswers(ctx context.Context, sessionID string) ([]domain.Answer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT question_id, value FROM answers WHERE session_id=$1 ORDER BY question_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	var answers []domain.Answer
	for rows.Next() {
		var (
			a   = domain.Answer{SessionID: sessionID}
			raw []byte
		)
		if err := rows.Scan(&a.QuestionID, &raw); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		if err := json.Unmarshal(raw, &a.Value); err != nil {
			return nil, fmt.Errorf("unmarshal answer: %w", err)
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// SaveAnswer upserts one answer row; an unset value deletes it.
func (s *Store) SaveAnswer(ctx context.Context, answer domain.Answer) error {
	if !answer.Value.IsSet() {
		_, err := s.pool.Exec(ctx, `DELETE FROM answers WHERE session_id=$1 AND question_id=$2`, answer.SessionID, answer.QuestionID)
		if err != nil {
			return fmt.Errorf("clear answer: %w", err)
		}
		return nil
	}
	data, err := json.Marshal(answer.Value)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO answers (session_id, question_id, value, updated_at)
		VALUES ($1, $2, $3::jsonb, now())
		ON CONFLICT (session_id, question_id) DO UPDATE SET value=EXCLUDED.value, updated_at=EXCLUDED.updated_at`,
		answer.SessionID, answer.QuestionID, string(data))
	if err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

// UpsertSubmission writes the submission keyed by session id. The id of the
// first row is kept on conflict.
func (s *Store) UpsertSubmission(ctx context.Context, sub domain.Submission) error {
	answers := sub.Answers
	if answers == nil {
		answers = map[string]domain.AnswerValue{}
	}
	data, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO submissions (id, session_id, assessment_id, user_id, answers, auto_score, status, reason, submitted_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, $9)
		ON CONFLICT (session_id) DO UPDATE SET
			assessment_id=EXCLUDED.assessment_id, user_id=EXCLUDED.user_id, answers=EXCLUDED.answers,
			auto_score=EXCLUDED.auto_score, status=EXCLUDED.status, reason=EXCLUDED.reason,
			submitted_at=EXCLUDED.submitted_at`,
		sub.ID, sub.SessionID, sub.AssessmentID, sub.UserID, string(data), sub.AutoScore,
		string(sub.Status), string(sub.Reason), sub.SubmittedAt)
	if err != nil {
		return fmt.Errorf("upsert submission: %w", err)
	}
	return nil
}

func (s *Store) GetSubmission(ctx context.Context, sessionID string) (domain.Submission, error) {
	var (
		sub    = domain.Submission{SessionID: sessionID}
		raw    []byte
		status string
		reason string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, assessment_id, user_id, answers, auto_score, status, reason, submitted_at
		FROM submissions WHERE session_id=$1`, sessionID,
	).Scan(&sub.ID, &sub.AssessmentID, &sub.UserID, &raw, &sub.AutoScore, &status, &reason, &sub.SubmittedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	if err != nil {
		return domain.Submission{}, fmt.Errorf("get submission: %w", err)
	}
	if err := json.Unmarshal(raw, &sub.Answers); err != nil {
		return domain.Submission{}, fmt.Errorf("unmarshal submission answers: %w", err)
	}
	sub.Status = domain.SubmissionStatus(status)
	sub.Reason = domain.SubmitReason(reason)
	return sub, nil
}

// CountSubmissions returns how many submission rows exist for a session.
func (s *Store) CountSubmissions(ctx context.Context, sessionID string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM submissions WHERE session_id=$1`, sessionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return n, nil
}
