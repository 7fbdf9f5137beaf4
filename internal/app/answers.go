package app

import (
	"sort"

	"assessment-service/internal/domain"
)

// AnswerStore holds per-question responses in two phases: a pending value
// recorded locally and the last value confirmed by the backing store.
// It is not safe for concurrent use; Attempt guards it.
type AnswerStore struct {
	entries map[string]*answerEntry
}

type answerEntry struct {
	confirmed  domain.AnswerValue
	pending    domain.AnswerValue
	hasPending bool
}

func NewAnswerStore() *AnswerStore {
	return &AnswerStore{entries: make(map[string]*answerEntry)}
}

// Load seeds confirmed values, typically from saved answer rows.
func (s *AnswerStore) Load(answers []domain.Answer) {
	for _, a := range answers {
		s.entry(a.QuestionID).confirmed = a.Value
	}
}

// Record sets a pending value. An unset value clears the answer once confirmed.
func (s *AnswerStore) Record(questionID string, value domain.AnswerValue) {
	e := s.entry(questionID)
	e.pending = value
	e.hasPending = true
}

// Confirm promotes the pending value if it still equals value. A newer
// pending value recorded meanwhile is left untouched.
func (s *AnswerStore) Confirm(questionID string, value domain.AnswerValue) {
	e, ok := s.entries[questionID]
	if !ok || !e.hasPending || !e.pending.Equal(value) {
		return
	}
	e.confirmed = value
	e.pending = domain.AnswerValue{}
	e.hasPending = false
}

// Rollback drops the pending value if it still equals value.
func (s *AnswerStore) Rollback(questionID string, value domain.AnswerValue) {
	e, ok := s.entries[questionID]
	if !ok || !e.hasPending || !e.pending.Equal(value) {
		return
	}
	e.pending = domain.AnswerValue{}
	e.hasPending = false
}

// Value returns the effective value: pending if any, else confirmed.
func (s *AnswerStore) Value(questionID string) domain.AnswerValue {
	e, ok := s.entries[questionID]
	if !ok {
		return domain.AnswerValue{}
	}
	if e.hasPending {
		return e.pending
	}
	return e.confirmed
}

// Confirmed returns the last persisted value.
func (s *AnswerStore) Confirmed(questionID string) domain.AnswerValue {
	if e, ok := s.entries[questionID]; ok {
		return e.confirmed
	}
	return domain.AnswerValue{}
}

// Snapshot returns effective values, excluding unset entries.
func (s *AnswerStore) Snapshot() map[string]domain.AnswerValue {
	out := make(map[string]domain.AnswerValue, len(s.entries))
	for id := range s.entries {
		if v := s.Value(id); v.IsSet() {
			out[id] = v
		}
	}
	return out
}

// Pending lists question ids whose latest value is not yet confirmed.
func (s *AnswerStore) Pending() []string {
	var ids []string
	for id, e := range s.entries {
		if e.hasPending {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (s *AnswerStore) entry(questionID string) *answerEntry {
	e, ok := s.entries[questionID]
	if !ok {
		e = &answerEntry{}
		s.entries[questionID] = e
	}
	return e
}
