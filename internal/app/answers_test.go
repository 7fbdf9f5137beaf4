package app

import (
	"testing"

	"assessment-service/internal/domain"
)

func TestAnswerStorePendingThenConfirmed(t *testing.T) {
	s := NewAnswerStore()
	s.Record("q1", domain.ChoiceAnswer(2))

	if got := s.Pending(); len(got) != 1 || got[0] != "q1" {
		t.Fatalf("expected q1 pending, got %v", got)
	}
	if v := s.Value("q1"); v.Choice == nil || *v.Choice != 2 {
		t.Fatalf("expected pending value visible, got %v", v)
	}
	if s.Confirmed("q1").IsSet() {
		t.Fatalf("expected nothing confirmed yet")
	}

	s.Confirm("q1", domain.ChoiceAnswer(2))
	if len(s.Pending()) != 0 {
		t.Fatalf("expected no pending after confirm")
	}
	if v := s.Confirmed("q1"); v.Choice == nil || *v.Choice != 2 {
		t.Fatalf("expected confirmed 2, got %v", v)
	}
}

func TestAnswerStoreRollbackRestoresConfirmed(t *testing.T) {
	s := NewAnswerStore()
	s.Load([]domain.Answer{{SessionID: "s1", QuestionID: "q1", Value: domain.ChoiceAnswer(1)}})

	s.Record("q1", domain.ChoiceAnswer(4))
	s.Rollback("q1", domain.ChoiceAnswer(4))

	if v := s.Value("q1"); v.Choice == nil || *v.Choice != 1 {
		t.Fatalf("expected rollback to confirmed 1, got %v", v)
	}
}

func TestAnswerStoreIgnoresStaleConfirmation(t *testing.T) {
	s := NewAnswerStore()
	s.Record("q1", domain.ChoiceAnswer(1))
	s.Record("q1", domain.ChoiceAnswer(3))

	s.Confirm("q1", domain.ChoiceAnswer(1))
	if got := s.Pending(); len(got) != 1 {
		t.Fatalf("newer pending value must survive a stale confirm, got %v", got)
	}
	s.Rollback("q1", domain.ChoiceAnswer(1))
	if v := s.Value("q1"); *v.Choice != 3 {
		t.Fatalf("newer pending value must survive a stale rollback, got %v", v)
	}
}

func TestAnswerStoreSnapshotExcludesUnset(t *testing.T) {
	s := NewAnswerStore()
	s.Record("q1", domain.ChoiceAnswer(1))
	s.Record("q2", domain.TextAnswer("free text"))
	s.Record("q3", domain.AnswerValue{})

	snap := s.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 answers, got %v", snap)
	}
	if _, ok := snap["q3"]; ok {
		t.Fatalf("unset answer must be excluded")
	}
}
