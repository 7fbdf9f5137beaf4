package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"assessment-service/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestEventPublisherPublishesSubmission(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	client := newClient(mr)
	sub := client.Subscribe(ctx, SubmissionChannel("a1"))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	score := 1
	publisher := NewEventPublisher(client)
	err = publisher.PublishSubmission(ctx, domain.Submission{
		ID:           "sub-1",
		AssessmentID: "a1",
		UserID:       "u1",
		SessionID:    "s1",
		Answers:      map[string]domain.AnswerValue{"q1": domain.ChoiceAnswer(1), "q2": domain.TextAnswer("ok")},
		AutoScore:    &score,
		Status:       domain.StatusGraded,
		Reason:       domain.ReasonTimeout,
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var got domain.Submission
		if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.SessionID != "s1" || got.Reason != domain.ReasonTimeout || *got.Answers["q1"].Choice != 1 || *got.Answers["q2"].Text != "ok" {
			t.Fatalf("unexpected payload %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no submission event received")
	}
}
