package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"assessment-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// EventPublisher publishes submission results on a per-assessment channel:
// PUBLISH assessment:{assessmentID}:submissions {json}
type EventPublisher struct {
	client *redis.Client
}

func NewEventPublisher(client *redis.Client) *EventPublisher {
	return &EventPublisher{client: client}
}

func (p *EventPublisher) PublishSubmission(ctx context.Context, sub domain.Submission) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}
	if err := p.client.Publish(ctx, SubmissionChannel(sub.AssessmentID), data).Err(); err != nil {
		return fmt.Errorf("publish submission: %w", err)
	}
	return nil
}

// SubmissionChannel names the pub/sub channel for an assessment.
func SubmissionChannel(assessmentID string) string {
	return "assessment:" + assessmentID + ":submissions"
}
