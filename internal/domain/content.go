package domain

import "fmt"

// DefaultChoiceCount applies to questions that do not list their choices.
const DefaultChoiceCount = 4

// ChoiceLimit is the highest valid 1-based choice for q.
func (q Question) ChoiceLimit() int {
	if len(q.Choices) == 0 {
		return DefaultChoiceCount
	}
	return len(q.Choices)
}

// Validate checks that content can be served and scored: the assessment has
// an id, question ids are unique and every answer key is a valid choice.
func (c Content) Validate() error {
	if c.Assessment.ID == "" {
		return fmt.Errorf("%w: missing assessment id", ErrInvalidContent)
	}
	seen := make(map[string]struct{}, len(c.Questions))
	for _, q := range c.Questions {
		if q.ID == "" {
			return fmt.Errorf("%w: question without id in %s", ErrInvalidContent, c.Assessment.ID)
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("%w: duplicate question %s", ErrInvalidContent, q.ID)
		}
		seen[q.ID] = struct{}{}
		if q.CorrectChoice != nil && (*q.CorrectChoice < 1 || *q.CorrectChoice > q.ChoiceLimit()) {
			return fmt.Errorf("%w: question %s correct choice %d out of range", ErrInvalidContent, q.ID, *q.CorrectChoice)
		}
	}
	return nil
}
