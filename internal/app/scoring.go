package app

import "assessment-service/internal/domain"

// ScoreAnswers counts answers whose numeric choice equals the question's
// correct choice. Text answers and questions without a key never score.
func ScoreAnswers(questions []domain.Question, answers map[string]domain.AnswerValue) int {
	score := 0
	for _, q := range questions {
		if q.CorrectChoice == nil {
			continue
		}
		v, ok := answers[q.ID]
		if !ok || v.Choice == nil {
			continue
		}
		if *v.Choice == *q.CorrectChoice {
			score++
		}
	}
	return score
}

// validateAnswer checks a value against the question's choice list.
func validateAnswer(q domain.Question, value domain.AnswerValue) error {
	if value.Choice == nil {
		return nil
	}
	if *value.Choice < 1 || *value.Choice > q.ChoiceLimit() {
		return domain.ErrInvalidChoice
	}
	return nil
}
