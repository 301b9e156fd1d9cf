// Package exam grades submitted answers against stored questions.
package exam

import (
	"context"
	"errors"

	"github.com/ihkcoach/ihkcoach/internal/i18n"
	"github.com/ihkcoach/ihkcoach/internal/model"
)

// ErrInvalidQuestion is returned when no question is supplied.
// Looking the question up is the caller's job.
var ErrInvalidQuestion = errors.New("invalid question")

// Evaluate checks a submitted answer index against the question's
// correct answer and produces localized feedback. An out-of-range
// index can never equal the stored index, so it simply grades as
// incorrect. On a miss the feedback discloses the correct option
// text verbatim; that disclosure is intentional formative feedback.
func Evaluate(ctx context.Context, q *model.Question, answerIndex int) (model.EvaluationResult, error) {
	if q == nil {
		return model.EvaluationResult{}, ErrInvalidQuestion
	}

	if answerIndex == q.CorrectAnswer {
		return model.EvaluationResult{
			Correct:  true,
			Feedback: i18n.T(ctx, "FeedbackCorrect"),
		}, nil
	}

	return model.EvaluationResult{
		Correct: false,
		Feedback: i18n.Td(ctx, "FeedbackIncorrect", map[string]any{
			"Answer": q.Options[q.CorrectAnswer],
		}),
	}, nil
}
