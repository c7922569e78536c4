package app

import (
	"context"

	"golang.org/x/sync/errgroup"
	"webinar-quiz-client/internal/domain"
)

// DefaultPassMark is the score percentage at or above which a result counts as passed.
const DefaultPassMark = 70.0

const resultNotAvailable = "Result not available yet."

// ResultSource fetches graded results. A nil result means grading is not available yet.
type ResultSource interface {
	FetchResult(ctx context.Context, quizID string) (*domain.QuizResult, error)
}

// Reviewer loads a graded result together with the question bank it refers to.
type Reviewer struct {
	results  ResultSource
	quizzes  QuizRepository
	passMark float64
}

func NewReviewer(results ResultSource, quizzes QuizRepository, passMark float64) *Reviewer {
	if passMark <= 0 {
		passMark = DefaultPassMark
	}
	return &Reviewer{results: results, quizzes: quizzes, passMark: passMark}
}

// Load fetches the result and the quiz bank concurrently. On failure the returned
// review is marked unavailable and the error is returned for the caller to report.
func (r *Reviewer) Load(ctx context.Context, quizID string) (domain.Review, error) {
	var (
		result *domain.QuizResult
		quiz   domain.Quiz
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := r.results.FetchResult(gctx, quizID)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	g.Go(func() error {
		q, err := r.quizzes.GetQuiz(gctx, quizID)
		if err != nil {
			return err
		}
		quiz = q
		return nil
	})
	if err := g.Wait(); err != nil {
		review := BuildReview(nil, nil, r.passMark)
		review.QuizID = quizID
		return review, err
	}

	review := BuildReview(result, quiz.Questions, r.passMark)
	review.QuizID = quizID
	return review, nil
}

// BuildReview joins each graded item to its question by ID and marks every option.
// Questions missing from the bank are reviewed without options.
func BuildReview(result *domain.QuizResult, bank []domain.Question, passMark float64) domain.Review {
	if result == nil {
		return domain.Review{Available: false, Message: resultNotAvailable, Questions: []domain.ReviewQuestion{}}
	}

	byID := make(map[string]domain.Question, len(bank))
	for _, q := range bank {
		byID[q.ID] = q
	}

	review := domain.Review{
		QuizID:          result.QuizID,
		Available:       true,
		TotalQuestions:  result.TotalQuestions,
		CorrectAnswers:  result.CorrectAnswers,
		IncorrectCount:  result.TotalQuestions - result.CorrectAnswers,
		ScorePercentage: result.ScorePercentage,
		Passed:          result.ScorePercentage >= passMark,
		Questions:       make([]domain.ReviewQuestion, 0, len(result.Items)),
	}
	if review.IncorrectCount < 0 {
		review.IncorrectCount = 0
	}

	for i, item := range result.Items {
		rq := domain.ReviewQuestion{
			Number:         i + 1,
			QuestionID:     item.QuestionID,
			QuestionName:   item.QuestionName,
			SelectedOption: item.SelectedOption,
			CorrectAnswer:  item.CorrectAnswer,
			IsCorrect:      item.IsCorrect,
			Options:        []domain.ReviewOption{},
		}
		if q, ok := byID[item.QuestionID]; ok {
			if rq.QuestionName == "" {
				rq.QuestionName = q.Prompt
			}
			for _, opt := range q.Options {
				rq.Options = append(rq.Options, domain.ReviewOption{Text: opt, Mark: markOption(opt, item)})
			}
		}
		review.Questions = append(review.Questions, rq)
	}
	return review
}

func markOption(option string, item domain.ResultItem) domain.OptionMark {
	selected := item.SelectedOption != "" && option == item.SelectedOption
	correct := option == item.CorrectAnswer
	switch {
	case selected && correct:
		return domain.MarkBoth
	case selected:
		return domain.MarkYourChoice
	case correct:
		return domain.MarkCorrectAnswer
	default:
		return domain.MarkNeither
	}
}
