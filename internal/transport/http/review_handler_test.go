package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"webinar-quiz-client/internal/app"
	"webinar-quiz-client/internal/domain"
	"webinar-quiz-client/internal/infra/memory"
)

type stubResults struct {
	result *domain.QuizResult
	err    error
}

func (s stubResults) FetchResult(_ context.Context, _ string) (*domain.QuizResult, error) {
	return s.result, s.err
}

func TestReviewHandler(t *testing.T) {
	quizzes := memory.NewStaticQuizLoader(sampleQuiz())
	graded := &domain.QuizResult{
		QuizID: "quiz-1", TotalQuestions: 1, CorrectAnswers: 0, ScorePercentage: 0,
		Items: []domain.ResultItem{{QuestionID: "q1", SelectedOption: "5", CorrectAnswer: "4"}},
	}

	cases := []struct {
		name      string
		target    string
		results   stubResults
		status    int
		available bool
	}{
		{name: "graded", target: "/api/review?quizId=quiz-1", results: stubResults{result: graded}, status: http.StatusOK, available: true},
		{name: "pending", target: "/api/review?quizId=quiz-1", results: stubResults{}, status: http.StatusOK},
		{name: "upstream down", target: "/api/review?quizId=quiz-1", results: stubResults{err: errors.New("boom")}, status: http.StatusBadGateway},
		{name: "unknown quiz", target: "/api/review?quizId=nope", results: stubResults{}, status: http.StatusNotFound},
		{name: "missing id", target: "/api/review", status: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewReviewHandler(app.NewReviewer(tc.results, quizzes, 0))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.target, nil))

			if rec.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rec.Code)
			}
			if tc.status == http.StatusBadRequest {
				return
			}
			var review domain.Review
			if err := json.Unmarshal(rec.Body.Bytes(), &review); err != nil {
				t.Fatalf("decode review: %v", err)
			}
			if review.Available != tc.available {
				t.Fatalf("expected available=%v, got %+v", tc.available, review)
			}
			if tc.available {
				marks := review.Questions[0].Options
				if marks[1].Mark != domain.MarkCorrectAnswer || marks[2].Mark != domain.MarkYourChoice {
					t.Fatalf("unexpected option marks %+v", marks)
				}
			}
		})
	}
}
