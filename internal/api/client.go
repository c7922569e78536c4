package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"webinar-quiz-client/internal/domain"
)

var (
	// ErrServiceUnavailable wraps transport-level failures reaching the portal API.
	ErrServiceUnavailable = errors.New("quiz api unavailable")
	// ErrSessionExpired is returned for 401/403 responses.
	ErrSessionExpired = errors.New("session expired")
)

// APIError is a non-2xx response from the portal API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return e.Message
}

// Client talks to the portal REST API: quiz definitions, submissions and results.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient builds a client. A nil httpClient gets a client with the given timeout.
func NewClient(baseURL, token string, timeout time.Duration, httpClient *http.Client) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if httpClient == nil {
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: baseURL, token: strings.TrimSpace(token), httpClient: httpClient}
}

type envelope[T any] struct {
	Data    *T     `json:"data"`
	Message string `json:"message,omitempty"`
}

type quizQuestionPayload struct {
	ID            string   `json:"_id"`
	QuestionName  string   `json:"questionName"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer,omitempty"`
}

type quizPayload struct {
	ID            string                `json:"_id"`
	QuizQuestions []quizQuestionPayload `json:"quizQuestions"`
	QuizDuration  json.RawMessage       `json:"quizduration"`
}

type submitRequest struct {
	UserID  string                    `json:"userId"`
	Answers []domain.AnswerSubmission `json:"answers"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// LoadQuiz fetches a quiz definition; it satisfies memory.QuizLoader.
func (c *Client) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if strings.TrimSpace(quizID) == "" {
		return domain.Quiz{}, errors.New("quiz id is required")
	}

	var payload envelope[quizPayload]
	err := c.doJSON(ctx, http.MethodGet, "/api/quizzes/"+url.PathEscape(quizID), nil, nil, &payload)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return domain.Quiz{}, domain.ErrQuizNotFound
		}
		return domain.Quiz{}, err
	}
	if payload.Data == nil {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}

	duration, err := parseDurationSeconds(payload.Data.QuizDuration)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("quiz %s: %w", quizID, err)
	}
	quiz := domain.Quiz{
		ID:        payload.Data.ID,
		Questions: make([]domain.Question, 0, len(payload.Data.QuizQuestions)),
		Duration:  duration,
	}
	if quiz.ID == "" {
		quiz.ID = quizID
	}
	for _, q := range payload.Data.QuizQuestions {
		quiz.Questions = append(quiz.Questions, domain.Question{
			ID:            q.ID,
			Prompt:        q.QuestionName,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
		})
	}
	return quiz, nil
}

// GetQuiz lets the client serve as an uncached quiz repository.
func (c *Client) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return c.LoadQuiz(ctx, quizID)
}

// SubmitAnswers posts a finished attempt. The submission ID travels as an
// idempotency key so retries of the same attempt can be deduplicated upstream.
func (c *Client) SubmitAnswers(ctx context.Context, submission domain.Submission) error {
	answers := submission.Answers
	if answers == nil {
		answers = []domain.AnswerSubmission{}
	}
	path := "/api/webinars/" + url.PathEscape(submission.WebinarID) +
		"/quizzes/" + url.PathEscape(submission.QuizID) + "/submit"
	headers := http.Header{}
	if submission.ID != "" {
		headers.Set("Idempotency-Key", submission.ID)
	}
	return c.doJSON(ctx, http.MethodPost, path, headers, submitRequest{UserID: submission.UserID, Answers: answers}, nil)
}

// FetchResult returns the graded result, or nil when grading is not available yet.
func (c *Client) FetchResult(ctx context.Context, quizID string) (*domain.QuizResult, error) {
	var payload envelope[domain.QuizResult]
	err := c.doJSON(ctx, http.MethodGet, "/api/quizzes/"+url.PathEscape(quizID)+"/result", nil, nil, &payload)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	if payload.Data != nil && payload.Data.QuizID == "" {
		payload.Data.QuizID = quizID
	}
	return payload.Data, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, headers http.Header, requestBody any, responseBody any) error {
	var body io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	for key, values := range headers {
		for _, v := range values {
			request.Header.Add(key, v)
		}
	}
	request.Header.Set("Accept", "application/json")
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden {
		return ErrSessionExpired
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		apiErr := APIError{StatusCode: response.StatusCode}
		var payload errorResponse
		if err := json.NewDecoder(response.Body).Decode(&payload); err == nil {
			apiErr.Message = strings.TrimSpace(payload.Message)
			if apiErr.Message == "" {
				apiErr.Message = strings.TrimSpace(payload.Error)
			}
		}
		if apiErr.Message == "" {
			apiErr.Message = response.Status
		}
		return &apiErr
	}

	if responseBody == nil || response.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(response.Body).Decode(responseBody)
}

// parseDurationSeconds accepts the duration as a JSON number or numeric string.
func parseDurationSeconds(raw json.RawMessage) (time.Duration, error) {
	text := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if text == "" || text == "null" {
		return 0, errors.New("missing quiz duration")
	}
	seconds, err := strconv.ParseFloat(text, 64)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("invalid quiz duration %q", text)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}
