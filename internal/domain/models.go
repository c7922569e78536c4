package domain

import "time"

// Attempt is the client-held record of one user's progress through one quiz.
type Attempt struct {
	UserID    string
	QuizID    string
	WebinarID string

	Started     bool
	Submitted   bool
	TimeExpired bool

	CurrentQuestionIndex int
	Answers              map[string]string // questionID -> selected option text

	StartedAt    time.Time
	ExpiresAt    time.Time
	SubmittedAt  *time.Time
	SubmissionID string
	// SendClaimed is set once a runner has taken responsibility for sending the submission.
	SendClaimed bool
}

// Clone returns a deep copy so callers cannot mutate store-owned state.
func (a Attempt) Clone() Attempt {
	out := a
	out.Answers = make(map[string]string, len(a.Answers))
	for k, v := range a.Answers {
		out.Answers[k] = v
	}
	if a.SubmittedAt != nil {
		ts := *a.SubmittedAt
		out.SubmittedAt = &ts
	}
	return out
}

// AttemptKey builds the composite key under which an attempt is persisted.
func AttemptKey(userID, quizID string) string {
	return userID + "_" + quizID
}

// Question models a single-choice question; options are matched by text.
type Question struct {
	ID            string   `json:"id"`
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer,omitempty"`
}

// HasOption reports whether option is one of the question's choices.
func (q Question) HasOption(option string) bool {
	for _, o := range q.Options {
		if o == option {
			return true
		}
	}
	return false
}

// Quiz is an ordered collection of questions with a fixed time allowance.
type Quiz struct {
	ID        string        `json:"id"`
	Questions []Question    `json:"questions"`
	Duration  time.Duration `json:"duration"`
}

// AnswerSubmission is one answered question in a submission payload.
type AnswerSubmission struct {
	QuestionID     string `json:"questionId"`
	SelectedOption string `json:"selectedOption"`
}

// Submission is the fixed answer set sent to the grading endpoint.
type Submission struct {
	ID        string
	UserID    string
	WebinarID string
	QuizID    string
	Answers   []AnswerSubmission
}

// ResultItem is the graded outcome for one question.
type ResultItem struct {
	QuestionID     string `json:"questionId"`
	QuestionName   string `json:"questionName"`
	SelectedOption string `json:"selectedOption"`
	CorrectAnswer  string `json:"correctAnswer"`
	IsCorrect      bool   `json:"isCorrect"`
}

// QuizResult is the graded result returned by the result endpoint.
type QuizResult struct {
	QuizID          string       `json:"quizId"`
	TotalQuestions  int          `json:"totalQuestions"`
	CorrectAnswers  int          `json:"correctAnswers"`
	ScorePercentage float64      `json:"scorePercentage"`
	Items           []ResultItem `json:"result"`
}

// Phase is the runner-visible lifecycle state of an attempt.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseInProgress Phase = "in_progress"
	PhaseSubmitted  Phase = "submitted"
)

// RunnerView is a snapshot of everything needed to render the active question.
type RunnerView struct {
	QuizID           string   `json:"quizId"`
	Phase            Phase    `json:"phase"`
	QuestionNumber   int      `json:"questionNumber"`
	TotalQuestions   int      `json:"totalQuestions"`
	QuestionID       string   `json:"questionId,omitempty"`
	Prompt           string   `json:"prompt,omitempty"`
	Options          []string `json:"options,omitempty"`
	Selected         string   `json:"selected,omitempty"`
	IsLast           bool     `json:"isLast"`
	RemainingSeconds int      `json:"remainingSeconds"`
	Clock            string   `json:"clock"`
	Urgency          string   `json:"urgency"`
	TimeExpired      bool     `json:"timeExpired"`
	Submitting       bool     `json:"submitting"`
	SubmitError      string   `json:"submitError,omitempty"`
	CanRetry         bool     `json:"canRetry"`
}

// NoticeLevel classifies user-visible transient messages.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

// Notice is a transient message for the user (toast equivalent).
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// OptionMark classifies an option in a graded review.
type OptionMark string

const (
	MarkNeither       OptionMark = "neither"
	MarkYourChoice    OptionMark = "your_choice"
	MarkCorrectAnswer OptionMark = "correct_answer"
	MarkBoth          OptionMark = "both"
)

// ReviewOption is one option of a reviewed question.
type ReviewOption struct {
	Text string     `json:"text"`
	Mark OptionMark `json:"mark"`
}

// ReviewQuestion joins a graded item with its original option list.
type ReviewQuestion struct {
	Number         int            `json:"number"`
	QuestionID     string         `json:"questionId"`
	QuestionName   string         `json:"questionName"`
	SelectedOption string         `json:"selectedOption"`
	CorrectAnswer  string         `json:"correctAnswer"`
	IsCorrect      bool           `json:"isCorrect"`
	Options        []ReviewOption `json:"options"`
}

// Review is the read-only presentation of a graded result.
type Review struct {
	QuizID          string           `json:"quizId"`
	Available       bool             `json:"available"`
	Message         string           `json:"message,omitempty"`
	TotalQuestions  int              `json:"totalQuestions"`
	CorrectAnswers  int              `json:"correctAnswers"`
	IncorrectCount  int              `json:"incorrectAnswers"`
	ScorePercentage float64          `json:"scorePercentage"`
	Passed          bool             `json:"passed"`
	Questions       []ReviewQuestion `json:"questions"`
}
