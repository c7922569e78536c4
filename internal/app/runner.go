package app

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"webinar-quiz-client/internal/domain"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// Grader sends a finished attempt to the grading endpoint.
type Grader interface {
	SubmitAnswers(ctx context.Context, submission domain.Submission) error
}

// RunnerConfig wires a Runner to one (user, quiz) attempt.
type RunnerConfig struct {
	Store     *AttemptStore
	Quizzes   QuizRepository
	Grader    Grader
	UserID    string
	WebinarID string
	QuizID    string

	TickInterval time.Duration
	Now          func() time.Time
	// Notify receives user-visible transient messages.
	Notify func(domain.Notice)
	// OnChange is called after every tick and state change so views can refresh.
	OnChange func()
}

// Runner bridges user actions and countdown events to AttemptStore transitions and
// performs the single network submission of the attempt.
type Runner struct {
	cfg RunnerConfig

	mu         sync.Mutex
	quiz       *domain.Quiz
	started    bool
	captured   *domain.Submission
	submitting bool
	delivered  bool
	submitErr  error

	cancel    context.CancelFunc
	timerDone chan struct{}
	inflight  sync.WaitGroup
}

func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	return &Runner{cfg: cfg}
}

// Mount loads the quiz definition once.
func (r *Runner) Mount(ctx context.Context) error {
	quiz, err := r.cfg.Quizzes.GetQuiz(ctx, r.cfg.QuizID)
	if err != nil {
		return err
	}
	if len(quiz.Questions) == 0 {
		return domain.ErrQuizEmpty
	}

	r.mu.Lock()
	r.quiz = &quiz
	r.mu.Unlock()
	return nil
}

// Start begins or resumes the attempt and starts the countdown. Select, Next and
// Submit are rejected until it has run. A submitted attempt stays submitted and no
// countdown is started; if nobody has sent it yet, Start sends it.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.quiz == nil {
		r.mu.Unlock()
		return domain.ErrNotMounted
	}
	quiz := *r.quiz
	r.cfg.Store.StartQuiz(r.cfg.UserID, r.cfg.QuizID, r.cfg.WebinarID, quiz.Duration)
	attempt, ok := r.cfg.Store.GetAttempt(r.cfg.UserID, r.cfg.QuizID)
	if !ok {
		r.mu.Unlock()
		r.changed()
		return nil
	}
	r.started = true
	if attempt.Submitted {
		r.mu.Unlock()
		return r.finish(ctx, attempt.TimeExpired)
	}
	alreadyRunning := r.cancel != nil
	if !alreadyRunning {
		timerCtx, cancel := context.WithCancel(ctx)
		r.cancel = cancel
		r.timerDone = make(chan struct{})
		go r.runTimer(timerCtx, attempt.ExpiresAt, r.timerDone)
	}
	r.mu.Unlock()

	if !alreadyRunning {
		r.notify(domain.NoticeInfo, "Quiz started! Timer is running.")
	}
	r.changed()
	return nil
}

func (r *Runner) runTimer(ctx context.Context, expiresAt time.Time, done chan struct{}) {
	defer close(done)
	countdown := NewCountdown(expiresAt, r.cfg.Now)
	countdown.Run(ctx, r.cfg.TickInterval,
		func(int) { r.changed() },
		func() {
			// The submission outlives the countdown; Close must not cancel it.
			sendCtx := context.WithoutCancel(ctx)
			r.inflight.Add(1)
			go func() {
				defer r.inflight.Done()
				_ = r.finish(sendCtx, true)
			}()
		},
	)
}

// Select records option as the answer to the current question.
func (r *Runner) Select(option string) error {
	r.mu.Lock()
	attempt, question, err := r.openQuestionLocked()
	if err == nil && !question.HasOption(option) {
		err = domain.ErrOptionNotFound
	}
	if err == nil {
		r.cfg.Store.AnswerQuestion(attempt.UserID, attempt.QuizID, question.ID, option)
	}
	r.mu.Unlock()

	if err != nil {
		return err
	}
	r.changed()
	return nil
}

// Next advances to the following question, or submits on the last one.
func (r *Runner) Next(ctx context.Context) error {
	r.mu.Lock()
	attempt, _, err := r.openQuestionLocked()
	if err != nil {
		r.mu.Unlock()
		return err
	}
	if attempt.CurrentQuestionIndex >= len(r.quiz.Questions)-1 {
		r.mu.Unlock()
		return r.Submit(ctx)
	}
	r.cfg.Store.NextQuestion(attempt.UserID, attempt.QuizID)
	r.mu.Unlock()

	r.changed()
	return nil
}

// Submit finishes the attempt explicitly. If the deadline has already passed the
// attempt is recorded as expired instead.
func (r *Runner) Submit(ctx context.Context) error {
	r.mu.Lock()
	if r.quiz == nil {
		r.mu.Unlock()
		return domain.ErrNotMounted
	}
	if !r.started {
		r.mu.Unlock()
		return domain.ErrNotStarted
	}
	expired := r.cfg.Store.HasTimeExpired(r.cfg.UserID, r.cfg.QuizID)
	r.mu.Unlock()
	return r.finish(ctx, expired)
}

// finish applies the terminal transition and sends the captured answers once.
// The store's send claim decides who sends, so a submit click racing the
// countdown, a second runner on the same store, or a lazily expired attempt all
// end in a single network call.
func (r *Runner) finish(ctx context.Context, expired bool) error {
	r.mu.Lock()
	if r.quiz == nil {
		r.mu.Unlock()
		return domain.ErrNotMounted
	}
	if r.captured != nil {
		r.mu.Unlock()
		return nil
	}

	if expired {
		r.cfg.Store.ExpireQuiz(r.cfg.UserID, r.cfg.QuizID)
	} else {
		r.cfg.Store.SubmitQuiz(r.cfg.UserID, r.cfg.QuizID)
	}
	attempt, claimed := r.cfg.Store.ClaimSend(r.cfg.UserID, r.cfg.QuizID)
	if !claimed {
		r.mu.Unlock()
		r.changed()
		return nil
	}
	submission := buildSubmission(attempt, *r.quiz)
	r.captured = &submission
	r.submitting = true
	r.submitErr = nil
	r.mu.Unlock()

	if attempt.TimeExpired {
		r.notify(domain.NoticeError, "Time is up! Quiz submitted automatically.")
	}
	r.changed()
	return r.deliver(ctx, submission)
}

// Retry resends the answers captured at submission time. After a reload the
// answers are rebuilt from the stored attempt, which keeps its submission ID.
func (r *Runner) Retry(ctx context.Context) error {
	r.mu.Lock()
	if r.quiz == nil {
		r.mu.Unlock()
		return domain.ErrNotMounted
	}
	if r.submitting || r.delivered {
		r.mu.Unlock()
		return domain.ErrNothingToRetry
	}
	submission := r.captured
	if submission == nil {
		attempt, ok := r.cfg.Store.GetAttempt(r.cfg.UserID, r.cfg.QuizID)
		if !ok || !attempt.Submitted {
			r.mu.Unlock()
			return domain.ErrNothingToRetry
		}
		rebuilt := buildSubmission(attempt, *r.quiz)
		r.captured = &rebuilt
		submission = &rebuilt
	}
	r.submitting = true
	r.submitErr = nil
	r.mu.Unlock()

	r.changed()
	return r.deliver(ctx, *submission)
}

func (r *Runner) deliver(ctx context.Context, submission domain.Submission) error {
	err := r.cfg.Grader.SubmitAnswers(ctx, submission)

	r.mu.Lock()
	r.submitting = false
	r.submitErr = err
	r.delivered = err == nil
	r.mu.Unlock()

	if err != nil {
		log.Printf("submit quiz %s for user %s: %v", submission.QuizID, submission.UserID, err)
		r.notify(domain.NoticeError, "Failed to submit quiz")
	} else {
		r.notify(domain.NoticeInfo, "Quiz submitted successfully!")
	}
	r.changed()
	return err
}

// View snapshots the attempt for rendering.
func (r *Runner) View() domain.RunnerView {
	r.mu.Lock()
	defer r.mu.Unlock()

	view := domain.RunnerView{QuizID: r.cfg.QuizID, Phase: domain.PhaseNotStarted}
	if r.quiz == nil {
		return view
	}
	quiz := r.quiz
	view.TotalQuestions = len(quiz.Questions)

	attempt, ok := r.cfg.Store.GetAttempt(r.cfg.UserID, r.cfg.QuizID)
	if !ok || !attempt.Started {
		seconds := int(quiz.Duration / time.Second)
		view.RemainingSeconds = seconds
		view.Clock = FormatClock(seconds)
		view.Urgency = Urgency(seconds)
		return view
	}

	view.Phase = domain.PhaseInProgress
	if attempt.Submitted {
		view.Phase = domain.PhaseSubmitted
	}
	remaining := NewCountdown(attempt.ExpiresAt, r.cfg.Now).RemainingSeconds()
	view.TimeExpired = r.cfg.Store.HasTimeExpired(r.cfg.UserID, r.cfg.QuizID)
	if view.TimeExpired {
		remaining = 0
	}
	view.RemainingSeconds = remaining
	view.Clock = FormatClock(remaining)
	view.Urgency = Urgency(remaining)

	idx := clampIndex(attempt.CurrentQuestionIndex, len(quiz.Questions))
	question := quiz.Questions[idx]
	view.QuestionNumber = idx + 1
	view.QuestionID = question.ID
	view.Prompt = question.Prompt
	view.Options = append([]string(nil), question.Options...)
	view.Selected = attempt.Answers[question.ID]
	view.IsLast = idx == len(quiz.Questions)-1

	view.Submitting = r.submitting
	if r.submitErr != nil {
		view.SubmitError = r.submitErr.Error()
	}
	view.CanRetry = attempt.Submitted && !r.submitting && !r.delivered
	return view
}

// Close stops the countdown and waits for its goroutine. An in-flight
// submission keeps running; use Wait to block on it.
func (r *Runner) Close() {
	r.mu.Lock()
	cancel, done := r.cancel, r.timerDone
	r.cancel, r.timerDone = nil, nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Wait blocks until submissions triggered by expiry have completed.
func (r *Runner) Wait() {
	r.inflight.Wait()
}

// openQuestionLocked returns the attempt and its current question when the
// attempt accepts input.
func (r *Runner) openQuestionLocked() (domain.Attempt, domain.Question, error) {
	if r.quiz == nil {
		return domain.Attempt{}, domain.Question{}, domain.ErrNotMounted
	}
	if !r.started {
		return domain.Attempt{}, domain.Question{}, domain.ErrNotStarted
	}
	attempt, ok := r.cfg.Store.GetAttempt(r.cfg.UserID, r.cfg.QuizID)
	if !ok || !attempt.Started || attempt.Submitted || attempt.TimeExpired {
		return domain.Attempt{}, domain.Question{}, domain.ErrAttemptClosed
	}
	if r.cfg.Store.HasTimeExpired(r.cfg.UserID, r.cfg.QuizID) {
		return domain.Attempt{}, domain.Question{}, domain.ErrAttemptClosed
	}
	idx := clampIndex(attempt.CurrentQuestionIndex, len(r.quiz.Questions))
	return attempt, r.quiz.Questions[idx], nil
}

func (r *Runner) notify(level domain.NoticeLevel, message string) {
	if r.cfg.Notify != nil {
		r.cfg.Notify(domain.Notice{Level: level, Message: message})
	}
}

func (r *Runner) changed() {
	if r.cfg.OnChange != nil {
		r.cfg.OnChange()
	}
}

func clampIndex(idx, count int) int {
	if idx < 0 {
		return 0
	}
	if idx >= count {
		return count - 1
	}
	return idx
}

// buildSubmission lists answered questions in quiz order; answers to questions the
// current definition no longer has are appended sorted by ID.
func buildSubmission(attempt domain.Attempt, quiz domain.Quiz) domain.Submission {
	answers := make([]domain.AnswerSubmission, 0, len(attempt.Answers))
	seen := make(map[string]struct{}, len(attempt.Answers))
	for _, q := range quiz.Questions {
		if option, ok := attempt.Answers[q.ID]; ok {
			answers = append(answers, domain.AnswerSubmission{QuestionID: q.ID, SelectedOption: option})
			seen[q.ID] = struct{}{}
		}
	}
	var extra []string
	for questionID := range attempt.Answers {
		if _, ok := seen[questionID]; !ok {
			extra = append(extra, questionID)
		}
	}
	sort.Strings(extra)
	for _, questionID := range extra {
		answers = append(answers, domain.AnswerSubmission{QuestionID: questionID, SelectedOption: attempt.Answers[questionID]})
	}

	return domain.Submission{
		ID:        attempt.SubmissionID,
		UserID:    attempt.UserID,
		WebinarID: attempt.WebinarID,
		QuizID:    attempt.QuizID,
		Answers:   answers,
	}
}
