package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"webinar-quiz-client/internal/app"
	"webinar-quiz-client/internal/domain"
	"webinar-quiz-client/internal/infra/memory"
)

type runnerFixture struct {
	clock   *fakeClock
	store   *app.AttemptStore
	grader  *recordingGrader
	notices *noticeLog
	runner  *app.Runner
}

func newRunnerFixture(t *testing.T, snapshots app.SnapshotStore) *runnerFixture {
	t.Helper()
	clock := newFakeClock()
	f := &runnerFixture{
		clock:   clock,
		store:   newTestStore(clock, snapshots),
		grader:  &recordingGrader{},
		notices: &noticeLog{},
	}
	f.runner = f.newRunner(t)
	return f
}

func (f *runnerFixture) newRunner(t *testing.T) *app.Runner {
	t.Helper()
	runner := app.NewRunner(app.RunnerConfig{
		Store:        f.store,
		Quizzes:      staticQuizzes(threeQuestionQuiz()),
		Grader:       f.grader,
		UserID:       "u1",
		WebinarID:    "web-1",
		QuizID:       "quiz-1",
		TickInterval: 2 * time.Millisecond,
		Now:          f.clock.Now,
		Notify:       f.notices.add,
	})
	require.NoError(t, runner.Mount(context.Background()))
	t.Cleanup(func() {
		runner.Close()
		runner.Wait()
	})
	return runner
}

func TestRunnerWalksQuizAndSubmitsOnce(t *testing.T) {
	ctx := context.Background()
	f := newRunnerFixture(t, memory.NewSnapshotStore())
	r := f.runner

	view := r.View()
	require.Equal(t, domain.PhaseNotStarted, view.Phase)
	require.Equal(t, "02:00", view.Clock)

	require.NoError(t, r.Start(ctx))
	require.NoError(t, r.Select("A"))
	require.NoError(t, r.Select("B"))
	require.NoError(t, r.Next(ctx))

	view = r.View()
	require.Equal(t, domain.PhaseInProgress, view.Phase)
	require.Equal(t, 2, view.QuestionNumber)
	require.Equal(t, 3, view.TotalQuestions)
	require.Equal(t, "q2", view.QuestionID)
	require.Empty(t, view.Selected)
	require.False(t, view.IsLast)

	require.NoError(t, r.Next(ctx)) // q2 left unanswered
	require.NoError(t, r.Select("Jupiter"))
	require.True(t, r.View().IsLast)
	require.NoError(t, r.Next(ctx)) // last question submits

	calls := f.grader.calls()
	require.Len(t, calls, 1)
	require.Equal(t, "sub-1", calls[0].ID)
	require.Equal(t, "web-1", calls[0].WebinarID)
	require.Equal(t, []domain.AnswerSubmission{
		{QuestionID: "q1", SelectedOption: "B"},
		{QuestionID: "q3", SelectedOption: "Jupiter"},
	}, calls[0].Answers)

	view = r.View()
	require.Equal(t, domain.PhaseSubmitted, view.Phase)
	require.False(t, view.CanRetry)
	require.False(t, view.TimeExpired)

	require.NoError(t, r.Submit(ctx))
	require.ErrorIs(t, r.Select("Mars"), domain.ErrAttemptClosed)
	require.ErrorIs(t, r.Next(ctx), domain.ErrAttemptClosed)
	require.ErrorIs(t, r.Retry(ctx), domain.ErrNothingToRetry)
	require.Len(t, f.grader.calls(), 1)
	require.Contains(t, f.notices.messages(), "Quiz submitted successfully!")
}

func TestRunnerExpirySubmitsAutomatically(t *testing.T) {
	ctx := context.Background()
	f := newRunnerFixture(t, nil)
	r := f.runner

	require.NoError(t, r.Start(ctx))
	require.NoError(t, r.Select("B"))
	require.NoError(t, r.Next(ctx))

	f.clock.Set(121 * time.Second)
	require.Eventually(t, func() bool { return len(f.grader.calls()) == 1 }, 2*time.Second, time.Millisecond)
	r.Wait()

	attempt, _ := f.store.GetAttempt("u1", "quiz-1")
	require.True(t, attempt.Submitted)
	require.True(t, attempt.TimeExpired)
	require.Equal(t, []domain.AnswerSubmission{{QuestionID: "q1", SelectedOption: "B"}}, f.grader.calls()[0].Answers)

	// A late click after expiry must not produce a second submission.
	require.NoError(t, r.Submit(ctx))
	require.Len(t, f.grader.calls(), 1)

	view := r.View()
	require.True(t, view.TimeExpired)
	require.Equal(t, "00:00", view.Clock)
	require.Contains(t, f.notices.messages(), "Time is up! Quiz submitted automatically.")
}

func TestRunnerSubmitRacingExpirySendsOnce(t *testing.T) {
	for round := 0; round < 20; round++ {
		ctx := context.Background()
		f := newRunnerFixture(t, nil)
		f.grader.release = make(chan struct{})
		r := f.runner

		require.NoError(t, r.Start(ctx))
		require.NoError(t, r.Select("B"))

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Submit(ctx)
		}()
		f.clock.Set(120*time.Second + time.Millisecond)

		time.Sleep(10 * time.Millisecond)
		close(f.grader.release)
		wg.Wait()
		r.Close()
		r.Wait()

		require.Len(t, f.grader.calls(), 1, "round %d", round)
		attempt, _ := f.store.GetAttempt("u1", "quiz-1")
		require.True(t, attempt.Submitted)
		require.NotNil(t, attempt.SubmittedAt)
	}
}

func TestRunnerNetworkFailureKeepsSubmittedAndRetries(t *testing.T) {
	ctx := context.Background()
	f := newRunnerFixture(t, nil)
	r := f.runner
	f.grader.setErr(errors.New("connection reset"))

	require.NoError(t, r.Start(ctx))
	require.NoError(t, r.Select("A"))
	err := r.Submit(ctx)
	require.EqualError(t, err, "connection reset")

	view := r.View()
	require.Equal(t, domain.PhaseSubmitted, view.Phase)
	require.Equal(t, "connection reset", view.SubmitError)
	require.True(t, view.CanRetry)
	require.True(t, f.store.IsSubmitted("u1", "quiz-1"))
	require.Contains(t, f.notices.messages(), "Failed to submit quiz")

	// Answers are frozen at submission time.
	require.ErrorIs(t, r.Select("C"), domain.ErrAttemptClosed)

	f.grader.setErr(nil)
	require.NoError(t, r.Retry(ctx))

	calls := f.grader.calls()
	require.Len(t, calls, 2)
	require.Equal(t, calls[0], calls[1])
	require.False(t, r.View().CanRetry)
	require.ErrorIs(t, r.Retry(ctx), domain.ErrNothingToRetry)
}

func TestRunnerResumesAfterReload(t *testing.T) {
	ctx := context.Background()
	snapshots := memory.NewSnapshotStore()
	f := newRunnerFixture(t, snapshots)

	require.NoError(t, f.runner.Start(ctx))
	require.NoError(t, f.runner.Select("B"))
	require.NoError(t, f.runner.Next(ctx))
	f.runner.Close()

	f.clock.Set(50 * time.Second)
	f.store = newTestStore(f.clock, snapshots)
	resumed := f.newRunner(t)
	require.NoError(t, resumed.Start(ctx))

	view := resumed.View()
	require.Equal(t, domain.PhaseInProgress, view.Phase)
	require.Equal(t, 2, view.QuestionNumber)
	require.Equal(t, 70, view.RemainingSeconds)

	attempt, _ := f.store.GetAttempt("u1", "quiz-1")
	require.Equal(t, "B", attempt.Answers["q1"])
	require.Equal(t, epoch.Add(120*time.Second).UnixMilli(), attempt.ExpiresAt.UnixMilli())
}

func TestRunnerDoesNotResendSubmittedAttemptOnReload(t *testing.T) {
	ctx := context.Background()
	snapshots := memory.NewSnapshotStore()
	f := newRunnerFixture(t, snapshots)
	f.grader.setErr(errors.New("offline"))

	require.NoError(t, f.runner.Start(ctx))
	require.NoError(t, f.runner.Select("B"))
	require.Error(t, f.runner.Submit(ctx))
	first := f.grader.calls()[0]

	f.store = newTestStore(f.clock, snapshots)
	f.grader.setErr(nil)
	reloaded := f.newRunner(t)
	require.NoError(t, reloaded.Start(ctx))
	require.Len(t, f.grader.calls(), 1)

	view := reloaded.View()
	require.Equal(t, domain.PhaseSubmitted, view.Phase)
	require.True(t, view.CanRetry)

	require.NoError(t, reloaded.Retry(ctx))
	calls := f.grader.calls()
	require.Len(t, calls, 2)
	require.Equal(t, first.ID, calls[1].ID)
	require.Equal(t, first.Answers, calls[1].Answers)
}

func TestRunnerRejectsInvalidActions(t *testing.T) {
	ctx := context.Background()
	f := newRunnerFixture(t, nil)
	r := f.runner

	require.ErrorIs(t, r.Select("B"), domain.ErrNotStarted)
	require.ErrorIs(t, r.Submit(ctx), domain.ErrNotStarted)

	unmounted := app.NewRunner(app.RunnerConfig{Store: f.store, QuizID: "quiz-1", UserID: "u1"})
	require.ErrorIs(t, unmounted.Start(ctx), domain.ErrNotMounted)

	missing := app.NewRunner(app.RunnerConfig{Store: f.store, Quizzes: staticQuizzes(), QuizID: "nope", UserID: "u1"})
	require.ErrorIs(t, missing.Mount(ctx), domain.ErrQuizNotFound)

	require.NoError(t, r.Start(ctx))
	require.ErrorIs(t, r.Select("Z"), domain.ErrOptionNotFound)

	r.Close() // no ticks; the deadline is only visible through timestamps
	f.clock.Set(3 * time.Minute)
	require.ErrorIs(t, r.Select("B"), domain.ErrAttemptClosed)
	require.ErrorIs(t, r.Next(ctx), domain.ErrAttemptClosed)
	require.True(t, r.View().TimeExpired)

	// Reading the expiry flips the record even though no tick fired.
	f.store.Wait()
	attempt, _ := f.store.GetAttempt("u1", "quiz-1")
	require.True(t, attempt.Submitted)
	require.True(t, attempt.TimeExpired)
	require.Empty(t, f.grader.calls())
}

func TestRunnerCloseStopsCountdown(t *testing.T) {
	ctx := context.Background()
	f := newRunnerFixture(t, nil)
	r := f.runner

	require.NoError(t, r.Start(ctx))
	r.Close()
	f.clock.Set(5 * time.Minute)
	time.Sleep(20 * time.Millisecond)

	require.Empty(t, f.grader.calls())
	require.False(t, f.store.IsSubmitted("u1", "quiz-1"))

	// Submitting after the deadline records the attempt as expired.
	require.NoError(t, r.Submit(ctx))
	attempt, _ := f.store.GetAttempt("u1", "quiz-1")
	require.True(t, attempt.TimeExpired)
	require.Len(t, f.grader.calls(), 1)
}

func TestRunnerResumedAttemptMustStartBeforeSubmitting(t *testing.T) {
	ctx := context.Background()
	snapshots := memory.NewSnapshotStore()
	f := newRunnerFixture(t, snapshots)

	require.NoError(t, f.runner.Start(ctx))
	require.NoError(t, f.runner.Select("B"))
	f.runner.Close()

	f.store = newTestStore(f.clock, snapshots)
	resumed := f.newRunner(t)
	require.Equal(t, domain.PhaseInProgress, resumed.View().Phase)

	require.ErrorIs(t, resumed.Select("C"), domain.ErrNotStarted)
	require.ErrorIs(t, resumed.Next(ctx), domain.ErrNotStarted)
	require.ErrorIs(t, resumed.Submit(ctx), domain.ErrNotStarted)
	require.False(t, f.store.IsSubmitted("u1", "quiz-1"))
	require.Empty(t, f.grader.calls())

	require.NoError(t, resumed.Start(ctx))
	require.NoError(t, resumed.Submit(ctx))

	calls := f.grader.calls()
	require.Len(t, calls, 1)
	require.Equal(t, []domain.AnswerSubmission{{QuestionID: "q1", SelectedOption: "B"}}, calls[0].Answers)
	require.False(t, resumed.View().CanRetry)
}

func TestRunnersSharingStoreSendOnce(t *testing.T) {
	ctx := context.Background()
	f := newRunnerFixture(t, nil)
	first := f.runner
	second := f.newRunner(t)

	require.NoError(t, first.Start(ctx))
	require.NoError(t, second.Start(ctx))
	require.NoError(t, first.Select("B"))
	require.NoError(t, first.Submit(ctx))
	require.Len(t, f.grader.calls(), 1)

	// The second runner's countdown still fires at the deadline.
	f.clock.Set(121 * time.Second)
	require.Never(t, func() bool { return len(f.grader.calls()) > 1 }, 100*time.Millisecond, 2*time.Millisecond)
	second.Close()
	second.Wait()

	require.Len(t, f.grader.calls(), 1)
	require.Equal(t, domain.PhaseSubmitted, second.View().Phase)
	require.ErrorIs(t, second.Select("A"), domain.ErrAttemptClosed)
}

func TestRunnerStartSendsLazilyExpiredAttempt(t *testing.T) {
	ctx := context.Background()
	f := newRunnerFixture(t, nil)

	require.NoError(t, f.runner.Start(ctx))
	require.NoError(t, f.runner.Select("A"))
	f.runner.Close()

	f.clock.Set(5 * time.Minute)
	require.True(t, f.store.HasTimeExpired("u1", "quiz-1"))
	f.store.Wait()
	require.True(t, f.store.IsSubmitted("u1", "quiz-1"))
	require.Empty(t, f.grader.calls())

	// The next session to start finds the unsent submission and sends it.
	next := f.newRunner(t)
	require.NoError(t, next.Start(ctx))
	calls := f.grader.calls()
	require.Len(t, calls, 1)
	require.Equal(t, []domain.AnswerSubmission{{QuestionID: "q1", SelectedOption: "A"}}, calls[0].Answers)
	require.Contains(t, f.notices.messages(), "Time is up! Quiz submitted automatically.")

	again := f.newRunner(t)
	require.NoError(t, again.Start(ctx))
	require.Len(t, f.grader.calls(), 1)
}
