package app_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"webinar-quiz-client/internal/app"
	"webinar-quiz-client/internal/domain"
	"webinar-quiz-client/internal/infra/memory"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: epoch} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(offset time.Duration) {
	c.mu.Lock()
	c.now = epoch.Add(offset)
	c.mu.Unlock()
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("sub-%d", n)
	}
}

func newTestStore(clock *fakeClock, snapshots app.SnapshotStore) *app.AttemptStore {
	return app.NewAttemptStore(context.Background(), snapshots,
		app.WithClock(clock.Now),
		app.WithIDGenerator(sequentialIDs()),
	)
}

func threeQuestionQuiz() domain.Quiz {
	return domain.Quiz{
		ID: "quiz-1",
		Questions: []domain.Question{
			{ID: "q1", Prompt: "Capital of France?", Options: []string{"A", "B", "C"}, CorrectAnswer: "B"},
			{ID: "q2", Prompt: "2 + 2?", Options: []string{"3", "4"}, CorrectAnswer: "4"},
			{ID: "q3", Prompt: "Largest planet?", Options: []string{"Mars", "Jupiter"}, CorrectAnswer: "Jupiter"},
		},
		Duration: 120 * time.Second,
	}
}

func staticQuizzes(quizzes ...domain.Quiz) *memory.StaticQuizLoader {
	m := make(map[string]domain.Quiz, len(quizzes))
	for _, q := range quizzes {
		m[q.ID] = q
	}
	return memory.NewStaticQuizLoader(m)
}

type recordingGrader struct {
	mu          sync.Mutex
	submissions []domain.Submission
	err         error
	release     chan struct{}
}

func (g *recordingGrader) SubmitAnswers(ctx context.Context, submission domain.Submission) error {
	if g.release != nil {
		<-g.release
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.submissions = append(g.submissions, submission)
	return g.err
}

func (g *recordingGrader) setErr(err error) {
	g.mu.Lock()
	g.err = err
	g.mu.Unlock()
}

func (g *recordingGrader) calls() []domain.Submission {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.Submission(nil), g.submissions...)
}

type noticeLog struct {
	mu      sync.Mutex
	notices []domain.Notice
}

func (l *noticeLog) add(n domain.Notice) {
	l.mu.Lock()
	l.notices = append(l.notices, n)
	l.mu.Unlock()
}

func (l *noticeLog) messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.notices))
	for _, n := range l.notices {
		out = append(out, n.Message)
	}
	return out
}
