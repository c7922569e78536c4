package app

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"webinar-quiz-client/internal/domain"
)

// SnapshotStore abstracts where the attempt snapshot lives (file, memory, Redis, Postgres).
// Load returns an empty payload when nothing has been saved yet.
type SnapshotStore interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// AttemptStore owns every attempt held by this client and all of their transitions.
// Methods never fail: invalid transitions are no-ops and persistence errors are logged.
type AttemptStore struct {
	snapshots SnapshotStore
	now       func() time.Time
	newID     func() string
	deferFn   func(func())
	saveLimit time.Duration

	mu       sync.Mutex
	attempts map[string]*domain.Attempt

	pending sync.WaitGroup
}

// StoreOption customizes an AttemptStore.
type StoreOption func(*AttemptStore)

// WithClock overrides the wall clock, mainly for deterministic tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *AttemptStore) { s.now = now }
}

// WithIDGenerator overrides how submission IDs are generated.
func WithIDGenerator(newID func() string) StoreOption {
	return func(s *AttemptStore) { s.newID = newID }
}

// WithDeferral overrides how lazily detected expiries are scheduled.
// The default runs them on a separate goroutine.
func WithDeferral(deferFn func(func())) StoreOption {
	return func(s *AttemptStore) { s.deferFn = deferFn }
}

// WithSaveTimeout bounds each snapshot write so a hung backend cannot stall transitions.
func WithSaveTimeout(d time.Duration) StoreOption {
	return func(s *AttemptStore) { s.saveLimit = d }
}

// DefaultSaveTimeout bounds a snapshot write when no WithSaveTimeout option is given.
const DefaultSaveTimeout = 5 * time.Second

// NewAttemptStore loads the persisted snapshot once and returns a ready store.
// A missing or unreadable snapshot yields an empty store.
func NewAttemptStore(ctx context.Context, snapshots SnapshotStore, opts ...StoreOption) *AttemptStore {
	s := &AttemptStore{
		snapshots: snapshots,
		now:       time.Now,
		newID:     uuid.NewString,
		saveLimit: DefaultSaveTimeout,
		attempts:  make(map[string]*domain.Attempt),
	}
	s.deferFn = func(fn func()) { go fn() }
	for _, opt := range opts {
		opt(s)
	}

	if snapshots == nil {
		return s
	}
	raw, err := snapshots.Load(ctx)
	if err != nil {
		log.Printf("attempt store: load snapshot: %v", err)
		return s
	}
	attempts, err := decodeSnapshot(raw, s.newID)
	if err != nil {
		log.Printf("attempt store: %v; starting fresh", err)
		return s
	}
	s.attempts = attempts
	return s
}

// StartQuiz creates the attempt or resumes an unsubmitted one. A submitted attempt is left alone.
func (s *AttemptStore) StartQuiz(userID, quizID, webinarID string, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.AttemptKey(userID, quizID)
	existing, ok := s.attempts[key]
	if ok && existing.Submitted {
		return
	}
	if ok {
		// Resume: startedAt/expiresAt are fixed at creation.
		existing.Started = true
		if existing.WebinarID == "" {
			existing.WebinarID = webinarID
		}
		s.persistLocked()
		return
	}

	now := s.now()
	s.attempts[key] = &domain.Attempt{
		UserID:               userID,
		QuizID:               quizID,
		WebinarID:            webinarID,
		Started:              true,
		CurrentQuestionIndex: 0,
		Answers:              make(map[string]string),
		StartedAt:            now,
		ExpiresAt:            now.Add(duration),
	}
	s.persistLocked()
}

// AnswerQuestion records (or overwrites) the selected option for a question.
func (s *AttemptStore) AnswerQuestion(userID, quizID, questionID, option string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt, ok := s.openLocked(userID, quizID)
	if !ok {
		return
	}
	attempt.Answers[questionID] = option
	s.persistLocked()
}

// NextQuestion advances the question pointer by one. Bounds are the caller's concern.
func (s *AttemptStore) NextQuestion(userID, quizID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt, ok := s.openLocked(userID, quizID)
	if !ok {
		return
	}
	attempt.CurrentQuestionIndex++
	s.persistLocked()
}

// SubmitQuiz marks the attempt submitted. It reports whether this call made the transition.
func (s *AttemptStore) SubmitQuiz(userID, quizID string) bool {
	return s.finish(userID, quizID, false)
}

// ExpireQuiz marks the attempt expired and submitted in one step. It reports whether
// this call made the transition.
func (s *AttemptStore) ExpireQuiz(userID, quizID string) bool {
	return s.finish(userID, quizID, true)
}

func (s *AttemptStore) finish(userID, quizID string, expired bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt, ok := s.attempts[domain.AttemptKey(userID, quizID)]
	if !ok || attempt.Submitted {
		return false
	}
	now := s.now()
	attempt.Submitted = true
	attempt.TimeExpired = expired
	attempt.SubmittedAt = &now
	attempt.SubmissionID = s.newID()
	s.persistLocked()
	return true
}

// ClaimSend hands the submitted attempt to exactly one sender. It returns the
// attempt and true for the first caller after the terminal transition, false for
// everyone else, including callers after a reload once the claim was persisted.
func (s *AttemptStore) ClaimSend(userID, quizID string) (domain.Attempt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt, ok := s.attempts[domain.AttemptKey(userID, quizID)]
	if !ok || !attempt.Submitted || attempt.SendClaimed {
		return domain.Attempt{}, false
	}
	attempt.SendClaimed = true
	s.persistLocked()
	return attempt.Clone(), true
}

// GetAttempt returns a copy of the attempt, if any.
func (s *AttemptStore) GetAttempt(userID, quizID string) (domain.Attempt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt, ok := s.attempts[domain.AttemptKey(userID, quizID)]
	if !ok {
		return domain.Attempt{}, false
	}
	return attempt.Clone(), true
}

// IsSubmitted reports whether the attempt reached its terminal state.
func (s *AttemptStore) IsSubmitted(userID, quizID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt, ok := s.attempts[domain.AttemptKey(userID, quizID)]
	return ok && attempt.Submitted
}

// HasTimeExpired derives expiry from timestamps. When the deadline has passed on an
// unsubmitted attempt it schedules ExpireQuiz instead of mutating during the read.
func (s *AttemptStore) HasTimeExpired(userID, quizID string) bool {
	s.mu.Lock()
	attempt, ok := s.attempts[domain.AttemptKey(userID, quizID)]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if attempt.TimeExpired {
		s.mu.Unlock()
		return true
	}
	expired := s.now().After(attempt.ExpiresAt)
	needsExpiry := expired && !attempt.Submitted
	s.mu.Unlock()

	if needsExpiry {
		s.pending.Add(1)
		s.deferFn(func() {
			defer s.pending.Done()
			s.ExpireQuiz(userID, quizID)
		})
	}
	return expired
}

// ResetQuiz deletes the attempt so it can be taken again.
func (s *AttemptStore) ResetQuiz(userID, quizID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.AttemptKey(userID, quizID)
	if _, ok := s.attempts[key]; !ok {
		return
	}
	delete(s.attempts, key)
	s.persistLocked()
}

// Wait blocks until every deferred expiry scheduled by HasTimeExpired has run.
func (s *AttemptStore) Wait() {
	s.pending.Wait()
}

func (s *AttemptStore) openLocked(userID, quizID string) (*domain.Attempt, bool) {
	attempt, ok := s.attempts[domain.AttemptKey(userID, quizID)]
	if !ok || attempt.Submitted || attempt.TimeExpired {
		return nil, false
	}
	return attempt, true
}

func (s *AttemptStore) persistLocked() {
	if s.snapshots == nil {
		return
	}
	data, err := encodeSnapshot(s.attempts)
	if err != nil {
		log.Printf("attempt store: encode snapshot: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.saveLimit)
	defer cancel()
	if err := s.snapshots.Save(ctx, data); err != nil {
		log.Printf("attempt store: save snapshot: %v", err)
	}
}
