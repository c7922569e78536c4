package app

import (
	"encoding/json"
	"fmt"
	"time"

	"webinar-quiz-client/internal/domain"
)

// SnapshotVersion is the schema version written by this client.
const SnapshotVersion = 5

// persistedSnapshot mirrors the localStorage layout: {"state":{"attempts":{...}},"version":N}.
type persistedSnapshot struct {
	State   persistedState `json:"state"`
	Version int            `json:"version"`
}

type persistedState struct {
	Attempts map[string]*persistedAttempt `json:"attempts"`
}

// persistedAttempt stores timestamps as epoch milliseconds.
type persistedAttempt struct {
	UserID    string `json:"userId"`
	QuizID    string `json:"quizId"`
	WebinarID string `json:"webinarId"`

	Started     bool `json:"started"`
	Submitted   bool `json:"submitted"`
	TimeExpired bool `json:"timeExpired"`

	CurrentQuestionIndex int               `json:"currentQuestionIndex"`
	Answers              map[string]string `json:"answers"`

	StartedAt    int64  `json:"startedAt"`
	ExpiresAt    int64  `json:"expiresAt"`
	SubmittedAt  *int64 `json:"submittedAt,omitempty"`
	SubmissionID string `json:"submissionId,omitempty"`
	SendClaimed  bool   `json:"sendClaimed,omitempty"`
}

// upgradeStep moves a snapshot from version N to N+1. Steps only add or default fields.
type upgradeStep func(s *persistedSnapshot, newID func() string)

var upgradeSteps = map[int]upgradeStep{
	0: defaultAttemptsMap,
	1: defaultAttemptsMap,
	2: func(s *persistedSnapshot, _ func() string) {
		// timeExpired was introduced in v3.
		defaultAttemptsMap(s, nil)
		for _, a := range s.State.Attempts {
			if a != nil {
				a.TimeExpired = false
			}
		}
	},
	3: func(s *persistedSnapshot, newID func() string) {
		for _, a := range s.State.Attempts {
			if a != nil && a.Submitted && a.SubmissionID == "" {
				a.SubmissionID = newID()
			}
		}
	},
	4: func(s *persistedSnapshot, _ func() string) {
		// Attempts submitted before v5 were already handed to a sender.
		for _, a := range s.State.Attempts {
			if a != nil && a.Submitted {
				a.SendClaimed = true
			}
		}
	},
}

func defaultAttemptsMap(s *persistedSnapshot, _ func() string) {
	if s.State.Attempts == nil {
		s.State.Attempts = make(map[string]*persistedAttempt)
	}
}

// decodeSnapshot parses and upgrades a persisted snapshot. An empty payload yields
// an empty map; a payload that cannot be parsed returns an error and the caller
// starts fresh.
func decodeSnapshot(raw []byte, newID func() string) (map[string]*domain.Attempt, error) {
	attempts := make(map[string]*domain.Attempt)
	if len(raw) == 0 {
		return attempts, nil
	}

	var snap persistedSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return attempts, fmt.Errorf("decode attempt snapshot: %w", err)
	}
	if snap.Version > SnapshotVersion {
		return attempts, fmt.Errorf("attempt snapshot version %d is newer than supported %d", snap.Version, SnapshotVersion)
	}
	for v := snap.Version; v < SnapshotVersion; v++ {
		if step, ok := upgradeSteps[v]; ok {
			step(&snap, newID)
		}
	}

	for _, rec := range snap.State.Attempts {
		if rec == nil || rec.UserID == "" || rec.QuizID == "" {
			continue
		}
		attempt := rec.toDomain()
		// Repair invariants an older client may have violated.
		if attempt.TimeExpired {
			attempt.Submitted = true
		}
		if attempt.CurrentQuestionIndex < 0 {
			attempt.CurrentQuestionIndex = 0
		}
		attempts[domain.AttemptKey(attempt.UserID, attempt.QuizID)] = &attempt
	}
	return attempts, nil
}

func encodeSnapshot(attempts map[string]*domain.Attempt) ([]byte, error) {
	snap := persistedSnapshot{
		State:   persistedState{Attempts: make(map[string]*persistedAttempt, len(attempts))},
		Version: SnapshotVersion,
	}
	for key, a := range attempts {
		snap.State.Attempts[key] = fromDomain(a)
	}
	return json.Marshal(snap)
}

func (p *persistedAttempt) toDomain() domain.Attempt {
	a := domain.Attempt{
		UserID:               p.UserID,
		QuizID:               p.QuizID,
		WebinarID:            p.WebinarID,
		Started:              p.Started,
		Submitted:            p.Submitted,
		TimeExpired:          p.TimeExpired,
		CurrentQuestionIndex: p.CurrentQuestionIndex,
		Answers:              make(map[string]string, len(p.Answers)),
		StartedAt:            time.UnixMilli(p.StartedAt),
		ExpiresAt:            time.UnixMilli(p.ExpiresAt),
		SubmissionID:         p.SubmissionID,
		SendClaimed:          p.SendClaimed,
	}
	for k, v := range p.Answers {
		a.Answers[k] = v
	}
	if p.SubmittedAt != nil {
		ts := time.UnixMilli(*p.SubmittedAt)
		a.SubmittedAt = &ts
	}
	return a
}

func fromDomain(a *domain.Attempt) *persistedAttempt {
	p := &persistedAttempt{
		UserID:               a.UserID,
		QuizID:               a.QuizID,
		WebinarID:            a.WebinarID,
		Started:              a.Started,
		Submitted:            a.Submitted,
		TimeExpired:          a.TimeExpired,
		CurrentQuestionIndex: a.CurrentQuestionIndex,
		Answers:              a.Answers,
		StartedAt:            a.StartedAt.UnixMilli(),
		ExpiresAt:            a.ExpiresAt.UnixMilli(),
		SubmissionID:         a.SubmissionID,
		SendClaimed:          a.SendClaimed,
	}
	if p.Answers == nil {
		p.Answers = map[string]string{}
	}
	if a.SubmittedAt != nil {
		ms := a.SubmittedAt.UnixMilli()
		p.SubmittedAt = &ms
	}
	return p
}
