package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"webinar-quiz-client/internal/domain"
)

// QuizLoader loads quiz banks from Postgres; questions are stored as JSONB.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var (
		seconds int
		raw     []byte
	)
	err := l.pool.QueryRow(ctx, `SELECT duration_seconds, questions FROM quizzes WHERE id=$1`, quizID).Scan(&seconds, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	quiz := domain.Quiz{ID: quizID, Duration: time.Duration(seconds) * time.Second}
	if err := json.Unmarshal(raw, &quiz.Questions); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	return quiz, nil
}

// SaveQuiz upserts a quiz bank, used to seed a local bank for offline play.
func (l *QuizLoader) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	questions := quiz.Questions
	if questions == nil {
		questions = []domain.Question{}
	}
	raw, err := json.Marshal(questions)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, `
		INSERT INTO quizzes (id, duration_seconds, questions, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE
		SET duration_seconds = EXCLUDED.duration_seconds,
		    questions = EXCLUDED.questions,
		    updated_at = now()`,
		quiz.ID, int(quiz.Duration/time.Second), string(raw))
	if err != nil {
		return fmt.Errorf("save quiz: %w", err)
	}
	return nil
}
