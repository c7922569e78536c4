package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuizEmpty is returned when a quiz definition has no questions.
	ErrQuizEmpty = errors.New("quiz has no questions")
	// ErrNotMounted is returned when the runner is used before its quiz is loaded.
	ErrNotMounted = errors.New("quiz runner not mounted")
	// ErrNotStarted is returned when an answer or submit action arrives before Start.
	ErrNotStarted = errors.New("quiz runner not started")
	// ErrAttemptClosed is returned when an action targets an attempt that is not in progress.
	ErrAttemptClosed = errors.New("quiz attempt is not in progress")
	// ErrOptionNotFound indicates a selected option is not part of the current question.
	ErrOptionNotFound = errors.New("option not found")
	// ErrNothingToRetry is returned when no captured submission is waiting to be resent.
	ErrNothingToRetry = errors.New("no submission to retry")
)
