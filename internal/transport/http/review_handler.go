package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"webinar-quiz-client/internal/app"
	"webinar-quiz-client/internal/domain"
)

// ReviewHandler serves the graded result review for a quiz as JSON.
type ReviewHandler struct {
	reviewer *app.Reviewer
}

func NewReviewHandler(reviewer *app.Reviewer) *ReviewHandler {
	return &ReviewHandler{reviewer: reviewer}
}

func (h *ReviewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}

	review, err := h.reviewer.Load(r.Context(), quizID)
	status := http.StatusOK
	switch {
	case errors.Is(err, domain.ErrQuizNotFound):
		status = http.StatusNotFound
		review.Message = err.Error()
	case err != nil:
		// The review still renders as "not available"; the reader can refresh.
		log.Printf("load review for quiz %s: %v", quizID, err)
		status = http.StatusBadGateway
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(review); err != nil {
		log.Printf("write review: %v", err)
	}
}
