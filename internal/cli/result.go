package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"webinar-quiz-client/internal/app"
	"webinar-quiz-client/internal/config"
	"webinar-quiz-client/internal/domain"
)

// NewResultCmd prints the graded review of a quiz.
func NewResultCmd(configPath *string) *cobra.Command {
	var quizID string
	cmd := &cobra.Command{
		Use:   "result",
		Short: "Show the graded result of a submitted quiz",
		RunE: func(cmd *cobra.Command, args []string) error {
			if quizID == "" {
				return fmt.Errorf("--quiz is required")
			}
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			d, err := buildDeps(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer d.close()

			reviewer := app.NewReviewer(d.client, d.quizzes, cfg.Quiz.PassMark)
			review, err := reviewer.Load(cmd.Context(), quizID)
			printReview(cmd.OutOrStdout(), review)
			return err
		},
	}
	cmd.Flags().StringVar(&quizID, "quiz", "", "quiz id")
	return cmd
}

var markLabels = map[domain.OptionMark]string{
	domain.MarkBoth:          "your choice, correct",
	domain.MarkYourChoice:    "your choice",
	domain.MarkCorrectAnswer: "correct answer",
}

func printReview(out io.Writer, review domain.Review) {
	if !review.Available {
		fmt.Fprintln(out, review.Message)
		return
	}

	verdict := "Not passed"
	if review.Passed {
		verdict = "Passed"
	}
	fmt.Fprintf(out, "Score: %s%% (%s)\n", strconv.FormatFloat(review.ScorePercentage, 'f', -1, 64), verdict)
	fmt.Fprintf(out, "Correct: %d  Incorrect: %d  Total: %d\n", review.CorrectAnswers, review.IncorrectCount, review.TotalQuestions)

	for _, q := range review.Questions {
		status := "incorrect"
		if q.IsCorrect {
			status = "correct"
		}
		fmt.Fprintf(out, "\n%d. %s [%s]\n", q.Number, q.QuestionName, status)
		for _, opt := range q.Options {
			if label, ok := markLabels[opt.Mark]; ok {
				fmt.Fprintf(out, "   - %s  <- %s\n", opt.Text, label)
				continue
			}
			fmt.Fprintf(out, "   - %s\n", opt.Text)
		}
		if len(q.Options) == 0 {
			selected := q.SelectedOption
			if selected == "" {
				selected = "(no answer)"
			}
			fmt.Fprintf(out, "   your answer: %s, correct answer: %s\n", selected, q.CorrectAnswer)
		}
	}
}
