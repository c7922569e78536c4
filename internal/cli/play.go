package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"webinar-quiz-client/internal/app"
	"webinar-quiz-client/internal/config"
	"webinar-quiz-client/internal/domain"
)

type attemptFlags struct {
	userID    string
	webinarID string
	quizID    string
}

func (f *attemptFlags) bind(cmd *cobra.Command, withWebinar bool) {
	cmd.Flags().StringVar(&f.userID, "user", os.Getenv("QUIZ_USER_ID"), "user id taking the quiz")
	cmd.Flags().StringVar(&f.quizID, "quiz", "", "quiz id")
	if withWebinar {
		cmd.Flags().StringVar(&f.webinarID, "webinar", "", "webinar the quiz belongs to")
	}
}

func (f attemptFlags) validate(withWebinar bool) error {
	if strings.TrimSpace(f.userID) == "" || strings.TrimSpace(f.quizID) == "" {
		return errors.New("--user and --quiz are required")
	}
	if withWebinar && strings.TrimSpace(f.webinarID) == "" {
		return errors.New("--webinar is required")
	}
	return nil
}

// NewPlayCmd runs an attempt in the terminal.
func NewPlayCmd(configPath *string) *cobra.Command {
	var flags attemptFlags
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Take (or resume) a quiz attempt in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.validate(true); err != nil {
				return err
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

			out := &syncWriter{w: cmd.OutOrStdout()}
			runner := d.runner(flags.userID, flags.webinarID, flags.quizID, printNotice(out))
			return runPlay(cmd.Context(), cmd.InOrStdin(), out, runner)
		},
	}
	flags.bind(cmd, true)
	return cmd
}

// runPlay drives runner from line-oriented input until the attempt is submitted
// and delivered, the user quits, or input ends. Quitting keeps the attempt;
// the countdown keeps running against its stored deadline.
func runPlay(ctx context.Context, in io.Reader, out io.Writer, runner *app.Runner) error {
	if err := runner.Mount(ctx); err != nil {
		return err
	}
	defer runner.Wait()
	defer runner.Close()

	if err := runner.Start(ctx); err != nil {
		return err
	}
	reader := bufio.NewReader(in)

	for {
		view := runner.View()
		if view.Phase == domain.PhaseSubmitted {
			if !view.CanRetry {
				if !view.Submitting {
					fmt.Fprintln(out, "Attempt submitted. Use the result command to see your score.")
				}
				return nil
			}
			retry, err := promptYesNo(reader, out, "Submission failed. Retry? (yes/no): ")
			if err != nil || !retry {
				return ignoreEOF(err)
			}
			if err := runner.Retry(ctx); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			continue
		}
		if view.TimeExpired {
			// The deadline passed while waiting for input.
			if err := runner.Submit(ctx); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			continue
		}

		renderQuestion(out, view)
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintln(out)
			return ignoreEOF(err)
		}

		command := strings.ToLower(strings.TrimSpace(line))
		switch command {
		case "":
			continue
		case "q", "quit", "exit":
			fmt.Fprintln(out, "Progress saved. Run play again to resume before the timer ends.")
			return nil
		case "n", "next":
			err = runner.Next(ctx)
		case "s", "submit":
			err = runner.Submit(ctx)
		default:
			option, ok := optionForLetter(command, view.Options)
			if !ok {
				fmt.Fprintln(out, "Type an option letter, 'next', 'submit' or 'quit'.")
				continue
			}
			err = runner.Select(option)
		}
		if err != nil && !errors.Is(err, domain.ErrAttemptClosed) {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

func renderQuestion(out io.Writer, view domain.RunnerView) {
	fmt.Fprintf(out, "\n[%s left] Question %d of %d\n%s\n", view.Clock, view.QuestionNumber, view.TotalQuestions, view.Prompt)
	for i, option := range view.Options {
		marker := " "
		if option == view.Selected {
			marker = "*"
		}
		fmt.Fprintf(out, " %s %c. %s\n", marker, 'A'+i, option)
	}
	action := "next"
	if view.IsLast {
		action = "next (submits)"
	}
	fmt.Fprintf(out, "Answer (A-%c), %s, submit or quit: ", 'A'+len(view.Options)-1, action)
}

func optionForLetter(input string, options []string) (string, bool) {
	if len(input) != 1 {
		return "", false
	}
	idx := int(strings.ToUpper(input)[0]) - 'A'
	if idx < 0 || idx >= len(options) {
		return "", false
	}
	return options[idx], true
}

func promptYesNo(reader *bufio.Reader, out io.Writer, prompt string) (bool, error) {
	for {
		fmt.Fprint(out, prompt)
		line, err := reader.ReadString('\n')
		if err != nil {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		default:
			fmt.Fprintln(out, "Please answer yes or no.")
		}
	}
}

func printNotice(out io.Writer) func(domain.Notice) {
	return func(n domain.Notice) {
		if n.Level == domain.NoticeError {
			fmt.Fprintf(out, "\n! %s\n", n.Message)
			return
		}
		fmt.Fprintf(out, "\n%s\n", n.Message)
	}
}

func ignoreEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// syncWriter serializes writes from the prompt loop and countdown notices.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
