package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"webinar-quiz-client/internal/config"
)

// NewResetCmd removes a stored attempt so the quiz can be retaken. Whether a
// retake is allowed is decided by the portal, not by this client.
func NewResetCmd(configPath *string) *cobra.Command {
	var flags attemptFlags
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Discard the local attempt for a quiz (retake)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.validate(false); err != nil {
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

			existed, err := d.resetAttempt(cmd.Context(), flags.userID, flags.quizID)
			if err != nil {
				return err
			}
			if !existed {
				fmt.Fprintf(cmd.OutOrStdout(), "no attempt stored for quiz %s\n", flags.quizID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "attempt for quiz %s cleared\n", flags.quizID)
			return nil
		},
	}
	flags.bind(cmd, false)
	return cmd
}
