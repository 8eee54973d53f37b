package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func NewAskCmd(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:     "ask <job-id> <question...>",
		Short:   "Ask a question about a job's applicants",
		Example: `  hrrag ask backend-2026 "Who has production Go experience?"`,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := args[0]
			question := strings.Join(args[1:], " ")
			return withServices(cmd.Context(), load, func(s *Services) error {
				answer, err := s.Answerer.Answer(cmd.Context(), jobID, question)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintln(out, answer.Answer)
				if len(answer.Sources) == 0 {
					return nil
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Sources:")
				for i, src := range answer.Sources {
					fmt.Fprintf(out, "  %d. %s <%s>\n", i+1, src.ApplicantName, src.ApplicantEmail)
				}
				return nil
			})
		},
	}
}
