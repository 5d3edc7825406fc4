package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/webanalyst/corius/pkg/models"
)

func newActionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "action",
		Short: "Dispatch, confirm, and roll back agent actions",
	}
	cmd.AddCommand(newActionDispatchCmd())
	cmd.AddCommand(newActionConfirmCmd())
	cmd.AddCommand(newActionRollbackCmd())
	return cmd
}

func newActionDispatchCmd() *cobra.Command {
	var server, intent, query string
	var params []string

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Dispatch one intent from the action catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			if intent == "" {
				return fmt.Errorf("--intent is required")
			}
			req := models.ActionRequest{Intent: intent, Query: query, Params: map[string]string{}}
			for _, p := range params {
				i := strings.Index(p, "=")
				if i <= 0 {
					return fmt.Errorf("invalid --param %q (want key=value)", p)
				}
				req.Params[p[:i]] = p[i+1:]
			}

			c := apiClient(cmd, server)
			out, err := c.Dispatch(cmd.Context(), req)
			if err != nil {
				return err
			}
			printOutcome(cmd, out)
			return nil
		},
	}
	addServerFlag(cmd, &server)
	cmd.Flags().StringVar(&intent, "intent", "", "Intent name (e.g. create_task, move_task, delete_item)")
	cmd.Flags().StringVar(&query, "query", "", "Free-text target, e.g. 'the expense report task'")
	cmd.Flags().StringArrayVar(&params, "param", nil, "Intent parameter key=value (repeatable)")
	return cmd
}

func newActionConfirmCmd() *cobra.Command {
	var server, token string
	var reject bool
	var choice int

	cmd := &cobra.Command{
		Use:   "confirm",
		Short: "Accept or reject a pending action by token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return fmt.Errorf("--token is required")
			}
			req := models.ConfirmRequest{Token: token, Accept: !reject}
			if cmd.Flags().Changed("choice") {
				req.ChoiceIndex = &choice
			}

			c := apiClient(cmd, server)
			out, err := c.Confirm(cmd.Context(), req)
			if err != nil {
				return err
			}
			printOutcome(cmd, out)
			return nil
		},
	}
	addServerFlag(cmd, &server)
	cmd.Flags().StringVar(&token, "token", "", "Confirmation token from a pending outcome")
	cmd.Flags().BoolVar(&reject, "reject", false, "Reject instead of accept")
	cmd.Flags().IntVar(&choice, "choice", 0, "Candidate index for ambiguous actions (0-based)")
	return cmd
}

func newActionRollbackCmd() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Undo the most recent successful action",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := apiClient(cmd, server)
			out, err := c.Dispatch(cmd.Context(), models.ActionRequest{Intent: "rollback_action"})
			if err != nil {
				return err
			}
			printOutcome(cmd, out)
			return nil
		},
	}
	addServerFlag(cmd, &server)
	return cmd
}

func printOutcome(cmd *cobra.Command, out models.ActionOutcome) {
	w := cmd.OutOrStdout()
	switch {
	case out.RequiresConfirmation:
		_, _ = fmt.Fprintf(w, "Pending confirmation (token %s)\n", out.ConfirmationToken)
		if out.Message != "" {
			_, _ = fmt.Fprintln(w, out.Message)
		}
		for i, cand := range out.Candidates {
			_, _ = fmt.Fprintf(w, "  [%d] %s  %s\n", i, cand.ID, cand.Title)
		}
		if len(out.Candidates) > 0 {
			_, _ = fmt.Fprintf(w, "Confirm with: corius action confirm --token %s --choice <n>\n", out.ConfirmationToken)
		} else {
			_, _ = fmt.Fprintf(w, "Confirm with: corius action confirm --token %s\n", out.ConfirmationToken)
		}
	case out.Success:
		if out.Message != "" {
			_, _ = fmt.Fprintln(w, out.Message)
		} else {
			_, _ = fmt.Fprintln(w, "Done")
		}
	default:
		_, _ = fmt.Fprintf(w, "Failed (%s)", out.Error)
		if out.Message != "" {
			_, _ = fmt.Fprintf(w, ": %s", out.Message)
		}
		_, _ = fmt.Fprintln(w)
	}
}
