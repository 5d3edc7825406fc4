package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAuditCmd() *cobra.Command {
	var server string
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent agent actions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := apiClient(cmd, server)
			entries, err := c.Audit(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				line := fmt.Sprintf("%s  %-14s %-11s %s",
					e.Timestamp.Format("2006-01-02 15:04:05"), e.Intent, e.Status, e.TargetSummary)
				if e.Reason != "" {
					line += "  (" + e.Reason + ")"
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			if len(entries) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No actions recorded")
			}
			return nil
		},
	}
	addServerFlag(cmd, &server)
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of entries")
	return cmd
}
