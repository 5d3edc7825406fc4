package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/webanalyst/corius/pkg/models"
)

func newItemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Inspect workspace items",
	}
	cmd.AddCommand(newItemAddCmd())
	cmd.AddCommand(newItemListCmd())
	cmd.AddCommand(newItemShowCmd())
	cmd.AddCommand(newItemRecentCmd())
	return cmd
}

func newItemAddCmd() *cobra.Command {
	var server, container, parent, status string

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task, optionally inside a database or under a parent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := apiClient(cmd, server)
			params := map[string]string{"title": args[0]}
			if container != "" {
				params["container_id"] = container
			}
			if parent != "" {
				params["parent_id"] = parent
			}
			if status != "" {
				params["status"] = status
			}
			out, err := c.Dispatch(cmd.Context(), models.ActionRequest{Intent: "create_task", Params: params})
			if err != nil {
				return err
			}
			printOutcome(cmd, out)
			return nil
		},
	}
	addServerFlag(cmd, &server)
	cmd.Flags().StringVar(&container, "container", "", "Database ID to create the task in")
	cmd.Flags().StringVar(&parent, "parent", "", "Parent item ID")
	cmd.Flags().StringVar(&status, "status", "", "Initial status column")
	return cmd
}

func newItemListCmd() *cobra.Command {
	var server, itemType, container, parent string
	var archived bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items, optionally filtered by type, container, or parent",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := apiClient(cmd, server)
			items, err := c.Items(cmd.Context(), itemType, container, parent, archived)
			if err != nil {
				return err
			}
			for _, it := range items {
				flags := ""
				if it.Favorite {
					flags += " *"
				}
				if it.Archived {
					flags += " [archived]"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %-13s %s%s\n", it.ID, it.Type, it.Title, flags)
			}
			if len(items) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No items")
			}
			return nil
		},
	}
	addServerFlag(cmd, &server)
	cmd.Flags().StringVar(&itemType, "type", "", "Filter by item type (page, task, database-row)")
	cmd.Flags().StringVar(&container, "container", "", "Filter by containing database ID")
	cmd.Flags().StringVar(&parent, "parent", "", "Filter by parent item ID")
	cmd.Flags().BoolVar(&archived, "archived", false, "Include archived items")
	return cmd
}

func newItemShowCmd() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one item with its properties",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := apiClient(cmd, server)
			it, err := c.Item(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "ID:       %s\n", it.ID)
			_, _ = fmt.Fprintf(out, "Title:    %s\n", it.Title)
			_, _ = fmt.Fprintf(out, "Type:     %s\n", it.Type)
			if it.ContainerID != "" {
				_, _ = fmt.Fprintf(out, "Database: %s\n", it.ContainerID)
			}
			if it.ParentID != "" {
				_, _ = fmt.Fprintf(out, "Parent:   %s\n", it.ParentID)
			}
			_, _ = fmt.Fprintf(out, "Updated:  %s\n", it.UpdatedAt.Format("2006-01-02 15:04:05"))
			for key, pv := range it.Properties {
				val := pv.Text
				switch pv.Type {
				case "number":
					val = fmt.Sprintf("%g", pv.Number)
				case "status":
					val = pv.Status
				case "date":
					if pv.Date != nil {
						val = pv.Date.Format("2006-01-02")
					}
				case "relation":
					val = fmt.Sprintf("%v", pv.Relations)
				}
				_, _ = fmt.Fprintf(out, "  %s = %s\n", key, val)
			}
			return nil
		},
	}
	addServerFlag(cmd, &server)
	return cmd
}

func newItemRecentCmd() *cobra.Command {
	var server string
	var limit int

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List the most recently touched items, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := apiClient(cmd, server)
			items, err := c.RecentItems(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, it := range items {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %-13s %s\n", it.ID, it.Type, it.Title)
			}
			return nil
		},
	}
	addServerFlag(cmd, &server)
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of items")
	return cmd
}
