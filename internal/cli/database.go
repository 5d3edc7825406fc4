package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/webanalyst/corius/pkg/models"
)

func newDatabaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "database",
		Short: "Inspect databases and run view queries",
	}
	cmd.AddCommand(newDatabaseListCmd())
	cmd.AddCommand(newDatabaseShowCmd())
	cmd.AddCommand(newDatabaseQueryCmd())
	return cmd
}

func newDatabaseListCmd() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List databases",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := apiClient(cmd, server)
			dbs, err := c.Databases(cmd.Context())
			if err != nil {
				return err
			}
			for _, db := range dbs {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %s (%d views)\n", db.ID, db.Name, len(db.Views))
			}
			if len(dbs) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No databases")
			}
			return nil
		},
	}
	addServerFlag(cmd, &server)
	return cmd
}

func newDatabaseShowCmd() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a database's schema and views",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := apiClient(cmd, server)
			db, err := c.Database(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "ID:   %s\n", db.ID)
			_, _ = fmt.Fprintf(out, "Name: %s\n", db.Name)
			_, _ = fmt.Fprintln(out, "Schema:")
			for id, spec := range db.Schema {
				extra := ""
				if len(spec.Options) > 0 {
					extra = " [" + strings.Join(spec.Options, ", ") + "]"
				}
				_, _ = fmt.Fprintf(out, "  %s  %q (%s)%s\n", id, spec.DisplayName, spec.Type, extra)
			}
			_, _ = fmt.Fprintln(out, "Views:")
			for _, v := range db.Views {
				def := ""
				if v.ID == db.DefaultViewID {
					def = " (default)"
				}
				_, _ = fmt.Fprintf(out, "  %s  %q (%s)%s\n", v.ID, v.Name, v.Type, def)
			}
			return nil
		},
	}
	addServerFlag(cmd, &server)
	return cmd
}

func newDatabaseQueryCmd() *cobra.Command {
	var server, viewID string
	var filters []string
	var sorts []string

	cmd := &cobra.Command{
		Use:   "query <id>",
		Short: "Run a view query (saved view plus ad-hoc filters)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := models.QueryRequest{ViewID: viewID}
			for _, f := range filters {
				pf, err := parseFilter(f)
				if err != nil {
					return err
				}
				req.Filters = append(req.Filters, pf)
			}
			for _, s := range sorts {
				name := s
				desc := false
				if strings.HasPrefix(s, "-") {
					name = s[1:]
					desc = true
				}
				req.Sorts = append(req.Sorts, models.Sort{PropertyName: name, Descending: desc})
			}

			c := apiClient(cmd, server)
			rows, err := c.QueryDatabase(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			for _, it := range rows {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", it.ID, it.Title)
			}
			if len(rows) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No rows")
			}
			return nil
		},
	}
	addServerFlag(cmd, &server)
	cmd.Flags().StringVar(&viewID, "view", "", "Saved view ID (its filters and sorts apply first)")
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "Ad-hoc filter, e.g. 'status=Done', 'due<2026-09-01', 'notes~review', 'due!empty'")
	cmd.Flags().StringArrayVar(&sorts, "sort", nil, "Sort by property name; prefix with '-' for descending")
	return cmd
}

// parseFilter turns a compact CLI expression into a filter. Supported
// forms: name=value, name~value (contains), name<value (before),
// name>value (after), name!empty, name=empty.
func parseFilter(expr string) (models.Filter, error) {
	if strings.HasSuffix(expr, "!empty") {
		return models.Filter{PropertyName: strings.TrimSuffix(expr, "!empty"), Op: "is_not_empty"}, nil
	}
	for _, c := range []struct {
		sep string
		op  string
	}{
		{"~", "contains"},
		{"<", "before"},
		{">", "after"},
		{"=", "equals"},
	} {
		if i := strings.Index(expr, c.sep); i > 0 {
			name, value := expr[:i], expr[i+len(c.sep):]
			if c.op == "equals" && value == "empty" {
				return models.Filter{PropertyName: name, Op: "is_empty"}, nil
			}
			return models.Filter{PropertyName: name, Op: c.op, Value: value}, nil
		}
	}
	return models.Filter{}, fmt.Errorf("invalid filter %q (want name=value, name~value, name<value, name>value, or name!empty)", expr)
}
