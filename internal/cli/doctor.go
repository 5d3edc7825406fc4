package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/webanalyst/corius/internal/config"
	"github.com/webanalyst/corius/internal/persist"
	"github.com/webanalyst/corius/internal/store"
)

func newDoctorCmd() *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Verify the home directory and local persistence",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			home := config.MustHomeFrom(ctx)

			var problems []string

			// Home must be creatable and writable.
			if err := os.MkdirAll(home, 0o755); err != nil {
				problems = append(problems, fmt.Sprintf("cannot create home %s: %v", home, err))
			} else {
				probe := filepath.Join(home, ".doctor-probe")
				if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
					problems = append(problems, fmt.Sprintf("home not writable: %v", err))
				} else {
					_ = os.Remove(probe)
				}
			}

			// The settings file must parse if present.
			if _, err := config.LoadSettings(home); err != nil {
				problems = append(problems, fmt.Sprintf("settings: %v", err))
			}

			// The local snapshot database must open and migrate.
			if len(problems) == 0 {
				gw, err := persist.Open(home)
				if err != nil {
					problems = append(problems, fmt.Sprintf("sqlite snapshot store: %v", err))
				} else {
					st, err := store.Open(ctx, store.Options{Gateway: gw})
					if err != nil {
						_ = gw.Close()
						problems = append(problems, fmt.Sprintf("load snapshot: %v", err))
					} else {
						if seed {
							if err := st.SeedDemo(ctx); err != nil {
								problems = append(problems, fmt.Sprintf("seed demo workspace: %v", err))
							} else {
								_, _ = fmt.Fprintln(cmd.OutOrStdout(), "seeded demo workspace")
							}
						}
						if err := st.Close(ctx); err != nil {
							problems = append(problems, fmt.Sprintf("flush snapshot: %v", err))
						}
					}
				}
			}

			if len(problems) > 0 {
				for _, p := range problems {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), p)
				}
				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "Insert the demo workspace when the store is empty")
	return cmd
}
