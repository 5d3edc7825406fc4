package cli

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/webanalyst/corius/internal/config"
	"github.com/webanalyst/corius/internal/daemon"
)

func newDaemonCmd() *cobra.Command {
	var (
		addr         string
		dev          bool
		pprofAddr    string
		dbDriver     string
		dbURL        string
		flushDelayMS int
		seed         bool
		enableOtel   bool
	)

	cmd := &cobra.Command{
		Use:    "daemon",
		Short:  "Internal: run daemon process",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			return daemon.StartForeground(cmd.Context(), daemon.StartOptions{
				Home:       home,
				Addr:       addr,
				Dev:        dev,
				PprofAddr:  pprofAddr,
				DBDriver:   dbDriver,
				DBURL:      dbURL,
				FlushDelay: time.Duration(flushDelayMS) * time.Millisecond,
				Seed:       seed,
				EnableOtel: enableOtel,
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", config.DefaultListenAddr, "Listen address for the HTTP API")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable dev mode")
	cmd.Flags().StringVar(&pprofAddr, "pprof", "", "Enable pprof on address (e.g. 127.0.0.1:6060)")
	cmd.Flags().StringVar(&dbDriver, "db-driver", config.DefaultDBDriver, "Persistence driver: sqlite or postgres")
	cmd.Flags().StringVar(&dbURL, "db-url", "", "DB connection string (for postgres)")
	cmd.Flags().IntVar(&flushDelayMS, "flush-delay-ms", config.DefaultFlushDelayMS, "Debounce window before persisting mutations")
	cmd.Flags().BoolVar(&seed, "seed", false, "Insert the demo workspace when the store is empty")
	cmd.Flags().BoolVar(&enableOtel, "otel", true, "Enable OpenTelemetry metrics")

	return cmd
}
