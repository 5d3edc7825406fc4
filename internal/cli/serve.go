package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/webanalyst/corius/internal/config"
	"github.com/webanalyst/corius/internal/daemon"
)

func newServeCmd() *cobra.Command {
	var (
		addr         string
		foreground   bool
		dev          bool
		pprofAddr    string
		dbDriver     string
		dbURL        string
		flushDelayMS int
		seed         bool
		envFile      string
		enableOtel   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Corius workspace server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := loadEnvFile(envFile); err != nil {
					return err
				}
			}
			home := config.MustHomeFrom(cmd.Context())

			settings, err := config.LoadSettings(home)
			if err != nil {
				return err
			}
			opts := daemon.StartOptions{
				Home:       home,
				Addr:       settings.ListenAddr,
				Dev:        dev,
				PprofAddr:  pprofAddr,
				APIKey:     settings.APIKey,
				DBDriver:   settings.DBDriver,
				DBURL:      settings.DBURL,
				FlushDelay: settings.FlushDelay(),
				Seed:       seed,
				EnableOtel: enableOtel,
			}
			// Flags override workspace.yaml.
			if cmd.Flags().Changed("addr") {
				opts.Addr = addr
			}
			if cmd.Flags().Changed("db-driver") {
				opts.DBDriver = dbDriver
			}
			if cmd.Flags().Changed("db-url") {
				opts.DBURL = dbURL
			}
			if cmd.Flags().Changed("flush-delay-ms") {
				opts.FlushDelay = time.Duration(flushDelayMS) * time.Millisecond
			}

			if foreground {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Starting Corius in foreground on %s\n", opts.Addr)
				return daemon.StartForeground(cmd.Context(), opts)
			}

			pid, err := daemon.StartBackground(cmd.Context(), opts)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Corius started (pid %d)\n", pid)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "API: http://%s\n", opts.Addr)
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", config.DefaultListenAddr, "Listen address for the HTTP API")
	cmd.Flags().BoolVar(&foreground, "foreground", false, "Run in foreground (do not daemonize)")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable dev mode (permissive CORS)")
	cmd.Flags().StringVar(&pprofAddr, "pprof", "", "Enable pprof on address (e.g. 127.0.0.1:6060)")
	cmd.Flags().StringVar(&dbDriver, "db-driver", config.DefaultDBDriver, "Persistence driver: sqlite or postgres")
	cmd.Flags().StringVar(&dbURL, "db-url", "", "DB connection string (for postgres; or set DATABASE_URL)")
	cmd.Flags().IntVar(&flushDelayMS, "flush-delay-ms", config.DefaultFlushDelayMS, "Debounce window before persisting mutations")
	cmd.Flags().BoolVar(&seed, "seed", false, "Insert the demo workspace when the store is empty")
	cmd.Flags().StringVar(&envFile, "env-file", "", "Load env vars from file (KEY=VALUE per line) before starting")
	cmd.Flags().BoolVar(&enableOtel, "otel", true, "Enable OpenTelemetry metrics (Prometheus exporter, HTTP/SSE instrumentation)")

	return cmd
}

func loadEnvFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		i := strings.Index(line, "=")
		if i <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:i])
		value := strings.TrimSpace(line[i+1:])
		if key != "" {
			_ = os.Setenv(key, value)
		}
	}
	return sc.Err()
}
