package cli

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/webanalyst/corius/internal/config"
	"github.com/webanalyst/corius/internal/daemon"
	"github.com/webanalyst/corius/pkg/client"
)

// apiClient builds a client for the running server. An explicit --server
// wins; otherwise the daemon's recorded listen address is used, falling
// back to the default.
func apiClient(cmd *cobra.Command, server string) *client.Client {
	addr := server
	if addr == "" {
		home := config.MustHomeFrom(cmd.Context())
		if st, _ := daemon.Status(cmd.Context(), home); st.Running && st.Addr != "unknown" {
			addr = st.Addr
		}
	}
	if addr == "" {
		addr = config.DefaultListenAddr
	}
	return client.New("http://"+addr, os.Getenv("CORIUS_API_KEY"))
}

func addServerFlag(cmd *cobra.Command, server *string) {
	cmd.Flags().StringVar(server, "server", "", "Server address (default: the running daemon's address)")
}
