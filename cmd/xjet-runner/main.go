// Command xjet-runner is the standalone remote-runner process an
// ExternalTarget dispatches to: it exposes the gin dispatch endpoint
// plus the websocket event stream internal/dispatch/runner.Server
// implements.
package main

import (
	"fmt"
	"os"

	"github.com/dop251/goja"
	"github.com/spf13/cobra"

	"github.com/xjet-run/engine/internal/dispatch/runner"
)

var (
	runnerID string
	addr     string
	timeout  int
)

var rootCmd = &cobra.Command{
	Use:   "xjet-runner",
	Short: "xjet-runner serves one ExternalTarget runner slot over HTTP/websocket",
	RunE: func(cmd *cobra.Command, args []string) error {
		srv := runner.NewServer(runnerID)
		srv.Timeout = timeout
		srv.Resolve = func(specifier string) (goja.Value, error) {
			return nil, fmt.Errorf("module %q not available: runner process resolves no external modules", specifier)
		}
		return srv.Run(addr)
	},
}

func init() {
	rootCmd.Flags().StringVar(&runnerID, "id", "runner-1", "this runner's identifier")
	rootCmd.Flags().StringVar(&addr, "addr", ":9001", "listen address")
	rootCmd.Flags().IntVar(&timeout, "timeout", 5000, "timeout in milliseconds exposed to each suite as __XJET__.timeout; the runner does not enforce it")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
