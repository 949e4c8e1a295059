// Command xjet is the thin cobra CLI entrypoint: it loads
// internal/config, builds an internal/orchestrator.SuitesService,
// wires a console reporter, and exits with the code SuitesService.Run
// computes: 1 if any FAILURE action (test- or describe-level) or suite
// error was seen, else 0. It deliberately parses only the flags needed to
// drive the orchestrator end-to-end.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xjet-run/engine/internal/config"
	"github.com/xjet-run/engine/internal/orchestrator"
	"github.com/xjet-run/engine/internal/reporter"
	"github.com/xjet-run/engine/pkg/xjetlog"
)

var (
	projectRoot string
	silent      bool
	watchPoll   time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "xjet",
	Short: "xjet runs JavaScript test suites against the xjet execution engine",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Discover and run every configured suite once",
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := execute(cmd.Context(), false)
		if err != nil {
			return err
		}
		os.Exit(code)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-run suites whenever a matching file changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := execute(cmd.Context(), true)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&projectRoot, "root", ".", "project root containing xjet.config.yaml")
	rootCmd.PersistentFlags().BoolVar(&silent, "silent", false, "discard the reporter's stdout output (stderr output is kept) and log as JSON")
	watchCmd.Flags().DurationVar(&watchPoll, "poll", time.Second, "watch poll interval")
	rootCmd.AddCommand(runCmd, watchCmd)
}

func execute(ctx context.Context, watch bool) (int, error) {
	cfg, err := config.Load(projectRoot)
	if err != nil {
		return 1, fmt.Errorf("load config: %w", err)
	}
	if silent {
		cfg.Silent = true
	}

	log, err := xjetlog.New(!cfg.Silent)
	if err != nil {
		return 1, fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	var rep reporter.Reporter = reporter.NewConsoleReporter(os.Stdout, os.Stderr)
	if cfg.Silent {
		rep = reporter.NewConsoleReporter(io.Discard, os.Stderr)
	}

	var newTarget orchestrator.TargetFactory
	if cfg.UsesExternalTarget() {
		newTarget = orchestrator.NewExternalTargetFactory(cfg)
	} else {
		newTarget = orchestrator.NewLocalTargetFactory(cfg)
	}

	service := orchestrator.NewSuitesService(cfg, nil, newTarget, log)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if watch || cfg.Watch {
		return 0, service.Watch(ctx, rep, watchPoll)
	}
	return service.Run(ctx, rep)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
