// Command quizlined runs the stage scheduler in the foreground until it
// receives SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"quizline/internal/config"
	"quizline/internal/logging"
	"quizline/internal/preflight"
)

var errPreflight = errors.New("preflight checks failed")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "quizlined:", err)
		if errors.Is(err, errPreflight) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:           "quizlined",
		Short:         "Run the quizline stage scheduler",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath, skipPreflight)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Start even when preflight checks fail")
	return cmd
}

func run(ctx context.Context, configPath string, skipPreflight bool) error {
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if failed := preflight.Failed(preflight.RunAll(ctx, cfg)); len(failed) > 0 {
		for _, r := range failed {
			logging.ErrorWithContext(logger, "preflight check failed", "preflight",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
			)
		}
		if !skipPreflight {
			return fmt.Errorf("%w: %d failing", errPreflight, len(failed))
		}
	}

	d, err := buildDaemon(cfg, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("daemon start: %w", err)
	}

	select {
	case <-ctx.Done():
	case <-d.Done():
		if err := d.Err(); err != nil {
			logging.ErrorWithContext(logger, "scheduler exited", "daemon_failure", logging.Error(err))
			return err
		}
	}
	logger.Info("quizlined shutting down")
	return nil
}
