package main

import (
	"fmt"
	"log/slog"

	"quizline/internal/approval"
	"quizline/internal/config"
	"quizline/internal/daemon"
	"quizline/internal/notifications"
	"quizline/internal/queue"
	"quizline/internal/stage"
)

// buildDaemon opens the ledger store and wires the stage runner the
// scheduler drives. The store is owned by the returned daemon.
func buildDaemon(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	store, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open ledger store: %w", err)
	}
	gateway, err := approval.New(cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build approval gateway: %w", err)
	}
	runner := stage.NewRunner(cfg, store, gateway, notifications.NewService(cfg), logger)
	d, err := daemon.New(cfg, runner, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return d, nil
}
