// Package logging assembles structured slog loggers and formatting helpers used
// across quizline commands and the scheduler daemon.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so stage code tags log lines with the
// stage name, ledger row, topic, and run correlation ID. A no-op logger is
// provided for tests and wiring code that cannot fail.
package logging
