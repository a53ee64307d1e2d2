package main

import (
	"errors"

	"quizline/internal/approval"
	"quizline/internal/queue"
	"quizline/internal/services"
)

// Exit codes reported to the scheduler wrapping the CLI.
const (
	exitOK       = 0
	exitFailure  = 1
	exitConfig   = 2
	exitStorage  = 3
	exitConflict = 4
	exitApproval = 5
	exitExternal = 6
)

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errConfig), errors.Is(err, services.ErrConfiguration):
		return exitConfig
	case errors.Is(err, queue.ErrStorageUnavailable), errors.Is(err, queue.ErrStorageWriteFailed):
		return exitStorage
	case errors.Is(err, queue.ErrConflict), errors.Is(err, queue.ErrLedgerBusy):
		return exitConflict
	case errors.Is(err, approval.ErrTimeout),
		errors.Is(err, approval.ErrInvalidChoice),
		errors.Is(err, approval.ErrAborted),
		errors.Is(err, approval.ErrUnavailable):
		return exitApproval
	case errors.Is(err, services.ErrExternal):
		return exitExternal
	default:
		return exitFailure
	}
}
