package stage

import (
	"context"
	"errors"

	"quizline/internal/approval"
	"quizline/internal/queue"
)

func hintFor(err error) string {
	switch {
	case errors.Is(err, queue.ErrConflict):
		return "another runner moved the item; rerun the stage"
	case errors.Is(err, queue.ErrLedgerBusy):
		return "another runner holds the ledger lock; retry later"
	case errors.Is(err, queue.ErrStorageUnavailable):
		return "check the ledger path and that the file parses"
	case errors.Is(err, queue.ErrStorageWriteFailed):
		return "check free space and permissions on the ledger directory"
	case errors.Is(err, approval.ErrTimeout):
		return "no answer arrived; the item stays where it was"
	case errors.Is(err, approval.ErrInvalidChoice):
		return "the approval answer did not match an offered option"
	case errors.Is(err, approval.ErrUnavailable):
		return "check approval backend credentials and connectivity"
	case errors.Is(err, context.Canceled):
		return "invocation was cancelled"
	default:
		return "check logs for details"
	}
}
