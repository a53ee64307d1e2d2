package queue

import "errors"

var (
	// ErrStorageUnavailable reports that the ledger could not be read or
	// could not be parsed.
	ErrStorageUnavailable = errors.New("ledger storage unavailable")
	// ErrStorageWriteFailed reports that a save did not complete. The prior
	// ledger content is left in place.
	ErrStorageWriteFailed = errors.New("ledger write failed")
	// ErrConflict reports that a conditional update found the row in a
	// different state than the caller expected.
	ErrConflict = errors.New("ledger item changed concurrently")
	// ErrLedgerBusy reports that the writer lock could not be acquired in
	// time.
	ErrLedgerBusy = errors.New("ledger locked by another writer")
	// ErrIllegalTransition reports a status change outside the edge table.
	ErrIllegalTransition = errors.New("illegal status transition")
	// ErrInvalidRewrite reports a save that would violate the ledger
	// rewrite rules (items lost, reordered or more than one status change).
	ErrInvalidRewrite = errors.New("invalid ledger rewrite")
)
